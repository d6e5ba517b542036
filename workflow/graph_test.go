package workflow

import (
	"context"
	"testing"

	"github.com/BaSui01/queryflow/types"
)

func noop(ctx context.Context, s *State) (*State, error) { return s, nil }

func TestGraphValidate(t *testing.T) {
	t.Run("valid linear graph", func(t *testing.T) {
		g := NewGraph("ok")
		g.AddNode("a", noop).AddNode("b", noop)
		g.AddEdge("a", "b").AddEdge("b", End)
		g.SetEntry("a")
		if err := g.Validate(); err != nil {
			t.Fatalf("expected valid graph: %v", err)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		g := NewGraph("no-entry")
		g.AddNode("a", noop).AddEdge("a", End)
		if err := g.Validate(); types.GetErrorCode(err) != types.ErrInvalidGraph {
			t.Fatalf("expected GRAPH_INVALID, got %v", err)
		}
	})

	t.Run("edge to unknown node", func(t *testing.T) {
		g := NewGraph("dangling")
		g.AddNode("a", noop).AddEdge("a", "ghost").SetEntry("a")
		if err := g.Validate(); types.GetErrorCode(err) != types.ErrInvalidGraph {
			t.Fatalf("expected GRAPH_INVALID, got %v", err)
		}
	})

	t.Run("node without outgoing edge", func(t *testing.T) {
		g := NewGraph("stuck")
		g.AddNode("a", noop).AddNode("b", noop)
		g.AddEdge("a", "b")
		g.SetEntry("a")
		if err := g.Validate(); types.GetErrorCode(err) != types.ErrInvalidGraph {
			t.Fatalf("expected GRAPH_INVALID, got %v", err)
		}
	})

	t.Run("conditional edge targets checked", func(t *testing.T) {
		g := NewGraph("cond")
		g.AddNode("a", noop).AddNode("b", noop)
		g.AddConditionalEdge("a", func(ctx context.Context, s *State) string { return "x" },
			map[string]string{"x": "b", "y": "ghost"})
		g.AddEdge("b", End)
		g.SetEntry("a")
		if err := g.Validate(); types.GetErrorCode(err) != types.ErrInvalidGraph {
			t.Fatalf("expected GRAPH_INVALID, got %v", err)
		}
	})
}

func TestGraphFrozenPanics(t *testing.T) {
	g := NewGraph("frozen")
	g.AddNode("a", noop).AddEdge("a", End).SetEntry("a")
	g.freeze()

	defer func() {
		if recover() == nil {
			t.Fatal("mutating a frozen graph must panic")
		}
	}()
	g.AddNode("b", noop)
}
