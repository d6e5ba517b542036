package workflow

import (
	"testing"

	"github.com/BaSui01/queryflow/types"
)

func registrable(name string) *Graph {
	g := NewGraph(name)
	g.AddNode("only", noop).AddEdge("only", End).SetEntry("only")
	return g
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("general_qa", "answers general questions", registrable("general_qa")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	g, err := r.Get("general_qa")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if g.Name() != "general_qa" {
		t.Errorf("unexpected graph: %s", g.Name())
	}

	desc, err := r.Describe("general_qa")
	if err != nil || desc != "answers general questions" {
		t.Errorf("unexpected description %q, err %v", desc, err)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("flow", "first", registrable("flow")); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	err := r.Register("flow", "second", registrable("flow"))
	if types.GetErrorCode(err) != types.ErrDuplicateWorkflow {
		t.Fatalf("expected WORKFLOW_DUPLICATE, got %v", err)
	}
}

func TestRegistry_Unknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); types.GetErrorCode(err) != types.ErrUnknownWorkflow {
		t.Fatalf("expected WORKFLOW_UNKNOWN, got %v", err)
	}
}

func TestRegistry_RejectsInvalidGraph(t *testing.T) {
	r := NewRegistry()
	g := NewGraph("broken")
	g.AddNode("a", noop).SetEntry("a") // no outgoing edge
	if err := r.Register("broken", "x", g); types.GetErrorCode(err) != types.ErrInvalidGraph {
		t.Fatalf("expected GRAPH_INVALID, got %v", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("text_to_sql", "sql", registrable("text_to_sql"))
	_ = r.Register("general_qa", "qa", registrable("general_qa"))

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(infos))
	}
	// 按名称排序
	if infos[0].Name != "general_qa" || infos[1].Name != "text_to_sql" {
		t.Errorf("unexpected order: %v", infos)
	}
}
