package workflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/queryflow/types"
)

// End 是终止标记：一条边指向 End 表示运行成功结束，没有后续步骤。
const End = "__end__"

// StepFunc 是步骤执行函数。
// 步骤对状态做一次转换并返回；对能力端口的调用是其唯一副作用。
// 返回 error 表示能力故障，引擎会将其记录到 State.Err 并终止运行。
type StepFunc func(ctx context.Context, state *State) (*State, error)

// DecisionFunc 是条件边的路由决策函数。
// 在步骤执行之后对更新过的状态求值，返回的决策键必须是决策表的闭集成员；
// 步骤自身负责把自由文本归一化为已知键（含缺省键），保证函数全域。
type DecisionFunc func(ctx context.Context, state *State) string

// edge 描述一个节点的出边：要么是固定后继，要么是
// 决策函数 + 决策键到后继的映射表。
type edge struct {
	fixed  string
	decide DecisionFunc
	table  map[string]string
}

// Graph 是一个工作流的不可变定义：命名节点、节点间的边与入口节点。
// 每个工作流类型构建一次，注册后冻结，跨并发运行只读共享。
type Graph struct {
	name   string
	nodes  map[string]StepFunc
	edges  map[string]edge
	entry  string
	frozen bool
}

// NewGraph 创建一个空图。
func NewGraph(name string) *Graph {
	return &Graph{
		name:  name,
		nodes: make(map[string]StepFunc),
		edges: make(map[string]edge),
	}
}

// Name 返回图名称。
func (g *Graph) Name() string { return g.name }

// Entry 返回入口节点名。
func (g *Graph) Entry() string { return g.entry }

// AddNode 注册一个命名步骤。
func (g *Graph) AddNode(name string, fn StepFunc) *Graph {
	g.mustMutable()
	g.nodes[name] = fn
	return g
}

// AddEdge 添加一条固定边。
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mustMutable()
	g.edges[from] = edge{fixed: to}
	return g
}

// AddConditionalEdge 添加一条条件边：decide 的返回值经 table 映射到后继。
func (g *Graph) AddConditionalEdge(from string, decide DecisionFunc, table map[string]string) *Graph {
	g.mustMutable()
	g.edges[from] = edge{decide: decide, table: table}
	return g
}

// SetEntry 设置入口节点。
func (g *Graph) SetEntry(name string) *Graph {
	g.mustMutable()
	g.entry = name
	return g
}

// node 按名称查找步骤执行器。
func (g *Graph) node(name string) (StepFunc, bool) {
	fn, ok := g.nodes[name]
	return fn, ok
}

// Nodes 返回所有节点名。
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	return names
}

// Validate 校验图定义的完整性：
//   - 入口已设置且存在对应节点
//   - 每个节点都有出边（终止节点显式连到 End）
//   - 每条边引用的后继要么是已注册节点，要么是 End
func (g *Graph) Validate() error {
	if g.entry == "" {
		return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: entry not set", g.name))
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: entry node %q not found", g.name, g.entry))
	}
	for name := range g.nodes {
		e, ok := g.edges[name]
		if !ok {
			return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: node %q has no outgoing edge", g.name, name))
		}
		if e.decide == nil {
			if err := g.checkTarget(name, e.fixed); err != nil {
				return err
			}
			continue
		}
		if len(e.table) == 0 {
			return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: conditional edge from %q has empty decision table", g.name, name))
		}
		for key, target := range e.table {
			if key == "" {
				return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: conditional edge from %q has empty decision key", g.name, name))
			}
			if err := g.checkTarget(name, target); err != nil {
				return err
			}
		}
	}
	for from := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("graph %s: edge from unknown node %q", g.name, from))
		}
	}
	return nil
}

func (g *Graph) checkTarget(from, target string) error {
	if target == End {
		return nil
	}
	if _, ok := g.nodes[target]; !ok {
		return types.NewError(types.ErrInvalidGraph,
			fmt.Sprintf("graph %s: edge %s -> %s references unknown node", g.name, from, target))
	}
	return nil
}

// freeze 将图置为只读。注册表在校验通过后调用。
func (g *Graph) freeze() { g.frozen = true }

// mustMutable 防御注册后的修改，这是工作流定义代码的缺陷。
func (g *Graph) mustMutable() {
	if g.frozen {
		panic(fmt.Sprintf("workflow: graph %s is frozen, definitions are immutable after registration", g.name))
	}
}
