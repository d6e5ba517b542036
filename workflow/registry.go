package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/queryflow/types"
)

// Info 描述一个已注册的工作流。
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry 将工作流名称映射到图定义。
// 图在注册时校验并冻结，此后跨所有运行只读共享。
// mu 保护注册表自身；并发 Get/List 与 Register 是安全的。
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	graph       *Graph
	description string
}

// NewRegistry 创建空注册表。
// 注册由显式的初始化例程完成，不依赖包加载顺序的隐式全局注册。
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register 以唯一名称注册一个图。描述是注册时提供的静态文案，
// 供编排器在选流时提交给补全端口，不在运行期派生。
func (r *Registry) Register(name, description string, g *Graph) error {
	if name == "" {
		return types.NewError(types.ErrInvalidGraph, "workflow name must not be empty")
	}
	if g == nil {
		return types.NewError(types.ErrInvalidGraph, fmt.Sprintf("workflow %q: nil graph", name))
	}
	if err := g.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return types.NewError(types.ErrDuplicateWorkflow, fmt.Sprintf("workflow %q already registered", name))
	}
	g.freeze()
	r.entries[name] = &registryEntry{graph: g, description: description}
	return nil
}

// Get 按名称返回图。
func (r *Registry) Get(name string) (*Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, types.NewError(types.ErrUnknownWorkflow, fmt.Sprintf("workflow %q not registered", name))
	}
	return entry.graph, nil
}

// Describe 返回注册时提供的描述。
func (r *Registry) Describe(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return "", types.NewError(types.ErrUnknownWorkflow, fmt.Sprintf("workflow %q not registered", name))
	}
	return entry.description, nil
}

// List 返回所有已注册工作流的名称与描述，按名称排序。
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.entries))
	for name, entry := range r.entries {
		infos = append(infos, Info{Name: name, Description: entry.description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has 报告名称是否已注册。
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}
