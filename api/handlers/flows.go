package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/api"
	"github.com/BaSui01/queryflow/workflow"
)

// FlowsHandler 工作流清单处理器
type FlowsHandler struct {
	registry *workflow.Registry
	logger   *zap.Logger
}

// NewFlowsHandler 创建工作流清单处理器
func NewFlowsHandler(registry *workflow.Registry, logger *zap.Logger) *FlowsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowsHandler{registry: registry, logger: logger}
}

// HandleList 处理 GET /api/v1/flows
func (h *FlowsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.List()
	out := make([]api.FlowInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, api.FlowInfo{Name: info.Name, Description: info.Description})
	}
	WriteSuccess(w, out)
}
