package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/api"
	"github.com/BaSui01/queryflow/orchestrator"
	"github.com/BaSui01/queryflow/types"
)

// Processor 编排能力端口，便于测试替换
type Processor interface {
	Process(ctx context.Context, sessionID, message string) (*orchestrator.Result, error)
	ProcessFlow(ctx context.Context, sessionID, flowName, message string) (*orchestrator.Result, error)
}

// ChatHandler 聊天处理器
type ChatHandler struct {
	processor Processor
	logger    *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(processor Processor, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{processor: processor, logger: logger}
}

// HandleChat 处理 POST /api/v1/chat。
// 请求未指定工作流时由编排器自动选择。
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "message must not be empty"), h.logger)
		return
	}

	var result *orchestrator.Result
	var err error
	if req.Flow != "" {
		result, err = h.processor.ProcessFlow(r.Context(), req.SessionID, req.Flow, req.Message)
	} else {
		result, err = h.processor.Process(r.Context(), req.SessionID, req.Message)
	}
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.ChatResponse{
		SessionID: result.SessionID,
		RunID:     result.RunID,
		FlowName:  result.FlowName,
		Response:  result.Response,
		Trace:     result.Trace,
		Error:     result.Error,
	})
}
