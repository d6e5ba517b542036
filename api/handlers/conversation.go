package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/api"
	"github.com/BaSui01/queryflow/conversation"
	"github.com/BaSui01/queryflow/types"
)

// ConversationHandler 会话历史处理器
type ConversationHandler struct {
	store  conversation.Store
	logger *zap.Logger
}

// NewConversationHandler 创建会话历史处理器
func NewConversationHandler(store conversation.Store, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{store: store, logger: logger}
}

// HandleHistory 处理 GET /api/v1/conversations/{session}
func (h *ConversationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "session id is required"), h.logger)
		return
	}

	messages, err := h.store.History(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.ConversationResponse{
		SessionID: sessionID,
		Messages:  messages,
	})
}

// HandleClear 处理 DELETE /api/v1/conversations/{session}
func (h *ConversationHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	if sessionID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "session id is required"), h.logger)
		return
	}

	if err := h.store.Clear(r.Context(), sessionID); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"session_id": sessionID, "status": "cleared"})
}
