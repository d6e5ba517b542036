package api

import "github.com/BaSui01/queryflow/types"

// ChatRequest 聊天请求
type ChatRequest struct {
	// SessionID 会话标识，为空时服务端生成新会话
	SessionID string `json:"session_id,omitempty"`
	// Message 用户消息文本
	Message string `json:"message"`
	// Flow 可选，指定工作流并跳过自动选择
	Flow string `json:"flow,omitempty"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	SessionID string   `json:"session_id"`
	RunID     string   `json:"run_id"`
	FlowName  string   `json:"flow_name"`
	Response  string   `json:"response"`
	Trace     []string `json:"trace,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// FlowInfo 工作流清单条目
type FlowInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ConversationResponse 会话历史响应
type ConversationResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []types.Message `json:"messages"`
}
