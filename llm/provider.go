package llm

import (
	"context"

	"github.com/BaSui01/queryflow/types"
)

// CompletionRequest 一次补全请求
type CompletionRequest struct {
	// Messages 完整对话（含系统提示词），按时间顺序排列
	Messages []types.Message `json:"messages"`
	// Model 可选，覆盖提供商默认模型
	Model string `json:"model,omitempty"`
	// Temperature 采样温度
	Temperature float64 `json:"temperature,omitempty"`
	// MaxTokens 最大生成 token 数，0 表示使用提供商默认值
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionResponse 一次补全的结果
type CompletionResponse struct {
	// Content 模型生成的文本
	Content string `json:"content"`
	// Model 实际使用的模型名
	Model string `json:"model"`
	// FinishReason 生成结束原因（stop / length / content_filter）
	FinishReason string `json:"finish_reason,omitempty"`
	// Usage token 消耗统计
	Usage Usage `json:"usage"`
}

// Usage token 消耗统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider 补全能力端口。
//
// 实现必须把传输层错误映射为 *types.Error：可重试故障
// （限流、服务端错误、超时）标记 Retryable，协议性错误不标记。
type Provider interface {
	// Complete 执行一次补全
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name 返回提供商标识
	Name() string

	// HealthCheck 检查提供商可用性
	HealthCheck(ctx context.Context) error
}
