package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/queryflow/config"
	"github.com/BaSui01/queryflow/types"
)

// OpenAIProvider 兼容 OpenAI chat/completions 协议的提供商实现。
// 同一实现可对接 OpenAI、DeepSeek、Qwen 等兼容网关，仅需替换 BaseURL。
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewOpenAIProvider 根据配置创建提供商
func NewOpenAIProvider(cfg config.LLMConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &OpenAIProvider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Name 返回提供商标识
func (p *OpenAIProvider) Name() string {
	return "openai-compatible"
}

// chat/completions 请求与响应的线格式
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete 执行一次补全
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "completion request must carry at least one message")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrTimeout, "rate limiter wait canceled").WithCause(err).WithProvider(p.Name())
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode completion request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to build completion request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Warn("completion request failed",
			zap.String("provider", p.Name()),
			zap.Error(err))
		return nil, types.NewError(types.ErrCompletionUnavailable, "completion request failed").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, types.NewError(types.ErrCompletionUnavailable, "failed to read completion response").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrCompletionUnavailable, "failed to decode completion response").
			WithCause(err).WithProvider(p.Name())
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrCompletionUnavailable, "completion response carried no choices").
			WithProvider(p.Name())
	}

	p.logger.Debug("completion succeeded",
		zap.String("provider", p.Name()),
		zap.String("model", parsed.Model),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))

	return &CompletionResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// mapHTTPError 把 HTTP 错误码映射为结构化错误。
// 429 与 5xx 可重试，401/403 视为认证失败，其余 4xx 为致命请求错误。
func (p *OpenAIProvider) mapHTTPError(status int, raw []byte) error {
	detail := extractAPIError(raw)

	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, fmt.Sprintf("provider rate limited: %s", detail)).
			WithRetryable(true).WithProvider(p.Name())
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUnauthorized, fmt.Sprintf("provider rejected credentials: %s", detail)).
			WithProvider(p.Name())
	case status >= 500:
		return types.NewError(types.ErrCompletionUnavailable, fmt.Sprintf("provider error (HTTP %d): %s", status, detail)).
			WithRetryable(true).WithProvider(p.Name())
	default:
		return types.NewError(types.ErrInvalidRequest, fmt.Sprintf("provider rejected request (HTTP %d): %s", status, detail)).
			WithProvider(p.Name())
	}
}

func extractAPIError(raw []byte) string {
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "no error detail"
	}
	return msg
}

// HealthCheck 通过模型列表端点探测可用性
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "failed to build health check request").WithCause(err)
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return types.NewError(types.ErrCompletionUnavailable, "health check request failed").
			WithCause(err).WithRetryable(true).WithProvider(p.Name())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return types.NewError(types.ErrCompletionUnavailable, fmt.Sprintf("health check returned HTTP %d", resp.StatusCode)).
			WithProvider(p.Name())
	}
	return nil
}
