package conversation

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/types"
)

// fallbackCharsPerToken 编码器不可用时按字符数估算 token
const fallbackCharsPerToken = 4

// ContextWindow 按 token 预算裁剪对话历史。
// 从最新消息向前保留，预算耗尽后更早的消息被丢弃。
type ContextWindow struct {
	budget  int
	encoder *tiktoken.Tiktoken
	logger  *zap.Logger
}

// NewContextWindow 创建上下文窗口；encoding 为空时使用 cl100k_base
func NewContextWindow(budget int, encoding string, logger *zap.Logger) *ContextWindow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoding == "" {
		encoding = "cl100k_base"
	}
	w := &ContextWindow{budget: budget, logger: logger}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		// 编码表加载失败时退化为字符估算
		logger.Warn("tiktoken encoding unavailable, falling back to char estimate",
			zap.String("encoding", encoding), zap.Error(err))
	} else {
		w.encoder = enc
	}
	return w
}

// CountTokens 估算单条文本的 token 数
func (w *ContextWindow) CountTokens(text string) int {
	if w.encoder != nil {
		return len(w.encoder.Encode(text, nil, nil))
	}
	n := len(text) / fallbackCharsPerToken
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// Fit 返回在预算内的历史后缀；最新一条消息总是保留
func (w *ContextWindow) Fit(messages []types.Message) []types.Message {
	if len(messages) == 0 || w.budget <= 0 {
		return messages
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := w.CountTokens(messages[i].Content)
		if total+cost > w.budget && start < len(messages) {
			break
		}
		total += cost
		start = i
	}

	if start > 0 {
		w.logger.Debug("history trimmed to token budget",
			zap.Int("dropped", start),
			zap.Int("kept", len(messages)-start),
			zap.Int("tokens", total))
	}
	return messages[start:]
}
