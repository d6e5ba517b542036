package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/types"
)

// fallbackWindow 构造一个必然走字符估算路径的窗口
func fallbackWindow(budget int) *ContextWindow {
	return &ContextWindow{budget: budget, logger: zap.NewNop()}
}

func TestCountTokensFallback(t *testing.T) {
	w := fallbackWindow(100)
	assert.Equal(t, 0, w.CountTokens(""))
	assert.Equal(t, 1, w.CountTokens("ab"))
	assert.Equal(t, 3, w.CountTokens(strings.Repeat("x", 12)))
}

func TestFitKeepsRecentSuffix(t *testing.T) {
	w := fallbackWindow(10)
	messages := []types.Message{
		types.NewUserMessage(strings.Repeat("a", 20)), // 5 tokens
		types.NewAssistantMessage(strings.Repeat("b", 20)),
		types.NewUserMessage(strings.Repeat("c", 20)),
	}

	kept := w.Fit(messages)
	require.Len(t, kept, 2)
	assert.Equal(t, strings.Repeat("b", 20), kept[0].Content)
	assert.Equal(t, strings.Repeat("c", 20), kept[1].Content)
}

func TestFitAlwaysKeepsLatestMessage(t *testing.T) {
	w := fallbackWindow(2)
	messages := []types.Message{
		types.NewUserMessage(strings.Repeat("a", 40)),
		types.NewUserMessage(strings.Repeat("b", 40)), // 10 tokens, over budget alone
	}

	kept := w.Fit(messages)
	require.Len(t, kept, 1)
	assert.Equal(t, strings.Repeat("b", 40), kept[0].Content)
}

func TestFitNoBudgetPassesThrough(t *testing.T) {
	w := fallbackWindow(0)
	messages := []types.Message{
		types.NewUserMessage("one"),
		types.NewUserMessage("two"),
	}
	assert.Len(t, w.Fit(messages), 2)
}

func TestFitEverythingWithinBudget(t *testing.T) {
	w := fallbackWindow(1000)
	messages := []types.Message{
		types.NewUserMessage("one"),
		types.NewAssistantMessage("two"),
	}
	assert.Equal(t, messages, w.Fit(messages))
}
