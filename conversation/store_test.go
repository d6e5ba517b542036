package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/config"
	"github.com/BaSui01/queryflow/types"
)

func TestMemoryStoreAppendHistory(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "s1", types.NewUserMessage("hello")))
	require.NoError(t, s.Append(ctx, "s1", types.NewAssistantMessage("hi there")))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestMemoryStoreUnknownSessionEmpty(t *testing.T) {
	s := NewMemoryStore(10)
	history, err := s.History(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStoreTrimsOldest(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, "s1", types.NewUserMessage(fmt.Sprintf("msg-%d", i))))
	}

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "msg-2", history[0].Content)
	assert.Equal(t, "msg-4", history[2].Content)
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", types.NewUserMessage("hello")))
	require.NoError(t, s.Clear(ctx, "s1"))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func redisFixture(t *testing.T, maxMessages int) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(
		config.RedisConfig{Addr: mr.Addr()},
		config.ConversationConfig{MaxMessages: maxMessages, TTL: time.Hour},
		zap.NewNop(),
	)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := redisFixture(t, 10)
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Append(ctx, "s1",
		types.NewUserMessage("show me users"),
		types.NewAssistantMessage("here they are")))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "show me users", history[0].Content)
	assert.Equal(t, types.RoleAssistant, history[1].Role)
}

func TestRedisStoreTrimsToMax(t *testing.T) {
	s := redisFixture(t, 2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Append(ctx, "s1", types.NewUserMessage(fmt.Sprintf("msg-%d", i))))
	}

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "msg-2", history[0].Content)
}

func TestRedisStoreClear(t *testing.T) {
	s := redisFixture(t, 10)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s1", types.NewUserMessage("hello")))
	require.NoError(t, s.Clear(ctx, "s1"))

	history, err := s.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(
		config.RedisConfig{Addr: mr.Addr()},
		config.ConversationConfig{MaxMessages: 10},
		zap.NewNop(),
	)
	t.Cleanup(func() { store.Close() })
	mr.Close()

	err := store.Append(context.Background(), "s1", types.NewUserMessage("hello"))
	require.Error(t, err)
	assert.Equal(t, types.ErrStoreUnavailable, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}
