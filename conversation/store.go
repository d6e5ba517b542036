package conversation

import (
	"context"
	"sync"

	"github.com/BaSui01/queryflow/types"
)

// Store 会话历史端口
type Store interface {
	// Append 把消息追加到会话末尾
	Append(ctx context.Context, sessionID string, messages ...types.Message) error

	// History 返回会话的全部历史（时间顺序）；不存在的会话返回空切片
	History(ctx context.Context, sessionID string) ([]types.Message, error)

	// Clear 删除会话历史
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore 进程内会话存储，超出 maxMessages 时丢弃最旧消息
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]types.Message
	maxMessages int
}

// NewMemoryStore 创建进程内会话存储；maxMessages <= 0 表示不限制
func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string][]types.Message),
		maxMessages: maxMessages,
	}
}

// Append 把消息追加到会话末尾
func (s *MemoryStore) Append(ctx context.Context, sessionID string, messages ...types.Message) error {
	if len(messages) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], messages...)
	if s.maxMessages > 0 && len(history) > s.maxMessages {
		history = history[len(history)-s.maxMessages:]
	}
	s.sessions[sessionID] = history
	return nil
}

// History 返回会话历史的副本
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	out := make([]types.Message, len(history))
	copy(out, history)
	return out, nil
}

// Clear 删除会话历史
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
