package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/queryflow/config"
	"github.com/BaSui01/queryflow/types"
)

const redisKeyPrefix = "queryflow:conversation:"

// RedisStore 基于 Redis 列表的会话存储，支持 TTL 过期与跨实例共享
type RedisStore struct {
	client      *redis.Client
	maxMessages int64
	ttl         time.Duration
	logger      *zap.Logger
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(cfg config.RedisConfig, conv config.ConversationConfig, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	return &RedisStore{
		client:      client,
		maxMessages: int64(conv.MaxMessages),
		ttl:         conv.TTL,
		logger:      logger.With(zap.String("component", "conversation_redis")),
	}
}

// Ping 探测 Redis 可用性
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return types.NewError(types.ErrStoreUnavailable, "redis ping failed").WithCause(err).WithRetryable(true)
	}
	return nil
}

// Close 关闭底层连接池
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(sessionID string) string {
	return redisKeyPrefix + sessionID
}

// Append 把消息序列化后 RPUSH，并裁剪到 maxMessages、刷新 TTL
func (s *RedisStore) Append(ctx context.Context, sessionID string, messages ...types.Message) error {
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, 0, len(messages))
	for _, m := range messages {
		raw, err := json.Marshal(m)
		if err != nil {
			return types.NewError(types.ErrStoreUnavailable, "failed to encode message").WithCause(err)
		}
		values = append(values, raw)
	}

	key := s.key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to append messages", zap.String("session_id", sessionID), zap.Error(err))
		return types.NewError(types.ErrStoreUnavailable, "failed to append messages").WithCause(err).WithRetryable(true)
	}
	return nil
}

// History 返回会话的全部历史
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to load history").WithCause(err).WithRetryable(true)
	}

	messages := make([]types.Message, 0, len(raw))
	for _, item := range raw {
		var m types.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			// 损坏的条目跳过，不让单条坏数据毁掉整个会话
			s.logger.Warn("skipping corrupt history entry", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Clear 删除会话历史
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return types.NewError(types.ErrStoreUnavailable, "failed to clear history").WithCause(err).WithRetryable(true)
	}
	return nil
}
