package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/persistence"
)

// RedisStore keeps the origin in one Redis hash and announces changes on a
// pub/sub channel, so contexts in different processes or hosts stay in step.
type RedisStore struct {
	rdb     *persistence.Redis
	hashKey string
	channel string
	id      string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	subs   []*redis.PubSub
}

type redisChange struct {
	Keys      []string `json:"keys"`
	ContextID string   `json:"context_id"`
}

// NewRedisStore opens a context on the origin named by namespace.
func NewRedisStore(rdb *persistence.Redis, namespace string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		rdb:     rdb,
		hashKey: namespace + ":session",
		channel: namespace + ":session:changes",
		id:      newContextID(),
		logger:  logger,
	}
}

func (s *RedisStore) ContextID() string { return s.id }

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Client.HGet(ctx, s.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) GetAll(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.rdb.Client.HMGet(ctx, s.hashKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[keys[i]] = str
		}
	}
	return out, nil
}

func (s *RedisStore) SetAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields := make(map[string]any, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		fields[k] = v
		keys = append(keys, k)
	}
	msg, err := s.message(keys)
	if err != nil {
		return err
	}
	_, err = s.rdb.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.hashKey, fields)
		p.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	msg, err := s.message(keys)
	if err != nil {
		return err
	}
	_, err = s.rdb.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, s.hashKey, keys...)
		p.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove: %w", err)
	}
	return nil
}

func (s *RedisStore) message(keys []string) (string, error) {
	b, err := json.Marshal(redisChange{Keys: keys, ContextID: s.id})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Subscribe returns once the channel subscription is confirmed.
func (s *RedisStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ps := s.rdb.Client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	s.subs = append(s.subs, ps)

	ch := make(chan Change, changeBuffer)
	go func() {
		defer close(ch)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				ps.Close()
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var rc redisChange
				if err := json.Unmarshal([]byte(m.Payload), &rc); err != nil {
					s.logger.Warn("malformed change notification", zap.Error(err))
					continue
				}
				if rc.ContextID == s.id {
					continue
				}
				for _, k := range rc.Keys {
					trySend(ch, Change{Key: k, ContextID: rc.ContextID})
				}
			}
		}
	}()
	return ch, nil
}

// Close ends subscriptions. The shared client is owned by the caller.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, ps := range s.subs {
		// Already closed when its context ended first.
		_ = ps.Close()
	}
	s.subs = nil
	return nil
}
