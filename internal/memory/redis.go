package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session histories in Redis lists.
type RedisStore struct {
	client *redis.Client
	maxLen int
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store. A zero ttl leaves keys without expiry.
func NewRedisStore(client *redis.Client, maxLen int, ttl time.Duration) *RedisStore {
	if maxLen <= 0 {
		maxLen = DefaultMaxTurns
	}
	return &RedisStore{client: client, maxLen: maxLen, ttl: ttl, now: time.Now}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("chat:%s", sessionID)
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, turn Turn, maxLen int) ([]Turn, error) {
	if maxLen <= 0 {
		maxLen = s.maxLen
	}
	if turn.At.IsZero() {
		turn.At = s.now()
	}
	key := sessionKey(sessionID)

	data, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("marshaling turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-maxLen), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	vals := pipe.LRange(ctx, key, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return decodeTurns(vals.Val()), nil
}

func (s *RedisStore) LastN(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	if n <= 0 {
		return []Turn{}, nil
	}
	key := sessionKey(sessionID)

	// LRANGE key -n -1 returns the last n elements
	vals, err := s.client.LRange(ctx, key, int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return decodeTurns(vals), nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	key := sessionKey(sessionID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func decodeTurns(vals []string) []Turn {
	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, t)
	}
	return turns
}
