package chatbot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pkgredis "github.com/tsheringp/pharmstock-backend/pkg/redis"
)

// redisHistory stores conversation turns as a JSON blob per conversation key
// with a sliding TTL.
type redisHistory struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisHistory builds a HistoryStore backed by the shared Redis client.
func NewRedisHistory(client *pkgredis.Client, ttl time.Duration) (HistoryStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisHistory{client: client, ttl: ttl}, nil
}

func (h *redisHistory) Load(ctx context.Context, userID, conversationID string) ([]Turn, error) {
	raw, err := h.client.Get(ctx, h.client.ConversationKey(userID, conversationID))
	if err != nil {
		if pkgredis.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return turns, nil
}

func (h *redisHistory) Save(ctx context.Context, userID, conversationID string, turns []Turn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	key := h.client.ConversationKey(userID, conversationID)
	if err := h.client.Set(ctx, key, payload, h.ttl); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}
