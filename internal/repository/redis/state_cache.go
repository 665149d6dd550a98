package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func stateKey(gameID string) string { return "game:" + gameID + ":state" }

// SetState caches the state echo payload for a game with a TTL.
func (c *Client) SetState(ctx context.Context, gameID string, payload json.RawMessage, ttl time.Duration) error {
	return c.rdb.Set(ctx, stateKey(gameID), []byte(payload), ttl).Err()
}

// GetState retrieves the cached state payload. A cache miss returns
// (nil, nil).
func (c *Client) GetState(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state: %w", err)
	}
	return json.RawMessage(data), nil
}

// Invalidate drops the cached state for a game.
func (c *Client) Invalidate(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID)).Err()
}
