package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ollama-chat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const historyTTL = 24 * time.Hour

// HistoryCache keeps a chat's ordered message history in redis so repeated
// history reads don't hit postgres. The whole list is invalidated on every
// insert; message immutability makes anything fancier unnecessary.
type HistoryCache struct {
	client *redis.Client
}

func NewHistoryCache(client *redis.Client) *HistoryCache {
	return &HistoryCache{client: client}
}

func (c *HistoryCache) historyKey(chatId uuid.UUID) string {
	return fmt.Sprintf("chat:%s:history", chatId)
}

func (c *HistoryCache) GetHistory(ctx context.Context, chatId uuid.UUID) ([]*entity.ChatMessage, error) {
	data, err := c.client.Get(ctx, c.historyKey(chatId)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get history from cache: %w", err)
	}

	var messages []*entity.ChatMessage
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return messages, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, chatId uuid.UUID, messages []*entity.ChatMessage) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.historyKey(chatId), data, historyTTL).Err()
}

func (c *HistoryCache) Invalidate(ctx context.Context, chatId uuid.UUID) error {
	return c.client.Del(ctx, c.historyKey(chatId)).Err()
}
