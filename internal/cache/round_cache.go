package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"planningpoker/internal/model"
)

// RoundCache handles Redis operations for running rounds
type RoundCache interface {
	SetMeta(ctx context.Context, meta *model.RoundMeta) error
	GetMeta(ctx context.Context, storyID string) (*model.RoundMeta, error)
	SetStatus(ctx context.Context, storyID string, status model.StoryStatus) error
	// MarkAllVoted returns true only for the first caller of a round
	MarkAllVoted(ctx context.Context, storyID string) (bool, error)
	Delete(ctx context.Context, storyID string) error
}

type roundCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoundCache creates a new round cache
func NewRoundCache(client *redis.Client) RoundCache {
	return &roundCache{
		client: client,
		ttl:    24 * time.Hour,
	}
}

func (c *roundCache) metaKey(storyID string) string {
	return fmt.Sprintf("story:%s:round", storyID)
}

func (c *roundCache) allVotedKey(storyID string) string {
	return fmt.Sprintf("story:%s:allvoted", storyID)
}

func (c *roundCache) SetMeta(ctx context.Context, meta *model.RoundMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.metaKey(meta.StoryID), data, c.ttl).Err()
}

func (c *roundCache) GetMeta(ctx context.Context, storyID string) (*model.RoundMeta, error) {
	data, err := c.client.Get(ctx, c.metaKey(storyID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.RoundMeta
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *roundCache) SetStatus(ctx context.Context, storyID string, status model.StoryStatus) error {
	meta, err := c.GetMeta(ctx, storyID)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}
	meta.Status = status
	return c.SetMeta(ctx, meta)
}

func (c *roundCache) MarkAllVoted(ctx context.Context, storyID string) (bool, error) {
	return c.client.SetNX(ctx, c.allVotedKey(storyID), time.Now().Unix(), c.ttl).Result()
}

func (c *roundCache) Delete(ctx context.Context, storyID string) error {
	return c.client.Del(ctx, c.metaKey(storyID), c.allVotedKey(storyID)).Err()
}
