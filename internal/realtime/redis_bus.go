package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"planningpoker/internal/model"
)

const (
	channelPrefix  = "poker:story:"
	publishTimeout = 5 * time.Second
)

// RedisBus implements Bus over Redis pub/sub so every instance sees every
// event for the stories its clients watch.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus creates a Redis pub/sub bridge for story events
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

func channelFor(storyID string) string {
	return channelPrefix + storyID
}

func (b *RedisBus) Publish(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, channelFor(ev.StoryID), body).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, storyID string) (<-chan model.Event, func(), error) {
	ctx, cancelCtx := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(ctx, channelFor(storyID))
	// Wait for the subscription confirmation so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan model.Event, subscriberBuffer)
	ch := pubsub.Channel()
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev model.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("bad event payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancelCtx, nil
}
