// Package realtime carries story-scoped events between the voting services,
// the round monitor and websocket clients.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"planningpoker/internal/model"
)

const subscriberBuffer = 64

// Bus publishes and subscribes to story events
type Bus interface {
	Publish(ctx context.Context, ev model.Event) error
	// Subscribe returns a channel of events for storyID. The channel is
	// closed after cancel is called or ctx is done.
	Subscribe(ctx context.Context, storyID string) (<-chan model.Event, func(), error)
}

// LocalBus fans events out inside one process. Slow subscribers drop events
// rather than block publishers.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[string]map[*localSub]struct{}
	logger *zap.Logger
}

type localSub struct {
	ch   chan model.Event
	once sync.Once
}

// NewLocalBus creates an in-process bus
func NewLocalBus(logger *zap.Logger) *LocalBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalBus{
		subs:   make(map[string]map[*localSub]struct{}),
		logger: logger,
	}
}

func (b *LocalBus) Publish(_ context.Context, ev model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[ev.StoryID] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("story_id", ev.StoryID),
				zap.String("event", string(ev.Type)),
			)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, storyID string) (<-chan model.Event, func(), error) {
	sub := &localSub{ch: make(chan model.Event, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[storyID] == nil {
		b.subs[storyID] = make(map[*localSub]struct{})
	}
	b.subs[storyID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[storyID], sub)
			if len(b.subs[storyID]) == 0 {
				delete(b.subs, storyID)
			}
			close(sub.ch)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.ch, cancel, nil
}
