package service

import (
	"context"

	"planningpoker/internal/model"
)

// Broadcaster publishes story events (avoids importing transport packages)
type Broadcaster interface {
	Publish(ctx context.Context, ev model.Event) error
}

// EventSource delivers the events of one story
type EventSource interface {
	Subscribe(ctx context.Context, storyID string) (<-chan model.Event, func(), error)
}

// RoundWatcher is told when a round opens and when it should stop watching
type RoundWatcher interface {
	Watch(story *model.Story)
	Stop(storyID string)
}
