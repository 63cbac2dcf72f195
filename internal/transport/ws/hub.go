package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/service"
)

// Hub manages WebSocket connections per story. It holds one event
// subscription for each story with at least one client.
type Hub struct {
	stories map[string]map[*Connection]struct{}
	subs    map[string]func()

	mu     sync.RWMutex
	source service.EventSource
	logger *zap.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	StoryID string
	UserID  string
	Send    chan []byte
}

// NewHub creates a new WebSocket hub fed by source
func NewHub(source service.EventSource, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		stories: make(map[string]map[*Connection]struct{}),
		subs:    make(map[string]func()),
		source:  source,
		logger:  logger,
	}
}

// Register adds a connection. The first client of a story opens its subscription.
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stories[conn.StoryID] == nil {
		if h.source != nil {
			events, cancel, err := h.source.Subscribe(context.Background(), conn.StoryID)
			if err != nil {
				return err
			}
			h.subs[conn.StoryID] = cancel
			go h.forward(conn.StoryID, events)
		}
		h.stories[conn.StoryID] = make(map[*Connection]struct{})
	}
	h.stories[conn.StoryID][conn] = struct{}{}

	h.logger.Debug("client joined story",
		zap.String("story_id", conn.StoryID),
		zap.String("user_id", conn.UserID),
	)
	return nil
}

// Unregister removes a connection and closes its send channel. The last
// client of a story closes the subscription.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.stories[conn.StoryID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	close(conn.Send)

	if len(conns) == 0 {
		delete(h.stories, conn.StoryID)
		if cancel, ok := h.subs[conn.StoryID]; ok {
			cancel()
			delete(h.subs, conn.StoryID)
		}
	}
	h.logger.Debug("client left story",
		zap.String("story_id", conn.StoryID),
		zap.String("user_id", conn.UserID),
	)
}

// ClientCount returns the number of clients watching a story
func (h *Hub) ClientCount(storyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stories[storyID])
}

// BroadcastToStory sends an event to every local client of its story
func (h *Hub) BroadcastToStory(ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("story_id", ev.StoryID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.stories[ev.StoryID] {
		select {
		case conn.Send <- data:
		default:
			// Drop message if buffer full
		}
	}
}

// SendTo delivers one event to a single connection
func (h *Hub) SendTo(conn *Connection, ev model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.stories[conn.StoryID][conn]; !ok {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

func (h *Hub) forward(storyID string, events <-chan model.Event) {
	for ev := range events {
		h.BroadcastToStory(ev)
	}
	h.logger.Debug("story subscription closed", zap.String("story_id", storyID))
}
