package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventVotingStarted EventType = "voting_started"
	EventVoteCast      EventType = "vote_cast"
	EventAllVoted      EventType = "all_voted"
	EventRoundExpired  EventType = "round_expired"
	EventRevealed      EventType = "revealed"
	EventStoryDeleted  EventType = "story_deleted"
	EventRoundState    EventType = "round_state"
)

// Event is a story-scoped notification pushed to watchers
type Event struct {
	Type    EventType       `json:"type"`
	StoryID string          `json:"storyId"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent marshals payload into an event envelope
func NewEvent(t EventType, storyID string, payload interface{}) (Event, error) {
	ev := Event{Type: t, StoryID: storyID, At: time.Now()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = data
	}
	return ev, nil
}
