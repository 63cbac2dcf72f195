package model

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a planning meeting owned by one facilitator
type Session struct {
	ID           string        `json:"sessionId" bson:"sessionId"`
	Name         string        `json:"name" bson:"name"`
	Description  string        `json:"description" bson:"description"`
	CreatedBy    string        `json:"createdBy" bson:"createdBy"`
	Participants []string      `json:"participants" bson:"participants"`
	Status       SessionStatus `json:"status" bson:"status"`
	CreatedAt    time.Time     `json:"createdAt" bson:"createdAt"`
}

func (s *Session) HasParticipant(userID string) bool {
	for _, id := range s.Participants {
		if id == userID {
			return true
		}
	}
	return false
}
