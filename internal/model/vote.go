package model

import "time"

// CardValues is the deck a participant can play
var CardValues = []int{1, 2, 3, 5, 8, 13, 21}

func IsCardValue(v int) bool {
	for _, c := range CardValues {
		if c == v {
			return true
		}
	}
	return false
}

// Vote is immutable once stored
type Vote struct {
	ID        string    `json:"voteId" bson:"voteId"`
	StoryID   string    `json:"storyId" bson:"storyId"`
	UserID    string    `json:"userId" bson:"userId"`
	Value     int       `json:"value" bson:"value"`
	Comment   string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Blind strips the value and comment so others cannot see an open round's cards
func (v *Vote) Blind() *Vote {
	return &Vote{
		ID:        v.ID,
		StoryID:   v.StoryID,
		UserID:    v.UserID,
		CreatedAt: v.CreatedAt,
	}
}
