package model

// ParticipantStatus is a developer's progress in the current round
type ParticipantStatus struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	HasVoted bool   `json:"hasVoted"`
	Vote     *int   `json:"vote,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// RoundStatus is the derived view clients poll or receive on connect
type RoundStatus struct {
	Story            *Story              `json:"story"`
	Participants     []ParticipantStatus `json:"participants"`
	VotedCount       int                 `json:"votedCount"`
	Total            int                 `json:"total"`
	AllVoted         bool                `json:"allVoted"`
	RemainingSeconds int                 `json:"remainingSeconds"`
}

// RevealResult is returned when the facilitator closes a round
type RevealResult struct {
	Story *Story  `json:"story"`
	Votes []*Vote `json:"votes"`
}

// RoundMeta is the cached summary of a running round
type RoundMeta struct {
	StoryID          string      `json:"storyId"`
	SessionID        string      `json:"sessionId"`
	Status           StoryStatus `json:"status"`
	TimeLimitMinutes int         `json:"timeLimit"`
	VotingStartedAt  int64       `json:"votingStartedAt"`
}

// Open reports whether the cached round still takes votes
func (m *RoundMeta) Open() bool {
	return m.Status == StoryVoting
}
