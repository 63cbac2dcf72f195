package model

import "time"

type StoryStatus string

const (
	StoryPending   StoryStatus = "pending"
	StoryVoting    StoryStatus = "voting"
	StoryCompleted StoryStatus = "completed"
)

// CompletionReason records which transition closed the round
type CompletionReason string

const (
	CompletedByReveal  CompletionReason = "reveal"
	CompletedByTimeout CompletionReason = "timeout"
)

type Story struct {
	ID               string           `json:"storyId" bson:"storyId"`
	SessionID        string           `json:"sessionId" bson:"sessionId"`
	Title            string           `json:"title" bson:"title"`
	Description      string           `json:"description" bson:"description"`
	Status           StoryStatus      `json:"status" bson:"status"`
	TimeLimitMinutes int              `json:"timeLimit" bson:"timeLimit"`
	InitialEstimate  *int             `json:"initialEstimate" bson:"initialEstimate"`
	FinalEstimate    *int             `json:"finalEstimate" bson:"finalEstimate"`
	VotingStartedAt  *time.Time       `json:"votingStartedAt,omitempty" bson:"votingStartedAt,omitempty"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	CompletedBy      CompletionReason `json:"completedBy,omitempty" bson:"completedBy,omitempty"`
	AllVotedAt       *time.Time       `json:"allVotedAt,omitempty" bson:"allVotedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt" bson:"createdAt"`

	// Running tally of committed votes. Only moves while Status is voting.
	VoteCount int `json:"voteCount" bson:"voteCount"`
	VoteSum   int `json:"-" bson:"voteSum"`
	// VoterIDs lists the users whose vote is in the tally, in commit order
	VoterIDs []string `json:"-" bson:"voterIds"`
}

// Counted reports whether userID's vote is part of the tally
func (s *Story) Counted(userID string) bool {
	for _, id := range s.VoterIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CountedVotes drops votes that never made it into the tally
func (s *Story) CountedVotes(votes []*Vote) []*Vote {
	out := make([]*Vote, 0, len(votes))
	for _, v := range votes {
		if s.Counted(v.UserID) {
			out = append(out, v)
		}
	}
	return out
}

// TimeLimit returns the round duration
func (s *Story) TimeLimit() time.Duration {
	return time.Duration(s.TimeLimitMinutes) * time.Minute
}

// RemainingSeconds is the countdown value at now. Zero outside a running round.
func (s *Story) RemainingSeconds(now time.Time) int {
	if s.Status != StoryVoting || s.VotingStartedAt == nil {
		return 0
	}
	left := s.TimeLimit() - now.Sub(*s.VotingStartedAt)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

// EstimateFromTally rounds sum/count half-up. count must be positive.
func EstimateFromTally(sum, count int) int {
	// floor(sum/count + 1/2) == floor((2*sum + count) / (2*count)) for non-negative sums
	return (2*sum + count) / (2 * count)
}
