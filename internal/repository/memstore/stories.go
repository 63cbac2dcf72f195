// Package memstore holds in-memory repository implementations with the same
// conditional-update semantics as the Mongo repositories.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

type StoryRepo struct {
	mu      sync.RWMutex
	stories map[string]*model.Story
}

var _ repository.StoryRepo = (*StoryRepo)(nil)

func NewStoryRepo() *StoryRepo {
	return &StoryRepo{stories: make(map[string]*model.Story)}
}

func (r *StoryRepo) Create(_ context.Context, story *model.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now()
	}
	r.stories[story.ID] = cloneStory(story)
	return nil
}

func (r *StoryRepo) GetByID(_ context.Context, id string) (*model.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	story, ok := r.stories[id]
	if !ok {
		return nil, nil
	}
	return cloneStory(story), nil
}

func (r *StoryRepo) ListBySession(_ context.Context, sessionID string) ([]*model.Story, error) {
	return r.filter(func(s *model.Story) bool { return s.SessionID == sessionID }), nil
}

func (r *StoryRepo) ListByStatus(_ context.Context, status model.StoryStatus) ([]*model.Story, error) {
	return r.filter(func(s *model.Story) bool { return s.Status == status }), nil
}

func (r *StoryRepo) filter(keep func(*model.Story) bool) []*model.Story {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Story{}
	for _, s := range r.stories {
		if keep(s) {
			out = append(out, cloneStory(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *StoryRepo) StartVoting(_ context.Context, id string, at time.Time) (*model.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok || story.Status != model.StoryPending {
		return nil, nil
	}
	story.Status = model.StoryVoting
	story.VotingStartedAt = &at
	story.VoteCount = 0
	story.VoteSum = 0
	story.VoterIDs = []string{}
	return cloneStory(story), nil
}

func (r *StoryRepo) AddVote(_ context.Context, id, userID string, value int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok || story.Status != model.StoryVoting || story.Counted(userID) {
		return false, nil
	}
	story.VoteCount++
	story.VoteSum += value
	story.VoterIDs = append(story.VoterIDs, userID)
	return true, nil
}

func (r *StoryRepo) Reveal(_ context.Context, id string, at time.Time) (*model.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok || story.Status != model.StoryVoting || story.VoteCount < 1 {
		return nil, nil
	}
	estimate := model.EstimateFromTally(story.VoteSum, story.VoteCount)
	story.Status = model.StoryCompleted
	story.CompletedBy = model.CompletedByReveal
	story.CompletedAt = &at
	story.FinalEstimate = &estimate
	return cloneStory(story), nil
}

func (r *StoryRepo) Expire(_ context.Context, id string, at time.Time) (*model.Story, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok || story.Status != model.StoryVoting {
		return nil, nil
	}
	story.Status = model.StoryCompleted
	story.CompletedBy = model.CompletedByTimeout
	story.CompletedAt = &at
	return cloneStory(story), nil
}

func (r *StoryRepo) MarkAllVoted(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	story, ok := r.stories[id]
	if !ok || story.Status != model.StoryVoting || story.AllVotedAt != nil {
		return false, nil
	}
	story.AllVotedAt = &at
	return true, nil
}

func (r *StoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stories, id)
	return nil
}

func cloneStory(s *model.Story) *model.Story {
	c := *s
	if s.InitialEstimate != nil {
		v := *s.InitialEstimate
		c.InitialEstimate = &v
	}
	if s.FinalEstimate != nil {
		v := *s.FinalEstimate
		c.FinalEstimate = &v
	}
	if s.VotingStartedAt != nil {
		t := *s.VotingStartedAt
		c.VotingStartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.AllVotedAt != nil {
		t := *s.AllVotedAt
		c.AllVotedAt = &t
	}
	if s.VoterIDs != nil {
		c.VoterIDs = append([]string(nil), s.VoterIDs...)
	}
	return &c
}
