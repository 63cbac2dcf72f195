package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

type voteKey struct {
	storyID string
	userID  string
}

type VoteRepo struct {
	mu    sync.RWMutex
	votes map[voteKey]*model.Vote
}

var _ repository.VoteRepo = (*VoteRepo)(nil)

func NewVoteRepo() *VoteRepo {
	return &VoteRepo{votes: make(map[voteKey]*model.Vote)}
}

func (r *VoteRepo) Insert(_ context.Context, vote *model.Vote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := voteKey{vote.StoryID, vote.UserID}
	if _, exists := r.votes[key]; exists {
		return repository.ErrDuplicateVote
	}
	if vote.CreatedAt.IsZero() {
		vote.CreatedAt = time.Now()
	}
	c := *vote
	r.votes[key] = &c
	return nil
}

func (r *VoteRepo) FindByStoryAndUser(_ context.Context, storyID, userID string) (*model.Vote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.votes[voteKey{storyID, userID}]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *VoteRepo) ListByStory(_ context.Context, storyID string) ([]*model.Vote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Vote{}
	for k, v := range r.votes {
		if k.storyID == storyID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *VoteRepo) Delete(_ context.Context, voteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.votes {
		if v.ID == voteID {
			delete(r.votes, k)
			return nil
		}
	}
	return nil
}

func (r *VoteRepo) DeleteByStory(_ context.Context, storyID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.votes {
		if k.storyID == storyID {
			delete(r.votes, k)
			n++
		}
	}
	return n, nil
}
