package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planningpoker/internal/cache"
	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

func TestRoundService_RevealEstimate(t *testing.T) {
	tests := []struct {
		name  string
		cards []int
		want  int
	}{
		{"single vote", []int{8}, 8},
		{"even mean", []int{3, 5}, 4},
		{"rounds down below half", []int{3, 5, 5}, 4},
		{"half rounds up", []int{1, 2}, 2},
		{"one and a third", []int{1, 1, 2}, 1},
		{"large cards", []int{13, 21, 21}, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			story := f.votingStory(t)

			for i, card := range tt.cards {
				_, err := f.rounds.SubmitVote(ctx, f.devs[i], story.ID, card, "")
				require.NoError(t, err)
			}

			result, err := f.rounds.Reveal(ctx, f.pm, story.ID)
			require.NoError(t, err)
			require.NotNil(t, result.Story.FinalEstimate)
			assert.Equal(t, tt.want, *result.Story.FinalEstimate)
			assert.Equal(t, model.StoryCompleted, result.Story.Status)
			assert.Equal(t, model.CompletedByReveal, result.Story.CompletedBy)
			assert.Len(t, result.Votes, len(tt.cards))
		})
	}
}

func TestRoundService_StartVoting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.newStory(t, 2)

	_, err := f.rounds.StartVoting(ctx, f.devs[0], story.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	started, err := f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StoryVoting, started.Status)
	require.NotNil(t, started.VotingStartedAt)

	_, err = f.rounds.StartVoting(ctx, f.pm, story.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.rounds.StartVoting(ctx, f.pm, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRoundService_SubmitVoteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.newStory(t, 2)
	story := f.votingStory(t)

	_, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 4, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.rounds.SubmitVote(ctx, f.pm, story.ID, 5, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.rounds.SubmitVote(ctx, f.outsider, story.ID, 5, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.rounds.SubmitVote(ctx, f.devs[0], "missing", 5, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.rounds.SubmitVote(ctx, f.devs[0], pending.ID, 5, "")
	assert.ErrorIs(t, err, ErrRoundClosed)

	vote, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 5, "  needs a spike ")
	require.NoError(t, err)
	assert.NotEmpty(t, vote.ID)
	assert.Equal(t, "needs a spike", vote.Comment)

	_, err = f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 8, "")
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	got, err := f.stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VoteCount)
}

func TestRoundService_RevealRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	_, err := f.rounds.Reveal(ctx, f.pm, story.ID)
	assert.ErrorIs(t, err, ErrNoVotes)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 3, "")
	require.NoError(t, err)

	_, err = f.rounds.Reveal(ctx, f.devs[0], story.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.rounds.SubmitVote(ctx, f.devs[1], story.ID, 3, "")
	assert.ErrorIs(t, err, ErrRoundClosed)
}

func TestRoundService_TimeExpireLeavesNoEstimate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	_, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 5, "")
	require.NoError(t, err)

	expired, err := f.rounds.TimeExpire(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StoryCompleted, expired.Status)
	assert.Equal(t, model.CompletedByTimeout, expired.CompletedBy)
	assert.Nil(t, expired.FinalEstimate)

	_, err = f.rounds.TimeExpire(ctx, story.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRoundService_VotesAreBlindUntilCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	_, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 5, "mine")
	require.NoError(t, err)
	_, err = f.rounds.SubmitVote(ctx, f.devs[1], story.ID, 13, "theirs")
	require.NoError(t, err)

	votes, err := f.rounds.Votes(ctx, f.devs[0], story.ID)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	for _, v := range votes {
		if v.UserID == f.devs[0].UserID {
			assert.Equal(t, 5, v.Value)
		} else {
			assert.Zero(t, v.Value)
			assert.Empty(t, v.Comment)
		}
	}

	other, err := f.rounds.UserVote(ctx, f.devs[0], story.ID, f.devs[1].UserID)
	require.NoError(t, err)
	assert.Zero(t, other.Value)

	_, err = f.rounds.UserVote(ctx, f.devs[0], story.ID, f.devs[2].UserID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	require.NoError(t, err)

	other, err = f.rounds.UserVote(ctx, f.devs[0], story.ID, f.devs[1].UserID)
	require.NoError(t, err)
	assert.Equal(t, 13, other.Value)
}

func TestRoundService_Status(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	status, err := f.rounds.Status(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 0, status.VotedCount)
	assert.False(t, status.AllVoted)
	assert.InDelta(t, 300, status.RemainingSeconds, 2)
	require.Len(t, status.Participants, 3)
	assert.Equal(t, "dev-1", status.Participants[0].UserID)

	for _, dev := range f.devs {
		_, err := f.rounds.SubmitVote(ctx, dev, story.ID, 2, "")
		require.NoError(t, err)
	}

	status, err = f.rounds.Status(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.VotedCount)
	assert.True(t, status.AllVoted)
	for _, p := range status.Participants {
		assert.True(t, p.HasVoted)
		assert.Nil(t, p.Vote)
	}
}

func TestRoundService_StatusRemainingUsesStartTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.newStory(t, 1)

	start := time.Now().Add(-45 * time.Second)
	f.rounds.now = func() time.Time { return start }
	_, err := f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)

	f.rounds.now = time.Now
	status, err := f.rounds.Status(ctx, story.ID)
	require.NoError(t, err)
	assert.InDelta(t, 15, status.RemainingSeconds, 1)
}

func TestRoundService_PublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	story := f.newStory(t, 3)

	events, _, err := f.bus.Subscribe(ctx, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 8, "")
	require.NoError(t, err)
	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	require.NoError(t, err)

	for _, want := range []model.EventType{model.EventVotingStarted, model.EventVoteCast, model.EventRevealed} {
		ev, ok := nextEvent(t, events, want, time.Second)
		require.True(t, ok, "missing %s", want)
		assert.Equal(t, story.ID, ev.StoryID)
	}
}

// closingStoryRepo runs beforeAddVote once, just before the tally bump
type closingStoryRepo struct {
	repository.StoryRepo
	beforeAddVote func()
}

func (r *closingStoryRepo) AddVote(ctx context.Context, id, userID string, value int) (bool, error) {
	if r.beforeAddVote != nil {
		fn := r.beforeAddVote
		r.beforeAddVote = nil
		fn()
	}
	return r.StoryRepo.AddVote(ctx, id, userID, value)
}

func TestRoundService_RevealDuringLateVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	_, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 3, "")
	require.NoError(t, err)

	var (
		revealed *model.RevealResult
		inFlight *model.RoundStatus
	)
	stories := &closingStoryRepo{StoryRepo: f.stories}
	stories.beforeAddVote = func() {
		var err error
		revealed, err = f.rounds.Reveal(ctx, f.pm, story.ID)
		require.NoError(t, err)
		inFlight, err = f.rounds.Status(ctx, story.ID)
		require.NoError(t, err)
	}
	late := NewRoundService(stories, f.votes, f.sessions, NewDirectoryService(f.users), zap.NewNop())

	_, err = late.SubmitVote(ctx, f.devs[1], story.ID, 21, "")
	assert.ErrorIs(t, err, ErrRoundClosed)

	require.NotNil(t, revealed)
	require.NotNil(t, revealed.Story.FinalEstimate)
	assert.Equal(t, 3, *revealed.Story.FinalEstimate)
	require.Len(t, revealed.Votes, 1, "reveal lists a vote the estimate did not count")
	assert.Equal(t, "dev-1", revealed.Votes[0].UserID)

	require.NotNil(t, inFlight)
	assert.Equal(t, 1, inFlight.VotedCount)

	votes, err := f.rounds.Votes(ctx, f.pm, story.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
	_, err = f.rounds.UserVote(ctx, f.pm, story.ID, "dev-2")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := f.votes.ListByStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1, "late vote was not withdrawn")
}

func TestRoundService_SubmitVoteUsesRoundCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rc := cache.NewRoundCache(client)
	f.rounds.SetRoundCache(rc)

	story := f.votingStory(t)
	meta, err := rc.GetMeta(ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, f.session.ID, meta.SessionID)
	assert.True(t, meta.Open())

	// a miss falls back to the store and refills the cache
	require.NoError(t, rc.Delete(ctx, story.ID))
	_, err = f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 5, "")
	require.NoError(t, err)
	meta, err = rc.GetMeta(ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, meta)

	// the cached status gates votes without reading the story
	require.NoError(t, rc.SetStatus(ctx, story.ID, model.StoryCompleted))
	_, err = f.rounds.SubmitVote(ctx, f.devs[1], story.ID, 5, "")
	assert.ErrorIs(t, err, ErrRoundClosed)

	_, err = f.rounds.SubmitVote(ctx, f.devs[1], "missing", 5, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	require.NoError(t, err)
	meta, err = rc.GetMeta(ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.False(t, meta.Open())
}

func TestRoundService_MarkAllVotedOncePerRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	story := f.votingStory(t)

	first, err := f.rounds.MarkAllVoted(ctx, story.ID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := f.rounds.MarkAllVoted(ctx, story.ID)
	require.NoError(t, err)
	assert.False(t, again)
}
