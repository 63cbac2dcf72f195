package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planningpoker/internal/model"
)

func TestSessionService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessionSvc.Create(ctx, f.devs[0], CreateSessionInput{Name: "nope"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.sessionSvc.Create(ctx, f.pm, CreateSessionInput{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	session, err := f.sessionSvc.Create(ctx, f.pm, CreateSessionInput{
		Name:         "Refinement",
		Participants: []string{"dev-1", "dev-1", "", "dev-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-1", "dev-2", "pm-1"}, session.Participants)
	assert.Equal(t, model.SessionActive, session.Status)

	active, err := f.sessionSvc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = f.sessionSvc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoryService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	estimate := 5

	tests := []struct {
		name    string
		caller  model.Identity
		input   CreateStoryInput
		wantErr error
	}{
		{"participant cannot create", f.devs[0], CreateStoryInput{SessionID: f.session.ID, Title: "x", TimeLimitMinutes: 1}, ErrForbidden},
		{"missing title", f.pm, CreateStoryInput{SessionID: f.session.ID, TimeLimitMinutes: 1}, ErrValidation},
		{"missing session id", f.pm, CreateStoryInput{Title: "x", TimeLimitMinutes: 1}, ErrValidation},
		{"zero time limit", f.pm, CreateStoryInput{SessionID: f.session.ID, Title: "x"}, ErrValidation},
		{"unknown session", f.pm, CreateStoryInput{SessionID: "missing", Title: "x", TimeLimitMinutes: 1}, ErrNotFound},
		{"valid", f.pm, CreateStoryInput{SessionID: f.session.ID, Title: "Login", TimeLimitMinutes: 2, InitialEstimate: &estimate}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			story, err := f.storySvc.Create(ctx, tt.caller, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.StoryPending, story.Status)
			assert.Nil(t, story.FinalEstimate)
			assert.Equal(t, 5, *story.InitialEstimate)
		})
	}
}

func TestStoryService_ListBySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.storySvc.ListBySession(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	first := f.newStory(t, 1)
	time.Sleep(time.Millisecond)
	second := f.newStory(t, 1)

	stories, err := f.storySvc.ListBySession(ctx, f.session.ID)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, first.ID, stories[0].ID)
	assert.Equal(t, second.ID, stories[1].ID)
}

func TestStoryService_DeleteRemovesVotes(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	story := f.votingStory(t)

	for _, dev := range f.devs[:2] {
		_, err := f.rounds.SubmitVote(ctx, dev, story.ID, 3, "")
		require.NoError(t, err)
	}
	events, _, err := f.bus.Subscribe(ctx, story.ID)
	require.NoError(t, err)

	err = f.storySvc.Delete(ctx, f.devs[0], story.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.storySvc.Delete(ctx, f.pm, story.ID))

	_, err = f.storySvc.Get(ctx, story.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	votes, err := f.votes.ListByStory(ctx, story.ID)
	require.NoError(t, err)
	assert.Empty(t, votes)

	_, ok := nextEvent(t, events, model.EventStoryDeleted, time.Second)
	assert.True(t, ok)

	err = f.storySvc.Delete(ctx, f.pm, story.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
