package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/realtime"
	"planningpoker/internal/repository/memstore"
)

type fixture struct {
	stories  *memstore.StoryRepo
	votes    *memstore.VoteRepo
	sessions *memstore.SessionRepo
	users    *memstore.UserRepo
	bus      *realtime.LocalBus

	sessionSvc *SessionService
	storySvc   *StoryService
	rounds     *RoundService

	pm       model.Identity
	devs     []model.Identity
	outsider model.Identity
	session  *model.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	f := &fixture{
		stories:  memstore.NewStoryRepo(),
		votes:    memstore.NewVoteRepo(),
		sessions: memstore.NewSessionRepo(),
		users:    memstore.NewUserRepo(),
		bus:      realtime.NewLocalBus(logger),
	}

	addUser := func(id, name string, role model.Role) model.Identity {
		u := &model.User{ID: id, Name: name, Email: id + "@example.com", Role: role, CreatedAt: time.Now()}
		require.NoError(t, f.users.Create(ctx, u))
		return u.Identity()
	}
	f.pm = addUser("pm-1", "Pat", model.RoleFacilitator)
	f.devs = []model.Identity{
		addUser("dev-1", "Ada", model.RoleParticipant),
		addUser("dev-2", "Linus", model.RoleParticipant),
		addUser("dev-3", "Grace", model.RoleParticipant),
	}
	f.outsider = addUser("dev-9", "Ken", model.RoleParticipant)

	f.sessionSvc = NewSessionService(f.sessions, logger)
	f.storySvc = NewStoryService(f.stories, f.votes, f.sessions, logger)
	f.storySvc.SetBroadcaster(f.bus)
	f.rounds = NewRoundService(f.stories, f.votes, f.sessions, NewDirectoryService(f.users), logger)
	f.rounds.SetBroadcaster(f.bus)

	session, err := f.sessionSvc.Create(ctx, f.pm, CreateSessionInput{
		Name:         "Sprint 42",
		Participants: []string{"dev-1", "dev-2", "dev-3"},
	})
	require.NoError(t, err)
	f.session = session
	return f
}

func (f *fixture) newStory(t *testing.T, minutes int) *model.Story {
	t.Helper()
	story, err := f.storySvc.Create(context.Background(), f.pm, CreateStoryInput{
		SessionID:        f.session.ID,
		Title:            "Checkout flow",
		TimeLimitMinutes: minutes,
	})
	require.NoError(t, err)
	return story
}

func (f *fixture) votingStory(t *testing.T) *model.Story {
	t.Helper()
	story := f.newStory(t, 5)
	_, err := f.rounds.StartVoting(context.Background(), f.pm, story.ID)
	require.NoError(t, err)
	return story
}

// nextEvent waits for an event of type want, skipping others
func nextEvent(t *testing.T, ch <-chan model.Event, want model.EventType, timeout time.Duration) (model.Event, bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return model.Event{}, false
			}
			if ev.Type == want {
				return ev, true
			}
		case <-deadline:
			return model.Event{}, false
		}
	}
}
