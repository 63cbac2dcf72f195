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
)

func newTestMonitor(t *testing.T, f *fixture, cfg MonitorConfig) *RoundMonitor {
	t.Helper()
	m := NewRoundMonitor(f.rounds, cfg, zap.NewNop())
	m.SetEventSource(f.bus)
	m.SetBroadcaster(f.bus)
	f.rounds.SetWatcher(m)
	f.storySvc.SetWatcher(m)
	t.Cleanup(m.Close)
	return m
}

func TestRoundMonitor_AllVotedFiresOnce(t *testing.T) {
	f := newFixture(t)
	m := newTestMonitor(t, f, MonitorConfig{TickInterval: time.Hour, PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	story := f.newStory(t, 5)

	events, _, err := f.bus.Subscribe(ctx, story.ID)
	require.NoError(t, err)

	_, err = f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	assert.True(t, m.Watching(story.ID))

	for _, dev := range f.devs[:2] {
		_, err := f.rounds.SubmitVote(ctx, dev, story.ID, 5, "")
		require.NoError(t, err)
	}
	_, ok := nextEvent(t, events, model.EventAllVoted, 100*time.Millisecond)
	assert.False(t, ok, "all_voted before the last vote")

	_, err = f.rounds.SubmitVote(ctx, f.devs[2], story.ID, 8, "")
	require.NoError(t, err)

	_, ok = nextEvent(t, events, model.EventAllVoted, time.Second)
	require.True(t, ok)
	_, ok = nextEvent(t, events, model.EventAllVoted, 100*time.Millisecond)
	assert.False(t, ok, "all_voted fired twice")

	require.Eventually(t, func() bool { return !m.Watching(story.ID) }, time.Second, 5*time.Millisecond)

	// quorum is advisory; the round stays open for the facilitator
	got, err := f.stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StoryVoting, got.Status)
}

func TestRoundMonitor_ExpiresWithoutQuorum(t *testing.T) {
	f := newFixture(t)
	newTestMonitor(t, f, MonitorConfig{TickInterval: time.Millisecond, PollInterval: time.Hour})
	ctx := context.Background()
	story := f.newStory(t, 1)

	_, err := f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	_, err = f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 3, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := f.stories.GetByID(ctx, story.ID)
		return err == nil && got.Status == model.StoryCompleted
	}, 2*time.Second, 5*time.Millisecond)

	got, err := f.stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CompletedByTimeout, got.CompletedBy)
	assert.Nil(t, got.FinalEstimate)
}

func TestRoundMonitor_StopsOnReveal(t *testing.T) {
	f := newFixture(t)
	m := newTestMonitor(t, f, MonitorConfig{TickInterval: time.Hour, PollInterval: time.Hour})
	ctx := context.Background()
	story := f.votingStory(t)
	require.True(t, m.Watching(story.ID))

	_, err := f.rounds.SubmitVote(ctx, f.devs[0], story.ID, 3, "")
	require.NoError(t, err)
	_, err = f.rounds.Reveal(ctx, f.pm, story.ID)
	require.NoError(t, err)

	assert.False(t, m.Watching(story.ID))
}

func TestRoundMonitor_Resume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	voting := f.votingStory(t)
	f.newStory(t, 1)

	m := newTestMonitor(t, f, MonitorConfig{TickInterval: time.Hour, PollInterval: time.Hour})
	n, err := m.Resume(ctx, f.stories)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, m.Watching(voting.ID))

	m.Close()
	assert.False(t, m.Watching(voting.ID))
	m.Watch(voting)
	assert.False(t, m.Watching(voting.ID))
}

func TestRoundMonitor_AllVotedOnceAcrossMonitors(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rc := cache.NewRoundCache(client)

	cfg := MonitorConfig{TickInterval: time.Hour, PollInterval: time.Hour}
	f.rounds.SetRoundCache(rc)
	newTestMonitor(t, f, cfg)
	second := NewRoundMonitor(f.rounds, cfg, zap.NewNop())
	second.SetEventSource(f.bus)
	second.SetBroadcaster(f.bus)
	t.Cleanup(second.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	story := f.newStory(t, 5)
	events, _, err := f.bus.Subscribe(ctx, story.ID)
	require.NoError(t, err)

	started, err := f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	second.Watch(started)

	for _, dev := range f.devs {
		_, err := f.rounds.SubmitVote(ctx, dev, story.ID, 2, "")
		require.NoError(t, err)
	}

	_, ok := nextEvent(t, events, model.EventAllVoted, time.Second)
	require.True(t, ok)
	_, ok = nextEvent(t, events, model.EventAllVoted, 150*time.Millisecond)
	assert.False(t, ok, "second instance announced quorum again")
}

func TestRoundMonitor_ResumeAfterQuorumStaysQuiet(t *testing.T) {
	f := newFixture(t)
	cfg := MonitorConfig{TickInterval: time.Hour, PollInterval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	story := f.newStory(t, 5)
	events, _, err := f.bus.Subscribe(ctx, story.ID)
	require.NoError(t, err)

	before := newTestMonitor(t, f, cfg)
	_, err = f.rounds.StartVoting(ctx, f.pm, story.ID)
	require.NoError(t, err)
	for _, dev := range f.devs {
		_, err := f.rounds.SubmitVote(ctx, dev, story.ID, 5, "")
		require.NoError(t, err)
	}
	_, ok := nextEvent(t, events, model.EventAllVoted, time.Second)
	require.True(t, ok)
	before.Close()

	got, err := f.stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AllVotedAt)

	// a restarted instance without Redis picks the round up again
	after := newTestMonitor(t, f, cfg)
	n, err := after.Resume(ctx, f.stories)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok = nextEvent(t, events, model.EventAllVoted, 150*time.Millisecond)
	assert.False(t, ok, "all_voted announced again after resume")
}
