package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

// RoundCloser is the part of RoundService the monitor drives
type RoundCloser interface {
	Status(ctx context.Context, storyID string) (*model.RoundStatus, error)
	TimeExpire(ctx context.Context, storyID string) (*model.Story, error)
	MarkAllVoted(ctx context.Context, storyID string) (bool, error)
}

type MonitorConfig struct {
	// TickInterval is the length of one countdown second
	TickInterval time.Duration
	// PollInterval is how often quorum is recomputed without a push event
	PollInterval time.Duration
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval: time.Second,
		PollInterval: 5 * time.Second,
	}
}

// RoundMonitor runs one goroutine per voting story. It expires rounds whose
// countdown runs out and announces full quorum.
type RoundMonitor struct {
	rounds      RoundCloser
	cfg         MonitorConfig
	source      EventSource
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	running map[string]*watch
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

type watch struct {
	cancel context.CancelFunc
}

// NewRoundMonitor creates a monitor. Zero config fields take the defaults.
func NewRoundMonitor(rounds RoundCloser, cfg MonitorConfig, logger *zap.Logger) *RoundMonitor {
	def := DefaultMonitorConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RoundMonitor{
		rounds:  rounds,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]*watch),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetEventSource enables push-driven quorum checks
func (m *RoundMonitor) SetEventSource(src EventSource) {
	m.source = src
}

// SetBroadcaster sets where all_voted is published
func (m *RoundMonitor) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Watch starts monitoring a voting story. Already watched stories are ignored.
func (m *RoundMonitor) Watch(story *model.Story) {
	if story == nil || story.Status != model.StoryVoting {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return
	}
	if _, ok := m.running[story.ID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	w := &watch{cancel: cancel}
	m.running[story.ID] = w

	m.wg.Add(1)
	go m.run(ctx, w, story)
}

// Stop cancels the monitor of one story
func (m *RoundMonitor) Stop(storyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.running[storyID]; ok {
		w.cancel()
		delete(m.running, storyID)
	}
}

// Watching reports whether a story has a live monitor
func (m *RoundMonitor) Watching(storyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[storyID]
	return ok
}

// Resume watches every story still voting, e.g. after a restart
func (m *RoundMonitor) Resume(ctx context.Context, stories repository.StoryRepo) (int, error) {
	voting, err := stories.ListByStatus(ctx, model.StoryVoting)
	if err != nil {
		return 0, storageErr("list voting stories", err)
	}
	for _, story := range voting {
		m.Watch(story)
	}
	if len(voting) > 0 {
		m.logger.Info("resumed round monitors", zap.Int("count", len(voting)))
	}
	return len(voting), nil
}

// Close stops all monitors and waits for them to exit
func (m *RoundMonitor) Close() {
	m.mu.Lock()
	m.cancel()
	m.running = make(map[string]*watch)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *RoundMonitor) run(ctx context.Context, w *watch, story *model.Story) {
	defer m.wg.Done()
	defer m.release(story.ID, w)
	defer w.cancel()

	log := m.logger.With(zap.String("story_id", story.ID))
	countdown := NewCountdown(story.RemainingSeconds(m.now()))
	quorum := &Quorum{}

	var events <-chan model.Event
	if m.source != nil {
		ch, unsubscribe, err := m.source.Subscribe(ctx, story.ID)
		if err != nil {
			log.Warn("event subscription failed, polling only", zap.Error(err))
		} else {
			events = ch
			defer unsubscribe()
		}
	}

	// check returns true once the monitor has nothing left to do
	check := func() bool {
		status, err := m.rounds.Status(ctx, story.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
				return true
			}
			log.Warn("round status check failed", zap.Error(err))
			return false
		}
		if status.Story.Status != model.StoryVoting {
			return true
		}
		if quorum.Observe(status.VotedCount, status.Total) {
			m.announceAllVoted(ctx, status)
			return true
		}
		return false
	}

	if check() {
		return
	}

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	poller := time.NewTicker(m.cfg.PollInterval)
	defer poller.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !countdown.Tick() {
				continue
			}
			// last chance for a vote that landed on the final second
			if check() {
				return
			}
			m.expire(ctx, story.ID, log)
			return

		case <-poller.C:
			if check() {
				return
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Type {
			case model.EventVoteCast:
				if check() {
					return
				}
			case model.EventRevealed, model.EventRoundExpired, model.EventStoryDeleted:
				return
			}
		}
	}
}

func (m *RoundMonitor) expire(ctx context.Context, storyID string, log *zap.Logger) {
	_, err := m.rounds.TimeExpire(ctx, storyID)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotFound):
		log.Debug("round already closed", zap.Error(err))
	default:
		log.Error("failed to expire round", zap.Error(err))
	}
}

func (m *RoundMonitor) announceAllVoted(ctx context.Context, status *model.RoundStatus) {
	storyID := status.Story.ID
	first, err := m.rounds.MarkAllVoted(ctx, storyID)
	if err != nil {
		m.logger.Warn("all voted flag failed", zap.String("story_id", storyID), zap.Error(err))
	} else if !first {
		m.logger.Debug("all voted already announced", zap.String("story_id", storyID))
		return
	}
	publish(ctx, m.broadcaster, m.logger, model.EventAllVoted, storyID, map[string]int{
		"votedCount": status.VotedCount,
		"total":      status.Total,
	})
	m.logger.Info("all participants voted",
		zap.String("story_id", storyID),
		zap.Int("total", status.Total),
	)
}

func (m *RoundMonitor) release(storyID string, w *watch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[storyID] == w {
		delete(m.running, storyID)
	}
}
