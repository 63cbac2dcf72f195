package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planningpoker/internal/cache"
	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

// CreateStoryInput is what a facilitator provides for a new story
type CreateStoryInput struct {
	SessionID        string
	Title            string
	Description      string
	TimeLimitMinutes int
	InitialEstimate  *int
}

// StoryService handles story CRUD. Round transitions live in RoundService.
type StoryService struct {
	stories     repository.StoryRepo
	votes       repository.VoteRepo
	sessions    repository.SessionRepo
	roundCache  cache.RoundCache
	watcher     RoundWatcher
	broadcaster Broadcaster
	logger      *zap.Logger
}

// NewStoryService creates a new story service
func NewStoryService(
	stories repository.StoryRepo,
	votes repository.VoteRepo,
	sessions repository.SessionRepo,
	logger *zap.Logger,
) *StoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoryService{
		stories:  stories,
		votes:    votes,
		sessions: sessions,
		logger:   logger,
	}
}

// SetBroadcaster sets the event publisher
func (s *StoryService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetRoundCache sets the Redis round cache
func (s *StoryService) SetRoundCache(c cache.RoundCache) {
	s.roundCache = c
}

// SetWatcher sets the round monitor to stop when a story goes away
func (s *StoryService) SetWatcher(w RoundWatcher) {
	s.watcher = w
}

// Create adds a pending story to a session
func (s *StoryService) Create(ctx context.Context, caller model.Identity, in CreateStoryInput) (*model.Story, error) {
	if !caller.IsFacilitator() {
		return nil, ErrForbidden
	}
	if in.SessionID == "" {
		return nil, validationErr("session id is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationErr("title is required")
	}
	if in.TimeLimitMinutes <= 0 {
		return nil, validationErr("time limit must be a positive number of minutes")
	}
	if in.InitialEstimate != nil && *in.InitialEstimate < 0 {
		return nil, validationErr("initial estimate cannot be negative")
	}

	session, err := s.sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	if session == nil {
		return nil, notFound("session")
	}

	story := &model.Story{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Status:           model.StoryPending,
		TimeLimitMinutes: in.TimeLimitMinutes,
		InitialEstimate:  in.InitialEstimate,
		CreatedAt:        time.Now(),
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, storageErr("create story", err)
	}

	s.logger.Info("story created",
		zap.String("story_id", story.ID),
		zap.String("session_id", story.SessionID),
	)
	return story, nil
}

// Get returns a story or ErrNotFound
func (s *StoryService) Get(ctx context.Context, id string) (*model.Story, error) {
	if id == "" {
		return nil, validationErr("story id is required")
	}
	story, err := s.stories.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get story", err)
	}
	if story == nil {
		return nil, notFound("story")
	}
	return story, nil
}

// ListBySession returns the stories of a session in creation order
func (s *StoryService) ListBySession(ctx context.Context, sessionID string) ([]*model.Story, error) {
	if sessionID == "" {
		return nil, validationErr("session id is required")
	}
	stories, err := s.stories.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("list stories", err)
	}
	return stories, nil
}

// Delete removes a story and all of its votes
func (s *StoryService) Delete(ctx context.Context, caller model.Identity, id string) error {
	if id == "" {
		return validationErr("story id is required")
	}
	if !caller.IsFacilitator() {
		return ErrForbidden
	}
	story, err := s.stories.GetByID(ctx, id)
	if err != nil {
		return storageErr("get story", err)
	}
	if story == nil {
		return notFound("story")
	}

	if s.watcher != nil {
		s.watcher.Stop(id)
	}
	// Votes go first so a failure never leaves votes without their story
	removed, err := s.votes.DeleteByStory(ctx, id)
	if err != nil {
		return storageErr("delete votes", err)
	}
	if err := s.stories.Delete(ctx, id); err != nil {
		return storageErr("delete story", err)
	}

	if s.roundCache != nil {
		if err := s.roundCache.Delete(ctx, id); err != nil {
			s.logger.Warn("round cache delete failed", zap.String("story_id", id), zap.Error(err))
		}
	}
	publish(ctx, s.broadcaster, s.logger, model.EventStoryDeleted, id, map[string]string{"storyId": id})

	s.logger.Info("story deleted",
		zap.String("story_id", id),
		zap.Int64("votes_removed", removed),
	)
	return nil
}

// publish is best effort; event delivery never fails the operation
func publish(ctx context.Context, b Broadcaster, logger *zap.Logger, t model.EventType, storyID string, payload interface{}) {
	if b == nil {
		return
	}
	ev, err := model.NewEvent(t, storyID, payload)
	if err == nil {
		err = b.Publish(ctx, ev)
	}
	if err != nil {
		logger.Warn("event publish failed",
			zap.String("story_id", storyID),
			zap.String("event", string(t)),
			zap.Error(err),
		)
	}
}
