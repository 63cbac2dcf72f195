package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planningpoker/internal/cache"
	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

// RoundService drives a story through pending, voting and completed
type RoundService struct {
	stories     repository.StoryRepo
	votes       repository.VoteRepo
	sessions    repository.SessionRepo
	directory   *DirectoryService
	roundCache  cache.RoundCache
	watcher     RoundWatcher
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoundService creates a new round service
func NewRoundService(
	stories repository.StoryRepo,
	votes repository.VoteRepo,
	sessions repository.SessionRepo,
	directory *DirectoryService,
	logger *zap.Logger,
) *RoundService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoundService{
		stories:   stories,
		votes:     votes,
		sessions:  sessions,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

// SetBroadcaster sets the event publisher
func (s *RoundService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetRoundCache sets the Redis round cache
func (s *RoundService) SetRoundCache(c cache.RoundCache) {
	s.roundCache = c
}

// SetWatcher sets the countdown monitor for opened rounds
func (s *RoundService) SetWatcher(w RoundWatcher) {
	s.watcher = w
}

// StartVoting opens a pending story for votes
func (s *RoundService) StartVoting(ctx context.Context, caller model.Identity, storyID string) (*model.Story, error) {
	if storyID == "" {
		return nil, validationErr("story id is required")
	}
	if !caller.IsFacilitator() {
		return nil, ErrForbidden
	}

	story, err := s.stories.StartVoting(ctx, storyID, s.now())
	if err != nil {
		return nil, storageErr("start voting", err)
	}
	if story == nil {
		return nil, s.transitionFailure(ctx, storyID, model.StoryVoting, false)
	}

	s.cacheMeta(ctx, metaFromStory(story))
	publish(ctx, s.broadcaster, s.logger, model.EventVotingStarted, story.ID, story)
	if s.watcher != nil {
		s.watcher.Watch(story)
	}

	s.logger.Info("voting started",
		zap.String("story_id", story.ID),
		zap.Int("time_limit_minutes", story.TimeLimitMinutes),
	)
	return story, nil
}

// SubmitVote records the caller's card for an open round
func (s *RoundService) SubmitVote(ctx context.Context, caller model.Identity, storyID string, value int, comment string) (*model.Vote, error) {
	if storyID == "" {
		return nil, validationErr("story id is required")
	}
	if !model.IsCardValue(value) {
		return nil, validationErr(fmt.Sprintf("vote value must be one of %v", model.CardValues))
	}
	if caller.Role != model.RoleParticipant {
		return nil, ErrForbidden
	}

	meta, err := s.roundMeta(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, notFound("story")
	}
	session, err := s.sessions.GetByID(ctx, meta.SessionID)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	if session == nil || !session.HasParticipant(caller.UserID) {
		return nil, ErrForbidden
	}
	if !meta.Open() {
		return nil, ErrRoundClosed
	}

	existing, err := s.votes.FindByStoryAndUser(ctx, storyID, caller.UserID)
	if err != nil {
		return nil, storageErr("find vote", err)
	}
	if existing != nil {
		return nil, ErrAlreadyVoted
	}

	vote := &model.Vote{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    caller.UserID,
		Value:     value,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: s.now(),
	}
	if err := s.votes.Insert(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicateVote) {
			return nil, ErrAlreadyVoted
		}
		return nil, storageErr("insert vote", err)
	}

	// The vote only counts once the story takes it into the tally, which
	// happens only while the round is open. Otherwise it is withdrawn.
	counted, err := s.stories.AddVote(ctx, storyID, caller.UserID, value)
	if err != nil || !counted {
		if delErr := s.votes.Delete(ctx, vote.ID); delErr != nil {
			s.logger.Error("failed to withdraw uncounted vote",
				zap.String("story_id", storyID),
				zap.String("vote_id", vote.ID),
				zap.Error(delErr),
			)
		}
		if err != nil {
			return nil, storageErr("count vote", err)
		}
		return nil, ErrRoundClosed
	}

	publish(ctx, s.broadcaster, s.logger, model.EventVoteCast, storyID, map[string]string{"userId": caller.UserID})
	s.logger.Info("vote cast",
		zap.String("story_id", storyID),
		zap.String("user_id", caller.UserID),
	)
	return vote, nil
}

// Reveal closes a round and sets the final estimate to the rounded mean
func (s *RoundService) Reveal(ctx context.Context, caller model.Identity, storyID string) (*model.RevealResult, error) {
	if storyID == "" {
		return nil, validationErr("story id is required")
	}
	if !caller.IsFacilitator() {
		return nil, ErrForbidden
	}

	story, err := s.stories.Reveal(ctx, storyID, s.now())
	if err != nil {
		return nil, storageErr("reveal", err)
	}
	if story == nil {
		return nil, s.transitionFailure(ctx, storyID, model.StoryCompleted, true)
	}
	if s.watcher != nil {
		s.watcher.Stop(storyID)
	}
	s.markCompleted(ctx, storyID)

	votes, err := s.votes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	result := &model.RevealResult{Story: story, Votes: story.CountedVotes(votes)}
	publish(ctx, s.broadcaster, s.logger, model.EventRevealed, storyID, result)

	s.logger.Info("round revealed",
		zap.String("story_id", storyID),
		zap.Int("votes", story.VoteCount),
		zap.Intp("final_estimate", story.FinalEstimate),
	)
	return result, nil
}

// TimeExpire closes a round whose countdown ran out. No estimate is recorded.
func (s *RoundService) TimeExpire(ctx context.Context, storyID string) (*model.Story, error) {
	story, err := s.stories.Expire(ctx, storyID, s.now())
	if err != nil {
		return nil, storageErr("expire", err)
	}
	if story == nil {
		return nil, s.transitionFailure(ctx, storyID, model.StoryCompleted, false)
	}
	s.markCompleted(ctx, storyID)
	publish(ctx, s.broadcaster, s.logger, model.EventRoundExpired, storyID, story)

	s.logger.Info("round expired",
		zap.String("story_id", storyID),
		zap.Int("votes", story.VoteCount),
	)
	return story, nil
}

// Votes lists a story's votes. Other people's cards stay hidden until the
// round is completed.
func (s *RoundService) Votes(ctx context.Context, caller model.Identity, storyID string) ([]*model.Vote, error) {
	story, err := s.getStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	votes = story.CountedVotes(votes)
	if story.Status == model.StoryCompleted {
		return votes, nil
	}
	for i, v := range votes {
		if v.UserID != caller.UserID {
			votes[i] = v.Blind()
		}
	}
	return votes, nil
}

// UserVote returns one user's vote on a story
func (s *RoundService) UserVote(ctx context.Context, caller model.Identity, storyID, userID string) (*model.Vote, error) {
	if userID == "" {
		return nil, validationErr("user id is required")
	}
	story, err := s.getStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	vote, err := s.votes.FindByStoryAndUser(ctx, storyID, userID)
	if err != nil {
		return nil, storageErr("find vote", err)
	}
	if vote == nil || !story.Counted(userID) {
		return nil, notFound("vote")
	}
	if story.Status != model.StoryCompleted && userID != caller.UserID {
		return vote.Blind(), nil
	}
	return vote, nil
}

// Status reports who has voted and how long the round has left
func (s *RoundService) Status(ctx context.Context, storyID string) (*model.RoundStatus, error) {
	story, err := s.getStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByID(ctx, story.SessionID)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	if session == nil {
		return nil, notFound("session")
	}
	devs, err := s.directory.Developers(ctx, session.Participants)
	if err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByStory(ctx, storyID)
	if err != nil {
		return nil, storageErr("list votes", err)
	}
	byUser := make(map[string]*model.Vote, len(votes))
	for _, v := range votes {
		byUser[v.UserID] = v
	}

	status := &model.RoundStatus{
		Story:            story,
		Participants:     make([]model.ParticipantStatus, 0, len(devs)),
		Total:            len(devs),
		RemainingSeconds: story.RemainingSeconds(s.now()),
	}
	for _, d := range devs {
		p := model.ParticipantStatus{UserID: d.ID, Name: d.Name}
		if story.Counted(d.ID) {
			p.HasVoted = true
			status.VotedCount++
			if v, ok := byUser[d.ID]; ok && story.Status == model.StoryCompleted {
				value := v.Value
				p.Vote = &value
				p.Comment = v.Comment
			}
		}
		status.Participants = append(status.Participants, p)
	}
	status.AllVoted = status.Total > 0 && status.VotedCount == status.Total
	return status, nil
}

// MarkAllVoted records that a round reached full quorum. It returns true
// only for the first caller, across instances. The Redis flag is used when
// configured, otherwise the flag persisted on the story.
func (s *RoundService) MarkAllVoted(ctx context.Context, storyID string) (bool, error) {
	if s.roundCache != nil {
		first, err := s.roundCache.MarkAllVoted(ctx, storyID)
		if err == nil {
			return first, nil
		}
		s.logger.Warn("all voted cache flag failed, using store", zap.String("story_id", storyID), zap.Error(err))
	}
	first, err := s.stories.MarkAllVoted(ctx, storyID, s.now())
	if err != nil {
		return false, storageErr("mark all voted", err)
	}
	return first, nil
}

func (s *RoundService) getStory(ctx context.Context, storyID string) (*model.Story, error) {
	if storyID == "" {
		return nil, validationErr("story id is required")
	}
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, storageErr("get story", err)
	}
	if story == nil {
		return nil, notFound("story")
	}
	return story, nil
}

// transitionFailure explains why a conditional update matched nothing
func (s *RoundService) transitionFailure(ctx context.Context, storyID string, to model.StoryStatus, needsVotes bool) error {
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return storageErr("get story", err)
	}
	if story == nil {
		return notFound("story")
	}
	if needsVotes && story.Status == model.StoryVoting && story.VoteCount == 0 {
		return ErrNoVotes
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, story.Status, to)
}

// roundMeta reads the cached summary of a round, falling back to the store
// on a miss. Returns (nil, nil) when the story does not exist.
func (s *RoundService) roundMeta(ctx context.Context, storyID string) (*model.RoundMeta, error) {
	if s.roundCache != nil {
		meta, err := s.roundCache.GetMeta(ctx, storyID)
		if err != nil {
			s.logger.Warn("round cache read failed", zap.String("story_id", storyID), zap.Error(err))
		} else if meta != nil {
			return meta, nil
		}
	}
	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, storageErr("get story", err)
	}
	if story == nil {
		return nil, nil
	}
	meta := metaFromStory(story)
	if story.Status == model.StoryVoting {
		s.cacheMeta(ctx, meta)
	}
	return meta, nil
}

func (s *RoundService) cacheMeta(ctx context.Context, meta *model.RoundMeta) {
	if s.roundCache == nil {
		return
	}
	if err := s.roundCache.SetMeta(ctx, meta); err != nil {
		s.logger.Warn("round cache write failed", zap.String("story_id", meta.StoryID), zap.Error(err))
	}
}

func metaFromStory(story *model.Story) *model.RoundMeta {
	meta := &model.RoundMeta{
		StoryID:          story.ID,
		SessionID:        story.SessionID,
		Status:           story.Status,
		TimeLimitMinutes: story.TimeLimitMinutes,
	}
	if story.VotingStartedAt != nil {
		meta.VotingStartedAt = story.VotingStartedAt.Unix()
	}
	return meta
}

func (s *RoundService) markCompleted(ctx context.Context, storyID string) {
	if s.roundCache == nil {
		return
	}
	if err := s.roundCache.SetStatus(ctx, storyID, model.StoryCompleted); err != nil {
		s.logger.Warn("round cache write failed", zap.String("story_id", storyID), zap.Error(err))
	}
}
