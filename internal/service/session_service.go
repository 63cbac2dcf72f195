package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

// CreateSessionInput is what a facilitator provides for a new session
type CreateSessionInput struct {
	Name         string
	Description  string
	Participants []string
}

// SessionService handles planning sessions
type SessionService struct {
	sessions repository.SessionRepo
	logger   *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(sessions repository.SessionRepo, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, logger: logger}
}

// Create stores a new active session. The creator is always a participant.
func (s *SessionService) Create(ctx context.Context, caller model.Identity, in CreateSessionInput) (*model.Session, error) {
	if !caller.IsFacilitator() {
		return nil, ErrForbidden
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationErr("session name is required")
	}

	seen := make(map[string]bool)
	participants := make([]string, 0, len(in.Participants)+1)
	for _, id := range append(in.Participants, caller.UserID) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}

	session := &model.Session{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		CreatedBy:    caller.UserID,
		Participants: participants,
		Status:       model.SessionActive,
		CreatedAt:    time.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, storageErr("create session", err)
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("created_by", caller.UserID),
		zap.Int("participants", len(participants)),
	)
	return session, nil
}

// Get returns a session or ErrNotFound
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, validationErr("session id is required")
	}
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	if session == nil {
		return nil, notFound("session")
	}
	return session, nil
}

// ListActive returns active sessions, newest first
func (s *SessionService) ListActive(ctx context.Context) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByStatus(ctx, model.SessionActive)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}
