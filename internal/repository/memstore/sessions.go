package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

var _ repository.SessionRepo = (*SessionRepo)(nil)

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.sessions[session.ID] = cloneSession(session)
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *SessionRepo) ListByStatus(_ context.Context, status model.SessionStatus) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.Session{}
	for _, s := range r.sessions {
		if s.Status == status {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.Participants = append([]string(nil), s.Participants...)
	return &c
}
