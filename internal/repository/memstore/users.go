package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

var _ repository.UserRepo = (*UserRepo)(nil)

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*model.User)}
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) GetByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *UserRepo) ListByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*model.User{}
	for _, u := range r.users {
		if u.Role == role {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
