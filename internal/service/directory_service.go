package service

import (
	"context"

	"planningpoker/internal/model"
	"planningpoker/internal/repository"
)

// DirectoryService resolves user ids to identities
type DirectoryService struct {
	users repository.UserRepo
}

func NewDirectoryService(users repository.UserRepo) *DirectoryService {
	return &DirectoryService{users: users}
}

// Resolve returns the users behind ids. Unknown ids are skipped.
func (s *DirectoryService) Resolve(ctx context.Context, ids []string) ([]*model.User, error) {
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr("resolve users", err)
	}
	return users, nil
}

// Developers resolves ids and keeps only participants, in ids order
func (s *DirectoryService) Developers(ctx context.Context, ids []string) ([]*model.User, error) {
	users, err := s.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	devs := make([]*model.User, 0, len(users))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || u.Role != model.RoleParticipant {
			continue
		}
		devs = append(devs, u)
		delete(byID, id)
	}
	return devs, nil
}

// ListDevelopers returns every participant account
func (s *DirectoryService) ListDevelopers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.ListByRole(ctx, model.RoleParticipant)
	if err != nil {
		return nil, storageErr("list developers", err)
	}
	return users, nil
}
