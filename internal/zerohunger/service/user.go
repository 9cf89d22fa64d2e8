package service

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
)

// ProfileInput is the editable part of a profile. Role and email are not
// accepted.
type ProfileInput struct {
	FirstName string `json:"first_name" validate:"notblank"`
	LastName  string `json:"last_name" validate:"notblank"`
	Gender    string `json:"gender"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	return u, mapStoreErr(err)
}

// ListAgents returns every agent, for the admin assignment form.
func (s *UserService) ListAgents(ctx context.Context) ([]domain.UserSummary, error) {
	agents, err := s.Store.Users().ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	out := make([]domain.UserSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, *a.Summary())
	}
	return out, nil
}

// UpdateProfile rewrites user's profile fields and returns the stored user.
func (s *UserService) UpdateProfile(ctx context.Context, user domain.User, in ProfileInput) (domain.User, error) {
	if err := validateStruct(in); err != nil {
		return domain.User{}, err
	}

	p := domain.ProfileUpdate{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Gender:    strings.TrimSpace(in.Gender),
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
	}
	if err := s.Store.Users().UpdateProfile(ctx, user.ID, p); err != nil {
		return domain.User{}, mapStoreErr(err)
	}
	return s.GetUserByID(ctx, user.ID)
}
