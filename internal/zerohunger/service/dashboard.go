package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
)

// Dashboard holds the counters for one role's landing page. Only the fields
// relevant to the role are set.
type Dashboard struct {
	Role      domain.Role         `json:"role"`
	Users     domain.RoleCounts   `json:"users,omitempty"`
	Donations domain.StatusCounts `json:"donations,omitempty"`
	Assigned  *int64              `json:"assigned,omitempty"`
	Collected *int64              `json:"collected,omitempty"`
	Available *int64              `json:"available,omitempty"`
}

type DashboardService struct {
	Store store.Store
}

// Counts builds the dashboard for user's role.
func (s *DashboardService) Counts(ctx context.Context, user domain.User) (Dashboard, error) {
	donations := s.Store.Donations()
	d := Dashboard{Role: user.Role}

	switch user.Role {
	case domain.RoleAdmin:
		users, err := s.Store.Users().CountByRole(ctx)
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		counts, err := donations.CountByStatus(ctx, domain.DonationFilter{ParentsOnly: true})
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		d.Users, d.Donations = users, counts

	case domain.RoleDonor:
		counts, err := donations.CountByStatus(ctx, domain.DonationFilter{DonorID: user.ID, ParentsOnly: true})
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		d.Donations = counts

	case domain.RoleAgent:
		counts, err := donations.CountByStatus(ctx, domain.DonationFilter{AgentID: user.ID, ParentsOnly: true})
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		d.Assigned = ptr(counts[domain.StatusAssigned])
		d.Collected = ptr(counts[domain.StatusCollected])

	case domain.RoleCollector:
		mine, err := donations.CountByStatus(ctx, domain.DonationFilter{CollectorID: user.ID, ChildrenOnly: true})
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		open, err := donations.CountByStatus(ctx, domain.DonationFilter{
			ParentsOnly: true,
			Statuses:    []domain.Status{domain.StatusAccepted, domain.StatusAssigned},
		})
		if err != nil {
			return Dashboard{}, mapStoreErr(err)
		}
		d.Collected = ptr(mine[domain.StatusCollected])
		d.Assigned = ptr(open[domain.StatusAssigned])
		d.Available = ptr(open[domain.StatusAccepted])

	default:
		return Dashboard{}, fmt.Errorf("%w: unknown role %q", ErrWrongRole, user.Role)
	}
	return d, nil
}

func ptr[T any](v T) *T { return &v }
