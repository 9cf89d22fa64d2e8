package service

import (
	"context"
	"math"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
)

// LocationService is the agent position feed. Last write wins.
type LocationService struct {
	Locations store.Locations

	Now func() time.Time
}

// Record stores an agent's current position.
func (s *LocationService) Record(ctx context.Context, agent domain.User, lat, lon float64) (domain.AgentLocation, error) {
	if agent.Role != domain.RoleAgent {
		return domain.AgentLocation{}, ErrWrongRole
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return domain.AgentLocation{}, invalidField("latitude", "latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return domain.AgentLocation{}, invalidField("longitude", "longitude must be between -180 and 180")
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	loc := domain.AgentLocation{AgentID: agent.ID, Latitude: lat, Longitude: lon, UpdatedAt: now}
	if err := s.Locations.UpsertLocation(ctx, loc); err != nil {
		return domain.AgentLocation{}, mapStoreErr(err)
	}
	return loc, nil
}

func (s *LocationService) Get(ctx context.Context, agentID string) (domain.AgentLocation, error) {
	loc, err := s.Locations.GetLocation(ctx, agentID)
	return loc, mapStoreErr(err)
}

func (s *LocationService) List(ctx context.Context) ([]domain.AgentLocation, error) {
	locs, err := s.Locations.ListLocations(ctx)
	return locs, mapStoreErr(err)
}

// Clear drops every known position. Called at shutdown.
func (s *LocationService) Clear(ctx context.Context) error {
	return mapStoreErr(s.Locations.ClearLocations(ctx))
}
