package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	goredis "github.com/redis/go-redis/v9"
)

// LocationStore keeps every agent's last position as a field of one hash.
type LocationStore struct {
	client *goredis.Client
	key    string
}

var _ store.Locations = (*LocationStore)(nil)

func NewLocationStore(client *goredis.Client) *LocationStore {
	return &LocationStore{client: client, key: keyPrefix + "locations"}
}

func (s *LocationStore) UpsertLocation(ctx context.Context, loc domain.AgentLocation) error {
	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	return s.client.HSet(ctx, s.key, loc.AgentID, raw).Err()
}

func (s *LocationStore) GetLocation(ctx context.Context, agentID string) (domain.AgentLocation, error) {
	raw, err := s.client.HGet(ctx, s.key, agentID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.AgentLocation{}, store.ErrNotFound
	}
	if err != nil {
		return domain.AgentLocation{}, err
	}

	var loc domain.AgentLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		return domain.AgentLocation{}, fmt.Errorf("decode location %s: %w", agentID, err)
	}
	return loc, nil
}

func (s *LocationStore) ListLocations(ctx context.Context) ([]domain.AgentLocation, error) {
	data, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.AgentLocation, 0, len(data))
	for agentID, raw := range data {
		var loc domain.AgentLocation
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			return nil, fmt.Errorf("decode location %s: %w", agentID, err)
		}
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (s *LocationStore) ClearLocations(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
