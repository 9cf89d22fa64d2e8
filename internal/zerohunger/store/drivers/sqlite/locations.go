package sqlite

import (
	"context"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
)

type locationsRepo struct {
	q dbtx
}

func (r *locationsRepo) UpsertLocation(ctx context.Context, loc domain.AgentLocation) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO agent_locations (agent_id, latitude, longitude, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (agent_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`,
		loc.AgentID, loc.Latitude, loc.Longitude, loc.UpdatedAt.UTC(),
	)
	return err
}

func (r *locationsRepo) GetLocation(ctx context.Context, agentID string) (domain.AgentLocation, error) {
	var loc domain.AgentLocation
	err := r.q.QueryRowContext(ctx,
		`SELECT agent_id, latitude, longitude, updated_at FROM agent_locations WHERE agent_id = ?`, agentID,
	).Scan(&loc.AgentID, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt)
	if err != nil {
		return domain.AgentLocation{}, mapNotFound(err)
	}
	return loc, nil
}

func (r *locationsRepo) ListLocations(ctx context.Context) ([]domain.AgentLocation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT agent_id, latitude, longitude, updated_at FROM agent_locations ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AgentLocation
	for rows.Next() {
		var loc domain.AgentLocation
		if err := rows.Scan(&loc.AgentID, &loc.Latitude, &loc.Longitude, &loc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (r *locationsRepo) ClearLocations(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM agent_locations`)
	return err
}
