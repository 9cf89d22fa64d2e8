package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
)

const donationColumns = `id, donor_id, agent_id, collector_id, parent_donation_id, food_type, quantity,
	original_quantity, cooking_time, address, phone, donor_to_admin_msg, admin_to_agent_msg, status,
	collection_time, version, created_at, updated_at`

type donationsRepo struct {
	q dbtx
}

func scanDonation(row rowScanner) (domain.Donation, error) {
	var (
		d              domain.Donation
		agentID        sql.NullString
		collectorID    sql.NullString
		parentID       sql.NullString
		cookingTime    sql.NullTime
		collectionTime sql.NullTime
		status         string
	)
	err := row.Scan(
		&d.ID, &d.DonorID, &agentID, &collectorID, &parentID, &d.FoodType, &d.Quantity,
		&d.OriginalQuantity, &cookingTime, &d.Address, &d.Phone, &d.DonorToAdminMsg, &d.AdminToAgentMsg,
		&status, &collectionTime, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.Donation{}, err
	}
	d.AgentID = mapNullString(agentID)
	d.CollectorID = mapNullString(collectorID)
	d.ParentID = mapNullString(parentID)
	d.CookingTime = mapNullTimePtr(cookingTime)
	d.CollectionTime = mapNullTimePtr(collectionTime)
	d.Status = domain.Status(status)
	return d, nil
}

func (r *donationsRepo) CreateDonation(ctx context.Context, d domain.Donation) error {
	ts := now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = ts
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO donations (`+donationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.DonorID, mapStringNull(d.AgentID), mapStringNull(d.CollectorID), mapStringNull(d.ParentID),
		d.FoodType, d.Quantity, d.OriginalQuantity, mapOptionalTime(d.CookingTime), d.Address, d.Phone,
		d.DonorToAdminMsg, d.AdminToAgentMsg, string(d.Status), mapOptionalTime(d.CollectionTime),
		d.Version, d.CreatedAt.UTC(), ts,
	)
	return mapConstraint(err)
}

func (r *donationsRepo) GetDonationByID(ctx context.Context, id string) (domain.Donation, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = ?`, id)
	d, err := scanDonation(row)
	if err != nil {
		return domain.Donation{}, mapNotFound(err)
	}
	return d, nil
}

func (r *donationsRepo) UpdateDonation(ctx context.Context, d domain.Donation) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE donations
		SET agent_id = ?, collector_id = ?, quantity = ?, admin_to_agent_msg = ?, status = ?,
			collection_time = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		mapStringNull(d.AgentID), mapStringNull(d.CollectorID), d.Quantity, d.AdminToAgentMsg,
		string(d.Status), mapOptionalTime(d.CollectionTime), now(), d.ID, d.Version,
	)
	if err != nil {
		return err
	}
	return r.checkGuarded(ctx, res, d.ID)
}

func (r *donationsRepo) TakeQuantity(ctx context.Context, d domain.Donation, q int64) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE donations
		SET quantity = quantity - ?, status = ?, collection_time = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND quantity >= ?`,
		q, string(d.Status), mapOptionalTime(d.CollectionTime), now(), d.ID, d.Version, q,
	)
	if err != nil {
		return err
	}
	return r.checkGuarded(ctx, res, d.ID)
}

// checkGuarded turns a conditional update that matched nothing into
// ErrNotFound or ErrConflict.
func (r *donationsRepo) checkGuarded(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = r.q.QueryRowContext(ctx, `SELECT 1 FROM donations WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return mapNotFound(err)
	}
	return store.ErrConflict
}

func (r *donationsRepo) DeleteDonation(ctx context.Context, id string) error {
	return requireOne(r.q.ExecContext(ctx, `DELETE FROM donations WHERE id = ?`, id))
}

func (r *donationsRepo) ListDonations(ctx context.Context, f domain.DonationFilter) ([]domain.Donation, error) {
	where, args := donationWhere(f)
	query := `SELECT ` + donationColumns + ` FROM donations` + where + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *donationsRepo) CountByStatus(ctx context.Context, f domain.DonationFilter) (domain.StatusCounts, error) {
	where, args := donationWhere(f)
	rows, err := r.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM donations`+where+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(domain.StatusCounts, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}
	return counts, rows.Err()
}

func donationWhere(f domain.DonationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if len(f.Statuses) > 0 {
		conds = append(conds, `status IN (`+placeholders(len(f.Statuses))+`)`)
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.DonorID != "" {
		conds = append(conds, `donor_id = ?`)
		args = append(args, f.DonorID)
	}
	if f.AgentID != "" {
		conds = append(conds, `agent_id = ?`)
		args = append(args, f.AgentID)
	}
	if f.CollectorID != "" {
		conds = append(conds, `collector_id = ?`)
		args = append(args, f.CollectorID)
	}
	if f.ParentID != "" {
		conds = append(conds, `parent_donation_id = ?`)
		args = append(args, f.ParentID)
	}
	if f.ParentsOnly {
		conds = append(conds, `parent_donation_id IS NULL`)
	}
	if f.ChildrenOnly {
		conds = append(conds, `parent_donation_id IS NOT NULL`)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}
