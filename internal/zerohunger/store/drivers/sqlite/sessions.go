package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
)

type sessionsRepo struct {
	q dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, temp_user_id, state, failed_attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, mapStringNull(s.UserID), mapStringNull(s.TempUserID), string(s.State),
		s.FailedAttempts, s.CreatedAt.UTC(), s.ExpiresAt.Unix(),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var (
		s          domain.Session
		userID     sql.NullString
		tempUserID sql.NullString
		state      string
		expiresAt  int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, temp_user_id, state, failed_attempts, created_at, expires_at
		FROM sessions WHERE id = ? AND expires_at > ?`, id, now().Unix(),
	).Scan(&s.ID, &userID, &tempUserID, &state, &s.FailedAttempts, &s.CreatedAt, &expiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}

	s.UserID = mapNullString(userID)
	s.TempUserID = mapNullString(tempUserID)
	s.State = domain.SessionState(state)
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return s, nil
}

func (r *sessionsRepo) UpdateSession(ctx context.Context, s domain.Session) error {
	return requireOne(r.q.ExecContext(ctx, `
		UPDATE sessions SET user_id = ?, temp_user_id = ?, state = ?, failed_attempts = ?
		WHERE id = ?`,
		mapStringNull(s.UserID), mapStringNull(s.TempUserID), string(s.State), s.FailedAttempts, s.ID,
	))
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now().Unix())
	return err
}
