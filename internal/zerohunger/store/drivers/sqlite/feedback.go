package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
)

const feedbackColumns = `id, sender_id, receiver_id, message, parent_id, reply, status, replied_at, created_at`

type feedbackRepo struct {
	q dbtx
}

func scanFeedback(row rowScanner) (domain.Feedback, error) {
	var (
		f         domain.Feedback
		parentID  sql.NullString
		status    string
		repliedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.SenderID, &f.ReceiverID, &f.Message, &parentID, &f.Reply, &status, &repliedAt, &f.CreatedAt)
	if err != nil {
		return domain.Feedback{}, err
	}
	f.ParentID = mapNullString(parentID)
	f.Status = domain.FeedbackStatus(status)
	f.RepliedAt = mapNullTimePtr(repliedAt)
	return f, nil
}

func (r *feedbackRepo) CreateFeedback(ctx context.Context, f domain.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO feedback (`+feedbackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SenderID, f.ReceiverID, f.Message, mapStringNull(f.ParentID), f.Reply,
		string(f.Status), mapOptionalTime(f.RepliedAt), f.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *feedbackRepo) GetFeedbackByID(ctx context.Context, id string) (domain.Feedback, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id)
	f, err := scanFeedback(row)
	if err != nil {
		return domain.Feedback{}, mapNotFound(err)
	}
	return f, nil
}

func (r *feedbackRepo) MarkReplied(ctx context.Context, id, reply string, at time.Time) error {
	return requireOne(r.q.ExecContext(ctx,
		`UPDATE feedback SET status = ?, reply = ?, replied_at = ? WHERE id = ?`,
		string(domain.FeedbackReplied), reply, at.UTC(), id,
	))
}

func (r *feedbackRepo) ListByReceiver(ctx context.Context, userID string) ([]domain.Feedback, error) {
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE receiver_id = ? ORDER BY id DESC`, userID)
}

func (r *feedbackRepo) ListBySender(ctx context.Context, userID string) ([]domain.Feedback, error) {
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE sender_id = ? ORDER BY id DESC`, userID)
}

func (r *feedbackRepo) ListReplies(ctx context.Context, parentIDs []string) ([]domain.Feedback, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(parentIDs))
	for i, id := range parentIDs {
		args[i] = id
	}
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback
		WHERE parent_id IN (`+placeholders(len(parentIDs))+`) ORDER BY id DESC`, args...)
}

func (r *feedbackRepo) list(ctx context.Context, query string, args ...any) ([]domain.Feedback, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
