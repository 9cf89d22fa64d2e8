package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	goredis "github.com/redis/go-redis/v9"
)

// SessionStore keeps one hash per session. Redis expires the key at the
// session's expiry, so there is nothing for housekeeping to do.
type SessionStore struct {
	client *goredis.Client
}

var _ store.Sessions = (*SessionStore)(nil)

func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }

// CreateSession writes the hash and its expiry in one transaction. The
// WATCH makes a concurrent create of the same id fail instead of merging.
func (s *SessionStore) CreateSession(ctx context.Context, sess domain.Session) error {
	key := sessionKey(sess.ID)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return store.ErrAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key,
				"user_id", sess.UserID,
				"temp_user_id", sess.TempUserID,
				"state", string(sess.State),
				"failed_attempts", sess.FailedAttempts,
				"created_at", sess.CreatedAt.UTC().Unix(),
				"expires_at", sess.ExpiresAt.UTC().Unix(),
			)
			p.ExpireAt(ctx, key, sess.ExpiresAt)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return domain.Session{}, err
	}
	if len(data) == 0 {
		return domain.Session{}, store.ErrNotFound
	}

	sess := domain.Session{
		ID:         id,
		UserID:     data["user_id"],
		TempUserID: data["temp_user_id"],
		State:      domain.SessionState(data["state"]),
	}
	if n, err := strconv.Atoi(data["failed_attempts"]); err == nil {
		sess.FailedAttempts = n
	}
	if unix, err := strconv.ParseInt(data["created_at"], 10, 64); err == nil {
		sess.CreatedAt = time.Unix(unix, 0).UTC()
	}
	if unix, err := strconv.ParseInt(data["expires_at"], 10, 64); err == nil {
		sess.ExpiresAt = time.Unix(unix, 0).UTC()
	}
	if sess.Expired(time.Now()) {
		return domain.Session{}, store.ErrNotFound
	}
	return sess, nil
}

// UpdateSession only touches an existing key. The WATCH guards against
// resurrecting a session deleted by a concurrent logout.
func (s *SessionStore) UpdateSession(ctx context.Context, sess domain.Session) error {
	key := sessionKey(sess.ID)
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.HSet(ctx, key,
				"user_id", sess.UserID,
				"temp_user_id", sess.TempUserID,
				"state", string(sess.State),
				"failed_attempts", sess.FailedAttempts,
			)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return store.ErrConflict
	}
	return err
}

func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}

// DeleteExpiredSessions is a no-op: keys carry their own TTL.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context) error {
	return nil
}
