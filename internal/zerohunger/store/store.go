package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by conditional updates when the row changed
	// since it was read.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers implement
// this. It exposes sub-repositories so a Tx-scoped Store hands out
// Tx-scoped repos and nested transactions cannot happen by accident.
type Store interface {
	Users() Users
	Donations() Donations
	Feedback() Feedback
	Sessions() Sessions
	Locations() Locations

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A taken email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile overwrites the mutable profile fields and bumps updated_at.
	UpdateProfile(ctx context.Context, userID string, p domain.ProfileUpdate) error

	// UpdatePasswordHash replaces the stored hash, used when upgrading
	// imported bcrypt hashes on login.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateMFASecret stores a TOTP secret without enabling 2FA.
	UpdateMFASecret(ctx context.Context, userID, secret string) error

	// EnableMFA sets mfa_enabled to now.
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears mfa_enabled and mfa_secret.
	DisableMFA(ctx context.Context, userID string) error

	// ListByRole returns users with the given role, oldest first.
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)

	// GetUsersByIDs resolves a set of ids. Unknown ids are skipped.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]domain.User, error)

	CountByRole(ctx context.Context) (domain.RoleCounts, error)
}

type Donations interface {
	CreateDonation(ctx context.Context, d domain.Donation) error

	GetDonationByID(ctx context.Context, id string) (domain.Donation, error)

	// UpdateDonation writes the mutable fields of d only if the stored
	// version still equals d.Version, and stores d.Version+1. A stale
	// version yields ErrConflict.
	UpdateDonation(ctx context.Context, d domain.Donation) error

	// TakeQuantity removes q from the stored quantity and writes d's status
	// and collection time, only if the stored version equals d.Version and
	// at least q remains. Otherwise it yields ErrConflict.
	TakeQuantity(ctx context.Context, d domain.Donation, q int64) error

	DeleteDonation(ctx context.Context, id string) error

	// ListDonations returns matches newest first.
	ListDonations(ctx context.Context, f domain.DonationFilter) ([]domain.Donation, error)

	// CountByStatus groups matches by status.
	CountByStatus(ctx context.Context, f domain.DonationFilter) (domain.StatusCounts, error)
}

type Feedback interface {
	CreateFeedback(ctx context.Context, f domain.Feedback) error

	GetFeedbackByID(ctx context.Context, id string) (domain.Feedback, error)

	// MarkReplied flips a pending entry to replied and records the reply.
	MarkReplied(ctx context.Context, id, reply string, at time.Time) error

	// ListByReceiver and ListBySender return entries newest first.
	ListByReceiver(ctx context.Context, userID string) ([]domain.Feedback, error)
	ListBySender(ctx context.Context, userID string) ([]domain.Feedback, error)

	// ListReplies returns the replies to any of parentIDs, newest first.
	ListReplies(ctx context.Context, parentIDs []string) ([]domain.Feedback, error)
}

// Sessions holds login state outside the process. Both the SQL store and
// the Redis driver implement it.
type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSession returns an unexpired session.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// UpdateSession overwrites state, bound user ids and failed attempts.
	UpdateSession(ctx context.Context, s domain.Session) error

	// DeleteSession is idempotent.
	DeleteSession(ctx context.Context, id string) error

	DeleteExpiredSessions(ctx context.Context) error
}

// Locations is the agent position feed. Last write wins.
type Locations interface {
	UpsertLocation(ctx context.Context, loc domain.AgentLocation) error
	GetLocation(ctx context.Context, agentID string) (domain.AgentLocation, error)
	ListLocations(ctx context.Context) ([]domain.AgentLocation, error)

	// ClearLocations forgets every position. Called at shutdown.
	ClearLocations(ctx context.Context) error
}
