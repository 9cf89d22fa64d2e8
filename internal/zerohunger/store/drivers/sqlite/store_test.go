package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store/drivers/sqlite"
	"github.com/aussiebroadwan/zerohunger/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "zh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func createUser(t *testing.T, st store.Store, role domain.Role, email string) domain.User {
	t.Helper()
	u := domain.User{
		ID:           idx.New().String(),
		FirstName:    "Test",
		LastName:     string(role),
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	st := newStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	donor := createUser(t, st, domain.RoleDonor, "Donor@Example.com")
	createUser(t, st, domain.RoleAdmin, "admin1@example.com")
	createUser(t, st, domain.RoleAdmin, "admin2@example.com")

	t.Run("email lookup ignores case", func(t *testing.T) {
		got, err := st.Users().GetUserByEmail(ctx, "donor@example.COM")
		require.NoError(t, err)
		require.Equal(t, donor.ID, got.ID)
		require.Equal(t, domain.RoleDonor, got.Role)
		require.False(t, got.HasSecondFactor())
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := donor
		dup.ID = idx.New().String()
		dup.Email = "DONOR@example.com"
		require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := st.Users().GetUserByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("mfa lifecycle", func(t *testing.T) {
		require.ErrorIs(t, st.Users().EnableMFA(ctx, donor.ID), store.ErrNotFound, "enable needs a secret")

		require.NoError(t, st.Users().UpdateMFASecret(ctx, donor.ID, "SECRET"))
		require.NoError(t, st.Users().EnableMFA(ctx, donor.ID))

		got, err := st.Users().GetUserByID(ctx, donor.ID)
		require.NoError(t, err)
		require.True(t, got.HasSecondFactor())
		require.Equal(t, "SECRET", *got.MFASecret)

		require.NoError(t, st.Users().DisableMFA(ctx, donor.ID))
		got, err = st.Users().GetUserByID(ctx, donor.ID)
		require.NoError(t, err)
		require.False(t, got.HasSecondFactor())
		require.Nil(t, got.MFASecret)
	})

	t.Run("profile", func(t *testing.T) {
		require.NoError(t, st.Users().UpdateProfile(ctx, donor.ID, domain.ProfileUpdate{
			FirstName: "Dana", LastName: "Donor", Address: "1 Main St", Phone: "0400",
		}))
		got, err := st.Users().GetUserByID(ctx, donor.ID)
		require.NoError(t, err)
		require.Equal(t, "Dana Donor", got.FullName())
		require.Equal(t, "1 Main St", got.Address)
		require.Equal(t, domain.RoleDonor, got.Role)
	})

	t.Run("by role and counts", func(t *testing.T) {
		admins, err := st.Users().ListByRole(ctx, domain.RoleAdmin)
		require.NoError(t, err)
		require.Len(t, admins, 2)

		counts, err := st.Users().CountByRole(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(2), counts[domain.RoleAdmin])
		require.Equal(t, int64(1), counts[domain.RoleDonor])
		require.Equal(t, int64(0), counts[domain.RoleAgent])

		byID, err := st.Users().GetUsersByIDs(ctx, []string{donor.ID, admins[0].ID, "missing"})
		require.NoError(t, err)
		require.Len(t, byID, 2)
	})
}

func TestDonationsOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	donor := createUser(t, st, domain.RoleDonor, "d@example.com")

	d := domain.Donation{
		ID: idx.New().String(), DonorID: donor.ID, FoodType: "rice",
		Quantity: 10, OriginalQuantity: 10, Status: domain.StatusPending,
	}
	require.NoError(t, st.Donations().CreateDonation(ctx, d))

	got, err := st.Donations().GetDonationByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Version)

	got.Status = domain.StatusAccepted
	require.NoError(t, st.Donations().UpdateDonation(ctx, got))

	// Same stale copy again.
	require.ErrorIs(t, st.Donations().UpdateDonation(ctx, got), store.ErrConflict)

	fresh, err := st.Donations().GetDonationByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), fresh.Version)
	require.Equal(t, domain.StatusAccepted, fresh.Status)

	missing := fresh
	missing.ID = idx.New().String()
	require.ErrorIs(t, st.Donations().UpdateDonation(ctx, missing), store.ErrNotFound)

	negative := fresh
	negative.Quantity = -1
	require.Error(t, st.Donations().UpdateDonation(ctx, negative), "schema rejects negative quantity")
}

func TestTakeQuantityGuards(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	donor := createUser(t, st, domain.RoleDonor, "d@example.com")

	d := domain.Donation{
		ID: idx.New().String(), DonorID: donor.ID, FoodType: "rice",
		Quantity: 5, OriginalQuantity: 5, Status: domain.StatusAccepted,
	}
	require.NoError(t, st.Donations().CreateDonation(ctx, d))

	got, err := st.Donations().GetDonationByID(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, st.Donations().TakeQuantity(ctx, got, 2))

	// The stale copy loses even though 3 would still fit.
	require.ErrorIs(t, st.Donations().TakeQuantity(ctx, got, 1), store.ErrConflict)

	fresh, err := st.Donations().GetDonationByID(ctx, d.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, fresh.Quantity)
	require.EqualValues(t, 1, fresh.Version)

	// Current version, but more than remains.
	require.ErrorIs(t, st.Donations().TakeQuantity(ctx, fresh, 4), store.ErrConflict)

	fresh.Status = domain.StatusCollected
	require.NoError(t, st.Donations().TakeQuantity(ctx, fresh, 3))

	done, err := st.Donations().GetDonationByID(ctx, d.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, done.Quantity)
	require.Equal(t, domain.StatusCollected, done.Status)

	missing := fresh
	missing.ID = idx.New().String()
	require.ErrorIs(t, st.Donations().TakeQuantity(ctx, missing, 1), store.ErrNotFound)
}

func TestDonationsFilterAndCount(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	donor := createUser(t, st, domain.RoleDonor, "d@example.com")
	collector := createUser(t, st, domain.RoleCollector, "c@example.com")

	parent := domain.Donation{
		ID: idx.New().String(), DonorID: donor.ID, FoodType: "bread",
		Quantity: 6, OriginalQuantity: 10, Status: domain.StatusAccepted,
	}
	require.NoError(t, st.Donations().CreateDonation(ctx, parent))
	child := parent.Split(idx.New().String(), collector.ID, 4, time.Now().UTC())
	require.NoError(t, st.Donations().CreateDonation(ctx, child))
	require.NoError(t, st.Donations().CreateDonation(ctx, domain.Donation{
		ID: idx.New().String(), DonorID: donor.ID, FoodType: "soup",
		Quantity: 2, OriginalQuantity: 2, Status: domain.StatusPending,
	}))

	all, err := st.Donations().ListDonations(ctx, domain.DonationFilter{DonorID: donor.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "soup", all[0].FoodType, "newest first")

	children, err := st.Donations().ListDonations(ctx, domain.DonationFilter{ParentID: parent.ID})
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, collector.ID, children[0].CollectorID)
	require.NotNil(t, children[0].CollectionTime)

	parents, err := st.Donations().ListDonations(ctx, domain.DonationFilter{ParentsOnly: true, Statuses: []domain.Status{domain.StatusAccepted}})
	require.NoError(t, err)
	require.Len(t, parents, 1)

	counts, err := st.Donations().CountByStatus(ctx, domain.DonationFilter{DonorID: donor.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[domain.StatusPending])
	require.Equal(t, int64(1), counts[domain.StatusAccepted])
	require.Equal(t, int64(1), counts[domain.StatusCollected])
	require.Equal(t, int64(0), counts[domain.StatusRejected])
	require.Equal(t, int64(3), counts.Total())

	mine, err := st.Donations().CountByStatus(ctx, domain.DonationFilter{CollectorID: collector.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), mine.Total())
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	donor := createUser(t, st, domain.RoleDonor, "d@example.com")

	id := idx.New().String()
	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Donations().CreateDonation(ctx, domain.Donation{
			ID: id, DonorID: donor.ID, FoodType: "x", Quantity: 1, OriginalQuantity: 1, Status: domain.StatusPending,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Donations().GetDonationByID(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	u := createUser(t, st, domain.RoleAgent, "a@example.com")

	live := domain.Session{
		ID: "live", TempUserID: u.ID, State: domain.SessionPendingSecondFactor,
		CreatedAt: time.Now().UTC(), ExpiresAt: time.Now().Add(time.Hour),
	}
	expired := live
	expired.ID = "expired"
	expired.ExpiresAt = time.Now().Add(-time.Minute)

	require.NoError(t, st.Sessions().CreateSession(ctx, live))
	require.NoError(t, st.Sessions().CreateSession(ctx, expired))

	got, err := st.Sessions().GetSession(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.TempUserID)
	require.Empty(t, got.UserID)

	_, err = st.Sessions().GetSession(ctx, "expired")
	require.ErrorIs(t, err, store.ErrNotFound)

	got.State = domain.SessionVerified
	got.UserID = u.ID
	got.TempUserID = ""
	require.NoError(t, st.Sessions().UpdateSession(ctx, got))

	got, err = st.Sessions().GetSession(ctx, "live")
	require.NoError(t, err)
	require.True(t, got.Verified())

	require.NoError(t, st.Sessions().DeleteExpiredSessions(ctx))
	require.NoError(t, st.Sessions().DeleteSession(ctx, "live"))
	require.NoError(t, st.Sessions().DeleteSession(ctx, "live"))
	_, err = st.Sessions().GetSession(ctx, "live")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFeedbackAndLocations(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	donor := createUser(t, st, domain.RoleDonor, "d@example.com")
	admin := createUser(t, st, domain.RoleAdmin, "admin@example.com")
	agent := createUser(t, st, domain.RoleAgent, "agent@example.com")

	fb := domain.Feedback{ID: idx.New().String(), SenderID: donor.ID, ReceiverID: admin.ID, Message: "hi", Status: domain.FeedbackPending}
	require.NoError(t, st.Feedback().CreateFeedback(ctx, fb))
	require.NoError(t, st.Feedback().MarkReplied(ctx, fb.ID, "hello", time.Now()))

	got, err := st.Feedback().GetFeedbackByID(ctx, fb.ID)
	require.NoError(t, err)
	require.Equal(t, domain.FeedbackReplied, got.Status)
	require.Equal(t, "hello", got.Reply)
	require.NotNil(t, got.RepliedAt)

	require.ErrorIs(t, st.Feedback().MarkReplied(ctx, "nope", "x", time.Now()), store.ErrNotFound)

	require.NoError(t, st.Locations().UpsertLocation(ctx, domain.AgentLocation{AgentID: agent.ID, Latitude: 1, Longitude: 2, UpdatedAt: time.Now()}))
	require.NoError(t, st.Locations().UpsertLocation(ctx, domain.AgentLocation{AgentID: agent.ID, Latitude: 3, Longitude: 4, UpdatedAt: time.Now()}))

	loc, err := st.Locations().GetLocation(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, 3.0, loc.Latitude)
	require.Equal(t, 4.0, loc.Longitude)

	all, err := st.Locations().ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, st.Locations().ClearLocations(ctx))
	_, err = st.Locations().GetLocation(ctx, agent.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
