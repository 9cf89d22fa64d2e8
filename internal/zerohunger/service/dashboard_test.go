package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/stretchr/testify/require"
)

func TestDashboardCounts(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	donate(t, f, c.donor, 1)
	accepted := donate(t, f, c.donor, 4)
	assigned := donate(t, f, c.donor, 2)
	_, err := f.donations.Accept(ctx, c.admin, accepted.ID)
	require.NoError(t, err)
	_, err = f.donations.Accept(ctx, c.admin, assigned.ID)
	require.NoError(t, err)
	_, err = f.donations.Assign(ctx, c.admin, assigned.ID, c.agent.ID, "")
	require.NoError(t, err)
	_, err = f.donations.Collect(ctx, c.collector, accepted.ID, 1)
	require.NoError(t, err)

	admin, err := f.dashboard.Counts(ctx, c.admin)
	require.NoError(t, err)
	require.EqualValues(t, 1, admin.Users[domain.RoleDonor])
	require.EqualValues(t, 1, admin.Users[domain.RoleCollector])
	require.EqualValues(t, 3, admin.Donations.Total())

	donor, err := f.dashboard.Counts(ctx, c.donor)
	require.NoError(t, err)
	require.EqualValues(t, 1, donor.Donations[domain.StatusPending])
	require.Nil(t, donor.Users)

	agent, err := f.dashboard.Counts(ctx, c.agent)
	require.NoError(t, err)
	require.EqualValues(t, 1, *agent.Assigned)
	require.EqualValues(t, 0, *agent.Collected)

	collector, err := f.dashboard.Counts(ctx, c.collector)
	require.NoError(t, err)
	require.EqualValues(t, 1, *collector.Collected)
	require.EqualValues(t, 1, *collector.Available)
	require.EqualValues(t, 1, *collector.Assigned)

	_, err = f.dashboard.Counts(ctx, domain.User{Role: "chef"})
	require.ErrorIs(t, err, ErrWrongRole)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t, domain.RoleDonor, "donor@example.org")

	_, err := f.users.UpdateProfile(ctx, u, ProfileInput{FirstName: "", LastName: "X"})
	require.ErrorIs(t, err, ErrValidation)

	got, err := f.users.UpdateProfile(ctx, u, ProfileInput{
		FirstName: "Dana", LastName: "Scully", Gender: "f", Address: "42 Side St", Phone: "0411",
	})
	require.NoError(t, err)
	require.Equal(t, "Dana Scully", got.FullName())
	require.Equal(t, "42 Side St", got.Address)
	require.Equal(t, domain.RoleDonor, got.Role)
	require.Equal(t, u.Email, got.Email)

	agents, err := f.users.ListAgents(ctx)
	require.NoError(t, err)
	require.Empty(t, agents)
}
