//go:build e2e

package zerohunger_test

import (
	"testing"

	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/stretchr/testify/require"
)

// TestSecondFactorRoundTrip enrols a donor, logs out and logs back in
// through the pending second factor step.
func TestSecondFactorRoundTrip(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)
	ctx := t.Context()

	donor := signupAndEnroll(t, baseURL, "donor", "donor@e2e.test")

	dash, err := donor.Client.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "donor", dash.Role)

	require.NoError(t, donor.Client.Logout(ctx))
	_, err = donor.Client.Dashboard(ctx)
	require.True(t, zhclient.IsUnauthorized(err), err)

	state, err := donor.Client.Login(ctx, "donor@e2e.test", testPassword)
	require.NoError(t, err)
	require.Equal(t, zhclient.StatePendingSecondFactor, state.State)

	_, err = donor.Client.Dashboard(ctx)
	require.True(t, zhclient.IsUnauthorized(err), "an unverified session is not signed in")

	_, err = donor.Client.VerifySecondFactor(ctx, "000000")
	require.True(t, zhclient.IsBadRequest(err), err)

	state, err = donor.Client.VerifySecondFactor(ctx, currentCode(t, donor.Secret))
	require.NoError(t, err)
	require.Equal(t, zhclient.StateVerified, state.State)

	_, err = donor.Client.Dashboard(ctx)
	require.NoError(t, err)
}

func TestRoleGate(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)
	ctx := t.Context()

	donor := signupAndEnroll(t, baseURL, "donor", "donor@e2e.test")

	_, err := donor.Client.AdminPending(ctx)
	require.True(t, zhclient.IsForbidden(err), err)

	_, err = donor.Client.Locations(ctx)
	require.True(t, zhclient.IsForbidden(err), err)

	anon := newClient(t, baseURL)
	_, err = anon.DonorPending(ctx)
	require.True(t, zhclient.IsUnauthorized(err), err)
}
