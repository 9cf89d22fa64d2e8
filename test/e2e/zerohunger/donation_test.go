//go:build e2e

package zerohunger_test

import (
	"testing"

	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/stretchr/testify/require"
)

// TestDonationFlow walks one donation through acceptance, a partial
// collection, an agent assignment and the feedback thread.
func TestDonationFlow(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)
	ctx := t.Context()

	admin := signupAndEnroll(t, baseURL, "admin", "admin@e2e.test")
	donor := signupAndEnroll(t, baseURL, "donor", "donor@e2e.test")
	collector := signupAndEnroll(t, baseURL, "collector", "collector@e2e.test")
	agent := signupAndEnroll(t, baseURL, "agent", "agent@e2e.test")

	d, err := donor.Client.Donate(ctx, zhclient.DonationRequest{
		FoodType: "curry", Quantity: 8, Address: "10 Long Rd", Phone: "0400000100",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", d.Status)

	_, err = admin.Client.Accept(ctx, d.ID)
	require.NoError(t, err)

	available, err := collector.Client.CollectorAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)

	res, err := collector.Client.Collect(ctx, d.ID, 5)
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Parent.Quantity)
	require.EqualValues(t, 5, res.Child.Quantity)

	_, err = collector.Client.Collect(ctx, d.ID, 4)
	require.True(t, zhclient.IsBadRequest(err), err)

	_, err = admin.Client.Assign(ctx, d.ID, zhclient.AssignRequest{AgentID: agent.User.ID})
	require.NoError(t, err)

	done, err := agent.Client.AgentCollect(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, "collected", done.Status)

	collected, err := admin.Client.AdminCollected(ctx)
	require.NoError(t, err)
	require.Len(t, collected, 1)

	_, err = donor.Client.SendFeedback(ctx, zhclient.FeedbackRequest{Message: "thanks for the pickup"})
	require.NoError(t, err)

	inbox, err := admin.Client.Feedback(ctx)
	require.NoError(t, err)
	require.Len(t, inbox.Received, 1)

	_, err = admin.Client.Reply(ctx, inbox.Received[0].ID, "you're welcome")
	require.NoError(t, err)
}

func TestLocationUpdates(t *testing.T) {
	baseURL := setupContainer(t, relaxedLimits)
	ctx := t.Context()

	admin := signupAndEnroll(t, baseURL, "admin", "admin@e2e.test")
	agent := signupAndEnroll(t, baseURL, "agent", "agent@e2e.test")

	_, err := agent.Client.UpdateLocation(ctx, -33.8688, 151.2093)
	require.NoError(t, err)

	loc, err := admin.Client.Location(ctx, agent.User.ID)
	require.NoError(t, err)
	require.InDelta(t, -33.8688, loc.Latitude, 1e-9)

	_, err = agent.Client.UpdateLocation(ctx, 120, 0)
	require.True(t, zhclient.IsBadRequest(err), err)
}
