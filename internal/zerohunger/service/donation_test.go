package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/stretchr/testify/require"
)

type cast struct {
	donor, admin, agent, collector domain.User
}

func newCast(t *testing.T, f *fixture) cast {
	t.Helper()
	return cast{
		donor:     f.signup(t, domain.RoleDonor, "donor@example.org"),
		admin:     f.signup(t, domain.RoleAdmin, "admin@example.org"),
		agent:     f.signup(t, domain.RoleAgent, "agent@example.org"),
		collector: f.signup(t, domain.RoleCollector, "collector@example.org"),
	}
}

func donate(t *testing.T, f *fixture, donor domain.User, qty int64) domain.Donation {
	t.Helper()
	d, err := f.donations.Create(context.Background(), donor, NewDonation{
		FoodType: "rice", Quantity: qty, Address: "1 Main St", Phone: "0400000000",
	})
	require.NoError(t, err)
	return d
}

// requireTreeBalanced checks that what is left on the parent plus every
// child adds up to the original quantity.
func requireTreeBalanced(t *testing.T, f *fixture, parentID string) (domain.Donation, []domain.Donation) {
	t.Helper()
	ctx := context.Background()

	parent, err := f.store.Donations().GetDonationByID(ctx, parentID)
	require.NoError(t, err)
	children, err := f.store.Donations().ListDonations(ctx, domain.DonationFilter{ParentID: parentID})
	require.NoError(t, err)

	sum := parent.Quantity
	for _, c := range children {
		require.Equal(t, domain.StatusCollected, c.Status)
		sum += c.Quantity
	}
	require.Equal(t, parent.OriginalQuantity, sum)
	return parent, children
}

func TestCollectScenario(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	d := donate(t, f, c.donor, 10)
	require.Equal(t, domain.StatusPending, d.Status)
	require.EqualValues(t, 10, d.OriginalQuantity)

	d, err := f.donations.Accept(ctx, c.admin, d.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAccepted, d.Status)

	res, err := f.donations.Collect(ctx, c.collector, d.ID, 4)
	require.NoError(t, err)
	require.EqualValues(t, 6, res.Parent.Quantity)
	require.Equal(t, domain.StatusAccepted, res.Parent.Status)
	require.EqualValues(t, 4, res.Child.Quantity)
	require.Equal(t, domain.StatusCollected, res.Child.Status)
	require.Equal(t, d.ID, res.Child.ParentID)
	require.Equal(t, c.collector.ID, res.Child.CollectorID)

	parent, children := requireTreeBalanced(t, f, d.ID)
	require.Len(t, children, 1)
	require.Equal(t, domain.StatusAccepted, parent.Status)

	res, err = f.donations.Collect(ctx, c.collector, d.ID, 6)
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Parent.Quantity)
	require.Equal(t, domain.StatusCollected, res.Parent.Status)
	require.EqualValues(t, 6, res.Child.Quantity)

	parent, children = requireTreeBalanced(t, f, d.ID)
	require.Len(t, children, 2)
	require.Equal(t, domain.StatusCollected, parent.Status)
	require.NotNil(t, parent.CollectionTime)

	// Nothing more can be taken.
	_, err = f.donations.Collect(ctx, c.collector, d.ID, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)

	types := []string{}
	for _, e := range f.events.Events() {
		types = append(types, e.Type)
	}
	require.Equal(t, []string{
		"donation.create", "donation.accept", "donation.collect", "donation.collect", "donation.collect",
	}, types)
}

func TestCollectMoreThanRemaining(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	d := donate(t, f, c.donor, 10)
	_, err := f.donations.Accept(ctx, c.admin, d.ID)
	require.NoError(t, err)
	_, err = f.donations.Collect(ctx, c.collector, d.ID, 7)
	require.NoError(t, err)

	before, _ := requireTreeBalanced(t, f, d.ID)
	require.EqualValues(t, 3, before.Quantity)

	for _, q := range []int64{5, 0, -1} {
		_, err = f.donations.Collect(ctx, c.collector, d.ID, q)
		require.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", q)
	}

	after, children := requireTreeBalanced(t, f, d.ID)
	require.Len(t, children, 1)
	require.Equal(t, before.Quantity, after.Quantity)
	require.Equal(t, before.Version, after.Version)
	require.Equal(t, domain.StatusAccepted, after.Status)
}

func TestConcurrentCollectNeverOverdraws(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	d := donate(t, f, c.donor, 10)
	_, err := f.donations.Accept(ctx, c.admin, d.ID)
	require.NoError(t, err)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.donations.Collect(ctx, c.collector, d.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
				rejected++
			default:
				t.Errorf("unexpected collect error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, ok)
	require.Equal(t, workers-10, rejected)

	parent, children := requireTreeBalanced(t, f, d.ID)
	require.EqualValues(t, 0, parent.Quantity)
	require.Equal(t, domain.StatusCollected, parent.Status)
	require.Len(t, children, 10)
}

func TestTransitionsFollowTheTable(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	t.Run("only admins accept", func(t *testing.T) {
		d := donate(t, f, c.donor, 2)
		_, err := f.donations.Accept(ctx, c.donor, d.ID)
		require.ErrorIs(t, err, ErrWrongRole)
	})

	t.Run("only donors create", func(t *testing.T) {
		_, err := f.donations.Create(ctx, c.admin, NewDonation{FoodType: "bread", Quantity: 1, Address: "a", Phone: "p"})
		require.ErrorIs(t, err, ErrWrongRole)
	})

	t.Run("create validates input", func(t *testing.T) {
		_, err := f.donations.Create(ctx, c.donor, NewDonation{FoodType: "bread", Quantity: 0, Address: "a", Phone: "p"})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("collect requires accepted", func(t *testing.T) {
		d := donate(t, f, c.donor, 2)
		_, err := f.donations.Collect(ctx, c.collector, d.ID, 1)
		require.ErrorIs(t, err, ErrInvalidTransition)
		requireTreeBalanced(t, f, d.ID)
	})

	t.Run("reject from accepted then nothing else", func(t *testing.T) {
		d := donate(t, f, c.donor, 2)
		_, err := f.donations.Accept(ctx, c.admin, d.ID)
		require.NoError(t, err)
		d, err = f.donations.Reject(ctx, c.admin, d.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusRejected, d.Status)

		_, err = f.donations.Accept(ctx, c.admin, d.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
		_, err = f.donations.Assign(ctx, c.admin, d.ID, c.agent.ID, "")
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("assign needs an agent", func(t *testing.T) {
		d := donate(t, f, c.donor, 2)
		_, err := f.donations.Accept(ctx, c.admin, d.ID)
		require.NoError(t, err)

		_, err = f.donations.Assign(ctx, c.admin, d.ID, c.collector.ID, "")
		require.ErrorIs(t, err, ErrValidation)
		_, err = f.donations.Assign(ctx, c.admin, d.ID, "missing", "")
		require.ErrorIs(t, err, ErrValidation)

		d, err = f.donations.Assign(ctx, c.admin, d.ID, c.agent.ID, "back door")
		require.NoError(t, err)
		require.Equal(t, domain.StatusAssigned, d.Status)
		require.Equal(t, c.agent.ID, d.AgentID)
		require.Equal(t, "back door", d.AdminToAgentMsg)

		other := f.signup(t, domain.RoleAgent, "other-agent@example.org")
		_, err = f.donations.AgentCollect(ctx, other, d.ID)
		require.ErrorIs(t, err, ErrWrongRole)

		d, err = f.donations.AgentCollect(ctx, c.agent, d.ID)
		require.NoError(t, err)
		require.Equal(t, domain.StatusCollected, d.Status)
		require.NotNil(t, d.CollectionTime)

		_, err = f.donations.AgentCollect(ctx, c.agent, d.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("children accept nothing", func(t *testing.T) {
		d := donate(t, f, c.donor, 5)
		_, err := f.donations.Accept(ctx, c.admin, d.ID)
		require.NoError(t, err)
		res, err := f.donations.Collect(ctx, c.collector, d.ID, 2)
		require.NoError(t, err)

		_, err = f.donations.Collect(ctx, c.collector, res.Child.ID, 1)
		require.ErrorIs(t, err, ErrInvalidTransition)
		_, err = f.donations.Reject(ctx, c.admin, res.Child.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("missing donation", func(t *testing.T) {
		_, err := f.donations.Accept(ctx, c.admin, "does-not-exist")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteRejected(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	pending := donate(t, f, c.donor, 3)
	require.ErrorIs(t, f.donations.DeleteRejected(ctx, c.donor, pending.ID), ErrInvalidTransition)

	d := donate(t, f, c.donor, 3)
	_, err := f.donations.Reject(ctx, c.admin, d.ID)
	require.NoError(t, err)

	stranger := f.signup(t, domain.RoleDonor, "stranger@example.org")
	require.ErrorIs(t, f.donations.DeleteRejected(ctx, stranger, d.ID), ErrNotFound)

	require.NoError(t, f.donations.DeleteRejected(ctx, c.donor, d.ID))
	_, err = f.donations.Get(ctx, d.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Partly collected donations keep their history.
	partial := donate(t, f, c.donor, 4)
	_, err = f.donations.Accept(ctx, c.admin, partial.ID)
	require.NoError(t, err)
	_, err = f.donations.Collect(ctx, c.collector, partial.ID, 1)
	require.NoError(t, err)
	_, err = f.donations.Reject(ctx, c.admin, partial.ID)
	require.NoError(t, err)
	require.ErrorIs(t, f.donations.DeleteRejected(ctx, c.donor, partial.ID), ErrInvalidTransition)
	requireTreeBalanced(t, f, partial.ID)
}

func TestRoleViews(t *testing.T) {
	f := newFixture(t)
	c := newCast(t, f)
	ctx := context.Background()

	pending := donate(t, f, c.donor, 1)
	accepted := donate(t, f, c.donor, 5)
	assigned := donate(t, f, c.donor, 2)

	_, err := f.donations.Accept(ctx, c.admin, accepted.ID)
	require.NoError(t, err)
	_, err = f.donations.Accept(ctx, c.admin, assigned.ID)
	require.NoError(t, err)
	_, err = f.donations.Assign(ctx, c.admin, assigned.ID, c.agent.ID, "")
	require.NoError(t, err)
	res, err := f.donations.Collect(ctx, c.collector, accepted.ID, 2)
	require.NoError(t, err)

	ids := func(vs []domain.DonationView) []string {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return out
	}

	donorPending, err := f.donations.DonorPending(ctx, c.donor)
	require.NoError(t, err)
	require.Equal(t, []string{assigned.ID, accepted.ID, pending.ID}, ids(donorPending))
	require.NotNil(t, donorPending[0].Donor)
	require.Equal(t, c.donor.Email, donorPending[0].Donor.Email)
	require.NotNil(t, donorPending[0].Agent)

	available, err := f.donations.CollectorAvailable(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{accepted.ID}, ids(available))

	previous, err := f.donations.CollectorPrevious(ctx, c.collector)
	require.NoError(t, err)
	require.Equal(t, []string{res.Child.ID}, ids(previous))
	require.NotNil(t, previous[0].Collector)

	agentPending, err := f.donations.AgentPending(ctx, c.agent)
	require.NoError(t, err)
	require.Equal(t, []string{assigned.ID}, ids(agentPending))

	adminPending, err := f.donations.AdminPending(ctx)
	require.NoError(t, err)
	require.Len(t, adminPending, 3)

	counts, err := f.donations.CountByStatus(ctx, domain.DonationFilter{DonorID: c.donor.ID, ParentsOnly: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[domain.StatusPending])
	require.EqualValues(t, 1, counts[domain.StatusAccepted])
	require.EqualValues(t, 1, counts[domain.StatusAssigned])
	require.EqualValues(t, 0, counts[domain.StatusCollected])
}
