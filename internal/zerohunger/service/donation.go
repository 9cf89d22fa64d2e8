package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/events"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/metrics"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/idx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
)

const defaultCollectAttempts = 3

// NewDonation is the donor's donation form.
type NewDonation struct {
	FoodType    string     `json:"food_type" validate:"notblank"`
	Quantity    int64      `json:"quantity" validate:"gt=0"`
	CookingTime *time.Time `json:"cooking_time"`
	Address     string     `json:"address" validate:"notblank"`
	Phone       string     `json:"phone" validate:"notblank"`
	Message     string     `json:"donor_to_admin_msg"`
}

// CollectResult is the parent after a partial collection and the child
// record split off for the collector.
type CollectResult struct {
	Parent domain.Donation
	Child  domain.Donation
}

// DonationService is the lifecycle engine. Every mutation is checked
// against domain.Lifecycle before it touches the store.
type DonationService struct {
	Store  store.Store
	Events events.Publisher

	// MaxCollectAttempts bounds retries after an optimistic version
	// conflict. Defaults to 3.
	MaxCollectAttempts int

	Now func() time.Time
}

func (s *DonationService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create records a new pending donation for donor.
func (s *DonationService) Create(ctx context.Context, donor domain.User, in NewDonation) (domain.Donation, error) {
	if err := validateStruct(in); err != nil {
		return domain.Donation{}, err
	}

	d := domain.Donation{}
	next, err := d.Next(domain.ActionCreate, donor.Role)
	if err != nil {
		return domain.Donation{}, s.rejected(domain.ActionCreate, mapDomainErr(err))
	}

	now := s.now()
	d = domain.Donation{
		ID:               idx.New().String(),
		DonorID:          donor.ID,
		FoodType:         strings.TrimSpace(in.FoodType),
		Quantity:         in.Quantity,
		OriginalQuantity: in.Quantity,
		CookingTime:      in.CookingTime,
		Address:          strings.TrimSpace(in.Address),
		Phone:            strings.TrimSpace(in.Phone),
		DonorToAdminMsg:  in.Message,
		Status:           next,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Store.Donations().CreateDonation(ctx, d); err != nil {
		return domain.Donation{}, mapStoreErr(err)
	}

	s.applied(ctx, domain.ActionCreate, d, donor)
	return d, nil
}

// Accept moves a pending donation to accepted.
func (s *DonationService) Accept(ctx context.Context, admin domain.User, id string) (domain.Donation, error) {
	return s.transition(ctx, domain.ActionAccept, admin, id, nil)
}

// Reject closes a pending or accepted donation.
func (s *DonationService) Reject(ctx context.Context, admin domain.User, id string) (domain.Donation, error) {
	return s.transition(ctx, domain.ActionReject, admin, id, nil)
}

// Assign hands an accepted donation to an agent, with an optional note for
// the agent.
func (s *DonationService) Assign(ctx context.Context, admin domain.User, id, agentID, note string) (domain.Donation, error) {
	if strings.TrimSpace(agentID) == "" {
		return domain.Donation{}, invalidField("agent_id", "agent_id is required")
	}

	agent, err := s.Store.Users().GetUserByID(ctx, agentID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Donation{}, invalidField("agent_id", "agent does not exist")
	}
	if err != nil {
		return domain.Donation{}, mapStoreErr(err)
	}
	if agent.Role != domain.RoleAgent {
		return domain.Donation{}, invalidField("agent_id", "user is not an agent")
	}

	return s.transition(ctx, domain.ActionAssign, admin, id, func(d *domain.Donation) error {
		d.AgentID = agent.ID
		d.AdminToAgentMsg = note
		return nil
	})
}

// AgentCollect marks an assigned donation collected by its agent.
func (s *DonationService) AgentCollect(ctx context.Context, agent domain.User, id string) (domain.Donation, error) {
	return s.transition(ctx, domain.ActionAgentCollect, agent, id, func(d *domain.Donation) error {
		if d.AgentID != agent.ID {
			return fmt.Errorf("%w: donation is assigned to another agent", ErrWrongRole)
		}
		at := s.now()
		d.CollectionTime = &at
		return nil
	})
}

// transition applies a single-record action: read, check the table,
// mutate, conditional write.
func (s *DonationService) transition(
	ctx context.Context,
	action domain.Action,
	actor domain.User,
	id string,
	mutate func(d *domain.Donation) error,
) (domain.Donation, error) {
	d, err := s.Store.Donations().GetDonationByID(ctx, id)
	if err != nil {
		return domain.Donation{}, s.rejected(action, mapStoreErr(err))
	}

	next, err := d.Next(action, actor.Role)
	if err != nil {
		return d, s.rejected(action, mapDomainErr(err))
	}

	if mutate != nil {
		if err := mutate(&d); err != nil {
			return d, s.rejected(action, err)
		}
	}
	d.Status = next

	if err := s.Store.Donations().UpdateDonation(ctx, d); err != nil {
		return d, s.rejected(action, mapStoreErr(err))
	}
	d.Version++
	d.UpdatedAt = s.now()

	s.applied(ctx, action, d, actor)
	return d, nil
}

// Collect splits q units off an accepted donation for collector. The parent
// decrement and the child insert commit together. When nothing remains the
// parent becomes collected.
func (s *DonationService) Collect(ctx context.Context, collector domain.User, id string, q int64) (CollectResult, error) {
	attempts := s.MaxCollectAttempts
	if attempts <= 0 {
		attempts = defaultCollectAttempts
	}

	for attempt := 1; ; attempt++ {
		res, err := s.collectOnce(ctx, collector, id, q)
		if err == nil {
			s.applied(ctx, domain.ActionCollect, res.Child, collector)
			if res.Parent.Status == domain.StatusCollected {
				s.publish(ctx, events.NewDonationEvent(domain.ActionCollect, res.Parent, collector.ID, collector.Role, s.now()))
			}
			return res, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return CollectResult{}, s.rejected(domain.ActionCollect, err)
		}
		if attempt >= attempts {
			return CollectResult{}, s.rejected(domain.ActionCollect, mapStoreErr(err))
		}

		metrics.CollectRetries.Inc()
		slogx.FromContext(ctx).Debug("collect lost a version race, retrying",
			"donation_id", id,
			"attempt", attempt,
		)
	}
}

func (s *DonationService) collectOnce(ctx context.Context, collector domain.User, id string, q int64) (CollectResult, error) {
	var res CollectResult

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		parent, err := tx.Donations().GetDonationByID(ctx, id)
		if err != nil {
			return mapStoreErr(err)
		}
		if _, err := parent.Next(domain.ActionCollect, collector.Role); err != nil {
			return mapDomainErr(err)
		}
		if q <= 0 || q > parent.Quantity {
			return fmt.Errorf("%w: %d requested, %d remaining", ErrInvalidQuantity, q, parent.Quantity)
		}

		now := s.now()
		child := parent.Split(idx.New().String(), collector.ID, q, now)

		parent.Quantity -= q
		if parent.Quantity == 0 {
			parent.Status = domain.StatusCollected
			parent.CollectionTime = &now
		}

		// A stale version or a short quantity comes back as
		// store.ErrConflict so the caller can retry with a fresh read.
		if err := tx.Donations().TakeQuantity(ctx, parent, q); err != nil {
			return err
		}
		if err := tx.Donations().CreateDonation(ctx, child); err != nil {
			return mapStoreErr(err)
		}

		parent.Version++
		parent.UpdatedAt = now
		res = CollectResult{Parent: parent, Child: child}
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return CollectResult{}, mapStoreErr(err)
	}
	return res, err
}

// DeleteRejected lets a donor remove their own rejected donation.
func (s *DonationService) DeleteRejected(ctx context.Context, donor domain.User, id string) error {
	d, err := s.Store.Donations().GetDonationByID(ctx, id)
	if err != nil {
		return s.rejected(domain.ActionDelete, mapStoreErr(err))
	}
	if d.DonorID != donor.ID {
		// Someone else's donation is reported as absent.
		return s.rejected(domain.ActionDelete, ErrNotFound)
	}
	if _, err := d.Next(domain.ActionDelete, donor.Role); err != nil {
		return s.rejected(domain.ActionDelete, mapDomainErr(err))
	}
	if d.CollectedQuantity() > 0 {
		return s.rejected(domain.ActionDelete, fmt.Errorf("%w: part of the donation was already collected", ErrInvalidTransition))
	}

	if err := s.Store.Donations().DeleteDonation(ctx, id); err != nil {
		return s.rejected(domain.ActionDelete, mapStoreErr(err))
	}
	s.applied(ctx, domain.ActionDelete, d, donor)
	return nil
}

// Get returns one donation with its parties resolved.
func (s *DonationService) Get(ctx context.Context, id string) (domain.DonationView, error) {
	d, err := s.Store.Donations().GetDonationByID(ctx, id)
	if err != nil {
		return domain.DonationView{}, mapStoreErr(err)
	}
	views, err := s.populate(ctx, []domain.Donation{d})
	if err != nil {
		return domain.DonationView{}, err
	}
	return views[0], nil
}

// List returns matching donations newest first, with donor, agent and
// collector summaries filled in.
func (s *DonationService) List(ctx context.Context, f domain.DonationFilter) ([]domain.DonationView, error) {
	ds, err := s.Store.Donations().ListDonations(ctx, f)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s.populate(ctx, ds)
}

func (s *DonationService) CountByStatus(ctx context.Context, f domain.DonationFilter) (domain.StatusCounts, error) {
	counts, err := s.Store.Donations().CountByStatus(ctx, f)
	return counts, mapStoreErr(err)
}

func (s *DonationService) populate(ctx context.Context, ds []domain.Donation) ([]domain.DonationView, error) {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, d := range ds {
		add(d.DonorID)
		add(d.AgentID)
		add(d.CollectorID)
	}

	users, err := s.Store.Users().GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	summary := func(id string) *domain.UserSummary {
		if u, ok := users[id]; ok {
			return u.Summary()
		}
		return nil
	}

	views := make([]domain.DonationView, 0, len(ds))
	for _, d := range ds {
		views = append(views, domain.DonationView{
			Donation:  d,
			Donor:     summary(d.DonorID),
			Agent:     summary(d.AgentID),
			Collector: summary(d.CollectorID),
		})
	}
	return views, nil
}

// Per-role list views.

// DonorPending lists the donor's donations that are still in flight or were
// rejected.
func (s *DonationService) DonorPending(ctx context.Context, donor domain.User) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		DonorID:     donor.ID,
		ParentsOnly: true,
		Statuses:    []domain.Status{domain.StatusPending, domain.StatusRejected, domain.StatusAccepted, domain.StatusAssigned},
	})
}

// DonorPrevious lists the donor's finished donations. Split-off portions
// are not listed; the parent stands for them.
func (s *DonationService) DonorPrevious(ctx context.Context, donor domain.User) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		DonorID:     donor.ID,
		ParentsOnly: true,
		Statuses:    []domain.Status{domain.StatusCollected},
	})
}

func (s *DonationService) AdminPending(ctx context.Context) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		Statuses: []domain.Status{domain.StatusPending, domain.StatusAccepted, domain.StatusAssigned},
	})
}

func (s *DonationService) AdminCollected(ctx context.Context) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		ParentsOnly: true,
		Statuses:    []domain.Status{domain.StatusCollected},
	})
}

func (s *DonationService) AgentPending(ctx context.Context, agent domain.User) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		AgentID:  agent.ID,
		Statuses: []domain.Status{domain.StatusAssigned},
	})
}

func (s *DonationService) AgentPrevious(ctx context.Context, agent domain.User) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		AgentID:     agent.ID,
		ParentsOnly: true,
		Statuses:    []domain.Status{domain.StatusCollected},
	})
}

// CollectorAvailable lists accepted donations with something left to take.
func (s *DonationService) CollectorAvailable(ctx context.Context) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		ParentsOnly: true,
		Statuses:    []domain.Status{domain.StatusAccepted},
	})
}

func (s *DonationService) CollectorAssigned(ctx context.Context) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{Statuses: []domain.Status{domain.StatusAssigned}})
}

func (s *DonationService) CollectorPrevious(ctx context.Context, collector domain.User) ([]domain.DonationView, error) {
	return s.List(ctx, domain.DonationFilter{
		CollectorID:  collector.ID,
		ChildrenOnly: true,
		Statuses:     []domain.Status{domain.StatusCollected},
	})
}

func (s *DonationService) applied(ctx context.Context, action domain.Action, d domain.Donation, actor domain.User) {
	metrics.DonationTransitions.WithLabelValues(string(action), metrics.OK).Inc()
	slogx.FromContext(ctx).Info("donation transition",
		"action", action,
		"donation_id", d.ID,
		"status", d.Status,
		"actor_id", actor.ID,
	)
	s.publish(ctx, events.NewDonationEvent(action, d, actor.ID, actor.Role, s.now()))
}

// publish never fails the caller; the transition is already committed.
func (s *DonationService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, e); err != nil {
		metrics.EventPublishErrors.Inc()
		slogx.FromContext(ctx).Warn("failed to publish donation event", "type", e.Type, "donation_id", e.DonationID, "error", err)
	}
}

func (s *DonationService) rejected(action domain.Action, err error) error {
	outcome := metrics.Rejected
	if errors.Is(err, ErrStoreUnavailable) {
		outcome = metrics.Failed
	}
	metrics.DonationTransitions.WithLabelValues(string(action), outcome).Inc()
	return err
}
