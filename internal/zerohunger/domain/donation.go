package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the closed set of donation states. Rejected and collected are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusAssigned  Status = "assigned"
	StatusCollected Status = "collected"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAccepted, StatusAssigned, StatusCollected, StatusRejected}

var ErrUnknownStatus = errors.New("domain: unknown status")

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusRejected, StatusAssigned, StatusCollected:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

type Donation struct {
	ID               string
	DonorID          string
	AgentID          string
	CollectorID      string
	ParentID         string // set on child records split off by a collector
	FoodType         string
	Quantity         int64 // remaining on a parent, taken on a child
	OriginalQuantity int64
	CookingTime      *time.Time
	Address          string
	Phone            string
	DonorToAdminMsg  string
	AdminToAgentMsg  string
	Status           Status
	CollectionTime   *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsChild reports whether d is a collected portion of another donation.
// Children are terminal.
func (d Donation) IsChild() bool { return d.ParentID != "" }

// CollectedQuantity is how much has been split off a parent so far.
func (d Donation) CollectedQuantity() int64 { return d.OriginalQuantity - d.Quantity }

// Split returns the child record for a collector taking q units. It does
// not mutate d.
func (d Donation) Split(id, collectorID string, q int64, at time.Time) Donation {
	return Donation{
		ID:               id,
		DonorID:          d.DonorID,
		AgentID:          d.AgentID,
		CollectorID:      collectorID,
		ParentID:         d.ID,
		FoodType:         d.FoodType,
		Quantity:         q,
		OriginalQuantity: q,
		CookingTime:      d.CookingTime,
		Address:          d.Address,
		Phone:            d.Phone,
		DonorToAdminMsg:  d.DonorToAdminMsg,
		AdminToAgentMsg:  d.AdminToAgentMsg,
		Status:           StatusCollected,
		CollectionTime:   &at,
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

// DonationView is a donation with its parties resolved for list pages.
type DonationView struct {
	Donation
	Donor     *UserSummary
	Agent     *UserSummary
	Collector *UserSummary
}

// DonationFilter narrows list and count queries. Zero fields do not filter.
type DonationFilter struct {
	Statuses    []Status
	DonorID     string
	AgentID     string
	CollectorID string
	ParentID    string

	// ParentsOnly drops child records, ChildrenOnly keeps only them.
	ParentsOnly  bool
	ChildrenOnly bool

	Limit int
}

// Action is something an actor does to a donation.
type Action string

const (
	ActionCreate       Action = "create"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
	ActionAssign       Action = "assign"
	ActionAgentCollect Action = "agent_collect"
	ActionCollect      Action = "collect"
	ActionDelete       Action = "delete"
)

var (
	ErrIllegalTransition = errors.New("domain: transition not allowed from this status")
	ErrIllegalActor      = errors.New("domain: role may not perform this action")
)

// Transition is one row of the lifecycle table.
type Transition struct {
	Action Action
	Actor  Role
	From   []Status
	To     Status
}

// Lifecycle is the full transition table. Collect lands on accepted and is
// promoted to collected by the engine once nothing remains.
var Lifecycle = []Transition{
	{Action: ActionCreate, Actor: RoleDonor, From: nil, To: StatusPending},
	{Action: ActionAccept, Actor: RoleAdmin, From: []Status{StatusPending}, To: StatusAccepted},
	{Action: ActionReject, Actor: RoleAdmin, From: []Status{StatusPending, StatusAccepted}, To: StatusRejected},
	{Action: ActionAssign, Actor: RoleAdmin, From: []Status{StatusAccepted}, To: StatusAssigned},
	{Action: ActionAgentCollect, Actor: RoleAgent, From: []Status{StatusAssigned}, To: StatusCollected},
	{Action: ActionCollect, Actor: RoleCollector, From: []Status{StatusAccepted}, To: StatusAccepted},
	{Action: ActionDelete, Actor: RoleDonor, From: []Status{StatusRejected}, To: StatusRejected},
}

func lookup(a Action) (Transition, bool) {
	for _, t := range Lifecycle {
		if t.Action == a {
			return t, true
		}
	}
	return Transition{}, false
}

// Next validates that actor may apply a to d and returns the resulting
// status. Child records accept no actions. Create applies only to a
// record without a status.
func (d Donation) Next(a Action, actor Role) (Status, error) {
	t, ok := lookup(a)
	if !ok {
		return d.Status, fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, a)
	}
	if t.Actor != actor {
		return d.Status, fmt.Errorf("%w: %s cannot %s", ErrIllegalActor, actor, a)
	}
	if d.IsChild() {
		return d.Status, fmt.Errorf("%w: %s on a collected portion", ErrIllegalTransition, a)
	}
	if len(t.From) == 0 && d.Status == "" {
		return t.To, nil
	}
	for _, from := range t.From {
		if d.Status == from {
			return t.To, nil
		}
	}
	return d.Status, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, a, d.Status)
}
