// Package events publishes donation lifecycle events for downstream
// consumers. Publishing is best-effort: a committed transition is never
// undone because an event could not be delivered.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
)

// Event describes one applied lifecycle action.
type Event struct {
	Type       string        `json:"type"` // donation.<action>
	DonationID string        `json:"donation_id"`
	ParentID   string        `json:"parent_id,omitempty"`
	ChildID    string        `json:"child_id,omitempty"`
	ActorID    string        `json:"actor_id"`
	ActorRole  domain.Role   `json:"actor_role"`
	Status     domain.Status `json:"status"`
	Quantity   int64         `json:"quantity"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewDonationEvent builds the event for action a applied to d.
func NewDonationEvent(a domain.Action, d domain.Donation, actorID string, actorRole domain.Role, at time.Time) Event {
	return Event{
		Type:       "donation." + string(a),
		DonationID: d.ID,
		ParentID:   d.ParentID,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Status:     d.Status,
		Quantity:   d.Quantity,
		OccurredAt: at.UTC(),
	}
}

// Key partitions events by the donation they concern, so all events of a
// donation tree stay ordered.
func (e Event) Key() string {
	if e.ParentID != "" {
		return e.ParentID
	}
	return e.DonationID
}

func (e Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return b, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log. It is the default when no broker
// is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	l := p.Logger
	if l == nil {
		l = slog.Default()
	}
	l.DebugContext(ctx, "donation event",
		"type", e.Type,
		"donation_id", e.DonationID,
		"status", e.Status,
		"quantity", e.Quantity,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }
