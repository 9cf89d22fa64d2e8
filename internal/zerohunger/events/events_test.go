package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/stretchr/testify/require"
)

func TestNewDonationEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	child := domain.Donation{ID: "child", ParentID: "parent", Status: domain.StatusCollected, Quantity: 3}

	e := NewDonationEvent(domain.ActionCollect, child, "collector-1", domain.RoleCollector, at)
	require.Equal(t, "donation.collect", e.Type)
	require.Equal(t, "parent", e.Key())

	raw, err := e.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "child", decoded["donation_id"])
	require.Equal(t, "collected", decoded["status"])
	require.EqualValues(t, 3, decoded["quantity"])

	root := NewDonationEvent(domain.ActionAccept, domain.Donation{ID: "d1"}, "admin", domain.RoleAdmin, at)
	require.Equal(t, "d1", root.Key())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), Event{Type: "donation.create"}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: "donation.accept"}))

	got := r.Events()
	require.Len(t, got, 2)
	require.Equal(t, "donation.accept", got[1].Type)
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "donations")
	require.Error(t, err)

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "donations")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
