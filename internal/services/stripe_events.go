package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// SubscriptionSnapshot is the provider's view of a subscription at event time.
type SubscriptionSnapshot struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	Status               models.SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool
	// Owner is zero when metadata names neither or both of user_id and school_id.
	Owner models.Owner
}

type SubscriptionEvent struct {
	EventID string
	Type    string
	Data    SubscriptionSnapshot
}

func IsSubscriptionEventType(t string) bool {
	switch t {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return true
	}
	return false
}

// SubscriptionEventFromStripe decodes the subscription object of a verified event.
func SubscriptionEventFromStripe(evt stripe.Event) (SubscriptionEvent, error) {
	ev := SubscriptionEvent{EventID: evt.ID, Type: string(evt.Type)}
	if evt.Data == nil || len(evt.Data.Raw) == 0 {
		return ev, fmt.Errorf("event %s has no data object", evt.ID)
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
		return ev, fmt.Errorf("decode subscription of event %s: %w", evt.ID, err)
	}
	if sub.ID == "" {
		return ev, fmt.Errorf("event %s: subscription id missing", evt.ID)
	}

	snap := SubscriptionSnapshot{
		StripeSubscriptionID: sub.ID,
		Status:               models.ParseSubscriptionStatus(string(sub.Status)),
		CurrentPeriodStart:   unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		snap.StripeCustomerID = sub.Customer.ID
	}
	if owner, err := models.OwnerFromColumns(metadataValue(sub.Metadata, "user_id"), metadataValue(sub.Metadata, "school_id")); err == nil {
		snap.Owner = owner
	}
	ev.Data = snap
	return ev, nil
}

// DecodeStoredEvent rebuilds a SubscriptionEvent from a raw event body kept in the inbox.
func DecodeStoredEvent(payload []byte) (SubscriptionEvent, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return SubscriptionEvent{}, fmt.Errorf("decode stored event: %w", err)
	}
	return SubscriptionEventFromStripe(evt)
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func metadataValue(md map[string]string, key string) *string {
	v, ok := md[key]
	if !ok || v == "" {
		return nil
	}
	return &v
}
