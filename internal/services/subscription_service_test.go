package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

type subscriptionFixture struct {
	svc     *subscriptionService
	subs    *fakeSubRepo
	events  *fakeEventRepo
	schools *fakeSchoolRepo
	now     time.Time
}

func newSubscriptionFixture() *subscriptionFixture {
	f := &subscriptionFixture{
		subs:    newFakeSubRepo(),
		events:  &fakeEventRepo{},
		schools: newFakeSchoolRepo(),
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc := NewSubscriptionService(f.subs, f.events, f.schools, time.Minute).(*subscriptionService)
	svc.transact = noTx
	svc.now = func() time.Time { return f.now }
	f.svc = svc
	return f
}

// stripeEvent builds a verified event plus its raw body.
func stripeEvent(t *testing.T, eventID, eventType, subID, status string, metadata map[string]string) (stripe.Event, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":     eventID,
		"object": "event",
		"type":   eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":                   subID,
				"object":               "subscription",
				"customer":             "cus_123",
				"status":               status,
				"current_period_start": 1767225600,
				"current_period_end":   1769904000,
				"cancel_at_period_end": false,
				"metadata":             metadata,
			},
		},
	})
	require.NoError(t, err)

	var evt stripe.Event
	require.NoError(t, json.Unmarshal(body, &evt))
	return evt, body
}

func TestHandleStripeEvent_CreatesUserSubscription(t *testing.T) {
	f := newSubscriptionFixture()
	evt, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", map[string]string{"user_id": "user-1"})

	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, body))

	sub, err := f.subs.FindByStripeID(nil, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "cus_123", sub.StripeCustomerID)
	owner, err := sub.Owner()
	require.NoError(t, err)
	assert.Equal(t, models.UserOwner("user-1"), owner)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, int64(1769904000), sub.CurrentPeriodEnd.Unix())

	stored := f.events.only()
	require.NotNil(t, stored)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, 1, stored.Attempts)
}

func TestHandleStripeEvent_RedeliveredCreateUpdatesOnce(t *testing.T) {
	f := newSubscriptionFixture()
	evt, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", map[string]string{"school_id": "school-1"})

	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, body))
	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, body))

	assert.Equal(t, 1, f.subs.creates)
	assert.Equal(t, 1, f.subs.updates)
	assert.Len(t, f.events.rows, 1)
	assert.Equal(t, 2, f.events.only().Attempts)
}

func TestHandleStripeEvent_UpdateAndDelete(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()
	meta := map[string]string{"user_id": "user-1"}

	created, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "trialing", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, created, body))

	updated, body := stripeEvent(t, "evt_2", EventSubscriptionUpdated, "sub_1", "past_due", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, updated, body))
	sub, err := f.subs.FindByStripeID(nil, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	deleted, body := stripeEvent(t, "evt_3", EventSubscriptionDeleted, "sub_1", "active", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, deleted, body))

	_, err = f.subs.FindByStripeID(nil, "sub_1")
	assert.Error(t, err)
	raw, isDeleted := f.subs.raw("sub_1")
	require.NotNil(t, raw)
	assert.True(t, isDeleted)
	assert.Equal(t, models.SubscriptionStatusCanceled, raw.Status)
}

func TestHandleStripeEvent_EventsAfterDeleteAreNoOps(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()
	meta := map[string]string{"user_id": "user-1"}

	created, createdBody := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, created, createdBody))
	deleted, deletedBody := stripeEvent(t, "evt_2", EventSubscriptionDeleted, "sub_1", "canceled", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, deleted, deletedBody))

	// Redelivery of the delete, a late update and a replayed create.
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, deleted, deletedBody))
	late, lateBody := stripeEvent(t, "evt_3", EventSubscriptionUpdated, "sub_1", "past_due", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, late, lateBody))
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, created, createdBody))

	for _, stored := range f.events.rows {
		assert.NotNil(t, stored.ProcessedAt, stored.ProviderEventID)
		assert.Empty(t, stored.ProcessingError, stored.ProviderEventID)
	}
	assert.Equal(t, 1, f.subs.creates)

	raw, isDeleted := f.subs.raw("sub_1")
	require.NotNil(t, raw)
	assert.True(t, isDeleted)
	assert.Equal(t, models.SubscriptionStatusCanceled, raw.Status)
}

func TestHandleStripeEvent_UpdateForUnknownSubscriptionIsKeptForReplay(t *testing.T) {
	f := newSubscriptionFixture()
	evt, body := stripeEvent(t, "evt_9", EventSubscriptionUpdated, "sub_missing", "active", nil)

	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, body))

	stored := f.events.only()
	require.NotNil(t, stored)
	assert.Nil(t, stored.ProcessedAt)
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.ProcessingError, "Subscription not found")
}

func TestHandleStripeEvent_CreateWithoutOwnerFails(t *testing.T) {
	for name, meta := range map[string]map[string]string{
		"neither": nil,
		"both":    {"user_id": "u1", "school_id": "s1"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newSubscriptionFixture()
			evt, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", meta)

			require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, body))

			assert.Zero(t, f.subs.creates)
			stored := f.events.only()
			require.NotNil(t, stored)
			assert.Nil(t, stored.ProcessedAt)
		})
	}
}

func TestHandleStripeEvent_StoreFailureStillAcknowledged(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()
	meta := map[string]string{"user_id": "user-1"}
	created, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, created, body))

	f.subs.failUpdates = errors.New("connection reset")
	f.events.record = errors.New("connection reset")
	updated, body := stripeEvent(t, "evt_2", EventSubscriptionUpdated, "sub_1", "past_due", meta)
	assert.NoError(t, f.svc.HandleStripeEvent(ctx, nil, updated, body))
}

func TestHandleStripeEvent_IgnoresOtherTypes(t *testing.T) {
	f := newSubscriptionFixture()
	evt := stripe.Event{ID: "evt_x", Type: "invoice.paid"}

	require.NoError(t, f.svc.HandleStripeEvent(context.Background(), nil, evt, []byte(`{}`)))
	assert.Empty(t, f.events.rows)
}

func TestHandleStripeEvent_UndecodableData(t *testing.T) {
	f := newSubscriptionFixture()
	evt := stripe.Event{ID: "evt_x", Type: EventSubscriptionCreated}

	err := f.svc.HandleStripeEvent(context.Background(), nil, evt, []byte(`{}`))
	assert.ErrorIs(t, err, ErrWebhookPayload)
	assert.Empty(t, f.events.rows)
}

func TestReplayFailedEvents_WaitsForBackoff(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()
	meta := map[string]string{"user_id": "user-1"}

	// The update arrives before the create and fails.
	updated, body := stripeEvent(t, "evt_2", EventSubscriptionUpdated, "sub_1", "past_due", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, updated, body))
	created, body := stripeEvent(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", meta)
	require.NoError(t, f.svc.HandleStripeEvent(ctx, nil, created, body))

	n, err := f.svc.ReplayFailedEvents(ctx, nil, 5, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(time.Minute)
	n, err = f.svc.ReplayFailedEvents(ctx, nil, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sub, err := f.subs.FindByStripeID(nil, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)

	n, err = f.svc.ReplayFailedEvents(ctx, nil, 5, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayDue(t *testing.T) {
	f := newSubscriptionFixture()
	last := f.now
	ev := &models.BillingWebhookEvent{Attempts: 3, LastAttemptAt: &last}

	assert.False(t, f.svc.replayDue(ev, last.Add(3*time.Minute)))
	assert.True(t, f.svc.replayDue(ev, last.Add(4*time.Minute)))
	assert.True(t, f.svc.replayDue(&models.BillingWebhookEvent{}, last))
}

func TestGetMySubscription(t *testing.T) {
	f := newSubscriptionFixture()
	ctx := context.Background()

	school := &models.School{Name: "Skyhawk Aviation", OwnerID: "admin-1"}
	require.NoError(t, f.schools.Create(nil, school))
	schoolSub := &models.Subscription{StripeSubscriptionID: "sub_school", Status: models.SubscriptionStatusActive}
	require.NoError(t, schoolSub.SetOwner(models.SchoolOwner(school.ID)))
	require.NoError(t, f.subs.Create(nil, schoolSub))

	resp, err := f.svc.GetMySubscription(ctx, nil, "admin-1", models.UserRoleSchoolAdmin)
	require.NoError(t, err)
	assert.Equal(t, "sub_school", resp.StripeSubscriptionID)
	assert.Equal(t, "school", resp.OwnerType)
	assert.Equal(t, school.ID, resp.OwnerID)

	_, err = f.svc.GetMySubscription(ctx, nil, "admin-1", models.UserRoleCFI)
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionNotFound)

	userSub := &models.Subscription{StripeSubscriptionID: "sub_user", Status: models.SubscriptionStatusTrialing}
	require.NoError(t, userSub.SetOwner(models.UserOwner("admin-1")))
	require.NoError(t, f.subs.Create(nil, userSub))

	resp, err = f.svc.GetMySubscription(ctx, nil, "admin-1", models.UserRoleSchoolAdmin)
	require.NoError(t, err)
	assert.Equal(t, "sub_user", resp.StripeSubscriptionID)
}
