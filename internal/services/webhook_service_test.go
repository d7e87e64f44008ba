package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/stripe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEvent(t *testing.T, id, typ string, object any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{ID: id, Type: typ, Raw: raw}
}

func completedSession(id, userID, planID string) map[string]any {
	return map[string]any{
		"id":             id,
		"object":         "checkout.session",
		"status":         "complete",
		"payment_status": "paid",
		"amount_total":   3520,
		"customer_email": userID + "@example.com",
		"subscription":   "sub_" + id,
		"customer":       "cus_" + id,
		"metadata": map[string]string{
			models.MetadataUserID: userID,
			models.MetadataShopID: "1",
			models.MetadataPlanID: planID,
		},
	}
}

func TestWebhookService_SubscriptionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWebhookService(env.subs, newMemoryMarker(), metrics.NewNoop(), testLogger())

	require.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_1", stripe.EventCheckoutSessionCompleted,
		completedSession("cs_hook", "u1", "basic"))))

	sub, err := env.subs.Current(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.StripeSubscriptionID)
	assert.Equal(t, "sub_cs_hook", *sub.StripeSubscriptionID)

	periodEnd := time.Date(2030, 3, 17, 0, 0, 0, 0, time.UTC)
	invoice := map[string]any{
		"id":           "in_1",
		"object":       "invoice",
		"subscription": "sub_cs_hook",
		"lines": map[string]any{
			"object": "list",
			"data": []map[string]any{{
				"id":     "il_1",
				"object": "line_item",
				"period": map[string]any{"start": periodEnd.AddDate(0, -1, 0).Unix(), "end": periodEnd.Unix()},
			}},
		},
	}
	require.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_2", stripe.EventInvoicePaid, invoice)))

	stored, err := env.store.Subscriptions().GetByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.True(t, periodEnd.Equal(*stored.CurrentPeriodEnd))

	require.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_3", stripe.EventSubscriptionDeleted,
		map[string]any{"id": "sub_cs_hook", "object": "subscription"})))

	stored, err = env.store.Subscriptions().GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, stored.Status)
}

func TestWebhookService_DuplicateDeliveryCreatesOneSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWebhookService(env.subs, newMemoryMarker(), metrics.NewNoop(), testLogger())

	event := rawEvent(t, "evt_dup", stripe.EventCheckoutSessionCompleted, completedSession("cs_dup", "u1", "premium"))
	require.NoError(t, svc.HandleEvent(ctx, event))
	require.NoError(t, svc.HandleEvent(ctx, event))

	// то же событие под другим ID тоже не создает вторую подписку
	other := rawEvent(t, "evt_dup_2", stripe.EventCheckoutSessionCompleted, completedSession("cs_dup", "u1", "premium"))
	require.NoError(t, svc.HandleEvent(ctx, other))

	subs, err := env.subs.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestWebhookService_FailureReleasesMark(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	marker := newMemoryMarker()
	svc := NewWebhookService(env.subs, marker, metrics.NewNoop(), testLogger())

	broken := &stripe.Event{ID: "evt_bad", Type: stripe.EventInvoicePaid, Raw: json.RawMessage(`{"id": 42}`)}
	assert.Error(t, svc.HandleEvent(ctx, broken))
	assert.NotContains(t, marker.keys, "stripe_event:evt_bad")
}

func TestWebhookService_IgnoredEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := NewWebhookService(env.subs, nil, metrics.NewNoop(), testLogger())

	unpaid := completedSession("cs_open", "u1", "basic")
	unpaid["status"] = "open"
	unpaid["payment_status"] = "unpaid"
	assert.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_a", stripe.EventCheckoutSessionCompleted, unpaid)))

	badMeta := completedSession("cs_meta", "u1", "platinum")
	assert.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_b", stripe.EventCheckoutSessionCompleted, badMeta)))

	oneOff := map[string]any{"id": "in_2", "object": "invoice"}
	assert.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_c", stripe.EventInvoicePaid, oneOff)))

	unknownSub := map[string]any{"id": "sub_unknown", "object": "subscription"}
	assert.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_d", stripe.EventSubscriptionDeleted, unknownSub)))

	assert.NoError(t, svc.HandleEvent(ctx, rawEvent(t, "evt_e", "customer.created", map[string]any{"id": "cus_1"})))

	_, err := env.subs.Current(ctx, "u1")
	assert.Error(t, err)
}
