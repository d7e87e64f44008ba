package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testSecret = "whsec_test_secret"

func signed(t *testing.T, payload string) (string, []byte) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Header, sp.Payload
}

func TestVerifyEvent_CheckoutSession(t *testing.T) {
	header, body := signed(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"status": "complete",
			"payment_status": "paid",
			"amount_total": 6600,
			"customer_details": {"email": "client@example.com"},
			"subscription": "sub_1",
			"customer": "cus_1",
			"metadata": {"user_id": "u1", "shop_id": "4", "plan_id": "premium"}
		}}
	}`)

	event, err := VerifyEvent(body, header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)

	session, err := SessionFromEvent(event)
	require.NoError(t, err)
	assert.True(t, IsComplete(session))
	assert.Equal(t, int64(6600), session.AmountTotal)
	assert.Equal(t, "client@example.com", session.CustomerEmail)
	assert.Equal(t, "sub_1", session.StripeSubscriptionID)
	assert.Equal(t, "cus_1", session.StripeCustomerID)

	shopID, err := MetadataShopID(session)
	require.NoError(t, err)
	assert.Equal(t, int64(4), shopID)
}

func TestVerifyEvent_RejectsBadSignature(t *testing.T) {
	header, body := signed(t, `{"id": "evt_1", "object": "event", "type": "invoice.paid", "data": {"object": {}}}`)

	_, err := VerifyEvent(body, header, "whsec_other")
	assert.Error(t, err)

	_, err = VerifyEvent(append(body, ' '), header, testSecret)
	assert.Error(t, err)

	_, err = VerifyEvent(body, "", testSecret)
	assert.Error(t, err)
}

func TestInvoicePeriodFromEvent(t *testing.T) {
	event := &Event{ID: "evt_2", Type: EventInvoicePaid, Raw: []byte(`{
		"id": "in_1",
		"object": "invoice",
		"subscription": "sub_1",
		"period_end": 1000,
		"lines": {"object": "list", "data": [
			{"id": "il_1", "object": "line_item", "period": {"start": 1700000000, "end": 1702592000}}
		]}
	}`)}

	subID, end, err := InvoicePeriodFromEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", subID)
	assert.Equal(t, time.Unix(1702592000, 0).UTC(), end)

	oneOff := &Event{ID: "evt_3", Type: EventInvoicePaid, Raw: []byte(`{"id": "in_2", "object": "invoice"}`)}
	_, _, err = InvoicePeriodFromEvent(oneOff)
	assert.ErrorIs(t, err, ErrMissingObject)
}

func TestSubscriptionIDFromEvent(t *testing.T) {
	id, err := SubscriptionIDFromEvent(&Event{Raw: []byte(`{"id": "sub_9", "object": "subscription"}`)})
	require.NoError(t, err)
	assert.Equal(t, "sub_9", id)

	_, err = SubscriptionIDFromEvent(&Event{Raw: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrMissingObject)
}
