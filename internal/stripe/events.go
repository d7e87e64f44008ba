package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Типы событий вебхука, которые обрабатывает сервис.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
)

// ErrMissingObject - в событии нет ожидаемого поля.
var ErrMissingObject = errors.New("stripe: event object is missing required fields")

// Event - проверенное событие вебхука.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// VerifyEvent проверяет подпись Stripe-Signature и разбирает событие.
func VerifyEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: webhook verification failed: %w", err)
	}
	return &Event{ID: event.ID, Type: string(event.Type), Raw: event.Data.Raw}, nil
}

// SessionFromEvent извлекает сессию checkout из события checkout.session.completed.
func SessionFromEvent(e *Event) (*models.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(e.Raw, &session); err != nil {
		return nil, fmt.Errorf("stripe: failed to parse checkout session: %w", err)
	}
	if session.ID == "" {
		return nil, ErrMissingObject
	}
	return ToCheckoutSession(&session), nil
}

// SubscriptionIDFromEvent возвращает ID подписки из события customer.subscription.*.
func SubscriptionIDFromEvent(e *Event) (string, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(e.Raw, &sub); err != nil {
		return "", fmt.Errorf("stripe: failed to parse subscription: %w", err)
	}
	if sub.ID == "" {
		return "", ErrMissingObject
	}
	return sub.ID, nil
}

// InvoicePeriodFromEvent возвращает подписку и конец оплаченного периода из события invoice.*.
func InvoicePeriodFromEvent(e *Event) (string, time.Time, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(e.Raw, &invoice); err != nil {
		return "", time.Time{}, fmt.Errorf("stripe: failed to parse invoice: %w", err)
	}
	if invoice.Subscription == nil || invoice.Subscription.ID == "" {
		return "", time.Time{}, ErrMissingObject
	}

	var end int64
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Period != nil && line.Period.End > end {
				end = line.Period.End
			}
		}
	}
	if end == 0 {
		end = invoice.PeriodEnd
	}
	if end == 0 {
		return "", time.Time{}, ErrMissingObject
	}
	return invoice.Subscription.ID, time.Unix(end, 0).UTC(), nil
}
