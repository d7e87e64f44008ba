package services

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
)

// Stripe повторяет доставку до трех суток.
const webhookMarkTTL = 72 * time.Hour

// WebhookService обрабатывает проверенные события Stripe.
type WebhookService struct {
	subscriptions *SubscriptionService
	marker        OnceMarker // может быть nil
	metrics       metrics.BookingMetrics
	log           *logger.Logger
}

func NewWebhookService(subscriptions *SubscriptionService, marker OnceMarker, m metrics.BookingMetrics, log *logger.Logger) *WebhookService {
	return &WebhookService{
		subscriptions: subscriptions,
		marker:        marker,
		metrics:       m,
		log:           log,
	}
}

// HandleEvent обрабатывает событие один раз. При ошибке отметка снимается,
// чтобы повторная доставка Stripe обработала событие заново.
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	key := "stripe_event:" + event.ID
	if s.marker != nil {
		first, err := s.marker.MarkOnce(ctx, key, webhookMarkTTL)
		if err != nil {
			// Без Redis обрабатываем: все обработчики идемпотентны на уровне БД
			s.log.Warnw("Webhook dedupe unavailable", "eventID", event.ID, "error", err)
		} else if !first {
			s.metrics.IncWebhookEvent(event.Type, "duplicate")
			s.log.Infow("Duplicate webhook event ignored", "eventID", event.ID, "type", event.Type)
			return nil
		}
	}

	err := s.process(ctx, event)
	if err != nil {
		s.metrics.IncWebhookEvent(event.Type, "error")
		s.log.Errorw("Failed to process webhook event", "eventID", event.ID, "type", event.Type, "error", err)
		if s.marker != nil {
			if unmarkErr := s.marker.Unmark(ctx, key); unmarkErr != nil {
				s.log.Warnw("Failed to release webhook event mark", "eventID", event.ID, "error", unmarkErr)
			}
		}
		return err
	}

	s.metrics.IncWebhookEvent(event.Type, "processed")
	return nil
}

func (s *WebhookService) process(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		session, err := stripe.SessionFromEvent(event)
		if err != nil {
			return err
		}
		sub, err := s.subscriptions.ConfirmSession(ctx, session)
		switch {
		case err == nil:
			s.log.Infow("Subscription confirmed from webhook", "sessionID", session.ID, "subscriptionID", sub.ID)
			return nil
		case errors.Is(err, domain.ErrDuplicateConfirmation):
			return nil
		case errors.Is(err, domain.ErrSessionIncomplete), errors.Is(err, domain.ErrAlreadySubscribed), errors.Is(err, domain.ErrValidation):
			// Повтор доставки не изменит результат
			s.log.Warnw("Checkout session from webhook not confirmed", "sessionID", session.ID, "reason", err)
			return nil
		default:
			return err
		}

	case stripe.EventSubscriptionDeleted:
		stripeSubID, err := stripe.SubscriptionIDFromEvent(event)
		if err != nil {
			return err
		}
		return s.subscriptions.CancelByProvider(ctx, stripeSubID)

	case stripe.EventInvoicePaid, stripe.EventInvoicePaymentSucceeded:
		stripeSubID, periodEnd, err := stripe.InvoicePeriodFromEvent(event)
		if errors.Is(err, stripe.ErrMissingObject) {
			// Разовый счет без подписки
			return nil
		}
		if err != nil {
			return err
		}
		return s.subscriptions.AdvancePeriod(ctx, stripeSubID, periodEnd)

	default:
		s.log.Debugw("Unhandled webhook event type", "type", event.Type, "eventID", event.ID)
		return nil
	}
}
