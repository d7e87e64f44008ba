package services

import (
	"context"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/kafka"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const publishTimeout = 10 * time.Second

// Notifier отправляет уведомления клиентам. Ошибки отправки не откатывают изменения.
type Notifier interface {
	SendBookingConfirmation(ctx context.Context, booking *models.Booking, shop *models.Shop) error
	SendReminder(ctx context.Context, booking *models.Booking, shop *models.Shop) error
}

// OnceMarker - атомарная отметка "уже сделано" с TTL (Redis SETNX).
type OnceMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// newStripeBackOff - настройки повторов вызовов Stripe.
func newStripeBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = 1 * time.Minute
	bo.Reset()
	return bo
}

// retryStripe повторяет fn, пока ошибка временная (429, 5xx, сеть).
// Побочные вызовы можно повторять только с ключом идемпотентности.
func retryStripe(ctx context.Context, log *logger.Logger, bo backoff.BackOff, operation string, fn func() error) error {
	var lastErr error
	attempt := 0

	op := func() error {
		attempt++
		err := fn()
		lastErr = err
		if err == nil {
			return nil
		}
		if stripe.IsRetryable(err) {
			log.Warnw("Retryable Stripe error occurred, retrying", "operation", operation, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		if attempt > 1 {
			log.Errorw("Stripe call failed after retries", "operation", operation, "attempts", attempt, "error", lastErr)
		}
		return lastErr
	}
	return nil
}

// publishAsync отправляет событие в фоне. Контекст запроса может завершиться раньше,
// поэтому используется отвязанный от отмены контекст со своим таймаутом.
func publishAsync(ctx context.Context, producer kafka.Producer, log *logger.Logger, topic, key string, data any) {
	if producer == nil {
		log.Debugw("Kafka producer not available, skipping event", "topic", topic, "key", key)
		return
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := producer.PublishEvent(pubCtx, topic, key, data); err != nil {
			log.Errorw("Failed to publish event", "topic", topic, "key", key, "error", err)
		}
	}()
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
