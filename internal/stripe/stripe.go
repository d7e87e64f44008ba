package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// errorTypeAPIConnection - тип ошибки соединения, которого нет среди констант stripe-go v78.
const errorTypeAPIConnection = "api_connection_error"

// ErrNotFound - объект отсутствует в Stripe (resource_missing).
var ErrNotFound = errors.New("stripe: resource not found")

// CheckoutSessionInput - параметры hosted checkout для подписки.
type CheckoutSessionInput struct {
	ProductName   string
	Description   string
	Currency      string
	UnitAmount    int64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSessionHandle - созданная сессия, на URL которой перенаправляется пользователь.
type CheckoutSessionHandle struct {
	ID  string
	URL string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCheckoutSession создает hosted checkout в режиме subscription.
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput, idempotencyKey string) (*CheckoutSessionHandle, error)

	// GetCheckoutSession читает сессию. Отсутствующая сессия - ErrNotFound.
	GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error)

	// PauseSubscription приостанавливает списания до resumesAt.
	PauseSubscription(ctx context.Context, stripeSubscriptionID string, resumesAt time.Time, idempotencyKey string) error

	// ResumeSubscription снимает паузу списаний.
	ResumeSubscription(ctx context.Context, stripeSubscriptionID, idempotencyKey string) error

	// CancelSubscription отменяет подписку в Stripe немедленно.
	CancelSubscription(ctx context.Context, stripeSubscriptionID, idempotencyKey string) error
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe.
func NewStripeClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput, idempotencyKey string) (*CheckoutSessionHandle, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(in.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(in.ProductName),
						Description: stripe.String(in.Description),
					},
					UnitAmount: stripe.Int64(in.UnitAmount),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String("month"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(in.SuccessURL),
		CancelURL:     stripe.String(in.CancelURL),
		CustomerEmail: stripe.String(in.CustomerEmail),
		Metadata:      in.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: in.Metadata,
		},
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.IdempotencyKey = stripe.String(idempotencyKey)
	}

	session, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", session.ID, "amount", in.UnitAmount)
	return &CheckoutSessionHandle{ID: session.ID, URL: session.URL}, nil
}

func (sc *stripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := sc.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		if isResourceMissing(err) {
			sc.log.Warnw("Stripe checkout session not found", "sessionID", sessionID)
			return nil, ErrNotFound
		}
		logStripeError(sc.log, "GetCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to get checkout session: %w", err)
	}

	return ToCheckoutSession(session), nil
}

func (sc *stripeClient) PauseSubscription(ctx context.Context, stripeSubscriptionID string, resumesAt time.Time, idempotencyKey string) error {
	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior:  stripe.String("void"),
			ResumesAt: stripe.Int64(resumesAt.Unix()),
		},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)

	if _, err := sc.client.Subscriptions.Update(stripeSubscriptionID, params); err != nil {
		logStripeError(sc.log, "PauseSubscription", err)
		return fmt.Errorf("stripe: failed to pause subscription: %w", err)
	}
	sc.log.Infow("Stripe subscription collection paused", "stripeSubscriptionID", stripeSubscriptionID, "resumesAt", resumesAt)
	return nil
}

func (sc *stripeClient) ResumeSubscription(ctx context.Context, stripeSubscriptionID, idempotencyKey string) error {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.IdempotencyKey = stripe.String(idempotencyKey)
	// пустое значение снимает pause_collection
	params.AddExtra("pause_collection", "")

	if _, err := sc.client.Subscriptions.Update(stripeSubscriptionID, params); err != nil {
		logStripeError(sc.log, "ResumeSubscription", err)
		return fmt.Errorf("stripe: failed to resume subscription: %w", err)
	}
	sc.log.Infow("Stripe subscription collection resumed", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

func (sc *stripeClient) CancelSubscription(ctx context.Context, stripeSubscriptionID, idempotencyKey string) error {
	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(idempotencyKey),
		},
	}

	if _, err := sc.client.Subscriptions.Cancel(stripeSubscriptionID, params); err != nil {
		// Подписка уже удалена в Stripe - цель достигнута
		if isResourceMissing(err) {
			sc.log.Warnw("Attempted to cancel already canceled/missing Stripe subscription", "stripeSubscriptionID", stripeSubscriptionID)
			return nil
		}
		logStripeError(sc.log, "CancelSubscription", err)
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	sc.log.Infow("Stripe subscription canceled", "stripeSubscriptionID", stripeSubscriptionID)
	return nil
}

// ToCheckoutSession переводит объект Stripe в модель сессии приложения.
func ToCheckoutSession(session *stripe.CheckoutSession) *models.CheckoutSession {
	out := &models.CheckoutSession{
		ID:            session.ID,
		Status:        string(session.Status),
		PaymentStatus: string(session.PaymentStatus),
		AmountTotal:   session.AmountTotal,
		CustomerEmail: session.CustomerEmail,
		Metadata:      session.Metadata,
	}
	if out.CustomerEmail == "" && session.CustomerDetails != nil {
		out.CustomerEmail = session.CustomerDetails.Email
	}
	if session.Subscription != nil {
		out.StripeSubscriptionID = session.Subscription.ID
	}
	if session.Customer != nil {
		out.StripeCustomerID = session.Customer.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

// IsComplete - сессия завершена и оплачена.
func IsComplete(s *models.CheckoutSession) bool {
	if s.Status != string(stripe.CheckoutSessionStatusComplete) {
		return false
	}
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

// MetadataShopID разбирает shop_id из метаданных сессии.
func MetadataShopID(s *models.CheckoutSession) (int64, error) {
	return strconv.ParseInt(s.Metadata[models.MetadataShopID], 10, 64)
}

// IsRetryable проверяет, имеет ли смысл повторить вызов Stripe.
// Повторяются 429, 5xx (кроме 501) и сетевые ошибки. Ошибки запроса, карты и идемпотентности - нет.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Ошибка транспорта до получения ответа от Stripe
		return true
	}
	if stripeErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	if string(stripeErr.Type) == errorTypeAPIConnection {
		return true
	}
	return stripeErr.HTTPStatusCode >= 500 && stripeErr.HTTPStatusCode != http.StatusNotImplemented
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
