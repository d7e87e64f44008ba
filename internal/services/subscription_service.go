package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/kafka"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/internal/stripe"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const changePlanWarning = "Your current subscription has been cancelled. You will not have an active subscription until the new payment is confirmed."

// InitiateInput - параметры оформления подписки.
type InitiateInput struct {
	UserID         string
	Email          string
	ShopID         int64
	PlanID         string
	PromoCode      string
	IdempotencyKey string
}

// CheckoutHandle - созданная сессия оплаты.
type CheckoutHandle struct {
	SessionID            string `json:"session_id"`
	URL                  string `json:"url"`
	AmountCents          int64  `json:"amount_cents"`
	DiscountPercent      int    `json:"discount_percent,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	Warning              string `json:"warning,omitempty"`
}

// SubscriptionService управляет жизненным циклом подписок.
type SubscriptionService struct {
	subs       repository.SubscriptionRepository
	shops      repository.ShopRepository
	promos     *PromoService
	stripe     stripe.Client
	producer   kafka.Producer // может быть nil
	metrics    metrics.BookingMetrics
	siteURL    string
	currency   string
	log        *logger.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// NewSubscriptionService создает сервис подписок
func NewSubscriptionService(
	cfg *config.Config,
	subs repository.SubscriptionRepository,
	shops repository.ShopRepository,
	promos *PromoService,
	stripeClient stripe.Client,
	producer kafka.Producer,
	m metrics.BookingMetrics,
	log *logger.Logger,
) *SubscriptionService {
	if producer == nil {
		log.Warnw("Kafka producer is nil, subscription events will be skipped")
	}
	return &SubscriptionService{
		subs:       subs,
		shops:      shops,
		promos:     promos,
		stripe:     stripeClient,
		producer:   producer,
		metrics:    m,
		siteURL:    strings.TrimRight(cfg.App.SiteURL, "/"),
		currency:   cfg.Stripe.Currency,
		log:        log,
		now:        time.Now,
		newBackOff: newStripeBackOff,
	}
}

// Initiate создает сессию оплаты. Подписка в БД не создается до подтверждения оплаты.
func (s *SubscriptionService) Initiate(ctx context.Context, in InitiateInput) (*CheckoutHandle, error) {
	plan, ok := models.PlanByID(in.PlanID)
	if !ok {
		return nil, domain.ErrInvalidPlan
	}

	shop, err := s.activeShop(ctx, in.ShopID)
	if err != nil {
		return nil, err
	}

	live, err := s.subs.GetLiveByUserID(ctx, in.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.log.Errorw("Failed to check live subscription", "userID", in.UserID, "error", err)
		return nil, err
	}
	if live != nil {
		s.log.Warnw("User already has a live subscription", "userID", in.UserID, "subscriptionID", live.ID)
		return nil, domain.ErrAlreadySubscribed
	}

	discount := 0
	promoCode := ""
	if strings.TrimSpace(in.PromoCode) != "" {
		promo, err := s.promos.Validate(ctx, in.PromoCode)
		if err != nil {
			return nil, err
		}
		discount = promo.DiscountPercent
		promoCode = promo.Code
	}
	amount := DiscountedAmount(plan.MonthlyPriceCents, discount)

	key := in.IdempotencyKey
	if key == "" {
		key, err = s.checkoutKey(ctx, in.UserID, shop.ID, plan.ID, promoCode)
		if err != nil {
			return nil, err
		}
	}

	input := stripe.CheckoutSessionInput{
		ProductName:   plan.Name + " - Clip & Go",
		Description:   fmt.Sprintf("%d haircut(s) per month at %s", plan.HaircutsPerMonth, shop.Name),
		Currency:      s.currency,
		UnitAmount:    amount,
		CustomerEmail: in.Email,
		SuccessURL:    s.siteURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     fmt.Sprintf("%s/shop/%d", s.siteURL, shop.ID),
		Metadata: map[string]string{
			models.MetadataUserID:    in.UserID,
			models.MetadataShopID:    strconv.FormatInt(shop.ID, 10),
			models.MetadataPlanID:    plan.ID,
			models.MetadataPromoCode: promoCode,
		},
	}

	var handle *stripe.CheckoutSessionHandle
	err = retryStripe(ctx, s.log, s.newBackOff(), "create_checkout_session", func() error {
		var err error
		handle, err = s.stripe.CreateCheckoutSession(ctx, input, key)
		return err
	})
	if err != nil {
		return nil, domain.NewExternalServiceError("stripe", "create_checkout_session", err)
	}

	s.metrics.IncCheckoutStarted(plan.ID)
	s.log.Infow("Checkout session created",
		"userID", in.UserID, "shopID", shop.ID, "planID", plan.ID,
		"amountCents", amount, "promoCode", promoCode, "sessionID", handle.ID)

	return &CheckoutHandle{
		SessionID:       handle.ID,
		URL:             handle.URL,
		AmountCents:     amount,
		DiscountPercent: discount,
	}, nil
}

func (s *SubscriptionService) activeShop(ctx context.Context, shopID int64) (*models.Shop, error) {
	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, err
	}
	if !shop.Active {
		return nil, domain.ErrShopNotFound
	}
	return shop, nil
}

// checkoutKey - ключ идемпотентности, если клиент его не прислал. Повторный запрос
// в течение 10 минут вернет ту же сессию, пока у пользователя не появилась новая подписка.
func (s *SubscriptionService) checkoutKey(ctx context.Context, userID string, shopID int64, planID, promoCode string) (string, error) {
	history, err := s.subs.ListByUserID(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to load subscription history", "userID", userID, "error", err)
		return "", err
	}
	bucket := s.now().Truncate(10 * time.Minute).Unix()
	return fmt.Sprintf("checkout-%s-%d-%s-%s-%d-%d", userID, shopID, planID, promoCode, len(history), bucket), nil
}

// Confirm создает подписку по завершенной сессии оплаты.
// Повторное подтверждение возвращает существующую подписку вместе с ErrDuplicateConfirmation.
func (s *SubscriptionService) Confirm(ctx context.Context, sessionID string) (*models.Subscription, error) {
	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ConfirmSession(ctx, session)
}

// ConfirmForUser - Confirm для пользователя: чужая сессия считается несуществующей.
func (s *SubscriptionService) ConfirmForUser(ctx context.Context, userID, sessionID string) (*models.Subscription, error) {
	session, err := s.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Metadata[models.MetadataUserID] != userID {
		s.log.Warnw("Checkout session belongs to another user", "sessionID", sessionID, "userID", userID)
		return nil, domain.ErrSessionNotFound
	}
	return s.ConfirmSession(ctx, session)
}

func (s *SubscriptionService) fetchSession(ctx context.Context, sessionID string) (*models.CheckoutSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrSessionNotFound
	}

	var session *models.CheckoutSession
	err := retryStripe(ctx, s.log, s.newBackOff(), "get_checkout_session", func() error {
		var err error
		session, err = s.stripe.GetCheckoutSession(ctx, sessionID)
		return err
	})
	if err != nil {
		if errors.Is(err, stripe.ErrNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.NewExternalServiceError("stripe", "get_checkout_session", err)
	}
	return session, nil
}

// ConfirmSession сохраняет подписку по уже полученной сессии (используется и вебхуком).
func (s *SubscriptionService) ConfirmSession(ctx context.Context, session *models.CheckoutSession) (*models.Subscription, error) {
	if !stripe.IsComplete(session) {
		s.log.Warnw("Checkout session is not paid yet",
			"sessionID", session.ID, "status", session.Status, "paymentStatus", session.PaymentStatus)
		return nil, domain.ErrSessionIncomplete
	}

	userID := session.Metadata[models.MetadataUserID]
	plan, ok := models.PlanByID(session.Metadata[models.MetadataPlanID])
	shopID, err := stripe.MetadataShopID(session)
	if userID == "" || !ok || err != nil {
		s.log.Errorw("Checkout session has invalid metadata", "sessionID", session.ID, "metadata", session.Metadata)
		return nil, fmt.Errorf("%w: checkout session metadata is incomplete", domain.ErrValidation)
	}

	now := s.now().UTC()
	periodEnd := models.AddMonths(now, 1)
	sub := &models.Subscription{
		ID:                uuid.NewString(),
		UserID:            userID,
		ShopID:            shopID,
		PlanID:            plan.ID,
		Status:            models.SubscriptionActive,
		AmountCents:       session.AmountTotal,
		HaircutsPerMonth:  plan.HaircutsPerMonth,
		CheckoutSessionID: session.ID,
		CustomerEmail:     session.CustomerEmail,
		CurrentPeriodEnd:  &periodEnd,
	}
	if session.StripeSubscriptionID != "" {
		id := session.StripeSubscriptionID
		sub.StripeSubscriptionID = &id
	}
	if session.StripeCustomerID != "" {
		id := session.StripeCustomerID
		sub.StripeCustomerID = &id
	}
	if code := session.Metadata[models.MetadataPromoCode]; code != "" {
		sub.PromoCode = &code
	}

	stored, created, err := s.subs.CreateFromCheckout(ctx, sub)
	if err != nil {
		if errors.Is(err, repository.ErrLiveSubscriptionExists) {
			s.log.Errorw("Paid checkout session for user who already has a live subscription",
				"sessionID", session.ID, "userID", userID)
			return nil, domain.ErrAlreadySubscribed
		}
		s.log.Errorw("Failed to save subscription", "sessionID", session.ID, "error", err)
		return nil, err
	}
	if !created {
		s.metrics.IncDuplicateConfirmation()
		s.log.Infow("Checkout session already confirmed", "sessionID", session.ID, "subscriptionID", stored.ID)
		return stored, domain.ErrDuplicateConfirmation
	}

	if stored.PromoCode != nil {
		if err := s.promos.Redeem(ctx, *stored.PromoCode); err != nil {
			s.log.Warnw("Failed to redeem promo code", "code", *stored.PromoCode, "subscriptionID", stored.ID, "error", err)
		}
	}

	s.metrics.IncSubscriptionConfirmed(plan.ID)
	s.metrics.ObserveSubscriptionAmount(plan.ID, stored.AmountCents)
	publishAsync(ctx, s.producer, s.log, kafka.TopicSubscriptionConfirmed, stored.ID, newSubscriptionEvent(stored))

	s.log.Infow("Subscription confirmed",
		"subscriptionID", stored.ID, "userID", userID, "shopID", shopID, "planID", plan.ID, "amountCents", stored.AmountCents)
	return stored, nil
}

// Pause приостанавливает активную подписку на 30 дней.
func (s *SubscriptionService) Pause(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionActive {
		return nil, domain.ErrInvalidTransition
	}

	pausedUntil := s.now().UTC().Add(models.PauseDuration)
	if sub.StripeSubscriptionID != nil {
		key := transitionKey("pause", sub)
		err := retryStripe(ctx, s.log, s.newBackOff(), "pause_subscription", func() error {
			return s.stripe.PauseSubscription(ctx, *sub.StripeSubscriptionID, pausedUntil, key)
		})
		if err != nil {
			return nil, domain.NewExternalServiceError("stripe", "pause_subscription", err)
		}
	}

	updated, err := s.subs.UpdateStatus(ctx, sub.ID,
		[]models.SubscriptionStatus{models.SubscriptionActive},
		models.StatusUpdate{Status: models.SubscriptionPaused, PausedUntil: &pausedUntil})
	if err != nil {
		return nil, s.transitionError(ctx, sub.ID, err)
	}

	s.afterTransition(ctx, updated, kafka.TopicSubscriptionPaused)
	return updated, nil
}

// Resume возобновляет приостановленную подписку досрочно.
func (s *SubscriptionService) Resume(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionPaused {
		return nil, domain.ErrInvalidTransition
	}

	if sub.StripeSubscriptionID != nil {
		key := transitionKey("resume", sub)
		err := retryStripe(ctx, s.log, s.newBackOff(), "resume_subscription", func() error {
			return s.stripe.ResumeSubscription(ctx, *sub.StripeSubscriptionID, key)
		})
		if err != nil {
			return nil, domain.NewExternalServiceError("stripe", "resume_subscription", err)
		}
	}

	updated, err := s.subs.UpdateStatus(ctx, sub.ID,
		[]models.SubscriptionStatus{models.SubscriptionPaused},
		models.StatusUpdate{Status: models.SubscriptionActive})
	if err != nil {
		return nil, s.transitionError(ctx, sub.ID, err)
	}

	s.afterTransition(ctx, updated, kafka.TopicSubscriptionResumed)
	return updated, nil
}

// Cancel отменяет активную или приостановленную подписку. Отмена необратима.
func (s *SubscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	sub, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsLive() {
		return nil, domain.ErrInvalidTransition
	}

	if sub.StripeSubscriptionID != nil {
		key := "cancel-" + sub.ID
		err := retryStripe(ctx, s.log, s.newBackOff(), "cancel_subscription", func() error {
			return s.stripe.CancelSubscription(ctx, *sub.StripeSubscriptionID, key)
		})
		if err != nil {
			return nil, domain.NewExternalServiceError("stripe", "cancel_subscription", err)
		}
	}

	return s.markCancelled(ctx, sub.ID)
}

func (s *SubscriptionService) markCancelled(ctx context.Context, id string) (*models.Subscription, error) {
	cancelledAt := s.now().UTC()
	updated, err := s.subs.UpdateStatus(ctx, id,
		[]models.SubscriptionStatus{models.SubscriptionActive, models.SubscriptionPaused},
		models.StatusUpdate{Status: models.SubscriptionCancelled, CancelledAt: &cancelledAt})
	if err != nil {
		return nil, s.transitionError(ctx, id, err)
	}

	s.afterTransition(ctx, updated, kafka.TopicSubscriptionCancelled)
	return updated, nil
}

// ChangePlan отменяет текущую подписку и открывает оплату нового плана в том же барбершопе.
// До подтверждения новой оплаты у пользователя нет активной подписки.
func (s *SubscriptionService) ChangePlan(ctx context.Context, userID, subscriptionID, newPlanID, promoCode, idempotencyKey string) (*CheckoutHandle, error) {
	if _, ok := models.PlanByID(newPlanID); !ok {
		return nil, domain.ErrInvalidPlan
	}
	if strings.TrimSpace(promoCode) != "" {
		if _, err := s.promos.Validate(ctx, promoCode); err != nil {
			return nil, err
		}
	}

	// Все условия новой оплаты проверяются до отмены текущей подписки
	current, err := s.getOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !current.IsLive() {
		return nil, domain.ErrInvalidTransition
	}
	if _, err := s.activeShop(ctx, current.ShopID); err != nil {
		return nil, err
	}

	cancelled, err := s.Cancel(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	handle, err := s.Initiate(ctx, InitiateInput{
		UserID:         userID,
		Email:          cancelled.CustomerEmail,
		ShopID:         cancelled.ShopID,
		PlanID:         newPlanID,
		PromoCode:      promoCode,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.log.Errorw("Plan change left user without subscription", "userID", userID, "cancelledSubscriptionID", cancelled.ID, "error", err)
		return nil, err
	}

	handle.RequiresConfirmation = true
	handle.Warning = changePlanWarning
	return handle, nil
}

// Current возвращает активную или приостановленную подписку пользователя.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.subs.GetLiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

// ListForUser возвращает все подписки пользователя, новые первыми.
func (s *SubscriptionService) ListForUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return s.subs.ListByUserID(ctx, userID)
}

// ResumeDuePaused возобновляет подписки, у которых истек срок паузы.
// Stripe возобновляет списания сам по resumes_at, поэтому меняется только локальное состояние.
func (s *SubscriptionService) ResumeDuePaused(ctx context.Context) (int, error) {
	due, err := s.subs.ListPausedDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	resumed := 0
	for i := range due {
		updated, err := s.subs.UpdateStatus(ctx, due[i].ID,
			[]models.SubscriptionStatus{models.SubscriptionPaused},
			models.StatusUpdate{Status: models.SubscriptionActive})
		if err != nil {
			if errors.Is(err, repository.ErrStatusMismatch) {
				continue
			}
			s.log.Errorw("Failed to resume paused subscription", "subscriptionID", due[i].ID, "error", err)
			continue
		}
		s.afterTransition(ctx, updated, kafka.TopicSubscriptionResumed)
		resumed++
	}

	if resumed > 0 {
		s.log.Infow("Paused subscriptions resumed", "count", resumed)
	}
	return resumed, nil
}

// CancelByProvider отражает отмену подписки, выполненную на стороне Stripe.
func (s *SubscriptionService) CancelByProvider(ctx context.Context, stripeSubscriptionID string) error {
	sub, err := s.subs.GetByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("Stripe subscription is unknown locally", "stripeSubscriptionID", stripeSubscriptionID)
			return nil
		}
		return err
	}
	if !sub.IsLive() {
		return nil
	}

	_, err = s.markCancelled(ctx, sub.ID)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil
	}
	return err
}

// AdvancePeriod продлевает текущий расчетный период после оплаты счета.
func (s *SubscriptionService) AdvancePeriod(ctx context.Context, stripeSubscriptionID string, periodEnd time.Time) error {
	err := s.subs.UpdatePeriodEnd(ctx, stripeSubscriptionID, periodEnd)
	if errors.Is(err, repository.ErrNotFound) {
		// Первый счет приходит раньше подтверждения сессии, период задаст Confirm
		s.log.Infow("Invoice for subscription not yet confirmed", "stripeSubscriptionID", stripeSubscriptionID)
		return nil
	}
	if err == nil {
		s.log.Infow("Subscription period advanced", "stripeSubscriptionID", stripeSubscriptionID, "periodEnd", periodEnd)
	}
	return err
}

func (s *SubscriptionService) getOwned(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	if !validUUID(subscriptionID) {
		return nil, domain.ErrSubscriptionNotFound
	}
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.UserID != userID {
		s.log.Warnw("Subscription access denied", "subscriptionID", subscriptionID, "userID", userID)
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// transitionError различает отсутствующую подписку и недопустимый переход.
func (s *SubscriptionService) transitionError(ctx context.Context, id string, err error) error {
	if !errors.Is(err, repository.ErrStatusMismatch) {
		s.log.Errorw("Failed to update subscription status", "subscriptionID", id, "error", err)
		return err
	}
	if _, getErr := s.subs.GetByID(ctx, id); errors.Is(getErr, repository.ErrNotFound) {
		return domain.ErrSubscriptionNotFound
	}
	return domain.ErrInvalidTransition
}

func (s *SubscriptionService) afterTransition(ctx context.Context, sub *models.Subscription, topic string) {
	s.metrics.IncSubscriptionTransition(string(sub.Status))
	publishAsync(ctx, s.producer, s.log, topic, sub.ID, newSubscriptionEvent(sub))
	s.log.Infow("Subscription status changed", "subscriptionID", sub.ID, "status", sub.Status, "userID", sub.UserID)
}

// transitionKey - ключ идемпотентности одного перехода: updated_at меняется при каждом переходе.
func transitionKey(action string, sub *models.Subscription) string {
	return fmt.Sprintf("%s-%s-%d", action, sub.ID, sub.UpdatedAt.UnixNano())
}
