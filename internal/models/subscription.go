package models

import "time"

// SubscriptionStatus - состояние подписки.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// PauseDuration - на сколько приостанавливается подписка.
const PauseDuration = 30 * 24 * time.Hour

// Subscription представляет подписку пользователя на план в конкретном барбершопе.
type Subscription struct {
	ID                   string             `db:"id" json:"id"`
	UserID               string             `db:"user_id" json:"user_id"`
	ShopID               int64              `db:"shop_id" json:"shop_id"`
	PlanID               string             `db:"plan_id" json:"plan_id"`
	Status               SubscriptionStatus `db:"status" json:"status"`
	AmountCents          int64              `db:"amount_cents" json:"amount_cents"`
	HaircutsPerMonth     int                `db:"haircuts_per_month" json:"haircuts_per_month"`
	CheckoutSessionID    string             `db:"checkout_session_id" json:"checkout_session_id"`
	StripeSubscriptionID *string            `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID     *string            `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CustomerEmail        string             `db:"customer_email" json:"customer_email"`
	PromoCode            *string            `db:"promo_code" json:"promo_code,omitempty"`
	PausedUntil          *time.Time         `db:"paused_until" json:"paused_until,omitempty"`
	CurrentPeriodEnd     *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelledAt          *time.Time         `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt            time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// IsLive - подписка не в терминальном состоянии.
func (s *Subscription) IsLive() bool {
	return s.Status == SubscriptionActive || s.Status == SubscriptionPaused
}

// PeriodStart возвращает начало текущего расчетного периода.
func (s *Subscription) PeriodStart() time.Time {
	if s.CurrentPeriodEnd != nil {
		start := AddMonths(*s.CurrentPeriodEnd, -1)
		if start.After(s.CreatedAt) {
			return start
		}
	}
	return s.CreatedAt
}

// AddMonths сдвигает дату на n месяцев, прижимая день к концу месяца
// (31 января + 1 месяц = 28/29 февраля), как это делает Stripe.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// StatusUpdate описывает переход подписки в новое состояние.
type StatusUpdate struct {
	Status      SubscriptionStatus
	PausedUntil *time.Time
	CancelledAt *time.Time
}

// CheckoutSession - завершенная сессия оплаты, достаточная для создания подписки.
type CheckoutSession struct {
	ID                   string
	Status               string
	PaymentStatus        string
	AmountTotal          int64
	CustomerEmail        string
	StripeSubscriptionID string
	StripeCustomerID     string
	Metadata             map[string]string
}

// Ключи метаданных сессии оплаты.
const (
	MetadataUserID    = "user_id"
	MetadataShopID    = "shop_id"
	MetadataPlanID    = "plan_id"
	MetadataPromoCode = "promo_code"
)
