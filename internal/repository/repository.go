package repository

import (
	"context"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
)

// ShopRepository определяет методы для работы с барбершопами и их мастерами.
type ShopRepository interface {
	// Create сохраняет барбершоп. Если ID задан (сид), используется он.
	Create(ctx context.Context, shop *models.Shop) error
	GetByID(ctx context.Context, id int64) (*models.Shop, error)
	// ListActive возвращает барбершопы с active=true.
	ListActive(ctx context.Context) ([]models.Shop, error)
	SetActive(ctx context.Context, id int64, active bool) error

	CreateBarber(ctx context.Context, barber *models.Barber) error
	ListBarbers(ctx context.Context, shopID int64) ([]models.Barber, error)
}

// SubscriptionRepository определяет методы для работы с хранилищем подписок.
type SubscriptionRepository interface {
	// CreateFromCheckout сохраняет подписку, созданную по завершенной сессии оплаты.
	// Если подписка с таким checkout_session_id уже есть, возвращает ее и created=false.
	// Нарушение "одна живая подписка на пользователя" - ErrLiveSubscriptionExists.
	CreateFromCheckout(ctx context.Context, sub *models.Subscription) (stored *models.Subscription, created bool, err error)

	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)

	// GetLiveByUserID возвращает активную или приостановленную подписку пользователя.
	GetLiveByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error)
	ListByShop(ctx context.Context, shopID int64, status models.SubscriptionStatus) ([]models.Subscription, error)

	// UpdateStatus атомарно переводит подписку в новое состояние, только если текущее входит в from.
	// Иначе ErrStatusMismatch.
	UpdateStatus(ctx context.Context, id string, from []models.SubscriptionStatus, upd models.StatusUpdate) (*models.Subscription, error)

	// ListPausedDue возвращает приостановленные подписки с paused_until <= now.
	ListPausedDue(ctx context.Context, now time.Time) ([]models.Subscription, error)

	UpdatePeriodEnd(ctx context.Context, stripeSubscriptionID string, periodEnd time.Time) error
}

// BookingRepository определяет методы для работы с записями.
type BookingRepository interface {
	// CreateForActiveSubscription в одной транзакции блокирует живую подписку пользователя,
	// проверяет, что она активна и лимит периода не исчерпан, и сохраняет запись.
	// Ошибки: ErrNoEligibleSubscription, ErrAllowanceExhausted.
	CreateForActiveSubscription(ctx context.Context, booking *models.Booking) (*models.Booking, error)

	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListByShop(ctx context.Context, shopID int64, limit int) ([]models.Booking, error)
	CountByShopAndStatus(ctx context.Context, shopID int64, statuses ...models.BookingStatus) (int, error)
	ListByDateAndStatus(ctx context.Context, date string, status models.BookingStatus) ([]models.Booking, error)

	// CancelOwned отменяет запись пользователя в статусе scheduled. Иначе ErrStatusMismatch.
	CancelOwned(ctx context.Context, id, userID string) (*models.Booking, error)

	// SetStatusForShop меняет статус записи барбершопа. Чужая или отсутствующая запись - ErrNotFound.
	SetStatusForShop(ctx context.Context, id string, shopID int64, status models.BookingStatus) (*models.Booking, error)
}

// PromoRepository определяет методы для работы с промокодами.
type PromoRepository interface {
	Upsert(ctx context.Context, promo *models.PromoCode) error
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	// Redeem атомарно увеличивает uses_count, не превышая max_uses. Иначе ErrLimitReached.
	Redeem(ctx context.Context, code string) error
}

// ReviewRepository определяет методы для работы с отзывами.
type ReviewRepository interface {
	// Create сохраняет отзыв. Повторный отзыв на ту же запись - ErrDuplicate.
	Create(ctx context.Context, review *models.Review) error
	ListByShop(ctx context.Context, shopID int64) ([]models.Review, error)
}

// AdminRepository хранит учетные записи администраторов.
type AdminRepository interface {
	Upsert(ctx context.Context, admin *models.AdminAccount) error
	GetByUsername(ctx context.Context, username string) (*models.AdminAccount, error)
}
