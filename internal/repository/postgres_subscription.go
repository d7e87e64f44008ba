package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `id, user_id, shop_id, plan_id, status, amount_cents, haircuts_per_month,
       checkout_session_id, stripe_subscription_id, stripe_customer_id, customer_email, promo_code,
       paused_until, current_period_end, cancelled_at, created_at, updated_at`

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// CreateFromCheckout вставляет подписку; повтор по checkout_session_id не создает вторую строку.
func (r *postgresSubscriptionRepo) CreateFromCheckout(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error) {
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
        INSERT INTO subscriptions (
            id, user_id, shop_id, plan_id, status, amount_cents, haircuts_per_month,
            checkout_session_id, stripe_subscription_id, stripe_customer_id, customer_email, promo_code,
            paused_until, current_period_end, cancelled_at, created_at, updated_at
        ) VALUES (
            :id, :user_id, :shop_id, :plan_id, :status, :amount_cents, :haircuts_per_month,
            :checkout_session_id, :stripe_subscription_id, :stripe_customer_id, :customer_email, :promo_code,
            :paused_until, :current_period_end, :cancelled_at, :created_at, :updated_at
        )
        ON CONFLICT (checkout_session_id) DO NOTHING
        RETURNING ` + subscriptionColumns

	rows, err := r.db.NamedQueryContext(ctx, query, sub)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			// Гонка двух подтверждений одной сессии может прийти сюда через индекс пользователя.
			if existing, getErr := r.getByCheckoutSessionID(ctx, sub.CheckoutSessionID); getErr == nil {
				return existing, false, nil
			}
			if constraint == constraintOneLivePerUser {
				r.log.Warnw("User already has a live subscription", "userID", sub.UserID, "checkoutSessionID", sub.CheckoutSessionID)
				return nil, false, ErrLiveSubscriptionExists
			}
			return nil, false, ErrDuplicate
		}
		r.log.Errorw("Failed to create subscription in DB", "error", err, "checkoutSessionID", sub.CheckoutSessionID, "userID", sub.UserID)
		return nil, false, fmt.Errorf("repository: failed to create subscription: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var stored models.Subscription
		if err := rows.StructScan(&stored); err != nil {
			return nil, false, fmt.Errorf("repository: failed to scan created subscription: %w", err)
		}
		r.log.Debugw("Successfully created subscription in DB", "subscriptionID", stored.ID, "userID", stored.UserID)
		return &stored, true, nil
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("repository: failed to create subscription: %w", err)
	}
	_ = rows.Close()

	existing, err := r.getByCheckoutSessionID(ctx, sub.CheckoutSessionID)
	if err != nil {
		return nil, false, err
	}
	r.log.Infow("Checkout session already reconciled", "checkoutSessionID", sub.CheckoutSessionID, "subscriptionID", existing.ID)
	return existing, false, nil
}

func (r *postgresSubscriptionRepo) getOne(ctx context.Context, where string, args ...interface{}) (*models.Subscription, error) {
	var sub models.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE ` + where
	if err := r.db.GetContext(ctx, &sub, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription from DB", "error", err, "where", where)
		return nil, fmt.Errorf("repository: failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (r *postgresSubscriptionRepo) getByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Subscription, error) {
	return r.getOne(ctx, `checkout_session_id = $1`, sessionID)
}

func (r *postgresSubscriptionRepo) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *postgresSubscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	return r.getOne(ctx, `stripe_subscription_id = $1 ORDER BY created_at DESC LIMIT 1`, stripeSubscriptionID)
}

func (r *postgresSubscriptionRepo) GetLiveByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.getOne(ctx, `user_id = $1 AND status IN ('active', 'paused')`, userID)
}

func (r *postgresSubscriptionRepo) ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		r.log.Errorw("Failed to list subscriptions by user ID", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to list subscriptions by user ID: %w", err)
	}
	return subs, nil
}

func (r *postgresSubscriptionRepo) ListByShop(ctx context.Context, shopID int64, status models.SubscriptionStatus) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE shop_id = $1 AND status = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &subs, query, shopID, status); err != nil {
		r.log.Errorw("Failed to list subscriptions by shop", "error", err, "shopID", shopID)
		return nil, fmt.Errorf("repository: failed to list subscriptions by shop: %w", err)
	}
	return subs, nil
}

// UpdateStatus - условный UPDATE; ноль затронутых строк означает несовпадение состояния.
func (r *postgresSubscriptionRepo) UpdateStatus(ctx context.Context, id string, from []models.SubscriptionStatus, upd models.StatusUpdate) (*models.Subscription, error) {
	query, args, err := sqlx.In(`
        UPDATE subscriptions SET
            status = ?,
            paused_until = ?,
            cancelled_at = COALESCE(?::timestamptz, cancelled_at),
            updated_at = now()
        WHERE id = ? AND status IN (?)
        RETURNING `+subscriptionColumns,
		upd.Status, upd.PausedUntil, upd.CancelledAt, id, from)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build status update: %w", err)
	}

	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("Subscription status update matched no rows", "subscriptionID", id, "to", upd.Status)
			return nil, ErrStatusMismatch
		}
		r.log.Errorw("Failed to update subscription status", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("repository: failed to update subscription status: %w", err)
	}

	r.log.Debugw("Subscription status updated", "subscriptionID", id, "status", sub.Status)
	return &sub, nil
}

func (r *postgresSubscriptionRepo) ListPausedDue(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
        WHERE status = 'paused' AND paused_until <= $1 ORDER BY paused_until`
	if err := r.db.SelectContext(ctx, &subs, query, now); err != nil {
		r.log.Errorw("Failed to list paused subscriptions", "error", err)
		return nil, fmt.Errorf("repository: failed to list paused subscriptions: %w", err)
	}
	return subs, nil
}

func (r *postgresSubscriptionRepo) UpdatePeriodEnd(ctx context.Context, stripeSubscriptionID string, periodEnd time.Time) error {
	query := `
        UPDATE subscriptions SET current_period_end = $2, updated_at = now()
        WHERE stripe_subscription_id = $1
          AND (current_period_end IS NULL OR current_period_end < $2)`
	result, err := r.db.ExecContext(ctx, query, stripeSubscriptionID, periodEnd)
	if err != nil {
		r.log.Errorw("Failed to update subscription period end", "error", err, "stripeSubscriptionID", stripeSubscriptionID)
		return fmt.Errorf("repository: failed to update period end: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}
	if rowsAffected == 0 {
		// Либо подписки нет, либо период уже новее - проверяем, что запись существует.
		if _, err := r.GetByStripeSubscriptionID(ctx, stripeSubscriptionID); err != nil {
			return err
		}
	}
	return nil
}
