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

// appointment_date хранится как DATE, наружу отдается строкой YYYY-MM-DD.
const bookingColumns = `id, user_id, shop_id, subscription_id, appointment_date::text AS appointment_date,
       appointment_time, barber_name, notes, status, customer_email, customer_phone, created_at, updated_at`

type postgresBookingRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresBookingRepository создает репозиторий записей для PostgreSQL.
func NewPostgresBookingRepository(db *sqlx.DB, log *logger.Logger) BookingRepository {
	return &postgresBookingRepo{db: db, log: log}
}

// CreateForActiveSubscription проверяет право на запись и вставляет ее в одной транзакции.
// Строка подписки блокируется FOR UPDATE, поэтому параллельная отмена подписки
// либо завершится до проверки, либо будет ждать коммита записи.
func (r *postgresBookingRepo) CreateForActiveSubscription(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.log.Errorw("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer tx.Rollback()

	var sub models.Subscription
	err = tx.GetContext(ctx, &sub, `
        SELECT `+subscriptionColumns+`
        FROM subscriptions
        WHERE user_id = $1 AND status IN ('active', 'paused')
        FOR UPDATE`, booking.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoEligibleSubscription
		}
		r.log.Errorw("Failed to lock subscription for booking", "error", err, "userID", booking.UserID)
		return nil, fmt.Errorf("repository: failed to lock subscription: %w", err)
	}
	if sub.Status != models.SubscriptionActive {
		return nil, ErrNoEligibleSubscription
	}

	var used int
	err = tx.GetContext(ctx, &used, `
        SELECT COUNT(*) FROM bookings
        WHERE subscription_id = $1 AND status <> 'cancelled' AND created_at >= $2`,
		sub.ID, sub.PeriodStart())
	if err != nil {
		return nil, fmt.Errorf("repository: failed to count bookings in period: %w", err)
	}
	if used >= sub.HaircutsPerMonth {
		r.log.Infow("Booking rejected, allowance exhausted", "userID", booking.UserID, "subscriptionID", sub.ID, "used", used, "allowance", sub.HaircutsPerMonth)
		return nil, ErrAllowanceExhausted
	}

	now := time.Now().UTC()
	booking.SubscriptionID = sub.ID
	booking.Status = models.BookingScheduled
	booking.CreatedAt = now
	booking.UpdatedAt = now

	query, args, err := tx.BindNamed(`
        INSERT INTO bookings (
            id, user_id, shop_id, subscription_id, appointment_date, appointment_time,
            barber_name, notes, status, customer_email, customer_phone, created_at, updated_at
        ) VALUES (
            :id, :user_id, :shop_id, :subscription_id, :appointment_date, :appointment_time,
            :barber_name, :notes, :status, :customer_email, :customer_phone, :created_at, :updated_at
        ) RETURNING `+bookingColumns, booking)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to bind booking insert: %w", err)
	}

	var stored models.Booking
	if err := tx.GetContext(ctx, &stored, query, args...); err != nil {
		r.log.Errorw("Failed to insert booking", "error", err, "userID", booking.UserID)
		return nil, fmt.Errorf("repository: failed to insert booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		r.log.Errorw("Failed to commit booking transaction", "error", err)
		return nil, fmt.Errorf("repository: failed to commit booking: %w", err)
	}

	r.log.Debugw("Booking created", "bookingID", stored.ID, "subscriptionID", sub.ID, "used", used+1, "allowance", sub.HaircutsPerMonth)
	return &stored, nil
}

func (r *postgresBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get booking: %w", err)
	}
	return &b, nil
}

func (r *postgresBookingRepo) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1
        ORDER BY appointment_date DESC, appointment_time DESC`
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		r.log.Errorw("Failed to list bookings by user", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to list bookings by user: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepo) ListByShop(ctx context.Context, shopID int64, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE shop_id = $1 ORDER BY created_at DESC LIMIT $2`
	if err := r.db.SelectContext(ctx, &bookings, query, shopID, limit); err != nil {
		r.log.Errorw("Failed to list bookings by shop", "error", err, "shopID", shopID)
		return nil, fmt.Errorf("repository: failed to list bookings by shop: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepo) CountByShopAndStatus(ctx context.Context, shopID int64, statuses ...models.BookingStatus) (int, error) {
	query, args, err := sqlx.In(`SELECT COUNT(*) FROM bookings WHERE shop_id = ? AND status IN (?)`, shopID, statuses)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to build booking count: %w", err)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("repository: failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *postgresBookingRepo) ListByDateAndStatus(ctx context.Context, date string, status models.BookingStatus) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings
        WHERE appointment_date = $1::date AND status = $2 ORDER BY appointment_time`
	if err := r.db.SelectContext(ctx, &bookings, query, date, status); err != nil {
		r.log.Errorw("Failed to list bookings by date", "error", err, "date", date)
		return nil, fmt.Errorf("repository: failed to list bookings by date: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepo) CancelOwned(ctx context.Context, id, userID string) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `
        UPDATE bookings SET status = 'cancelled', updated_at = now()
        WHERE id = $1 AND user_id = $2 AND status = 'scheduled'
        RETURNING `+bookingColumns, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusMismatch
		}
		r.log.Errorw("Failed to cancel booking", "error", err, "bookingID", id)
		return nil, fmt.Errorf("repository: failed to cancel booking: %w", err)
	}
	return &b, nil
}

func (r *postgresBookingRepo) SetStatusForShop(ctx context.Context, id string, shopID int64, status models.BookingStatus) (*models.Booking, error) {
	var b models.Booking
	err := r.db.GetContext(ctx, &b, `
        UPDATE bookings SET status = $3, updated_at = now()
        WHERE id = $1 AND shop_id = $2
        RETURNING `+bookingColumns, id, shopID, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to set booking status", "error", err, "bookingID", id, "shopID", shopID)
		return nil, fmt.Errorf("repository: failed to set booking status: %w", err)
	}
	return &b, nil
}
