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

type postgresReviewRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewPostgresReviewRepository(db *sqlx.DB, log *logger.Logger) ReviewRepository {
	return &postgresReviewRepo{db: db, log: log}
}

func (r *postgresReviewRepo) Create(ctx context.Context, review *models.Review) error {
	review.CreatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx, `
        INSERT INTO reviews (id, user_id, shop_id, booking_id, rating, comment, created_at)
        VALUES (:id, :user_id, :shop_id, :booking_id, :rating, :comment, :created_at)`, review)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicate
		}
		r.log.Errorw("Failed to create review", "error", err, "bookingID", review.BookingID)
		return fmt.Errorf("repository: failed to create review: %w", err)
	}
	return nil
}

func (r *postgresReviewRepo) ListByShop(ctx context.Context, shopID int64) ([]models.Review, error) {
	reviews := []models.Review{}
	err := r.db.SelectContext(ctx, &reviews, `
        SELECT id, user_id, shop_id, booking_id, rating, comment, created_at
        FROM reviews WHERE shop_id = $1 ORDER BY created_at DESC`, shopID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list reviews: %w", err)
	}
	return reviews, nil
}

type postgresAdminRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewPostgresAdminRepository(db *sqlx.DB, log *logger.Logger) AdminRepository {
	return &postgresAdminRepo{db: db, log: log}
}

func (r *postgresAdminRepo) Upsert(ctx context.Context, admin *models.AdminAccount) error {
	_, err := r.db.NamedExecContext(ctx, `
        INSERT INTO admin_accounts (username, password_hash, shop_id, shop_name)
        VALUES (:username, :password_hash, :shop_id, :shop_name)
        ON CONFLICT (username) DO UPDATE SET
            password_hash = EXCLUDED.password_hash,
            shop_id = EXCLUDED.shop_id,
            shop_name = EXCLUDED.shop_name`, admin)
	if err != nil {
		r.log.Errorw("Failed to upsert admin account", "error", err, "username", admin.Username)
		return fmt.Errorf("repository: failed to upsert admin account: %w", err)
	}
	return nil
}

func (r *postgresAdminRepo) GetByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	var admin models.AdminAccount
	err := r.db.GetContext(ctx, &admin, `
        SELECT username, password_hash, shop_id, shop_name, created_at
        FROM admin_accounts WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get admin account: %w", err)
	}
	return &admin, nil
}
