package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const promoColumns = `code, discount_percent, active, expires_at, max_uses, uses_count, created_at`

type postgresPromoRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresPromoRepository создает репозиторий промокодов для PostgreSQL.
func NewPostgresPromoRepository(db *sqlx.DB, log *logger.Logger) PromoRepository {
	return &postgresPromoRepo{db: db, log: log}
}

// Upsert создает промокод или обновляет его параметры (uses_count не трогается).
func (r *postgresPromoRepo) Upsert(ctx context.Context, promo *models.PromoCode) error {
	_, err := r.db.NamedExecContext(ctx, `
        INSERT INTO promo_codes (code, discount_percent, active, expires_at, max_uses)
        VALUES (:code, :discount_percent, :active, :expires_at, :max_uses)
        ON CONFLICT (code) DO UPDATE SET
            discount_percent = EXCLUDED.discount_percent,
            active = EXCLUDED.active,
            expires_at = EXCLUDED.expires_at,
            max_uses = EXCLUDED.max_uses`, promo)
	if err != nil {
		r.log.Errorw("Failed to upsert promo code", "error", err, "code", promo.Code)
		return fmt.Errorf("repository: failed to upsert promo code: %w", err)
	}
	return nil
}

func (r *postgresPromoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := r.db.GetContext(ctx, &promo, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get promo code", "error", err, "code", code)
		return nil, fmt.Errorf("repository: failed to get promo code: %w", err)
	}
	return &promo, nil
}

func (r *postgresPromoRepo) Redeem(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE promo_codes SET uses_count = uses_count + 1
        WHERE code = $1 AND (max_uses IS NULL OR uses_count < max_uses)`, code)
	if err != nil {
		r.log.Errorw("Failed to redeem promo code", "error", err, "code", code)
		return fmt.Errorf("repository: failed to redeem promo code: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByCode(ctx, code); err != nil {
			return err
		}
		return ErrLimitReached
	}
	return nil
}
