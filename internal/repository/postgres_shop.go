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

type postgresShopRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresShopRepository создает репозиторий барбершопов для PostgreSQL.
func NewPostgresShopRepository(db *sqlx.DB, log *logger.Logger) ShopRepository {
	return &postgresShopRepo{db: db, log: log}
}

// Create вставляет барбершоп. Явный ID (сид) обновляет существующую запись и сдвигает последовательность.
func (r *postgresShopRepo) Create(ctx context.Context, shop *models.Shop) error {
	if shop.ID == 0 {
		err := r.db.GetContext(ctx, shop, `
            INSERT INTO shops (name, address, phone, active)
            VALUES ($1, $2, $3, $4)
            RETURNING id, name, address, phone, active, created_at`,
			shop.Name, shop.Address, shop.Phone, shop.Active)
		if err != nil {
			r.log.Errorw("Failed to create shop", "error", err, "name", shop.Name)
			return fmt.Errorf("repository: failed to create shop: %w", err)
		}
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer tx.Rollback()

	err = tx.GetContext(ctx, shop, `
        INSERT INTO shops (id, name, address, phone, active)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone
        RETURNING id, name, address, phone, active, created_at`,
		shop.ID, shop.Name, shop.Address, shop.Phone, shop.Active)
	if err != nil {
		r.log.Errorw("Failed to upsert shop", "error", err, "shopID", shop.ID)
		return fmt.Errorf("repository: failed to upsert shop: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT setval('shops_id_seq', (SELECT MAX(id) FROM shops))`); err != nil {
		return fmt.Errorf("repository: failed to advance shop sequence: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository: failed to commit shop upsert: %w", err)
	}
	return nil
}

func (r *postgresShopRepo) GetByID(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.GetContext(ctx, &shop, `SELECT id, name, address, phone, active, created_at FROM shops WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get shop", "error", err, "shopID", id)
		return nil, fmt.Errorf("repository: failed to get shop: %w", err)
	}
	return &shop, nil
}

func (r *postgresShopRepo) ListActive(ctx context.Context) ([]models.Shop, error) {
	shops := []models.Shop{}
	err := r.db.SelectContext(ctx, &shops, `
        SELECT id, name, address, phone, active, created_at FROM shops
        WHERE active ORDER BY name`)
	if err != nil {
		r.log.Errorw("Failed to list active shops", "error", err)
		return nil, fmt.Errorf("repository: failed to list active shops: %w", err)
	}
	return shops, nil
}

func (r *postgresShopRepo) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE shops SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		r.log.Errorw("Failed to update shop active flag", "error", err, "shopID", id)
		return fmt.Errorf("repository: failed to update shop: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to get affected rows count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresShopRepo) CreateBarber(ctx context.Context, barber *models.Barber) error {
	err := r.db.GetContext(ctx, barber, `
        INSERT INTO barbers (shop_id, name, bio, years_experience)
        VALUES ($1, $2, $3, $4)
        RETURNING id, shop_id, name, bio, years_experience, created_at`,
		barber.ShopID, barber.Name, barber.Bio, barber.YearsExperience)
	if err != nil {
		r.log.Errorw("Failed to create barber", "error", err, "shopID", barber.ShopID)
		return fmt.Errorf("repository: failed to create barber: %w", err)
	}
	return nil
}

func (r *postgresShopRepo) ListBarbers(ctx context.Context, shopID int64) ([]models.Barber, error) {
	barbers := []models.Barber{}
	err := r.db.SelectContext(ctx, &barbers, `
        SELECT id, shop_id, name, bio, years_experience, created_at FROM barbers
        WHERE shop_id = $1 ORDER BY name`, shopID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list barbers: %w", err)
	}
	return barbers, nil
}
