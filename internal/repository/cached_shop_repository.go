package repository

import (
	"context"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
)

// CachedShopRepository реализует ShopRepository с кешированием в Redis.
// Ошибки кеша не прерывают запрос: данные берутся из основного репозитория.
type CachedShopRepository struct {
	repo  ShopRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedShopRepository создает новый репозиторий с кешированием
func NewCachedShopRepository(repo ShopRepository, cache *RedisCacheRepository, log *logger.Logger) ShopRepository {
	return &CachedShopRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (r *CachedShopRepository) Create(ctx context.Context, shop *models.Shop) error {
	if err := r.repo.Create(ctx, shop); err != nil {
		return err
	}
	if err := r.cache.InvalidateShop(ctx, shop.ID); err != nil {
		r.log.Warnw("Failed to invalidate shop cache after create", "error", err, "shopID", shop.ID)
	}
	return nil
}

// GetByID сначала ищет в кеше, затем в БД, и кеширует результат
func (r *CachedShopRepository) GetByID(ctx context.Context, id int64) (*models.Shop, error) {
	cached, err := r.cache.GetCachedShop(ctx, id)
	if err != nil {
		r.log.Warnw("Failed to get shop from cache", "error", err, "shopID", id)
	} else if cached != nil {
		return cached, nil
	}

	shop, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheShop(ctx, shop); err != nil {
		r.log.Warnw("Failed to cache shop", "error", err, "shopID", id)
	}
	return shop, nil
}

func (r *CachedShopRepository) ListActive(ctx context.Context) ([]models.Shop, error) {
	cached, err := r.cache.GetCachedActiveShops(ctx)
	if err != nil {
		r.log.Warnw("Failed to get active shops from cache", "error", err)
	} else if cached != nil {
		return cached, nil
	}

	shops, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CacheActiveShops(ctx, shops); err != nil {
		r.log.Warnw("Failed to cache active shops", "error", err)
	}
	return shops, nil
}

func (r *CachedShopRepository) SetActive(ctx context.Context, id int64, active bool) error {
	if err := r.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if err := r.cache.InvalidateShop(ctx, id); err != nil {
		r.log.Warnw("Failed to invalidate shop cache", "error", err, "shopID", id)
	}
	return nil
}

func (r *CachedShopRepository) CreateBarber(ctx context.Context, barber *models.Barber) error {
	return r.repo.CreateBarber(ctx, barber)
}

func (r *CachedShopRepository) ListBarbers(ctx context.Context, shopID int64) ([]models.Barber, error) {
	return r.repo.ListBarbers(ctx, shopID)
}
