package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	shopKeyPrefix  = "shop:"
	activeShopsKey = "shops:active"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование и одноразовые отметки с использованием Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория и проверяет соединение
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return NewRedisCacheFromClient(client, log), nil
}

// NewRedisCacheFromClient оборачивает уже созданный клиент (используется в тестах).
func NewRedisCacheFromClient(client *redis.Client, log *logger.Logger) *RedisCacheRepository {
	return &RedisCacheRepository{client: client, log: log}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis (health check).
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCacheRepository) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to write cache entry", "error", err, "key", key)
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

// getJSON возвращает found=false, если ключа нет.
func (r *RedisCacheRepository) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.log.Errorw("Error reading cache entry", "error", err, "key", key)
		return false, fmt.Errorf("failed to read %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

// CacheShop кеширует барбершоп
func (r *RedisCacheRepository) CacheShop(ctx context.Context, shop *models.Shop) error {
	return r.setJSON(ctx, fmt.Sprintf("%s%d", shopKeyPrefix, shop.ID), shop)
}

// GetCachedShop получает барбершоп из кеша; (nil, nil) если его там нет
func (r *RedisCacheRepository) GetCachedShop(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	found, err := r.getJSON(ctx, fmt.Sprintf("%s%d", shopKeyPrefix, id), &shop)
	if err != nil || !found {
		return nil, err
	}
	return &shop, nil
}

// CacheActiveShops кеширует список активных барбершопов
func (r *RedisCacheRepository) CacheActiveShops(ctx context.Context, shops []models.Shop) error {
	return r.setJSON(ctx, activeShopsKey, shops)
}

// GetCachedActiveShops возвращает (nil, nil), если списка нет в кеше
func (r *RedisCacheRepository) GetCachedActiveShops(ctx context.Context) ([]models.Shop, error) {
	var shops []models.Shop
	found, err := r.getJSON(ctx, activeShopsKey, &shops)
	if err != nil || !found {
		return nil, err
	}
	return shops, nil
}

// InvalidateShop удаляет барбершоп и список активных из кеша
func (r *RedisCacheRepository) InvalidateShop(ctx context.Context, id int64) error {
	if err := r.client.Del(ctx, fmt.Sprintf("%s%d", shopKeyPrefix, id), activeShopsKey).Err(); err != nil {
		r.log.Errorw("Failed to invalidate shop cache", "error", err, "shopID", id)
		return fmt.Errorf("failed to invalidate shop cache: %w", err)
	}
	return nil
}

// MarkOnce ставит ключ, если его еще нет. Возвращает true только первому вызвавшему.
func (r *RedisCacheRepository) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		r.log.Errorw("Failed to set once-marker", "error", err, "key", key)
		return false, fmt.Errorf("failed to set marker %s: %w", key, err)
	}
	return ok, nil
}

// Unmark снимает отметку, чтобы операцию можно было повторить.
func (r *RedisCacheRepository) Unmark(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete marker %s: %w", key, err)
	}
	return nil
}
