package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/shopspring/decimal"
)

// PromoResult - результат проверки промокода.
type PromoResult struct {
	Valid           bool   `json:"valid"`
	Code            string `json:"code"`
	DiscountPercent int    `json:"discount_percent"`
}

// PromoService проверяет и погашает промокоды.
type PromoService struct {
	repo repository.PromoRepository
	log  *logger.Logger
	now  func() time.Time
}

// NewPromoService создает сервис промокодов
func NewPromoService(repo repository.PromoRepository, log *logger.Logger) *PromoService {
	return &PromoService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// NormalizeCode приводит код к виду, в котором он хранится.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate проверяет код без изменения счетчика использований.
// Истекший код считается истекшим, даже если он выключен.
func (s *PromoService) Validate(ctx context.Context, code string) (*PromoResult, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, domain.ErrPromoNotFound
	}

	promo, err := s.repo.GetByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPromoNotFound
		}
		s.log.Errorw("Failed to load promo code", "code", normalized, "error", err)
		return nil, err
	}

	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(s.now()) {
		return nil, domain.ErrPromoExpired
	}
	if !promo.Active {
		return nil, domain.ErrPromoNotFound
	}
	if promo.MaxUses != nil && promo.UsesCount >= *promo.MaxUses {
		return nil, domain.ErrPromoUsageLimitReached
	}

	return &PromoResult{Valid: true, Code: promo.Code, DiscountPercent: promo.DiscountPercent}, nil
}

// Redeem увеличивает счетчик использований, не превышая лимит.
func (s *PromoService) Redeem(ctx context.Context, code string) error {
	normalized := NormalizeCode(code)
	err := s.repo.Redeem(ctx, normalized)
	switch {
	case err == nil:
		s.log.Infow("Promo code redeemed", "code", normalized)
		return nil
	case errors.Is(err, repository.ErrLimitReached):
		return domain.ErrPromoUsageLimitReached
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrPromoNotFound
	default:
		return err
	}
}

var hundred = decimal.NewFromInt(100)

// DiscountedAmount применяет скидку в процентах с округлением половины вверх до цента.
func DiscountedAmount(cents int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return cents
	}
	if discountPercent >= 100 {
		return 0
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(discountPercent))).Div(hundred)
	return decimal.NewFromInt(cents).Mul(factor).Round(0).IntPart()
}
