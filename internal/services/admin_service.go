package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const recentBookingsLimit = 10

// Доля выручки, которая выплачивается барбершопу.
var payoutShare = decimal.NewFromFloat(0.8)

// dummyHash сравнивается с паролем для неизвестных логинов, чтобы время ответа не выдавало их.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("clipgo-dummy-password"), bcrypt.DefaultCost)

// TokenIssuer выпускает токены администраторов.
type TokenIssuer interface {
	IssueAdminToken(username string, shopID int64) (string, time.Time, error)
}

// LoginResult - ответ на успешный вход администратора.
type LoginResult struct {
	Token     string    `json:"token"`
	ShopID    int64     `json:"shop_id"`
	ShopName  string    `json:"shop_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PlanStats - подписчики и выручка по тарифу.
type PlanStats struct {
	PlanID      string  `json:"plan_id"`
	PlanName    string  `json:"plan_name"`
	Subscribers int     `json:"subscribers"`
	Revenue     float64 `json:"revenue"`
}

// Dashboard - сводка для администратора барбершопа.
type Dashboard struct {
	Shop             *models.Shop     `json:"shop"`
	TotalSubscribers int              `json:"total_subscribers"`
	ActiveBookings   int              `json:"active_bookings"`
	MonthlyRevenue   float64          `json:"monthly_revenue"`
	ShopPayout       float64          `json:"shop_payout"`
	Plans            []PlanStats      `json:"plans"`
	RecentBookings   []models.Booking `json:"recent_bookings"`
}

// AddBarberInput - данные нового мастера.
type AddBarberInput struct {
	Name            string
	Bio             string
	YearsExperience int
}

// AdminService - вход администраторов и операции над своим барбершопом.
type AdminService struct {
	admins   repository.AdminRepository
	shops    repository.ShopRepository
	subs     repository.SubscriptionRepository
	bookings repository.BookingRepository
	promos   repository.PromoRepository
	tokens   TokenIssuer
	log      *logger.Logger
}

// NewAdminService создает сервис администрирования
func NewAdminService(
	admins repository.AdminRepository,
	shops repository.ShopRepository,
	subs repository.SubscriptionRepository,
	bookings repository.BookingRepository,
	promos repository.PromoRepository,
	tokens TokenIssuer,
	log *logger.Logger,
) *AdminService {
	return &AdminService{
		admins:   admins,
		shops:    shops,
		subs:     subs,
		bookings: bookings,
		promos:   promos,
		tokens:   tokens,
		log:      log,
	}
}

// Login проверяет пароль и выпускает токен с привязкой к барбершопу.
func (s *AdminService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.log.Warnw("Admin login failed: unknown username", "username", username)
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.log.Warnw("Admin login failed: wrong password", "username", username)
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.IssueAdminToken(admin.Username, admin.ShopID)
	if err != nil {
		return nil, err
	}

	s.log.Infow("Admin logged in", "username", admin.Username, "shopID", admin.ShopID)
	return &LoginResult{
		Token:     token,
		ShopID:    admin.ShopID,
		ShopName:  admin.ShopName,
		ExpiresAt: expiresAt,
	}, nil
}

// Dashboard загружает данные барбершопа параллельно и считает выручку.
func (s *AdminService) Dashboard(ctx context.Context, shopID int64) (*Dashboard, error) {
	var (
		shop     *models.Shop
		subs     []models.Subscription
		recent   []models.Booking
		inFlight int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		shop, err = s.shops.GetByID(gctx, shopID)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrShopNotFound
		}
		return err
	})
	g.Go(func() error {
		var err error
		subs, err = s.subs.ListByShop(gctx, shopID, models.SubscriptionActive)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.bookings.ListByShop(gctx, shopID, recentBookingsLimit)
		return err
	})
	g.Go(func() error {
		var err error
		inFlight, err = s.bookings.CountByShopAndStatus(gctx, shopID, models.BookingScheduled, models.BookingConfirmed)
		return err
	})
	if err := g.Wait(); err != nil {
		if !errors.Is(err, domain.ErrShopNotFound) {
			s.log.Errorw("Failed to load dashboard", "shopID", shopID, "error", err)
		}
		return nil, err
	}

	var revenueCents int64
	planCents := make(map[string]int64)
	byPlan := make(map[string]*PlanStats)
	for _, sub := range subs {
		revenueCents += sub.AmountCents
		planCents[sub.PlanID] += sub.AmountCents
		stats, ok := byPlan[sub.PlanID]
		if !ok {
			stats = &PlanStats{PlanID: sub.PlanID, PlanName: sub.PlanID}
			if plan, found := models.PlanByID(sub.PlanID); found {
				stats.PlanName = plan.Name
			}
			byPlan[sub.PlanID] = stats
		}
		stats.Subscribers++
	}

	plans := make([]PlanStats, 0, len(byPlan))
	for id, stats := range byPlan {
		stats.Revenue = centsToDollars(planCents[id]).InexactFloat64()
		plans = append(plans, *stats)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].PlanID < plans[j].PlanID })

	revenue := centsToDollars(revenueCents)
	if recent == nil {
		recent = []models.Booking{}
	}

	return &Dashboard{
		Shop:             shop,
		TotalSubscribers: len(subs),
		ActiveBookings:   inFlight,
		MonthlyRevenue:   revenue.Round(2).InexactFloat64(),
		ShopPayout:       revenue.Mul(payoutShare).Round(2).InexactFloat64(),
		Plans:            plans,
		RecentBookings:   recent,
	}, nil
}

func centsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// SetShopActive включает или скрывает барбершоп в каталоге.
func (s *AdminService) SetShopActive(ctx context.Context, shopID int64, active bool) (*models.Shop, error) {
	if err := s.shops.SetActive(ctx, shopID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, err
	}
	s.log.Infow("Shop visibility changed", "shopID", shopID, "active", active)

	shop, err := s.shops.GetByID(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return shop, nil
}

// AddBarber добавляет мастера в барбершоп.
func (s *AdminService) AddBarber(ctx context.Context, shopID int64, in AddBarberInput) (*models.Barber, error) {
	if _, err := s.shops.GetByID(ctx, shopID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, err
	}

	barber := &models.Barber{
		ShopID:          shopID,
		Name:            strings.TrimSpace(in.Name),
		Bio:             strings.TrimSpace(in.Bio),
		YearsExperience: in.YearsExperience,
	}
	if err := s.shops.CreateBarber(ctx, barber); err != nil {
		return nil, err
	}
	s.log.Infow("Barber added", "shopID", shopID, "barberID", barber.ID)
	return barber, nil
}

// Seed загружает начальные барбершопы, администраторов и промокоды. Повторный запуск безопасен.
func (s *AdminService) Seed(ctx context.Context, seed config.Seed) error {
	for _, sh := range seed.Shops {
		shop := &models.Shop{ID: sh.ID, Name: sh.Name, Address: sh.Address, Phone: sh.Phone, Active: true}
		if err := s.shops.Create(ctx, shop); err != nil {
			return fmt.Errorf("seed shop %q: %w", sh.Name, err)
		}
	}

	for _, a := range seed.Admins {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password for %q: %w", a.Username, err)
		}
		admin := &models.AdminAccount{
			Username:     strings.ToLower(a.Username),
			PasswordHash: string(hash),
			ShopID:       a.ShopID,
			ShopName:     a.ShopName,
		}
		if err := s.admins.Upsert(ctx, admin); err != nil {
			return fmt.Errorf("seed admin %q: %w", a.Username, err)
		}
	}

	for _, p := range seed.PromoCodes {
		promo := &models.PromoCode{
			Code:            NormalizeCode(p.Code),
			DiscountPercent: p.DiscountPercent,
			Active:          p.Active,
			ExpiresAt:       p.ExpiresAt,
			MaxUses:         p.MaxUses,
		}
		if err := s.promos.Upsert(ctx, promo); err != nil {
			return fmt.Errorf("seed promo %q: %w", p.Code, err)
		}
	}

	s.log.Infow("Seed data loaded",
		"shops", len(seed.Shops), "admins", len(seed.Admins), "promoCodes", len(seed.PromoCodes))
	return nil
}
