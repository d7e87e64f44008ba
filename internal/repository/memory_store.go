package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
)

// InMemoryStore - реализация всех репозиториев в памяти (database.driver=memory и тесты).
// Один мьютекс на все таблицы повторяет транзакционные гарантии Postgres:
// проверка подписки и вставка записи выполняются под одной блокировкой.
type InMemoryStore struct {
	mutex         sync.RWMutex
	log           *logger.Logger
	shops         map[int64]models.Shop
	nextShopID    int64
	barbers       []models.Barber
	subscriptions map[string]models.Subscription
	bookings      map[string]models.Booking
	promos        map[string]models.PromoCode
	reviews       map[string]models.Review
	admins        map[string]models.AdminAccount
}

// NewInMemoryStore создает пустое хранилище в памяти.
func NewInMemoryStore(log *logger.Logger) *InMemoryStore {
	return &InMemoryStore{
		log:           log,
		shops:         make(map[int64]models.Shop),
		subscriptions: make(map[string]models.Subscription),
		bookings:      make(map[string]models.Booking),
		promos:        make(map[string]models.PromoCode),
		reviews:       make(map[string]models.Review),
		admins:        make(map[string]models.AdminAccount),
	}
}

func (s *InMemoryStore) Shops() ShopRepository                 { return &inMemoryShopRepo{s} }
func (s *InMemoryStore) Subscriptions() SubscriptionRepository { return &inMemorySubscriptionRepo{s} }
func (s *InMemoryStore) Bookings() BookingRepository           { return &inMemoryBookingRepo{s} }
func (s *InMemoryStore) Promos() PromoRepository               { return &inMemoryPromoRepo{s} }
func (s *InMemoryStore) Reviews() ReviewRepository             { return &inMemoryReviewRepo{s} }
func (s *InMemoryStore) Admins() AdminRepository               { return &inMemoryAdminRepo{s} }

// --- shops ---

type inMemoryShopRepo struct{ s *InMemoryStore }

func (r *inMemoryShopRepo) Create(ctx context.Context, shop *models.Shop) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	if shop.ID == 0 {
		r.s.nextShopID++
		shop.ID = r.s.nextShopID
	} else if shop.ID > r.s.nextShopID {
		r.s.nextShopID = shop.ID
	}
	if existing, ok := r.s.shops[shop.ID]; ok {
		shop.CreatedAt = existing.CreatedAt
		shop.Active = existing.Active
	} else {
		shop.CreatedAt = time.Now().UTC()
	}
	r.s.shops[shop.ID] = *shop
	return nil
}

func (r *inMemoryShopRepo) GetByID(ctx context.Context, id int64) (*models.Shop, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	shop, ok := r.s.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &shop, nil
}

func (r *inMemoryShopRepo) ListActive(ctx context.Context) ([]models.Shop, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	shops := []models.Shop{}
	for _, shop := range r.s.shops {
		if shop.Active {
			shops = append(shops, shop)
		}
	}
	sort.Slice(shops, func(i, j int) bool { return shops[i].Name < shops[j].Name })
	return shops, nil
}

func (r *inMemoryShopRepo) SetActive(ctx context.Context, id int64, active bool) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	shop, ok := r.s.shops[id]
	if !ok {
		return ErrNotFound
	}
	shop.Active = active
	r.s.shops[id] = shop
	return nil
}

func (r *inMemoryShopRepo) CreateBarber(ctx context.Context, barber *models.Barber) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	barber.ID = int64(len(r.s.barbers) + 1)
	barber.CreatedAt = time.Now().UTC()
	r.s.barbers = append(r.s.barbers, *barber)
	return nil
}

func (r *inMemoryShopRepo) ListBarbers(ctx context.Context, shopID int64) ([]models.Barber, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	barbers := []models.Barber{}
	for _, b := range r.s.barbers {
		if b.ShopID == shopID {
			barbers = append(barbers, b)
		}
	}
	sort.Slice(barbers, func(i, j int) bool { return barbers[i].Name < barbers[j].Name })
	return barbers, nil
}

// --- subscriptions ---

type inMemorySubscriptionRepo struct{ s *InMemoryStore }

func (r *inMemorySubscriptionRepo) CreateFromCheckout(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	for _, existing := range r.s.subscriptions {
		if existing.CheckoutSessionID == sub.CheckoutSessionID {
			stored := existing
			return &stored, false, nil
		}
	}
	if sub.IsLive() {
		for _, existing := range r.s.subscriptions {
			if existing.UserID == sub.UserID && existing.IsLive() {
				return nil, false, ErrLiveSubscriptionExists
			}
		}
	}

	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	r.s.subscriptions[sub.ID] = *sub
	stored := *sub
	return &stored, true, nil
}

func (r *inMemorySubscriptionRepo) find(match func(models.Subscription) bool) (*models.Subscription, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	var found *models.Subscription
	for _, sub := range r.s.subscriptions {
		if match(sub) && (found == nil || sub.CreatedAt.After(found.CreatedAt)) {
			s := sub
			found = &s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (r *inMemorySubscriptionRepo) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.find(func(s models.Subscription) bool { return s.ID == id })
}

func (r *inMemorySubscriptionRepo) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	return r.find(func(s models.Subscription) bool {
		return s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == stripeSubscriptionID
	})
}

func (r *inMemorySubscriptionRepo) GetLiveByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	return r.find(func(s models.Subscription) bool { return s.UserID == userID && s.IsLive() })
}

func (r *inMemorySubscriptionRepo) list(match func(models.Subscription) bool) []models.Subscription {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	subs := []models.Subscription{}
	for _, sub := range r.s.subscriptions {
		if match(sub) {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs
}

func (r *inMemorySubscriptionRepo) ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	return r.list(func(s models.Subscription) bool { return s.UserID == userID }), nil
}

func (r *inMemorySubscriptionRepo) ListByShop(ctx context.Context, shopID int64, status models.SubscriptionStatus) ([]models.Subscription, error) {
	return r.list(func(s models.Subscription) bool { return s.ShopID == shopID && s.Status == status }), nil
}

func (r *inMemorySubscriptionRepo) UpdateStatus(ctx context.Context, id string, from []models.SubscriptionStatus, upd models.StatusUpdate) (*models.Subscription, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	sub, ok := r.s.subscriptions[id]
	if !ok || !containsStatus(from, sub.Status) {
		return nil, ErrStatusMismatch
	}
	sub.Status = upd.Status
	sub.PausedUntil = upd.PausedUntil
	if upd.CancelledAt != nil {
		sub.CancelledAt = upd.CancelledAt
	}
	sub.UpdatedAt = time.Now().UTC()
	r.s.subscriptions[id] = sub
	return &sub, nil
}

func (r *inMemorySubscriptionRepo) ListPausedDue(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	return r.list(func(s models.Subscription) bool {
		return s.Status == models.SubscriptionPaused && s.PausedUntil != nil && !s.PausedUntil.After(now)
	}), nil
}

func (r *inMemorySubscriptionRepo) UpdatePeriodEnd(ctx context.Context, stripeSubscriptionID string, periodEnd time.Time) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	found := false
	for id, sub := range r.s.subscriptions {
		if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != stripeSubscriptionID {
			continue
		}
		found = true
		if sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.Before(periodEnd) {
			end := periodEnd
			sub.CurrentPeriodEnd = &end
			sub.UpdatedAt = time.Now().UTC()
			r.s.subscriptions[id] = sub
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func containsStatus(set []models.SubscriptionStatus, status models.SubscriptionStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

// --- bookings ---

type inMemoryBookingRepo struct{ s *InMemoryStore }

func (r *inMemoryBookingRepo) CreateForActiveSubscription(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	var sub *models.Subscription
	for _, candidate := range r.s.subscriptions {
		if candidate.UserID == booking.UserID && candidate.IsLive() {
			c := candidate
			sub = &c
			break
		}
	}
	if sub == nil || sub.Status != models.SubscriptionActive {
		return nil, ErrNoEligibleSubscription
	}

	periodStart := sub.PeriodStart()
	used := 0
	for _, b := range r.s.bookings {
		if b.SubscriptionID == sub.ID && b.Status != models.BookingCancelled && !b.CreatedAt.Before(periodStart) {
			used++
		}
	}
	if used >= sub.HaircutsPerMonth {
		return nil, ErrAllowanceExhausted
	}

	now := time.Now().UTC()
	booking.SubscriptionID = sub.ID
	booking.Status = models.BookingScheduled
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.s.bookings[booking.ID] = *booking

	stored := *booking
	return &stored, nil
}

func (r *inMemoryBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (r *inMemoryBookingRepo) list(match func(models.Booking) bool, less func(a, b models.Booking) bool) []models.Booking {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	bookings := []models.Booking{}
	for _, b := range r.s.bookings {
		if match(b) {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return less(bookings[i], bookings[j]) })
	return bookings
}

func (r *inMemoryBookingRepo) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return r.list(
		func(b models.Booking) bool { return b.UserID == userID },
		func(a, b models.Booking) bool {
			return a.AppointmentDate+a.AppointmentTime > b.AppointmentDate+b.AppointmentTime
		},
	), nil
}

func (r *inMemoryBookingRepo) ListByShop(ctx context.Context, shopID int64, limit int) ([]models.Booking, error) {
	bookings := r.list(
		func(b models.Booking) bool { return b.ShopID == shopID },
		func(a, b models.Booking) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
	if limit > 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (r *inMemoryBookingRepo) CountByShopAndStatus(ctx context.Context, shopID int64, statuses ...models.BookingStatus) (int, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	count := 0
	for _, b := range r.s.bookings {
		if b.ShopID != shopID {
			continue
		}
		for _, st := range statuses {
			if b.Status == st {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *inMemoryBookingRepo) ListByDateAndStatus(ctx context.Context, date string, status models.BookingStatus) ([]models.Booking, error) {
	return r.list(
		func(b models.Booking) bool { return b.AppointmentDate == date && b.Status == status },
		func(a, b models.Booking) bool { return a.AppointmentTime < b.AppointmentTime },
	), nil
}

func (r *inMemoryBookingRepo) CancelOwned(ctx context.Context, id, userID string) (*models.Booking, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.UserID != userID || b.Status != models.BookingScheduled {
		return nil, ErrStatusMismatch
	}
	b.Status = models.BookingCancelled
	b.UpdatedAt = time.Now().UTC()
	r.s.bookings[id] = b
	return &b, nil
}

func (r *inMemoryBookingRepo) SetStatusForShop(ctx context.Context, id string, shopID int64, status models.BookingStatus) (*models.Booking, error) {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	b, ok := r.s.bookings[id]
	if !ok || b.ShopID != shopID {
		return nil, ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	r.s.bookings[id] = b
	return &b, nil
}

// --- promo codes ---

type inMemoryPromoRepo struct{ s *InMemoryStore }

func (r *inMemoryPromoRepo) Upsert(ctx context.Context, promo *models.PromoCode) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	if existing, ok := r.s.promos[promo.Code]; ok {
		promo.UsesCount = existing.UsesCount
		promo.CreatedAt = existing.CreatedAt
	} else if promo.CreatedAt.IsZero() {
		promo.CreatedAt = time.Now().UTC()
	}
	r.s.promos[promo.Code] = *promo
	return nil
}

func (r *inMemoryPromoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	promo, ok := r.s.promos[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &promo, nil
}

func (r *inMemoryPromoRepo) Redeem(ctx context.Context, code string) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	promo, ok := r.s.promos[code]
	if !ok {
		return ErrNotFound
	}
	if promo.MaxUses != nil && promo.UsesCount >= *promo.MaxUses {
		return ErrLimitReached
	}
	promo.UsesCount++
	r.s.promos[code] = promo
	return nil
}

// --- reviews & admins ---

type inMemoryReviewRepo struct{ s *InMemoryStore }

func (r *inMemoryReviewRepo) Create(ctx context.Context, review *models.Review) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	for _, existing := range r.s.reviews {
		if existing.BookingID == review.BookingID {
			return ErrDuplicate
		}
	}
	review.CreatedAt = time.Now().UTC()
	r.s.reviews[review.ID] = *review
	return nil
}

func (r *inMemoryReviewRepo) ListByShop(ctx context.Context, shopID int64) ([]models.Review, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	reviews := []models.Review{}
	for _, rv := range r.s.reviews {
		if rv.ShopID == shopID {
			reviews = append(reviews, rv)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

type inMemoryAdminRepo struct{ s *InMemoryStore }

func (r *inMemoryAdminRepo) Upsert(ctx context.Context, admin *models.AdminAccount) error {
	r.s.mutex.Lock()
	defer r.s.mutex.Unlock()

	if existing, ok := r.s.admins[admin.Username]; ok {
		admin.CreatedAt = existing.CreatedAt
	} else {
		admin.CreatedAt = time.Now().UTC()
	}
	r.s.admins[admin.Username] = *admin
	return nil
}

func (r *inMemoryAdminRepo) GetByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	r.s.mutex.RLock()
	defer r.s.mutex.RUnlock()

	admin, ok := r.s.admins[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &admin, nil
}
