package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/config"
	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	username string
	shopID   int64
	err      error
}

func (s *stubTokens) IssueAdminToken(username string, shopID int64) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.username, s.shopID = username, shopID
	return "token-" + username, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), nil
}

func newAdminFixture(t *testing.T) (*testEnv, *AdminService, *stubTokens) {
	t.Helper()
	env := newTestEnv(t)
	tokens := &stubTokens{}
	admin := NewAdminService(env.store.Admins(), env.store.Shops(), env.store.Subscriptions(),
		env.store.Bookings(), env.store.Promos(), tokens, testLogger())

	seed := config.Seed{
		Shops: []config.ShopSeed{{ID: 3, Name: "Bondi Beach Cuts", Address: "12 Campbell Pde"}},
		Admins: []config.AdminSeed{
			{Username: "Sydney", Password: "sydney123", ShopID: 1, ShopName: "Sydney Cuts"},
			{Username: "bondi", Password: "bondi123", ShopID: 3, ShopName: "Bondi Beach Cuts"},
		},
		PromoCodes: []config.PromoSeed{{Code: "welcome10", DiscountPercent: 10, Active: true}},
	}
	require.NoError(t, admin.Seed(context.Background(), seed))
	return env, admin, tokens
}

func TestAdminService_Seed(t *testing.T) {
	env, admin, _ := newAdminFixture(t)
	ctx := context.Background()

	shop, err := env.store.Shops().GetByID(ctx, 3)
	require.NoError(t, err)
	assert.True(t, shop.Active)

	promo, err := env.promos.Validate(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, 10, promo.DiscountPercent)

	// повторный сид не дублирует и не ломает данные
	require.NoError(t, admin.Seed(ctx, config.Seed{Shops: []config.ShopSeed{{ID: 3, Name: "Bondi Beach Cuts"}}}))
	active, err := env.store.Shops().ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestAdminService_Login(t *testing.T) {
	_, admin, tokens := newAdminFixture(t)
	ctx := context.Background()

	res, err := admin.Login(ctx, "  SYDNEY ", "sydney123")
	require.NoError(t, err)
	assert.Equal(t, "token-sydney", res.Token)
	assert.Equal(t, int64(1), res.ShopID)
	assert.Equal(t, "Sydney Cuts", res.ShopName)
	assert.Equal(t, "sydney", tokens.username)

	_, err = admin.Login(ctx, "sydney", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = admin.Login(ctx, "nobody", "sydney123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	tokens.err = errors.New("signing failed")
	_, err = admin.Login(ctx, "bondi", "bondi123")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAdminService_Dashboard(t *testing.T) {
	env, admin, _ := newAdminFixture(t)
	ctx := context.Background()

	env.subscribe(t, "u1", "premium")
	env.subscribe(t, "u2", "basic")
	paused := env.subscribe(t, "u3", "pro")
	_, err := env.subs.Pause(ctx, "u3", paused.ID)
	require.NoError(t, err)

	_, err = env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	dash, err := admin.Dashboard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Sydney Cuts", dash.Shop.Name)
	assert.Equal(t, 2, dash.TotalSubscribers)
	assert.Equal(t, 1, dash.ActiveBookings)
	assert.Equal(t, 101.20, dash.MonthlyRevenue)
	assert.Equal(t, 80.96, dash.ShopPayout)
	require.Len(t, dash.Plans, 2)
	assert.Equal(t, PlanStats{PlanID: "basic", PlanName: "1 Haircut/Month", Subscribers: 1, Revenue: 35.20}, dash.Plans[0])
	assert.Equal(t, PlanStats{PlanID: "premium", PlanName: "2 Haircuts/Month", Subscribers: 1, Revenue: 66.00}, dash.Plans[1])
	assert.Len(t, dash.RecentBookings, 1)

	empty, err := admin.Dashboard(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, empty.MonthlyRevenue)
	assert.NotNil(t, empty.RecentBookings)

	_, err = admin.Dashboard(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrShopNotFound)
}

func TestAdminService_SetShopActive(t *testing.T) {
	env, admin, _ := newAdminFixture(t)
	ctx := context.Background()

	shop, err := admin.SetShopActive(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, shop.Active)

	shops := NewShopService(env.store.Shops(), env.store.Reviews(), testLogger())
	_, err = shops.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrShopNotFound)

	_, err = admin.SetShopActive(ctx, 99, true)
	assert.ErrorIs(t, err, domain.ErrShopNotFound)
}

func TestAdminService_AddBarber(t *testing.T) {
	env, admin, _ := newAdminFixture(t)
	ctx := context.Background()

	barber, err := admin.AddBarber(ctx, 1, AddBarberInput{Name: " Marco ", Bio: "Fades", YearsExperience: 7})
	require.NoError(t, err)
	assert.Equal(t, "Marco", barber.Name)
	assert.Equal(t, int64(1), barber.ShopID)

	list, err := env.store.Shops().ListBarbers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Barber{*barber}, list)

	_, err = admin.AddBarber(ctx, 99, AddBarberInput{Name: "Ghost"})
	assert.ErrorIs(t, err, domain.ErrShopNotFound)
}
