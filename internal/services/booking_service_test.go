package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/kafka"
	"github.com/Dhoini/clipgo-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tomorrow() string {
	return time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

func bookingInput(userID string) CreateBookingInput {
	return CreateBookingInput{
		UserID: userID,
		Email:  userID + "@example.com",
		ShopID: 1,
		Date:   tomorrow(),
		Time:   "10:30",
		Phone:  strPtr("+61400000000"),
	}
}

func TestCreateBooking_NoSubscription(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.bookings.Create(context.Background(), bookingInput("u1"))
	assert.ErrorIs(t, err, domain.ErrNoActiveSubscription)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBooking_Success(t *testing.T) {
	env := newTestEnv(t)
	sub := env.subscribe(t, "u1", "premium")

	in := bookingInput("u1")
	in.BarberName = strPtr("  Marco ")
	in.Notes = strPtr("   ")
	booking, err := env.bookings.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, models.BookingScheduled, booking.Status)
	assert.Equal(t, sub.ID, booking.SubscriptionID)
	assert.Equal(t, "10:30", booking.AppointmentTime)
	require.NotNil(t, booking.BarberName)
	assert.Equal(t, "Marco", *booking.BarberName)
	assert.Nil(t, booking.Notes)

	assert.Eventually(t, func() bool { return env.notifier.confirmationCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return env.producer.has(kafka.TopicBookingCreated) }, time.Second, 10*time.Millisecond)
}

func TestCreateBooking_PausedSubscriptionRejected(t *testing.T) {
	env := newTestEnv(t)
	sub := env.subscribe(t, "u1", "basic")
	_, err := env.subs.Pause(context.Background(), "u1", sub.ID)
	require.NoError(t, err)

	_, err = env.bookings.Create(context.Background(), bookingInput("u1"))
	assert.ErrorIs(t, err, domain.ErrNoActiveSubscription)
}

func TestCreateBooking_AllowanceExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "u1", "premium")

	first, err := env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)
	_, err = env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	_, err = env.bookings.Create(ctx, bookingInput("u1"))
	assert.ErrorIs(t, err, domain.ErrAllowanceExhausted)

	// отмененная запись возвращает стрижку в лимит
	_, err = env.bookings.Cancel(ctx, first.ID, "u1")
	require.NoError(t, err)
	_, err = env.bookings.Create(ctx, bookingInput("u1"))
	assert.NoError(t, err)
}

func TestCreateBooking_InvalidSlot(t *testing.T) {
	env := newTestEnv(t)
	env.subscribe(t, "u1", "pro")
	ctx := context.Background()

	cases := map[string]func(in *CreateBookingInput){
		"past date":      func(in *CreateBookingInput) { in.Date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02") },
		"bad date":       func(in *CreateBookingInput) { in.Date = "14/03/2026" },
		"off grid time":  func(in *CreateBookingInput) { in.Time = "10:15" },
		"after closing":  func(in *CreateBookingInput) { in.Time = "17:00" },
		"malformed time": func(in *CreateBookingInput) { in.Time = "9:00" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := bookingInput("u1")
			mutate(&in)
			_, err := env.bookings.Create(ctx, in)
			assert.ErrorIs(t, err, domain.ErrInvalidSlot)
		})
	}
}

func TestCreateBooking_InactiveShop(t *testing.T) {
	env := newTestEnv(t)
	env.subscribe(t, "u1", "basic")

	in := bookingInput("u1")
	in.ShopID = 2
	_, err := env.bookings.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrShopNotFound)
}

func TestCreateBooking_ConcurrentCancelNeverLeavesBookingOnCancelledSubscription(t *testing.T) {
	for i := 0; i < 20; i++ {
		env := newTestEnv(t)
		ctx := context.Background()
		sub := env.subscribe(t, "u1", "pro")

		var wg sync.WaitGroup
		var booking *models.Booking
		var bookErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			booking, bookErr = env.bookings.Create(ctx, bookingInput("u1"))
		}()
		go func() {
			defer wg.Done()
			_, err := env.subs.Cancel(ctx, "u1", sub.ID)
			assert.NoError(t, err)
		}()
		wg.Wait()

		stored, err := env.store.Subscriptions().GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionCancelled, stored.Status)

		userBookings, err := env.bookings.ListForUser(ctx, "u1")
		require.NoError(t, err)
		if bookErr != nil {
			// проверка в транзакции увидела отмененную подписку
			assert.ErrorIs(t, bookErr, domain.ErrNoActiveSubscription)
			assert.Empty(t, userBookings)
			continue
		}
		require.Len(t, userBookings, 1)
		assert.Equal(t, booking.ID, userBookings[0].ID)
		assert.Equal(t, sub.ID, userBookings[0].SubscriptionID)
	}
}

func TestCancelBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "u1", "pro")

	booking, err := env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	_, err = env.bookings.Cancel(ctx, booking.ID, "u2")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	cancelled, err := env.bookings.Cancel(ctx, booking.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	_, err = env.bookings.Cancel(ctx, booking.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.bookings.Cancel(ctx, "nope", "u1")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSetStatus_ScopedToShop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "u1", "pro")

	booking, err := env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	_, err = env.bookings.SetStatus(ctx, booking.ID, 3, models.BookingConfirmed)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = env.bookings.SetStatus(ctx, booking.ID, 1, models.BookingStatus("done"))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	updated, err := env.bookings.SetStatus(ctx, booking.ID, 1, models.BookingCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, updated.Status)

	list, err := env.bookings.ListForShop(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.BookingCompleted, list[0].Status)
}

func TestListForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "u1", "pro")

	_, err := env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	mine, err := env.bookings.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := env.bookings.ListForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.subscribe(t, "u1", "pro")
	reviews := NewReviewService(env.store.Reviews(), env.store.Bookings(), testLogger())

	booking, err := env.bookings.Create(ctx, bookingInput("u1"))
	require.NoError(t, err)

	_, err = reviews.Create(ctx, "u1", booking.ID, 5, "great")
	assert.ErrorIs(t, err, domain.ErrReviewNotAllowed)

	_, err = env.bookings.SetStatus(ctx, booking.ID, 1, models.BookingCompleted)
	require.NoError(t, err)

	_, err = reviews.Create(ctx, "u1", booking.ID, 6, "")
	var verrs domain.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs.Map(), "rating")

	_, err = reviews.Create(ctx, "u2", booking.ID, 5, "not mine")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	review, err := reviews.Create(ctx, "u1", booking.ID, 5, " great fade ")
	require.NoError(t, err)
	assert.Equal(t, "great fade", review.Comment)
	assert.Equal(t, int64(1), review.ShopID)

	_, err = reviews.Create(ctx, "u1", booking.ID, 4, "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyReviewed)

	shops := NewShopService(env.store.Shops(), env.store.Reviews(), testLogger())
	list, err := shops.ListReviews(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
