package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/domain"
	"github.com/Dhoini/clipgo-booking/internal/kafka"
	"github.com/Dhoini/clipgo-booking/internal/metrics"
	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/pkg/logger"

	"github.com/google/uuid"
)

const notifyTimeout = 30 * time.Second

// CreateBookingInput - параметры новой записи.
type CreateBookingInput struct {
	UserID     string
	Email      string
	ShopID     int64
	Date       string
	Time       string
	BarberName *string
	Notes      *string
	Phone      *string
}

// BookingService управляет записями на стрижку.
type BookingService struct {
	bookings repository.BookingRepository
	shops    repository.ShopRepository
	notifier Notifier
	producer kafka.Producer // может быть nil
	metrics  metrics.BookingMetrics
	loc      *time.Location
	log      *logger.Logger
	now      func() time.Time
}

// NewBookingService создает сервис записей. loc - часовой пояс барбершопов.
func NewBookingService(
	bookings repository.BookingRepository,
	shops repository.ShopRepository,
	notifier Notifier,
	producer kafka.Producer,
	m metrics.BookingMetrics,
	loc *time.Location,
	log *logger.Logger,
) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		bookings: bookings,
		shops:    shops,
		notifier: notifier,
		producer: producer,
		metrics:  m,
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

// Today возвращает текущую дату в часовом поясе барбершопов.
func (s *BookingService) Today() time.Time {
	return s.now().In(s.loc)
}

// Create создает запись, если у пользователя есть активная подписка с неизрасходованным лимитом.
// Проверка подписки и вставка выполняются в одной транзакции.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if err := s.validateSlot(in.Date, in.Time); err != nil {
		s.metrics.IncBookingRejected("invalid_slot")
		return nil, err
	}

	shop, err := s.shops.GetByID(ctx, in.ShopID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, err
	}
	if !shop.Active {
		return nil, domain.ErrShopNotFound
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		ShopID:          shop.ID,
		AppointmentDate: in.Date,
		AppointmentTime: in.Time,
		BarberName:      trimmedOrNil(in.BarberName),
		Notes:           trimmedOrNil(in.Notes),
		CustomerEmail:   in.Email,
		CustomerPhone:   trimmedOrNil(in.Phone),
	}

	stored, err := s.bookings.CreateForActiveSubscription(ctx, booking)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoEligibleSubscription):
			s.metrics.IncBookingRejected("no_active_subscription")
			return nil, domain.ErrNoActiveSubscription
		case errors.Is(err, repository.ErrAllowanceExhausted):
			s.metrics.IncBookingRejected("allowance_exhausted")
			return nil, domain.ErrAllowanceExhausted
		default:
			s.log.Errorw("Failed to create booking", "userID", in.UserID, "shopID", in.ShopID, "error", err)
			return nil, err
		}
	}

	s.metrics.IncBookingCreated(strconv.FormatInt(shop.ID, 10))
	s.log.Infow("Booking created",
		"bookingID", stored.ID, "userID", stored.UserID, "shopID", shop.ID,
		"subscriptionID", stored.SubscriptionID, "date", stored.AppointmentDate, "time", stored.AppointmentTime)

	s.sendConfirmationAsync(ctx, stored, shop)
	publishAsync(ctx, s.producer, s.log, kafka.TopicBookingCreated, stored.ID, newBookingEvent(stored))
	return stored, nil
}

func (s *BookingService) sendConfirmationAsync(ctx context.Context, booking *models.Booking, shop *models.Shop) {
	if s.notifier == nil {
		return
	}
	go func() {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.SendBookingConfirmation(notifyCtx, booking, shop); err != nil {
			s.log.Errorw("Failed to send booking confirmation", "bookingID", booking.ID, "error", err)
		}
	}()
}

func (s *BookingService) validateSlot(date, t string) error {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return domain.ErrInvalidSlot
	}
	today := s.Today()
	todayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	if day.Before(todayStart) {
		return domain.ErrInvalidSlot
	}
	if !IsValidSlotTime(t) {
		return domain.ErrInvalidSlot
	}
	return nil
}

// Cancel отменяет запись пользователя. Отменить можно только запись в статусе scheduled.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	if !validUUID(bookingID) {
		return nil, domain.ErrBookingNotFound
	}

	cancelled, err := s.bookings.CancelOwned(ctx, bookingID, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrStatusMismatch) {
			return nil, err
		}
		existing, getErr := s.bookings.GetByID(ctx, bookingID)
		if getErr != nil || existing.UserID != userID {
			return nil, domain.ErrBookingNotFound
		}
		return nil, domain.ErrInvalidTransition
	}

	s.log.Infow("Booking cancelled", "bookingID", bookingID, "userID", userID)
	publishAsync(ctx, s.producer, s.log, kafka.TopicBookingCancelled, cancelled.ID, newBookingEvent(cancelled))
	return cancelled, nil
}

// SetStatus меняет статус записи барбершопа shopID.
func (s *BookingService) SetStatus(ctx context.Context, bookingID string, shopID int64, status models.BookingStatus) (*models.Booking, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if !validUUID(bookingID) {
		return nil, domain.ErrBookingNotFound
	}

	updated, err := s.bookings.SetStatusForShop(ctx, bookingID, shopID, status)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}

	s.log.Infow("Booking status updated", "bookingID", bookingID, "shopID", shopID, "status", status)
	publishAsync(ctx, s.producer, s.log, kafka.TopicBookingStatusChanged, updated.ID, newBookingEvent(updated))
	return updated, nil
}

// ListForUser возвращает записи пользователя.
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// ListForShop возвращает последние записи барбершопа.
func (s *BookingService) ListForShop(ctx context.Context, shopID int64, limit int) ([]models.Booking, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.bookings.ListByShop(ctx, shopID, limit)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
