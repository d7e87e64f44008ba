package services

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
	"github.com/Dhoini/clipgo-booking/internal/repository"
	"github.com/Dhoini/clipgo-booking/pkg/logger"
)

const reminderMarkTTL = 48 * time.Hour

// ReminderReport - итог рассылки напоминаний.
type ReminderReport struct {
	Date       string `json:"date"`
	Candidates int    `json:"candidates"`
	Sent       int    `json:"sent"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// ReminderService рассылает SMS-напоминания о завтрашних записях.
type ReminderService struct {
	bookings repository.BookingRepository
	shops    repository.ShopRepository
	notifier Notifier
	marker   OnceMarker // может быть nil, тогда повторный запуск отправит повторно
	loc      *time.Location
	log      *logger.Logger
}

func NewReminderService(
	bookings repository.BookingRepository,
	shops repository.ShopRepository,
	notifier Notifier,
	marker OnceMarker,
	loc *time.Location,
	log *logger.Logger,
) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		bookings: bookings,
		shops:    shops,
		notifier: notifier,
		marker:   marker,
		loc:      loc,
		log:      log,
	}
}

// SendTomorrowReminders отправляет напоминания по записям на следующий день.
// Каждая запись получает не больше одного напоминания.
func (s *ReminderService) SendTomorrowReminders(ctx context.Context, now time.Time) (*ReminderReport, error) {
	tomorrow := now.In(s.loc).AddDate(0, 0, 1).Format(dateLayout)
	report := &ReminderReport{Date: tomorrow}

	bookings, err := s.bookings.ListByDateAndStatus(ctx, tomorrow, models.BookingScheduled)
	if err != nil {
		s.log.Errorw("Failed to list bookings for reminders", "date", tomorrow, "error", err)
		return nil, err
	}

	shops := make(map[int64]*models.Shop)
	for i := range bookings {
		b := &bookings[i]
		if b.CustomerPhone == nil || *b.CustomerPhone == "" {
			continue
		}
		report.Candidates++

		shop, ok := shops[b.ShopID]
		if !ok {
			shop, err = s.shops.GetByID(ctx, b.ShopID)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					s.log.Errorw("Failed to load shop for reminder", "shopID", b.ShopID, "error", err)
				}
				report.Failed++
				continue
			}
			shops[b.ShopID] = shop
		}

		key := "reminder_sent:" + b.ID
		if s.marker != nil {
			first, err := s.marker.MarkOnce(ctx, key, reminderMarkTTL)
			if err != nil {
				s.log.Warnw("Reminder dedupe unavailable, skipping booking", "bookingID", b.ID, "error", err)
				report.Failed++
				continue
			}
			if !first {
				report.Skipped++
				continue
			}
		}

		if err := s.notifier.SendReminder(ctx, b, shop); err != nil {
			s.log.Errorw("Failed to send reminder", "bookingID", b.ID, "error", err)
			report.Failed++
			if s.marker != nil {
				if err := s.marker.Unmark(ctx, key); err != nil {
					s.log.Warnw("Failed to release reminder mark", "bookingID", b.ID, "error", err)
				}
			}
			continue
		}
		report.Sent++
	}

	s.log.Infow("Reminders processed",
		"date", tomorrow, "candidates", report.Candidates, "sent", report.Sent,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
