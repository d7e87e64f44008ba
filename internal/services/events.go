package services

import (
	"time"

	"github.com/Dhoini/clipgo-booking/internal/models"
)

// SubscriptionEvent - данные событий subscription.*.
type SubscriptionEvent struct {
	SubscriptionID string                    `json:"subscription_id"`
	UserID         string                    `json:"user_id"`
	ShopID         int64                     `json:"shop_id"`
	PlanID         string                    `json:"plan_id"`
	Status         models.SubscriptionStatus `json:"status"`
	AmountCents    int64                     `json:"amount_cents"`
	PausedUntil    *time.Time                `json:"paused_until,omitempty"`
}

func newSubscriptionEvent(sub *models.Subscription) SubscriptionEvent {
	return SubscriptionEvent{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		ShopID:         sub.ShopID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		AmountCents:    sub.AmountCents,
		PausedUntil:    sub.PausedUntil,
	}
}

// BookingEvent - данные событий booking.*.
type BookingEvent struct {
	BookingID       string               `json:"booking_id"`
	UserID          string               `json:"user_id"`
	ShopID          int64                `json:"shop_id"`
	SubscriptionID  string               `json:"subscription_id"`
	AppointmentDate string               `json:"appointment_date"`
	AppointmentTime string               `json:"appointment_time"`
	Status          models.BookingStatus `json:"status"`
}

func newBookingEvent(b *models.Booking) BookingEvent {
	return BookingEvent{
		BookingID:       b.ID,
		UserID:          b.UserID,
		ShopID:          b.ShopID,
		SubscriptionID:  b.SubscriptionID,
		AppointmentDate: b.AppointmentDate,
		AppointmentTime: b.AppointmentTime,
		Status:          b.Status,
	}
}
