package models

import "time"

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid проверяет, что статус входит в допустимый набор.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingScheduled, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking - запись клиента на стрижку.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	UserID          string        `db:"user_id" json:"user_id"`
	ShopID          int64         `db:"shop_id" json:"shop_id"`
	SubscriptionID  string        `db:"subscription_id" json:"subscription_id"`
	AppointmentDate string        `db:"appointment_date" json:"appointment_date"` // YYYY-MM-DD
	AppointmentTime string        `db:"appointment_time" json:"appointment_time"` // HH:MM
	BarberName      *string       `db:"barber_name" json:"barber_name,omitempty"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	Status          BookingStatus `db:"status" json:"status"`
	CustomerEmail   string        `db:"customer_email" json:"customer_email"`
	CustomerPhone   *string       `db:"customer_phone" json:"customer_phone,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}
