package models

import "time"

// Shop - барбершоп. Не удаляется, только деактивируется.
type Shop struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Barber - мастер, работающий в барбершопе.
type Barber struct {
	ID              int64     `db:"id" json:"id"`
	ShopID          int64     `db:"shop_id" json:"shop_id"`
	Name            string    `db:"name" json:"name"`
	Bio             string    `db:"bio" json:"bio"`
	YearsExperience int       `db:"years_experience" json:"years_experience"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Review - отзыв о завершенной записи.
type Review struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ShopID    int64     `db:"shop_id" json:"shop_id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
