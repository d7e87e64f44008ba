package models

import "time"

// PromoCode - промокод со скидкой в процентах.
type PromoCode struct {
	Code            string     `db:"code" json:"code"`
	DiscountPercent int        `db:"discount_percent" json:"discount_percent"`
	Active          bool       `db:"active" json:"active"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxUses         *int       `db:"max_uses" json:"max_uses,omitempty"`
	UsesCount       int        `db:"uses_count" json:"uses_count"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// AdminAccount - учетная запись администратора барбершопа.
type AdminAccount struct {
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ShopID       int64     `db:"shop_id" json:"shop_id"`
	ShopName     string    `db:"shop_name" json:"shop_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
