package models

import "time"

type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`
	Username     string `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(128);not null" json:"-"`

	// Prepaid translation allowance. Mutated only through the billing
	// ledger's atomic increments/decrements.
	Credits int64 `gorm:"not null;default:0" json:"credits"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
