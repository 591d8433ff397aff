package notify

import "time"

type Kind string

const (
	KindTranslationCompleted Kind = "translation_completed"
	KindTranslationFailed    Kind = "translation_failed"
	KindCreditsLow           Kind = "credits_low"
	KindCreditsAdded         Kind = "credits_added"
)

type Notification struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Kind      Kind      `gorm:"type:varchar(32);not null" json:"kind"`
	Title     string    `gorm:"type:varchar(191);not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
