package models

import "time"

type File struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint64 `gorm:"index;not null" json:"-"`
	Filename string `gorm:"type:varchar(255);not null" json:"filename"`
	Path     string `gorm:"type:varchar(512);not null" json:"path"`
	Size     int64  `gorm:"not null" json:"size"`
	MimeType string `gorm:"type:varchar(128)" json:"mime_type"`

	// Optional counts supplied at registration, used for one-off quotes.
	WordCount int64 `json:"word_count"`
	PageCount int64 `json:"page_count"`

	Status    string    `gorm:"type:varchar(16);default:'uploaded'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (File) TableName() string { return "files" }
