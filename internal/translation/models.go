package translation

import (
	"errors"
	"path"
	"strings"
	"time"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

type BillingMode string

const (
	BillingPlan   BillingMode = "plan"
	BillingOneOff BillingMode = "one_off"
)

type Formality string

const (
	FormalityDefault    Formality = "default"
	FormalityMore       Formality = "more"
	FormalityLess       Formality = "less"
	FormalityPreferMore Formality = "prefer_more"
	FormalityPreferLess Formality = "prefer_less"
)

func (f Formality) Valid() bool {
	switch f {
	case "", FormalityDefault, FormalityMore, FormalityLess, FormalityPreferMore, FormalityPreferLess:
		return true
	}
	return false
}

var (
	ErrTargetLangRequired       = errors.New("translation: target language required")
	ErrUnsupportedLanguage      = errors.New("translation: unsupported target language")
	ErrInvalidFormality         = errors.New("translation: invalid formality option")
	ErrInvalidBillingMode       = errors.New("translation: invalid billing mode")
	ErrBillingReferenceRequired = errors.New("translation: billing reference required for one-off jobs")
	ErrNotCancellable           = errors.New("translation: only pending jobs can be cancelled")
	ErrNotRetryable             = errors.New("translation: only failed jobs can be retried")
)

// Job is one request to translate a file into a target language.
// Status transitions: pending→processing→{completed|failed} by the worker,
// pending→cancelled and failed→pending by the owner. Rows are never
// deleted here; cleanup cascades from file deletion outside the core.
type Job struct {
	ID       string `gorm:"primaryKey;size:26" json:"id"` // ULID length
	UserID   uint64 `gorm:"index;not null" json:"-"`
	FileID   uint64 `gorm:"index;not null" json:"file_id"`
	Filename string `gorm:"type:varchar(255);not null" json:"filename"`
	FilePath string `gorm:"type:varchar(512);not null" json:"-"`

	SourceLang     string    `gorm:"type:varchar(16);not null;default:'auto'" json:"source_language"`
	TargetLang     string    `gorm:"type:varchar(16);not null" json:"target_language"`
	TargetLangName string    `gorm:"type:varchar(64)" json:"target_language_name"`
	Formality      Formality `gorm:"type:varchar(16)" json:"formality,omitempty"`

	BillingMode BillingMode `gorm:"type:varchar(16);not null" json:"billing_mode"`
	PaymentID   *uint64     `gorm:"index" json:"payment_id,omitempty"`

	Status         JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Error          *string   `gorm:"type:text" json:"error,omitempty"`
	TranslatedPath *string   `gorm:"type:varchar(512)" json:"translated_path,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (Job) TableName() string { return "translation_jobs" }

// JobMessage is the queue payload, carrying everything the worker needs
// without a second lookup round-trip on the hot path.
type JobMessage struct {
	JobID       string      `json:"job_id"`
	UserID      uint64      `json:"user_id"`
	FileID      uint64      `json:"file_id"`
	Filename    string      `json:"filename"`
	FilePath    string      `json:"file_path"`
	SourceLang  string      `json:"source_lang"`
	TargetLang  string      `json:"target_lang"`
	Formality   Formality   `json:"formality,omitempty"`
	BillingMode BillingMode `json:"billing_mode"`
	PaymentID   *uint64     `json:"payment_id,omitempty"`
}

// DerivedPath inserts the target language code before the extension:
// docs/report.pdf + "fr" -> docs/report_fr.pdf.
func DerivedPath(filePath, targetLang string) string {
	ext := path.Ext(filePath)
	if ext == "" {
		return filePath + "_" + targetLang
	}
	return strings.TrimSuffix(filePath, ext) + "_" + targetLang + ext
}

var documentExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".pptx": true,
	".xlsx": true,
	".html": true,
	".htm":  true,
}

// isDocument picks the handling path: structured formats go through the
// document endpoint, everything else is attempted as plain text.
func isDocument(filename string) bool {
	return documentExtensions[strings.ToLower(path.Ext(filename))]
}
