package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/email"
	"github.com/lingodoc/platform/internal/models"
)

// Service records notifications and fans each one out to the owner's
// email address. Both sides are best-effort: a storage or SMTP failure
// is logged and swallowed, never surfaced to the caller.
type Service struct {
	db   *gorm.DB
	smtp email.SMTPConfig
	log  zerolog.Logger
}

func NewService(db *gorm.DB, smtp email.SMTPConfig, log zerolog.Logger) *Service {
	return &Service{db: db, smtp: smtp, log: log}
}

func (s *Service) emit(ctx context.Context, userID uint64, kind Kind, title, body string) {
	n := Notification{UserID: userID, Kind: kind, Title: title, Body: body}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.log.Error().Uint64("user_id", userID).Str("kind", string(kind)).Err(err).
			Msg("failed to record notification")
		return
	}

	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		s.log.Warn().Uint64("user_id", userID).Err(err).Msg("notification owner not found, skipping email")
		return
	}

	go func(to, subject, text string) {
		if err := email.SendText(s.smtp, to, subject, text); err != nil {
			s.log.Warn().Str("to", to).Str("kind", string(kind)).Err(err).Msg("notification email failed")
		}
	}(u.Email, title, body)
}

func (s *Service) TranslationCompleted(ctx context.Context, userID uint64, jobID, filename, targetLang, translatedPath string) {
	title := "Your translation is ready"
	body := fmt.Sprintf(
		"Good news! %s has been translated to %s.\n\nJob: %s\nDownload: %s\n",
		filename, targetLang, jobID, translatedPath,
	)
	s.emit(ctx, userID, KindTranslationCompleted, title, body)
}

func (s *Service) TranslationFailed(ctx context.Context, userID uint64, jobID, filename, errMsg string) {
	title := "Translation failed"
	body := fmt.Sprintf(
		"We could not translate %s.\n\nJob: %s\nReason: %s\n\nYou can retry the job from your dashboard; no credit was charged.\n",
		filename, jobID, errMsg,
	)
	s.emit(ctx, userID, KindTranslationFailed, title, body)
}

func (s *Service) CreditsLow(ctx context.Context, userID uint64, remaining int64) {
	title := "You are running low on credits"
	body := fmt.Sprintf(
		"Your balance is down to %d credit(s). Top up your plan to keep translating without interruption.\n",
		remaining,
	)
	s.emit(ctx, userID, KindCreditsLow, title, body)
}

func (s *Service) CreditsAdded(ctx context.Context, userID uint64, credits int64, plan string) {
	title := "Credits added to your account"
	body := fmt.Sprintf("Payment received: %d credit(s) from the %s plan are now available.\n", credits, plan)
	s.emit(ctx, userID, KindCreditsAdded, title, body)
}

func (s *Service) List(ctx context.Context, userID uint64, unreadOnly bool, limit, offset int) ([]Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []Notification
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id uint64) error {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}
