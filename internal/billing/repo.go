package billing

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Insert(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (*Payment, error) {
	var p Payment
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ClaimCreditsApplication flips credits_applied for exactly one caller.
// Returns true when this caller owns the ledger increment.
func (r *Repo) ClaimCreditsApplication(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("session_id = ? AND credits_applied = ?", sessionID, false).
		Update("credits_applied", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseCreditsApplication undoes a claim after a failed increment so the
// next delivery retries it.
func (r *Repo) ReleaseCreditsApplication(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Payment{}).
		Where("session_id = ?", sessionID).
		Update("credits_applied", false).Error
}

// FindAvailableOneOff looks up a completed, unconsumed one-off payment by
// billing reference for the advisory pre-check at intake.
func (r *Repo) FindAvailableOneOff(ctx context.Context, userID uint64, billingReference string) (*Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).
		Where("billing_reference = ? AND user_id = ? AND usage_type = ? AND status = ? AND consumed = ?",
			billingReference, userID, UsageOneOff, PaymentCompleted, false).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Consume atomically marks a one-off payment consumed and links it to a
// job. The consumed=false guard makes concurrent intakes referencing the
// same billing reference resolve to exactly one winner.
func (r *Repo) Consume(ctx context.Context, userID uint64, billingReference, jobID string) error {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("billing_reference = ? AND user_id = ? AND usage_type = ? AND status = ? AND consumed = ?",
			billingReference, userID, UsageOneOff, PaymentCompleted, false).
		Updates(map[string]any{
			"consumed": true,
			"job_id":   jobID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *Repo) History(ctx context.Context, userID uint64) ([]Payment, error) {
	var payments []Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
