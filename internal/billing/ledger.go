package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/models"
)

// Ledger owns the credit balance on the user row. All mutations are single
// atomic UPDATE statements, never read-modify-write, so concurrent spends
// for the same user cannot lose updates.
type Ledger struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewLedger(db *gorm.DB, log zerolog.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

func (l *Ledger) AddCredits(ctx context.Context, userID uint64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("billing: negative credit amount %d", amount)
	}
	if amount == 0 {
		l.log.Warn().Uint64("user_id", userID).Msg("add credits called with zero amount")
		return nil
	}

	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("billing: user %d not found", userID)
	}
	return nil
}

// SpendCredit decrements one credit and returns the remaining balance.
// The floor guard keeps the balance non-negative; the advisory check at
// intake is deliberately not re-run here (reserve-then-spend-on-success).
func (l *Ledger) SpendCredit(ctx context.Context, userID uint64) (int64, error) {
	res := l.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credits >= 1", userID).
		Update("credits", gorm.Expr("credits - 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrInsufficientBalance
	}
	return l.Credits(ctx, userID)
}

// Credits reads the current balance. The read is advisory: a positive
// result at intake does not reserve anything.
func (l *Ledger) Credits(ctx context.Context, userID uint64) (int64, error) {
	var u models.User
	if err := l.db.WithContext(ctx).Select("credits").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("billing: user %d not found", userID)
		}
		return 0, err
	}
	return u.Credits, nil
}
