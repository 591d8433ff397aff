package billing

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CreditAdder is the slice of the ledger the reconciler needs.
type CreditAdder interface {
	AddCredits(ctx context.Context, userID uint64, amount int64) error
}

// Reconciler turns external checkout-completed events into at most one
// payment row and one ledger increment per session id, no matter how many
// times the event arrives or through which channel (webhook vs confirm).
type Reconciler struct {
	repo   *Repo
	ledger CreditAdder
	log    zerolog.Logger
}

func NewReconciler(repo *Repo, ledger CreditAdder, log zerolog.Logger) *Reconciler {
	return &Reconciler{repo: repo, ledger: ledger, log: log}
}

// Process applies a checkout event. The returned bool is false when the
// session had already been processed (a success, not an error).
func (rc *Reconciler) Process(ctx context.Context, ev CheckoutEvent) (bool, error) {
	meta := ev.Metadata
	userID, err := strconv.ParseUint(meta["userId"], 10, 64)
	if err != nil || userID == 0 {
		rc.log.Warn().Str("session_id", ev.SessionID).Msg("checkout session missing userId metadata")
		return false, nil
	}

	usage := UsageType(meta["usageType"])
	if usage == "" {
		usage = UsagePlan
	}

	rec := &Payment{
		UserID:        userID,
		SessionID:     ev.SessionID,
		PaymentIntent: ev.PaymentIntent,
		Amount:        ev.AmountTotal,
		Currency:      ev.Currency,
		UsageType:     usage,
		Status:        mapPaymentStatus(ev.PaymentStatus),
	}

	switch usage {
	case UsageOneOff:
		ref := meta["billingReference"]
		if ref == "" {
			return false, ErrMissingBillingReference
		}
		rec.BillingReference = &ref
		if basis := meta["pricingBasis"]; basis != "" {
			rec.PricingBasis = &basis
		}
		// nothing to apply to the ledger for one-off purchases
		rec.CreditsApplied = true
	default:
		if plan := meta["plan"]; plan != "" {
			rec.Plan = &plan
		}
		if n, err := strconv.ParseInt(meta["credits"], 10, 64); err == nil {
			rec.CreditsAdded = n
		}
	}

	if err := rc.repo.Insert(ctx, rec); err != nil {
		existing, getErr := rc.repo.GetBySessionID(ctx, ev.SessionID)
		if getErr != nil {
			if errors.Is(getErr, gorm.ErrRecordNotFound) {
				// not a duplicate, the insert genuinely failed
				return false, err
			}
			return false, getErr
		}

		// Already recorded. A previous delivery may have crashed between
		// the insert and the increment; re-attempt only the increment.
		if err := rc.applyCredits(ctx, existing); err != nil {
			return false, err
		}
		rc.log.Info().Str("session_id", ev.SessionID).Msg("checkout session already processed, skipping")
		return false, nil
	}

	if err := rc.applyCredits(ctx, rec); err != nil {
		// propagate so the delivery channel retries the whole event; the
		// row already exists and credits_applied stays false
		return false, err
	}

	return true, nil
}

// applyCredits performs the one-time ledger increment for a plan payment.
// The credits_applied claim is what makes concurrent deliveries of the
// same session safe: exactly one caller wins the flag flip.
func (rc *Reconciler) applyCredits(ctx context.Context, p *Payment) error {
	if p.UsageType != UsagePlan || p.CreditsApplied {
		return nil
	}
	if p.CreditsAdded <= 0 {
		rc.log.Warn().Str("session_id", p.SessionID).Msg("plan checkout has no credits to add")
		return nil
	}

	claimed, err := rc.repo.ClaimCreditsApplication(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := rc.ledger.AddCredits(ctx, p.UserID, p.CreditsAdded); err != nil {
		_ = rc.repo.ReleaseCreditsApplication(ctx, p.SessionID)
		return err
	}

	rc.log.Info().
		Str("session_id", p.SessionID).
		Uint64("user_id", p.UserID).
		Int64("credits", p.CreditsAdded).
		Msg("credits added for plan checkout")
	return nil
}
