package billing

import (
	"errors"
	"time"
)

type UsageType string

const (
	UsagePlan   UsageType = "plan"
	UsageOneOff UsageType = "one_off"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

var (
	ErrInsufficientBalance     = errors.New("billing: insufficient credit balance")
	ErrPaymentNotFound         = errors.New("billing: no matching one-off payment")
	ErrMissingBillingReference = errors.New("billing: one-off payment missing billing reference")
)

// Payment is one processed checkout session. SessionID is the external
// checkout session id and doubles as the idempotency key: the unique index
// is what makes duplicate webhook deliveries harmless.
type Payment struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64        `gorm:"index;not null" json:"-"`
	SessionID     string        `gorm:"type:varchar(191);uniqueIndex;not null" json:"session_id"`
	PaymentIntent string        `gorm:"type:varchar(191)" json:"-"`
	Amount        int64         `json:"amount"`
	Currency      string        `gorm:"type:varchar(8)" json:"currency"`
	UsageType     UsageType     `gorm:"type:varchar(16);not null" json:"usage_type"`
	Status        PaymentStatus `gorm:"type:varchar(16);not null" json:"status"`

	// plan purchases
	Plan         *string `gorm:"type:varchar(32)" json:"plan,omitempty"`
	CreditsAdded int64   `json:"credits_added"`
	// CreditsApplied tracks the ledger increment separately from row
	// existence, so a crash between insert and increment heals on the
	// next delivery instead of skipping the credits forever.
	CreditsApplied bool `gorm:"not null;default:false" json:"-"`

	// one-off purchases
	BillingReference *string `gorm:"type:varchar(64);index" json:"billing_reference,omitempty"`
	PricingBasis     *string `gorm:"type:text" json:"-"`
	Consumed         bool    `gorm:"not null;default:false" json:"consumed"`
	JobID            *string `gorm:"type:varchar(26)" json:"job_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// CheckoutEvent is the processor-agnostic view of a checkout.session
// event, extracted from the webhook payload or a retrieved session.
type CheckoutEvent struct {
	SessionID     string
	PaymentIntent string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// mapPaymentStatus mirrors the processor's payment_status values onto ours.
func mapPaymentStatus(s string) PaymentStatus {
	switch s {
	case "paid", "no_payment_required":
		return PaymentCompleted
	case "unpaid":
		return PaymentPending
	default:
		return PaymentCompleted
	}
}

type Plan struct {
	Name    string `json:"name"`
	PriceID string `json:"-"`
	Credits int64  `json:"credits"`
	Amount  int64  `json:"amount"`
}

// Catalog returns the purchasable credit plans keyed by name.
func Catalog(priceStarter, pricePro, priceEnterprise string) map[string]Plan {
	return map[string]Plan{
		"starter":    {Name: "starter", PriceID: priceStarter, Credits: 10, Amount: 999},
		"pro":        {Name: "pro", PriceID: pricePro, Credits: 50, Amount: 3999},
		"enterprise": {Name: "enterprise", PriceID: priceEnterprise, Credits: 200, Amount: 9999},
	}
}
