package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/pricing"
)

// Metadata keys carried on every checkout session. The reconciler reads
// these back from the webhook payload, so the two sides must agree.
const (
	metaUserID           = "userId"
	metaUsageType        = "usageType"
	metaPlan             = "plan"
	metaCredits          = "credits"
	metaBillingReference = "billingReference"
	metaPricingBasis     = "pricingBasis"
)

// Client wraps the Stripe API for the two checkout flows and webhook
// verification. It converts Stripe's session shape into the neutral
// billing.CheckoutEvent the reconciler consumes.
type Client struct {
	api           *client.API
	webhookSecret string
	frontendURL   string
	log           zerolog.Logger
}

func NewClient(secretKey, webhookSecret, frontendURL string, log zerolog.Logger) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret, frontendURL: frontendURL, log: log}
}

type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// CreatePlanCheckout starts a credit-plan purchase. The plan's price id
// must exist in Stripe; credits are granted by the reconciler once the
// session completes.
func (c *Client) CreatePlanCheckout(ctx context.Context, userID uint64, plan billing.Plan) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.frontendURL + "/payments/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.frontendURL + "/payments/cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(plan.PriceID), Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, strconv.FormatUint(userID, 10))
	params.AddMetadata(metaUsageType, string(billing.UsagePlan))
	params.AddMetadata(metaPlan, plan.Name)
	params.AddMetadata(metaCredits, strconv.FormatInt(plan.Credits, 10))

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payments: create plan checkout: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// CreateOneOffCheckout starts a pay-per-document purchase priced by the
// quote. The billing reference ties the payment back to the quoted file.
func (c *Client) CreateOneOffCheckout(ctx context.Context, userID uint64, billingReference, description string, quote pricing.Quote) (*Session, error) {
	basis, err := json.Marshal(quote.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("payments: encode pricing basis: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.frontendURL + "/payments/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.frontendURL + "/payments/cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(quote.Currency),
					UnitAmount: stripe.Int64(quote.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metaUserID, strconv.FormatUint(userID, 10))
	params.AddMetadata(metaUsageType, string(billing.UsageOneOff))
	params.AddMetadata(metaBillingReference, billingReference)
	params.AddMetadata(metaPricingBasis, string(basis))

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("payments: create one-off checkout: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// RetrieveSession fetches a checkout session for the confirm endpoint.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (billing.CheckoutEvent, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return billing.CheckoutEvent{}, fmt.Errorf("payments: retrieve session %s: %w", sessionID, err)
	}
	return eventFromSession(s), nil
}

// VerifyWebhook checks the signature and extracts the checkout event.
// The second return is false for event types the reconciler ignores.
func (c *Client) VerifyWebhook(payload []byte, sigHeader string) (billing.CheckoutEvent, bool, error) {
	ev, err := webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return billing.CheckoutEvent{}, false, fmt.Errorf("payments: webhook signature: %w", err)
	}
	if ev.Type != "checkout.session.completed" {
		c.log.Debug().Str("type", string(ev.Type)).Msg("ignoring webhook event")
		return billing.CheckoutEvent{}, false, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return billing.CheckoutEvent{}, false, fmt.Errorf("payments: decode checkout session: %w", err)
	}
	return eventFromSession(&s), true, nil
}

func eventFromSession(s *stripe.CheckoutSession) billing.CheckoutEvent {
	out := billing.CheckoutEvent{
		SessionID:     s.ID,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
	if s.PaymentIntent != nil {
		out.PaymentIntent = s.PaymentIntent.ID
	}
	return out
}
