package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/common"
	"github.com/lingodoc/platform/internal/models"
	"github.com/lingodoc/platform/internal/pricing"
	"github.com/lingodoc/platform/internal/store/redisstore"
)

type quoteReq struct {
	FileID uint64 `json:"file_id"`
}

// Quote prices a one-off translation of an uploaded file and mints the
// billing reference the checkout and the job will share.
func (h *Handler) Quote(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil || req.FileID == 0 {
		common.Fail(c, http.StatusBadRequest, 10001, "file_id required")
		return
	}

	var file models.File
	if err := h.DB.Where("id = ? AND user_id = ?", req.FileID, uid).First(&file).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "file not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	quote := pricing.Calculate(pricing.Input{
		WordCount: file.WordCount,
		PageCount: file.PageCount,
		FileSize:  file.Size,
	})

	ref := uuid.NewString()
	rec := redisstore.QuoteRecord{UserID: uid, FileID: file.ID, Quote: quote}
	if err := h.Redis.SaveQuote(c.Request.Context(), ref, rec); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20007, "failed to cache quote")
		return
	}

	common.OK(c, gin.H{
		"billing_reference": ref,
		"quote":             quote,
	})
}

type checkoutReq struct {
	UsageType        string `json:"usage_type"`
	Plan             string `json:"plan"`
	BillingReference string `json:"billing_reference"`
}

func (h *Handler) Checkout(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	switch req.UsageType {
	case string(billing.UsagePlan):
		plan, ok := h.Plans[req.Plan]
		if !ok {
			common.Fail(c, http.StatusBadRequest, 10011, "unknown plan")
			return
		}
		sess, err := h.Stripe.CreatePlanCheckout(c.Request.Context(), uid, plan)
		if err != nil {
			h.Log.Error().Err(err).Str("plan", plan.Name).Msg("plan checkout failed")
			common.Fail(c, http.StatusBadGateway, 50201, "payment provider error")
			return
		}
		common.OK(c, sess)

	case string(billing.UsageOneOff):
		if req.BillingReference == "" {
			common.Fail(c, http.StatusBadRequest, 10012, "billing_reference required")
			return
		}
		rec, err := h.Redis.GetQuote(c.Request.Context(), req.BillingReference)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				common.Fail(c, http.StatusBadRequest, 10013, "quote expired or not found")
				return
			}
			common.Fail(c, http.StatusInternalServerError, 20007, "quote lookup failed")
			return
		}
		if rec.UserID != uid {
			common.Fail(c, http.StatusBadRequest, 10013, "quote expired or not found")
			return
		}

		sess, err := h.Stripe.CreateOneOffCheckout(c.Request.Context(), uid, req.BillingReference, "Document translation", rec.Quote)
		if err != nil {
			h.Log.Error().Err(err).Str("ref", req.BillingReference).Msg("one-off checkout failed")
			common.Fail(c, http.StatusBadGateway, 50201, "payment provider error")
			return
		}
		common.OK(c, sess)

	default:
		common.Fail(c, http.StatusBadRequest, 10014, "usage_type must be plan or one_off")
	}
}

type confirmReq struct {
	SessionID string `json:"session_id"`
}

// ConfirmPayment is the client-side confirmation channel. It feeds the
// same reconciler as the webhook, so whichever arrives first wins and
// the other is a no-op.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "session_id required")
		return
	}

	ev, err := h.Stripe.RetrieveSession(c.Request.Context(), req.SessionID)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50201, "payment provider error")
		return
	}

	// the session must belong to the caller
	if ev.Metadata["userId"] != strconv.FormatUint(uid, 10) {
		common.Fail(c, http.StatusNotFound, 40404, "session not found")
		return
	}
	if ev.PaymentStatus != "paid" {
		common.Fail(c, http.StatusBadRequest, 10015, "payment not completed")
		return
	}

	processed, err := h.Reconciler.Process(c.Request.Context(), ev)
	if err != nil {
		h.handleReconcileErr(c, err)
		return
	}
	h.notifyCreditsAdded(c, ev, processed)

	common.OK(c, gin.H{"processed": processed, "session_id": ev.SessionID})
}

// StripeWebhook is the durable reconciliation channel. Signature
// verification happens before anything else touches the payload.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "unreadable payload")
		return
	}

	ev, relevant, err := h.Stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10016, "invalid webhook signature")
		return
	}
	if !relevant {
		common.OK(c, gin.H{"processed": false})
		return
	}

	processed, err := h.Reconciler.Process(c.Request.Context(), ev)
	if err != nil {
		h.handleReconcileErr(c, err)
		return
	}
	h.notifyCreditsAdded(c, ev, processed)

	common.OK(c, gin.H{"processed": processed})
}

// handleReconcileErr distinguishes malformed events (retrying will never
// help, answer 400) from transient faults (500 so the sender retries).
func (h *Handler) handleReconcileErr(c *gin.Context, err error) {
	if errors.Is(err, billing.ErrMissingBillingReference) {
		common.Fail(c, http.StatusBadRequest, 10017, "one-off payment missing billing reference")
		return
	}
	h.Log.Error().Err(err).Msg("payment reconciliation failed")
	common.Fail(c, http.StatusInternalServerError, 50002, "reconciliation failed")
}

func (h *Handler) notifyCreditsAdded(c *gin.Context, ev billing.CheckoutEvent, processed bool) {
	if !processed || ev.Metadata["usageType"] != string(billing.UsagePlan) {
		return
	}
	uid, err := strconv.ParseUint(ev.Metadata["userId"], 10, 64)
	if err != nil {
		return
	}
	credits, _ := strconv.ParseInt(ev.Metadata["credits"], 10, 64)
	h.Notify.CreditsAdded(c.Request.Context(), uid, credits, ev.Metadata["plan"])
}

func (h *Handler) PaymentHistory(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	history, err := h.PaymentRepo.History(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"payments": history})
}

func (h *Handler) CreditBalance(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	credits, err := h.Ledger.Credits(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"credits": credits})
}

func (h *Handler) ListPlans(c *gin.Context) {
	common.OK(c, gin.H{"plans": h.Plans})
}
