package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/common"
	"github.com/lingodoc/platform/internal/translation"
)

func (h *Handler) CreateTranslation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req translation.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	job, err := h.TranslationSvc.Create(c.Request.Context(), uid, req)
	if err != nil {
		h.failTranslation(c, err)
		return
	}
	common.OK(c, job)
}

func (h *Handler) GetTranslation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	job, err := h.TranslationSvc.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "translation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, job)
}

func (h *Handler) ListTranslations(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := translation.JobStatus(c.Query("status"))

	jobs, total, err := h.TranslationSvc.List(c.Request.Context(), uid, status, limit, offset)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"jobs": jobs, "total": total})
}

func (h *Handler) CancelTranslation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	err := h.TranslationSvc.Cancel(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40403, "translation not found")
		case errors.Is(err, translation.ErrNotCancellable):
			common.Fail(c, http.StatusConflict, 40901, "job is no longer cancellable")
		default:
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		}
		return
	}
	common.OK(c, gin.H{"cancelled": c.Param("id")})
}

func (h *Handler) RetryTranslation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	job, err := h.TranslationSvc.Retry(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40403, "translation not found")
		case errors.Is(err, translation.ErrNotRetryable):
			common.Fail(c, http.StatusConflict, 40902, "only failed jobs can be retried")
		default:
			h.failTranslation(c, err)
		}
		return
	}
	common.OK(c, job)
}

// failTranslation maps intake errors onto the envelope. Billing
// shortfalls are 402 so clients can route the user to checkout.
func (h *Handler) failTranslation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrInsufficientBalance):
		common.Fail(c, http.StatusPaymentRequired, 40201, "insufficient credit balance")
	case errors.Is(err, billing.ErrPaymentNotFound):
		common.Fail(c, http.StatusPaymentRequired, 40202, "no usable one-off payment for this reference")
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "file not found")
	case translation.IsPreconditionErr(err):
		common.Fail(c, http.StatusBadRequest, 10010, err.Error())
	default:
		h.Log.Error().Err(err).Msg("translation request failed")
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create translation job")
	}
}

func (h *Handler) ListLanguages(c *gin.Context) {
	common.OK(c, gin.H{"languages": translation.SupportedLanguages()})
}
