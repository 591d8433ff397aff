package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/common"
	"github.com/lingodoc/platform/internal/config"
	"github.com/lingodoc/platform/internal/httpapi/handlers"
	"github.com/lingodoc/platform/internal/httpapi/middleware"
	"github.com/lingodoc/platform/internal/storage"
	"github.com/lingodoc/platform/internal/store/redisstore"
	"github.com/lingodoc/platform/internal/translation"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, queue translation.Queue, files storage.Store, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, rds, queue, files, log)

	r.GET("/ping", h.Ping)
	r.GET("/languages", h.ListLanguages)
	r.GET("/plans", h.ListPlans)

	// users
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	// payment provider callbacks (signature-verified, no JWT)
	r.POST("/webhooks/stripe", h.StripeWebhook)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// files
	authGroup.POST("/files", h.RegisterFile)
	authGroup.GET("/files", h.ListFiles)
	authGroup.DELETE("/files/:id", h.DeleteFile)

	// translations
	authGroup.POST("/translations", h.CreateTranslation)
	authGroup.GET("/translations", h.ListTranslations)
	authGroup.GET("/translations/:id", h.GetTranslation)
	authGroup.POST("/translations/:id/cancel", h.CancelTranslation)
	authGroup.POST("/translations/:id/retry", h.RetryTranslation)

	// payments
	authGroup.POST("/payments/quote", h.Quote)
	authGroup.POST("/payments/checkout", h.Checkout)
	authGroup.POST("/payments/confirm", h.ConfirmPayment)
	authGroup.GET("/payments/history", h.PaymentHistory)
	authGroup.GET("/payments/credits", h.CreditBalance)

	// notifications
	authGroup.GET("/notifications", h.ListNotifications)
	authGroup.POST("/notifications/:id/read", h.MarkNotificationRead)
	authGroup.POST("/notifications/read-all", h.MarkAllNotificationsRead)

	return r
}
