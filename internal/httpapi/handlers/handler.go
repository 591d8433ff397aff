package handlers

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/config"
	"github.com/lingodoc/platform/internal/email"
	"github.com/lingodoc/platform/internal/notify"
	"github.com/lingodoc/platform/internal/payments"
	"github.com/lingodoc/platform/internal/storage"
	"github.com/lingodoc/platform/internal/store/redisstore"
	"github.com/lingodoc/platform/internal/translation"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	SMTPSetting email.SMTPConfig

	TranslationSvc *translation.Service
	Ledger         *billing.Ledger
	PaymentRepo    *billing.Repo
	Reconciler     *billing.Reconciler
	Stripe         *payments.Client
	Notify         *notify.Service
	Files          storage.Store
	Plans          map[string]billing.Plan

	Log zerolog.Logger
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, queue translation.Queue, files storage.Store, log zerolog.Logger) *Handler {
	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	ledger := billing.NewLedger(db, log)
	payRepo := billing.NewRepo(db)

	return &Handler{
		DB:          db,
		Cfg:         cfg,
		Redis:       rds,
		SMTPSetting: smtp,

		TranslationSvc: translation.NewService(translation.NewRepo(db), queue, ledger, payRepo, log),
		Ledger:         ledger,
		PaymentRepo:    payRepo,
		Reconciler:     billing.NewReconciler(payRepo, ledger, log),
		Stripe:         payments.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.FrontendURL, log),
		Notify:         notify.NewService(db, smtp, log),
		Files:          files,
		Plans:          billing.Catalog(cfg.PriceStarter, cfg.PricePro, cfg.PriceEnterprise),

		Log: log,
	}
}
