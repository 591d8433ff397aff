package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/lingodoc/platform/internal/billing"
	"github.com/lingodoc/platform/internal/config"
	"github.com/lingodoc/platform/internal/db"
	"github.com/lingodoc/platform/internal/email"
	"github.com/lingodoc/platform/internal/logging"
	"github.com/lingodoc/platform/internal/notify"
	"github.com/lingodoc/platform/internal/storage"
	"github.com/lingodoc/platform/internal/store/rabbitmq"
	"github.com/lingodoc/platform/internal/translation"
	"github.com/lingodoc/platform/internal/translator"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.AppEnv)

	gdb := db.Connect(cfg.DBDSN)

	queue, err := rabbitmq.New(cfg.RabbitURL, cfg.RabbitQueue, cfg.QueueMaxAttempts, cfg.QueueBackoffBase)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer queue.Close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init")
	}

	engine := translator.NewBreaker(translator.NewDeepL(cfg.DeepLBaseURL, cfg.DeepLAPIKey))

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	notifier := notify.NewService(gdb, smtp, log)

	processor := translation.NewProcessor(
		translation.NewRepo(gdb),
		billing.NewLedger(gdb, log),
		files,
		engine,
		notifier,
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")

	err = queue.Consume(ctx, cfg.WorkerConcurrency, processor.Execute)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("consume")
	}
	log.Info().Msg("worker shutting down")
}
