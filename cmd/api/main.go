package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lingodoc/platform/internal/config"
	"github.com/lingodoc/platform/internal/db"
	"github.com/lingodoc/platform/internal/httpapi"
	"github.com/lingodoc/platform/internal/logging"
	"github.com/lingodoc/platform/internal/storage"
	"github.com/lingodoc/platform/internal/store/rabbitmq"
	"github.com/lingodoc/platform/internal/store/redisstore"
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

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init")
	}

	router := httpapi.NewRouter(gdb, cfg, rds, queue, files, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
