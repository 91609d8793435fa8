package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mapdr-ai/platform/pkg/common/config"
	"github.com/mapdr-ai/platform/pkg/common/database"
	"github.com/mapdr-ai/platform/pkg/common/kafka"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/pacs"
	"github.com/mapdr-ai/platform/pkg/uploads"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log := logger.ForService("upload-worker")

	db, err := database.GetPostgres()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := uploads.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate upload tables")
	}

	archive := pacs.NewClient(
		cfg.PACSBaseURL,
		cfg.PACSUsername,
		cfg.PACSPassword,
		cfg.PACSRequestTimeout,
		cfg.PACSPollAttempts,
		cfg.PACSPollInterval,
	)

	producer := kafka.NewProducer(cfg.SessionTopic)
	defer producer.Close()

	dlqProducer := kafka.NewProducer(cfg.SessionDLQTopic)
	defer dlqProducer.Close()

	eventsProducer := kafka.NewProducer(cfg.EventsTopic)
	defer eventsProducer.Close()

	processor := uploads.NewProcessor(repo, archive)
	worker := uploads.NewWorker(processor, producer, dlqProducer, eventsProducer, cfg.SessionMaxRetries, cfg.SessionRetryDelay)

	consumer := kafka.NewConsumer(cfg.SessionTopic, "upload-worker")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.ConsumeSessions(ctx, worker.Handle); err != nil && err != context.Canceled {
			log.WithError(err).Fatal("Consumer error")
		}
	}()

	// Liveness endpoint only; all real work arrives over Kafka.
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, "8090"),
		Handler: router,
	}

	go func() {
		log.Info("Upload Worker started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Upload Worker...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	database.ClosePostgres()

	log.Info("Upload Worker stopped")
}
