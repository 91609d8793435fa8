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
	"github.com/mapdr-ai/platform/pkg/aireport"
	"github.com/mapdr-ai/platform/pkg/auth"
	"github.com/mapdr-ai/platform/pkg/common/config"
	"github.com/mapdr-ai/platform/pkg/common/database"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/pacs"
	"github.com/mapdr-ai/platform/pkg/uploads"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log := logger.ForService("ai-service")

	db, err := database.GetPostgres()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := aireport.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate ai tables")
	}
	uploadRepo := uploads.NewRepository(db)

	labels, err := aireport.LoadLabels(cfg.ModelLabelsPath)
	if err != nil {
		log.WithError(err).Warn("falling back to default class labels")
	}

	archive := pacs.NewClient(
		cfg.PACSBaseURL,
		cfg.PACSUsername,
		cfg.PACSPassword,
		cfg.PACSRequestTimeout,
		cfg.PACSPollAttempts,
		cfg.PACSPollInterval,
	)
	predictor := aireport.NewInferenceClient(cfg.InferenceBaseURL, cfg.InferenceRequestTimeout)
	catalog := aireport.NewCatalog(repo)

	service := aireport.NewService(repo, catalog, uploadRepo, archive, predictor, labels)
	handler := aireport.NewHTTPHandler(service, cfg.MaxRequestBody)

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to configure JWT manager")
	}

	router := mux.NewRouter()
	router.Use(auth.Recovery, auth.Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.MaybeAuthenticate(jwtManager))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("AI Service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down AI Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	database.ClosePostgres()

	log.Info("AI Service stopped")
}
