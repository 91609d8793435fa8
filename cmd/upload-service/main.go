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
	"github.com/mapdr-ai/platform/pkg/auth"
	"github.com/mapdr-ai/platform/pkg/common/config"
	"github.com/mapdr-ai/platform/pkg/common/database"
	"github.com/mapdr-ai/platform/pkg/common/kafka"
	"github.com/mapdr-ai/platform/pkg/common/logger"
	"github.com/mapdr-ai/platform/pkg/identity"
	"github.com/mapdr-ai/platform/pkg/uploads"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log := logger.ForService("upload-service")

	db, err := database.GetPostgres()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := uploads.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate upload tables")
	}

	identityRepo := identity.NewRepository(db)
	if err := identityRepo.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate user tables")
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		log.WithError(err).Fatal("failed to configure JWT manager")
	}
	identityService := identity.NewService(identityRepo, jwtManager)

	producer := kafka.NewProducer(cfg.SessionTopic)
	defer producer.Close()

	statusCache := uploads.NewStatusCache(database.GetRedis(), cfg.StatusCacheTTL)
	service := uploads.NewService(repo, producer, statusCache)
	handler := uploads.NewHTTPHandler(service, cfg.MaxRequestBody)

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
	identity.NewHTTPHandler(identityService).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Upload Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Upload Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	database.ClosePostgres()
	database.CloseRedis()

	log.Info("Upload Service stopped")
}
