package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"certproof/internal/auth"
	"certproof/internal/config"
	"certproof/internal/extractor"
	"certproof/internal/handlers"
	"certproof/internal/registry"
	"certproof/internal/router"
	"certproof/internal/verification"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	reg, err := registry.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	log.Info("connected to database")

	var store registry.Registry = reg
	var nonces auth.NonceStore = auth.NewMemoryNonceStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		store = registry.NewCached(reg, client, cfg.CacheTTL, log)
		nonces = auth.NewRedisNonceStore(client)
		log.Info("redis cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	dispatcher := extractor.NewDispatcher().
		Handle("text/plain", extractor.NewText()).
		Handle("text/csv", extractor.NewText()).
		Handle("application/json", extractor.NewJSON())
	if cfg.GeminiAPIKey != "" {
		ocr := extractor.NewOCR(cfg.GoogleCredentialsFile, extractor.NewGemini(cfg.GeminiAPIKey))
		dispatcher.Handle("image", ocr)
	} else {
		log.Warn("GEMINI_API_KEY not set; image uploads will be rejected as unreadable")
	}

	service := verification.NewService(dispatcher, store, verification.Options{
		ExtractTimeout: cfg.ExtractTimeout,
		StoreTimeout:   cfg.StoreTimeout,
		StoreRetries:   cfg.StoreRetries,
	}, log)

	srv := &handlers.Server{
		Service:       service,
		Registry:      store,
		Log:           log,
		PublicBaseURL: cfg.PublicBaseURL,
		ShareSecret:   []byte(cfg.JWTSecret),
	}
	authHandler := auth.NewHandler(nonces, []byte(cfg.JWTSecret), cfg.SessionTTL, cfg.AdminWallets, log)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(srv, authHandler, []byte(cfg.JWTSecret), log),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.ExtractTimeout + cfg.StoreTimeout + 10*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}
