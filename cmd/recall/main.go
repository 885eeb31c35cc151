package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ent0n29/recall/internal/config"
	"github.com/ent0n29/recall/internal/httpapi"
	"github.com/ent0n29/recall/internal/memory"
	"github.com/ent0n29/recall/internal/observability"
	"github.com/ent0n29/recall/internal/persist"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	adapter, err := persist.NewAdapter(ctx, cfg.DatabaseURL, cfg.RedisURL, cfg.MemoryEncryptionKey)
	if err != nil {
		log.Fatalf("persistence adapter init failed: %v", err)
	}
	defer adapter.Close()

	switch {
	case cfg.DatabaseURL != "":
		log.Printf("persistence backend: postgres")
	case cfg.RedisURL != "":
		log.Printf("persistence backend: redis")
	default:
		log.Printf("persistence backend: in-memory (set DATABASE_URL or REDIS_URL for durability)")
	}

	engine := memory.NewEngine(adapter, cfg.ContextCacheCapacity, metrics)

	var model httpapi.ChatModel
	switch cfg.ChatModel {
	case "echo", "":
		model = httpapi.NewEchoModel(cfg.ChatModelName)
		log.Printf("chat model: echo (local stub)")
	default:
		log.Fatalf("invalid CHAT_MODEL: %q (expected echo)", cfg.ChatModel)
	}

	api := httpapi.New(cfg, engine, model, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
