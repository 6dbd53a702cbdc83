package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unihub/chat-service/config"
	"github.com/unihub/chat-service/internal/memstore"
	"github.com/unihub/chat-service/internal/postgres"
	"github.com/unihub/chat-service/internal/security"
	"github.com/unihub/chat-service/internal/service"
	httpx "github.com/unihub/chat-service/internal/transport/http"
	"github.com/unihub/chat-service/internal/transport/ws"
	"github.com/unihub/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version,
		"storage", cfg.Storage.Backend)

	ctx := context.Background()

	// --- storage ---
	var (
		convStore     service.ConversationStore
		partStore     service.ParticipantStore
		msgStore      service.MessageStore
		reactionStore service.ReactionStore
		receiptStore  service.ReceiptStore
		users         service.UserDirectory
	)
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()

		convStore = postgres.NewConversationRepository(db.Pool)
		partStore = postgres.NewParticipantRepository(db.Pool)
		msgStore = postgres.NewMessageRepository(db.Pool)
		reactionStore = postgres.NewReactionRepository(db.Pool)
		receiptStore = postgres.NewReceiptRepository(db.Pool)
		users = postgres.NewUserRepository(db.Pool)
	case "memory":
		// in-memory backend для локальной разработки без БД
		store := memstore.New()
		convStore = store.Conversations()
		partStore = store.Participants()
		msgStore = store.Messages()
		reactionStore = store.Reactions()
		receiptStore = store.Receipts()
		users = store.Users()
	}

	// --- WS Hub & Server ---
	hub := ws.NewHub()

	// --- services ---
	chatSvc := service.NewChatService(convStore, partStore, msgStore, reactionStore, receiptStore, users, hub)

	verifier := security.NewVerifier(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.ClockSkewDuration())
	wsServer := ws.NewServer(hub, chatSvc, verifier, cfg.PingEveryDuration())

	// --- HTTP ---
	handler := httpx.NewHandler(chatSvc)
	router := httpx.NewRouter(handler, verifier, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
