package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/masterboy376/cphere/internal/app/registry"
	"github.com/masterboy376/cphere/internal/app/server"
	"github.com/masterboy376/cphere/internal/app/worker"
	"github.com/masterboy376/cphere/internal/config"
	"github.com/masterboy376/cphere/internal/core/contracts"
	"github.com/masterboy376/cphere/internal/core/domain"
	"github.com/masterboy376/cphere/internal/core/services"
	"github.com/masterboy376/cphere/internal/platform/logger"
	"github.com/masterboy376/cphere/internal/platform/telemetry"
	"github.com/masterboy376/cphere/internal/plugins/mail"
	"github.com/masterboy376/cphere/internal/plugins/memory"
	mongoPlugin "github.com/masterboy376/cphere/internal/plugins/mongo"
	pgPlugin "github.com/masterboy376/cphere/internal/plugins/postgres"
	redisPlugin "github.com/masterboy376/cphere/internal/plugins/redis"
	"github.com/masterboy376/cphere/pkg/logging"
)

type repositories struct {
	users         domain.UserRepository
	chats         domain.ChatRepository
	messages      domain.MessageRepository
	notifications domain.NotificationRepository
	close         func(context.Context) error

	// sweep lists in-process state the store needs evicted periodically.
	sweep map[string]worker.Sweepable
}

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", logging.Err(err))
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.Auth.JWTSecret = "dev-insecure-secret"
	}

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", logging.Err(err))
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", logging.Err(err))
		}
	}()

	// Infra
	repos, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("store connection failed", "driver", cfg.Store.Driver, logging.Err(err))
		return
	}
	defer func() {
		if err := repos.close(context.Background()); err != nil {
			log.Error("store disconnect failed", logging.Err(err))
		}
	}()
	log.Info("store ready", "driver", cfg.Store.Driver)

	var (
		revoker contracts.TokenRevoker
		limiter contracts.RateLimiter
		sweep   = make(map[string]worker.Sweepable)
	)
	for name, t := range repos.sweep {
		sweep[name] = t
	}
	if rdb, err := redisPlugin.NewRedisClient(ctx, *cfg.Redis); err == nil {
		defer rdb.Close()
		revoker = redisPlugin.NewRedisTokenRevoker(rdb)
		limiter = redisPlugin.NewRedisRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		log.Info("redis connected")
	} else if cfg.IsDevelopment() {
		log.Warn("redis unavailable, using in-process sessions and rate limits", "url", cfg.Redis.URL, logging.Err(err))
		memRevoker := memory.NewRevoker()
		memLimiter := memory.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		revoker, limiter = memRevoker, memLimiter
		sweep["token_revoker"] = memRevoker
		sweep["rate_limiter"] = memLimiter
	} else {
		log.Error("redis connection failed", "url", cfg.Redis.URL, logging.Err(err))
		return
	}
	if len(sweep) > 0 {
		go worker.NewSweeper(log, time.Minute, sweep).Run(ctx)
	}

	// Core
	hub := registry.NewRegistry()
	membership := registry.NewMembership(repos.chats)
	router := services.NewMessageService(log, hub, membership, repos.chats, repos.messages, repos.users)
	relay := services.NewSignalService(log, hub)
	svc := server.Services{
		Users:    services.NewUserService(log, repos.users, mail.NewLogSender(log), cfg.Auth.ResetTokenTTL, 0),
		Tokens:   services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, revoker),
		Manager:  services.NewManagerService(log, hub, router, relay),
		Presence: services.NewPresenceService(hub),
		Chats:    services.NewChatService(log, membership, repos.chats, repos.messages, repos.users),
		Calls:    services.NewCallService(log, hub, membership, repos.users, repos.notifications),
	}

	// Server
	srv := server.NewServer(log, cfg, svc, hub, limiter)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server failed", logging.Err(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", logging.Err(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Store.Driver {
	case "memory":
		store := memory.NewStore()
		return &repositories{
			users:         store,
			chats:         store,
			messages:      store,
			notifications: store,
			close:         func(context.Context) error { return nil },
			sweep:         map[string]worker.Sweepable{"reset_tokens": store},
		}, nil
	case "postgres":
		db, err := pgPlugin.New(ctx, *cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pgPlugin.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &repositories{
			users:         pgPlugin.NewUserRepository(db),
			chats:         pgPlugin.NewChatRepository(db),
			messages:      pgPlugin.NewMessageRepository(db),
			notifications: pgPlugin.NewNotificationRepository(db),
			close:         func(context.Context) error { return db.Close() },
		}, nil
	}
	client, err := mongoPlugin.New(ctx, *cfg.Mongo)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.Mongo.Database)
	if err := mongoPlugin.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &repositories{
		users:         mongoPlugin.NewUserRepository(db),
		chats:         mongoPlugin.NewChatRepository(db),
		messages:      mongoPlugin.NewMessageRepository(db),
		notifications: mongoPlugin.NewNotificationRepository(db),
		close:         client.Disconnect,
	}, nil
}
