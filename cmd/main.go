/*
Package main is the entry point for the line chat server.

It is responsible for loading configuration, initializing the global logging system,
loading the credential store, starting the TCP chat listener and the HTTP status and
WebSocket server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"linechat/internal/app/chat"
	"linechat/internal/app/db"
	"linechat/internal/app/storage"
	"linechat/internal/app/user"
	"linechat/internal/configs"
	"linechat/internal/handler"
	"linechat/internal/pkg/limiter"
	"linechat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Int("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Dur("handshake_timeout", cfg.HandshakeTimeout).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load credentials; a store that cannot be read must stop the server.
	backend, closeBackend, err := newBackend(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize credential backend", "store_backend", cfg.StoreBackend)
	}
	defer closeBackend()

	store := user.NewStore(backend, user.WithPasswordHashing(cfg.HashPasswords))
	if err := store.Load(ctx); err != nil {
		logx.Fatal(err, "Failed to load credential store", "store_backend", cfg.StoreBackend)
	}

	// Initialize chat components
	registry := chat.NewRegistry()
	router := chat.NewRouter(registry)
	connLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)

	chatServer := chat.NewServer(store, registry, router,
		chat.WithLimiter(connLimiter),
		chat.WithSessionConfig(chat.SessionConfig{
			HandshakeTimeout: cfg.HandshakeTimeout,
			OutboxSize:       cfg.OutboxSize,
		}),
	)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logx.Fatal(err, "Failed to bind chat listener", "port", cfg.Port)
	}

	logx.Info("Chat server starting", "port", cfg.Port, "registered_users", store.Len())

	chatDone := make(chan error, 1)
	go func() {
		chatDone <- chatServer.Serve(ctx, listener)
	}()

	// Setup HTTP server and routes
	var httpServer *http.Server
	if cfg.HTTPPort != 0 {
		httpServer = &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler: handler.Router(&handler.AppDeps{
				Server:      chatServer,
				Registry:    registry,
				Config:      cfg,
				Limiter:     connLimiter,
				BaseContext: ctx,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			logx.Info("HTTP server starting", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logx.Fatal(err, "HTTP server failed to start")
			}
		}()
	}

	// Wait for a shutdown signal or a listener failure.
	var chatErr error
	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
		chatErr = <-chatDone
	case chatErr = <-chatDone:
		if chatErr != nil {
			logx.Fatal(chatErr, "Chat listener failed")
		}
	}

	if httpServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "HTTP server forced to shutdown")
		}
	}

	if chatErr != nil {
		logx.Error(chatErr, "Chat listener stopped with an error")
	}
	chatServer.DisconnectAll()
	chatServer.Wait()

	logx.Info("Server gracefully stopped.")
}

// newBackend builds the credential backend selected by STORE_BACKEND and
// returns a function releasing its resources.
func newBackend(ctx context.Context, cfg *configs.AppConfig) (user.Backend, func(), error) {
	switch cfg.StoreBackend {
	case configs.StoreBackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return db.NewUserBackend(pool), pool.Close, nil

	case configs.StoreBackendS3:
		backend, err := storage.NewCredentialBackend(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3ObjectKey:       cfg.S3ObjectKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {}, nil

	default:
		return user.NewFileBackend(cfg.UsersFile), func() {}, nil
	}
}
