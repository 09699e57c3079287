package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wsehl/chatrooms/internal/chat"
	"github.com/wsehl/chatrooms/internal/config"
	"github.com/wsehl/chatrooms/internal/presence"
	"github.com/wsehl/chatrooms/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv("CHAT_CONFIG"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info("starting chat server",
		"port", cfg.Port,
		"path", config.SocketPath,
		"origins", cfg.AllowedOrigins,
	)

	registry := presence.NewRegistry()
	hub := server.NewHub(cfg.MaxMessageSize, logger.With("component", "hub"))
	router := chat.NewRouter(registry, hub, logger.With("component", "router"))
	hub.Bind(router, router.Rooms())
	go hub.Run()

	srv := server.New(cfg, hub, registry, logger)
	httpServer := server.CreateServer(cfg.Addr(), srv.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	exitCode := 0
	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		exitCode = 1
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn("hub shutdown incomplete", "error", err)
		exitCode = 1
	}
	return exitCode
}
