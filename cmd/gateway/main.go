package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	env "github.com/Netflix/go-env"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/vanthaita/piratesocial-chat/gateway"
	"github.com/vanthaita/piratesocial-chat/internal/logs"
	"github.com/vanthaita/piratesocial-chat/moderation"
	"github.com/vanthaita/piratesocial-chat/observability"
	"github.com/vanthaita/piratesocial-chat/repositories"
	"github.com/vanthaita/piratesocial-chat/runtime"
	"github.com/vanthaita/piratesocial-chat/runtime/workers"
	"github.com/vanthaita/piratesocial-chat/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}

	log := logs.FromString(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("unable to open badger at %s: %w", cfg.BadgerFilepath, err)
	}
	defer db.Close()

	rooms := repositories.NewRoomRepository(db, log)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log, cfg.HistoryLimit)

	if err := seed(cfg, rooms, log); err != nil {
		return err
	}

	maskChar, err := maskingRune(cfg.ModerationCharReplacement)
	if err != nil {
		return err
	}
	words, err := moderation.DefaultWords()
	if err != nil {
		return fmt.Errorf("unable to load moderation words: %w", err)
	}
	moderator, err := moderation.NewModerator(words, maskChar)
	if err != nil {
		return fmt.Errorf("unable to build moderator: %w", err)
	}

	registry := runtime.NewRegistry()
	sessions := runtime.NewSessionStore()
	monitor := observability.NewMonitor()

	service := services.NewChatService(log, registry, rooms, users, messages,
		moderator, monitor, cfg.SinkTimeout)

	supervisor := workers.NewSupervisor(log).Add(
		workers.NewReporter(log, monitor, cfg.MetricInterval),
		workers.NewHealthMonitoring(log, monitor, cfg.MetricInterval),
	)
	go supervisor.Run(ctx)

	server := gateway.NewServer(ctx, log, gateway.Config{
		ConnectionBufferSize: cfg.ConnectionBufferSize,
		MaxMessageSize:       cfg.MaxMessageSize,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		EventTimeout:         cfg.EventTimeout,
		WriteTimeout:         cfg.WriteTimeout,
		PongTimeout:          cfg.PongTimeout,
	}, service, sessions, registry, monitor)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("gateway listening", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down cleanly: %w", err)
	}
	supervisor.Stop()
	return nil
}

func seed(cfg Config, rooms repositories.IRoomRepository, log *slog.Logger) error {
	seeded, err := cfg.seedRooms()
	if err != nil {
		return err
	}
	for _, room := range seeded {
		if err := rooms.CreateRoom(room); err != nil {
			return fmt.Errorf("unable to seed room %s: %w", room.ID, err)
		}
		log.Info("room seeded", slog.String("room", room.ID.String()), slog.String("name", room.Name))
	}
	return nil
}
