package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/bazinga-client/internal/config"
	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/httpapi"
	"github.com/DoyleJ11/bazinga-client/internal/hub"
	"github.com/DoyleJ11/bazinga-client/internal/logging"
	"github.com/DoyleJ11/bazinga-client/internal/rooms"
	"github.com/DoyleJ11/bazinga-client/internal/session"
	"github.com/DoyleJ11/bazinga-client/internal/store"
	"github.com/DoyleJ11/bazinga-client/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal store.Journal = store.NewMemory(cfg.JournalSessions)
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		journal = pg
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	roomsClient, err := rooms.NewClient(cfg.APIURL, httpClient, log.Named("rooms"))
	if err != nil {
		return err
	}

	dial := func(ctx context.Context, id engine.Identity) (session.Conn, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		conn, err := ws.Dial(ctx, roomsClient.BaseURL(), id.RoomCode(), id.PlayerID(), ws.Options{
			ReadLimit: cfg.ReadLimit,
			Logger:    log.Named("ws"),
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	h := hub.NewHub(ctx, log.Named("hub"))
	handler := httpapi.New(h, roomsClient, dial, session.Config{
		OutboxSize: cfg.SubscriberBuffer,
		Logger:     log.Named("session"),
		Journal:    journal,
	}, log.Named("http"))

	server := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.SetupRoutes(handler, httpapi.RouterOptions{
			RateLimit:      cfg.RateLimit,
			RateLimitBurst: cfg.RateLimitBurst,
			Logger:         log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("api", cfg.APIURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		// Close sessions first so open streams see their final snapshot.
		if err := h.Shutdown(shutdownCtx); err != nil {
			log.Warn("closing sessions", zap.Error(err))
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
