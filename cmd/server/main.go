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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/codeshare-backend/internal/config"
	"github.com/DoyleJ11/codeshare-backend/internal/executor"
	"github.com/DoyleJ11/codeshare-backend/internal/httpapi"
	"github.com/DoyleJ11/codeshare-backend/internal/hub"
	"github.com/DoyleJ11/codeshare-backend/internal/logging"
	"github.com/DoyleJ11/codeshare-backend/internal/store"
	"github.com/DoyleJ11/codeshare-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.Production())
	if err != nil {
		return err
	}
	// Sync reports EINVAL on terminals.
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := executor.NewClient(cfg.ExecuteURL, cfg.ExecuteTimeout, log.Named("executor"))

	// The hub outlives ctx so that shutdown can close sessions in order.
	h := hub.NewHub(context.Background(), log.Named("hub"), exec, hub.WithLockTimeout(cfg.LockTimeout))

	deps := httpapi.Deps{Hub: h, Log: log.Named("http")}
	if cfg.DatabaseURL != "" {
		db, openErr := store.Open(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close(db)) }()
		deps.Plans = store.NewPlanStore(db)
	} else {
		log.Info("DATABASE_URL not set, plan lookups disabled")
	}

	deps.WS = ws.Handler(h, ws.Config{
		OriginPatterns:    cfg.AllowedOrigins,
		OutboxSize:        cfg.OutboxSize,
		MessagesPerSecond: cfg.MessagesPerSec,
		MessageBurst:      cfg.MessageBurst,
		MaxMessageBytes:   cfg.MaxMessageBytes,
	}, log.Named("ws"))

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: httpapi.SetupRoutes(deps),
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("env", cfg.Env))

	return serve(ctx, srv, ln, h, cfg.ShutdownTimeout, log)
}

// serve runs srv on ln until ctx ends, then drains HTTP before stopping the
// hub, so in-flight requests can still reach it.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, h *hub.Hub, timeout time.Duration, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var errs error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		h.Send(shutdownCtx, hub.Shutdown{})
		select {
		case <-h.Done():
		case <-shutdownCtx.Done():
			errs = multierr.Append(errs, errors.New("hub did not stop before the shutdown timeout"))
		}
		return errs
	})

	return g.Wait()
}
