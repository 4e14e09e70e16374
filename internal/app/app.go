package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/gateway"
	"github.com/vovakirdan/roomchat/internal/livequery"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomchat/internal/transport/http"
)

const tokenTTL = 24 * time.Hour

// App wires together storage, live queries and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           *sqlite.SQLiteStore
	notifier        livequery.Notifier
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gw := gateway.New(st, notifier, logger)

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      tokenTTL,
	}, cfg.PasswordCost)

	server, err := transporthttp.NewServer(gw, authService, cfg, logger)
	if err != nil {
		_ = notifier.Close()
		_ = st.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		notifier:        notifier,
		log:             logger,
	}, nil
}

// Migrate applies database migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return st.Close()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*sqlite.SQLiteStore, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx, logger); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	return st, nil
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (livequery.Notifier, error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("using in-process change notifications")
		return livequery.NewLocal(), nil
	}

	notifier, err := livequery.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("init redis notifier: %w", err)
	}
	logger.Info().Msg("using redis change notifications")
	return notifier, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("starting roomchat server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the notifier and database.
func (a *App) cleanup() {
	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close notifier")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
