package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/formrelay-server/internal/config"
	"github.com/vovakirdan/formrelay-server/internal/intake"
	"github.com/vovakirdan/formrelay-server/internal/relay"
	"github.com/vovakirdan/formrelay-server/internal/store"
	mongostore "github.com/vovakirdan/formrelay-server/internal/store/mongo"
	sqlitestore "github.com/vovakirdan/formrelay-server/internal/store/sqlite"
)

// Intake wires the HTTP intake server to the relay client.
type Intake struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// NewIntake constructs the intake service.
func NewIntake(cfg config.Config, logger *zerolog.Logger) *Intake {
	client := relay.NewClient(cfg.RelayAddr(), cfg.MaxMessageBytes, logger)
	server := intake.NewServer(cfg, client, logger)

	return &Intake{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *Intake) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	a.log.Info().Str("addr", a.server.Addr).Msg("intake serving")
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down intake server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}

// Relay wires the TCP listener to the configured store.
type Relay struct {
	server *relay.Server
	store  store.Store
	log    *zerolog.Logger
}

// NewRelay constructs the relay service. A store that cannot be reached
// fails construction: the relay never starts without persistence.
func NewRelay(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*Relay, error) {
	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	server := relay.NewServer(relay.ServerConfig{
		Addr:            cfg.RelayBindAddr(),
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, st, logger)

	return &Relay{server: server, store: st, log: logger}, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		logger.Info().
			Str("host", cfg.MongoHost).
			Int("port", cfg.MongoPort).
			Str("db", cfg.MongoDB).
			Str("collection", cfg.MongoCollection).
			Msg("connecting to mongodb")
		return mongostore.New(ctx, mongostore.Config{
			URI:        cfg.MongoURI(),
			Database:   cfg.MongoDB,
			Collection: cfg.MongoCollection,
		})
	case config.DriverSQLite:
		logger.Info().Str("path", cfg.SQLitePath).Msg("opening sqlite store")
		return sqlitestore.New(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Run binds the listener and serves until context cancellation.
func (a *Relay) Run(ctx context.Context) error {
	defer a.cleanup()

	if err := a.server.Listen(); err != nil {
		return err
	}
	return a.server.Serve(ctx)
}

// cleanup closes the store.
func (a *Relay) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}

// RunAll runs both services in one process, the way the original
// deployment supervised them. Either service exiting stops the other.
func RunAll(ctx context.Context, cfg config.Config, logger *zerolog.Logger) error {
	rel, err := NewRelay(ctx, cfg, logger)
	if err != nil {
		return err
	}
	in := NewIntake(cfg, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- rel.Run(ctx) }()
	go func() { errCh <- in.Run(ctx) }()

	err = <-errCh
	cancel()
	if second := <-errCh; err == nil {
		err = second
	}
	return err
}
