// Package app wires the Courier server runtime: config, logging, storage
// backends, HTTP routes and the realtime gateway.
//
// It is intentionally small and deterministic to keep CI gates strict and behavior predictable.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"

	"courier/cmd/identity"
	authapi "courier/cmd/internal/auth/api"
	"courier/cmd/internal/auth/session"
	"courier/cmd/internal/chat"
	chatapi "courier/cmd/internal/chat/api"
	"courier/cmd/internal/realtime"
)

// App is the Courier server runtime: it owns the HTTP server wiring and the
// realtime gateway dependencies.
type App struct {
	cfg Config
	log Logger

	backends *backends

	registry *realtime.Registry
	gateway  *realtime.Gateway

	auth *authapi.Handler
	chat *chatapi.Handler

	promReg *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	be, err := newBackends(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	tokens, err := newTokenManager(log)
	if err != nil {
		be.Close(context.Background())
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rtMetrics := realtime.NewMetrics(promReg)

	registry := realtime.NewRegistry(log)
	hub := realtime.NewHub(log)
	typing := realtime.NewTypingTracker()
	bridge := realtime.NewBridge(log, registry, hub, rtMetrics)

	chatSvc, err := chat.NewService(be.chat, be.users, bridge, log)
	if err != nil {
		be.Close(context.Background())
		return nil, err
	}

	gateway, err := realtime.NewGateway(log, registry, hub, typing, chatSvc, be.users, tokens, rtMetrics)
	if err != nil {
		be.Close(context.Background())
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, be.users, tokens, authapi.DefaultConfig())
	if err != nil {
		be.Close(context.Background())
		return nil, err
	}

	chatHandler, err := chatapi.NewHandler(log, chatSvc, tokens)
	if err != nil {
		be.Close(context.Background())
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		backends: be,
		registry: registry,
		gateway:  gateway,
		auth:     authHandler,
		chat:     chatHandler,
		promReg:  promReg,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backends, a.gateway, a.auth, a.chat, a.promReg)

	handler := WithRequestLogging(mux, a.log)
	handler = WithSecurityHeaders(handler)
	if len(a.cfg.CORSAllowedOrigins) > 0 {
		handler = WithCORS(handler, a.cfg, a.log)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store_backend", a.cfg.StoreBackend)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.backends.Close(shutdownCtx)

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newTokenManager loads the PASETO keypair from the environment. Without a
// configured key the server falls back to an ephemeral keypair, which is for
// development only: issued tokens die with the process.
func newTokenManager(log Logger) (session.AccessTokenManager, error) {
	sessCfg, err := session.LoadConfigFromEnv()
	if err == nil {
		return session.NewPasetoV4PublicManager(sessCfg)
	}
	if !errors.Is(err, session.ErrConfig) {
		return nil, err
	}

	log.Warn("auth.tokens.ephemeral", "reason", "COURIER_PASETO_V4_SECRET_KEY_HEX not set")
	return session.NewEphemeralManager(session.DefaultConfig()), nil
}

// backends bundles the selected persistence layer so the rest of the app is
// backend-agnostic.
type backends struct {
	users identity.Store
	chat  chat.Store

	pool        *pgxpool.Pool
	mongoClient *mongo.Client
}

// newBackends builds identity and chat stores for the configured backend.
func newBackends(ctx context.Context, cfg Config, log Logger) (*backends, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		log.Info("store.backend", "backend", BackendMemory)
		return &backends{
			users: identity.NewMemoryStore(),
			chat:  chat.NewMemoryStore(),
		}, nil

	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("app: COURIER_DATABASE_URL required for postgres backend")
		}
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}

		users, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.PGSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		chatStore, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.PGSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}

		log.Info("store.backend", "backend", BackendPostgres, "schema", cfg.PGSchema)
		return &backends{users: users, chat: chatStore, pool: pool}, nil

	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("app: COURIER_MONGO_URI required for mongo backend")
		}
		client, err := NewMongoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)

		users, err := identity.NewMongoStore(db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		chatStore, err := chat.NewMongoStore(db)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}

		log.Info("store.backend", "backend", BackendMongo, "database", cfg.MongoDatabase)
		return &backends{users: users, chat: chatStore, mongoClient: client}, nil

	default:
		return nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
	}
}

// dbBacked reports whether the backend has external persistence to probe.
func (b *backends) dbBacked() bool {
	return b.pool != nil || b.mongoClient != nil
}

// ping probes the configured backend.
func (b *backends) ping(ctx context.Context, timeout time.Duration) error {
	if b.pool != nil {
		return PingDB(ctx, b.pool, timeout)
	}
	if b.mongoClient != nil {
		return PingMongo(ctx, b.mongoClient, timeout)
	}
	return nil
}

// Close releases backend resources. The app owns the pool/client lifecycle;
// store Close methods are no-ops over borrowed handles.
func (b *backends) Close(ctx context.Context) {
	if b == nil {
		return
	}
	_ = b.chat.Close()
	if b.pool != nil {
		b.pool.Close()
	}
	if b.mongoClient != nil {
		_ = b.mongoClient.Disconnect(ctx)
	}
}
