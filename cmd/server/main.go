package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"credgate/internal/authorizer/store"
	"credgate/internal/card"
	"credgate/internal/credential/broker"
	"credgate/internal/credential/cache"
	"credgate/internal/credential/handler"
	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/jssdk"
	"credgate/internal/openplatform"
	"credgate/internal/platform/config"
	"credgate/internal/platform/database"
	"credgate/internal/platform/health"
	"credgate/internal/platform/logger"
	"credgate/internal/platform/metrics"
	"credgate/internal/platform/middleware"
	"credgate/internal/platform/redis"
	"credgate/internal/session"
	httptransport "credgate/internal/transport/http"
	"credgate/pkg/platform/audit"
	"credgate/pkg/platform/tracer"
)

const poolStatsInterval = 15 * time.Second

// authorizerStore is satisfied by both store implementations.
type authorizerStore interface {
	broker.AuthorizerStore
	handler.AuthorizerReader
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("credgate exited", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and serves until ctx is cancelled.
func run(ctx context.Context) error {
	config.LoadEnv(ctx, logger.New("info"), ".env")
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	log.InfoContext(ctx, "initializing credgate",
		"addr", cfg.Server.Addr,
		"environment", cfg.Environment,
		"component_appid", cfg.Platform.ComponentAppID,
	)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		defer rc.Close() //nolint:errcheck
	}

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close() //nolint:errcheck

	healthHandler := health.New(cfg.Environment)

	var credentials cache.Cache
	if rc != nil {
		credentials = cache.NewRedisCache(rc.Client)
		healthHandler.RegisterCheck("redis", rc.Health)
	} else {
		log.WarnContext(ctx, "REDIS_URL not set; using in-process credential cache")
		credentials = cache.NewInMemory()
	}

	var authorizers authorizerStore
	if pool != nil {
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(pool.DB()); err != nil {
				return err
			}
			log.InfoContext(ctx, "database migrations applied")
		}
		authorizers = store.NewPostgres(pool.DB())
		healthHandler.RegisterCheck("postgres", pool.Health)
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set; authorizer records are kept in memory")
		authorizers = store.NewInMemory()
	}

	trc := tracer.NewOTel()
	platform, err := openplatform.New(openplatform.Config{
		BaseURL:            cfg.Platform.BaseURL,
		ComponentAppID:     cfg.Platform.ComponentAppID,
		ComponentAppSecret: cfg.Platform.ComponentAppSecret,
		Timeout:            cfg.Platform.Timeout,
		RequestsPerSecond:  cfg.Platform.RequestsPerSecond,
		Burst:              cfg.Platform.Burst,
		FailureThreshold:   cfg.Platform.FailureThreshold,
		SuccessThreshold:   cfg.Platform.SuccessThreshold,
		Cooldown:           cfg.Platform.Cooldown,
	}, openplatform.WithLogger(log), openplatform.WithTracer(trc))
	if err != nil {
		return err
	}
	healthHandler.RegisterInfo("platform_circuit", func() string {
		return platform.BreakerState().String()
	})

	trail := audit.NewInMemoryStore(0)
	auditLogger := audit.NewLogger(log, trail, audit.WithRequestID(middleware.GetRequestID))

	credentialBroker := broker.New(platform, authorizers, credentials, platform.ComponentAppID(),
		broker.WithLogger(log),
		broker.WithTracer(trc),
		broker.WithMetrics(credmetrics.New()),
		broker.WithAuditLogger(auditLogger),
	)

	issuer, err := newIssuer(cfg.Session, rc, log)
	if err != nil {
		return err
	}

	httpMetrics := metrics.New()
	handlerOpts := []handler.Option{
		handler.WithCardParams(card.New(credentialBroker, card.WithLogger(log))),
		handler.WithJSSDK(jssdk.New(credentialBroker, jssdk.WithLogger(log))),
		handler.WithAuditTrail(trail),
		handler.WithAuditLogger(auditLogger),
		handler.WithMetrics(httpMetrics),
		handler.WithEventsToken(cfg.Platform.EventsToken),
		handler.WithCircuitResetter(platform),
	}
	if cfg.Session.Revocation {
		handlerOpts = append(handlerOpts, handler.WithSessionRevoker(issuer))
	}
	credentialHandler := handler.New(credentialBroker, authorizers, log, handlerOpts...)

	router := httptransport.NewRouter(httptransport.Router{
		Credentials: credentialHandler,
		Health:      healthHandler,
		Sessions:    issuer,
		Metrics:     httpMetrics,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	if rc != nil {
		g.Go(func() error {
			ticker := time.NewTicker(poolStatsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					rc.RecordPoolStats()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newIssuer builds the session issuer. The denylist lives in Redis when it is
// configured so every replica sees the same revocations.
func newIssuer(cfg config.SessionConfig, rc *redis.Client, log *slog.Logger) (*session.Issuer, error) {
	codec, err := session.NewCodec([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithLogger(log)}
	if cfg.Revocation {
		if rc != nil {
			opts = append(opts, session.WithRevocationList(session.NewRedisRevocationList(rc.Client)))
		} else {
			log.Warn("SESSION_REVOCATION enabled without Redis; revocations are per-process")
			opts = append(opts, session.WithRevocationList(session.NewInMemoryRevocationList()))
		}
	}
	return session.NewIssuer(codec, opts...), nil
}
