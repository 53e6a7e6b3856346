// Command portal-server runs the user management portal API.
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

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/attempt"
	"github.com/MrEthical07/portalauth/internal/httpapi"
	"github.com/MrEthical07/portalauth/jwt"
	"github.com/MrEthical07/portalauth/metrics"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/password"
	"github.com/MrEthical07/portalauth/store/memory"
	"github.com/MrEthical07/portalauth/store/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	log := logrus.New()
	if err := run(*configPath, log); err != nil {
		log.WithError(err).Fatal("portal-server stopped")
	}
}

func run(configPath string, log *logrus.Logger) error {
	cfg, err := portalauth.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := setupLogger(log, cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.New()

	repo, closeRepo, err := openRepository(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeRepo()

	limiter, closeLimiter, err := openLimiter(ctx, cfg, collector, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	hasher, err := newHasher(cfg.Security)
	if err != nil {
		return err
	}
	codec, err := jwt.NewManager(cfg.TokenConfig())
	if err != nil {
		return err
	}

	builder := portalauth.New().
		WithSecurity(cfg.Security).
		WithRepository(repo).
		WithLimiter(limiter).
		WithHasher(hasher).
		WithTokenIssuer(codec).
		WithNotifier(logNotifier(log)).
		WithRecorder(collector).
		WithLogger(log)
	if cfg.Audit.Enabled {
		auditLog := logrus.New()
		auditLog.SetOutput(os.Stdout)
		auditLog.SetFormatter(&logrus.JSONFormatter{})
		sink := portalauth.NewAsyncSink(portalauth.NewLogSink(auditLog), cfg.Audit.BufferSize, cfg.Audit.DropIfFull)
		defer func() {
			sink.Close()
			if n := sink.Dropped(); n > 0 {
				log.WithField("dropped", n).Warn("audit events dropped")
			}
		}()
		builder = builder.WithAuditSink(sink)
	}
	svc, err := builder.Build()
	if err != nil {
		return err
	}

	filter, err := middleware.NewFilter(codec,
		middleware.WithLogger(log),
		middleware.WithTracer(otel.Tracer("github.com/MrEthical07/portalauth")),
		middleware.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	proxies, err := cfg.HTTP.ProxyPrefixes()
	if err != nil {
		return err
	}
	api, err := httpapi.New(httpapi.Options{
		Service:        svc,
		Filter:         filter,
		Metrics:        collector,
		Logger:         log,
		LoginRate:      cfg.HTTP.LoginRate,
		LoginBurst:     cfg.HTTP.LoginBurst,
		TrustedProxies: proxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(log *logrus.Logger, cfg portalauth.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func openRepository(ctx context.Context, cfg portalauth.StoreConfig) (portalauth.Repository, func(), error) {
	if cfg.Driver == "memory" {
		return memory.New(), func() {}, nil
	}
	dialect, err := sqlstore.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func openLimiter(ctx context.Context, cfg portalauth.Config, collector *metrics.Collector, log logrus.FieldLogger) (attempt.Limiter, func(), error) {
	if cfg.Attempts.Backend != "redis" {
		cache, err := attempt.NewCache(cfg.AttemptOptions())
		if err != nil {
			return nil, nil, err
		}
		collector.TrackCacheSize(cache.Len)
		go cache.Run(ctx)
		return cache, func() {}, nil
	}

	addr := cfg.Redis.Addr
	var embedded *miniredis.Miniredis
	if cfg.Redis.Embedded {
		var err error
		if embedded, err = miniredis.Run(); err != nil {
			return nil, nil, err
		}
		addr = embedded.Addr()
		log.WithField("addr", addr).Warn("using embedded redis; attempt counts are not shared")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	limiter := attempt.NewRedisLimiter(client, attempt.RedisOptions{
		Window:    cfg.Attempts.Window,
		Threshold: cfg.Attempts.Threshold,
	})
	return limiter, func() {
		_ = client.Close()
		if embedded != nil {
			embedded.Close()
		}
	}, nil
}

func newHasher(cfg portalauth.SecurityConfig) (password.Hasher, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := password.NewArgon2(password.DefaultArgon2Params)
	if err != nil {
		return nil, err
	}
	chain := password.Chain{Primary: bc, Bcrypt: bc, Argon2: a2}
	if cfg.Hasher == "argon2" {
		chain.Primary = a2
	}
	return chain, nil
}

// logNotifier stands in for mail delivery. The password itself is only
// visible at debug level.
func logNotifier(log logrus.FieldLogger) portalauth.PasswordNotifier {
	return portalauth.NotifierFunc(func(_ context.Context, firstName, plain, email string) error {
		log.WithField("email", email).Info("new password issued")
		log.WithFields(logrus.Fields{"email": email, "first_name": firstName, "password": plain}).Debug("password delivery")
		return nil
	})
}
