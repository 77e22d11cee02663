// Command server runs the storegate multi-tenant auth gateway.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, STOREGATE_CONFIG, ./config.yaml, /etc/storegate/config.yaml),
// then environment variables. The most common variables:
//
//	JWT_ACCESS_SECRET        - access token signing secret (required)
//	JWT_REFRESH_SECRET       - refresh token signing secret (required)
//	MULTITENANT_BASE_DOMAIN  - base domain for subdomain tenant resolution
//	STOREGATE_PORT           - listen port (default: 8080)
//	STOREGATE_STORAGE        - storage type: "memory" or "postgres"
//	STOREGATE_POSTGRES_DSN   - PostgreSQL connection string
//	STOREGATE_REDIS_URL      - move refresh tokens to Redis
//	STOREGATE_SEED           - seed dev fixtures into the memory store
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salwakit/storegate/pkg/auth"
	"github.com/salwakit/storegate/pkg/config"
	"github.com/salwakit/storegate/pkg/observability"
	"github.com/salwakit/storegate/pkg/password"
	"github.com/salwakit/storegate/pkg/storage/memory"
	"github.com/salwakit/storegate/pkg/storage/postgres"
	redisstore "github.com/salwakit/storegate/pkg/storage/redis"
	"github.com/salwakit/storegate/pkg/tenancy"
	"github.com/salwakit/storegate/pkg/token"
	"github.com/salwakit/storegate/pkg/transport"
	transporthttp "github.com/salwakit/storegate/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	signerCfg, err := cfg.JWT.SignerConfig()
	if err != nil {
		return fmt.Errorf("jwt config: %w", err)
	}
	signer, err := token.NewSigner(signerCfg)
	if err != nil {
		return fmt.Errorf("creating signer: %w", err)
	}

	hasher, err := password.ForAlgorithm(cfg.Auth.PasswordAlgorithm)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Assemble the stores. Tenants and users share a backend; refresh
	// tokens can be moved to Redis independently.
	var (
		users   auth.UserStore
		refresh auth.RefreshTokenStore
		tenants auth.TenantStore
		dir     tenancy.Directory
		health  func(context.Context) error
	)

	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pg.Close()

		users, refresh, tenants, dir = pg, pg, pg, pg
		health = pg.HealthCheck
		go expiredTokenJanitor(ctx, pg)
		slog.Info("storage enabled", "type", "postgres")

	default:
		mem := memory.New()
		users, refresh, tenants, dir = mem, mem, mem, mem
		slog.Info("storage enabled", "type", "memory")

		if cfg.Storage.Seed {
			tenant, err := memory.Seed(ctx, mem, hasher)
			if err != nil {
				return fmt.Errorf("seeding store: %w", err)
			}
			slog.Info("seeded dev fixtures", "tenant", tenant.Code)
		}
	}

	if cfg.Storage.RefreshTokens.Type == "redis" {
		rs, err := redisstore.New(cfg.Storage.RefreshTokens.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		refresh = rs
		slog.Info("refresh token store enabled", "type", "redis")
	}

	engine := auth.NewEngine(users, refresh, tenants, signer, hasher)
	resolver := tenancy.NewResolver(dir, tenancy.ResolverConfig{
		BaseDomain: cfg.Tenancy.BaseDomain,
		Verifier:   signer,
	})

	var limiter auth.RateLimiter
	if cfg.Auth.LoginRatePerMinute > 0 {
		limiter = auth.NewInProcessLimiter(cfg.Auth.LoginRatePerMinute)
	}

	adapter := transporthttp.NewAdapter(engine, limiter, transporthttp.DefaultConfig())

	api := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(slog.Default()),
		observability.MetricsMiddleware,
		auth.Principal(signer),
		tenancy.Middleware(resolver, cfg.Tenancy.OptionalPaths),
	)(adapter.Handler())

	mux := http.NewServeMux()
	mux.Handle("/v1/", api)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, "storage unavailable\n", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	srv := transporthttp.NewServer(mux,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	slog.Info("storegate starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"base_domain", cfg.Tenancy.BaseDomain,
	)
	return srv.ListenAndServe()
}

// expiredTokenJanitor periodically removes refresh tokens past their
// expiry so the table does not grow without bound.
func expiredTokenJanitor(ctx context.Context, pg *postgres.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.DeleteExpired(ctx)
			if err != nil {
				slog.Warn("expired token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}
