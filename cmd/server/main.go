package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/admindash/internal/domain"
	"github.com/aryan0dhankhar/admindash/internal/handler"
	"github.com/aryan0dhankhar/admindash/internal/infrastructure/logger"
	redisinfra "github.com/aryan0dhankhar/admindash/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/admindash/internal/observability/metrics"
	"github.com/aryan0dhankhar/admindash/internal/observability/tracing"
	"github.com/aryan0dhankhar/admindash/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/admindash/internal/repository"
	"github.com/aryan0dhankhar/admindash/internal/security"
	"github.com/aryan0dhankhar/admindash/internal/security/audit"
	"github.com/aryan0dhankhar/admindash/internal/security/auth"
	"github.com/aryan0dhankhar/admindash/internal/security/middleware"
	"github.com/aryan0dhankhar/admindash/internal/security/ratelimit"
	"github.com/aryan0dhankhar/admindash/internal/service"
	"github.com/aryan0dhankhar/admindash/internal/worker"
	"github.com/aryan0dhankhar/admindash/pkg/config"
	"github.com/aryan0dhankhar/admindash/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting admindash server",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, "admindash", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Open the user store
	store, docPath, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open user store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore.Close()

	guarded := repository.NewGuardedStore(
		store,
		cfg.StoreBackend,
		circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		log,
	)

	// 5. Initialize services
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "admindash", auth.WithTTL(cfg.TokenTTL))

	directory := service.NewDirectory(guarded, hasher, service.DirectoryOptions{
		DefaultPassword:      cfg.DefaultPassword,
		AllowDefaultPassword: cfg.AllowDefaultPassword,
		ExtraRoles:           cfg.ExtraRoles,
	}, log)

	if cfg.SeedOnEmpty {
		if _, err := directory.Seed(ctx, service.DefaultSeed()); err != nil {
			log.Error("failed to seed users", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	statsCache := service.NewStatsCache(directory, cfg.StatsCacheTTL)
	directory.OnChange(statsCache.Invalidate)

	authService := service.NewAuthService(directory, hasher, tokenManager, cfg.BlockInactiveLogin, log)

	// 6. Initialize security components
	loginLimiter := ratelimit.NewLimiter(cfg.LoginRateLimit, cfg.RateWindow)
	apiLimiter := ratelimit.NewLimiter(cfg.APIRateLimit, cfg.RateWindow)
	auditLogger := audit.NewLogger(log)

	var authz *security.AuthorizationService
	if cfg.EnforceRoles {
		authz = security.NewAuthorizationService(log)
	}

	// 7. Setup HTTP routes
	mux := handler.NewRouter(handler.RouterConfig{
		Auth: handler.NewAuthHandler(authService, handler.LoginThrottle{
			Limiter: loginLimiter,
			Max:     cfg.LoginRateLimit,
			Window:  cfg.RateWindow,
		}, auditLogger, log),
		Users:      handler.NewUsersHandler(directory, log),
		Dashboard:  handler.NewDashboardHandler(statsCache),
		Health:     handler.NewHealthHandler(map[string]handler.Pinger{"store": guarded}, log),
		Validator:  auth.NewValidator(tokenManager),
		APILimiter: apiLimiter,
		Audit:      auditLogger,
		Authz:      authz,
		Metrics:    promhttp.Handler(),
		Logger:     log,
	})

	// Chain middleware: tracing -> request ID -> metrics -> CORS -> sanitize -> content type -> body limit
	rootHandler := otelhttp.NewHandler(
		middleware.RequestID(log)(
			metrics.HTTPMetricsMiddleware(
				middleware.CORS(cfg.CORSAllowedOrigins)(
					middleware.SanitizeInputs(log)(
						middleware.ValidateJSONContentType(log)(
							middleware.LimitBody(log, 1<<20)(mux),
						),
					),
				),
			),
		),
		"admindash",
	)

	// 8. Start store janitor in background
	janitor := worker.NewStoreJanitor(guarded, docPath, cfg.CorruptRetention, cfg.JanitorInterval, log)
	go janitor.Start(ctx)

	// 9. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Bool("enforce_roles", cfg.EnforceRoles),
		slog.Int("api_rate_limit", cfg.APIRateLimit),
		slog.Int("login_rate_limit", cfg.LoginRateLimit),
		slog.Duration("rate_window", cfg.RateWindow),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop store janitor
	loginLimiter.Stop()
	apiLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the configured backend. docPath is only set for the file
// store; the returned closer releases backend connections.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.UserStore, string, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := redisinfra.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, "", nil, err
		}
		return repository.NewRedisUserStore(client, cfg.RedisKey, log), "", client, nil

	case config.BackendPostgres:
		pool, err := database.NewConnectionPool(ctx, database.FromAppConfig(cfg.Database), log)
		if err != nil {
			return nil, "", nil, err
		}
		store := repository.NewPostgresUserStore(pool.GetDB(), log)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, "", nil, err
		}
		return store, "", pool, nil

	default:
		store := repository.NewFileUserStore(cfg.UsersFile, repository.CorruptPolicy(cfg.StoreCorruptPolicy), log)
		if err := store.Ping(ctx); err != nil {
			return nil, "", nil, err
		}
		return store, cfg.UsersFile, nopCloser{}, nil
	}
}
