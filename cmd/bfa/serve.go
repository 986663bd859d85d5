package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/config"
	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/handler"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/cache"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/client"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/identity"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/observability"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/session"
	"github.com/boddenberg/lifecover-bfa-go/internal/port"
	"github.com/boddenberg/lifecover-bfa-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// pendingStateTTL bounds how long a Google sign-in may sit on the consent screen.
const pendingStateTTL = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("env-file", ".env", "dotenv file read before the environment")
	serveCmd.Flags().Int("port", 0, "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	// --- Config ---
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("app_env", cfg.AppEnv),
		zap.String("backend_api_url", cfg.BackendAPIURL),
		zap.Bool("redis_sessions", cfg.RedisURL != ""),
		zap.Bool("google_sign_in", cfg.GoogleSignInEnabled()),
		zap.Bool("image_uploads", cfg.ImageHostAPIKey != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("role_cache_ttl", cfg.RoleCacheTTL),
		zap.Duration("quote_ttl", cfg.QuoteTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "lifecover-bfa")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	plainClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// The credential source is the session holder, built below once the
	// backend it registers users with exists.
	bearer := client.NewBearerTransport(http.DefaultTransport, nil)
	backend := client.NewBackend(
		&http.Client{Timeout: cfg.HTTPTimeout, Transport: bearer},
		cfg.BackendAPIURL,
		resilience.NewCircuitBreaker("backend"),
		resilienceCfg,
		logger,
	)

	toolkit := identity.NewToolkit(
		plainClient,
		cfg.IdentityAPIURL,
		cfg.IdentityTokenURL,
		cfg.IdentityAPIKey,
		resilience.NewCircuitBreaker("identity"),
		resilienceCfg,
		logger,
	)

	discovery := identity.NewDiscovery(cfg.IdentityIssuer(), cfg.IdentityProjectID, logger)
	discovery.Start(ctx)

	var google port.OAuthProvider
	if cfg.GoogleSignInEnabled() {
		g, err := identity.NewGoogle(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, logger)
		if err != nil {
			logger.Warn("google sign-in disabled", zap.Error(err))
		} else {
			google = g
		}
	}

	var images port.ImageUploader
	if cfg.ImageHostAPIKey != "" {
		images = client.NewImageHost(
			plainClient,
			cfg.ImageHostURL,
			cfg.ImageHostAPIKey,
			resilience.NewCircuitBreaker("image-host"),
			resilienceCfg,
			logger,
		)
	}

	checks := map[string]handler.Pinger{"backend": backend}

	// --- Session store ---
	var store port.SessionStore
	if cfg.RedisURL != "" {
		rdb, err := session.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect session store: %w", err)
		}
		defer rdb.Close()
		redisStore := session.NewRedisStore(rdb)
		store = redisStore
		checks["session-store"] = redisStore
	} else {
		logger.Warn("REDIS_URL not set, sessions are kept in memory and lost on restart")
		memStore := session.NewMemoryStore(time.Minute)
		defer memStore.Close()
		store = memStore
	}

	// --- Caches ---
	roleCache := cache.New[domain.Role](cfg.RoleCacheTTL)
	defer roleCache.Close()
	quoteCache := cache.New[domain.QuoteResult](cfg.QuoteTTL)
	defer quoteCache.Close()
	pendingCache := cache.New[string](pendingStateTTL)
	defer pendingCache.Close()

	// --- Services ---
	roles := service.NewRoleResolver(backend, roleCache, metrics, logger)
	holder := service.NewSessionHolder(service.SessionHolderDeps{
		Provider:   toolkit,
		Verifiers:  discovery,
		Readiness:  discovery,
		Store:      store,
		Users:      backend,
		Roles:      roles,
		Google:     google,
		Pending:    pendingCache,
		SessionTTL: cfg.SessionTTL,
		Metrics:    metrics,
		Logger:     logger,
	})
	bearer.Source = holder

	quotes := service.NewQuoteService(quoteCache, cfg.QuoteTTL, metrics, logger)

	router := handler.NewRouter(handler.Deps{
		Sessions: holder,
		Cookies:  session.NewCookies(cfg.SessionSecret, cfg.SessionCookieSecure),
		Guard:    service.NewGuard(holder, roles, metrics),
		Quotes:   quotes,
		Catalog:  service.NewCatalogService(backend, backend, logger),
		Customers: service.NewCustomerService(service.CustomerStores{
			Applications:  backend,
			Payments:      backend,
			Claims:        backend,
			AgentRequests: backend,
			Users:         backend,
			Catalog:       backend,
		}, quotes, logger),
		Agents: service.NewAgentService(backend, backend, backend, logger),
		Admin: service.NewAdminService(service.AdminStores{
			Users:         backend,
			Catalog:       backend,
			Applications:  backend,
			Payments:      backend,
			AgentRequests: backend,
		}, roles, metrics, logger),
		Dashboard: service.NewDashboardService(service.DashboardStores{
			Users:         backend,
			Applications:  backend,
			Payments:      backend,
			Claims:        backend,
			Blogs:         backend,
			AgentRequests: backend,
		}, roles, metrics, logger),
		Images:           images,
		Checks:           checks,
		PaymentPublicKey: cfg.PaymentPublicKey,
		Metrics:          metrics,
		Logger:           logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// --- Graceful shutdown ---
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
