// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/news-portal/internal/config"
	"github.com/bissquit/news-portal/internal/domain"
	"github.com/bissquit/news-portal/internal/identity"
	"github.com/bissquit/news-portal/internal/identity/jwt"
	identitypostgres "github.com/bissquit/news-portal/internal/identity/postgres"
	"github.com/bissquit/news-portal/internal/news"
	newspostgres "github.com/bissquit/news-portal/internal/news/postgres"
	"github.com/bissquit/news-portal/internal/pkg/ctxlog"
	"github.com/bissquit/news-portal/internal/pkg/httputil"
	"github.com/bissquit/news-portal/internal/pkg/metrics"
	"github.com/bissquit/news-portal/internal/pkg/postgres"
	"github.com/bissquit/news-portal/internal/version"
	"github.com/bissquit/news-portal/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server

	newsService     *news.Service
	identityService *identity.Service
}

// New creates a new application instance: it connects to the database,
// applies migrations when enabled, bootstraps the admin account and builds
// the router.
func New(cfg *config.Config) (*App, error) {
	logger := ctxlog.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	if err := prometheus.Register(metrics.NewDBPoolCollector(db)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			db.Close()
			return nil, fmt.Errorf("register db metrics: %w", err)
		}
	}

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
	}

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	if err := app.bootstrapAdmin(connectCtx); err != nil {
		db.Close()
		return nil, err
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.Get().String(),
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the servers and closes the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	// Shutdown both servers in parallel
	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.CharsetMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, a.config.Server.OpenAPISpecPath)
	})

	hasher, err := newPasswordHasher(a.config.Auth.PasswordHasher)
	if err != nil {
		return nil, err
	}

	identityRepo := identitypostgres.NewRepository(a.db)
	jwtAuth := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	}, identityRepo)
	a.identityService = identity.NewService(identityRepo, hasher, jwtAuth)
	identityHandler := identity.NewHandler(a.identityService, identity.CookieSettings{
		Secure:          a.config.Cookie.Secure,
		Domain:          a.config.Cookie.Domain,
		SessionDuration: a.config.JWT.TokenDuration,
	})

	newsRepo := newspostgres.NewRepository(a.db)
	a.newsService = news.NewService(newsRepo)
	newsHandler := news.NewHandler(a.newsService)

	pages, err := news.NewPages(a.newsService)
	if err != nil {
		return nil, fmt.Errorf("create pages: %w", err)
	}
	r.Group(func(r chi.Router) {
		r.Use(httputil.OptionalAuthMiddleware(a.identityService))
		pages.RegisterRoutes(r)
	})

	loginLimiter := httputil.NewIPRateLimiter(a.config.Auth.LoginRate, a.config.Auth.LoginBurst)

	r.Route("/api/v1", func(r chi.Router) {
		identityHandler.RegisterRoutes(r, loginLimiter.Middleware)
		newsHandler.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(a.identityService))

			identityHandler.RegisterProtectedRoutes(r)
			newsHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleAdmin))
				identityHandler.RegisterAdminRoutes(r)
				r.Get("/admin/stats", a.statsHandler)
			})
		})
	})

	return r, nil
}

func newPasswordHasher(name string) (identity.PasswordHasher, error) {
	switch name {
	case config.HasherBcrypt:
		return identity.NewBcryptHasher(), nil
	case config.HasherSHA256:
		slog.Warn("using unsalted sha256 password hashing; prefer bcrypt")
		return identity.SHA256Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// bootstrapAdmin creates the configured administrator when no account uses
// its email yet.
func (a *App) bootstrapAdmin(ctx context.Context) error {
	b := a.config.Bootstrap
	if b.AdminEmail == "" {
		return nil
	}

	created, err := a.identityService.EnsureAdmin(ctx, b.AdminName, b.AdminEmail, b.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		a.logger.Info("admin account created", "email", b.AdminEmail)
	}
	return nil
}

// StatsResponse is the body of GET /admin/stats.
type StatsResponse struct {
	Articles int64 `json:"articles"`
	Users    int64 `json:"users"`
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := a.newsService.Count(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	users, err := a.identityService.Count(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, StatsResponse{Articles: articles, Users: users})
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Get())
}
