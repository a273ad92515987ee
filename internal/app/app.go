package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"qtodash/internal/cache"
	"qtodash/internal/config"
	"qtodash/internal/dataprocessing"
	apierrors "qtodash/internal/errors"
	"qtodash/internal/exporter"
	"qtodash/internal/infrastructure"
	customMiddleware "qtodash/internal/middleware"
	"qtodash/internal/presentation"
	"qtodash/internal/services"
	handlers "qtodash/internal/transport/http"
	ws "qtodash/internal/websocket"
)

const AppName = "Quantity Take-Off Dashboard"

// BuildTime is set at compile time
var BuildTime = ""

// Application represents the main application container
type Application struct {
	Config         *config.Config
	Router         *chi.Mux
	Server         *http.Server
	Logger         *slog.Logger
	OTelProviders  *infrastructure.OTelProviders
	WebFS          fs.FS
	WebSocketHub   *ws.Hub
	DatasetService *services.DatasetService
	HealthService  *services.HealthService
	CacheManager   *cache.Manager
	Presenters     *presentation.Registry
	RateLimiter    *customMiddleware.RateLimiter
	ErrorHandler   *apierrors.ErrorHandler
}

// NewApplication loads configuration, initializes logging and wires the
// application around the embedded web assets.
func NewApplication(webFS fs.FS) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", config.Version))

	return New(cfg, webFS, logger)
}

// New wires an application from an already loaded configuration
func New(cfg *config.Config, webFS fs.FS, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		WebFS:         webFS,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices builds the hub, the dataset service and its caches
func (a *Application) initializeServices() error {
	meter := a.OTelProviders.Meter

	wsMetrics, err := ws.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)

	datasetMetrics, err := infrastructure.CreateDatasetMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create dataset metrics: %w", err)
	}

	opts := services.DatasetServiceOptions{
		Metrics:       datasetMetrics,
		Events:        a.WebSocketHub,
		SheetsTimeout: a.Config.Sheets.Timeout,
		Logger:        a.Logger,
	}
	if a.Config.Sheets.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Sheets.Timeout)
		defer cancel()
		reader, err := dataprocessing.NewSheetsReaderFromFile(ctx, a.Config.Sheets.CredentialsFile, a.Logger)
		if err != nil {
			return apierrors.NewConfigError("failed to initialize Google Sheets reader", err)
		}
		opts.Sheets = reader
	}

	datasets, err := services.NewDatasetService(a.Config.Dataset, opts)
	if err != nil {
		return err
	}
	a.DatasetService = datasets

	a.CacheManager = cache.NewManager(a.Logger)
	datasets.RegisterCaches(a.CacheManager)
	if a.Config.Security.RateLimit.Enabled {
		a.RateLimiter = customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		a.CacheManager.Register(a.RateLimiter.Limiters())
	}

	a.Presenters = presentation.NewRegistry()
	exporter.RegisterAll(a.Presenters, a.Logger)
	a.Presenters.Register("text", presentation.NewTextPresenter())

	a.HealthService = services.NewHealthService(config.Version, BuildTime, datasets, a.WebSocketHub, a.Logger)
	return nil
}

func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → headers → limits → session → Timeout
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return err
	}
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.getCORSConfig()))
	}
	if a.RateLimiter != nil {
		r.Use(a.RateLimiter.Handler)
	}
	r.Use(customMiddleware.Session(customMiddleware.SessionConfig{
		CookieName: config.SessionCookieName,
		Secure:     a.Config.Security.SecureCookies,
		MaxAge:     a.Config.Dataset.SessionTTL,
		Logger:     a.Logger,
	}))
	r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout))

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	if err := a.setupHTMLRoutes(r); err != nil {
		return err
	}
	a.setupAPIRoutes(r)

	upgrader := ws.NewUpgrader(a.Config.WebSocket.ReadBufferSize, a.Config.WebSocket.WriteBufferSize, a.Config.Security.AllowedOrigins)
	r.Handle(config.WebSocketEndpoint, handlers.NewWebSocketHandler(a.WebSocketHub, upgrader, a.Logger))
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validator := customMiddleware.NewValidator(a.Logger)

	datasetHandler := handlers.NewDatasetHandler(
		a.DatasetService,
		a.Presenters,
		validator,
		a.ErrorHandler,
		a.Logger,
		handlers.DatasetHandlerOptions{MaxUploadBytes: a.Config.Server.MaxUploadBytes},
	)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	clientLogHandler := handlers.NewClientLogHandler(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/dataset", datasetHandler.Routes())

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.Post("/client-log", clientLogHandler.Handle)
	})
}

// setupHTMLRoutes serves the dashboard page and its assets. Without web
// assets only the API is served.
func (a *Application) setupHTMLRoutes(r chi.Router) error {
	if a.WebFS == nil {
		a.Logger.Warn("No web assets configured, serving API only")
		return nil
	}

	dashboard, err := handlers.NewDashboardHandler(a.WebFS, a.Config.Dataset.TopN, a.DatasetService.SheetsEnabled(), a.Logger)
	if err != nil {
		return err
	}
	r.Get("/", dashboard.ServePage)
	r.Get("/static/*", dashboard.ServeStatic)
	return nil
}

func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "Traceparent"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelError),
	}
}

// Start launches the background services and the HTTP server. A server
// failure cancels ctx through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", config.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	a.WebSocketHub.Start()
	a.CacheManager.StartCleanup(a.Config.Dataset.CleanupInterval)

	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.performStartupHealthCheck(ctx)

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", "http://"+listener.Addr().String()),
		slog.Bool("sheets_enabled", a.DatasetService.SheetsEnabled()))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()
	a.CacheManager.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted or until the server fails
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.WarnContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck logs configuration problems that do not stop
// the server
func (a *Application) performStartupHealthCheck(ctx context.Context) {
	status := a.HealthService.ReadinessCheck(ctx)
	if status.Status != "ready" {
		a.Logger.WarnContext(ctx, "Startup readiness check failed", slog.Any("services", status.Services))
		return
	}
	if a.Config.Logging.Output != "console" {
		if _, err := os.Stat(a.Config.Logging.FilePath); err != nil {
			a.Logger.WarnContext(ctx, "Log file not accessible",
				slog.String("path", a.Config.Logging.FilePath),
				slog.String("error", err.Error()))
		}
	}
	a.Logger.InfoContext(ctx, "Startup health check passed",
		slog.Duration("session_ttl", a.Config.Dataset.SessionTTL),
		slog.Int("top_n", a.Config.Dataset.TopN),
		slog.Bool("correct_other", a.Config.Dataset.CorrectOther))
}
