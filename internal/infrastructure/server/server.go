package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/microhost/internal/api/http"
	"github.com/GriffinCanCode/microhost/internal/api/middleware"
	"github.com/GriffinCanCode/microhost/internal/app"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/microhost/internal/source"
	"github.com/GriffinCanCode/microhost/internal/source/fetch"
	"github.com/GriffinCanCode/microhost/internal/source/scopecss"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	apps    *app.Manager
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing microhost",
		zap.String("port", cfg.Server.Port),
		zap.Duration("fetch_timeout", cfg.Fetch.Timeout),
		zap.Int("fetch_concurrency", cfg.Fetch.Concurrency),
		zap.Bool("scope_css", cfg.Scope.Enabled),
	)

	metrics := monitoring.NewMetrics()

	client := fetch.NewClient(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		RateLimit: cfg.Fetch.RateLimit,
		UserAgent: cfg.Fetch.UserAgent,
		Breaker: resilience.Settings{
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("origin breaker changed state",
					zap.String("origin", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		},
		Logger: logger.Component("fetch"),
	})

	cache := source.NewGlobalCache()
	apps := app.NewManager(app.Options{
		Retriever: client,
		Scoper: scopecss.New(scopecss.Options{
			Enabled: cfg.Scope.Enabled,
			Minify:  cfg.Scope.Minify,
			Prefix:  cfg.Scope.Prefix,
			Logger:  logger.Logger,
		}),
		Cache:        cache,
		Metrics:      metrics,
		Logger:       logger.Component("apps"),
		Concurrency:  cfg.Fetch.Concurrency,
		ContainerTag: cfg.Scope.Prefix,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		MaxAge:       12 * time.Hour,
	}))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(apps, client, cfg.Server.LinkTimeout, logger.Component("api"))
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	httpSrv := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		router:  router,
		httpSrv: httpSrv,
		apps:    apps,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router exposes the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Apps exposes the app manager
func (s *Server) Apps() *app.Manager {
	return s.apps
}

// Logger exposes the server logger
func (s *Server) Logger() *logging.Logger {
	return s.logger
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.httpSrv.Shutdown(ctx)

	// let in-flight stylesheet retrievals settle
	done := make(chan struct{})
	go func() {
		s.apps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("background retrievals still running at shutdown")
	}

	s.logger.Sync()
	return err
}
