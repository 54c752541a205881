package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swipswaps/react-render-server/internal/cache"
	"github.com/swipswaps/react-render-server/internal/config"
	"github.com/swipswaps/react-render-server/internal/fetcher"
	"github.com/swipswaps/react-render-server/internal/httpapi"
	"github.com/swipswaps/react-render-server/internal/logging"
	"github.com/swipswaps/react-render-server/internal/middleware"
	"github.com/swipswaps/react-render-server/internal/monitoring"
	"github.com/swipswaps/react-render-server/internal/render"
	"github.com/swipswaps/react-render-server/internal/secret"
)

// Server wraps the HTTP server and its render-pipeline dependencies.
type Server struct {
	http         *http.Server
	router       *gin.Engine
	orchestrator *render.Orchestrator
	log          *logging.Logger
}

// New builds a Server from configuration: logger, metrics, fetcher,
// cache, and Render Orchestrator, wired behind the middleware stack and
// routes described in internal/httpapi.
func New(cfg *config.Config) (*Server, error) {
	logCfg := logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	metrics := monitoring.NewMetrics()

	f := fetcher.New(cfg.Fetcher).WithRecorder(metrics)
	c := cache.New(f).WithRecorder(metrics)

	orchestrator := render.New(render.Deps{
		Cache:           c,
		Log:             log,
		RenderTimeout:   cfg.Render.Timeout,
		ApolloTimeout:   cfg.Apollo.Timeout,
		SandboxRecorder: metrics,
		StatsRecorder:   metrics,
		MaxConcurrent:   cfg.Render.MaxConcurrent,
	})

	secretChecker := secret.New(cfg.Secret.FilePath, cfg.Server.Dev)
	handlers := httpapi.NewHandlers(orchestrator, c)

	router := newRouter(cfg, metrics, secretChecker, handlers)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	return &Server{
		http:         &http.Server{Addr: addr, Handler: router},
		router:       router,
		orchestrator: orchestrator,
		log:          log,
	}, nil
}

func newRouter(cfg *config.Config, metrics *monitoring.Metrics, secretChecker *secret.Checker, handlers *httpapi.Handlers) *gin.Engine {
	if cfg.Server.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultRenderCORSConfig()))
	router.Use(monitoring.Middleware(metrics))

	if cfg.RateLimit.Enabled {
		rateCfg := middleware.DefaultRenderRateLimitConfig()
		rateCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rateCfg.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rateCfg))
	}

	router.GET("/_api/ping", handlers.Ping)
	router.GET("/_api/version", handlers.Version)
	router.GET("/_ah/health", handlers.Lifecycle)
	router.GET("/_ah/start", handlers.Lifecycle)
	router.GET("/_ah/stop", handlers.Lifecycle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := router.Group("/")
	guarded.Use(middleware.BodyLimit(cfg.Render.MaxBodyBytes))
	guarded.Use(middleware.Secret(secretChecker))
	guarded.POST("/render", handlers.Render)
	guarded.POST("/flush", handlers.Flush)

	return router
}

// Run starts the HTTP server and blocks until it stops or errors.
func (s *Server) Run() error {
	s.log.Info("render service listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the server's bind address, for tests and logging.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Close shuts the HTTP server down gracefully and releases the Render
// Orchestrator's concurrency limiter.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.http.Shutdown(ctx)
	s.orchestrator.Close()
	_ = s.log.Sync()
	return err
}
