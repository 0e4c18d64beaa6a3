package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/junctionhq/junction/gateway/internal/api/http"
	"github.com/junctionhq/junction/gateway/internal/api/middleware"
	"github.com/junctionhq/junction/gateway/internal/domain/catalog"
	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/domain/schedule"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/tracing"
	gatewayProvider "github.com/junctionhq/junction/gateway/internal/providers/gateway"
	"github.com/junctionhq/junction/gateway/internal/providers/transform"
	"github.com/junctionhq/junction/gateway/internal/providers/webpage"
	"github.com/junctionhq/junction/gateway/internal/service"
	"github.com/junctionhq/junction/gateway/internal/upstream"
	"github.com/junctionhq/junction/gateway/internal/ws"
)

// Server wires the gateway together and owns its lifecycle. Start
// binds the listener; Stop runs the drain sequence.
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	router     *gin.Engine
	conns      *conn.Registry
	dispatcher *dispatch.Dispatcher
	scheduler  *schedule.Scheduler

	listener   net.Listener
	httpServer *http.Server
	accepting  atomic.Bool
	started    atomic.Bool
}

// NewServer builds a fully wired server from configuration. It fails
// when the log level is invalid, the catalog cannot be loaded, or the
// dispatch table is inconsistent.
func NewServer(cfg *config.Config) (*Server, error) {
	return newServer(cfg, monitoring.New())
}

// newServer wires everything around an injected metrics collector so
// tests can use an isolated Prometheus registry.
func newServer(cfg *config.Config, metrics *monitoring.Metrics) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}

	logger.Info("Initializing gateway",
		zap.String("port", cfg.Server.Port),
		zap.String("workflow_url", cfg.Upstream.WorkflowURL),
		zap.String("capability_url", cfg.Upstream.CapabilityURL),
	)

	tracer := tracing.New("gateway", logger.Logger)

	conns := conn.NewRegistry(logger, cfg.Gateway.WriteTimeout)

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if cat.Len() > 0 {
		logger.Info("Workflow catalog loaded",
			zap.String("path", cfg.Catalog.Path),
			zap.Int("workflows", cat.Len()),
			zap.Int("schedules", len(cat.Schedules())),
		)
	}

	client := upstream.NewClient(cfg.Upstream, logger, metrics)
	workflow := upstream.NewWorkflowHandler(client, cat)

	services := service.NewRegistry()
	registerProviders(services, conns, metrics, logger)

	capability := upstream.NewCapabilityHandler(client, services)
	fanout := dispatch.NewFanout(conns, logger, metrics)

	dispatcher, err := dispatch.New(conns, logger, metrics, tracer, []dispatch.Registration{
		{Handler: dispatch.NewPingHandler(), Mode: dispatch.Sync},
		{Handler: workflow, Mode: dispatch.Async},
		{Handler: capability, Mode: dispatch.Async},
		{Handler: fanout, Mode: dispatch.Sync},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring dispatcher: %w", err)
	}

	scheduler, err := schedule.New(cat, workflow, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("configuring scheduler: %w", err)
	}

	s := &Server{
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		conns:      conns,
		dispatcher: dispatcher,
		scheduler:  scheduler,
	}

	wsHandler := ws.NewHandler(conns, dispatcher, cfg.Gateway, logger, metrics, s.Accepting)
	handlers := apihttp.NewHandlers(conns, services, client, workflow, fanout, cat, scheduler, metrics, logger, s.Accepting)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
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

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/api/services", handlers.ListServices)

	// Upstream workflow trigger over plain HTTP
	router.POST("/n8n/trigger/:workflow", handlers.TriggerWorkflow)

	// Inbound webhooks fan out to every connected client. They share
	// one budget so a noisy source cannot starve socket traffic.
	webhooks := router.Group("/webhooks")
	if cfg.RateLimit.Enabled {
		webhooks.Use(middleware.GlobalRateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	webhooks.POST("/:source", handlers.ReceiveWebhook)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
	logger.Info("Gateway initialized",
		zap.Strings("kinds", dispatcher.Kinds()),
		zap.Int("services", len(services.List(nil))),
	)
	return s, nil
}

// Start binds the listener and begins serving in the background. A
// failure to bind is fatal and reported as a BindError; every later
// fault is pushed to clients as an error envelope instead.
func (s *Server) Start() error {
	addr := s.config.BindAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return &protocol.BindError{Addr: addr, Cause: err}
	}

	s.listener = ln
	s.httpServer = &http.Server{Handler: s.router}
	s.started.Store(true)
	s.accepting.Store(true)

	s.scheduler.Start()

	s.logger.Info("Gateway listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server exited", zap.Error(err))
		}
	}()
	return nil
}

// Accepting reports whether new connections are being admitted. It
// flips false at the start of the drain sequence.
func (s *Server) Accepting() bool {
	return s.accepting.Load()
}

// Addr returns the bound listen address. Before Start it returns the
// configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.BindAddr()
}

/// Stop drains and shuts the gateway down: refuse new connections,
// notify connected clients, let in-flight dispatches finish within the
// drain timeout, then close every socket and the listener. Calling
// Stop before Start, or twice, is a no-op.
func (s *Server) Stop() error {
	if !s.started.CompareAndSwap(true, false) {
		return nil
	}
	s.accepting.Store(false)

	s.logger.Info("Gateway draining",
		zap.Duration("timeout", s.config.Gateway.DrainTimeout),
		zap.Int("connections", s.conns.Count()),
	)

	s.scheduler.Stop()

	notice := protocol.NewShutdown("gateway is shutting down")
	for _, cn := range s.conns.Snapshot() {
		if err := cn.Send(notice); err != nil {
			s.logger.Debug("Shutdown notice skipped",
				zap.String("conn_id", cn.ID().String()),
				zap.Error(err),
			)
		}
	}

	if !s.dispatcher.Drain(s.config.Gateway.DrainTimeout) {
		s.logger.Warn("Drain timeout elapsed with dispatches in flight")
	}

	closed := s.conns.CloseAll()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP server shutdown", zap.Error(err))
		}
	}

	s.logger.Info("Gateway stopped", zap.Int("connections_closed", closed))
	s.logger.Sync()
	return nil
}

func registerProviders(services *service.Registry, conns *conn.Registry, metrics *monitoring.Metrics, logger *logging.Logger) {
	// Gateway introspection provider
	gwProvider := gatewayProvider.NewProvider(conns, services, metrics)
	if err := services.Register(gwProvider); err != nil {
		logger.Warn("Failed to register gateway provider", zap.Error(err))
	}

	// Webpage provider
	wpProvider := webpage.NewProvider()
	if err := services.Register(wpProvider); err != nil {
		logger.Warn("Failed to register webpage provider", zap.Error(err))
	}

	// Transform provider
	tfProvider := transform.NewProvider()
	if err := services.Register(tfProvider); err != nil {
		logger.Warn("Failed to register transform provider", zap.Error(err))
	}
}
