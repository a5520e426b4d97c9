package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/calendar/config"
	"example.com/backstage/services/calendar/internal/api/handlers"
	"example.com/backstage/services/calendar/internal/api/middleware"
	"example.com/backstage/services/calendar/internal/tracing"
)

// Service is everything the HTTP layer reads from
type Service interface {
	handlers.InstanceReader
	handlers.OccurrencePreviewer
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	service    Service
	tracer     tracing.Tracer
	gatherer   prometheus.Gatherer
	logger     zerolog.Logger
}

// NewServer creates a new HTTP server. A nil gatherer disables /metrics.
func NewServer(cfg config.Config, service Service, tracer tracing.Tracer, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	if tracer == nil {
		tracer = tracing.NewDisabledTracer()
	}

	server := &Server{
		config:   cfg,
		service:  service,
		tracer:   tracer,
		gatherer: gatherer,
		logger:   logger,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
	}

	return server
}

// Router exposes the configured engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.logger))

	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	handlers.NewInstanceHandler(s.service, s.config.Query.MaxIDs).RegisterRoutes(router)
	handlers.NewRecurrenceHandler(s.service).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.config.Metrics.Enabled && s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
