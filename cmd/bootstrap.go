package cmd

import (
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/backstage/services/calendar/config"
	"example.com/backstage/services/calendar/internal/cache"
	"example.com/backstage/services/calendar/internal/database"
	"example.com/backstage/services/calendar/internal/metrics"
	"example.com/backstage/services/calendar/internal/services"
	"example.com/backstage/services/calendar/internal/tracing"
)

// app holds everything the api and worker commands share
type app struct {
	cfg        config.Config
	db         *gorm.DB
	readOnlyDB *gorm.DB
	cache      *cache.TemplateCache
	tracer     tracing.Tracer
	registry   *prometheus.Registry
	service    *services.InstanceService
}

func configureLogging(cfg config.LoggingConfig, environment string) {
	if cfg.Format == "console" || environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if cfg.Level == "" {
		return
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, keeping default")
		return
	}
	zerolog.SetGlobalLevel(level)
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	configureLogging(cfg.Logging, cfg.Environment)

	db, readOnlyDB, err := database.Connect(cfg.DB, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	templateCache, err := cache.NewTemplateCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		templateCache = nil
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewDisabledTracer()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(registry)
	}

	var serviceCache services.TemplateCache
	if templateCache.Enabled() {
		serviceCache = templateCache
	}

	service := services.NewInstanceService(
		services.NewRepositories(db, readOnlyDB),
		serviceCache,
		m,
		tracer,
		log.Logger.With().Str("component", "instance_service").Logger(),
		cfg.Query.DefaultLimit,
	)

	return &app{
		cfg:        cfg,
		db:         db,
		readOnlyDB: readOnlyDB,
		cache:      templateCache,
		tracer:     tracer,
		registry:   registry,
		service:    service,
	}, nil
}

func (a *app) close() {
	a.tracer.Close()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis cache")
		}
	}

	if err := database.Close(a.db, a.readOnlyDB); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connections")
	}
}
