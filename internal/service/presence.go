package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/aggregator"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/clock"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/config"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/database"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/events"
	httpapi "github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/http"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/presence"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/repository"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/sweeper"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/telemetry"
	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/watcher"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	ServiceName     = "monitor-attendance"
	shutdownTimeout = 10 * time.Second

	eventQueueSize      = 1024
	eventDeliverTimeout = 30 * time.Second
)

// Stores the persistence behind the core.
type Stores struct {
	Entries   repository.EntryStore
	Alerts    repository.AlertStore
	Directory repository.Directory
}

// PresenceService wires stores, core components, publishers and the HTTP API.
type PresenceService struct {
	config *config.Config
	logger *zap.Logger

	db            *sql.DB
	redisClient   *redis.Client
	mqttPublisher *events.MQTTPublisher
	asyncEvents   *events.Async

	clock      clock.Clock
	engine     *presence.Engine
	watcher    *watcher.Watcher
	aggregator *aggregator.Aggregator
	sweeper    *sweeper.Sweeper
	handler    http.Handler
	server     *http.Server
}

// NewPresenceService connects every configured backend and builds the service.
func NewPresenceService(cfg *config.Config, logger *zap.Logger) (*PresenceService, error) {
	clk, err := clock.NewSystem(cfg.Presence.CivilTimeZone)
	if err != nil {
		return nil, err
	}

	s := &PresenceService{config: cfg, logger: logger, clock: clk}

	// 1. stores
	var stores Stores
	switch cfg.StoreBackend {
	case "memory":
		stores = memoryStores(logger)
	default:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db); err != nil {
				s.Stop()
				return nil, err
			}
		}
		stores = Stores{
			Entries:   repository.NewEntryRepository(db, logger),
			Alerts:    repository.NewAlertRepository(db, logger),
			Directory: repository.NewDirectoryRepository(db, logger),
		}
	}

	// 2. outbound events
	publisher, err := s.connectPublishers()
	if err != nil {
		s.Stop()
		return nil, err
	}

	s.build(stores, publisher)
	return s, nil
}

// NewPresenceServiceWith builds the service over given stores and clock without
// connecting any backend.
func NewPresenceServiceWith(cfg *config.Config, logger *zap.Logger, stores Stores, clk clock.Clock, publisher events.Publisher) *PresenceService {
	s := &PresenceService{config: cfg, logger: logger, clock: clk}
	s.build(stores, publisher)
	return s
}

func (s *PresenceService) build(stores Stores, publisher events.Publisher) {
	cfg := s.config

	s.watcher = watcher.NewWatcher(
		stores.Entries,
		stores.Alerts,
		stores.Directory.AdminIDs,
		s.clock,
		publisher,
		cfg.Presence.Threshold(),
		cfg.Presence.ClosedLookback,
		s.logger,
	)
	s.engine = presence.NewEngine(
		stores.Entries,
		stores.Directory,
		s.clock,
		s.watcher,
		publisher,
		cfg.Presence.OperationTimeout,
		s.logger,
	)
	s.aggregator = aggregator.NewAggregator(stores.Entries, s.clock, s.logger)
	s.sweeper = sweeper.NewSweeper(s.watcher, cfg.Presence.SweepInterval, s.logger)

	router := httpapi.NewRouter(s.logger)
	router.RegisterHealthRoutes(s.clock)
	router.RegisterPresenceRoutes(httpapi.NewPresenceHandler(s.engine, s.aggregator, stores.Directory, s.clock, s.logger))
	router.RegisterReportRoutes(httpapi.NewReportHandler(s.aggregator, stores.Directory, s.clock, s.logger))
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(stores.Alerts, s.clock, s.logger))

	s.handler = telemetry.WrapHandler(router, ServiceName)
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *PresenceService) connectPublishers() (events.Publisher, error) {
	cfg := s.config
	var publishers []events.Publisher

	if cfg.Redis.Addr != "" {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		publishers = append(publishers, events.NewRedisStreamPublisher(s.redisClient, cfg.Redis.Stream, cfg.Redis.StreamMaxLen, s.logger))
	}

	if cfg.MQTT.Broker != "" {
		p, err := events.NewMQTTPublisher(&cfg.MQTT, s.logger)
		if err != nil {
			return nil, err
		}
		s.mqttPublisher = p
		publishers = append(publishers, p)
	}

	if cfg.Webhook.URL != "" {
		publishers = append(publishers, events.NewWebhookPublisher(&cfg.Webhook, s.logger))
	}

	s.logger.Info("Event publishers configured",
		zap.Bool("redis_stream", cfg.Redis.Addr != ""),
		zap.Bool("mqtt", cfg.MQTT.Broker != ""),
		zap.Bool("webhook", cfg.Webhook.URL != ""),
	)
	if len(publishers) == 0 {
		return nil, nil
	}
	// committed commands never wait on brokers or the webhook
	s.asyncEvents = events.NewAsync(events.NewFanout(s.logger, publishers...), eventQueueSize, eventDeliverTimeout, s.logger)
	return s.asyncEvents, nil
}

// Handler the traced HTTP API.
func (s *PresenceService) Handler() http.Handler {
	return s.handler
}

// Watcher exposes the threshold watcher for on-demand sweeps.
func (s *PresenceService) Watcher() *watcher.Watcher {
	return s.watcher
}

// Start serves HTTP and runs the sweeper until ctx is done, then shuts the server down.
func (s *PresenceService) Start(ctx context.Context) error {
	s.logger.Info("Starting presence service",
		zap.String("addr", s.config.HTTP.Addr),
		zap.String("store_backend", s.config.StoreBackend),
		zap.Float64("excess_threshold_hours", s.config.Presence.ExcessThresholdHours),
		zap.String("civil_time_zone", s.clock.Location().String()),
		zap.Duration("sweep_interval", s.config.Presence.SweepInterval),
	)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = s.sweeper.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("failed to serve http: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down http server", zap.Error(err))
	}
	<-sweepDone
	return nil
}

// Stop closes every backend connection.
func (s *PresenceService) Stop() error {
	s.logger.Info("Stopping presence service")

	if s.asyncEvents != nil {
		s.asyncEvents.Close()
	}
	if s.mqttPublisher != nil {
		s.mqttPublisher.Close()
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
	}
	return nil
}

// memoryStores in-process stores with a small demo directory for local runs.
func memoryStores(logger *zap.Logger) Stores {
	entries := repository.NewMemoryEntryStore()
	dir := repository.NewMemoryDirectory()
	dir.AddMonitor(models.Monitor{ID: 1, DisplayName: "Administrador", Role: models.RoleAdmin, Verified: true})
	dir.AddMonitor(models.Monitor{ID: 2, DisplayName: "Monitor 2", Role: models.RoleMonitor, Verified: true})
	dir.AddMonitor(models.Monitor{ID: 3, DisplayName: "Monitor 3", Role: models.RoleMonitor, Verified: true})
	dir.AddRoom(models.Room{ID: 1, Name: "Sala 1", Code: "S1", Capacity: 30})
	dir.AddRoom(models.Room{ID: 2, Name: "Sala 2", Code: "S2", Capacity: 30})

	logger.Warn("Using in-memory stores; data is lost on restart")
	return Stores{
		Entries:   entries,
		Alerts:    repository.NewMemoryAlertStore(entries),
		Directory: dir,
	}
}
