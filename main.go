package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"signal-gateway/internal/api"
	"signal-gateway/internal/broker"
	"signal-gateway/internal/events"
	"signal-gateway/internal/health"
	"signal-gateway/internal/monitor"
	"signal-gateway/internal/persistence"
	"signal-gateway/internal/registry"
	"signal-gateway/internal/signal"
	"signal-gateway/pkg/config"
	"signal-gateway/pkg/db"
	"signal-gateway/pkg/i18n"
	"signal-gateway/pkg/instance"
	"signal-gateway/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg(i18n.Get("ConfigLoadFailed"))
	}

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log := logger.New(cfg.LogLevel)
	log.Info().Msg(i18n.M().Starting)
	log.Info().Msgf(i18n.M().ConfigLoaded, cfg.Port, cfg.BrokerKind)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msgf(i18n.M().UsingDBPath, cfg.DBPath)
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg(i18n.M().DBInitFailed)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg(i18n.M().DBMigrationsFailed)
	}

	bus := events.NewBus()

	var prom *monitor.Prometheus
	if cfg.MetricsEnabled {
		prom = monitor.NewPrometheus()
	}
	metrics := monitor.NewSystemMetrics(prom)
	mon := &monitor.Monitor{
		Bus:     bus,
		Metrics: metrics,
		Sink:    monitor.LogSink{Log: logger.Component(log, "alerts")},
		Log:     logger.Component(log, "monitor"),
	}
	mon.Start(ctx)

	var audit *persistence.BatchWriter
	if cfg.AuditEnabled {
		audit = persistence.NewBatchWriter(database, cfg.AuditBatchSize, cfg.AuditFlushInterval, logger.Component(log, "audit"))
		defer audit.Close()
		(&persistence.Recorder{Bus: bus, Writer: audit, Log: logger.Component(log, "audit")}).Start(ctx)
	}

	reg := registry.New(database, cfg.LookupCacheTTL, logger.Component(log, "registry"))
	reg.ObserveLookups(metrics.LookupLatency.RecordDuration)
	go runCleanup(ctx, reg, log)

	engine := signal.NewEngine(signal.Settings{
		MasterSecret:   cfg.SecretKey,
		CipherKey:      cfg.EncryptionKey,
		DefaultMapping: signal.KeywordMapping(cfg.DefaultKeywords),
	}, reg)

	publisher, err := openPublisher(cfg, logger.Component(log, "broker"))
	if err != nil {
		log.Fatal().Err(err).Msg(i18n.M().BrokerOpenFailed)
	}
	log.Info().Msgf(i18n.M().BrokerOpened, cfg.BrokerKind)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg(i18n.M().BrokerCloseError)
		}
	}()

	checker := health.NewChecker(database, 2*time.Second)
	grpcServer := health.NewGRPCServer(checker, 10*time.Second, logger.Component(log, "health"))
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg(i18n.M().GRPCServerError)
	}
	go grpcServer.Watch(ctx)
	go func() {
		log.Info().Msgf(i18n.M().GRPCListening, cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg(i18n.M().GRPCServerError)
		}
	}()

	server := api.NewServer(api.Deps{
		Engine:     engine,
		Publisher:  broker.NewTee(publisher, bus),
		Registry:   reg,
		DB:         database,
		Bus:        bus,
		Metrics:    metrics,
		Prom:       prom,
		Health:     checker,
		Audit:      audit,
		Log:        logger.Component(log, "api"),
		JWTSecret:  cfg.JWTSecret,
		EventStore: cfg.EventStore,
		RoutingKey: cfg.RoutingKey,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Msgf(i18n.M().ServerListening, cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg(i18n.M().APIServerError)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg(i18n.M().ShuttingDown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg(i18n.M().APIServerError)
	}
	grpcServer.Stop()
	log.Info().Msg(i18n.M().ShutdownComplete)
}

func openPublisher(cfg *config.Config, log zerolog.Logger) (broker.Publisher, error) {
	id := instance.ID()
	return broker.Open(broker.Config{
		Kind: cfg.BrokerKind,
		AMQP: broker.AMQPConfig{
			URL:             cfg.BrokerURL,
			ExchangeType:    cfg.BrokerExchangeType,
			Durable:         cfg.BrokerDurable,
			ContentType:     cfg.BrokerContentType,
			ContentEncoding: cfg.BrokerContentEncoding,
			DeliveryMode:    uint8(cfg.BrokerDeliveryMode),
			AppID:           id,
		},
		Redis: broker.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			MaxLen:   int64(cfg.RedisStreamMaxLen),
			Instance: id,
		},
	}, log)
}

// runCleanup drops expired registry entries until ctx is done.
func runCleanup(ctx context.Context, reg *registry.Registry, log zerolog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reg.Cleanup(); n > 0 {
				log.Debug().Int("entries", n).Msg("registry cache cleanup")
			}
		}
	}
}
