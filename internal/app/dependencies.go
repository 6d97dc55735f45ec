package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/market/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/market/internal/health"
	"github.com/vladislavdragonenkov/market/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/market/internal/service/orders"
	"github.com/vladislavdragonenkov/market/internal/service/outbox"
	"github.com/vladislavdragonenkov/market/internal/service/pricing"
	"github.com/vladislavdragonenkov/market/internal/storage/memory"
	"github.com/vladislavdragonenkov/market/internal/storage/postgres"
	"github.com/vladislavdragonenkov/market/internal/version"
)

// Dependencies содержит собранный граф зависимостей приложения.
type Dependencies struct {
	Store  domain.Store
	Outbox domain.OutboxRepository
	Orders *orders.Service
	Health *healthcheck.Handler

	OutboxWorker  *outbox.Worker
	CleanupWorker *outbox.CleanupWorker

	producer *kafka.Producer
	logger   *log.Entry
}

// NewDependencies собирает зависимости по конфигурации. PostgresDSN
// пустой — всё хранится в памяти; Kafka-брокеры не заданы — события
// копятся в outbox без публикации.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store, outboxRepo, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	calc := pricing.NewCalculator()
	calc.ShippingFee = cfg.ShippingFee
	calc.FreeShippingThreshold = cfg.FreeShippingThreshold

	ordersSvc := orders.NewService(store, calc, outboxRepo, logger.WithField("component", "orders"))

	deps := &Dependencies{
		Store:  store,
		Outbox: outboxRepo,
		Orders: ordersSvc,
		logger: logger,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			deps.producer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

			publisher := kafka.NewOutboxPublisher(producer, cfg.OrderTopic)
			dlqPublisher := kafka.NewOutboxPublisher(producer, cfg.DLQTopic)

			deps.OutboxWorker = outbox.NewWorker(
				outboxRepo,
				publisher,
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(dlqPublisher),
				outbox.WithPollInterval(cfg.OutboxPollInterval),
				outbox.WithBatchSize(cfg.OutboxBatchSize),
				outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			)
		}
	}

	deps.CleanupWorker = outbox.NewCleanupWorker(
		outboxRepo,
		outbox.WithCleanupLogger(logger.WithField("component", "outbox-cleanup-worker")),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithRetention(cfg.OutboxRetention),
	)

	deps.Health = buildHealth(cfg, store, outboxRepo)

	return deps, nil
}

func buildStorage(ctx context.Context, cfg Config, logger *log.Entry) (domain.Store, domain.OutboxRepository, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		store, err := memory.NewStore(cfg.Tenants)
		if err != nil {
			return nil, nil, fmt.Errorf("init memory storage: %w", err)
		}
		return store, memory.NewOutboxRepository(), nil
	}

	store, err := postgres.NewStore(cfg.PostgresDSN, cfg.Tenants)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres storage: %w", err)
	}
	outboxRepo, err := postgres.NewOutboxRepository(ctx, store)
	if err != nil {
		return nil, nil, fmt.Errorf("init outbox repository: %w", err)
	}
	return store, outboxRepo, nil
}

func buildHealth(cfg Config, store domain.Store, outboxRepo domain.OutboxRepository) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())

	if pg, ok := store.(*postgres.Store); ok {
		handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pg.Ping(ctx)
		}))
	} else {
		handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			return nil
		}))
	}

	handler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", outboxRepo, cfg.OutboxBacklogLimit))

	return handler
}

// Close освобождает внешние ресурсы в обратном порядке сборки.
func (d *Dependencies) Close() {
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			d.logger.Info("kafka producer closed")
		}
	}
	if d.Store != nil {
		if err := d.Store.Teardown(); err != nil {
			d.logger.WithError(err).Warn("failed to teardown storage")
		}
	}
}
