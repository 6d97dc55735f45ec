package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config описывает настройки запуска сервиса заказов. Значения читаются
// из окружения; пустой PostgresDSN переключает сервис на in-memory
// хранилище, пустой список брокеров отключает публикацию событий.
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// Tenants — allow-list арендаторов; схема на каждого.
	Tenants []string `envconfig:"TENANTS" default:"shop1"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	OrderTopic   string   `envconfig:"ORDER_TOPIC" default:"market.order.events"`
	DLQTopic     string   `envconfig:"DLQ_TOPIC" default:"market.dlq"`

	OutboxPollInterval    time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize       int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts     int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetention       time.Duration `envconfig:"OUTBOX_RETENTION" default:"24h"`
	OutboxCleanupInterval time.Duration `envconfig:"OUTBOX_CLEANUP_INTERVAL" default:"10m"`
	OutboxBacklogLimit    int           `envconfig:"OUTBOX_BACKLOG_LIMIT" default:"1000"`

	ShippingFee           int64 `envconfig:"SHIPPING_FEE" default:"2500"`
	FreeShippingThreshold int64 `envconfig:"FREE_SHIPPING_THRESHOLD" default:"30000"`
}

// LoadConfig читает конфигурацию из переменных окружения.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("market", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	tenants := make([]string, 0, len(c.Tenants))
	for _, id := range c.Tenants {
		if t := strings.TrimSpace(id); t != "" {
			tenants = append(tenants, t)
		}
	}
	if len(tenants) == 0 {
		return Config{}, fmt.Errorf("at least one tenant is required")
	}
	c.Tenants = tenants

	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, b := range c.KafkaBrokers {
		if t := strings.TrimSpace(b); t != "" {
			brokers = append(brokers, t)
		}
	}
	c.KafkaBrokers = brokers

	return c, nil
}
