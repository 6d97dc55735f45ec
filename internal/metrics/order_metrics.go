package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов.
type OrderMetrics struct {
	// Счётчики оформления
	ordersPlaced      prometheus.Counter
	ordersDryRun      prometheus.Counter
	ordersFailed      prometheus.Counter
	insufficientStock prometheus.Counter

	// Гистограмма времени оформления
	placeDuration prometheus.Histogram

	// Счётчики сопутствующих операций
	sequenceAllocations prometheus.Counter
	historyAppends      prometheus.Counter
	outboxEvents        prometheus.Counter

	// Gauge для оформлений в полёте
	activePlacements prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_orders_placed_total",
			Help: "Total number of orders placed successfully",
		}),
		ordersDryRun: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_orders_dry_run_total",
			Help: "Total number of dry-run order placements",
		}),
		ordersFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_orders_failed_total",
			Help: "Total number of failed order placements",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_orders_insufficient_stock_total",
			Help: "Total number of order placements rejected for insufficient stock",
		}),
		placeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "market_order_place_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		sequenceAllocations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_sequence_allocations_total",
			Help: "Total number of sequence identifiers allocated",
		}),
		historyAppends: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_order_history_appends_total",
			Help: "Total number of history entries appended to orders and lines",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "market_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "market_active_placements",
			Help: "Number of order placements currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик успешно оформленных заказов.
func (m *OrderMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordDryRun увеличивает счётчик пробных оформлений.
func (m *OrderMetrics) RecordDryRun() {
	m.ordersDryRun.Inc()
}

// RecordOrderFailed увеличивает счётчик неудачных оформлений.
func (m *OrderMetrics) RecordOrderFailed() {
	m.ordersFailed.Inc()
}

// RecordInsufficientStock увеличивает счётчик отказов по остатку.
func (m *OrderMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordPlaceDuration записывает время оформления заказа.
func (m *OrderMetrics) RecordPlaceDuration(duration time.Duration) {
	m.placeDuration.Observe(duration.Seconds())
}

// RecordSequenceAllocation увеличивает счётчик выданных идентификаторов.
func (m *OrderMetrics) RecordSequenceAllocation() {
	m.sequenceAllocations.Inc()
}

// RecordHistoryAppend увеличивает счётчик записей истории.
func (m *OrderMetrics) RecordHistoryAppend() {
	m.historyAppends.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordPlacementStarted увеличивает количество оформлений в полёте.
func (m *OrderMetrics) RecordPlacementStarted() {
	m.activePlacements.Inc()
}

// RecordPlacementFinished уменьшает количество оформлений в полёте.
func (m *OrderMetrics) RecordPlacementFinished() {
	m.activePlacements.Dec()
}
