package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderPlaced      EventType = "order.placed"
	EventTypeOrderStateChange EventType = "order.state_changed"
	EventTypeLineStateChange  EventType = "order.line_state_changed"
	EventTypeReviewAttached   EventType = "order.review_attached"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "market.order.events"
	TopicDeadLetterQueue = "market.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	TenantID  string                 `json:"tenant_id"`
	OrderID   int64                  `json:"order_id"`
	UserID    int64                  `json:"user_id"`
	State     string                 `json:"state"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, tenantID string, orderID, userID int64, state string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		TenantID:  tenantID,
		OrderID:   orderID,
		UserID:    userID,
		State:     state,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
