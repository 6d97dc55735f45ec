package domain

import (
	"context"
	"time"
)

// PricingService описывает прайсинг-коллаборатора. Для ядра это чёрный ящик:
// стоимость — чистая функция позиций, скидки и покупателя, ошибки
// прокидываются вызывающей стороне без изменений.
type PricingService interface {
	GetCost(ctx context.Context, lines []OrderLine, discount Discount, userID int64) (Cost, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
	// DeleteFinished удаляет отправленные и провалившиеся записи старше before.
	DeleteFinished(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID string
	// TenantID — арендатор, в хранилище которого произошло событие.
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
