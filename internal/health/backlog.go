package health

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// BacklogChecker следит за размером очереди transactional outbox.
// Недоступное хранилище — unhealthy; очередь больше порога — degraded:
// заказы ещё принимаются, но события отстают.
type BacklogChecker struct {
	name      string
	repo      domain.OutboxRepository
	threshold int
}

// NewBacklogChecker создаёт проверку backlog с порогом threshold записей.
func NewBacklogChecker(name string, repo domain.OutboxRepository, threshold int) *BacklogChecker {
	if threshold <= 0 {
		threshold = 1000
	}
	return &BacklogChecker{
		name:      name,
		repo:      repo,
		threshold: threshold,
	}
}

// Check возвращает статус очереди outbox.
func (c *BacklogChecker) Check() Check {
	start := time.Now()

	stats, err := c.repo.Stats()
	duration := time.Since(start)
	if err != nil {
		return Check{
			Name:       c.name,
			Status:     StatusUnhealthy,
			Message:    err.Error(),
			DurationMs: duration.Milliseconds(),
		}
	}

	if stats.PendingCount > c.threshold {
		return Check{
			Name:       c.name,
			Status:     StatusDegraded,
			Message:    fmt.Sprintf("%d pending messages exceed threshold %d", stats.PendingCount, c.threshold),
			DurationMs: duration.Milliseconds(),
		}
	}

	return Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: duration.Milliseconds(),
	}
}

var _ Checker = (*BacklogChecker)(nil)
