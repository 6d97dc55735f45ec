package health

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

type stubOutbox struct {
	stats domain.OutboxStats
	err   error
}

func (s *stubOutbox) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return msg, nil
}
func (s *stubOutbox) PullPending(int) ([]domain.OutboxMessage, error) { return nil, nil }
func (s *stubOutbox) Stats() (domain.OutboxStats, error)             { return s.stats, s.err }
func (s *stubOutbox) MarkSent(string) error                          { return nil }
func (s *stubOutbox) MarkFailed(string) error                        { return nil }
func (s *stubOutbox) DeleteFinished(time.Time, int) (int, error)     { return 0, nil }

var _ domain.OutboxRepository = (*stubOutbox)(nil)

func TestBacklogChecker_Healthy(t *testing.T) {
	checker := NewBacklogChecker("outbox", &stubOutbox{
		stats: domain.OutboxStats{PendingCount: 10},
	}, 100)

	check := checker.Check()
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", check.Status)
	}
}

func TestBacklogChecker_DegradedAboveThreshold(t *testing.T) {
	checker := NewBacklogChecker("outbox", &stubOutbox{
		stats: domain.OutboxStats{PendingCount: 101},
	}, 100)

	check := checker.Check()
	if check.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", check.Status)
	}
	if !strings.Contains(check.Message, "101") {
		t.Errorf("expected message with pending count, got %q", check.Message)
	}
}

func TestBacklogChecker_UnhealthyOnStorageError(t *testing.T) {
	checker := NewBacklogChecker("outbox", &stubOutbox{
		err: errors.New("storage down"),
	}, 100)

	check := checker.Check()
	if check.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", check.Status)
	}
	if check.Message != "storage down" {
		t.Errorf("expected error message, got %q", check.Message)
	}
}
