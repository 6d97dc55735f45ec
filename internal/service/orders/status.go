package orders

import (
	"context"

	"github.com/vladislavdragonenkov/market/internal/domain"
	"github.com/vladislavdragonenkov/market/internal/messaging/kafka"
)

// SetOrderState перезаписывает состояние заказа, добавляет одну запись
// истории и поднимает updatedAt. Граф переходов намеренно не проверяется:
// трекер сохраняет историю, а не валидирует конечный автомат.
func (s *Service) SetOrderState(ctx context.Context, tenantID string, orderID int64, change StateChange) (domain.Order, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	orders := ts.Orders()

	stamp := domain.FormatTimestamp(s.now())
	entry := domain.HistoryEntry{
		Actor:     actorOrDefault(change.Actor),
		State:     change.State,
		Memo:      change.Memo,
		CreatedAt: stamp,
	}

	if err := orders.UpdateState(ctx, orderID, change.State, change.Delivery, stamp, entry); err != nil {
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordHistoryAppend()
	}

	s.emitEvent(tenantID, orderID, kafka.EventTypeOrderStateChange, map[string]any{
		"state": change.State,
		"actor": entry.Actor,
	})

	return orders.Get(ctx, orderID)
}

// SetLineState — то же для одной позиции, адресуемой по товару внутри
// заказа. Отсутствие позиции — ErrLineNotFound, заказ остаётся нетронутым.
func (s *Service) SetLineState(ctx context.Context, tenantID string, orderID, productID int64, change StateChange) (domain.OrderLine, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	orders := ts.Orders()

	stamp := domain.FormatTimestamp(s.now())
	entry := domain.HistoryEntry{
		Actor:     actorOrDefault(change.Actor),
		State:     change.State,
		Memo:      change.Memo,
		CreatedAt: stamp,
	}

	if err := orders.UpdateLineState(ctx, orderID, productID, change.State, change.Delivery, stamp, entry); err != nil {
		return domain.OrderLine{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordHistoryAppend()
	}

	s.emitEvent(tenantID, orderID, kafka.EventTypeLineStateChange, map[string]any{
		"product_id": productID,
		"state":      change.State,
		"actor":      entry.Actor,
	})

	order, err := orders.Get(ctx, orderID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	line, ok := order.Line(productID)
	if !ok {
		return domain.OrderLine{}, domain.ErrLineNotFound
	}
	return line, nil
}

// AttachReview проставляет ссылку на отзыв у позиции с указанным товаром.
func (s *Service) AttachReview(ctx context.Context, tenantID string, orderID, productID, reviewID int64) error {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}

	if err := ts.Orders().SetLineReview(ctx, orderID, productID, reviewID); err != nil {
		return err
	}

	s.emitEvent(tenantID, orderID, kafka.EventTypeReviewAttached, map[string]any{
		"product_id": productID,
		"review_id":  reviewID,
	})
	return nil
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
