package orders

import (
	"context"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// GetOrder возвращает заказ. userID > 0 ограничивает выборку заказами
// самого покупателя.
func (s *Service) GetOrder(ctx context.Context, tenantID string, orderID, userID int64) (domain.Order, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	if userID > 0 {
		return ts.Orders().GetForUser(ctx, orderID, userID)
	}
	return ts.Orders().Get(ctx, orderID)
}

// ListOrders возвращает страницу заказов покупателя.
func (s *Service) ListOrders(ctx context.Context, tenantID string, userID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return ts.Orders().ListByUser(ctx, userID, q)
}

// ListStates возвращает проекцию состояний заказов и позиций покупателя —
// лёгкую выборку для экрана отслеживания.
func (s *Service) ListStates(ctx context.Context, tenantID string, userID int64) ([]domain.OrderStateView, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return ts.Orders().ListStates(ctx, userID)
}

// GetSellerOrder возвращает заказ глазами продавца: только его позиции
// плюс публичный профиль покупателя.
func (s *Service) GetSellerOrder(ctx context.Context, tenantID string, orderID, sellerID int64) (domain.Order, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	return ts.Orders().GetForSeller(ctx, orderID, sellerID)
}

// ListSellerOrders возвращает страницу заказов с позициями продавца.
func (s *Service) ListSellerOrders(ctx context.Context, tenantID string, sellerID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return ts.Orders().ListBySeller(ctx, sellerID, q)
}

// ListOrdersByProduct возвращает заказы с указанным товаром продавца.
func (s *Service) ListOrdersByProduct(ctx context.Context, tenantID string, productID, sellerID int64) ([]domain.Order, error) {
	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return ts.Orders().ListByProduct(ctx, productID, sellerID)
}
