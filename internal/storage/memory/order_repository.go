package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// buyerFn резолвит публичный профиль покупателя для join'ов.
type buyerFn func(id int64) (domain.Buyer, bool)

// OrderRepository — in-memory хранилище заказов арендатора. Заказы хранятся
// глубокими копиями: мутации снаружи не влияют на сохранённое состояние,
// а история остаётся append-only.
type OrderRepository struct {
	mu    sync.RWMutex
	items map[int64]domain.Order
	buyer buyerFn
}

func newOrderRepository(buyer buyerFn) *OrderRepository {
	return &OrderRepository{
		items: make(map[int64]domain.Order),
		buyer: buyer,
	}
}

// Create сохраняет новый заказ; повторный ID — конфликт.
func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrDuplicateKey
	}
	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ или ErrOrderNotFound.
func (r *OrderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetForUser возвращает заказ, только если он принадлежит покупателю.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID int64) (domain.Order, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != userID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// GetForSeller возвращает заказ с позициями продавца и публичным профилем
// покупателя. Фильтрация позиций выполняется после отбора заказа.
func (r *OrderRepository) GetForSeller(ctx context.Context, id, sellerID int64) (domain.Order, error) {
	order, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	filtered := filterLines(order.Lines, sellerID)
	if len(filtered) == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order.Lines = filtered
	r.attachBuyer(&order)
	return order, nil
}

// ListByUser возвращает страницу заказов покупателя.
func (r *OrderRepository) ListByUser(_ context.Context, userID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	q = q.Normalize()

	r.mu.RLock()
	matched := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.UserID == userID {
			matched = append(matched, cloneOrder(order))
		}
	}
	r.mu.RUnlock()

	sortOrders(matched, q.Sort)
	page, pagination := paginate(matched, q)
	return page, pagination, nil
}

// ListStates возвращает проекцию состояний заказов и позиций покупателя.
func (r *OrderRepository) ListStates(_ context.Context, userID int64) ([]domain.OrderStateView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]domain.OrderStateView, 0)
	for _, order := range r.items {
		if order.UserID != userID {
			continue
		}
		view := domain.OrderStateView{OrderID: order.ID, State: order.State}
		for _, line := range order.Lines {
			view.Lines = append(view.Lines, domain.LineStateView{ProductID: line.ProductID, State: line.State})
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].OrderID < views[j].OrderID })
	return views, nil
}

// ListBySeller возвращает страницу заказов с позициями продавца.
func (r *OrderRepository) ListBySeller(_ context.Context, sellerID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	q = q.Normalize()

	r.mu.RLock()
	matched := make([]domain.Order, 0)
	for _, order := range r.items {
		if len(filterLines(order.Lines, sellerID)) > 0 {
			matched = append(matched, cloneOrder(order))
		}
	}
	r.mu.RUnlock()

	sortOrders(matched, q.Sort)
	page, pagination := paginate(matched, q)
	for i := range page {
		page[i].Lines = filterLines(page[i].Lines, sellerID)
		r.attachBuyer(&page[i])
	}
	return page, pagination, nil
}

// ListByProduct возвращает заказы с указанным товаром указанного продавца,
// свежие первыми.
func (r *OrderRepository) ListByProduct(_ context.Context, productID, sellerID int64) ([]domain.Order, error) {
	r.mu.RLock()
	matched := make([]domain.Order, 0)
	for _, order := range r.items {
		for _, line := range order.Lines {
			if line.ProductID == productID && line.SellerID == sellerID {
				matched = append(matched, cloneOrder(order))
				break
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	for i := range matched {
		r.attachBuyer(&matched[i])
	}
	return matched, nil
}

// UpdateState перезаписывает состояние заказа и добавляет запись истории.
func (r *OrderRepository) UpdateState(_ context.Context, id int64, state string, delivery map[string]any, updatedAt string, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	order.State = state
	if delivery != nil {
		order.Delivery = cloneMap(delivery)
	}
	order.UpdatedAt = updatedAt
	order.History = append(order.History, cloneEntry(entry))
	r.items[id] = order
	return nil
}

// UpdateLineState — то же для одной позиции; при отсутствии позиции заказ
// не меняется.
func (r *OrderRepository) UpdateLineState(_ context.Context, orderID, productID int64, state string, delivery map[string]any, updatedAt string, entry domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for i := range order.Lines {
		if order.Lines[i].ProductID != productID {
			continue
		}
		order.Lines[i].State = state
		if delivery != nil {
			order.Lines[i].Delivery = cloneMap(delivery)
		}
		order.Lines[i].History = append(order.Lines[i].History, cloneEntry(entry))
		order.UpdatedAt = updatedAt
		r.items[orderID] = order
		return nil
	}
	return domain.ErrLineNotFound
}

// SetLineReview проставляет ссылку на отзыв у совпавшей позиции.
func (r *OrderRepository) SetLineReview(_ context.Context, orderID, productID, reviewID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[orderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	for i := range order.Lines {
		if order.Lines[i].ProductID != productID {
			continue
		}
		order.Lines[i].ReviewID = reviewID
		r.items[orderID] = order
		return nil
	}
	return domain.ErrLineNotFound
}

func (r *OrderRepository) attachBuyer(order *domain.Order) {
	if r.buyer == nil {
		return
	}
	if b, ok := r.buyer(order.UserID); ok {
		order.Buyer = &b
	}
}

func filterLines(lines []domain.OrderLine, sellerID int64) []domain.OrderLine {
	filtered := make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		if line.SellerID == sellerID {
			filtered = append(filtered, line)
		}
	}
	return filtered
}

// sortOrders применяет ключи сортировки по приоритету. Неизвестные поля
// пропускаются: ключи проходят насквозь без валидации.
func sortOrders(orders []domain.Order, keys []domain.SortKey) {
	if len(keys) == 0 {
		keys = []domain.SortKey{{Field: "_id", Desc: true}}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		for _, key := range keys {
			c := compareOrders(&orders[i], &orders[j], key.Field)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareOrders(a, b *domain.Order, field string) int {
	switch field {
	case "_id", "id":
		return compareInt64(a.ID, b.ID)
	case "createdAt":
		return compareString(a.CreatedAt, b.CreatedAt)
	case "updatedAt":
		return compareString(a.UpdatedAt, b.UpdatedAt)
	case "state":
		return compareString(a.State, b.State)
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func paginate(orders []domain.Order, q domain.ListQuery) ([]domain.Order, domain.Pagination) {
	pagination := domain.NewPagination(q, len(orders))
	if q.Limit == 0 {
		return orders, pagination
	}
	start := q.Offset()
	if start >= len(orders) {
		return []domain.Order{}, pagination
	}
	end := start + q.Limit
	if end > len(orders) {
		end = len(orders)
	}
	return orders[start:end], pagination
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
