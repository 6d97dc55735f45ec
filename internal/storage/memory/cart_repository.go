package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// CartRepository — in-memory корзина арендатора.
type CartRepository struct {
	mu    sync.RWMutex
	items map[int64]domain.CartItem
}

func newCartRepository() *CartRepository {
	return &CartRepository{items: make(map[int64]domain.CartItem)}
}

func (r *CartRepository) put(item domain.CartItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

// ListByUser возвращает записи корзины покупателя, упорядоченные по ID.
func (r *CartRepository) ListByUser(_ context.Context, userID int64) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CartItem, 0)
	for _, item := range r.items {
		if item.UserID == userID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// DeleteMany удаляет записи корзины покупателя по списку идентификаторов.
// Чужие записи не затрагиваются.
func (r *CartRepository) DeleteMany(_ context.Context, userID int64, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		item, ok := r.items[id]
		if !ok || item.UserID != userID {
			continue
		}
		delete(r.items, id)
	}
	return nil
}

var _ domain.CartRepository = (*CartRepository)(nil)
