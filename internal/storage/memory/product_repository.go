package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// ProductRepository — in-memory каталог арендатора. Проверка остатка и
// инкремент buy_quantity выполняются под одним мьютексом, поэтому два
// параллельных заказа не могут продать сверх доступного.
type ProductRepository struct {
	mu    sync.Mutex
	items map[int64]domain.Product
}

func newProductRepository() *ProductRepository {
	return &ProductRepository{items: make(map[int64]domain.Product)}
}

func (r *ProductRepository) put(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = p
}

// Get возвращает копию товара или ProductNotFoundError.
func (r *ProductRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

// CommitPurchase условно увеличивает buy_quantity: проверка остатка и запись —
// одна операция.
func (r *ProductRepository) CommitPurchase(_ context.Context, id, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	if p.Quantity-p.BuyQuantity < qty {
		return &domain.InsufficientStockError{
			ProductID: p.ID,
			Name:      p.Name,
			Available: p.Quantity - p.BuyQuantity,
		}
	}
	p.BuyQuantity += qty
	r.items[id] = p
	return nil
}

// ReleasePurchase — компенсация неудавшегося оформления.
func (r *ProductRepository) ReleasePurchase(_ context.Context, id, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	p.BuyQuantity -= qty
	if p.BuyQuantity < 0 {
		p.BuyQuantity = 0
	}
	r.items[id] = p
	return nil
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
