package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// user — запись покупателя; чувствительные поля хранятся, но наружу через
// Buyer не отдаются.
type user struct {
	ID           int64
	Name         string
	Email        string
	Image        string
	Password     string
	Address      string
	Type         string
	RefreshToken string
}

// TenantStore — данные одного арендатора в памяти.
type TenantStore struct {
	seqMu sync.Mutex
	// seq хранит следующее значение для выдачи по каждому kind,
	// как counter-документ { _id: kind, no: next }.
	seq map[string]int64

	usersMu sync.RWMutex
	users   map[int64]user

	products *ProductRepository
	orders   *OrderRepository
	carts    *CartRepository
}

func newTenantStore() *TenantStore {
	ts := &TenantStore{
		seq:      make(map[string]int64),
		users:    make(map[int64]user),
		products: newProductRepository(),
		carts:    newCartRepository(),
	}
	ts.orders = newOrderRepository(ts.buyer)
	return ts
}

// NextSeq атомарно выделяет следующий идентификатор для kind.
// Первый вызов возвращает 1 и фиксирует, что следующее значение — 2.
func (t *TenantStore) NextSeq(_ context.Context, kind string) (int64, error) {
	t.seqMu.Lock()
	defer t.seqMu.Unlock()

	next, ok := t.seq[kind]
	if !ok {
		t.seq[kind] = 2
		return 1, nil
	}
	t.seq[kind] = next + 1
	return next, nil
}

func (t *TenantStore) Products() domain.ProductRepository { return t.products }
func (t *TenantStore) Orders() domain.OrderRepository     { return t.orders }
func (t *TenantStore) Carts() domain.CartRepository       { return t.carts }

// SeedUser добавляет покупателя для join'ов в выборках продавца.
func (t *TenantStore) SeedUser(id int64, name, email, image string) {
	t.usersMu.Lock()
	defer t.usersMu.Unlock()
	t.users[id] = user{
		ID:           id,
		Name:         name,
		Email:        email,
		Image:        image,
		Password:     "$2b$10$seeded",
		Address:      "seeded address",
		RefreshToken: "seeded token",
	}
}

// SeedProduct помещает товар в каталог арендатора.
func (t *TenantStore) SeedProduct(p domain.Product) {
	t.products.put(p)
}

// SeedCartItem помещает запись в корзину покупателя.
func (t *TenantStore) SeedCartItem(item domain.CartItem) {
	t.carts.put(item)
}

// buyer возвращает публичную часть профиля покупателя.
func (t *TenantStore) buyer(id int64) (domain.Buyer, bool) {
	t.usersMu.RLock()
	defer t.usersMu.RUnlock()

	u, ok := t.users[id]
	if !ok {
		return domain.Buyer{}, false
	}
	return domain.Buyer{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}, true
}

var _ domain.TenantStore = (*TenantStore)(nil)
