package memory_test

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

func TestCartRepository_ListAndDelete(t *testing.T) {
	ts := newTenant(t)
	ctx := context.Background()

	ts.SeedCartItem(domain.CartItem{ID: 1, UserID: 4, ProductID: 1, Quantity: 2})
	ts.SeedCartItem(domain.CartItem{ID: 2, UserID: 4, ProductID: 7, Quantity: 1})
	ts.SeedCartItem(domain.CartItem{ID: 3, UserID: 5, ProductID: 1, Quantity: 1})

	items, err := ts.Carts().ListByUser(ctx, 4)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 cart items, got %d", len(items))
	}

	// Удаление по списку идентификаторов не затрагивает чужие записи.
	if err := ts.Carts().DeleteMany(ctx, 4, []int64{1, 3}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	items, _ = ts.Carts().ListByUser(ctx, 4)
	if len(items) != 1 || items[0].ID != 2 {
		t.Fatalf("unexpected remaining items %+v", items)
	}
	foreign, _ := ts.Carts().ListByUser(ctx, 5)
	if len(foreign) != 1 {
		t.Fatalf("foreign cart must be untouched, got %+v", foreign)
	}
}
