package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

func placedOrderForIntegrationTest(id, userID int64) domain.Order {
	now := domain.FormatTimestamp(time.Now())
	return domain.Order{
		ID:     id,
		UserID: userID,
		Type:   domain.OrderTypeDirect,
		State:  domain.StateOrderPlaced,
		Lines: []domain.OrderLine{
			{
				ProductID: 11, Quantity: 2, SellerID: 7,
				Name: "popcorn", Price: 3000,
				State:   domain.StateOrderPlaced,
				History: []domain.HistoryEntry{{Actor: "user", State: domain.StateOrderPlaced, CreatedAt: now}},
			},
			{
				ProductID: 12, Quantity: 1, SellerID: 8,
				Name: "soda", Price: 1200,
				State:   domain.StateOrderPlaced,
				History: []domain.HistoryEntry{{Actor: "user", State: domain.StateOrderPlaced, CreatedAt: now}},
			},
		},
		Cost:      domain.Cost{Products: 4200, Shipping: 2500, Total: 6700},
		History:   []domain.HistoryEntry{{Actor: "user", State: domain.StateOrderPlaced, CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateGetRoundTrip(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	order := placedOrderForIntegrationTest(1, 42)
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := orders.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.UserID != 42 || got.State != domain.StateOrderPlaced {
		t.Fatalf("unexpected order: %+v", got)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got.Lines))
	}
	if got.Cost.Total != 6700 {
		t.Fatalf("cost not preserved: %+v", got.Cost)
	}
	if len(got.History) != 1 || got.History[0].State != domain.StateOrderPlaced {
		t.Fatalf("initial history not preserved: %+v", got.History)
	}
	line, ok := got.Line(11)
	if !ok {
		t.Fatal("line 11 missing")
	}
	if len(line.History) != 1 {
		t.Fatalf("line history not preserved: %+v", line.History)
	}

	if err := orders.Create(ctx, order); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey on repeated create, got %v", err)
	}

	if _, err := orders.Get(ctx, 999); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := orders.GetForUser(ctx, 1, 43); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign user, got %v", err)
	}
}

func TestOrderRepository_UpdateStateAppendsHistory(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := orders.Create(ctx, placedOrderForIntegrationTest(1, 42)); err != nil {
		t.Fatalf("create order: %v", err)
	}

	later := domain.FormatTimestamp(time.Now().Add(time.Minute))
	entry := domain.HistoryEntry{Actor: "admin", State: domain.StateShipping, CreatedAt: later}
	delivery := map[string]any{"carrier": "cj", "trackingNo": "123"}
	if err := orders.UpdateState(ctx, 1, domain.StateShipping, delivery, later, entry); err != nil {
		t.Fatalf("update state: %v", err)
	}

	got, err := orders.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.State != domain.StateShipping || got.UpdatedAt != later {
		t.Fatalf("state not updated: %+v", got)
	}
	if got.Delivery["trackingNo"] != "123" {
		t.Fatalf("delivery not persisted: %+v", got.Delivery)
	}
	if len(got.History) != 2 || got.History[1].State != domain.StateShipping {
		t.Fatalf("history must be appended, got %+v", got.History)
	}

	if err := orders.UpdateState(ctx, 999, domain.StateShipping, nil, later, entry); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_UpdateLineStateTargetsSingleLine(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := orders.Create(ctx, placedOrderForIntegrationTest(1, 42)); err != nil {
		t.Fatalf("create order: %v", err)
	}

	later := domain.FormatTimestamp(time.Now().Add(time.Minute))
	entry := domain.HistoryEntry{Actor: "seller", State: domain.StateShipping, CreatedAt: later}
	if err := orders.UpdateLineState(ctx, 1, 12, domain.StateShipping, nil, later, entry); err != nil {
		t.Fatalf("update line state: %v", err)
	}

	got, err := orders.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	target, _ := got.Line(12)
	other, _ := got.Line(11)
	if target.State != domain.StateShipping {
		t.Fatalf("target line not updated: %+v", target)
	}
	if other.State != domain.StateOrderPlaced {
		t.Fatalf("sibling line must stay untouched: %+v", other)
	}
	if len(target.History) != 2 {
		t.Fatalf("line history must be appended: %+v", target.History)
	}

	err = orders.UpdateLineState(ctx, 1, 999, domain.StateShipping, nil, later, entry)
	if !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}
	err = orders.UpdateLineState(ctx, 999, 11, domain.StateShipping, nil, later, entry)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SellerViewsFilterLinesAndJoinBuyer(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	seedUserForIntegrationTest(t, store, integrationTenant, 42, "제이지", "jayg@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := orders.Create(ctx, placedOrderForIntegrationTest(1, 42)); err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := orders.GetForSeller(ctx, 1, 7)
	if err != nil {
		t.Fatalf("get for seller: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].ProductID != 11 {
		t.Fatalf("seller must see only own lines: %+v", got.Lines)
	}
	if got.Buyer == nil || got.Buyer.Name != "제이지" || got.Buyer.Email != "jayg@example.com" {
		t.Fatalf("buyer join missing or wrong: %+v", got.Buyer)
	}

	if _, err := orders.GetForSeller(ctx, 1, 999); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign seller, got %v", err)
	}

	list, page, err := orders.ListBySeller(ctx, 7, domain.ListQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if len(list) != 1 || page.Total != 1 {
		t.Fatalf("unexpected seller listing: %d orders, %+v", len(list), page)
	}

	byProduct, err := orders.ListByProduct(ctx, 11, 7)
	if err != nil {
		t.Fatalf("list by product: %v", err)
	}
	if len(byProduct) != 1 || byProduct[0].ID != 1 {
		t.Fatalf("unexpected product listing: %+v", byProduct)
	}
}

func TestOrderRepository_ListByUserPagination(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for id := int64(1); id <= 5; id++ {
		if err := orders.Create(ctx, placedOrderForIntegrationTest(id, 42)); err != nil {
			t.Fatalf("create order %d: %v", id, err)
		}
	}

	list, page, err := orders.ListByUser(ctx, 42, domain.ListQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 {
		t.Fatalf("unexpected pagination: %+v", page)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders on page, got %d", len(list))
	}
	// Сортировка по умолчанию — свежие первыми.
	if list[0].ID != 3 || list[1].ID != 2 {
		t.Fatalf("unexpected page content: %d, %d", list[0].ID, list[1].ID)
	}

	all, page, err := orders.ListByUser(ctx, 42, domain.ListQuery{Page: 1, Limit: 0})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 5 || page.TotalPages != 1 {
		t.Fatalf("limit=0 must return everything on one page: %d orders, %+v", len(all), page)
	}

	asc, _, err := orders.ListByUser(ctx, 42, domain.ListQuery{
		Page: 1, Limit: 0,
		Sort: []domain.SortKey{{Field: "createdAt"}, {Field: "_id"}},
	})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	if asc[0].ID != 1 {
		t.Fatalf("ascending sort expected, first id %d", asc[0].ID)
	}
}

func TestOrderRepository_SetLineReviewAndListStates(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ts := resolveTenantForIntegrationTest(t, store, integrationTenant)
	orders := ts.Orders()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := orders.Create(ctx, placedOrderForIntegrationTest(1, 42)); err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := orders.SetLineReview(ctx, 1, 12, 77); err != nil {
		t.Fatalf("set line review: %v", err)
	}

	got, err := orders.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	reviewed, _ := got.Line(12)
	plain, _ := got.Line(11)
	if reviewed.ReviewID != 77 {
		t.Fatalf("review must land on matched line: %+v", reviewed)
	}
	if plain.ReviewID != 0 {
		t.Fatalf("other line must stay without review: %+v", plain)
	}

	if err := orders.SetLineReview(ctx, 1, 999, 77); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}

	states, err := orders.ListStates(ctx, 42)
	if err != nil {
		t.Fatalf("list states: %v", err)
	}
	if len(states) != 1 || states[0].OrderID != 1 || len(states[0].Lines) != 2 {
		t.Fatalf("unexpected state projection: %+v", states)
	}
}
