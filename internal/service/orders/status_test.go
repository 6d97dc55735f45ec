package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

func placeTestOrder(t *testing.T, f *fixture, userID int64) domain.Order {
	t.Helper()

	order, err := f.service.PlaceOrder(context.Background(), testTenant, PlaceOrderRequest{
		UserID: userID,
		Type:   domain.OrderTypeDirect,
		Lines: []LineRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	return order
}

func newStatusFixture(t *testing.T) *fixture {
	t.Helper()

	f := newFixture(t)
	f.seedProduct(1, 7, 1500, 10, 0, "popcorn")
	f.seedProduct(2, 8, 700, 10, 0, "soda")
	return f
}

func TestSetOrderState_AppendsHistory(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)
	require.Len(t, placed.History, 1)

	updated, err := f.service.SetOrderState(context.Background(), testTenant, placed.ID, StateChange{
		State:    domain.StateShipping,
		Delivery: map[string]any{"trackingNo": "1Z999"},
		Actor:    "seller",
		Memo:     map[string]any{"carrier": "cj"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StateShipping, updated.State)
	assert.Equal(t, "1Z999", updated.Delivery["trackingNo"])

	// История только растёт: старт оформления остаётся первой записью.
	require.Len(t, updated.History, 2)
	assert.Equal(t, domain.StateOrderPlaced, updated.History[0].State)
	assert.Equal(t, domain.StateShipping, updated.History[1].State)
	assert.Equal(t, "seller", updated.History[1].Actor)
	assert.Equal(t, "cj", updated.History[1].Memo["carrier"])
	assert.NotEqual(t, placed.UpdatedAt, "")
}

func TestSetOrderState_DefaultsActorToSystem(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)

	updated, err := f.service.SetOrderState(context.Background(), testTenant, placed.ID, StateChange{
		State: domain.StateDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, "system", updated.History[len(updated.History)-1].Actor)
}

func TestSetOrderState_UnknownOrder(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)

	_, err := f.service.SetOrderState(context.Background(), testTenant, 999, StateChange{State: domain.StateShipping})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestSetLineState_TargetsSingleLine(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)

	line, err := f.service.SetLineState(context.Background(), testTenant, placed.ID, 2, StateChange{
		State: domain.StateShipping,
		Actor: "seller",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StateShipping, line.State)
	require.Len(t, line.History, 2)

	// Соседняя позиция не изменилась.
	order, err := f.service.GetOrder(context.Background(), testTenant, placed.ID, 0)
	require.NoError(t, err)
	sibling, ok := order.Line(1)
	require.True(t, ok)
	assert.Equal(t, domain.StateOrderPlaced, sibling.State)
	assert.Len(t, sibling.History, 1)
}

func TestSetLineState_MissingLineLeavesOrderUntouched(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)

	_, err := f.service.SetLineState(context.Background(), testTenant, placed.ID, 999, StateChange{
		State: domain.StateShipping,
	})
	require.ErrorIs(t, err, domain.ErrLineNotFound)

	_, err = f.service.SetLineState(context.Background(), testTenant, 999, 1, StateChange{
		State: domain.StateShipping,
	})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	order, err := f.service.GetOrder(context.Background(), testTenant, placed.ID, 0)
	require.NoError(t, err)
	for _, l := range order.Lines {
		assert.Equal(t, domain.StateOrderPlaced, l.State)
		assert.Len(t, l.History, 1)
	}
}

func TestAttachReview_TargetsMatchedLine(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)

	err := f.service.AttachReview(context.Background(), testTenant, placed.ID, 2, 777)
	require.NoError(t, err)

	order, err := f.service.GetOrder(context.Background(), testTenant, placed.ID, 0)
	require.NoError(t, err)

	reviewed, ok := order.Line(2)
	require.True(t, ok)
	assert.Equal(t, int64(777), reviewed.ReviewID)

	other, ok := order.Line(1)
	require.True(t, ok)
	assert.Zero(t, other.ReviewID)

	err = f.service.AttachReview(context.Background(), testTenant, placed.ID, 999, 778)
	require.ErrorIs(t, err, domain.ErrLineNotFound)
}

func TestStatusChanges_EmitOutboxEvents(t *testing.T) {
	t.Parallel()

	f := newStatusFixture(t)
	placed := placeTestOrder(t, f, 42)

	_, err := f.service.SetOrderState(context.Background(), testTenant, placed.ID, StateChange{State: domain.StateShipping})
	require.NoError(t, err)
	_, err = f.service.SetLineState(context.Background(), testTenant, placed.ID, 1, StateChange{State: domain.StateShipping})
	require.NoError(t, err)
	err = f.service.AttachReview(context.Background(), testTenant, placed.ID, 1, 777)
	require.NoError(t, err)

	var types []string
	for _, msg := range f.outbox.AllPending() {
		types = append(types, msg.EventType)
	}
	assert.Equal(t, []string{
		"order.placed",
		"order.state_changed",
		"order.line_state_changed",
		"order.review_attached",
	}, types)
}
