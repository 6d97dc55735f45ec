package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/market/internal/domain"
	"github.com/vladislavdragonenkov/market/internal/service/orders"
	"github.com/vladislavdragonenkov/market/internal/service/outbox"
	"github.com/vladislavdragonenkov/market/internal/service/pricing"
	"github.com/vladislavdragonenkov/market/internal/storage/memory"
)

const lifecycleTenant = "shop1"

// capturePublisher собирает опубликованные события вместо Kafka.
type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *capturePublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.EventType)
	}
	return types
}

var _ domain.OutboxPublisher = (*capturePublisher)(nil)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа:
// оформление, трекинг состояний, отзыв и доставку событий через outbox.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	tenant    *memory.TenantStore
	outbox    *memory.OutboxRepository
	pricing   *pricing.Calculator
	service   *orders.Service
	published *capturePublisher
	worker    *outbox.Worker
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	store, err := memory.NewStore([]string{lifecycleTenant})
	require.NoError(suite.T(), err)

	suite.store = store
	suite.tenant = store.Tenant(lifecycleTenant)
	suite.outbox = memory.NewOutboxRepository()
	suite.pricing = pricing.NewCalculator()
	suite.published = &capturePublisher{}

	suite.service = orders.NewServiceWithoutMetrics(store, suite.pricing, suite.outbox, logger)
	suite.worker = outbox.NewWorker(suite.outbox, suite.published,
		outbox.WithLogger(logger),
		outbox.WithBatchSize(50),
	)

	suite.tenant.SeedUser(42, "제이지", "jayg@example.com", "jayg.jpg")
	suite.tenant.SeedProduct(domain.Product{
		ID:       1,
		SellerID: 7,
		Name:     "popcorn",
		Price:    1500,
		Quantity: 5,
	})
	suite.tenant.SeedProduct(domain.Product{
		ID:       2,
		SellerID: 8,
		Name:     "soda",
		Price:    700,
		Quantity: 10,
	})
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	suite.tenant.SeedCartItem(domain.CartItem{ID: 100, UserID: 42, ProductID: 1, Quantity: 2})
	suite.tenant.SeedCartItem(domain.CartItem{ID: 101, UserID: 42, ProductID: 3, Quantity: 1})

	// 1. Оформляем заказ из корзины
	order, err := suite.service.PlaceOrder(ctx, lifecycleTenant, orders.PlaceOrderRequest{
		UserID: 42,
		Type:   domain.OrderTypeCart,
		Lines: []orders.LineRequest{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
		Delivery: map[string]any{"address": "Seoul, Gangnam-gu"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(1), order.ID)
	require.Equal(suite.T(), domain.StateOrderPlaced, order.State)
	require.Equal(suite.T(), int64(1500*2+700*3), order.Cost.Products)
	require.Empty(suite.T(), order.ValidateInvariants())

	// Остаток зафиксирован
	p1, err := suite.tenant.Products().Get(ctx, 1)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(2), p1.BuyQuantity)

	// Совпавшая запись корзины удалена, чужая — осталась
	items, err := suite.tenant.Carts().ListByUser(ctx, 42)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), items, 1)
	require.Equal(suite.T(), int64(3), items[0].ProductID)

	// 2. Продавец отправляет заказ
	updated, err := suite.service.SetOrderState(ctx, lifecycleTenant, order.ID, orders.StateChange{
		State:    domain.StateShipping,
		Actor:    "seller",
		Delivery: map[string]any{"address": "Seoul, Gangnam-gu", "tracking_no": "TRK-1"},
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.StateShipping, updated.State)
	require.Len(suite.T(), updated.History, 2)

	// 3. Одна позиция доставлена
	line, err := suite.service.SetLineState(ctx, lifecycleTenant, order.ID, 2, orders.StateChange{
		State: domain.StateDelivered,
		Actor: "system",
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.StateDelivered, line.State)

	// 4. Покупатель оставляет отзыв на доставленную позицию
	require.NoError(suite.T(), suite.service.AttachReview(ctx, lifecycleTenant, order.ID, 2, 777))

	// 5. Outbox-воркер доставляет все события по порядку
	suite.worker.ProcessOnce(ctx)
	require.Equal(suite.T(), []string{
		"order.placed",
		"order.state_changed",
		"order.line_state_changed",
		"order.review_attached",
	}, suite.published.eventTypes())

	for _, event := range suite.published.events {
		require.Equal(suite.T(), lifecycleTenant, event.TenantID)
		require.True(suite.T(), json.Valid(event.Payload))
	}

	stats, err := suite.outbox.Stats()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 0, stats.PendingCount)
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockLeavesNoPartialState() {
	ctx := context.Background()

	// Товара 1 хватает, товара 2 запрошено больше остатка
	_, err := suite.service.PlaceOrder(ctx, lifecycleTenant, orders.PlaceOrderRequest{
		UserID: 42,
		Type:   domain.OrderTypeDirect,
		Lines: []orders.LineRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 100},
		},
	})
	require.True(suite.T(), domain.IsInsufficientStock(err))

	// Ни одна позиция не должна остаться зафиксированной
	p1, err := suite.tenant.Products().Get(ctx, 1)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), p1.BuyQuantity)

	p2, err := suite.tenant.Products().Get(ctx, 2)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), p2.BuyQuantity)

	// И ни одного события в outbox
	stats, err := suite.outbox.Stats()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 0, stats.PendingCount)
}

func (suite *OrderLifecycleTestSuite) TestDryRunEstimatesWithoutWrites() {
	ctx := context.Background()

	estimate, err := suite.service.PlaceOrder(ctx, lifecycleTenant, orders.PlaceOrderRequest{
		UserID: 42,
		Type:   domain.OrderTypeDirect,
		Lines:  []orders.LineRequest{{ProductID: 1, Quantity: 2}},
		DryRun: true,
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(3000), estimate.Cost.Products)

	// Просчёт ничего не записал: ни остатка, ни заказа, ни событий
	p1, err := suite.tenant.Products().Get(ctx, 1)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int64(0), p1.BuyQuantity)

	_, err = suite.tenant.Orders().Get(ctx, estimate.ID)
	require.ErrorIs(suite.T(), err, domain.ErrOrderNotFound)

	stats, err := suite.outbox.Stats()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 0, stats.PendingCount)
}

func (suite *OrderLifecycleTestSuite) TestBuyerAndSellerViews() {
	ctx := context.Background()

	order := suite.placeTwoLineOrder(ctx)

	// Покупатель видит заказ целиком
	buyerView, err := suite.service.GetOrder(ctx, lifecycleTenant, order.ID, 42)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), buyerView.Lines, 2)

	// Продавец 7 видит только свою позицию и публичный профиль покупателя
	sellerView, err := suite.service.GetSellerOrder(ctx, lifecycleTenant, order.ID, 7)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), sellerView.Lines, 1)
	require.Equal(suite.T(), int64(1), sellerView.Lines[0].ProductID)
	require.NotNil(suite.T(), sellerView.Buyer)
	require.Equal(suite.T(), "제이지", sellerView.Buyer.Name)

	// Чужой продавец заказ не видит
	_, err = suite.service.GetSellerOrder(ctx, lifecycleTenant, order.ID, 99)
	require.ErrorIs(suite.T(), err, domain.ErrOrderNotFound)

	// Проекция состояний покупателя
	views, err := suite.service.ListStates(ctx, lifecycleTenant, 42)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), views, 1)
	require.Equal(suite.T(), order.ID, views[0].OrderID)
	require.Len(suite.T(), views[0].Lines, 2)
}

func (suite *OrderLifecycleTestSuite) TestOutboxCleanupAfterDelivery() {
	ctx := context.Background()

	suite.placeTwoLineOrder(ctx)

	suite.worker.ProcessOnce(ctx)
	require.Len(suite.T(), suite.published.eventTypes(), 1)

	// Доставленные записи очищаются с нулевой ретенцией сразу
	deleted, err := suite.outbox.DeleteFinished(time.Now().Add(time.Minute), 100)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, deleted)
}

func (suite *OrderLifecycleTestSuite) placeTwoLineOrder(ctx context.Context) domain.Order {
	order, err := suite.service.PlaceOrder(ctx, lifecycleTenant, orders.PlaceOrderRequest{
		UserID: 42,
		Type:   domain.OrderTypeDirect,
		Lines: []orders.LineRequest{
			{ProductID: 1, Quantity: 1},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(suite.T(), err)
	return order
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
