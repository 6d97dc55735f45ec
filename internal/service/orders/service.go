package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/market/internal/domain"
	"github.com/vladislavdragonenkov/market/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/market/internal/metrics"
)

// seqKindOrder — kind счётчика для идентификаторов заказов.
const seqKindOrder = "order"

// LineRequest — запрошенная позиция: товар и количество.
type LineRequest struct {
	ProductID int64
	Quantity  int64
}

// PlaceOrderRequest — запрос на оформление заказа.
type PlaceOrderRequest struct {
	UserID int64
	// Type — cart или direct; для cart после оформления удаляются
	// совпавшие записи корзины покупателя.
	Type  string
	Lines []LineRequest
	// Delivery — данные доставки уровня заказа, сохраняются как есть.
	Delivery map[string]any
	// Discount передаётся прайсинг-коллаборатору без интерпретации.
	Discount domain.Discount
	// DryRun — просчёт без единой записи: заказ собирается и оценивается,
	// но товар, заказ и корзина не изменяются.
	DryRun bool
	// Actor — инициатор для записи истории; по умолчанию "user".
	Actor string
}

// StateChange — запрос на смену состояния заказа или позиции.
type StateChange struct {
	State string
	// Delivery перезаписывает данные доставки, если не nil.
	Delivery map[string]any
	// Actor — кто меняет состояние (user, seller, admin, system).
	Actor string
	// Memo — произвольные метаданные для записи истории.
	Memo map[string]any
}

// Service реализует ядро заказов: оформление, трекинг состояний и выборки.
// Каждая операция начинается с резолва арендатора — данные разных
// арендаторов не пересекаются никогда.
type Service struct {
	store   domain.Store
	pricing domain.PricingService
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	store domain.Store,
	pricing domain.PricingService,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:   store,
		pricing: pricing,
		outbox:  outbox,
		logger:  logger,
		metrics: metrics.NewOrderMetrics(),
		now:     time.Now,
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	store domain.Store,
	pricing domain.PricingService,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		store:   store,
		pricing: pricing,
		outbox:  outbox,
		logger:  logger,
		now:     time.Now,
	}
}

// PlaceOrder оформляет заказ в два прохода: сначала последовательная
// валидация позиций со снимками данных товара, затем фаза фиксации.
// Фиксация остатка — условный атомарный инкремент по каждой позиции;
// если очередная позиция проигрывает гонку за остаток, уже
// зафиксированные позиции компенсируются обратным декрементом, и
// частичного состояния не остаётся.
func (s *Service) PlaceOrder(ctx context.Context, tenantID string, req PlaceOrderRequest) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordPlacementStarted()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordPlacementFinished()
			s.metrics.RecordPlaceDuration(time.Since(start))
		}
	}()

	order, err := s.placeOrder(ctx, tenantID, req)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordOrderFailed()
			if domain.IsInsufficientStock(err) {
				s.metrics.RecordInsufficientStock()
			}
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		if req.DryRun {
			s.metrics.RecordDryRun()
		} else {
			s.metrics.RecordOrderPlaced()
		}
	}
	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, tenantID string, req PlaceOrderRequest) (domain.Order, error) {
	if req.UserID == 0 {
		return domain.Order{}, domain.ErrUserRequired
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, domain.ErrLinesRequired
	}

	ts, err := s.store.Resolve(ctx, tenantID)
	if err != nil {
		return domain.Order{}, err
	}
	products := ts.Products()

	// Фаза проверки: позиции обрабатываются последовательно в порядке
	// запроса, первая неудачная прерывает оформление целиком.
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		if lr.Quantity <= 0 {
			return domain.Order{}, domain.ErrLineQtyInvalid
		}

		p, err := products.Get(ctx, lr.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if p.Available() < lr.Quantity {
			return domain.Order{}, &domain.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Available(),
			}
		}
		lines = append(lines, snapshotLine(p, lr.Quantity))
	}

	cost, err := s.pricing.GetCost(ctx, lines, req.Discount, req.UserID)
	if err != nil {
		return domain.Order{}, &domain.PricingError{Err: err}
	}

	// Идентификатор выделяется и под dry-run: так делает и боевой путь,
	// пропуски в последовательности допустимы.
	orderID, err := ts.NextSeq(ctx, seqKindOrder)
	if err != nil {
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordSequenceAllocation()
	}

	actor := req.Actor
	if actor == "" {
		actor = "user"
	}
	stamp := domain.FormatTimestamp(s.now())
	entry := domain.HistoryEntry{Actor: actor, State: domain.StateOrderPlaced, CreatedAt: stamp}

	for i := range lines {
		lines[i].State = domain.StateOrderPlaced
		lines[i].History = []domain.HistoryEntry{entry}
	}

	order := domain.Order{
		ID:        orderID,
		UserID:    req.UserID,
		Type:      req.Type,
		State:     domain.StateOrderPlaced,
		Delivery:  req.Delivery,
		Lines:     lines,
		Cost:      cost,
		History:   []domain.HistoryEntry{entry},
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}

	if req.DryRun {
		return order, nil
	}

	if err := s.commitStock(ctx, products, lines); err != nil {
		return domain.Order{}, err
	}

	if err := ts.Orders().Create(ctx, order); err != nil {
		s.releaseStock(ctx, products, lines, len(lines))
		return domain.Order{}, fmt.Errorf("persist order %d: %w", orderID, err)
	}

	if req.Type == domain.OrderTypeCart {
		s.cleanupCart(ctx, ts, req.UserID, lines)
	}

	s.emitEvent(tenantID, order.ID, kafka.EventTypeOrderPlaced, map[string]any{
		"user_id": order.UserID,
		"state":   order.State,
		"total":   order.Cost.Total,
		"lines":   len(order.Lines),
	})

	return order, nil
}

// commitStock фиксирует остаток по каждой позиции; при неудаче на позиции
// K откатывает позиции 1..K-1.
func (s *Service) commitStock(ctx context.Context, products domain.ProductRepository, lines []domain.OrderLine) error {
	for i, line := range lines {
		if err := products.CommitPurchase(ctx, line.ProductID, line.Quantity); err != nil {
			s.releaseStock(ctx, products, lines, i)
			return err
		}
	}
	return nil
}

// releaseStock — компенсация: обратный декремент первых n позиций.
func (s *Service) releaseStock(ctx context.Context, products domain.ProductRepository, lines []domain.OrderLine, n int) {
	for i := 0; i < n; i++ {
		if err := products.ReleasePurchase(ctx, lines[i].ProductID, lines[i].Quantity); err != nil {
			s.logger.WithError(err).WithField("product_id", lines[i].ProductID).
				Error("stock compensation failed")
		}
	}
}

// cleanupCart удаляет записи корзины покупателя, чьи товары вошли в заказ.
// Заказ к этому моменту уже сохранён, поэтому ошибка очистки не отменяет
// оформление — она логируется и остаётся на совести фоновой чистки.
func (s *Service) cleanupCart(ctx context.Context, ts domain.TenantStore, userID int64, lines []domain.OrderLine) {
	items, err := ts.Carts().ListByUser(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart listing for cleanup failed")
		return
	}

	ordered := make(map[int64]bool, len(lines))
	for _, line := range lines {
		ordered[line.ProductID] = true
	}

	var ids []int64
	for _, item := range items {
		if ordered[item.ProductID] {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	if err := ts.Carts().DeleteMany(ctx, userID, ids); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("cart cleanup failed")
	}
}

// snapshotLine делает снимок товара на момент заказа: каталожные изменения
// после оформления не затрагивают исторические заказы.
func snapshotLine(p domain.Product, qty int64) domain.OrderLine {
	return domain.OrderLine{
		ProductID: p.ID,
		Quantity:  qty,
		SellerID:  p.SellerID,
		Name:      p.Name,
		Image:     p.MainImage(),
		Price:     p.Price * qty,
		Extra:     p.Extra,
	}
}

// emitEvent ставит событие в transactional outbox. Отсутствие outbox —
// допустимая конфигурация (например, локальная разработка без брокера).
func (s *Service) emitEvent(tenantID string, orderID int64, eventType kafka.EventType, payload map[string]any) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["order_id"] = orderID
	payload["tenant_id"] = tenantID

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		TenantID:      tenantID,
		AggregateType: "order",
		AggregateID:   fmt.Sprintf("%d", orderID),
		EventType:     string(eventType),
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
