package pricing

import (
	"context"
	"sync/atomic"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

const (
	defaultShippingFee           = 2500
	defaultFreeShippingThreshold = 30000
)

// Calculator — эталонная реализация прайсинг-коллаборатора: сумма снимков
// цен позиций плюс фиксированная доставка с порогом бесплатной, скидки
// вычитаются как переданы. Для ядра заказов это чёрный ящик, поэтому
// реализация конфигурируема и пригодна как заглушка в тестах.
type Calculator struct {
	ShippingFee           int64
	FreeShippingThreshold int64

	// Err, если задана, возвращается вместо результата.
	Err error

	calls int64
}

// NewCalculator возвращает калькулятор с параметрами по умолчанию.
func NewCalculator() *Calculator {
	return &Calculator{
		ShippingFee:           defaultShippingFee,
		FreeShippingThreshold: defaultFreeShippingThreshold,
	}
}

// GetCost считает стоимость заказа как чистую функцию входа.
func (c *Calculator) GetCost(ctx context.Context, lines []domain.OrderLine, discount domain.Discount, userID int64) (domain.Cost, error) {
	atomic.AddInt64(&c.calls, 1)

	if c.Err != nil {
		return domain.Cost{}, c.Err
	}

	var products int64
	for _, line := range lines {
		products += line.Price
	}

	shipping := c.ShippingFee
	if products >= c.FreeShippingThreshold {
		shipping = 0
	}

	return domain.Cost{
		Products: products,
		Shipping: shipping,
		Discount: discount,
		Total:    products + shipping - discount.Products - discount.Shipping,
	}, nil
}

// Calls возвращает число обращений (для тестов).
func (c *Calculator) Calls() int64 {
	return atomic.LoadInt64(&c.calls)
}

var _ domain.PricingService = (*Calculator)(nil)
