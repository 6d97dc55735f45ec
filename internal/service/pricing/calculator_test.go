package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

func TestCalculator_GetCost(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()

	lines := []domain.OrderLine{
		{ProductID: 1, Price: 6000},
		{ProductID: 2, Price: 1200},
	}

	cost, err := calc.GetCost(context.Background(), lines, domain.Discount{}, 42)
	require.NoError(t, err)

	assert.Equal(t, int64(7200), cost.Products)
	assert.Equal(t, int64(defaultShippingFee), cost.Shipping)
	assert.Equal(t, int64(7200+defaultShippingFee), cost.Total)
	assert.Equal(t, int64(1), calc.Calls())
}

func TestCalculator_FreeShippingThreshold(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()

	lines := []domain.OrderLine{{ProductID: 1, Price: 50000}}

	cost, err := calc.GetCost(context.Background(), lines, domain.Discount{}, 42)
	require.NoError(t, err)

	assert.Zero(t, cost.Shipping)
	assert.Equal(t, int64(50000), cost.Total)
}

func TestCalculator_DiscountPassthrough(t *testing.T) {
	t.Parallel()

	calc := NewCalculator()
	discount := domain.Discount{Products: 1000, Shipping: 500}

	cost, err := calc.GetCost(context.Background(), []domain.OrderLine{{Price: 10000}}, discount, 42)
	require.NoError(t, err)

	assert.Equal(t, discount, cost.Discount)
	assert.Equal(t, int64(10000+defaultShippingFee-1500), cost.Total)
}

func TestCalculator_ConfiguredError(t *testing.T) {
	t.Parallel()

	boom := errors.New("pricing backend down")
	calc := NewCalculator()
	calc.Err = boom

	_, err := calc.GetCost(context.Background(), nil, domain.Discount{}, 42)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), calc.Calls())
}
