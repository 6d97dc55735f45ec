package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

type cartRepository struct {
	ts *tenantStore
}

// ListByUser возвращает записи корзины покупателя, старые первыми.
func (r *cartRepository) ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.ts.db.QueryContext(queryCtx, `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM `+r.ts.table("cart")+`
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", mapStorageErr(err))
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart rows: %w", err)
	}
	return items, nil
}

// DeleteMany удаляет записи корзины покупателя по списку идентификаторов.
// Условие на user_id гарантирует, что чужие записи не затрагиваются.
func (r *cartRepository) DeleteMany(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for i, id := range ids {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		args = append(args, id)
	}

	_, err := r.ts.db.ExecContext(queryCtx, `
		DELETE FROM `+r.ts.table("cart")+`
		WHERE user_id = $1
		  AND id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("delete cart items: %w", mapStorageErr(err))
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
