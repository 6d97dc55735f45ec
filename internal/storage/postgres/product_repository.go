package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

type productRepository struct {
	ts *tenantStore
}

// Get возвращает товар или ProductNotFoundError.
func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		p         domain.Product
		imagesRaw []byte
		extraRaw  []byte
	)
	err := r.ts.db.QueryRowContext(queryCtx, `
		SELECT id, seller_id, name, price, quantity, buy_quantity, main_images, extra, active, show
		FROM `+r.ts.table("product")+`
		WHERE id = $1
	`, id).Scan(&p.ID, &p.SellerID, &p.Name, &p.Price, &p.Quantity, &p.BuyQuantity, &imagesRaw, &extraRaw, &p.Active, &p.Show)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
		}
		return domain.Product{}, fmt.Errorf("select product: %w", mapStorageErr(err))
	}

	if err := unmarshalJSON(imagesRaw, &p.MainImages); err != nil {
		return domain.Product{}, fmt.Errorf("decode product images: %w", err)
	}
	if err := unmarshalJSON(extraRaw, &p.Extra); err != nil {
		return domain.Product{}, fmt.Errorf("decode product extra: %w", err)
	}
	return p, nil
}

// CommitPurchase — единый условный апдейт: инкремент buy_quantity
// применяется, только если остатка хватает на момент записи. Проверку и
// запись нельзя разносить на два запроса: два конкурентных заказа прошли бы
// проверку до чьей-либо фиксации и продали сверх остатка.
func (r *productRepository) CommitPurchase(ctx context.Context, id, qty int64) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.ts.db.ExecContext(queryCtx, `
		UPDATE `+r.ts.table("product")+`
		SET buy_quantity = buy_quantity + $2
		WHERE id = $1
		  AND quantity - buy_quantity >= $2
	`, id, qty)
	if err != nil {
		return fmt.Errorf("commit purchase: %w", mapStorageErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Условие не прошло: либо товара нет, либо остатка не хватает.
	// Перечитываем актуальное состояние для пользовательского сообщения.
	p, getErr := r.Get(ctx, id)
	if getErr != nil {
		return getErr
	}
	return &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Available()}
}

// ReleasePurchase — компенсация неудавшегося оформления.
func (r *productRepository) ReleasePurchase(ctx context.Context, id, qty int64) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.ts.db.ExecContext(queryCtx, `
		UPDATE `+r.ts.table("product")+`
		SET buy_quantity = GREATEST(buy_quantity - $2, 0)
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return fmt.Errorf("release purchase: %w", mapStorageErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.ProductNotFoundError{ProductID: id}
	}
	return nil
}

// unmarshalJSON декодирует JSONB-колонку, допуская NULL.
func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

var _ domain.ProductRepository = (*productRepository)(nil)
