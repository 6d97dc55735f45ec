package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

type orderRepository struct {
	ts *tenantStore
}

// Известные ключи сортировки отображаются на колонки; прочие проходят
// насквозь (экранированными), как того требует контракт "sort не
// валидируется".
var sortColumns = map[string]string{
	"_id":       "id",
	"id":        "id",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"state":     "state",
}

// Create сохраняет заказ вместе с позициями в одной транзакции.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.ts.db.BeginTx(queryCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapStorageErr(err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deliveryRaw, err := marshalJSON(order.Delivery)
	if err != nil {
		return fmt.Errorf("encode order delivery: %w", err)
	}
	costRaw, err := json.Marshal(order.Cost)
	if err != nil {
		return fmt.Errorf("encode order cost: %w", err)
	}

	_, err = tx.ExecContext(queryCtx, `
		INSERT INTO `+r.ts.table("orders")+` (
			id, user_id, type, state, delivery, cost, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.ID, order.UserID, order.Type, order.State,
		deliveryRaw, costRaw, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapStorageErr(err))
	}

	for _, line := range order.Lines {
		extraRaw, encErr := marshalJSON(line.Extra)
		if encErr != nil {
			err = fmt.Errorf("encode line extra: %w", encErr)
			return err
		}
		lineDeliveryRaw, encErr := marshalJSON(line.Delivery)
		if encErr != nil {
			err = fmt.Errorf("encode line delivery: %w", encErr)
			return err
		}
		if _, err = tx.ExecContext(queryCtx, `
			INSERT INTO `+r.ts.table("order_lines")+` (
				order_id, product_id, seller_id, name, image, quantity, price, extra, state, delivery, review_id
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,0))
		`,
			order.ID, line.ProductID, line.SellerID, line.Name, line.Image,
			line.Quantity, line.Price, extraRaw, lineDeliveryRaw, line.ReviewID,
		); err != nil {
			return fmt.Errorf("insert order line: %w", mapStorageErr(err))
		}
	}

	for _, entry := range order.History {
		if err = r.insertHistory(queryCtx, tx, "order_history", order.ID, 0, entry); err != nil {
			return err
		}
	}
	for _, line := range order.Lines {
		for _, entry := range line.History {
			if err = r.insertHistory(queryCtx, tx, "order_line_history", order.ID, line.ProductID, entry); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", mapStorageErr(err))
	}
	return nil
}

// Get возвращает заказ с позициями и историей или ErrOrderNotFound.
func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetForUser возвращает заказ, только если он принадлежит покупателю.
func (r *orderRepository) GetForUser(ctx context.Context, id, userID int64) (domain.Order, error) {
	return r.getWhere(ctx, "id = $1 AND user_id = $2", id, userID)
}

func (r *orderRepository) getWhere(ctx context.Context, where string, args ...any) (domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.ts.db.QueryRowContext(queryCtx, `
		SELECT id, user_id, type, state, delivery, cost, created_at, updated_at
		FROM `+r.ts.table("orders")+`
		WHERE `+where, args...)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", mapStorageErr(err))
	}

	if err := r.hydrate(queryCtx, &order, 0); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// GetForSeller возвращает заказ с позициями продавца и публичным профилем
// покупателя. Заказ без позиций продавца для него не существует.
func (r *orderRepository) GetForSeller(ctx context.Context, id, sellerID int64) (domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.ts.db.QueryRowContext(queryCtx, `
		SELECT o.id, o.user_id, o.type, o.state, o.delivery, o.cost, o.created_at, o.updated_at,
		       u.name, u.email, u.image
		FROM `+r.ts.table("orders")+` o
		LEFT JOIN `+r.ts.table("users")+` u ON u.id = o.user_id
		WHERE o.id = $1
		  AND EXISTS (
			SELECT 1 FROM `+r.ts.table("order_lines")+` l
			WHERE l.order_id = o.id AND l.seller_id = $2
		  )
	`, id, sellerID)

	order, err := scanOrderWithBuyer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select seller order: %w", mapStorageErr(err))
	}

	if err := r.hydrate(queryCtx, &order, sellerID); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListByUser возвращает страницу заказов покупателя.
func (r *orderRepository) ListByUser(ctx context.Context, userID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	q = q.Normalize()

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int
	if err := r.ts.db.QueryRowContext(queryCtx, `
		SELECT COUNT(*) FROM `+r.ts.table("orders")+` WHERE user_id = $1
	`, userID).Scan(&total); err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("count orders: %w", mapStorageErr(err))
	}

	query := `
		SELECT id, user_id, type, state, delivery, cost, created_at, updated_at
		FROM ` + r.ts.table("orders") + `
		WHERE user_id = $1
		` + orderByClause(q.Sort, "") + pageClause(q)

	rows, err := r.ts.db.QueryContext(queryCtx, query, userID)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list orders: %w", mapStorageErr(err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Pagination{}, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		if err := r.hydrate(queryCtx, &orders[i], 0); err != nil {
			return nil, domain.Pagination{}, err
		}
	}
	return orders, domain.NewPagination(q, total), nil
}

// ListStates возвращает проекцию состояний заказов и позиций покупателя.
func (r *orderRepository) ListStates(ctx context.Context, userID int64) ([]domain.OrderStateView, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.ts.db.QueryContext(queryCtx, `
		SELECT o.id, o.state, l.product_id, l.state
		FROM `+r.ts.table("orders")+` o
		JOIN `+r.ts.table("order_lines")+` l ON l.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.id, l.product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list order states: %w", mapStorageErr(err))
	}
	defer rows.Close()

	views := make([]domain.OrderStateView, 0)
	for rows.Next() {
		var (
			orderID    int64
			orderState string
			line       domain.LineStateView
		)
		if err := rows.Scan(&orderID, &orderState, &line.ProductID, &line.State); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		if len(views) == 0 || views[len(views)-1].OrderID != orderID {
			views = append(views, domain.OrderStateView{OrderID: orderID, State: orderState})
		}
		last := &views[len(views)-1]
		last.Lines = append(last.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}
	return views, nil
}

// ListBySeller возвращает страницу заказов, содержащих позиции продавца.
// Позиции фильтруются после отбора заказов, покупатель присоединяется без
// чувствительных полей.
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID int64, q domain.ListQuery) ([]domain.Order, domain.Pagination, error) {
	q = q.Normalize()

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	matchClause := `EXISTS (
		SELECT 1 FROM ` + r.ts.table("order_lines") + ` l
		WHERE l.order_id = o.id AND l.seller_id = $1
	)`

	var total int
	if err := r.ts.db.QueryRowContext(queryCtx, `
		SELECT COUNT(*) FROM `+r.ts.table("orders")+` o WHERE `+matchClause, sellerID).Scan(&total); err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("count seller orders: %w", mapStorageErr(err))
	}

	query := `
		SELECT o.id, o.user_id, o.type, o.state, o.delivery, o.cost, o.created_at, o.updated_at,
		       u.name, u.email, u.image
		FROM ` + r.ts.table("orders") + ` o
		LEFT JOIN ` + r.ts.table("users") + ` u ON u.id = o.user_id
		WHERE ` + matchClause + `
		` + orderByClause(q.Sort, "o.") + pageClause(q)

	rows, err := r.ts.db.QueryContext(queryCtx, query, sellerID)
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list seller orders: %w", mapStorageErr(err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrderWithBuyer(rows)
		if err != nil {
			return nil, domain.Pagination{}, fmt.Errorf("scan seller order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("iterate seller orders: %w", err)
	}

	for i := range orders {
		if err := r.hydrate(queryCtx, &orders[i], sellerID); err != nil {
			return nil, domain.Pagination{}, err
		}
	}
	return orders, domain.NewPagination(q, total), nil
}

// ListByProduct возвращает заказы с указанным товаром указанного продавца,
// свежие первыми.
func (r *orderRepository) ListByProduct(ctx context.Context, productID, sellerID int64) ([]domain.Order, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.ts.db.QueryContext(queryCtx, `
		SELECT o.id, o.user_id, o.type, o.state, o.delivery, o.cost, o.created_at, o.updated_at,
		       u.name, u.email, u.image
		FROM `+r.ts.table("orders")+` o
		LEFT JOIN `+r.ts.table("users")+` u ON u.id = o.user_id
		WHERE EXISTS (
			SELECT 1 FROM `+r.ts.table("order_lines")+` l
			WHERE l.order_id = o.id AND l.product_id = $1 AND l.seller_id = $2
		)
		ORDER BY o.id DESC
	`, productID, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list orders by product: %w", mapStorageErr(err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrderWithBuyer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order by product: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders by product: %w", err)
	}

	for i := range orders {
		if err := r.hydrate(queryCtx, &orders[i], sellerID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateState перезаписывает состояние заказа и в той же транзакции
// добавляет запись истории. Прежние записи не переписываются никогда.
func (r *orderRepository) UpdateState(ctx context.Context, id int64, state string, delivery map[string]any, updatedAt string, entry domain.HistoryEntry) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.ts.db.BeginTx(queryCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapStorageErr(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	if delivery != nil {
		var deliveryRaw []byte
		deliveryRaw, err = marshalJSON(delivery)
		if err != nil {
			return fmt.Errorf("encode delivery: %w", err)
		}
		res, err = tx.ExecContext(queryCtx, `
			UPDATE `+r.ts.table("orders")+`
			SET state = $2, delivery = $3, updated_at = $4
			WHERE id = $1
		`, id, state, deliveryRaw, updatedAt)
	} else {
		res, err = tx.ExecContext(queryCtx, `
			UPDATE `+r.ts.table("orders")+`
			SET state = $2, updated_at = $3
			WHERE id = $1
		`, id, state, updatedAt)
	}
	if err != nil {
		return fmt.Errorf("update order state: %w", mapStorageErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrOrderNotFound
		return err
	}

	if err = r.insertHistory(queryCtx, tx, "order_history", id, 0, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update state: %w", mapStorageErr(err))
	}
	return nil
}

// UpdateLineState — то же для одной позиции, адресуемой по товару.
// Позиция не найдена — ErrLineNotFound, заказ остаётся нетронутым
// (транзакция откатывается целиком).
func (r *orderRepository) UpdateLineState(ctx context.Context, orderID, productID int64, state string, delivery map[string]any, updatedAt string, entry domain.HistoryEntry) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.ts.db.BeginTx(queryCtx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", mapStorageErr(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	if delivery != nil {
		var deliveryRaw []byte
		deliveryRaw, err = marshalJSON(delivery)
		if err != nil {
			return fmt.Errorf("encode line delivery: %w", err)
		}
		res, err = tx.ExecContext(queryCtx, `
			UPDATE `+r.ts.table("order_lines")+`
			SET state = $3, delivery = $4
			WHERE order_id = $1 AND product_id = $2
		`, orderID, productID, state, deliveryRaw)
	} else {
		res, err = tx.ExecContext(queryCtx, `
			UPDATE `+r.ts.table("order_lines")+`
			SET state = $3
			WHERE order_id = $1 AND product_id = $2
		`, orderID, productID, state)
	}
	if err != nil {
		return fmt.Errorf("update line state: %w", mapStorageErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = r.lineMissingErr(queryCtx, orderID)
		return err
	}

	if _, err = tx.ExecContext(queryCtx, `
		UPDATE `+r.ts.table("orders")+` SET updated_at = $2 WHERE id = $1
	`, orderID, updatedAt); err != nil {
		return fmt.Errorf("touch order: %w", mapStorageErr(err))
	}

	if err = r.insertHistory(queryCtx, tx, "order_line_history", orderID, productID, entry); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update line state: %w", mapStorageErr(err))
	}
	return nil
}

// SetLineReview проставляет ссылку на отзыв у совпавшей позиции.
func (r *orderRepository) SetLineReview(ctx context.Context, orderID, productID, reviewID int64) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.ts.db.ExecContext(queryCtx, `
		UPDATE `+r.ts.table("order_lines")+`
		SET review_id = $3
		WHERE order_id = $1 AND product_id = $2
	`, orderID, productID, reviewID)
	if err != nil {
		return fmt.Errorf("set line review: %w", mapStorageErr(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.lineMissingErr(queryCtx, orderID)
	}
	return nil
}

// lineMissingErr различает отсутствующий заказ и отсутствующую позицию.
func (r *orderRepository) lineMissingErr(ctx context.Context, orderID int64) error {
	var one int
	err := r.ts.db.QueryRowContext(ctx, `
		SELECT 1 FROM `+r.ts.table("orders")+` WHERE id = $1
	`, orderID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check order exists: %w", mapStorageErr(err))
	}
	return domain.ErrLineNotFound
}

func (r *orderRepository) insertHistory(ctx context.Context, tx *sql.Tx, table string, orderID, productID int64, entry domain.HistoryEntry) error {
	memoRaw, err := marshalJSON(entry.Memo)
	if err != nil {
		return fmt.Errorf("encode history memo: %w", err)
	}

	if table == "order_line_history" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO `+r.ts.table(table)+` (order_id, product_id, actor, state, memo, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, orderID, productID, entry.Actor, entry.State, memoRaw, entry.CreatedAt)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO `+r.ts.table(table)+` (order_id, actor, state, memo, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, orderID, entry.Actor, entry.State, memoRaw, entry.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("append history: %w", mapStorageErr(err))
	}
	return nil
}

// hydrate догружает позиции и историю заказа. sellerID > 0 ограничивает
// позиции одним продавцом.
func (r *orderRepository) hydrate(ctx context.Context, order *domain.Order, sellerID int64) error {
	history, err := r.loadOrderHistory(ctx, order.ID)
	if err != nil {
		return err
	}
	order.History = history

	lines, err := r.loadLines(ctx, order.ID, sellerID)
	if err != nil {
		return err
	}
	order.Lines = lines
	return nil
}

func (r *orderRepository) loadOrderHistory(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.ts.db.QueryContext(ctx, `
		SELECT actor, state, memo, created_at
		FROM `+r.ts.table("order_history")+`
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order history: %w", mapStorageErr(err))
	}
	defer rows.Close()

	return scanHistory(rows)
}

func (r *orderRepository) loadLines(ctx context.Context, orderID, sellerID int64) ([]domain.OrderLine, error) {
	query := `
		SELECT product_id, seller_id, name, image, quantity, price, extra, state, delivery, COALESCE(review_id, 0)
		FROM ` + r.ts.table("order_lines") + `
		WHERE order_id = $1`
	args := []any{orderID}
	if sellerID > 0 {
		query += ` AND seller_id = $2`
		args = append(args, sellerID)
	}
	query += ` ORDER BY product_id`

	rows, err := r.ts.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", mapStorageErr(err))
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var (
			line        domain.OrderLine
			extraRaw    []byte
			deliveryRaw []byte
		)
		if err := rows.Scan(
			&line.ProductID, &line.SellerID, &line.Name, &line.Image,
			&line.Quantity, &line.Price, &extraRaw, &line.State, &deliveryRaw, &line.ReviewID,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if err := unmarshalJSON(extraRaw, &line.Extra); err != nil {
			return nil, fmt.Errorf("decode line extra: %w", err)
		}
		if err := unmarshalJSON(deliveryRaw, &line.Delivery); err != nil {
			return nil, fmt.Errorf("decode line delivery: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	if err := r.loadLineHistory(ctx, orderID, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *orderRepository) loadLineHistory(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	rows, err := r.ts.db.QueryContext(ctx, `
		SELECT product_id, actor, state, memo, created_at
		FROM `+r.ts.table("order_line_history")+`
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return fmt.Errorf("load line history: %w", mapStorageErr(err))
	}
	defer rows.Close()

	byProduct := make(map[int64][]domain.HistoryEntry)
	for rows.Next() {
		var (
			productID int64
			entry     domain.HistoryEntry
			memoRaw   []byte
		)
		if err := rows.Scan(&productID, &entry.Actor, &entry.State, &memoRaw, &entry.CreatedAt); err != nil {
			return fmt.Errorf("scan line history: %w", err)
		}
		if err := unmarshalJSON(memoRaw, &entry.Memo); err != nil {
			return fmt.Errorf("decode history memo: %w", err)
		}
		byProduct[productID] = append(byProduct[productID], entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate line history: %w", err)
	}

	for i := range lines {
		lines[i].History = byProduct[lines[i].ProductID]
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		deliveryRaw []byte
		costRaw     []byte
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.Type, &order.State,
		&deliveryRaw, &costRaw, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	if err := decodeOrderJSON(&order, deliveryRaw, costRaw); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func scanOrderWithBuyer(row rowScanner) (domain.Order, error) {
	var (
		order       domain.Order
		deliveryRaw []byte
		costRaw     []byte
		name        sql.NullString
		email       sql.NullString
		image       sql.NullString
	)
	if err := row.Scan(
		&order.ID, &order.UserID, &order.Type, &order.State,
		&deliveryRaw, &costRaw, &order.CreatedAt, &order.UpdatedAt,
		&name, &email, &image,
	); err != nil {
		return domain.Order{}, err
	}
	if err := decodeOrderJSON(&order, deliveryRaw, costRaw); err != nil {
		return domain.Order{}, err
	}
	if name.Valid || email.Valid {
		order.Buyer = &domain.Buyer{
			ID:    order.UserID,
			Name:  name.String,
			Email: email.String,
			Image: image.String,
		}
	}
	return order, nil
}

func decodeOrderJSON(order *domain.Order, deliveryRaw, costRaw []byte) error {
	if err := unmarshalJSON(deliveryRaw, &order.Delivery); err != nil {
		return fmt.Errorf("decode order delivery: %w", err)
	}
	if err := unmarshalJSON(costRaw, &order.Cost); err != nil {
		return fmt.Errorf("decode order cost: %w", err)
	}
	return nil
}

func scanHistory(rows *sql.Rows) ([]domain.HistoryEntry, error) {
	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry   domain.HistoryEntry
			memoRaw []byte
		)
		if err := rows.Scan(&entry.Actor, &entry.State, &memoRaw, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if err := unmarshalJSON(memoRaw, &entry.Memo); err != nil {
			return nil, fmt.Errorf("decode history memo: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

// marshalJSON кодирует карту в JSONB, отдавая NULL вместо пустого значения.
func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// orderByClause строит ORDER BY из ключей сортировки вызывающей стороны.
func orderByClause(keys []domain.SortKey, prefix string) string {
	if len(keys) == 0 {
		return "ORDER BY " + prefix + "id DESC"
	}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		col, ok := sortColumns[key.Field]
		if !ok {
			col = quoteIdent(key.Field)
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		parts = append(parts, prefix+col+" "+dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// pageClause строит LIMIT/OFFSET; limit=0 — одна безразмерная страница.
func pageClause(q domain.ListQuery) string {
	if q.Limit == 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset())
}

var _ domain.OrderRepository = (*orderRepository)(nil)
