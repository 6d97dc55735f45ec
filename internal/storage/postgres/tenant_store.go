package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/market/internal/domain"
)

// tenantStore — хранилище одного арендатора: все запросы идут в его схему
// через общий пул подключений.
type tenantStore struct {
	db     *sql.DB
	schema string
}

// table возвращает квалифицированное имя таблицы в схеме арендатора.
func (t *tenantStore) table(name string) string {
	return quoteIdent(t.schema) + "." + name
}

// NextSeq атомарно выделяет следующий идентификатор для kind одним
// запросом: вставка с ON CONFLICT инкрементирует счётчик и возвращает
// предыдущее значение. Два конкурентных первых вызова разруливаются
// ограничением уникальности на ключе счётчика — проигравший повторяет
// вставку как обычный инкремент на стороне PostgreSQL, двойной выдачи
// единицы не происходит.
func (t *tenantStore) NextSeq(ctx context.Context, kind string) (int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var allocated int64
	err := t.db.QueryRowContext(queryCtx, `
		INSERT INTO `+t.table("seq")+` AS s (id, no)
		VALUES ($1, 2)
		ON CONFLICT (id) DO UPDATE SET no = s.no + 1
		RETURNING no - 1
	`, kind).Scan(&allocated)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence %q: %w", kind, mapStorageErr(err))
	}
	return allocated, nil
}

func (t *tenantStore) Products() domain.ProductRepository {
	return &productRepository{ts: t}
}

func (t *tenantStore) Orders() domain.OrderRepository {
	return &orderRepository{ts: t}
}

func (t *tenantStore) Carts() domain.CartRepository {
	return &cartRepository{ts: t}
}

// mapStorageErr переводит инфраструктурные ошибки в доменную таксономию:
// истёкший дедлайн — ErrTransactionTimeout, нарушение уникальности —
// ErrDuplicateKey.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransactionTimeout, err)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.TenantStore = (*tenantStore)(nil)
