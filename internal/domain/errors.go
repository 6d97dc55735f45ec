package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTenant — идентификатор арендатора отсутствует или не входит в allow-list.
	ErrUnknownTenant = errors.New("unknown tenant")
	// ErrConnection — общий ресурс подключения не удалось установить.
	ErrConnection = errors.New("storage connection failed")
	// ErrDuplicateKey — нарушение ограничения уникальности (конфликт).
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrTransactionTimeout — операция хранилища не уложилась в дедлайн.
	ErrTransactionTimeout = errors.New("transaction timeout")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — доступного остатка товара меньше запрошенного.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrLineNotFound — в заказе нет позиции с указанным товаром.
	ErrLineNotFound = errors.New("order line not found")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибка отсутствующего идентификатора покупателя.
	ErrUserRequired = errors.New("user_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия стоимости позиций и cost.products.
	ErrCostMismatch = errors.New("order cost does not match lines sum")
)

// ProductNotFoundError уточняет, какой именно товар отсутствует.
// Сообщение пригодно для показа пользователю.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d does not exist", e.ProductID)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrProductNotFound).
func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// InsufficientStockError несёт данные для пользовательского сообщения:
// идентификатор и название товара плюс фактически доступное количество.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("available quantity of product [%d %s] is %d", e.ProductID, e.Name, e.Available)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PricingError помечает ошибку прайсинг-коллаборатора; причина прокидывается
// без изменений и доступна через errors.Unwrap.
type PricingError struct {
	Err error
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing failed: %v", e.Err)
}

func (e *PricingError) Unwrap() error {
	return e.Err
}

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}
