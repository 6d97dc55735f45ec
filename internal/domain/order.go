package domain

// OrderType определяет происхождение заказа.
const (
	// OrderTypeCart — заказ собран из корзины; после оформления совпавшие
	// позиции корзины удаляются.
	OrderTypeCart = "cart"
	// OrderTypeDirect — прямая покупка без корзины.
	OrderTypeDirect = "direct"
)

// Коды состояний заказа. Поле state намеренно свободная строка:
// ядро не проверяет граф переходов, валидирующий конечный автомат
// при необходимости навешивается вызывающей стороной.
const (
	// StateOrderPlaced — начальное состояние нового заказа.
	StateOrderPlaced = "OS010"
	// StateShipping — заказ передан в доставку.
	StateShipping = "OS030"
	// StateDelivered — доставка завершена.
	StateDelivered = "OS040"
)

// OrderLine представляет одну позицию заказа. Снимок данных товара делается
// в момент оформления: последующие изменения каталога не затрагивают
// исторические заказы.
type OrderLine struct {
	// ProductID — идентификатор товара; внутри заказа позиция адресуется по нему.
	ProductID int64
	// Quantity — заказанное количество единиц.
	Quantity int64
	// SellerID — продавец товара на момент заказа.
	SellerID int64
	// Name — название товара на момент заказа.
	Name string
	// Image — основное изображение товара.
	Image string
	// Price — цена позиции: цена за единицу * количество.
	Price int64
	// Extra — произвольные атрибуты товара, сохранённые как есть.
	Extra map[string]any
	// State — независимое состояние позиции.
	State string
	// Delivery — данные доставки позиции (перевозчик, трек-номер и т.п.).
	Delivery map[string]any
	// History — append-only история изменений состояния позиции.
	History []HistoryEntry
	// ReviewID — ссылка на отзыв, 0 пока отзыв не оставлен.
	ReviewID int64
}

// Order агрегирует заказ покупателя и его позиции.
type Order struct {
	// ID выделяется последовательным аллокатором арендатора (kind = "order").
	ID     int64
	UserID int64
	// Type — cart или direct; от него зависит очистка корзины.
	Type  string
	State string
	// Delivery — данные доставки уровня заказа.
	Delivery map[string]any
	Lines    []OrderLine
	// Cost — итоговая стоимость, вычисленная прайсинг-коллаборатором.
	// После создания заказа не меняется.
	Cost Cost
	// History — append-only история изменений состояния заказа.
	History []HistoryEntry
	// CreatedAt/UpdatedAt — форматированные метки времени в фиксированной
	// таймзоне (см. clock.go).
	CreatedAt string
	UpdatedAt string
	// Buyer заполняется только при выборках с join'ом покупателя.
	Buyer *Buyer
}

// HistoryEntry — неизменяемая запись о прошлом изменении состояния.
// Записи только добавляются, порядок в последовательности — хронологическая истина.
type HistoryEntry struct {
	// Actor — кто инициировал изменение (user, seller, admin, system).
	Actor string
	// State — состояние на момент записи.
	State string
	// Memo — произвольные метаданные изменения.
	Memo map[string]any
	// CreatedAt — форматированная метка времени записи.
	CreatedAt string
}

// Cost — стоимость заказа, возвращаемая прайсинг-коллаборатором.
type Cost struct {
	// Products — суммарная стоимость позиций.
	Products int64
	// Shipping — стоимость доставки.
	Shipping int64
	// Discount — применённые скидки.
	Discount Discount
	// Total — итог: Products + Shipping - скидки.
	Total int64
}

// Discount — скидки по составляющим стоимости.
type Discount struct {
	Products int64
	Shipping int64
}

// LineStateView — проекция состояния одной позиции для ListStates.
type LineStateView struct {
	ProductID int64
	State     string
}

// OrderStateView — проекция состояний заказа и его позиций.
type OrderStateView struct {
	OrderID int64
	State   string
	Lines   []LineStateView
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == 0 {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	// Сверяем стоимость позиций с суммой снимков цен.
	var calc int64
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.Price < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += line.Price
	}
	if calc != o.Cost.Products {
		errs = append(errs, ErrCostMismatch)
	}

	return errs
}

// Line возвращает позицию заказа по идентификатору товара.
func (o *Order) Line(productID int64) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return OrderLine{}, false
}
