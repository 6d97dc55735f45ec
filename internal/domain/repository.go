package domain

import "context"

// Store резолвит арендатора в изолированное логическое хранилище.
// Все реализации обязаны устанавливать нижележащее подключение не более
// одного раза за время жизни процесса, сколько бы арендаторов ни резолвилось.
type Store interface {
	// Resolve возвращает хранилище арендатора или ErrUnknownTenant /
	// ErrConnection.
	Resolve(ctx context.Context, tenantID string) (TenantStore, error)
	// Teardown освобождает общий ресурс подключения; идемпотентен.
	Teardown() error
}

// TenantStore — изолированное хранилище одного арендатора. Кросс-арендные
// чтения невозможны по построению.
type TenantStore interface {
	// NextSeq атомарно выделяет следующий целочисленный идентификатор для
	// сущностей вида kind. Первый вызов для нового kind возвращает 1 и
	// долговечно фиксирует, что следующее значение — 2. Два вызова никогда
	// не получают одно значение для одной пары (арендатор, kind).
	NextSeq(ctx context.Context, kind string) (int64, error)

	Products() ProductRepository
	Orders() OrderRepository
	Carts() CartRepository
}

// ProductRepository — каталог-коллаборатор с точки зрения ядра заказов:
// чтение по идентификатору и условный инкремент buy_quantity.
type ProductRepository interface {
	// Get возвращает товар или ProductNotFoundError.
	Get(ctx context.Context, id int64) (Product, error)
	// CommitPurchase атомарно увеличивает buy_quantity на qty, только если
	// quantity - buy_quantity >= qty на момент применения. Иначе возвращает
	// InsufficientStockError с актуальным остатком. Проверка и запись — одна
	// операция: параллельные заказы не могут продать сверх остатка.
	CommitPurchase(ctx context.Context, id, qty int64) error
	// ReleasePurchase — компенсация: уменьшает buy_quantity на qty.
	ReleasePurchase(ctx context.Context, id, qty int64) error
}

// CartRepository — корзина-коллаборатор: выборка по покупателю и удаление
// по списку идентификаторов.
type CartRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]CartItem, error)
	DeleteMany(ctx context.Context, userID int64, ids []int64) error
}

// OrderRepository описывает требования к хранилищу заказов арендатора.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями одной записью.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// GetForUser возвращает заказ, только если он принадлежит покупателю.
	GetForUser(ctx context.Context, id, userID int64) (Order, error)
	// GetForSeller возвращает заказ, только если в нём есть позиции продавца;
	// чужие позиции отфильтровываются, покупатель присоединяется без
	// чувствительных полей.
	GetForSeller(ctx context.Context, id, sellerID int64) (Order, error)

	// ListByUser возвращает страницу заказов покупателя.
	ListByUser(ctx context.Context, userID int64, q ListQuery) ([]Order, Pagination, error)
	// ListStates возвращает проекцию состояний заказов и позиций покупателя.
	ListStates(ctx context.Context, userID int64) ([]OrderStateView, error)
	// ListBySeller возвращает страницу заказов, содержащих позиции продавца.
	// Фильтрация позиций выполняется после отбора заказов: продавец видит
	// только свои позиции внутри общего заказа.
	ListBySeller(ctx context.Context, sellerID int64, q ListQuery) ([]Order, Pagination, error)
	// ListByProduct возвращает заказы с указанным товаром указанного продавца.
	ListByProduct(ctx context.Context, productID, sellerID int64) ([]Order, error)

	// UpdateState перезаписывает состояние заказа (и delivery, если задано),
	// добавляет одну запись истории и обновляет updatedAt. Прежняя история
	// не переписывается.
	UpdateState(ctx context.Context, id int64, state string, delivery map[string]any, updatedAt string, entry HistoryEntry) error
	// UpdateLineState — то же для одной позиции, адресуемой по товару.
	// Если позиция не найдена — ErrLineNotFound, заказ не меняется.
	UpdateLineState(ctx context.Context, orderID, productID int64, state string, delivery map[string]any, updatedAt string, entry HistoryEntry) error
	// SetLineReview проставляет ссылку на отзыв у совпавшей позиции.
	SetLineReview(ctx context.Context, orderID, productID, reviewID int64) error
}
