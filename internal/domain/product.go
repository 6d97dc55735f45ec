package domain

// Product — товар каталога. Ядро заказов читает товар и меняет только
// buy_quantity; остальные поля принадлежат каталог-коллаборатору.
type Product struct {
	ID       int64
	SellerID int64
	Name     string
	// Price — цена за единицу.
	Price int64
	// Quantity — общий завезённый остаток.
	Quantity int64
	// BuyQuantity — накопленное купленное количество.
	// Доступно к продаже: Quantity - BuyQuantity.
	BuyQuantity int64
	// MainImages — изображения товара; первое используется как снимок в заказе.
	MainImages []string
	// Extra — произвольные атрибуты товара.
	Extra map[string]any
	// Active и Show — флаги каталога; ядро заказов переносит их как есть.
	Active bool
	Show   bool
}

// Available возвращает доступное к продаже количество.
func (p *Product) Available() int64 {
	return p.Quantity - p.BuyQuantity
}

// MainImage возвращает первое изображение товара или пустую строку.
func (p *Product) MainImage() string {
	if len(p.MainImages) == 0 {
		return ""
	}
	return p.MainImages[0]
}

// CartItem — запись корзины покупателя.
type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int64
	CreatedAt string
	UpdatedAt string
}

// Buyer — публичная часть профиля покупателя, присоединяемая к заказам
// в выборках продавца. Чувствительные поля (пароль, адрес, refresh token)
// сюда не попадают.
type Buyer struct {
	ID    int64
	Name  string
	Email string
	Image string
}
