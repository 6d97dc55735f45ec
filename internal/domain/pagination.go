package domain

// SortKey — один ключ сортировки выборки. Ключи передаются вызывающей
// стороной как есть и не сверяются со списком колонок.
type SortKey struct {
	Field string
	Desc  bool
}

// ListQuery — параметры постраничной выборки.
type ListQuery struct {
	// Page — номер страницы, нумерация с 1.
	Page int
	// Limit — размер страницы; 0 означает одну безразмерную страницу.
	Limit int
	// Sort — ключи сортировки в порядке приоритета.
	Sort []SortKey
}

// Normalize приводит параметры к допустимым значениям.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	return q
}

// Offset возвращает смещение выборки для текущей страницы.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Pagination описывает итог постраничной выборки.
type Pagination struct {
	Page  int
	Limit int
	Total int
	// TotalPages равен 1 при Limit == 0, иначе ceil(Total / Limit).
	TotalPages int
}

// NewPagination вычисляет итог постраничной выборки по контракту limit=0.
func NewPagination(q ListQuery, total int) Pagination {
	p := Pagination{Page: q.Page, Limit: q.Limit, Total: total}
	if q.Limit == 0 {
		p.TotalPages = 1
		return p
	}
	p.TotalPages = (total + q.Limit - 1) / q.Limit
	return p
}
