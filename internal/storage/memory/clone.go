package memory

import "github.com/vladislavdragonenkov/market/internal/domain"

// Глубокое копирование защищает сохранённые заказы от мутаций извне:
// history остаётся append-only, а возвращённые значения можно менять свободно.

func cloneOrder(o domain.Order) domain.Order {
	c := o
	c.Delivery = cloneMap(o.Delivery)
	c.History = cloneHistory(o.History)
	c.Lines = make([]domain.OrderLine, len(o.Lines))
	for i, line := range o.Lines {
		c.Lines[i] = cloneLine(line)
	}
	if o.Buyer != nil {
		buyer := *o.Buyer
		c.Buyer = &buyer
	}
	return c
}

func cloneLine(l domain.OrderLine) domain.OrderLine {
	c := l
	c.Extra = cloneMap(l.Extra)
	c.Delivery = cloneMap(l.Delivery)
	c.History = cloneHistory(l.History)
	return c
}

func cloneHistory(entries []domain.HistoryEntry) []domain.HistoryEntry {
	if entries == nil {
		return nil
	}
	result := make([]domain.HistoryEntry, len(entries))
	for i, e := range entries {
		result[i] = cloneEntry(e)
	}
	return result
}

func cloneEntry(e domain.HistoryEntry) domain.HistoryEntry {
	c := e
	c.Memo = cloneMap(e.Memo)
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
