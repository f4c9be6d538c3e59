package extract

import "strings"

// Column roles recognized in line-item table headers.
const (
	roleDescription = "description"
	roleQuantity    = "quantity"
	rolePrice       = "price"
	roleUOM         = "uom"
	roleTotal       = "total"
	roleDate        = "date"
)

// lineItems walks every detected table and collects rows from the
// line-item-bearing ones, preserving source row order.
func (e *Extractor) lineItems(tables [][][]string, kv map[string]string) []LineItem {
	var items []LineItem
	for _, table := range tables {
		if len(table) < 2 {
			continue
		}
		headers := table[0]
		if !isLineItemTable(headers) {
			continue
		}
		roles := headerMap(headers)
		for _, row := range table[1:] {
			if len(row) < len(headers) || allEmpty(row) || isSummaryRow(row) {
				continue
			}
			item := lineItem(row, roles, kv)
			if item.Description == "" || strings.HasPrefix(item.Description, "**") {
				continue
			}
			items = append(items, item)
		}
	}
	return items
}

// isLineItemTable reports whether a header row marks a table that carries
// order lines rather than address blocks or totals.
func isLineItemTable(headers []string) bool {
	joined := strings.ToLower(strings.Join(headers, " "))
	return strings.Contains(joined, "description") ||
		strings.Contains(joined, "material") ||
		strings.Contains(joined, "product")
}

// isSummaryRow filters footer rows (totals, subtotals, markup markers) out
// of the line items.
func isSummaryRow(row []string) bool {
	joined := strings.ToLower(strings.Join(row, " "))
	return strings.Contains(joined, "total") ||
		strings.Contains(joined, "subtotal") ||
		strings.Contains(joined, "**")
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// headerMap assigns each column index a semantic role by substring matching
// against a priority-ordered keyword list. A column claims at most one role.
//
// Quantity tie-break: documents sometimes carry both an ordered-quantity and
// a billing-quantity column; when a later quantity-like header contains
// "billing" or sits past index 5 it wins, otherwise the first match stands.
func headerMap(headers []string) map[string]int {
	roles := make(map[string]int)
	for i, h := range headers {
		header := strings.ToLower(h)
		switch {
		case containsAny(header, "desc", "product", "material"):
			roles[roleDescription] = i
		case containsAny(header, "qty", "quant", "number of"):
			if strings.Contains(header, "billing") || i > 5 {
				roles[roleQuantity] = i
			} else if _, ok := roles[roleQuantity]; !ok {
				roles[roleQuantity] = i
			}
		case containsAny(header, "price", "rate"):
			roles[rolePrice] = i
		case containsAny(header, "uom", "u m", "packaging"):
			roles[roleUOM] = i
		case containsAny(header, "amount", "total"):
			roles[roleTotal] = i
		case containsAny(header, "date", "delivery"):
			roles[roleDate] = i
		}
	}
	return roles
}

// lineItem populates one item from a data row using the header role map.
// The quantity falls back to the document-level "Total Quantity" pair when
// no quantity column exists.
func lineItem(row []string, roles map[string]int, kv map[string]string) LineItem {
	item := LineItem{Description: cell(row, roles, roleDescription, 0)}

	if i, ok := roles[roleQuantity]; ok {
		item.Quantity = Number(row[i])
	} else {
		item.Quantity = Number(kv["Total Quantity"])
	}
	if i, ok := roles[rolePrice]; ok {
		item.UnitPrice = Number(row[i])
	}
	if i, ok := roles[roleTotal]; ok {
		item.TotalPrice = Number(row[i])
	}
	if i, ok := roles[roleUOM]; ok {
		item.UnitOfMeasure = row[i]
	}
	if i, ok := roles[roleDate]; ok {
		item.DeliveryDate = row[i]
	}
	return item
}

func cell(row []string, roles map[string]int, role string, fallback int) string {
	i, ok := roles[role]
	if !ok {
		i = fallback
	}
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
