package importer

import "strings"

// Field is one of the six canonical record fields every import must map raw
// headers onto.
type Field string

const (
	FieldDate       Field = "date"
	FieldCategory   Field = "category"
	FieldProduct    Field = "product"
	FieldQuantity   Field = "quantity"
	FieldUnitPrice  Field = "unit_price"
	FieldTotalPrice Field = "total_price"
)

// FieldKeywords binds a canonical field to its priority-ordered keyword
// substrings. The table below is the whole mapping heuristic: it is data,
// not code, so tests can exercise it directly and deployments can reason
// about what a given header set will resolve to.
type FieldKeywords struct {
	Field    Field
	Keywords []string
}

// DefaultKeywordTable is evaluated top to bottom, and within one field the
// keywords are tried in order against every normalized header. The first
// header containing a keyword claims the field and is removed from
// consideration by the remaining fields.
//
// Price fields are claimed before quantity and product so that a header like
// "Unit Price" cannot be stolen by a broader keyword lower in the table.
// "sku" counts as a product keyword: retail exports frequently carry only a
// SKU column, and losing product identity there would empty the top-N view.
var DefaultKeywordTable = []FieldKeywords{
	{Field: FieldDate, Keywords: []string{"date", "day", "time"}},
	{Field: FieldTotalPrice, Keywords: []string{"total", "sales", "amount", "revenue", "grand"}},
	{Field: FieldUnitPrice, Keywords: []string{"unit price", "unit_price", "price each", "price", "rate"}},
	{Field: FieldQuantity, Keywords: []string{"quantity", "qty", "units", "count", "sold"}},
	{Field: FieldProduct, Keywords: []string{"product", "item", "name", "sku", "description"}},
	{Field: FieldCategory, Keywords: []string{"category", "cat", "type", "department", "group"}},
}

// FieldMapping records which raw header supplies each canonical field.
// Built once per import and never mutated afterwards.
type FieldMapping struct {
	byField map[Field]string
}

// Header returns the raw header bound to the field, if any.
func (m FieldMapping) Header(f Field) (string, bool) {
	h, ok := m.byField[f]
	return h, ok
}

// Viable reports whether the minimal mapping holds: a date column plus at
// least one of product or total price. Anything less and no row could carry
// a usable revenue signal.
func (m FieldMapping) Viable() bool {
	if _, ok := m.byField[FieldDate]; !ok {
		return false
	}
	_, hasProduct := m.byField[FieldProduct]
	_, hasTotal := m.byField[FieldTotalPrice]
	return hasProduct || hasTotal
}

// normalizeHeader case-folds a raw header and collapses whitespace, hyphens
// and underscores to single spaces, so "Unit-Price", "unit_price" and
// " Unit  Price " all compare equal.
func normalizeHeader(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.NewReplacer("-", " ", "_", " ").Replace(lowered)
	return strings.Join(strings.Fields(lowered), " ")
}

// BuildFieldMapping resolves raw headers against the keyword table using
// first-match-wins with no backtracking. Headers are considered in their
// original column order; a header claimed by one field is invisible to the
// fields after it.
func BuildFieldMapping(headers []string, table []FieldKeywords) FieldMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	claimed := make([]bool, len(headers))
	mapping := FieldMapping{byField: make(map[Field]string, len(table))}

	for _, entry := range table {
		if match, ok := firstMatch(normalized, claimed, entry.Keywords); ok {
			mapping.byField[entry.Field] = headers[match]
			claimed[match] = true
		}
	}

	return mapping
}

func firstMatch(normalized []string, claimed []bool, keywords []string) (int, bool) {
	for _, kw := range keywords {
		for i, header := range normalized {
			if claimed[i] || header == "" {
				continue
			}
			if strings.Contains(header, kw) {
				return i, true
			}
		}
	}
	return 0, false
}
