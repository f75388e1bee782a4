// Package importer is the schema normalizer: it infers a canonical field
// mapping over uncontrolled CSV headers and coerces each row into a typed
// sale record, or discards it.
package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"

	"salescope/backend/internal/config"
	"salescope/backend/internal/domain"
	"salescope/backend/internal/xid"
)

// ErrSchemaUnrecognized means header inference failed the minimum-viability
// rule. The import fails before any row is processed and the store is left
// untouched.
var ErrSchemaUnrecognized = errors.New("schema unrecognized: the file must contain a date column and either a product or a total price column")

const (
	defaultCategory = "General"
	defaultProduct  = "Unknown Product"
)

// Normalizer turns raw tables into validated sale records. It is stateless
// across imports; one instance is shared by all requests.
type Normalizer struct {
	table      []FieldKeywords
	maxField   int
	datePolicy string
	fallbacks  []encoding.Encoding
	now        func() time.Time
}

type Option func(*Normalizer)

// WithKeywordTable overrides the header keyword table.
func WithKeywordTable(table []FieldKeywords) Option {
	return func(n *Normalizer) { n.table = table }
}

// WithMaxFieldLength bounds category/product text length.
func WithMaxFieldLength(max int) Option {
	return func(n *Normalizer) {
		if max > 0 {
			n.maxField = max
		}
	}
}

// WithDatePolicy selects what happens to rows with unparsable dates:
// substitute the processing date (default) or reject the row.
func WithDatePolicy(policy string) Option {
	return func(n *Normalizer) {
		if policy == config.DatePolicyReject {
			n.datePolicy = policy
		}
	}
}

// WithEncodingFallbacks overrides the ordered encoding list tried after
// UTF-8 when decoding a raw source.
func WithEncodingFallbacks(fallbacks []encoding.Encoding) Option {
	return func(n *Normalizer) {
		if len(fallbacks) > 0 {
			n.fallbacks = fallbacks
		}
	}
}

// WithClock fixes the processing-date source, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		table:      DefaultKeywordTable,
		maxField:   120,
		datePolicy: config.DatePolicySubstitute,
		fallbacks:  DefaultFallbackEncodings,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ReadTable decodes raw CSV bytes with this normalizer's encoding fallback
// list.
func (n *Normalizer) ReadTable(data []byte) (*RawTable, error) {
	return ReadTable(data, n.fallbacks...)
}

// Normalize maps and coerces every row of the table into sale records owned
// by ownerID. Row failures are local: a row is dropped only when its final
// total price is zero and no signal existed to derive one, or when the date
// policy is "reject" and the date cell did not parse. A non-viable mapping
// fails the whole import with ErrSchemaUnrecognized.
func (n *Normalizer) Normalize(table *RawTable, ownerID string) ([]domain.SaleRecord, domain.ImportStats, error) {
	stats := domain.ImportStats{}
	if ownerID == "" {
		return nil, stats, fmt.Errorf("owner id required")
	}

	mapping := BuildFieldMapping(table.Headers, n.table)
	if !mapping.Viable() {
		return nil, stats, ErrSchemaUnrecognized
	}

	// The processing date is fixed once per import so every substituted
	// date within one file agrees.
	processingDate := truncateToDay(n.now())
	createdAt := n.now()

	records := make([]domain.SaleRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		stats.RowsSeen++
		record, ok := n.coerceRow(table, mapping, row, ownerID, processingDate, createdAt)
		if !ok {
			stats.RowsRejected++
			continue
		}
		stats.RowsAccepted++
		records = append(records, record)
	}

	return records, stats, nil
}

func (n *Normalizer) coerceRow(table *RawTable, mapping FieldMapping, row []string, ownerID string, processingDate time.Time, createdAt time.Time) (domain.SaleRecord, bool) {
	record := domain.SaleRecord{
		ID:        xid.New("sale"),
		OwnerID:   ownerID,
		CreatedAt: createdAt,
	}

	record.Date = processingDate
	if header, ok := mapping.Header(FieldDate); ok {
		if parsed, ok := parseDate(table.Cell(row, header)); ok {
			record.Date = parsed
		} else if n.datePolicy == config.DatePolicyReject {
			return domain.SaleRecord{}, false
		}
	}

	record.Category = defaultCategory
	if header, ok := mapping.Header(FieldCategory); ok {
		record.Category = truncateText(table.Cell(row, header), n.maxField, defaultCategory)
	}

	record.Product = defaultProduct
	if header, ok := mapping.Header(FieldProduct); ok {
		record.Product = truncateText(table.Cell(row, header), n.maxField, defaultProduct)
	}

	record.Quantity = 1
	if header, ok := mapping.Header(FieldQuantity); ok {
		record.Quantity = parseQuantity(table.Cell(row, header))
	}

	if header, ok := mapping.Header(FieldUnitPrice); ok {
		record.UnitPrice = parseMoney(table.Cell(row, header))
	}

	if header, ok := mapping.Header(FieldTotalPrice); ok {
		record.TotalPrice = parseMoney(table.Cell(row, header))
	}

	// Total price is authoritative; derive it from unit price and quantity
	// only when the source gave none.
	if record.TotalPrice.IsZero() && record.UnitPrice.IsPositive() {
		record.TotalPrice = record.UnitPrice.Mul(decimal.NewFromInt(int64(record.Quantity)))
	}

	if record.TotalPrice.IsZero() {
		return domain.SaleRecord{}, false
	}

	return record, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
