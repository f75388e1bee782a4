package importer

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"

	"salescope/backend/internal/config"
)

var testClock = func() time.Time {
	return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
}

func mustTable(t *testing.T, csv string) *RawTable {
	t.Helper()
	table, err := ReadTable([]byte(csv))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	return table
}

func TestNormalizeMapsRetailExportHeaders(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Order Date,SKU,Units,Price Each`,
		`2024-01-15,WIDGET-1,3,$10.00`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock))
	records, stats, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if stats.RowsSeen != 1 || stats.RowsAccepted != 1 || stats.RowsRejected != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	record := records[0]
	if !record.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", record.Date)
	}
	// "sku" is a product keyword, so SKU-only exports keep product identity.
	if record.Product != "WIDGET-1" {
		t.Fatalf("product = %q", record.Product)
	}
	if record.Category != "General" {
		t.Fatalf("category = %q", record.Category)
	}
	if record.Quantity != 3 {
		t.Fatalf("quantity = %d", record.Quantity)
	}
	if record.UnitPrice.String() != "10" {
		t.Fatalf("unit price = %s", record.UnitPrice)
	}
	// Total absent in source: derived as unit price times quantity.
	if record.TotalPrice.String() != "30" {
		t.Fatalf("total price = %s", record.TotalPrice)
	}
}

func TestNormalizeFailsFastOnUnrecognizedSchema(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Foo,Bar,Baz`,
		`1,2,3`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock))
	records, stats, err := n.Normalize(table, "owner-1")
	if err == nil || !strings.Contains(err.Error(), "schema unrecognized") {
		t.Fatalf("expected schema error, got %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records on schema failure")
	}
	if stats.RowsSeen != 0 {
		t.Fatalf("no rows should be processed before the viability gate, stats = %+v", stats)
	}
}

func TestNormalizeParsesThousandsSeparators(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Date,Product,Total`,
		`2024-02-01,Desk,"1,234.56"`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock))
	records, _, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if records[0].TotalPrice.String() != "1234.56" {
		t.Fatalf("total = %s", records[0].TotalPrice)
	}
}

func TestNormalizeSubstitutesProcessingDateByDefault(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Date,Product,Total`,
		`not-a-date,Lamp,25.00`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock))
	records, stats, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if stats.RowsAccepted != 1 {
		t.Fatalf("row with bad date must be retained, stats = %+v", stats)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !records[0].Date.Equal(want) {
		t.Fatalf("date = %v, want processing date %v", records[0].Date, want)
	}
}

func TestNormalizeRejectPolicyDropsBadDates(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Date,Product,Total`,
		`not-a-date,Lamp,25.00`,
		`2024-02-01,Desk,40.00`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock), WithDatePolicy(config.DatePolicyReject))
	records, stats, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if stats.RowsAccepted != 1 || stats.RowsRejected != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if records[0].Product != "Desk" {
		t.Fatalf("surviving record = %+v", records[0])
	}
}

func TestNormalizeRejectsRowsWithoutRevenueSignal(t *testing.T) {
	table := mustTable(t, strings.Join([]string{
		`Date,Product,Quantity,Unit Price,Total`,
		`2024-03-01,Chair,2,15.00,0`,  // derivable: unit price and quantity exist
		`2024-03-02,Stool,3,,`,        // no price signal at all
		`2024-03-03,Bench,0,20.00,0`,  // quantity zero, derivation yields zero
		`2024-03-04,Table,1,0,80.00`, // total authoritative
	}, "\n"))

	n := NewNormalizer(WithClock(testClock))
	records, stats, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if stats.RowsSeen != 4 || stats.RowsAccepted != 2 || stats.RowsRejected != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if records[0].TotalPrice.String() != "30" {
		t.Fatalf("derived total = %s", records[0].TotalPrice)
	}
	if records[1].TotalPrice.String() != "80" {
		t.Fatalf("authoritative total = %s", records[1].TotalPrice)
	}
}

func TestNormalizeTruncatesLongTextFields(t *testing.T) {
	longName := strings.Repeat("x", 300)
	table := mustTable(t, strings.Join([]string{
		`Date,Product,Category,Total`,
		`2024-04-01,` + longName + `,Gadgets,10.00`,
	}, "\n"))

	n := NewNormalizer(WithClock(testClock), WithMaxFieldLength(50))
	records, _, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(records[0].Product) != 50 {
		t.Fatalf("product length = %d", len(records[0].Product))
	}
}

func TestReadTableFallsBackToWindows1252(t *testing.T) {
	// "Café" with 0xE9 is invalid UTF-8 but fine in Windows-1252.
	raw := append([]byte(`Date,Product,Total`+"\n"+`2024-05-01,Caf`), 0xE9)
	raw = append(raw, []byte(",12.00\n")...)

	table, err := ReadTable(raw)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	n := NewNormalizer(WithClock(testClock))
	records, _, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if records[0].Product != "Café" {
		t.Fatalf("product = %q", records[0].Product)
	}
}

func TestReadTableStripsUTF8BOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Date,Total\n2024-01-01,5.00\n")...)
	table, err := ReadTable(raw)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if table.Headers[0] != "Date" {
		t.Fatalf("BOM leaked into header: %q", table.Headers[0])
	}
}

func TestReadTableUnreadableSource(t *testing.T) {
	if _, err := ReadTable([]byte{}); err == nil {
		t.Fatalf("expected error on empty source")
	}
}

func TestEncodingsByNameResolvesIANANames(t *testing.T) {
	encs := EncodingsByName([]string{"windows-1252", " iso-8859-1 ", "no-such-charset"})
	if len(encs) != 2 {
		t.Fatalf("expected 2 resolved encodings, got %d", len(encs))
	}
}

func TestReadTableHonorsConfiguredFallbackList(t *testing.T) {
	// 0x92 is a curly apostrophe in Windows-1252 and a control character in
	// ISO-8859-1, so the fallback order decides the decoded text.
	raw := append([]byte(`Date,Product,Total`+"\n"+`2024-05-01,O`), 0x92)
	raw = append(raw, []byte("Brien,12.00\n")...)

	table, err := ReadTable(raw)
	if err != nil {
		t.Fatalf("read table with default fallbacks: %v", err)
	}
	if got := table.Rows[0][1]; got != "O’Brien" {
		t.Fatalf("default fallback product = %q", got)
	}

	table, err = ReadTable(raw, charmap.ISO8859_1)
	if err != nil {
		t.Fatalf("read table with iso-8859-1: %v", err)
	}
	if got := table.Rows[0][1]; got != "OBrien" {
		t.Fatalf("iso-8859-1 product = %q", got)
	}
}

func TestNormalizerReadTableUsesConfiguredEncodings(t *testing.T) {
	raw := append([]byte(`Date,Product,Total`+"\n"+`2024-05-01,O`), 0x92)
	raw = append(raw, []byte("Brien,12.00\n")...)

	n := NewNormalizer(
		WithClock(testClock),
		WithEncodingFallbacks(EncodingsByName([]string{"iso-8859-1"})),
	)
	table, err := n.ReadTable(raw)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	records, _, err := n.Normalize(table, "owner-1")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if records[0].Product != "OBrien" {
		t.Fatalf("product = %q", records[0].Product)
	}
}
