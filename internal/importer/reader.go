package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrSourceUnreadable means the raw bytes could not be decoded into a table
// with any of the fallback encodings. Nothing is imported.
var ErrSourceUnreadable = errors.New("source unreadable")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultFallbackEncodings is tried in order after plain UTF-8.
// Windows-1252 covers the overwhelming majority of spreadsheet exports that
// are not UTF-8; Latin-1 is the final permissive catch-all.
var DefaultFallbackEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// EncodingsByName resolves IANA charset names ("windows-1252", "iso-8859-1")
// into an ordered fallback list. Unresolvable names are skipped.
func EncodingsByName(names []string) []encoding.Encoding {
	encs := make([]encoding.Encoding, 0, len(names))
	for _, name := range names {
		enc, err := ianaindex.IANA.Encoding(strings.TrimSpace(name))
		if err != nil || enc == nil {
			continue
		}
		encs = append(encs, enc)
	}
	return encs
}

// RawTable is the transient, untyped view of one uploaded source: ordered
// headers plus rows of string cells. Rows may be ragged; cells beyond the
// header width are dropped and missing cells read as empty.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the row's value under the given raw header, or "" when the
// header is unknown or the row is short.
func (t *RawTable) Cell(row []string, header string) string {
	for i, h := range t.Headers {
		if h == header {
			if i < len(row) {
				return row[i]
			}
			return ""
		}
	}
	return ""
}

// ReadTable decodes raw CSV bytes into a RawTable. UTF-8 is always tried
// first; the given fallbacks follow in order (DefaultFallbackEncodings when
// none are given) before giving up with ErrSourceUnreadable.
func ReadTable(data []byte, fallbacks ...encoding.Encoding) (*RawTable, error) {
	if len(fallbacks) == 0 {
		fallbacks = DefaultFallbackEncodings
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var lastErr error
	for _, enc := range append([]encoding.Encoding{unicode.UTF8}, fallbacks...) {
		decoded := data
		if enc != unicode.UTF8 {
			converted, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				lastErr = err
				continue
			}
			decoded = converted
		} else if !utf8.Valid(data) {
			lastErr = fmt.Errorf("input is not valid UTF-8")
			continue
		}

		table, err := parseCSV(decoded)
		if err != nil {
			lastErr = err
			continue
		}
		return table, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, lastErr)
}

func parseCSV(data []byte) (*RawTable, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}

	rows := make([][]string, 0, 256)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read data row: %w", err)
		}
		rows = append(rows, row)
	}

	return &RawTable{Headers: headers, Rows: rows}, nil
}
