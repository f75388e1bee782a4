package importer

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts is tried in order. The list leads with ISO forms because most
// point-of-sale exports emit them, then falls through to the US and European
// orderings the sample uploads actually contained.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006 15:04",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"02.01.2006",
}

// parseDate attempts each known layout and truncates any time-of-day
// component; sale records carry calendar dates only.
func parseDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// currencyReplacer strips the currency symbols and thousands separators seen
// across uploaded exports. The decimal point survives; everything else that
// is not a digit or sign falls out before parsing.
var currencyReplacer = strings.NewReplacer(
	"R$", "", "Rp", "", "USD", "", "usd", "",
	"$", "", "€", "", "£", "", "¥", "", "₹", "",
	",", "", " ", "", " ", "",
)

// parseMoney coerces a currency-formatted cell into a non-negative decimal.
// Unparsable or negative values coerce to zero rather than failing the row.
func parseMoney(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(currencyReplacer.Replace(raw))
	if cleaned == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil || value.IsNegative() {
		return decimal.Zero
	}
	return value
}

// parseQuantity coerces an integer quantity, truncating fractional input.
// Absent or unparsable cells default to one unit so a row with only a total
// price still counts as one order.
func parseQuantity(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 1
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n < 0 {
			return 1
		}
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f >= 0 {
		return int(f)
	}
	return 1
}

// truncateText bounds a free-text field to maxLen runes, substituting the
// fallback when the cell is empty.
func truncateText(raw string, maxLen int, fallback string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	runes := []rune(trimmed)
	if maxLen > 0 && len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return trimmed
}
