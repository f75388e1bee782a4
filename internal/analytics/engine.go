// Package analytics reduces a normalized record set into the aggregate
// views the dashboard and analytics surfaces render. Aggregate is a pure
// function: it holds no locks, touches no storage, and is safe to recompute
// concurrently for any number of owners.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"salescope/backend/internal/domain"
)

// NoDataProduct is returned as the best-selling product when the record set
// is empty. Aggregation never errors on valid input; it degrades to zeros.
const NoDataProduct = "N/A"

// Granularity selects the trend bucket size.
type Granularity int

const (
	Daily Granularity = iota
	Monthly
)

func (g Granularity) layout() string {
	if g == Monthly {
		return "2006-01"
	}
	return "2006-01-02"
}

// ProductTotal carries a product's exact summed revenue together with its
// first-seen position, which is the tie-break for best-product and top-N.
type ProductTotal struct {
	Product   string
	Revenue   decimal.Decimal
	firstSeen int
}

// View is the non-persisted aggregate over one owner's records. All sums
// are exact decimals; rounding happens only when a presentation payload is
// built from the view.
type View struct {
	TotalRevenue  decimal.Decimal
	OrderCount    int
	AvgOrderValue decimal.Decimal
	BestProduct   string
	Trend         map[string]decimal.Decimal
	CategorySales map[string]decimal.Decimal
	TopProducts   []ProductTotal
}

// Aggregate reduces records in one pass: running totals, per-bucket trend
// sums, per-category sums and per-product sums, then a k log k sort for the
// top-N cut. Bucket keys are sortable strings (YYYY-MM-DD or YYYY-MM) and
// empty buckets are omitted.
func Aggregate(records []domain.SaleRecord, granularity Granularity, topN int) View {
	view := View{
		BestProduct:   NoDataProduct,
		Trend:         make(map[string]decimal.Decimal),
		CategorySales: make(map[string]decimal.Decimal),
	}
	if topN < 1 {
		topN = 5
	}

	byProduct := make(map[string]*ProductTotal)
	order := 0

	for _, record := range records {
		revenue := record.TotalPrice
		view.TotalRevenue = view.TotalRevenue.Add(revenue)
		view.OrderCount++

		bucket := record.Date.Format(granularity.layout())
		view.Trend[bucket] = view.Trend[bucket].Add(revenue)
		view.CategorySales[record.Category] = view.CategorySales[record.Category].Add(revenue)

		total, ok := byProduct[record.Product]
		if !ok {
			total = &ProductTotal{Product: record.Product, firstSeen: order}
			byProduct[record.Product] = total
			order++
		}
		total.Revenue = total.Revenue.Add(revenue)
	}

	if view.OrderCount > 0 {
		view.AvgOrderValue = view.TotalRevenue.Div(decimal.NewFromInt(int64(view.OrderCount)))
	}

	products := make([]ProductTotal, 0, len(byProduct))
	for _, total := range byProduct {
		products = append(products, *total)
	}
	// Descending by revenue; equal revenues keep first-seen input order so
	// repeated aggregation over the same stored sequence is reproducible.
	sort.SliceStable(products, func(i, j int) bool {
		cmp := products[i].Revenue.Cmp(products[j].Revenue)
		if cmp != 0 {
			return cmp > 0
		}
		return products[i].firstSeen < products[j].firstSeen
	})

	if len(products) > 0 {
		view.BestProduct = bestProduct(products)
	}
	if len(products) > topN {
		products = products[:topN]
	}
	view.TopProducts = products

	return view
}

// bestProduct is the argmax over per-product revenue. Ties go to the product
// seen earliest in the input, not to the product whose running sum reached
// the shared maximum first; the two orders differ when a later-seen product
// completes its sum on an earlier row. The slice is already revenue-sorted
// with first-seen as secondary order, so the head is the answer.
func bestProduct(sorted []ProductTotal) string {
	return sorted[0].Product
}

// round2 converts an exact decimal into a presentation value with two
// decimal places.
func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// DashboardSummary builds the presentation payload for the dashboard view:
// daily trend plus category breakdown, all monetary values rounded here.
func DashboardSummary(view View) domain.DashboardSummary {
	return domain.DashboardSummary{
		TotalRevenue:  round2(view.TotalRevenue),
		OrderCount:    view.OrderCount,
		AvgOrderValue: round2(view.AvgOrderValue),
		BestProduct:   view.BestProduct,
		SalesTrend:    roundMap(view.Trend),
		CategorySales: roundMap(view.CategorySales),
	}
}

// AnalyticsReport builds the presentation payload for the analytics view:
// monthly trend, category breakdown and ordered top-N products.
func AnalyticsReport(view View) domain.AnalyticsReport {
	performance := make([]domain.ProductRevenue, 0, len(view.TopProducts))
	for _, total := range view.TopProducts {
		performance = append(performance, domain.ProductRevenue{
			Product: total.Product,
			Revenue: round2(total.Revenue),
		})
	}
	return domain.AnalyticsReport{
		MonthlySales:       roundMap(view.Trend),
		CategorySales:      roundMap(view.CategorySales),
		ProductPerformance: performance,
	}
}

func roundMap(in map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = round2(v)
	}
	return out
}
