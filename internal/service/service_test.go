package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"salescope/backend/internal/cache"
	"salescope/backend/internal/domain"
	"salescope/backend/internal/importer"
	"salescope/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	normalizer := importer.NewNormalizer(importer.WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	svc := New(repo, normalizer, cache.NoopViewCache{}, 5, zerolog.Nop())
	return svc, repo
}

// fakeViewCache keeps payloads in a map and records every invalidated key,
// standing in for the redis view cache.
type fakeViewCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newFakeViewCache() *fakeViewCache {
	return &fakeViewCache{data: make(map[string][]byte)}
}

func (c *fakeViewCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *fakeViewCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = payload
	return nil
}

func (c *fakeViewCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.data, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

func (c *fakeViewCache) sawInvalidation(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.invalidated {
		if k == key {
			return true
		}
	}
	return false
}

func newCachedTestService() (*Service, *fakeViewCache) {
	repo := memory.New()
	normalizer := importer.NewNormalizer(importer.WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	views := newFakeViewCache()
	svc := New(repo, normalizer, views, 5, zerolog.Nop())
	return svc, views
}

const sampleCSV = `Date,Category,Product,Quantity,Unit Price,Total Price
2024-01-15,Electronics,Headphones,2,50.00,100.00
2024-01-16,Electronics,Keyboard,1,80.00,80.00
2024-02-01,Furniture,Desk,1,250.00,250.00
`

func TestImportCSVThenDashboard(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if resp.Stats.RowsAccepted != 3 || resp.Stats.RowsRejected != 0 {
		t.Fatalf("stats = %+v", resp.Stats)
	}

	summary, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.TotalRevenue != 430.00 {
		t.Fatalf("total revenue = %v", summary.TotalRevenue)
	}
	if summary.OrderCount != 3 {
		t.Fatalf("order count = %d", summary.OrderCount)
	}
	if summary.BestProduct != "Desk" {
		t.Fatalf("best product = %q", summary.BestProduct)
	}
	if summary.SalesTrend["2024-01-15"] != 100.00 {
		t.Fatalf("daily trend = %v", summary.SalesTrend)
	}
	if summary.CategorySales["Electronics"] != 180.00 {
		t.Fatalf("category sales = %v", summary.CategorySales)
	}
}

func TestImportCSVReplacesPriorImport(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "a.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import A: %v", err)
	}

	fileB := "Date,Product,Total\n2024-03-01,Monitor,300.00\n"
	if _, err := svc.ImportCSV(ctx, "alice", "b.csv", []byte(fileB)); err != nil {
		t.Fatalf("import B: %v", err)
	}

	records, err := repo.ListSaleRecords(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Product != "Monitor" {
		t.Fatalf("expected file B to supersede file A, got %v", records)
	}
}

func TestImportCSVSchemaFailureLeavesStoreUntouched(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "a.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import A: %v", err)
	}

	bad := "Foo,Bar\n1,2\n"
	_, err := svc.ImportCSV(ctx, "alice", "bad.csv", []byte(bad))
	if err == nil || !strings.Contains(err.Error(), "schema unrecognized") {
		t.Fatalf("expected schema error, got %v", err)
	}

	records, _ := repo.ListSaleRecords(ctx, "alice")
	if len(records) != 3 {
		t.Fatalf("prior records must survive a failed import, got %d", len(records))
	}
}

func TestAnalyticsMonthlyBucketsAndTopProducts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}

	report, err := svc.Analytics(ctx, "alice")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if report.MonthlySales["2024-01"] != 180.00 || report.MonthlySales["2024-02"] != 250.00 {
		t.Fatalf("monthly sales = %v", report.MonthlySales)
	}
	if len(report.ProductPerformance) != 3 || report.ProductPerformance[0].Product != "Desk" {
		t.Fatalf("product performance = %v", report.ProductPerformance)
	}
}

func TestDashboardMatchesStoredTotals(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}

	records, _ := repo.ListSaleRecords(ctx, "alice")
	sum := 0.0
	for _, r := range records {
		f, _ := r.TotalPrice.Float64()
		sum += f
	}

	summary, _ := svc.Dashboard(ctx, "alice")
	if summary.TotalRevenue != sum {
		t.Fatalf("aggregate total %v != stored sum %v", summary.TotalRevenue, sum)
	}
}

func TestExportCSVRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}

	payload, err := svc.ExportCSV(ctx, "alice")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "Date,Category,Product,Quantity,Unit Price,Total Price" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "2024-01-15,Electronics,Headphones,2,50.00,100.00") {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestDeleteRecords(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := svc.DeleteRecords(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, _ := repo.ListSaleRecords(ctx, "alice")
	if len(records) != 0 {
		t.Fatalf("expected empty record set, got %d", len(records))
	}
}

func TestDashboardServesCachedView(t *testing.T) {
	svc, views := newCachedTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.Dashboard(ctx, "alice"); err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	// Overwrite the cached payload; a cache hit must win over the store.
	planted := domain.DashboardSummary{TotalRevenue: 999, BestProduct: "Planted"}
	if err := views.Set(ctx, "views:dashboard:alice", planted, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	summary, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.TotalRevenue != 999 || summary.BestProduct != "Planted" {
		t.Fatalf("expected cached payload, got %+v", summary)
	}
}

func TestImportCSVInvalidatesCachedViews(t *testing.T) {
	svc, views := newCachedTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "a.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import A: %v", err)
	}
	if summary, _ := svc.Dashboard(ctx, "alice"); summary.TotalRevenue != 430.00 {
		t.Fatalf("total after A = %v", summary.TotalRevenue)
	}
	if _, err := svc.Analytics(ctx, "alice"); err != nil {
		t.Fatalf("analytics: %v", err)
	}

	fileB := "Date,Product,Total\n2024-03-01,Monitor,300.00\n"
	if _, err := svc.ImportCSV(ctx, "alice", "b.csv", []byte(fileB)); err != nil {
		t.Fatalf("import B: %v", err)
	}

	if !views.sawInvalidation("views:dashboard:alice") || !views.sawInvalidation("views:analytics:alice") {
		t.Fatalf("import must invalidate both view keys, saw %v", views.invalidated)
	}

	summary, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.TotalRevenue != 300.00 || summary.BestProduct != "Monitor" {
		t.Fatalf("stale view served after re-import: %+v", summary)
	}
	report, err := svc.Analytics(ctx, "alice")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if report.MonthlySales["2024-03"] != 300.00 {
		t.Fatalf("stale analytics served after re-import: %v", report.MonthlySales)
	}
}

func TestDeleteRecordsInvalidatesCachedViews(t *testing.T) {
	svc, views := newCachedTestService()
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "alice", "sales.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.Dashboard(ctx, "alice"); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if err := svc.DeleteRecords(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if !views.sawInvalidation("views:dashboard:alice") || !views.sawInvalidation("views:analytics:alice") {
		t.Fatalf("delete must invalidate both view keys, saw %v", views.invalidated)
	}

	summary, err := svc.Dashboard(ctx, "alice")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.OrderCount != 0 || summary.BestProduct != "N/A" {
		t.Fatalf("stale view served after delete: %+v", summary)
	}
}

func TestImportCSVEmptyUpload(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ImportCSV(context.Background(), "alice", "x.csv", nil); err == nil {
		t.Fatalf("expected error on empty upload")
	}
}
