// Package service orchestrates imports and reporting: decode the raw
// source, normalize it, replace the owner's stored records, and serve the
// derived aggregate views with a cache in front.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salescope/backend/internal/analytics"
	"salescope/backend/internal/cache"
	"salescope/backend/internal/domain"
	"salescope/backend/internal/importer"
	"salescope/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const viewCacheTTL = 5 * time.Minute

type Service struct {
	repo       store.Repository
	normalizer *importer.Normalizer
	views      cache.ViewCache
	topN       int
	log        zerolog.Logger
}

func New(repo store.Repository, normalizer *importer.Normalizer, views cache.ViewCache, topN int, log zerolog.Logger) *Service {
	if views == nil {
		views = cache.NoopViewCache{}
	}
	if topN < 1 {
		topN = 5
	}

	return &Service{
		repo:       repo,
		normalizer: normalizer,
		views:      views,
		topN:       topN,
		log:        log,
	}
}

// ImportCSV runs one import to completion: decode with encoding fallbacks,
// normalize, then replace the owner's record set in one store transaction.
// Fatal failures (unreadable source, unrecognized schema, store write) leave
// the prior records intact; row-level failures only move the rejected
// counter.
func (s *Service) ImportCSV(ctx context.Context, ownerID string, fileName string, data []byte) (domain.ImportResponse, error) {
	if ownerID == "" {
		return domain.ImportResponse{}, fmt.Errorf("owner id required")
	}
	if len(data) == 0 {
		return domain.ImportResponse{}, fmt.Errorf("%w: empty upload", importer.ErrSourceUnreadable)
	}

	table, err := s.normalizer.ReadTable(data)
	if err != nil {
		return domain.ImportResponse{}, err
	}

	records, stats, err := s.normalizer.Normalize(table, ownerID)
	if err != nil {
		return domain.ImportResponse{}, err
	}

	if err := s.repo.ReplaceSaleRecords(ctx, ownerID, records); err != nil {
		return domain.ImportResponse{}, err
	}

	s.invalidateViews(ctx, ownerID)
	s.log.Info().
		Str("owner", ownerID).
		Str("file", fileName).
		Int("rows_seen", stats.RowsSeen).
		Int("rows_accepted", stats.RowsAccepted).
		Int("rows_rejected", stats.RowsRejected).
		Msg("import completed")

	return domain.ImportResponse{FileName: fileName, Stats: stats}, nil
}

// Dashboard aggregates the owner's records at daily granularity. The
// payload is cached per owner and rebuilt after every import or delete.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (domain.DashboardSummary, error) {
	key := dashboardCacheKey(ownerID)
	var cached domain.DashboardSummary
	if ok, err := s.views.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	records, err := s.repo.ListSaleRecords(ctx, ownerID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	view := analytics.Aggregate(records, analytics.Daily, s.topN)
	summary := analytics.DashboardSummary(view)

	if err := s.views.Set(ctx, key, summary, viewCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("owner", ownerID).Msg("dashboard cache write failed")
	}
	return summary, nil
}

// Analytics aggregates at monthly granularity and includes the top-N
// product performance cut.
func (s *Service) Analytics(ctx context.Context, ownerID string) (domain.AnalyticsReport, error) {
	key := analyticsCacheKey(ownerID)
	var cached domain.AnalyticsReport
	if ok, err := s.views.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	records, err := s.repo.ListSaleRecords(ctx, ownerID)
	if err != nil {
		return domain.AnalyticsReport{}, err
	}

	view := analytics.Aggregate(records, analytics.Monthly, s.topN)
	report := analytics.AnalyticsReport(view)

	if err := s.views.Set(ctx, key, report, viewCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("owner", ownerID).Msg("analytics cache write failed")
	}
	return report, nil
}

// ExportCSV renders the owner's normalized records as a plain-text tabular
// download. Monetary columns are presentation-facing, so they carry the
// two-decimal rounding.
func (s *Service) ExportCSV(ctx context.Context, ownerID string) ([]byte, error) {
	records, err := s.repo.ListSaleRecords(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"Date", "Category", "Product", "Quantity", "Unit Price", "Total Price"}); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := []string{
			record.Date.Format("2006-01-02"),
			record.Category,
			record.Product,
			fmt.Sprintf("%d", record.Quantity),
			record.UnitPrice.Round(2).StringFixed(2),
			record.TotalPrice.Round(2).StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeleteRecords removes every record the owner has imported.
func (s *Service) DeleteRecords(ctx context.Context, ownerID string) error {
	if err := s.repo.DeleteSaleRecords(ctx, ownerID); err != nil {
		return err
	}
	s.invalidateViews(ctx, ownerID)
	return nil
}

func (s *Service) invalidateViews(ctx context.Context, ownerID string) {
	err := s.views.Invalidate(ctx, dashboardCacheKey(ownerID), analyticsCacheKey(ownerID))
	if err != nil {
		s.log.Warn().Err(err).Str("owner", ownerID).Msg("view cache invalidation failed")
	}
}

func dashboardCacheKey(ownerID string) string {
	return "views:dashboard:" + strings.ToLower(ownerID)
}

func analyticsCacheKey(ownerID string) string {
	return "views:analytics:" + strings.ToLower(ownerID)
}
