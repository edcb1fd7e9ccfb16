package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/placement-cell/internship-portal-api/internal/dto"
	"github.com/placement-cell/internship-portal-api/internal/models"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
	"github.com/placement-cell/internship-portal-api/pkg/export"
)

const summaryCacheKey = "dashboard:department_summary"

type summaryRepository interface {
	DepartmentSummary(ctx context.Context) ([]models.DepartmentSummary, error)
}

type summaryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

// DashboardServiceConfig tunes summary caching.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService aggregates pipeline counts for the placement cell overview.
type DashboardService struct {
	repo    summaryRepository
	cache   summaryCache
	metrics *MetricsService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// NewDashboardService constructs the dashboard service. Cache and metrics are
// optional.
func NewDashboardService(repo summaryRepository, cache summaryCache, metrics *MetricsService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		cfg:     cfg,
	}
}

// Summary returns per-department counts of applications at each pipeline
// stage. The boolean indicates whether data originated from cache.
func (s *DashboardService) Summary(ctx context.Context) (*dto.PlacementSummaryResponse, bool, error) {
	if s.cache != nil {
		start := s.now()
		var cached dto.PlacementSummaryResponse
		err := s.cache.Get(ctx, summaryCacheKey, &cached)
		if err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	start := s.now()
	summaries, err := s.repo.DepartmentSummary(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate department summary")
	}
	s.metrics.ObserveDBQuery("department_summary", time.Since(start))

	resp := &dto.PlacementSummaryResponse{
		Departments: summaries,
		GeneratedAt: s.now(),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, summaryCacheKey, resp, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return resp, false, nil
}

// Invalidate drops the cached summary. Called after writes that change counts.
// Safe on a nil receiver so callers can wire it unconditionally.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	s.cache.Delete(ctx, summaryCacheKey)
}

// ExportFormat selects the tabular export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered export bytes with response metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Export renders the department summary as CSV or PDF.
func (s *DashboardService) Export(ctx context.Context, format ExportFormat) (*ExportResult, error) {
	summary, _, err := s.Summary(ctx)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   "Internship Placement Summary",
		Columns: []string{"Department", "Total", "Awaiting Cohort", "Awaiting HOD", "Awaiting Placement", "Awaiting Principal", "Approved", "Rejected"},
		Rows:    make([][]string, 0, len(summary.Departments)),
	}
	for _, dept := range summary.Departments {
		table.Rows = append(table.Rows, []string{
			string(dept.Department),
			strconv.Itoa(dept.Total),
			strconv.Itoa(dept.AwaitingCohort),
			strconv.Itoa(dept.AwaitingHOD),
			strconv.Itoa(dept.AwaitingPlacement),
			strconv.Itoa(dept.AwaitingPrincipal),
			strconv.Itoa(dept.Approved),
			strconv.Itoa(dept.Rejected),
		})
	}

	stamp := s.now().Format("20060102_150405")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("placement_summary_%s.csv", stamp),
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("placement_summary_%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
