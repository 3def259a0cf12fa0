package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"creator-analytics/internal/analytics"
	"creator-analytics/internal/errors"
	"creator-analytics/internal/export"
	"creator-analytics/internal/models"
	"creator-analytics/internal/observability"
)

const version = "1.0.0"

// SnapshotComputer produces snapshots; *services.SnapshotService is the
// production implementation.
type SnapshotComputer interface {
	Compute(ctx context.Context, shopID string, r *models.DateRange) (*models.AnalyticsSnapshot, error)
	Stats() map[string]any
}

// HealthChecker is an external dependency probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	snapshots   SnapshotComputer
	defaultShop string
	checks      map[string]HealthChecker
	extraStats  map[string]func() any
	logger      *slog.Logger
}

func NewAPIHandlers(snapshots SnapshotComputer, defaultShop string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		snapshots:   snapshots,
		defaultShop: defaultShop,
		checks:      make(map[string]HealthChecker),
		extraStats:  make(map[string]func() any),
		logger:      logger,
	}
}

func (h *APIHandlers) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

// AddStats publishes fn's result under name on /admin/stats.
func (h *APIHandlers) AddStats(name string, fn func() any) {
	h.extraStats[name] = fn
}

func (h *APIHandlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.compute(w, r)
	if !ok {
		return
	}

	headers := map[string]string{
		"Cache-Control": "private, max-age=60",
		"ETag":          fmt.Sprintf("%q", snapshot.DataVersion+"/"+snapshot.DateRange.Key()),
	}

	errors.WriteSuccessWithHeaders(w, snapshot, headers)
}

func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.compute(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(snapshot.ShopID, snapshot.DateRange)))
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, analytics.ToExportRows(*snapshot)); err != nil {
		observability.LoggerFrom(r.Context(), h.logger).Error("write export", "error", err)
	}
}

func (h *APIHandlers) compute(w http.ResponseWriter, r *http.Request) (*models.AnalyticsSnapshot, bool) {
	requestID := observability.GetRequestID(r.Context())

	query, err := parseSnapshotQuery(r, h.defaultShop)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return nil, false
	}

	snapshot, err := h.snapshots.Compute(r.Context(), query.ShopID, query.DateRange)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return nil, false
	}
	return snapshot, true
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	healthData := map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
	}
	if len(checks) > 0 {
		healthData["checks"] = checks
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := maps.Clone(h.snapshots.Stats())
	if stats == nil {
		stats = make(map[string]any)
	}
	for name, fn := range h.extraStats {
		stats[name] = fn()
	}

	errors.WriteSuccess(w, stats)
}
