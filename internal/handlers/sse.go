package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"creator-analytics/internal/errors"
	"creator-analytics/internal/models"
	"creator-analytics/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/starfederation/datastar-go/datastar"
)

var fragmentFuncs = template.FuncMap{
	"money":   func(d decimal.Decimal) string { return d.StringFixed(2) },
	"percent": func(f float64) string { return decimal.NewFromFloat(f * 100).StringFixed(1) },
}

var kpiTemplate = template.Must(template.New("kpi").Funcs(fragmentFuncs).Parse(`
<div id="kpi-content" class="kpi-grid">
<div class="kpi"><span class="kpi-label">Revenue</span><strong>${{money .Revenue.TotalRevenue}}</strong></div>
<div class="kpi"><span class="kpi-label">Orders</span><strong>{{.Revenue.OrderCount}}</strong></div>
<div class="kpi"><span class="kpi-label">Avg order</span><strong>${{money .Revenue.AverageOrderValue}}</strong></div>
<div class="kpi"><span class="kpi-label">Customers</span><strong>{{.Revenue.UniqueCustomers}}</strong></div>
<div class="kpi"><span class="kpi-label">CLV</span><strong>${{money .Revenue.CLV}}</strong></div>
<div class="kpi"><span class="kpi-label">At-risk MRR</span><strong>${{money .Dunning.AtRiskMRR}}</strong></div>
<div class="kpi"><span class="kpi-label">Recovery rate</span><strong>{{percent .Dunning.RecoveryRate}}%</strong></div>
</div>`))

var segmentsTemplate = template.Must(template.New("segments").Funcs(fragmentFuncs).Parse(`
<div id="segments-content">
<table class="modern-table">
<thead><tr><th>Segment</th><th>Customers</th><th>Revenue</th></tr></thead>
<tbody>
{{range .Segments.Buckets}}<tr>
<td><span class="category-badge">{{.Label}}</span></td>
<td>{{.Count}}</td>
<td><strong>${{money .Revenue}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var statusTemplate = template.Must(template.New("status").Parse(
	`<div id="snapshot-status" class="status {{.Class}}">{{.Message}}</div>`))

type SSEHandlers struct {
	snapshots   SnapshotComputer
	defaultShop string
	logger      *slog.Logger
}

func NewSSEHandlers(snapshots SnapshotComputer, defaultShop string, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		snapshots:   snapshots,
		defaultShop: defaultShop,
		logger:      logger,
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func (h *SSEHandlers) renderStatus(class, message string) string {
	html, err := render(statusTemplate, map[string]string{"Class": class, "Message": message})
	if err != nil {
		h.logger.Error("render status", "error", err)
	}
	return html
}

// snapshotSignals is the client-side state the dashboard charts bind to.
func snapshotSignals(s *models.AnalyticsSnapshot) ([]byte, error) {
	return json.Marshal(map[string]any{
		"snapshotId":     s.ID,
		"shopId":         s.ShopID,
		"revenue":        s.Revenue,
		"monthlyRevenue": s.MonthlyRevenue,
		"segments":       s.Segments,
		"cohorts":        s.Cohorts,
		"dunning":        s.Dunning,
		"forecast":       s.Forecast,
		"warningCount":   len(s.Warnings),
	})
}

func (h *SSEHandlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	query, err := parseSnapshotQuery(r, h.defaultShop)
	if err != nil {
		sse.PatchElements(h.renderStatus("error", publicMessage(err)))
		return
	}

	snapshot, err := h.snapshots.Compute(r.Context(), query.ShopID, query.DateRange)
	if err != nil {
		logger.Error("snapshot for stream", "error", err)
		sse.PatchElements(h.renderStatus("error", publicMessage(err)))
		return
	}

	signals, err := snapshotSignals(snapshot)
	if err != nil {
		logger.Error("marshal snapshot signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	for _, t := range []*template.Template{kpiTemplate, segmentsTemplate} {
		html, err := render(t, snapshot)
		if err != nil {
			logger.Error("render fragment", "template", t.Name(), "error", err)
			return
		}
		sse.PatchElements(html)
	}

	message := "Snapshot up to date"
	if len(snapshot.Warnings) > 0 {
		message = "Snapshot computed with data quality warnings"
	}
	sse.PatchElements(h.renderStatus("ok", message))

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// publicMessage hides internal error detail from the browser.
func publicMessage(err error) string {
	if appErr, ok := errors.As(err); ok && appErr.Code != errors.CodeInternal {
		return appErr.Message
	}
	return "Snapshot is unavailable right now"
}
