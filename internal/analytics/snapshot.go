package analytics

import (
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// Input is everything the assembler needs. It is gathered by the caller
// before any computation starts.
type Input struct {
	ID          string
	ShopID      string
	DateRange   *models.DateRange
	DataVersion string
	GeneratedAt time.Time

	// RangeOrders feed revenue, segments and the forecast; AllOrders feed
	// cohorts, which ignore the date range.
	RangeOrders   []models.OrderRecord
	AllOrders     []models.OrderRecord
	Subscriptions []models.SubscriptionRecord
	Outcomes      models.RecoveryOutcomes
	PlanPrices    map[string]decimal.Decimal
	Horizon       int
}

// Assemble runs every component over in and merges the results. Each
// component falls back to its zero result on empty input, so the snapshot is
// always fully populated.
func Assemble(in Input) models.AnalyticsSnapshot {
	revenue := Summarize(in.RangeOrders, in.DateRange)
	monthly := MonthlySeries(in.RangeOrders, in.DateRange)
	dunning := Dunning(in.Subscriptions, in.Outcomes, in.PlanPrices)
	cohorts, cohortWarnings := Cohorts(in.AllOrders)

	var warnings []models.Warning
	warnings = append(warnings, revenue.Warnings...)
	warnings = appendUnseen(warnings, cohortWarnings)
	warnings = append(warnings, dunning.Warnings...)

	return models.AnalyticsSnapshot{
		ID:             in.ID,
		ShopID:         in.ShopID,
		DateRange:      in.DateRange,
		DataVersion:    in.DataVersion,
		GeneratedAt:    in.GeneratedAt,
		Revenue:        revenue,
		MonthlyRevenue: monthly,
		Segments:       Segment(in.RangeOrders, in.DateRange),
		Cohorts:        cohorts,
		Dunning:        dunning,
		Forecast:       Forecast(monthly, in.Horizon, forecastAnchor(in)),
		Warnings:       warnings,
	}
}

// appendUnseen adds the warnings whose record is not already reported, so an
// order that is both in range and in the full history is flagged once.
func appendUnseen(warnings, extra []models.Warning) []models.Warning {
	seen := make(map[string]struct{}, len(warnings))
	for _, w := range warnings {
		if w.RecordID != "" {
			seen[w.RecordID] = struct{}{}
		}
	}
	for _, w := range extra {
		if _, ok := seen[w.RecordID]; ok && w.RecordID != "" {
			continue
		}
		warnings = append(warnings, w)
	}
	return warnings
}

func forecastAnchor(in Input) time.Time {
	if in.DateRange != nil && !in.DateRange.End.IsZero() {
		return in.DateRange.End.Add(-time.Nanosecond)
	}
	return in.GeneratedAt
}
