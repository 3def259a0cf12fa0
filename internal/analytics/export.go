package analytics

import (
	"fmt"
	"strconv"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// ToExportRows flattens a snapshot into ordered (label, value) rows. Values
// are canonical strings; presentation formatting belongs to the caller.
func ToExportRows(s models.AnalyticsSnapshot) []models.ExportRow {
	var rows []models.ExportRow
	add := func(label, value string) {
		rows = append(rows, models.ExportRow{Label: label, Value: value})
	}
	money := func(label string, d decimal.Decimal) { add(label, d.String()) }
	number := func(label string, f float64) { add(label, strconv.FormatFloat(f, 'f', -1, 64)) }
	count := func(label string, n int) { add(label, strconv.Itoa(n)) }

	add("shop_id", s.ShopID)
	add("date_range", s.DateRange.Key())
	add("data_version", s.DataVersion)

	money("total_revenue", s.Revenue.TotalRevenue)
	count("order_count", s.Revenue.OrderCount)
	money("average_order_value", s.Revenue.AverageOrderValue)
	count("unique_customers", s.Revenue.UniqueCustomers)
	money("clv", s.Revenue.CLV)
	number("purchase_frequency", s.Revenue.PurchaseFrequency)

	money("segment_avg_revenue", s.Segments.AvgRevenue)
	for _, b := range s.Segments.Buckets {
		count(fmt.Sprintf("segment.%s.count", b.Label), b.Count)
		money(fmt.Sprintf("segment.%s.revenue", b.Label), b.Revenue)
	}

	count("dunning.at_risk", s.Dunning.AtRisk)
	count("dunning.recovered", s.Dunning.Recovered)
	count("dunning.lost", s.Dunning.Lost)
	number("dunning.recovery_rate", s.Dunning.RecoveryRate)
	money("dunning.at_risk_mrr", s.Dunning.AtRiskMRR)

	for _, c := range s.Cohorts {
		count(fmt.Sprintf("cohort.%s.size", c.Month), c.Size)
		money(fmt.Sprintf("cohort.%s.avg_ltv", c.Month), c.AvgLTV)
		for k, pct := range c.Retention {
			number(fmt.Sprintf("cohort.%s.M%d", c.Month, k), pct)
		}
	}

	for _, m := range s.MonthlyRevenue {
		money(fmt.Sprintf("monthly.%s.revenue", m.Month), m.Revenue)
	}

	for _, p := range s.Forecast {
		if p.Actual != nil {
			number(fmt.Sprintf("forecast.%s.actual", p.Period), *p.Actual)
			continue
		}
		number(fmt.Sprintf("forecast.%s.forecast", p.Period), p.Forecast)
	}
	return rows
}
