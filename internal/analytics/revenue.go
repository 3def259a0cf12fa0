package analytics

import (
	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// Summarize computes revenue KPIs over the completed orders inside r.
// Ratios with a zero denominator are zero.
func Summarize(orders []models.OrderRecord, r *models.DateRange) models.RevenueSummary {
	priced, warnings := priceCompleted(orders, r, "revenue")

	total := decimal.Zero
	customers := make(map[string]struct{})
	for _, o := range priced {
		total = total.Add(o.amount)
		customers[o.customer] = struct{}{}
	}

	summary := models.RevenueSummary{
		TotalRevenue:      total,
		OrderCount:        len(priced),
		AverageOrderValue: decimal.Zero,
		UniqueCustomers:   len(customers),
		CLV:               decimal.Zero,
		Warnings:          warnings,
	}
	if summary.OrderCount > 0 {
		summary.AverageOrderValue = total.Div(decimal.NewFromInt(int64(summary.OrderCount)))
	}
	if summary.UniqueCustomers > 0 {
		n := decimal.NewFromInt(int64(summary.UniqueCustomers))
		summary.CLV = total.Div(n)
		summary.PurchaseFrequency = float64(summary.OrderCount) / float64(summary.UniqueCustomers)
	}
	return summary
}

// MonthlySeries buckets completed revenue inside r by calendar month (UTC),
// oldest first. Months without orders between the first and last active
// month are present with zero revenue so the series is contiguous.
func MonthlySeries(orders []models.OrderRecord, r *models.DateRange) []models.MonthlyRevenue {
	priced, _ := priceCompleted(orders, r, "revenue")
	if len(priced) == 0 {
		return []models.MonthlyRevenue{}
	}

	first, last := monthIndex(priced[0].at), monthIndex(priced[0].at)
	for _, o := range priced[1:] {
		m := monthIndex(o.at)
		first = min(first, m)
		last = max(last, m)
	}

	series := make([]models.MonthlyRevenue, last-first+1)
	for i := range series {
		series[i] = models.MonthlyRevenue{Month: monthKey(first + i), Revenue: decimal.Zero}
	}
	for _, o := range priced {
		p := &series[monthIndex(o.at)-first]
		p.Revenue = p.Revenue.Add(o.amount)
		p.OrderCount++
	}
	return series
}
