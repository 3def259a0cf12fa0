package analytics

import (
	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Segment buckets customers by their revenue relative to the population mean:
//
//	revenue >  2*avg         VIP
//	avg < revenue <= 2*avg   High
//	avg/2 < revenue <= avg   Regular
//	revenue <= avg/2         New/Low
//
// A population of one customer therefore lands in Regular. All four buckets
// are always returned, in models.Segments order.
func Segment(orders []models.OrderRecord, r *models.DateRange) models.SegmentReport {
	priced, _ := priceCompleted(orders, r, "segments")

	perCustomer := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, o := range priced {
		perCustomer[o.customer] = perCustomer[o.customer].Add(o.amount)
		total = total.Add(o.amount)
	}

	buckets := make(map[models.Segment]*models.SegmentBucket, len(models.Segments))
	report := models.SegmentReport{
		AvgRevenue: decimal.Zero,
		Buckets:    make([]models.SegmentBucket, len(models.Segments)),
	}
	for i, s := range models.Segments {
		report.Buckets[i] = models.SegmentBucket{Label: s, Revenue: decimal.Zero}
		buckets[s] = &report.Buckets[i]
	}
	if len(perCustomer) == 0 {
		return report
	}

	n := decimal.NewFromInt(int64(len(perCustomer)))
	report.AvgRevenue = total.Div(n)
	for _, revenue := range perCustomer {
		b := buckets[classify(revenue, n, total)]
		b.Count++
		b.Revenue = b.Revenue.Add(revenue)
	}
	return report
}

// classify compares revenue*n against total instead of revenue against
// total/n so the boundaries stay exact.
func classify(revenue, n, total decimal.Decimal) models.Segment {
	scaled := revenue.Mul(n)
	switch {
	case scaled.GreaterThan(total.Mul(two)):
		return models.SegmentVIP
	case scaled.GreaterThan(total):
		return models.SegmentHigh
	case scaled.Mul(two).GreaterThan(total):
		return models.SegmentRegular
	default:
		return models.SegmentNewLow
	}
}
