package analytics

import (
	"slices"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

type customerHistory struct {
	first   int
	months  map[int]struct{}
	revenue decimal.Decimal
}

// Cohorts groups customers by the month (UTC) of their first completed order
// and reports, for each month offset k from acquisition up to the latest
// month present in orders, the percentage of members who completed at least
// one order in that month. Retention[0] is always 100. Orders should be the
// full history; no date range applies because acquisition depends on the
// first purchase ever made. Malformed amounts count as zero towards cohort
// LTV and are reported in the returned warnings.
func Cohorts(orders []models.OrderRecord) ([]models.CohortBucket, []models.Warning) {
	priced, warnings := priceCompleted(orders, nil, "cohorts")
	if len(priced) == 0 {
		return []models.CohortBucket{}, warnings
	}

	customers := make(map[string]*customerHistory)
	latest := monthIndex(priced[0].at)
	for _, o := range priced {
		m := monthIndex(o.at)
		latest = max(latest, m)

		h, ok := customers[o.customer]
		if !ok {
			h = &customerHistory{first: m, months: make(map[int]struct{}), revenue: decimal.Zero}
			customers[o.customer] = h
		}
		h.first = min(h.first, m)
		h.months[m] = struct{}{}
		h.revenue = h.revenue.Add(o.amount)
	}

	members := make(map[int][]string)
	for email, h := range customers {
		members[h.first] = append(members[h.first], email)
	}

	months := make([]int, 0, len(members))
	for m := range members {
		months = append(months, m)
	}
	slices.Sort(months)

	cohorts := make([]models.CohortBucket, 0, len(months))
	for _, m := range months {
		emails := members[m]
		slices.Sort(emails)
		size := len(emails)

		retention := make([]float64, latest-m+1)
		revenue := decimal.Zero
		for _, email := range emails {
			h := customers[email]
			revenue = revenue.Add(h.revenue)
			for active := range h.months {
				retention[active-m]++
			}
		}
		for k := range retention {
			retention[k] = retention[k] / float64(size) * 100
		}

		cohorts = append(cohorts, models.CohortBucket{
			Month:     monthKey(m),
			Members:   emails,
			Size:      size,
			Retention: retention,
			Revenue:   revenue,
			AvgLTV:    revenue.Div(decimal.NewFromInt(int64(size))),
		})
	}
	return cohorts, warnings
}
