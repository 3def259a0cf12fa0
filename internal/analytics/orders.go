package analytics

import (
	"fmt"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

const monthLayout = "2006-01"

type pricedOrder struct {
	id       string
	customer string
	amount   decimal.Decimal
	at       time.Time
}

// priceCompleted keeps completed orders inside r and parses their amounts.
// Malformed amounts count as zero and yield one warning per order.
func priceCompleted(orders []models.OrderRecord, r *models.DateRange, source string) ([]pricedOrder, []models.Warning) {
	priced := make([]pricedOrder, 0, len(orders))
	var warnings []models.Warning

	for _, o := range orders {
		if !o.Completed() || !r.Contains(o.CreatedAt) {
			continue
		}
		amount, err := o.Amount.Decimal()
		if err != nil {
			warnings = append(warnings, models.Warning{
				Source:   source,
				RecordID: o.ID,
				Message:  fmt.Sprintf("amount treated as 0: %v", err),
			})
			amount = decimal.Zero
		}
		priced = append(priced, pricedOrder{
			id:       o.ID,
			customer: models.NormalizeEmail(o.CustomerEmail),
			amount:   amount,
			at:       o.CreatedAt,
		})
	}
	return priced, warnings
}

func monthIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*12 + int(t.Month()) - 1
}

func monthStart(index int) time.Time {
	return time.Date(index/12, time.Month(index%12+1), 1, 0, 0, 0, 0, time.UTC)
}

func monthKey(index int) string {
	return monthStart(index).Format(monthLayout)
}
