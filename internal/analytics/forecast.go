package analytics

import (
	"time"

	"creator-analytics/internal/models"
)

const DefaultHorizon = 3

// Forecast extends a monthly revenue series by horizon months using
//
//	avg   = mean(series)
//	trend = (series[n-1] - series[0]) / n
//	f(i)  = avg + trend*(n+i), i = 1..horizon
//
// With fewer than two points every forecast equals the single known value
// (zero when the series is empty). The returned points start with the
// history, where Forecast mirrors Actual, followed by the projected months.
// anchor dates the projection only when history is empty. horizon <= 0 uses
// DefaultHorizon.
func Forecast(history []models.MonthlyRevenue, horizon int, anchor time.Time) []models.ForecastPoint {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	n := len(history)
	values := make([]float64, n)
	points := make([]models.ForecastPoint, 0, n+horizon)
	for i, h := range history {
		v := h.Revenue.InexactFloat64()
		values[i] = v
		actual := v
		points = append(points, models.ForecastPoint{Period: h.Month, Forecast: v, Actual: &actual})
	}

	next := monthIndex(anchor) + 1
	if n > 0 {
		if t, err := time.Parse(monthLayout, history[n-1].Month); err == nil {
			next = monthIndex(t) + 1
		}
	}

	for i := 1; i <= horizon; i++ {
		points = append(points, models.ForecastPoint{
			Period:   monthKey(next + i - 1),
			Forecast: project(values, i),
		})
	}
	return points
}

func project(values []float64, i int) float64 {
	n := len(values)
	switch n {
	case 0:
		return 0
	case 1:
		return values[0]
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(n)
	trend := (values[n-1] - values[0]) / float64(n)
	return avg + trend*float64(n+i)
}
