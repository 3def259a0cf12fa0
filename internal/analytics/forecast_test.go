package analytics

import (
	"testing"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(values ...int64) []models.MonthlyRevenue {
	out := make([]models.MonthlyRevenue, len(values))
	for i, v := range values {
		out[i] = models.MonthlyRevenue{Month: monthKey(monthIndex(jan) + i), Revenue: decimal.NewFromInt(v)}
	}
	return out
}

func TestForecast_LinearTrend(t *testing.T) {
	points := Forecast(series(1000, 1200, 1400), 3, time.Time{})

	require.Len(t, points, 6)
	for i, want := range []float64{1000, 1200, 1400} {
		require.NotNil(t, points[i].Actual)
		assert.Equal(t, want, *points[i].Actual)
	}

	avg := 1200.0
	trend := 400.0 / 3
	for i := 1; i <= 3; i++ {
		p := points[2+i]
		assert.Nil(t, p.Actual)
		assert.InDelta(t, avg+trend*float64(3+i), p.Forecast, 1e-9)
	}
	assert.Equal(t, "2024-04", points[3].Period)
	assert.Equal(t, "2024-06", points[5].Period)
	assert.InDelta(t, 1733.33, points[3].Forecast, 0.01)
}

func TestForecast_SinglePointIsConstant(t *testing.T) {
	points := Forecast(series(750), 4, time.Time{})

	require.Len(t, points, 5)
	for _, p := range points[1:] {
		assert.Equal(t, 750.0, p.Forecast)
	}
}

func TestForecast_EmptyHistoryUsesAnchor(t *testing.T) {
	anchor := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)

	points := Forecast(nil, 0, anchor)

	require.Len(t, points, DefaultHorizon)
	assert.Equal(t, "2024-12", points[0].Period)
	assert.Equal(t, "2025-02", points[2].Period)
	for _, p := range points {
		assert.Zero(t, p.Forecast)
	}
}

func TestForecast_Idempotent(t *testing.T) {
	in := series(310, 90, 4000, 12, 7)
	assert.Equal(t, Forecast(in, 3, time.Time{}), Forecast(in, 3, time.Time{}))
}
