package analytics

import (
	"testing"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioInput() Input {
	return Input{
		ID:            "snap-1",
		ShopID:        "shop-1",
		DataVersion:   "v1",
		GeneratedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RangeOrders:   scenarioOrders(),
		AllOrders:     scenarioOrders(),
		Subscriptions: append(subs(models.SubscriptionPastDue, "pro", 5), subs(models.SubscriptionActive, "pro", 2)...),
		Outcomes:      models.RecoveryOutcomes{Recovered: 12, Lost: 3},
		PlanPrices:    map[string]decimal.Decimal{"pro": decimal.NewFromInt(10)},
	}
}

func TestAssemble(t *testing.T) {
	s := Assemble(scenarioInput())

	assert.Equal(t, "shop-1", s.ShopID)
	assertDecimal(t, "300", s.Revenue.TotalRevenue)
	require.Len(t, s.MonthlyRevenue, 2)
	require.Len(t, s.Cohorts, 1)
	assert.Equal(t, []float64{100, 50}, s.Cohorts[0].Retention)
	assert.InDelta(t, 0.6, s.Dunning.RecoveryRate, 1e-12)
	assertDecimal(t, "50", s.Dunning.AtRiskMRR)
	require.Len(t, s.Forecast, 2+DefaultHorizon)
	assert.Equal(t, "2024-03", s.Forecast[2].Period)
	assert.Empty(t, s.Warnings)
}

func TestAssemble_EmptyInputIsFullyPopulated(t *testing.T) {
	s := Assemble(Input{ShopID: "empty", GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})

	assert.True(t, s.Revenue.TotalRevenue.IsZero())
	assert.Len(t, s.Segments.Buckets, 4)
	assert.NotNil(t, s.Cohorts)
	assert.NotNil(t, s.MonthlyRevenue)
	assert.Zero(t, s.Dunning.RecoveryRate)
	require.Len(t, s.Forecast, DefaultHorizon)
	assert.Equal(t, "2024-06", s.Forecast[0].Period)
}

func TestAssemble_CollectsWarnings(t *testing.T) {
	in := scenarioInput()
	in.RangeOrders = append(in.RangeOrders, completed("bad", "z@example.com", "n/a", feb))
	in.PlanPrices = nil

	s := Assemble(in)

	// one malformed amount plus five unpriced past_due subscriptions
	assert.Len(t, s.Warnings, 6)
}

func TestAssemble_WarnsAboutMalformedAmountsOutsideRange(t *testing.T) {
	old := completed("old", "a@example.com", "abc", jan)
	recent := completed("new", "a@example.com", "100", mar)
	in := Input{
		ShopID:      "shop-1",
		DateRange:   &models.DateRange{Start: mar, End: apr},
		GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		RangeOrders: []models.OrderRecord{recent},
		AllOrders:   []models.OrderRecord{old, recent},
	}

	s := Assemble(in)

	require.Len(t, s.Cohorts, 1)
	assertDecimal(t, "100", s.Cohorts[0].AvgLTV)
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, "old", s.Warnings[0].RecordID)
}

func TestAssemble_MalformedOrderInRangeIsWarnedOnce(t *testing.T) {
	in := scenarioInput()
	bad := completed("bad", "z@example.com", "n/a", feb)
	in.RangeOrders = append(in.RangeOrders, bad)
	in.AllOrders = append(in.AllOrders, bad)

	s := Assemble(in)

	require.Len(t, s.Warnings, 1)
	assert.Equal(t, "bad", s.Warnings[0].RecordID)
}

func TestAssemble_Idempotent(t *testing.T) {
	in := scenarioInput()
	in.RangeOrders = append(in.RangeOrders,
		completed("o4", "c@example.com", "12.34", mar),
		completed("o5", "d@example.com", "0.66", mar),
	)
	assert.Equal(t, Assemble(in), Assemble(in))
}
