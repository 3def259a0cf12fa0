package analytics

import (
	"testing"

	"creator-analytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCohorts_Scenario(t *testing.T) {
	cohorts, _ := Cohorts(scenarioOrders())

	require.Len(t, cohorts, 1)
	c := cohorts[0]
	assert.Equal(t, "2024-01", c.Month)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, c.Members)
	assert.Equal(t, 2, c.Size)
	assert.Equal(t, []float64{100, 50}, c.Retention)
	assertDecimal(t, "300", c.Revenue)
	assertDecimal(t, "150", c.AvgLTV)
}

func TestCohorts_M0IsAlwaysHundred(t *testing.T) {
	orders := append(scenarioOrders(),
		completed("o4", "c@example.com", "10", feb),
		completed("o5", "d@example.com", "10", mar),
		completed("o6", "e@example.com", "10", mar),
		completed("o7", "c@example.com", "10", apr),
	)

	cohorts, _ := Cohorts(orders)
	for _, c := range cohorts {
		require.NotEmpty(t, c.Retention, c.Month)
		assert.Equal(t, 100.0, c.Retention[0], c.Month)
	}
}

func TestCohorts_AssignmentIsStableAsOrdersArrive(t *testing.T) {
	before, _ := Cohorts(scenarioOrders())

	later := append(scenarioOrders(),
		completed("o4", "b@example.com", "80", mar),
		completed("o5", "new@example.com", "20", mar),
	)
	after, _ := Cohorts(later)

	require.Len(t, after, 2)
	assert.Equal(t, before[0].Month, after[0].Month)
	assert.Equal(t, before[0].Members, after[0].Members)
	assert.Equal(t, []float64{100, 50, 50}, after[0].Retention)
	assertDecimal(t, "190", after[0].AvgLTV)

	assert.Equal(t, "2024-03", after[1].Month)
	assert.Equal(t, []string{"new@example.com"}, after[1].Members)
	assert.Equal(t, []float64{100}, after[1].Retention)
}

func TestCohorts_FirstPurchaseDecidesCohortRegardlessOfInputOrder(t *testing.T) {
	orders := []models.OrderRecord{
		completed("o3", "a@example.com", "150", mar),
		completed("o1", "a@example.com", "100", jan),
	}

	cohorts, _ := Cohorts(orders)

	require.Len(t, cohorts, 1)
	assert.Equal(t, "2024-01", cohorts[0].Month)
	assert.Equal(t, []float64{100, 0, 100}, cohorts[0].Retention)
}

func TestCohorts_IgnoresNonCompleted(t *testing.T) {
	orders := []models.OrderRecord{
		order("o1", "a@example.com", "100", models.OrderRefunded, jan),
		completed("o2", "a@example.com", "100", feb),
	}

	cohorts, _ := Cohorts(orders)

	require.Len(t, cohorts, 1)
	assert.Equal(t, "2024-02", cohorts[0].Month)
}

func TestCohorts_Empty(t *testing.T) {
	cohorts, warnings := Cohorts(nil)
	assert.NotNil(t, cohorts)
	assert.Empty(t, cohorts)
	assert.Empty(t, warnings)
}

func TestCohorts_MalformedAmountIsWarned(t *testing.T) {
	orders := []models.OrderRecord{
		completed("old", "a@example.com", "abc", jan),
		completed("new", "a@example.com", "100", mar),
	}

	cohorts, warnings := Cohorts(orders)

	require.Len(t, cohorts, 1)
	assertDecimal(t, "100", cohorts[0].AvgLTV)
	require.Len(t, warnings, 1)
	assert.Equal(t, "old", warnings[0].RecordID)
	assert.Equal(t, "cohorts", warnings[0].Source)
}
