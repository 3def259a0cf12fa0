package analytics

import (
	"testing"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	jan = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	feb = time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC)
	mar = time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC)
	apr = time.Date(2024, 4, 20, 8, 0, 0, 0, time.UTC)
)

func order(id, email, amount string, status models.OrderStatus, at time.Time) models.OrderRecord {
	return models.OrderRecord{
		ID:            id,
		CustomerEmail: email,
		Amount:        models.Amount(amount),
		Status:        status,
		ProductID:     "prod-1",
		CreatedAt:     at,
	}
}

func completed(id, email, amount string, at time.Time) models.OrderRecord {
	return order(id, email, amount, models.OrderCompleted, at)
}

// scenarioOrders: A buys in Jan and Feb, B only in Jan.
func scenarioOrders() []models.OrderRecord {
	return []models.OrderRecord{
		completed("o1", "a@example.com", "100", jan),
		completed("o2", "b@example.com", "50", jan),
		completed("o3", "a@example.com", "150", feb),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
