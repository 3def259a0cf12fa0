package repository

import (
	"context"
	"testing"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	jan = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	feb = time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC)
)

func seededStore() *MemoryStore {
	m := NewMemoryStore()
	m.AddOrders("shop-1",
		models.OrderRecord{ID: "o1", CustomerEmail: " A@Example.com ", Amount: "100", Status: models.OrderCompleted, CreatedAt: jan},
		models.OrderRecord{ID: "o2", CustomerEmail: "b@example.com", Amount: "40", Status: models.OrderPending, CreatedAt: jan},
		models.OrderRecord{ID: "o3", CustomerEmail: "a@example.com", Amount: "60", Status: models.OrderCompleted, CreatedAt: feb},
	)
	m.AddSubscriptions("shop-1",
		models.SubscriptionRecord{ID: "s1", CustomerEmail: "a@example.com", PlanID: "pro", Status: models.SubscriptionPastDue},
	)
	m.AddTransitions("shop-1",
		models.StatusTransition{EventID: "e1", SubscriptionID: "s1", From: models.SubscriptionPastDue, To: models.SubscriptionActive, OccurredAt: jan},
		models.StatusTransition{EventID: "e1", SubscriptionID: "s1", From: models.SubscriptionPastDue, To: models.SubscriptionActive, OccurredAt: jan},
		models.StatusTransition{EventID: "e2", SubscriptionID: "s2", From: models.SubscriptionPastDue, To: models.SubscriptionCancelled, OccurredAt: feb},
	)
	m.SetPlanPrice("pro", decimal.NewFromInt(29))
	return m
}

func TestMemoryStore_Orders(t *testing.T) {
	ctx := context.Background()
	m := seededStore()

	all, err := m.FetchAllOrders(ctx, "shop-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "a@example.com", all[0].CustomerEmail, "emails are normalised on write")

	completed, err := m.FetchCompletedOrders(ctx, "shop-1", nil)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	inFeb, err := m.FetchCompletedOrders(ctx, "shop-1", &models.DateRange{Start: feb.AddDate(0, 0, -1)})
	require.NoError(t, err)
	require.Len(t, inFeb, 1)
	assert.Equal(t, "o3", inFeb[0].ID)

	unknown, err := m.FetchAllOrders(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestMemoryStore_RecoveryOutcomesDeduplicates(t *testing.T) {
	m := seededStore()

	out, err := m.FetchRecoveryOutcomes(context.Background(), "shop-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RecoveryOutcomes{Recovered: 1, Lost: 1}, out)

	janOnly, err := m.FetchRecoveryOutcomes(context.Background(), "shop-1", &models.DateRange{End: feb})
	require.NoError(t, err)
	assert.Equal(t, models.RecoveryOutcomes{Recovered: 1}, janOnly)
}

func TestMemoryStore_DataVersionChangesOnWrite(t *testing.T) {
	ctx := context.Background()
	m := seededStore()

	before, err := m.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	other, err := m.DataVersion(ctx, "shop-2")
	require.NoError(t, err)

	m.AddOrders("shop-1", models.OrderRecord{ID: "o4", CustomerEmail: "c@example.com", Amount: "5", Status: models.OrderCompleted, CreatedAt: feb})

	after, err := m.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	otherAfter, err := m.DataVersion(ctx, "shop-2")
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
	assert.Equal(t, other, otherAfter)
}

func TestMemoryStore_DataVersionChangesOnPriceChange(t *testing.T) {
	ctx := context.Background()
	m := seededStore()

	before, err := m.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	other, err := m.DataVersion(ctx, "shop-2")
	require.NoError(t, err)

	m.SetPlanPrice("pro", decimal.NewFromInt(99))

	after, err := m.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	otherAfter, err := m.DataVersion(ctx, "shop-2")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.NotEqual(t, other, otherAfter, "plans are shared by every shop")

	m.SetPlanPrice("pro", decimal.RequireFromString("99.00"))
	same, err := m.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, after, same, "setting the same price is not a change")
}

func TestMemoryStore_LookupPlanPrice(t *testing.T) {
	m := seededStore()

	price, err := m.LookupPlanPrice(context.Background(), "pro")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(29).Equal(price))

	_, err = m.LookupPlanPrice(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrPlanNotFound)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := seededStore().FetchAllOrders(ctx, "shop-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Shops(t *testing.T) {
	m := seededStore()
	m.AddOrders("alpha")
	assert.Equal(t, []string{"alpha", "shop-1"}, m.Shops())
}
