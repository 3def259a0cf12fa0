package handlers

import (
	"context"
	"io"
	"log/slog"
	"time"

	"creator-analytics/internal/models"
	"creator-analytics/internal/repository"
	"creator-analytics/internal/services"

	"github.com/shopspring/decimal"
)

var (
	jan = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	feb = time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestService() *services.SnapshotService {
	store := repository.NewMemoryStore()
	store.AddOrders("shop-1",
		models.OrderRecord{ID: "o1", CustomerEmail: "a@example.com", Amount: "100", Status: models.OrderCompleted, CreatedAt: jan},
		models.OrderRecord{ID: "o2", CustomerEmail: "b@example.com", Amount: "50", Status: models.OrderCompleted, CreatedAt: jan},
		models.OrderRecord{ID: "o3", CustomerEmail: "a@example.com", Amount: "150", Status: models.OrderCompleted, CreatedAt: feb},
		models.OrderRecord{ID: "o4", CustomerEmail: "c@example.com", Amount: "oops", Status: models.OrderCompleted, CreatedAt: feb},
	)
	store.AddSubscriptions("shop-1",
		models.SubscriptionRecord{ID: "s1", CustomerEmail: "a@example.com", PlanID: "pro", Status: models.SubscriptionPastDue},
	)
	store.SetPlanPrice("pro", decimal.NewFromInt(25))

	return services.NewSnapshotService(store, store, services.Options{Logger: testLogger()})
}

type failingComputer struct {
	err error
}

func (f failingComputer) Compute(context.Context, string, *models.DateRange) (*models.AnalyticsSnapshot, error) {
	return nil, f.err
}

func (f failingComputer) Stats() map[string]any { return nil }

type staticCheck struct {
	err error
}

func (s staticCheck) HealthCheck(context.Context) error { return s.err }
