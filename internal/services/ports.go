package services

import (
	"context"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// Repository is the record store the snapshot service reads from. Every
// method is scoped to one shop; implementations must be safe for concurrent
// use.
type Repository interface {
	// FetchCompletedOrders returns completed orders created inside r.
	FetchCompletedOrders(ctx context.Context, shopID string, r *models.DateRange) ([]models.OrderRecord, error)
	// FetchAllOrders returns every order regardless of status or date.
	FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error)
	FetchSubscriptions(ctx context.Context, shopID string) ([]models.SubscriptionRecord, error)
	FetchRecoveryOutcomes(ctx context.Context, shopID string, r *models.DateRange) (models.RecoveryOutcomes, error)
	// DataVersion changes whenever any record for shopID changes.
	DataVersion(ctx context.Context, shopID string) (string, error)
}

// PriceLookup resolves a plan's monthly price. Unknown plans return
// models.ErrPlanNotFound.
type PriceLookup interface {
	LookupPlanPrice(ctx context.Context, planID string) (decimal.Decimal, error)
}

// SnapshotCache stores computed snapshots by key. A miss is (nil, false, nil).
type SnapshotCache interface {
	Get(ctx context.Context, key string) (*models.AnalyticsSnapshot, bool, error)
	Set(ctx context.Context, key string, snapshot *models.AnalyticsSnapshot) error
}

// Recorder receives computation telemetry.
type Recorder interface {
	ObserveComputation(status string, duration time.Duration)
	CacheLookup(result string)
	Warnings(count int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveComputation(string, time.Duration) {}
func (noopRecorder) CacheLookup(string)                       {}
func (noopRecorder) Warnings(int)                             {}
