package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "creator-analytics/internal/errors"
	"creator-analytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	*MemoryStore
	fail  bool
	calls int
}

func (f *flakyStore) FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStore.FetchAllOrders(ctx, shopID)
}

func TestBreaker_TripsAndRecovers(t *testing.T) {
	store := &flakyStore{MemoryStore: seededStore(), fail: true}
	b := NewBreaker(store, BreakerSettings{Name: "test", MaxFailures: 2, OpenTimeout: 20 * time.Millisecond}, discardLogger())
	ctx := context.Background()

	for range 2 {
		_, err := b.FetchAllOrders(ctx, "shop-1")
		require.Error(t, err)
		assert.False(t, apperrors.IsCode(err, apperrors.CodeServiceUnavail))
	}
	assert.Equal(t, "open", b.State())
	assert.True(t, apperrors.IsCode(b.HealthCheck(ctx), apperrors.CodeServiceUnavail))

	_, err := b.FetchAllOrders(ctx, "shop-1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeServiceUnavail))
	assert.Equal(t, 2, store.calls, "open breaker must not call the store")

	time.Sleep(30 * time.Millisecond)
	store.fail = false

	orders, err := b.FetchAllOrders(ctx, "shop-1")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	assert.Equal(t, "closed", b.State())
	assert.NoError(t, b.HealthCheck(ctx))
}

func TestBreaker_PlanNotFoundIsNotAFailure(t *testing.T) {
	b := NewBreaker(seededStore(), BreakerSettings{MaxFailures: 1, OpenTimeout: time.Minute}, discardLogger())

	for range 3 {
		_, err := b.LookupPlanPrice(context.Background(), "missing")
		assert.ErrorIs(t, err, models.ErrPlanNotFound)
	}
	assert.Equal(t, "closed", b.State())

	price, err := b.LookupPlanPrice(context.Background(), "pro")
	require.NoError(t, err)
	assert.Equal(t, "29", price.String())
}

func TestBreaker_PassesThroughResults(t *testing.T) {
	b := NewBreaker(seededStore(), BreakerSettings{}, discardLogger())
	ctx := context.Background()

	version, err := b.DataVersion(ctx, "shop-1")
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	outcomes, err := b.FetchRecoveryOutcomes(ctx, "shop-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RecoveryOutcomes{Recovered: 1, Lost: 1}, outcomes)

	subs, err := b.FetchSubscriptions(ctx, "shop-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	completed, err := b.FetchCompletedOrders(ctx, "shop-1", nil)
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}
