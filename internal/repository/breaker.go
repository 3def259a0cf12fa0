package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "creator-analytics/internal/errors"
	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker stops calling a failing store until OpenTimeout has passed. While
// open, every call fails fast with a service-unavailable error.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Store, settings BreakerSettings, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Name == "" {
		settings.Name = "repository"
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
		},
	})

	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}

// HealthCheck reports the store as unhealthy while the breaker is open.
func (b *Breaker) HealthCheck(context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return apperrors.ServiceUnavailable("record store circuit is open")
	}
	return nil
}

// call runs fn through the breaker. Cancellation and unknown plans are the
// caller's doing, not the store's, so they do not count as failures.
func call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var passthrough error
	result, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if errors.Is(err, context.Canceled) || errors.Is(err, models.ErrPlanNotFound) {
			passthrough = err
			return v, nil
		}
		return v, err
	})

	var zero T
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, apperrors.ServiceUnavailableWrap(err, "record store temporarily unavailable")
	}
	if err != nil {
		return zero, err
	}
	if passthrough != nil {
		return zero, passthrough
	}
	return result.(T), nil
}

func (b *Breaker) FetchCompletedOrders(ctx context.Context, shopID string, r *models.DateRange) ([]models.OrderRecord, error) {
	return call(b, func() ([]models.OrderRecord, error) {
		return b.next.FetchCompletedOrders(ctx, shopID, r)
	})
}

func (b *Breaker) FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error) {
	return call(b, func() ([]models.OrderRecord, error) {
		return b.next.FetchAllOrders(ctx, shopID)
	})
}

func (b *Breaker) FetchSubscriptions(ctx context.Context, shopID string) ([]models.SubscriptionRecord, error) {
	return call(b, func() ([]models.SubscriptionRecord, error) {
		return b.next.FetchSubscriptions(ctx, shopID)
	})
}

func (b *Breaker) FetchRecoveryOutcomes(ctx context.Context, shopID string, r *models.DateRange) (models.RecoveryOutcomes, error) {
	return call(b, func() (models.RecoveryOutcomes, error) {
		return b.next.FetchRecoveryOutcomes(ctx, shopID, r)
	})
}

func (b *Breaker) DataVersion(ctx context.Context, shopID string) (string, error) {
	return call(b, func() (string, error) {
		return b.next.DataVersion(ctx, shopID)
	})
}

func (b *Breaker) LookupPlanPrice(ctx context.Context, planID string) (decimal.Decimal, error) {
	return call(b, func() (decimal.Decimal, error) {
		return b.next.LookupPlanPrice(ctx, planID)
	})
}
