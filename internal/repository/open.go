package repository

import (
	"context"
	"log/slog"
	"time"

	"creator-analytics/internal/config"
)

// Opened is a ready store plus what it takes to release it.
type Opened struct {
	Store   Store
	Breaker *Breaker
	// CSV is set when the store is file-backed, for refresh and load stats.
	CSV   *CSVStore
	Shops func(ctx context.Context) ([]string, error)
	Close func() error
}

// Open builds the configured store: SQL when a DSN is set, CSV files
// otherwise. Either way it sits behind a circuit breaker.
func Open(ctx context.Context, db config.DatabaseConfig, breaker config.BreakerConfig, logger *slog.Logger) (*Opened, error) {
	settings := BreakerSettings{
		Name:        "record-store",
		MaxFailures: breaker.MaxFailures,
		OpenTimeout: breaker.OpenTimeout,
	}

	if db.DSN != "" {
		sqlStore, err := OpenSQL(ctx, db.DSN, logger)
		if err != nil {
			return nil, err
		}
		b := NewBreaker(sqlStore, settings, logger)
		return &Opened{Store: b, Breaker: b, Shops: sqlStore.Shops, Close: sqlStore.Close}, nil
	}

	csvStore, err := LoadCSV(ctx, CSVPaths{
		Orders:        db.OrdersCSV,
		Subscriptions: db.SubscriptionsCSV,
		Plans:         db.PlansCSV,
		Transitions:   db.TransitionsCSV,
	}, logger)
	if err != nil {
		return nil, err
	}
	b := NewBreaker(csvStore, settings, logger)
	return &Opened{
		Store:   b,
		Breaker: b,
		CSV:     csvStore,
		Shops:   func(context.Context) ([]string, error) { return csvStore.Shops(), nil },
		Close:   func() error { return nil },
	}, nil
}

// WatchCSV reloads changed files every interval until ctx is done.
func (o *Opened) WatchCSV(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if o.CSV == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := o.CSV.Refresh(ctx); err != nil {
				logger.Warn("csv refresh failed", "error", err)
			}
		}
	}
}
