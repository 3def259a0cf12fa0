package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"creator-analytics/internal/analytics"
	apperrors "creator-analytics/internal/errors"
	"creator-analytics/internal/models"
	"creator-analytics/internal/observability"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	cacheVersion  = "v1"
	maxPriceFetch = 8
)

type Options struct {
	Horizon int
	Timeout time.Duration
	Cache   SnapshotCache
	Metrics Recorder
	Logger  *slog.Logger
	// Now and NewID are overridable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

// SnapshotService gathers records for one shop and turns them into an
// analytics snapshot. The computation itself is pure; this type owns the
// I/O around it.
type SnapshotService struct {
	repo    Repository
	prices  PriceLookup
	opts    Options
	logger  *slog.Logger
	metrics Recorder

	computed  atomic.Int64
	cacheHits atomic.Int64
	failures  atomic.Int64

	mu       sync.RWMutex
	lastShop string
	lastAt   time.Time
	lastTook time.Duration
}

func NewSnapshotService(repo Repository, prices PriceLookup, opts Options) *SnapshotService {
	if opts.Horizon <= 0 {
		opts.Horizon = analytics.DefaultHorizon
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics Recorder = noopRecorder{}
	if opts.Metrics != nil {
		metrics = opts.Metrics
	}

	return &SnapshotService{
		repo:    repo,
		prices:  prices,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CacheKey identifies a snapshot by everything its content depends on.
func CacheKey(shopID string, r *models.DateRange, dataVersion string) string {
	return strings.Join([]string{"snapshot", cacheVersion, shopID, r.Key(), dataVersion}, ":")
}

type fetched struct {
	rangeOrders []models.OrderRecord
	allOrders   []models.OrderRecord
	subs        []models.SubscriptionRecord
	outcomes    models.RecoveryOutcomes
}

// Compute returns the snapshot for shopID over r. A nil r means all time.
// When ctx is cancelled no snapshot is returned.
func (s *SnapshotService) Compute(ctx context.Context, shopID string, r *models.DateRange) (*models.AnalyticsSnapshot, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return nil, apperrors.Validation("shop id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, apperrors.ValidationWrap(err, "invalid date range")
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	ctx = observability.WithShopID(ctx, shopID)
	ctx, span := observability.StartSpan(ctx, "snapshot.compute")
	logger := observability.LoggerFrom(ctx, s.logger)
	defer span.Finish(logger)
	span.SetTag("range", r.Key())

	start := time.Now()
	snapshot, cached, err := s.compute(ctx, shopID, r)
	took := time.Since(start)

	if err != nil {
		err = s.classify(ctx, err)
		span.SetError(err)
		s.failures.Add(1)
		s.metrics.ObserveComputation("error", took)
		logger.Error("snapshot computation failed", "error", err, "duration", took)
		return nil, err
	}

	status := "computed"
	if cached {
		status = "cached"
		s.cacheHits.Add(1)
	} else {
		s.computed.Add(1)
		s.metrics.Warnings(len(snapshot.Warnings))
	}
	s.metrics.ObserveComputation(status, took)
	span.SetTag("status", status)

	s.mu.Lock()
	s.lastShop, s.lastAt, s.lastTook = shopID, s.opts.Now(), took
	s.mu.Unlock()

	logger.Info("snapshot ready",
		"snapshot_id", snapshot.ID,
		"status", status,
		"data_version", snapshot.DataVersion,
		"warnings", len(snapshot.Warnings),
		"duration", took)

	return snapshot, nil
}

func (s *SnapshotService) compute(ctx context.Context, shopID string, r *models.DateRange) (*models.AnalyticsSnapshot, bool, error) {
	version, err := s.repo.DataVersion(ctx, shopID)
	if err != nil {
		return nil, false, apperrors.RepositoryWrap(err, "read data version")
	}

	key := CacheKey(shopID, r, version)
	if snapshot, ok := s.lookupCache(ctx, key); ok {
		return snapshot, true, nil
	}

	data, err := s.fetch(ctx, shopID, r)
	if err != nil {
		return nil, false, err
	}

	prices, err := s.resolvePrices(ctx, analytics.AtRiskPlans(data.subs))
	if err != nil {
		return nil, false, err
	}

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	snapshot := analytics.Assemble(analytics.Input{
		ID:            s.opts.NewID(),
		ShopID:        shopID,
		DateRange:     r,
		DataVersion:   version,
		GeneratedAt:   s.opts.Now().UTC(),
		RangeOrders:   data.rangeOrders,
		AllOrders:     data.allOrders,
		Subscriptions: data.subs,
		Outcomes:      data.outcomes,
		PlanPrices:    prices,
		Horizon:       s.opts.Horizon,
	})

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Set(ctx, key, &snapshot); err != nil {
			observability.LoggerFrom(ctx, s.logger).Warn("failed to store snapshot in cache", "error", err)
		}
	}

	return &snapshot, false, nil
}

func (s *SnapshotService) lookupCache(ctx context.Context, key string) (*models.AnalyticsSnapshot, bool) {
	if s.opts.Cache == nil {
		return nil, false
	}

	snapshot, ok, err := s.opts.Cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		observability.LoggerFrom(ctx, s.logger).Warn("snapshot cache unavailable", "error", err)
		return nil, false
	case !ok:
		s.metrics.CacheLookup("miss")
		return nil, false
	default:
		s.metrics.CacheLookup("hit")
		return snapshot, true
	}
}

func (s *SnapshotService) fetch(ctx context.Context, shopID string, r *models.DateRange) (fetched, error) {
	var data fetched
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orders, err := s.repo.FetchCompletedOrders(gctx, shopID, r)
		if err != nil {
			return apperrors.RepositoryWrap(err, "fetch completed orders")
		}
		data.rangeOrders = orders
		return nil
	})
	g.Go(func() error {
		orders, err := s.repo.FetchAllOrders(gctx, shopID)
		if err != nil {
			return apperrors.RepositoryWrap(err, "fetch orders")
		}
		data.allOrders = orders
		return nil
	})
	g.Go(func() error {
		subs, err := s.repo.FetchSubscriptions(gctx, shopID)
		if err != nil {
			return apperrors.RepositoryWrap(err, "fetch subscriptions")
		}
		data.subs = subs
		return nil
	})
	g.Go(func() error {
		outcomes, err := s.repo.FetchRecoveryOutcomes(gctx, shopID, r)
		if err != nil {
			return apperrors.RepositoryWrap(err, "fetch recovery outcomes")
		}
		data.outcomes = outcomes
		return nil
	})

	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return data, nil
}

// resolvePrices looks up each plan once. Unknown plans are left out of the
// map; the dunning tracker reports them as warnings.
func (s *SnapshotService) resolvePrices(ctx context.Context, planIDs []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(planIDs))
	if len(planIDs) == 0 || s.prices == nil {
		return prices, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPriceFetch)

	for _, planID := range planIDs {
		g.Go(func() error {
			price, err := s.prices.LookupPlanPrice(gctx, planID)
			if errors.Is(err, models.ErrPlanNotFound) {
				return nil
			}
			if err != nil {
				return apperrors.RepositoryWrap(err, fmt.Sprintf("look up price for plan %s", planID))
			}
			mu.Lock()
			prices[planID] = price
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

// classify maps context failures onto the error envelope; anything already
// carrying a code is passed through.
func (s *SnapshotService) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.TimeoutWrap(err, "snapshot computation timed out")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("snapshot computation cancelled: %w", err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.InternalWrap(err, "snapshot computation failed")
}

// Stats reports service counters for the admin endpoint.
func (s *SnapshotService) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"snapshots_computed": s.computed.Load(),
		"cache_hits":         s.cacheHits.Load(),
		"failures":           s.failures.Load(),
		"forecast_horizon":   s.opts.Horizon,
		"cache_enabled":      s.opts.Cache != nil,
	}
	if !s.lastAt.IsZero() {
		stats["last_shop"] = s.lastShop
		stats["last_computed_at"] = s.lastAt
		stats["last_duration_ms"] = s.lastTook.Milliseconds()
	}
	return stats
}
