package repository

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// CSVPaths names the exported files. Only Orders is required.
//
//	orders.csv:        shop_id,order_id,customer_email,amount,status,product_id,created_at
//	subscriptions.csv: shop_id,subscription_id,customer_email,plan_id,status,payment_attempts,grace_period_end,current_period_end
//	plans.csv:         plan_id,monthly_price
//	transitions.csv:   shop_id,event_id,subscription_id,from_status,to_status,occurred_at
type CSVPaths struct {
	Orders        string
	Subscriptions string
	Plans         string
	Transitions   string
}

func (p CSVPaths) all() []string {
	var paths []string
	for _, path := range []string{p.Orders, p.Subscriptions, p.Plans, p.Transitions} {
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

type LoadStats struct {
	Orders        int           `json:"orders"`
	Subscriptions int           `json:"subscriptions"`
	Plans         int           `json:"plans"`
	Transitions   int           `json:"transitions"`
	Skipped       int           `json:"skipped"`
	Duration      time.Duration `json:"duration"`
}

// CSVStore serves records parsed from CSV exports. Rows that fail
// validation are skipped and counted. The data version is derived from the
// files' modification times, so Refresh only reparses when a file changed.
type CSVStore struct {
	paths  CSVPaths
	logger *slog.Logger

	mu      sync.RWMutex
	mem     *MemoryStore
	version string
	stats   LoadStats
}

func LoadCSV(ctx context.Context, paths CSVPaths, logger *slog.Logger) (*CSVStore, error) {
	if paths.Orders == "" {
		return nil, errors.New("orders csv path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CSVStore{paths: paths, logger: logger}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh reloads the files if any modification time changed and reports
// whether it did.
func (s *CSVStore) Refresh(ctx context.Context) (bool, error) {
	version, err := fileVersion(s.paths.all())
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	current := s.version
	s.mu.RUnlock()
	if version == current {
		return false, nil
	}

	start := time.Now()
	s.logger.Info("loading csv exports", "orders", s.paths.Orders, "version", version)

	mem, stats, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	stats.Duration = time.Since(start)

	s.mu.Lock()
	s.mem, s.version, s.stats = mem, version, stats
	s.mu.Unlock()

	s.logger.Info("csv load complete",
		"orders", stats.Orders,
		"subscriptions", stats.Subscriptions,
		"plans", stats.Plans,
		"transitions", stats.Transitions,
		"skipped", stats.Skipped,
		"duration", stats.Duration)
	if stats.Skipped > 0 {
		s.logger.Warn("skipped invalid csv rows", "count", stats.Skipped)
	}

	return true, nil
}

func (s *CSVStore) load(ctx context.Context) (*MemoryStore, LoadStats, error) {
	mem := NewMemoryStore()
	var stats LoadStats

	orders, skipped, err := parseFile(ctx, s.paths.Orders, parseOrderRow)
	if err != nil {
		return nil, stats, fmt.Errorf("orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, stats, fmt.Errorf("orders: no valid records found in %s", s.paths.Orders)
	}
	stats.Orders, stats.Skipped = len(orders), skipped
	for _, o := range orders {
		mem.AddOrders(o.shopID, o.record)
	}

	if s.paths.Subscriptions != "" {
		subs, skipped, err := parseFile(ctx, s.paths.Subscriptions, parseSubscriptionRow)
		if err != nil {
			return nil, stats, fmt.Errorf("subscriptions: %w", err)
		}
		stats.Subscriptions, stats.Skipped = len(subs), stats.Skipped+skipped
		for _, sub := range subs {
			mem.AddSubscriptions(sub.shopID, sub.record)
		}
	}

	if s.paths.Plans != "" {
		plans, skipped, err := parseFile(ctx, s.paths.Plans, parsePlanRow)
		if err != nil {
			return nil, stats, fmt.Errorf("plans: %w", err)
		}
		stats.Plans, stats.Skipped = len(plans), stats.Skipped+skipped
		for _, p := range plans {
			mem.SetPlanPrice(p.planID, p.price)
		}
	}

	if s.paths.Transitions != "" {
		transitions, skipped, err := parseFile(ctx, s.paths.Transitions, parseTransitionRow)
		if err != nil {
			return nil, stats, fmt.Errorf("transitions: %w", err)
		}
		stats.Transitions, stats.Skipped = len(transitions), stats.Skipped+skipped
		for _, t := range transitions {
			mem.AddTransitions(t.shopID, t.record)
		}
	}

	return mem, stats, nil
}

func (s *CSVStore) current() *MemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mem
}

func (s *CSVStore) Stats() LoadStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *CSVStore) Shops() []string {
	return s.current().Shops()
}

func (s *CSVStore) FetchCompletedOrders(ctx context.Context, shopID string, r *models.DateRange) ([]models.OrderRecord, error) {
	return s.current().FetchCompletedOrders(ctx, shopID, r)
}

func (s *CSVStore) FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error) {
	return s.current().FetchAllOrders(ctx, shopID)
}

func (s *CSVStore) FetchSubscriptions(ctx context.Context, shopID string) ([]models.SubscriptionRecord, error) {
	return s.current().FetchSubscriptions(ctx, shopID)
}

func (s *CSVStore) FetchRecoveryOutcomes(ctx context.Context, shopID string, r *models.DateRange) (models.RecoveryOutcomes, error) {
	return s.current().FetchRecoveryOutcomes(ctx, shopID, r)
}

// DataVersion is shared by every shop: any file change invalidates all of
// them.
func (s *CSVStore) DataVersion(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func (s *CSVStore) LookupPlanPrice(ctx context.Context, planID string) (decimal.Decimal, error) {
	return s.current().LookupPlanPrice(ctx, planID)
}

func fileVersion(paths []string) (string, error) {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
		parts = append(parts, strconv.FormatInt(info.ModTime().UnixNano(), 36)+"."+strconv.FormatInt(info.Size(), 36))
	}
	return "csv-" + strings.Join(parts, "-"), nil
}

// parseFile streams a CSV file with a header row and parses the records in
// batches on a bounded worker pool. Order of valid rows is preserved.
func parseFile[T any](ctx context.Context, path string, parse func([]string) (T, error)) ([]T, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReaderSize(file, 1024*1024))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}

	var (
		out     []T
		skipped int
		batch   = make([][]string, 0, batchSize)
	)

	flush := func() error {
		parsed, bad, err := parseBatch(ctx, batch, parse)
		if err != nil {
			return err
		}
		out = append(out, parsed...)
		skipped += bad
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("read record: %w", err)
		}

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, 0, err
		}
	}

	return out, skipped, nil
}

func parseBatch[T any](ctx context.Context, batch [][]string, parse func([]string) (T, error)) ([]T, int, error) {
	results := make([]T, len(batch))
	valid := make([]bool, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, record := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := parse(record)
			if err != nil {
				return nil
			}
			results[i], valid[i] = v, true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]T, 0, len(batch))
	for i, ok := range valid {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, len(batch) - len(out), nil
}

type shopOrder struct {
	shopID string
	record models.OrderRecord
}

type shopSubscription struct {
	shopID string
	record models.SubscriptionRecord
}

type shopTransition struct {
	shopID string
	record models.StatusTransition
}

type planPrice struct {
	planID string
	price  decimal.Decimal
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// parseOrderRow keeps malformed amounts: they surface later as snapshot
// warnings rather than disappearing at load time.
func parseOrderRow(record []string) (shopOrder, error) {
	if len(record) < 7 {
		return shopOrder{}, fmt.Errorf("insufficient columns")
	}

	status, err := models.ParseOrderStatus(field(record, 4))
	if err != nil {
		return shopOrder{}, err
	}
	createdAt, err := parseTime(field(record, 6))
	if err != nil {
		return shopOrder{}, err
	}

	o := models.OrderRecord{
		ID:            field(record, 1),
		CustomerEmail: models.NormalizeEmail(field(record, 2)),
		Amount:        models.Amount(field(record, 3)),
		Status:        status,
		ProductID:     field(record, 5),
		CreatedAt:     createdAt,
	}
	if err := o.Validate(); err != nil {
		return shopOrder{}, err
	}
	shopID := field(record, 0)
	if shopID == "" {
		return shopOrder{}, fmt.Errorf("order %s: shop id is empty", o.ID)
	}
	return shopOrder{shopID: shopID, record: o}, nil
}

func parseSubscriptionRow(record []string) (shopSubscription, error) {
	if len(record) < 5 {
		return shopSubscription{}, fmt.Errorf("insufficient columns")
	}

	status, err := models.ParseSubscriptionStatus(field(record, 4))
	if err != nil {
		return shopSubscription{}, err
	}

	sub := models.SubscriptionRecord{
		ID:            field(record, 1),
		CustomerEmail: models.NormalizeEmail(field(record, 2)),
		PlanID:        field(record, 3),
		Status:        status,
	}
	if v := field(record, 5); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return shopSubscription{}, fmt.Errorf("payment attempts: %w", err)
		}
		sub.PaymentAttempts = attempts
	}
	if sub.GracePeriodEnd, err = parseOptionalTime(field(record, 6)); err != nil {
		return shopSubscription{}, err
	}
	if sub.CurrentPeriodEnd, err = parseOptionalTime(field(record, 7)); err != nil {
		return shopSubscription{}, err
	}
	if err := sub.Validate(); err != nil {
		return shopSubscription{}, err
	}
	shopID := field(record, 0)
	if shopID == "" {
		return shopSubscription{}, fmt.Errorf("subscription %s: shop id is empty", sub.ID)
	}
	return shopSubscription{shopID: shopID, record: sub}, nil
}

func parsePlanRow(record []string) (planPrice, error) {
	if len(record) < 2 || field(record, 0) == "" {
		return planPrice{}, fmt.Errorf("insufficient columns")
	}
	price, err := models.Amount(field(record, 1)).Decimal()
	if err != nil {
		return planPrice{}, err
	}
	return planPrice{planID: field(record, 0), price: price}, nil
}

func parseTransitionRow(record []string) (shopTransition, error) {
	if len(record) < 6 {
		return shopTransition{}, fmt.Errorf("insufficient columns")
	}

	from, err := models.ParseSubscriptionStatus(field(record, 3))
	if err != nil {
		return shopTransition{}, err
	}
	to, err := models.ParseSubscriptionStatus(field(record, 4))
	if err != nil {
		return shopTransition{}, err
	}
	at, err := parseTime(field(record, 5))
	if err != nil {
		return shopTransition{}, err
	}
	if field(record, 0) == "" || field(record, 1) == "" {
		return shopTransition{}, fmt.Errorf("shop id and event id are required")
	}

	return shopTransition{
		shopID: field(record, 0),
		record: models.StatusTransition{
			EventID:        field(record, 1),
			SubscriptionID: field(record, 2),
			From:           from,
			To:             to,
			OccurredAt:     at,
		},
	}, nil
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
