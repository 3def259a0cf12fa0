package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"creator-analytics/internal/analytics"
	"creator-analytics/internal/models"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

const (
	driverPostgres = "pgx"
	driverMySQL    = "mysql"
)

// SQLStore reads records from Postgres or MySQL. Expected tables:
//
//	orders(shop_id, id, customer_email, amount, status, product_id, created_at, updated_at)
//	subscriptions(shop_id, id, customer_email, plan_id, status, payment_attempts,
//	              grace_period_end, current_period_end, updated_at)
//	plans(id, monthly_price, updated_at)
//	subscription_transitions(shop_id, event_id, subscription_id, from_status, to_status,
//	                         occurred_at, updated_at)
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// OpenSQL picks the driver from the DSN scheme and pings the database.
func OpenSQL(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	driver, driverDSN, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logger.Info("connected to database", "driver", driver)
	return NewSQLStore(db, driver, logger), nil
}

func NewSQLStore(db *sql.DB, driver string, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{db: db, driver: driver, logger: logger}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func driverFor(dsn string) (string, string, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return driverPostgres, dsn, nil
	case strings.HasPrefix(dsn, "mysql://"), strings.HasPrefix(dsn, "mariadb://"):
		mysqlDSN, err := toMySQLDSN(dsn)
		if err != nil {
			return "", "", err
		}
		return driverMySQL, mysqlDSN, nil
	default:
		return "", "", fmt.Errorf("unsupported database dsn scheme (want postgres:// or mysql://)")
	}
}

// toMySQLDSN converts a URL-style DSN into the driver's native form with
// UTC time parsing enabled.
func toMySQLDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true

	if cfg.User == "" || cfg.Addr == "" || cfg.DBName == "" {
		return "", fmt.Errorf("incomplete mysql dsn (user, host and database are required)")
	}
	return cfg.FormatDSN(), nil
}

// rebind rewrites ? placeholders for drivers that number them.
func (s *SQLStore) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rangeClause(column string, r *models.DateRange, args []any) (string, []any) {
	if r == nil {
		return "", args
	}
	var clause string
	if !r.Start.IsZero() {
		clause += " AND " + column + " >= ?"
		args = append(args, r.Start.UTC())
	}
	if !r.End.IsZero() {
		clause += " AND " + column + " < ?"
		args = append(args, r.End.UTC())
	}
	return clause, args
}

const orderColumns = "id, customer_email, amount, status, product_id, created_at"

func (s *SQLStore) FetchCompletedOrders(ctx context.Context, shopID string, r *models.DateRange) ([]models.OrderRecord, error) {
	clause, args := rangeClause("created_at", r, []any{shopID, string(models.OrderCompleted)})
	query := "SELECT " + orderColumns + " FROM orders WHERE shop_id = ? AND status = ?" + clause + " ORDER BY created_at, id"
	return s.queryOrders(ctx, query, args...)
}

func (s *SQLStore) FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE shop_id = ? ORDER BY created_at, id"
	return s.queryOrders(ctx, query, shopID)
}

func (s *SQLStore) queryOrders(ctx context.Context, query string, args ...any) ([]models.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.OrderRecord{}
	for rows.Next() {
		var (
			o                           models.OrderRecord
			email, amount, status, prod sql.NullString
		)
		if err := rows.Scan(&o.ID, &email, &amount, &status, &prod, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		parsed, err := models.ParseOrderStatus(status.String)
		if err != nil {
			s.logger.Warn("skipping order row", "order_id", o.ID, "error", err)
			continue
		}
		o.Status = parsed
		o.CustomerEmail = models.NormalizeEmail(email.String)
		o.Amount = models.Amount(strings.TrimSpace(amount.String))
		o.ProductID = prod.String
		o.CreatedAt = o.CreatedAt.UTC()

		if err := o.Validate(); err != nil {
			s.logger.Warn("skipping order row", "order_id", o.ID, "error", err)
			continue
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *SQLStore) FetchSubscriptions(ctx context.Context, shopID string) ([]models.SubscriptionRecord, error) {
	query := `SELECT id, customer_email, plan_id, status, payment_attempts, grace_period_end, current_period_end
		FROM subscriptions WHERE shop_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), shopID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []models.SubscriptionRecord{}
	for rows.Next() {
		var (
			sub                  models.SubscriptionRecord
			email, plan, status  sql.NullString
			attempts             sql.NullInt64
			graceEnd, currentEnd sql.NullTime
		)
		if err := rows.Scan(&sub.ID, &email, &plan, &status, &attempts, &graceEnd, &currentEnd); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		parsed, err := models.ParseSubscriptionStatus(status.String)
		if err != nil {
			s.logger.Warn("skipping subscription row", "subscription_id", sub.ID, "error", err)
			continue
		}
		sub.Status = parsed
		sub.CustomerEmail = models.NormalizeEmail(email.String)
		sub.PlanID = plan.String
		sub.PaymentAttempts = int(attempts.Int64)
		sub.GracePeriodEnd = nullTime(graceEnd)
		sub.CurrentPeriodEnd = nullTime(currentEnd)

		if err := sub.Validate(); err != nil {
			s.logger.Warn("skipping subscription row", "subscription_id", sub.ID, "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SQLStore) FetchRecoveryOutcomes(ctx context.Context, shopID string, r *models.DateRange) (models.RecoveryOutcomes, error) {
	clause, args := rangeClause("occurred_at", r, []any{shopID, string(models.SubscriptionPastDue)})
	query := `SELECT event_id, subscription_id, from_status, to_status, occurred_at
		FROM subscription_transitions WHERE shop_id = ? AND from_status = ?` + clause

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return models.RecoveryOutcomes{}, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var history []models.StatusTransition
	for rows.Next() {
		var (
			t        models.StatusTransition
			from, to string
		)
		if err := rows.Scan(&t.EventID, &t.SubscriptionID, &from, &to, &t.OccurredAt); err != nil {
			return models.RecoveryOutcomes{}, fmt.Errorf("scan transition: %w", err)
		}
		fromStatus, errFrom := models.ParseSubscriptionStatus(from)
		toStatus, errTo := models.ParseSubscriptionStatus(to)
		if err := errors.Join(errFrom, errTo); err != nil {
			s.logger.Warn("skipping transition row", "event_id", t.EventID, "error", err)
			continue
		}
		t.From, t.To = fromStatus, toStatus
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return models.RecoveryOutcomes{}, fmt.Errorf("iterate transitions: %w", err)
	}
	return analytics.ClassifyTransitions(history, r), nil
}

// versionSource is a table whose row count and latest update time feed the
// data version. Plans are not shop scoped.
type versionSource struct {
	table      string
	shopScoped bool
}

var versionSources = []versionSource{
	{table: "orders", shopScoped: true},
	{table: "subscriptions", shopScoped: true},
	{table: "subscription_transitions", shopScoped: true},
	{table: "plans"},
}

func (v versionSource) query() string {
	query := "SELECT COUNT(*), MAX(updated_at) FROM " + v.table
	if v.shopScoped {
		query += " WHERE shop_id = ?"
	}
	return query
}

// DataVersion combines row counts and the latest update time of every table
// a snapshot reads, so inserts, deletes and in-place corrections all move it.
func (s *SQLStore) DataVersion(ctx context.Context, shopID string) (string, error) {
	parts := make([]string, 0, len(versionSources))
	for _, src := range versionSources {
		var (
			count  int64
			latest sql.NullTime
			args   []any
		)
		if src.shopScoped {
			args = append(args, shopID)
		}
		if err := s.db.QueryRowContext(ctx, s.rebind(src.query()), args...).Scan(&count, &latest); err != nil {
			return "", fmt.Errorf("version of %s: %w", src.table, err)
		}
		parts = append(parts, versionPart(count, latest))
	}
	return "sql-" + strings.Join(parts, "-"), nil
}

func versionPart(count int64, latest sql.NullTime) string {
	return strconv.FormatInt(count, 36) + "." + strconv.FormatInt(latest.Time.UnixNano(), 36)
}

func (s *SQLStore) LookupPlanPrice(ctx context.Context, planID string) (decimal.Decimal, error) {
	var price sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT monthly_price FROM plans WHERE id = ?"), planID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !price.Valid) {
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrPlanNotFound, planID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query plan %s: %w", planID, err)
	}
	return models.Amount(price.String).Decimal()
}

// Shops lists every shop with at least one order.
func (s *SQLStore) Shops(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT shop_id FROM orders ORDER BY shop_id")
	if err != nil {
		return nil, fmt.Errorf("query shops: %w", err)
	}
	defer rows.Close()

	var shops []string
	for rows.Next() {
		var shop string
		if err := rows.Scan(&shop); err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
