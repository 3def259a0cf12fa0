package repository

import (
	"database/sql"
	"testing"
	"time"

	"creator-analytics/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		name       string
		dsn        string
		wantDriver string
		wantErr    bool
	}{
		{"postgres", "postgres://u:p@localhost:5432/shop", driverPostgres, false},
		{"postgresql", "postgresql://u:p@localhost/shop", driverPostgres, false},
		{"mysql", "mysql://u:p@localhost:3306/shop", driverMySQL, false},
		{"mariadb", "mariadb://u:p@db:3306/shop", driverMySQL, false},
		{"sqlite", "sqlite:///tmp/x.db", "", true},
		{"incomplete mysql", "mariadb://user@/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, _, err := driverFor(tt.dsn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDriver, driver)
		})
	}
}

func TestToMySQLDSN(t *testing.T) {
	out, err := toMySQLDSN("mysql://u:p@db.example:3307/ltv")
	require.NoError(t, err)
	assert.Contains(t, out, "u:p@tcp(db.example:3307)/ltv")
	assert.Contains(t, out, "parseTime=true")
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: driverPostgres}
	my := &SQLStore{driver: driverMySQL}
	query := "SELECT id FROM orders WHERE shop_id = ? AND created_at >= ?"

	assert.Equal(t, "SELECT id FROM orders WHERE shop_id = $1 AND created_at >= $2", pg.rebind(query))
	assert.Equal(t, query, my.rebind(query))
}

func TestRangeClause(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	clause, args := rangeClause("created_at", nil, []any{"shop"})
	assert.Empty(t, clause)
	assert.Equal(t, []any{"shop"}, args)

	clause, args = rangeClause("created_at", &models.DateRange{Start: start, End: end}, []any{"shop"})
	assert.Equal(t, " AND created_at >= ? AND created_at < ?", clause)
	assert.Equal(t, []any{"shop", start, end}, args)

	clause, args = rangeClause("occurred_at", &models.DateRange{End: end}, nil)
	assert.Equal(t, " AND occurred_at < ?", clause)
	assert.Equal(t, []any{end}, args)
}

func TestVersionSources(t *testing.T) {
	queries := make(map[string]string, len(versionSources))
	for _, src := range versionSources {
		queries[src.table] = src.query()
	}

	for _, table := range []string{"orders", "subscriptions", "subscription_transitions", "plans"} {
		require.Contains(t, queries, table)
		assert.Contains(t, queries[table], "MAX(updated_at)", "%s corrections must move the version", table)
	}
	assert.Equal(t, "SELECT COUNT(*), MAX(updated_at) FROM subscription_transitions WHERE shop_id = ?", queries["subscription_transitions"])
	assert.Equal(t, "SELECT COUNT(*), MAX(updated_at) FROM plans", queries["plans"])
}

func TestVersionPart(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	base := versionPart(3, sql.NullTime{Time: at, Valid: true})

	assert.NotEqual(t, base, versionPart(3, sql.NullTime{Time: at.Add(time.Second), Valid: true}), "in-place update")
	assert.NotEqual(t, base, versionPart(4, sql.NullTime{Time: at, Valid: true}), "insert")
	assert.Equal(t, base, versionPart(3, sql.NullTime{Time: at, Valid: true}))
}
