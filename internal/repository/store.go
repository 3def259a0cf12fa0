// Package repository holds the record stores behind the snapshot service:
// an in-memory store, a CSV loader on top of it, a SQL store for Postgres and
// MySQL, and a circuit-breaker decorator for any of them.
package repository

import (
	"creator-analytics/internal/services"
)

// Store is a Repository that can also price plans.
type Store interface {
	services.Repository
	services.PriceLookup
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*Breaker)(nil)
)
