package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"creator-analytics/internal/analytics"
	"creator-analytics/internal/models"

	"github.com/shopspring/decimal"
)

type shopData struct {
	orders      []models.OrderRecord
	subs        []models.SubscriptionRecord
	transitions []models.StatusTransition
	version     int64
}

// MemoryStore keeps every record in process. Writes bump the shop's data
// version so cached snapshots go stale. Plan prices are shared by all shops,
// so a price change moves every shop's version.
type MemoryStore struct {
	mu           sync.RWMutex
	shops        map[string]*shopData
	plans        map[string]decimal.Decimal
	plansVersion int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shops: make(map[string]*shopData),
		plans: make(map[string]decimal.Decimal),
	}
}

func (m *MemoryStore) shop(shopID string) *shopData {
	d, ok := m.shops[shopID]
	if !ok {
		d = &shopData{}
		m.shops[shopID] = d
	}
	return d
}

func (m *MemoryStore) AddOrders(shopID string, orders ...models.OrderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.shop(shopID)
	for _, o := range orders {
		o.CustomerEmail = models.NormalizeEmail(o.CustomerEmail)
		d.orders = append(d.orders, o)
	}
	d.version++
}

func (m *MemoryStore) AddSubscriptions(shopID string, subs ...models.SubscriptionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.shop(shopID)
	for _, s := range subs {
		s.CustomerEmail = models.NormalizeEmail(s.CustomerEmail)
		d.subs = append(d.subs, s)
	}
	d.version++
}

func (m *MemoryStore) AddTransitions(shopID string, transitions ...models.StatusTransition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.shop(shopID)
	d.transitions = append(d.transitions, transitions...)
	d.version++
}

func (m *MemoryStore) SetPlanPrice(planID string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.plans[planID]; ok && current.Equal(price) {
		return
	}
	m.plans[planID] = price
	m.plansVersion++
}

// Shops lists every shop with at least one record, sorted.
func (m *MemoryStore) Shops() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	shops := make([]string, 0, len(m.shops))
	for id := range m.shops {
		shops = append(shops, id)
	}
	slices.Sort(shops)
	return shops
}

func (m *MemoryStore) FetchCompletedOrders(ctx context.Context, shopID string, r *models.DateRange) ([]models.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.shops[shopID]
	if !ok {
		return []models.OrderRecord{}, nil
	}
	out := make([]models.OrderRecord, 0, len(d.orders))
	for _, o := range d.orders {
		if o.Completed() && r.Contains(o.CreatedAt) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryStore) FetchAllOrders(ctx context.Context, shopID string) ([]models.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if d, ok := m.shops[shopID]; ok {
		return slices.Clone(d.orders), nil
	}
	return []models.OrderRecord{}, nil
}

func (m *MemoryStore) FetchSubscriptions(ctx context.Context, shopID string) ([]models.SubscriptionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if d, ok := m.shops[shopID]; ok {
		return slices.Clone(d.subs), nil
	}
	return []models.SubscriptionRecord{}, nil
}

func (m *MemoryStore) FetchRecoveryOutcomes(ctx context.Context, shopID string, r *models.DateRange) (models.RecoveryOutcomes, error) {
	if err := ctx.Err(); err != nil {
		return models.RecoveryOutcomes{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.shops[shopID]
	if !ok {
		return models.RecoveryOutcomes{}, nil
	}
	return analytics.ClassifyTransitions(d.transitions, r), nil
}

func (m *MemoryStore) DataVersion(ctx context.Context, shopID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var version int64
	if d, ok := m.shops[shopID]; ok {
		version = d.version
	}
	return fmt.Sprintf("mem-%d.%d", version, m.plansVersion), nil
}

func (m *MemoryStore) LookupPlanPrice(ctx context.Context, planID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.plans[planID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrPlanNotFound, planID)
	}
	return price, nil
}
