package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-price-alerts/internal/tier"
)

// MemoryStore is an in-process implementation of every store interface. It backs
// tests and the simulate command; the active-alert uniqueness rule is enforced under
// its mutex the same way the partial unique index enforces it in PostgreSQL.
type MemoryStore struct {
	mu           sync.Mutex
	observations map[int64]Observation
	alerts       map[int64]Alert
	markets      map[int64]Market
	communes     map[int64]Commune
	departments  map[int64]Department
	products     map[int64]Product
	nextObsID    int64
	nextAlertID  int64
	now          func() time.Time
	failNext     error
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		observations: make(map[int64]Observation),
		alerts:       make(map[int64]Alert),
		markets:      make(map[int64]Market),
		communes:     make(map[int64]Commune),
		departments:  make(map[int64]Department),
		products:     make(map[int64]Product),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// FailNext makes the next store call return err.
func (m *MemoryStore) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

func (m *MemoryStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// PutMarket registers catalog data.
func (m *MemoryStore) PutMarket(market Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[market.ID] = market
}

// PutCommune registers catalog data.
func (m *MemoryStore) PutCommune(commune Commune) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.communes[commune.ID] = commune
}

// PutDepartment registers catalog data.
func (m *MemoryStore) PutDepartment(dept Department) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[dept.ID] = dept
}

// PutProduct registers catalog data.
func (m *MemoryStore) PutProduct(product Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
}

// FindValidatedObservations lists matching observations, oldest first.
func (m *MemoryStore) FindValidatedObservations(ctx context.Context, filter ObservationFilter) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	result := make([]Observation, 0)
	for _, obs := range m.observations {
		if filter.Matches(obs) {
			result = append(result, obs)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

// GetObservation loads one observation.
func (m *MemoryStore) GetObservation(ctx context.Context, id int64) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Observation{}, err
	}
	obs, ok := m.observations[id]
	if !ok {
		return Observation{}, ErrNotFound
	}
	return obs, nil
}

// InsertObservation stores obs with a fresh id.
func (m *MemoryStore) InsertObservation(ctx context.Context, obs Observation) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Observation{}, err
	}
	m.nextObsID++
	obs.ID = m.nextObsID
	if obs.Status == "" {
		obs.Status = ObservationSubmitted
	}
	now := m.now()
	obs.CreatedAt = now
	obs.UpdatedAt = now
	m.observations[obs.ID] = obs
	return obs, nil
}

// MarkObservationValidated transitions an observation to validated.
func (m *MemoryStore) MarkObservationValidated(ctx context.Context, id int64, reviewer string, at time.Time) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Observation{}, err
	}
	obs, ok := m.observations[id]
	if !ok {
		return Observation{}, ErrNotFound
	}
	if obs.Status == ObservationValidated {
		return Observation{}, ErrAlreadyValidated
	}
	obs.Status = ObservationValidated
	obs.ReviewedBy = &reviewer
	obs.ReviewedAt = &at
	obs.UpdatedAt = at
	m.observations[id] = obs
	return obs, nil
}

// MarkObservationRejected transitions an observation to rejected.
func (m *MemoryStore) MarkObservationRejected(ctx context.Context, id int64, reviewer, reason string, at time.Time) (Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Observation{}, err
	}
	obs, ok := m.observations[id]
	if !ok {
		return Observation{}, ErrNotFound
	}
	obs.Status = ObservationRejected
	obs.RejectReason = &reason
	obs.ReviewedBy = &reviewer
	obs.ReviewedAt = &at
	obs.UpdatedAt = at
	m.observations[id] = obs
	return obs, nil
}

// FindActiveAlert returns the active alert for pair, or nil.
func (m *MemoryStore) FindActiveAlert(ctx context.Context, pair Pair) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	if alert, ok := m.activeFor(pair); ok {
		return &alert, nil
	}
	return nil, nil
}

func (m *MemoryStore) activeFor(pair Pair) (Alert, bool) {
	for _, alert := range m.alerts {
		if alert.Status == AlertActive && alert.Pair() == pair {
			return cloneAlert(alert), true
		}
	}
	return Alert{}, false
}

// UpsertAlert inserts or overwrites the active alert for alert's pair.
func (m *MemoryStore) UpsertAlert(ctx context.Context, alert Alert) (Alert, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Alert{}, false, err
	}

	at := alert.UpdatedAt
	if at.IsZero() {
		at = m.now()
	}

	if existing, ok := m.activeFor(alert.Pair()); ok {
		existing.Tier = alert.Tier
		existing.CurrentPrice = alert.CurrentPrice
		existing.ReferencePrice = alert.ReferencePrice
		existing.DeviationPct = alert.DeviationPct
		existing.UpdatedAt = at
		m.alerts[existing.ID] = existing
		return cloneAlert(existing), false, nil
	}

	m.nextAlertID++
	created := Alert{
		ID:             m.nextAlertID,
		Tier:           alert.Tier,
		Kind:           alert.Kind,
		MarketID:       alert.MarketID,
		ProductID:      alert.ProductID,
		CurrentPrice:   alert.CurrentPrice,
		ReferencePrice: alert.ReferencePrice,
		DeviationPct:   alert.DeviationPct,
		Status:         AlertActive,
		ViewedBy:       []string{},
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if created.Kind == "" {
		created.Kind = KindPriceSpike
	}
	m.alerts[created.ID] = created
	return cloneAlert(created), true, nil
}

// SettleAlert moves an active alert to status.
func (m *MemoryStore) SettleAlert(ctx context.Context, id int64, status AlertStatus, at time.Time) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Alert{}, err
	}
	alert, ok := m.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	if alert.Status != AlertActive {
		return Alert{}, ErrAlreadyResolved
	}
	alert.Status = status
	alert.ResolvedAt = &at
	alert.UpdatedAt = at
	m.alerts[id] = alert
	return cloneAlert(alert), nil
}

// GetAlert loads one alert.
func (m *MemoryStore) GetAlert(ctx context.Context, id int64) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return Alert{}, err
	}
	alert, ok := m.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return cloneAlert(alert), nil
}

// ListAlerts lists alerts matching filter, newest first.
func (m *MemoryStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}
	filter = filter.normalized()

	result := make([]Alert, 0)
	for _, alert := range m.alerts {
		if alert.Status != filter.Status {
			continue
		}
		if filter.Tier != "" && alert.Tier != filter.Tier {
			continue
		}
		if filter.MarketID != 0 && alert.MarketID != filter.MarketID {
			continue
		}
		if filter.ProductID != 0 && alert.ProductID != filter.ProductID {
			continue
		}
		result = append(result, cloneAlert(alert))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// MarkAlertViewed adds principal to the acknowledgement set once.
func (m *MemoryStore) MarkAlertViewed(ctx context.Context, id int64, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	alert, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if alert.ViewedByPrincipal(principal) {
		return nil
	}
	alert.ViewedBy = append(append([]string{}, alert.ViewedBy...), principal)
	m.alerts[id] = alert
	return nil
}

// AlertStatistics counts active alerts by tier and kind.
func (m *MemoryStore) AlertStatistics(ctx context.Context, filter StatsFilter) (AlertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return AlertStats{}, err
	}
	stats := AlertStats{ByTier: map[tier.Tier]int64{}, ByKind: map[AlertKind]int64{}}
	for _, alert := range m.alerts {
		if alert.Status != AlertActive {
			continue
		}
		if filter.From != nil && alert.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && alert.CreatedAt.After(*filter.To) {
			continue
		}
		stats.ActiveTotal++
		stats.ByTier[alert.Tier]++
		stats.ByKind[alert.Kind]++
	}
	return stats, nil
}

// GetMarket loads a market.
func (m *MemoryStore) GetMarket(ctx context.Context, id int64) (Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	market, ok := m.markets[id]
	if !ok {
		return Market{}, ErrNotFound
	}
	return market, nil
}

// GetCommune loads a commune.
func (m *MemoryStore) GetCommune(ctx context.Context, id int64) (Commune, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	commune, ok := m.communes[id]
	if !ok {
		return Commune{}, ErrNotFound
	}
	return commune, nil
}

// GetDepartment loads a department.
func (m *MemoryStore) GetDepartment(ctx context.Context, id int64) (Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dept, ok := m.departments[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return dept, nil
}

// GetProduct loads a product.
func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	product, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return product, nil
}

// CountAlerts counts alerts for pair with status; an empty status counts all.
func (m *MemoryStore) CountAlerts(pair Pair, status AlertStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, alert := range m.alerts {
		if alert.Pair() == pair && (status == "" || alert.Status == status) {
			n++
		}
	}
	return n
}

func cloneAlert(a Alert) Alert {
	a.ViewedBy = append([]string{}, a.ViewedBy...)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		a.ResolvedAt = &t
	}
	return a
}

var (
	_ ObservationStore = (*MemoryStore)(nil)
	_ AlertStore       = (*MemoryStore)(nil)
	_ CatalogReader    = (*MemoryStore)(nil)
)
