package storage

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/tier"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyResolved is returned when settling an alert that is no longer active.
	ErrAlreadyResolved = errors.New("storage: alert already resolved")
	// ErrAlreadyValidated is returned when validating an observation twice.
	ErrAlreadyValidated = errors.New("storage: observation already validated")
)

const (
	observationColumns = `id, agent_id, market_id, product_id, unit_id, observed_at, slot,
        price::text, quantity::text, status, reject_reason, reviewed_by, reviewed_at, created_at, updated_at`

	alertColumns = `id, tier, kind, market_id, product_id,
        current_price::text, reference_price::text, deviation_pct::text,
        status, viewed_by, created_at, resolved_at, updated_at`

	findValidatedObservationsSQL = `SELECT ` + observationColumns + `
    FROM observations
    WHERE status = 'validated'
      AND ($1::bigint = 0 OR product_id = $1)
      AND ($2::bigint = 0 OR market_id = $2)
      AND ($3::timestamptz IS NULL OR observed_at >= $3)
      AND ($4::timestamptz IS NULL OR observed_at <= $4)
      AND ($5::bigint = 0 OR id <> $5)
    ORDER BY observed_at, id;`

	getObservationSQL = `SELECT ` + observationColumns + ` FROM observations WHERE id = $1;`

	validateObservationSQL = `UPDATE observations
    SET status = 'validated', reviewed_by = $2, reviewed_at = $3, updated_at = $3
    WHERE id = $1 AND status <> 'validated'
    RETURNING ` + observationColumns + `;`

	rejectObservationSQL = `UPDATE observations
    SET status = 'rejected', reject_reason = $3, reviewed_by = $2, reviewed_at = $4, updated_at = $4
    WHERE id = $1
    RETURNING ` + observationColumns + `;`

	insertObservationSQL = `INSERT INTO observations (
        agent_id, market_id, product_id, unit_id, observed_at, slot, price, quantity, status
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    RETURNING ` + observationColumns + `;`

	findActiveAlertSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE market_id = $1 AND product_id = $2 AND status = 'active';`

	// The partial unique index alerts_one_active_per_pair turns a concurrent
	// second insert for the same pair into an in-place update.
	upsertActiveAlertSQL = `INSERT INTO alerts (
        tier, kind, market_id, product_id, current_price, reference_price, deviation_pct,
        status, viewed_by, created_at, updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,'active','{}',$8,$8
    )
    ON CONFLICT (market_id, product_id) WHERE status = 'active' DO UPDATE
    SET tier            = EXCLUDED.tier,
        current_price   = EXCLUDED.current_price,
        reference_price = EXCLUDED.reference_price,
        deviation_pct   = EXCLUDED.deviation_pct,
        updated_at      = EXCLUDED.updated_at
    RETURNING ` + alertColumns + `, (xmax = 0) AS inserted;`

	settleAlertSQL = `UPDATE alerts
    SET status = $2, resolved_at = $3, updated_at = $3
    WHERE id = $1 AND status = 'active'
    RETURNING ` + alertColumns + `;`

	getAlertSQL = `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1;`

	listAlertsSQL = `SELECT ` + alertColumns + `
    FROM alerts
    WHERE status = $1
      AND ($2::text = '' OR tier = $2)
      AND ($3::bigint = 0 OR market_id = $3)
      AND ($4::bigint = 0 OR product_id = $4)
    ORDER BY created_at DESC, id DESC
    LIMIT $5;`

	markAlertViewedSQL = `UPDATE alerts
    SET viewed_by = CASE WHEN $2::text = ANY(viewed_by) THEN viewed_by ELSE array_append(viewed_by, $2) END
    WHERE id = $1;`

	alertStatsByTierSQL = `SELECT tier, COUNT(*)
    FROM alerts
    WHERE status = 'active'
      AND ($1::timestamptz IS NULL OR created_at >= $1)
      AND ($2::timestamptz IS NULL OR created_at <= $2)
    GROUP BY tier;`

	alertStatsByKindSQL = `SELECT kind, COUNT(*)
    FROM alerts
    WHERE status = 'active'
      AND ($1::timestamptz IS NULL OR created_at >= $1)
      AND ($2::timestamptz IS NULL OR created_at <= $2)
    GROUP BY kind;`

	getMarketSQL     = `SELECT id, name, commune_id, latitude, longitude FROM markets WHERE id = $1;`
	getCommuneSQL    = `SELECT id, name, department_id FROM communes WHERE id = $1;`
	getDepartmentSQL = `SELECT id, name FROM departments WHERE id = $1;`
	getProductSQL    = `SELECT id, name FROM products WHERE id = $1;`

	pingSQL = `SELECT 1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryLockSQL    = `SELECT pg_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ObservationReader is the read capability the baseline calculator needs.
type ObservationReader interface {
	FindValidatedObservations(ctx context.Context, filter ObservationFilter) ([]Observation, error)
}

// ObservationStore covers the intake operations the alert engine hooks into.
type ObservationStore interface {
	ObservationReader
	GetObservation(ctx context.Context, id int64) (Observation, error)
	InsertObservation(ctx context.Context, obs Observation) (Observation, error)
	MarkObservationValidated(ctx context.Context, id int64, reviewer string, at time.Time) (Observation, error)
	MarkObservationRejected(ctx context.Context, id int64, reviewer, reason string, at time.Time) (Observation, error)
}

// AlertStore persists alert records.
type AlertStore interface {
	FindActiveAlert(ctx context.Context, pair Pair) (*Alert, error)
	// UpsertAlert creates the active alert for the pair or overwrites its tier and
	// snapshot in place. created reports whether a new record was inserted.
	UpsertAlert(ctx context.Context, alert Alert) (saved Alert, created bool, err error)
	// SettleAlert moves an active alert to a terminal status.
	SettleAlert(ctx context.Context, id int64, status AlertStatus, at time.Time) (Alert, error)
	GetAlert(ctx context.Context, id int64) (Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error)
	MarkAlertViewed(ctx context.Context, id int64, principal string) error
	AlertStatistics(ctx context.Context, filter StatsFilter) (AlertStats, error)
}

// CatalogReader resolves territory and product reference data.
type CatalogReader interface {
	GetMarket(ctx context.Context, id int64) (Market, error)
	GetCommune(ctx context.Context, id int64) (Commune, error)
	GetDepartment(ctx context.Context, id int64) (Department, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// AdvisoryLocker exposes non-blocking cluster-wide locks.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// PairLocker serialises alert reconciliation for a pair across processes.
type PairLocker interface {
	LockPair(ctx context.Context, pair Pair) (unlock func(), err error)
}

// Store aggregates PostgreSQL access to observations, alerts and the catalog.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	var one int
	if err := pool.QueryRow(ctx, pingSQL).Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return releaseFunc(conn, key), true, nil
}

// LockPair blocks until the session-level advisory lock for the pair is held.
func (s *Store) LockPair(ctx context.Context, pair Pair) (func(), error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	key := PairLockKey(pair)
	if _, err := conn.Exec(ctx, advisoryLockSQL, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("lock pair %d/%d: %w", pair.MarketID, pair.ProductID, err)
	}
	return releaseFunc(conn, key), nil
}

func releaseFunc(conn *pgxpool.Conn, key int64) func() {
	return func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// a session lock that cannot be released must not go back to the pool
			conn.Conn().Close(ctxUnlock)
		}
		conn.Release()
	}
}

// PairLockKey derives the advisory lock key for a pair.
func PairLockKey(pair Pair) int64 {
	h := fnv.New64a()
	h.Write([]byte("alert-pair:"))
	h.Write([]byte(strconv.FormatInt(pair.MarketID, 10)))
	h.Write([]byte{'/'})
	h.Write([]byte(strconv.FormatInt(pair.ProductID, 10)))
	return int64(h.Sum64())
}

// FindValidatedObservations lists validated observations matching filter, oldest first.
func (s *Store) FindValidatedObservations(ctx context.Context, filter ObservationFilter) ([]Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, findValidatedObservationsSQL,
		filter.ProductID,
		filter.MarketID,
		nullableTime(filter.From),
		nullableTime(filter.To),
		filter.ExcludeID,
	)
	if queryErr != nil {
		return nil, fmt.Errorf("find validated observations: %w", queryErr)
	}
	defer rows.Close()

	observations := make([]Observation, 0)
	for rows.Next() {
		obs, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

// GetObservation loads one observation.
func (s *Store) GetObservation(ctx context.Context, id int64) (Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, err
	}
	obs, err := scanObservation(pool.QueryRow(ctx, getObservationSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Observation{}, ErrNotFound
	}
	if err != nil {
		return Observation{}, fmt.Errorf("get observation: %w", err)
	}
	return obs, nil
}

// InsertObservation stores a new observation.
func (s *Store) InsertObservation(ctx context.Context, obs Observation) (Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, err
	}
	status := obs.Status
	if status == "" {
		status = ObservationSubmitted
	}
	saved, err := scanObservation(pool.QueryRow(ctx, insertObservationSQL,
		obs.AgentID,
		obs.MarketID,
		obs.ProductID,
		obs.UnitID,
		obs.ObservedAt.UTC(),
		string(obs.Slot),
		obs.Price.String(),
		obs.Quantity.String(),
		string(status),
	))
	if err != nil {
		return Observation{}, fmt.Errorf("insert observation: %w", err)
	}
	return saved, nil
}

// MarkObservationValidated transitions an observation to validated.
func (s *Store) MarkObservationValidated(ctx context.Context, id int64, reviewer string, at time.Time) (Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, err
	}
	obs, err := scanObservation(pool.QueryRow(ctx, validateObservationSQL, id, reviewer, at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetObservation(ctx, id); getErr != nil {
			return Observation{}, getErr
		}
		return Observation{}, ErrAlreadyValidated
	}
	if err != nil {
		return Observation{}, fmt.Errorf("validate observation: %w", err)
	}
	return obs, nil
}

// MarkObservationRejected transitions an observation to rejected.
func (s *Store) MarkObservationRejected(ctx context.Context, id int64, reviewer, reason string, at time.Time) (Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return Observation{}, err
	}
	obs, err := scanObservation(pool.QueryRow(ctx, rejectObservationSQL, id, reviewer, reason, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return Observation{}, ErrNotFound
	}
	if err != nil {
		return Observation{}, fmt.Errorf("reject observation: %w", err)
	}
	return obs, nil
}

// FindActiveAlert returns the active alert for pair, or nil when none exists.
func (s *Store) FindActiveAlert(ctx context.Context, pair Pair) (*Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	alert, err := scanAlert(pool.QueryRow(ctx, findActiveAlertSQL, pair.MarketID, pair.ProductID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active alert: %w", err)
	}
	return &alert, nil
}

// UpsertAlert inserts or overwrites the active alert for alert's pair.
func (s *Store) UpsertAlert(ctx context.Context, alert Alert) (Alert, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, false, err
	}

	kind := alert.Kind
	if kind == "" {
		kind = KindPriceSpike
	}
	at := alert.UpdatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := pool.QueryRow(ctx, upsertActiveAlertSQL,
		string(alert.Tier),
		string(kind),
		alert.MarketID,
		alert.ProductID,
		alert.CurrentPrice.String(),
		alert.ReferencePrice.String(),
		alert.DeviationPct.String(),
		at,
	)

	var inserted bool
	saved, err := scanAlertWith(row, &inserted)
	if err != nil {
		return Alert{}, false, fmt.Errorf("upsert alert: %w", err)
	}
	return saved, inserted, nil
}

// SettleAlert moves an active alert to status.
func (s *Store) SettleAlert(ctx context.Context, id int64, status AlertStatus, at time.Time) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}
	alert, err := scanAlert(pool.QueryRow(ctx, settleAlertSQL, id, string(status), at))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetAlert(ctx, id); getErr != nil {
			return Alert{}, getErr
		}
		return Alert{}, ErrAlreadyResolved
	}
	if err != nil {
		return Alert{}, fmt.Errorf("settle alert: %w", err)
	}
	return alert, nil
}

// GetAlert loads one alert.
func (s *Store) GetAlert(ctx context.Context, id int64) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}
	alert, err := scanAlert(pool.QueryRow(ctx, getAlertSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Alert{}, ErrNotFound
	}
	if err != nil {
		return Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts lists alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	filter = filter.normalized()

	rows, queryErr := pool.Query(ctx, listAlertsSQL,
		string(filter.Status),
		string(filter.Tier),
		filter.MarketID,
		filter.ProductID,
		filter.Limit,
	)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]Alert, 0, filter.Limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// MarkAlertViewed adds principal to the acknowledgement set once.
func (s *Store) MarkAlertViewed(ctx context.Context, id int64, principal string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, markAlertViewedSQL, id, principal)
	if execErr != nil {
		return fmt.Errorf("mark alert viewed: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AlertStatistics counts active alerts by tier and kind.
func (s *Store) AlertStatistics(ctx context.Context, filter StatsFilter) (AlertStats, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertStats{}, err
	}

	stats := AlertStats{ByTier: map[tier.Tier]int64{}, ByKind: map[AlertKind]int64{}}
	from, to := nullableTimePtr(filter.From), nullableTimePtr(filter.To)

	err = countGroups(ctx, pool, alertStatsByTierSQL, from, to, func(key string, n int64) {
		stats.ByTier[tier.Tier(key)] = n
		stats.ActiveTotal += n
	})
	if err != nil {
		return AlertStats{}, fmt.Errorf("alert stats by tier: %w", err)
	}
	err = countGroups(ctx, pool, alertStatsByKindSQL, from, to, func(key string, n int64) {
		stats.ByKind[AlertKind(key)] = n
	})
	if err != nil {
		return AlertStats{}, fmt.Errorf("alert stats by kind: %w", err)
	}
	return stats, nil
}

func countGroups(ctx context.Context, pool *pgxpool.Pool, query string, from, to any, fn func(string, int64)) error {
	rows, err := pool.Query(ctx, query, from, to)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

// GetMarket loads a market.
func (s *Store) GetMarket(ctx context.Context, id int64) (Market, error) {
	pool, err := s.getPool()
	if err != nil {
		return Market{}, err
	}
	var m Market
	err = pool.QueryRow(ctx, getMarketSQL, id).Scan(&m.ID, &m.Name, &m.CommuneID, &m.Latitude, &m.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return Market{}, ErrNotFound
	}
	if err != nil {
		return Market{}, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

// GetCommune loads a commune.
func (s *Store) GetCommune(ctx context.Context, id int64) (Commune, error) {
	pool, err := s.getPool()
	if err != nil {
		return Commune{}, err
	}
	var c Commune
	err = pool.QueryRow(ctx, getCommuneSQL, id).Scan(&c.ID, &c.Name, &c.DepartmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Commune{}, ErrNotFound
	}
	if err != nil {
		return Commune{}, fmt.Errorf("get commune: %w", err)
	}
	return c, nil
}

// GetDepartment loads a department.
func (s *Store) GetDepartment(ctx context.Context, id int64) (Department, error) {
	pool, err := s.getPool()
	if err != nil {
		return Department{}, err
	}
	var d Department
	err = pool.QueryRow(ctx, getDepartmentSQL, id).Scan(&d.ID, &d.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	if err != nil {
		return Department{}, fmt.Errorf("get department: %w", err)
	}
	return d, nil
}

// GetProduct loads a product.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	pool, err := s.getPool()
	if err != nil {
		return Product{}, err
	}
	var p Product
	err = pool.QueryRow(ctx, getProductSQL, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// normalized applies listing defaults: active status and a 50 row limit capped at 200.
func (f AlertFilter) normalized() AlertFilter {
	if f.Status == "" {
		f.Status = AlertActive
	}
	if f.Limit <= 0 {
		f.Limit = DefaultAlertLimit
	}
	if f.Limit > MaxAlertLimit {
		f.Limit = MaxAlertLimit
	}
	return f
}

const (
	DefaultAlertLimit = 50
	MaxAlertLimit     = 200
)

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullableTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func scanObservation(row pgx.Row) (Observation, error) {
	var (
		obs         Observation
		slot        string
		status      string
		priceStr    string
		quantityStr string
	)
	if err := row.Scan(
		&obs.ID,
		&obs.AgentID,
		&obs.MarketID,
		&obs.ProductID,
		&obs.UnitID,
		&obs.ObservedAt,
		&slot,
		&priceStr,
		&quantityStr,
		&status,
		&obs.RejectReason,
		&obs.ReviewedBy,
		&obs.ReviewedAt,
		&obs.CreatedAt,
		&obs.UpdatedAt,
	); err != nil {
		return Observation{}, err
	}

	var err error
	obs.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return Observation{}, fmt.Errorf("parse price: %w", err)
	}
	obs.Quantity, err = decimal.NewFromString(quantityStr)
	if err != nil {
		return Observation{}, fmt.Errorf("parse quantity: %w", err)
	}
	obs.Slot = Slot(slot)
	obs.Status = ObservationStatus(status)
	return obs, nil
}

func scanAlert(row pgx.Row) (Alert, error) {
	return scanAlertWith(row)
}

func scanAlertWith(row pgx.Row, extra ...any) (Alert, error) {
	var (
		alert        Alert
		tierStr      string
		kind         string
		status       string
		currentStr   string
		referenceStr string
		deviationStr string
	)
	dest := []any{
		&alert.ID,
		&tierStr,
		&kind,
		&alert.MarketID,
		&alert.ProductID,
		&currentStr,
		&referenceStr,
		&deviationStr,
		&status,
		&alert.ViewedBy,
		&alert.CreatedAt,
		&alert.ResolvedAt,
		&alert.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Alert{}, err
	}

	var err error
	alert.CurrentPrice, err = decimal.NewFromString(currentStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse current price: %w", err)
	}
	alert.ReferencePrice, err = decimal.NewFromString(referenceStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse reference price: %w", err)
	}
	alert.DeviationPct, err = decimal.NewFromString(deviationStr)
	if err != nil {
		return Alert{}, fmt.Errorf("parse deviation pct: %w", err)
	}
	alert.Tier = tier.Tier(tierStr)
	alert.Kind = AlertKind(kind)
	alert.Status = AlertStatus(status)
	if alert.ViewedBy == nil {
		alert.ViewedBy = []string{}
	}
	return alert, nil
}

var (
	_ ObservationStore = (*Store)(nil)
	_ AlertStore       = (*Store)(nil)
	_ CatalogReader    = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
	_ PairLocker       = (*Store)(nil)
)
