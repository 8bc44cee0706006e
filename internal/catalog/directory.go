package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-price-alerts/internal/storage"
)

// Unknown is shown when a referenced catalog row is missing.
const Unknown = "Unknown"

// MarketInfo is a market with its territory names resolved.
type MarketInfo struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Commune    string   `json:"commune,omitempty"`
	Department string   `json:"department,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// ProductInfo is a product display record.
type ProductInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Directory resolves display names for markets and products, caching the result.
// Lookups never fail: missing rows and store errors degrade to Unknown.
type Directory struct {
	store  storage.CatalogReader
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewDirectory builds a directory. cache may be nil.
func NewDirectory(store storage.CatalogReader, cache Cache, ttl time.Duration, logger zerolog.Logger) *Directory {
	return &Directory{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Market resolves a market with its commune and department names.
func (d *Directory) Market(ctx context.Context, id int64) MarketInfo {
	key := fmt.Sprintf("catalog:market:%d", id)
	var info MarketInfo
	if d.cached(ctx, key, &info) {
		return info
	}

	info = MarketInfo{ID: id, Name: Unknown}
	market, err := d.store.GetMarket(ctx, id)
	if err != nil {
		d.lookupFailed(err, "market", id)
		return info
	}
	// a transient failure on a nested lookup must not pin Unknown in the cache
	complete := true
	info.Name = market.Name
	info.Latitude = market.Latitude
	info.Longitude = market.Longitude

	if market.CommuneID != nil {
		commune, err := d.store.GetCommune(ctx, *market.CommuneID)
		if err != nil {
			if d.lookupFailed(err, "commune", *market.CommuneID) {
				complete = false
			}
			info.Commune = Unknown
		} else {
			info.Commune = commune.Name
			if commune.DepartmentID != nil {
				dept, err := d.store.GetDepartment(ctx, *commune.DepartmentID)
				if err != nil {
					if d.lookupFailed(err, "department", *commune.DepartmentID) {
						complete = false
					}
					info.Department = Unknown
				} else {
					info.Department = dept.Name
				}
			}
		}
	}

	if complete {
		d.remember(ctx, key, info)
	}
	return info
}

// Product resolves a product name.
func (d *Directory) Product(ctx context.Context, id int64) ProductInfo {
	key := fmt.Sprintf("catalog:product:%d", id)
	var info ProductInfo
	if d.cached(ctx, key, &info) {
		return info
	}

	info = ProductInfo{ID: id, Name: Unknown}
	product, err := d.store.GetProduct(ctx, id)
	if err != nil {
		d.lookupFailed(err, "product", id)
		return info
	}
	info.Name = product.Name
	d.remember(ctx, key, info)
	return info
}

// lookupFailed logs err unless it is a plain miss and reports whether it was transient.
func (d *Directory) lookupFailed(err error, kind string, id int64) bool {
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	d.logger.Warn().Err(err).Str("kind", kind).Int64("id", id).Msg("catalog lookup failed")
	return true
}

func (d *Directory) cached(ctx context.Context, key string, dst any) bool {
	if d.cache == nil {
		return false
	}
	b, found, err := d.cache.Get(ctx, key)
	if err != nil {
		d.logger.Debug().Err(err).Str("key", key).Msg("catalog cache get failed")
		return false
	}
	if !found {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (d *Directory) remember(ctx context.Context, key string, v any) {
	if d.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
		d.logger.Debug().Err(err).Str("key", key).Msg("catalog cache set failed")
	}
}
