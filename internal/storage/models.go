package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"market-price-alerts/internal/tier"
)

// ObservationStatus tracks the intake workflow of a price observation.
type ObservationStatus string

const (
	ObservationDraft     ObservationStatus = "draft"
	ObservationSubmitted ObservationStatus = "submitted"
	ObservationValidated ObservationStatus = "validated"
	ObservationRejected  ObservationStatus = "rejected"
)

// Slot is one of the four ordered daily collection slots.
type Slot string

const (
	SlotNone     Slot = ""
	SlotMorning1 Slot = "morning1"
	SlotMorning2 Slot = "morning2"
	SlotEvening1 Slot = "evening1"
	SlotEvening2 Slot = "evening2"
)

// Observation is a single agent-submitted price record.
type Observation struct {
	ID           int64             `json:"id"`
	AgentID      string            `json:"agent_id"`
	MarketID     int64             `json:"market_id"`
	ProductID    int64             `json:"product_id"`
	UnitID       int64             `json:"unit_id"`
	ObservedAt   time.Time         `json:"observed_at"`
	Slot         Slot              `json:"slot,omitempty"`
	Price        decimal.Decimal   `json:"price"`
	Quantity     decimal.Decimal   `json:"quantity"`
	Status       ObservationStatus `json:"status"`
	RejectReason *string           `json:"reject_reason,omitempty"`
	ReviewedBy   *string           `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time        `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ObservationFilter selects validated observations for baseline computation.
// From and To are inclusive; a zero MarketID means every market.
type ObservationFilter struct {
	ProductID int64
	MarketID  int64
	From      time.Time
	To        time.Time
	ExcludeID int64
}

// Matches reports whether o satisfies the filter. Only validated observations match.
func (f ObservationFilter) Matches(o Observation) bool {
	if o.Status != ObservationValidated {
		return false
	}
	if f.ProductID != 0 && o.ProductID != f.ProductID {
		return false
	}
	if f.MarketID != 0 && o.MarketID != f.MarketID {
		return false
	}
	if f.ExcludeID != 0 && o.ID == f.ExcludeID {
		return false
	}
	if !f.From.IsZero() && o.ObservedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.ObservedAt.After(f.To) {
		return false
	}
	return true
}

// AlertKind classifies what triggered an alert. Only PriceSpike is produced today.
type AlertKind string

const (
	KindPriceSpike  AlertKind = "price_spike"
	KindUnavailable AlertKind = "unavailable"
	KindRisingTrend AlertKind = "rising_trend"
)

// AlertStatus is the lifecycle state of an alert record.
type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
	AlertClosed   AlertStatus = "closed"
)

// Pair identifies the (market, product) an alert is raised for.
type Pair struct {
	MarketID  int64
	ProductID int64
}

// Alert is the persisted alert record. Snapshot fields are overwritten on each update.
type Alert struct {
	ID             int64
	Tier           tier.Tier
	Kind           AlertKind
	MarketID       int64
	ProductID      int64
	CurrentPrice   decimal.Decimal
	ReferencePrice decimal.Decimal
	DeviationPct   decimal.Decimal
	Status         AlertStatus
	ViewedBy       []string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	UpdatedAt      time.Time
}

// Pair returns the alert's (market, product) key.
func (a Alert) Pair() Pair {
	return Pair{MarketID: a.MarketID, ProductID: a.ProductID}
}

// ViewedByPrincipal reports whether principal has acknowledged the alert.
func (a Alert) ViewedByPrincipal(principal string) bool {
	for _, id := range a.ViewedBy {
		if id == principal {
			return true
		}
	}
	return false
}

// AlertFilter narrows alert listings. An empty Status means active only.
type AlertFilter struct {
	Tier      tier.Tier
	Status    AlertStatus
	MarketID  int64
	ProductID int64
	Limit     int
}

// StatsFilter bounds statistics by alert creation time.
type StatsFilter struct {
	From *time.Time
	To   *time.Time
}

// AlertStats buckets active alerts.
type AlertStats struct {
	ActiveTotal int64
	ByTier      map[tier.Tier]int64
	ByKind      map[AlertKind]int64
}

// Market is the catalog view of a market.
type Market struct {
	ID        int64
	Name      string
	CommuneID *int64
	Latitude  *float64
	Longitude *float64
}

// Commune belongs to a department.
type Commune struct {
	ID           int64
	Name         string
	DepartmentID *int64
}

// Department is the top of the territory hierarchy.
type Department struct {
	ID   int64
	Name string
}

// Product is a catalog product.
type Product struct {
	ID   int64
	Name string
}
