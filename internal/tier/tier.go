package tier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is the severity assigned to a price deviation.
type Tier string

const (
	Normal       Tier = "normal"
	Surveillance Tier = "surveillance"
	Alert        Tier = "alert"
	Urgent       Tier = "urgent"
)

var hundred = decimal.NewFromInt(100)

// Rank orders tiers from normal (0) to urgent (3). Unknown tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case Normal:
		return 0
	case Surveillance:
		return 1
	case Alert:
		return 2
	case Urgent:
		return 3
	default:
		return -1
	}
}

// Escalated lists the tiers that raise an alert, lowest first.
func Escalated() []Tier {
	return []Tier{Surveillance, Alert, Urgent}
}

// Parse accepts a tier name, case-insensitive.
func Parse(v string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(v)))
	if t.Rank() < 0 {
		return "", fmt.Errorf("unknown tier %q", v)
	}
	return t, nil
}

// Thresholds are the minimum deviation percentages for each non-normal tier.
type Thresholds struct {
	Surveillance decimal.Decimal
	Alert        decimal.Decimal
	Urgent       decimal.Decimal
}

// DefaultThresholds returns 15/30/50.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Surveillance: decimal.NewFromInt(15),
		Alert:        decimal.NewFromInt(30),
		Urgent:       decimal.NewFromInt(50),
	}
}

// NewThresholds builds thresholds from integer percentages; they must be positive and strictly ascending.
func NewThresholds(surveillance, alert, urgent int) (Thresholds, error) {
	if surveillance <= 0 {
		return Thresholds{}, fmt.Errorf("surveillance threshold must be positive, got %d", surveillance)
	}
	if alert <= surveillance || urgent <= alert {
		return Thresholds{}, fmt.Errorf("thresholds must be ascending: surveillance=%d alert=%d urgent=%d", surveillance, alert, urgent)
	}
	return Thresholds{
		Surveillance: decimal.NewFromInt(int64(surveillance)),
		Alert:        decimal.NewFromInt(int64(alert)),
		Urgent:       decimal.NewFromInt(int64(urgent)),
	}, nil
}

// Classifier maps a price against its reference onto a Tier.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier constructs a classifier using the given thresholds.
func NewClassifier(thresholds Thresholds) *Classifier {
	return &Classifier{thresholds: thresholds}
}

// Deviation returns (current-reference)/reference*100. ok is false when reference <= 0.
func Deviation(current, reference decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if !reference.IsPositive() {
		return decimal.Zero, false
	}
	return current.Sub(reference).Mul(hundred).Div(reference), true
}

// Classify returns the tier for current vs reference. A non-positive reference is normal.
func (c *Classifier) Classify(current, reference decimal.Decimal) Tier {
	t, _ := c.Evaluate(current, reference)
	return t
}

// Evaluate returns the tier together with the deviation percentage it was derived from.
func (c *Classifier) Evaluate(current, reference decimal.Decimal) (Tier, decimal.Decimal) {
	pct, ok := Deviation(current, reference)
	if !ok {
		return Normal, decimal.Zero
	}
	return c.ForDeviation(pct), pct
}

// ForDeviation checks the highest threshold first; the first match wins.
func (c *Classifier) ForDeviation(pct decimal.Decimal) Tier {
	switch {
	case pct.GreaterThanOrEqual(c.thresholds.Urgent):
		return Urgent
	case pct.GreaterThanOrEqual(c.thresholds.Alert):
		return Alert
	case pct.GreaterThanOrEqual(c.thresholds.Surveillance):
		return Surveillance
	default:
		return Normal
	}
}
