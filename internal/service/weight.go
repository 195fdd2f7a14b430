package service

import (
	"math"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/config"
	"github.com/cloo-solutions/coverdraft/internal/domain"
)

// WeightBreakdown exposes every factor of a document's computed weight.
type WeightBreakdown struct {
	BaseWeight        float64 `json:"base_weight"`
	TypeWeight        float64 `json:"type_weight"`
	RecencyMultiplier float64 `json:"recency_multiplier"`
	ManualWeight      float64 `json:"manual_weight"`
	DaysSince         float64 `json:"days_since"`
	Weight            float64 `json:"weight"`
}

// WeightCalculator computes document weights against an injected clock.
// It holds no mutable state and is safe for concurrent use.
type WeightCalculator struct {
	cfg config.WeightingConfig
	now func() time.Time
}

// NewWeightCalculator creates a calculator; a nil clock means time.Now.
func NewWeightCalculator(cfg config.WeightingConfig, now func() time.Time) *WeightCalculator {
	if now == nil {
		now = time.Now
	}
	return &WeightCalculator{cfg: cfg, now: now}
}

// Config returns the weighting settings the calculator was built with.
func (c *WeightCalculator) Config() config.WeightingConfig {
	return c.cfg
}

// Now returns the calculator's current time.
func (c *WeightCalculator) Now() time.Time {
	return c.now()
}

// ComputeWeight returns base * type * recency * manual for the document.
func (c *WeightCalculator) ComputeWeight(doc *domain.Document) float64 {
	return c.BreakdownAt(doc, c.now()).Weight
}

// Breakdown returns the weight factors evaluated at the calculator's current time.
func (c *WeightCalculator) Breakdown(doc *domain.Document) WeightBreakdown {
	return c.BreakdownAt(doc, c.now())
}

// BreakdownAt evaluates the weight at a fixed instant so a batch of documents
// can share one clock reading.
func (c *WeightCalculator) BreakdownAt(doc *domain.Document, now time.Time) WeightBreakdown {
	b := WeightBreakdown{
		BaseWeight:        c.cfg.BaseWeight,
		TypeWeight:        c.typeWeight(doc.Type),
		RecencyMultiplier: 1.0,
		ManualWeight:      c.NormalizeManualWeight(doc.ManualWeight),
	}

	b.DaysSince = math.Max(0, now.Sub(doc.CanonicalDate).Hours()/24)
	if c.cfg.RecencyWeightingEnabled && c.cfg.RecencyPeriodDays > 0 {
		r := 1 - b.DaysSince/c.cfg.RecencyPeriodDays
		b.RecencyMultiplier = math.Min(1.0, math.Max(c.cfg.MinWeightMultiplier, r))
	}

	b.Weight = b.BaseWeight * b.TypeWeight * b.RecencyMultiplier * b.ManualWeight
	return b
}

func (c *WeightCalculator) typeWeight(t domain.DocumentType) float64 {
	if w, ok := c.cfg.TypeWeights[t]; ok {
		return w
	}
	return c.cfg.TypeWeights[domain.DocumentTypeOther]
}

// NormalizeManualWeight maps a user-supplied multiplier into the allowed
// range. Zero means unset and becomes 1.0.
func (c *WeightCalculator) NormalizeManualWeight(w float64) float64 {
	n, _ := c.ClampManualWeight(w)
	return n
}

// ClampManualWeight is NormalizeManualWeight that also reports whether the
// input had to be adjusted.
func (c *WeightCalculator) ClampManualWeight(w float64) (float64, bool) {
	switch {
	case w == 0:
		return domain.DefaultManualWeight, false
	case math.IsNaN(w):
		return domain.DefaultManualWeight, true
	case w < c.cfg.ManualWeightMin:
		return c.cfg.ManualWeightMin, true
	case w > c.cfg.ManualWeightMax:
		return c.cfg.ManualWeightMax, true
	}
	return w, false
}
