// Package estimate turns extracted feature specs into deterministic time and
// cost figures. All arithmetic routes through decimals so repeated runs over
// the same input produce identical totals.
package estimate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"estimator/internal/catalog"
	"estimator/internal/logger"

	"github.com/shopspring/decimal"
)

// ErrInsufficientInput marks input that yields no estimable features.
var ErrInsufficientInput = errors.New("no estimable features found in input")

// Complexity multipliers applied to base hours.
var multipliers = map[string]float64{
	"simple":  1.0,
	"medium":  1.5,
	"complex": 2.2,
}

// FeatureSpec is one feature as proposed by the analyst.
type FeatureSpec struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Complexity  string   `json:"complexity,omitempty"`
	HoursMin    float64  `json:"hours_min,omitempty"`
	HoursMax    float64  `json:"hours_max,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Variations  []string `json:"variations,omitempty"`
}

// LineItem is one estimated feature in the summary. Cost is before buffer;
// the buffer lands once on the summary totals.
type LineItem struct {
	Name       string   `json:"name"`
	Complexity string   `json:"complexity"`
	BaseHours  float64  `json:"base_hours"`
	Multiplier float64  `json:"multiplier"`
	Hours      float64  `json:"hours"`
	HoursMin   float64  `json:"hours_min"`
	HoursMax   float64  `json:"hours_max"`
	Cost       float64  `json:"cost"`
	Source     string   `json:"source"`
	Custom     bool     `json:"custom,omitempty"`
	DependsOn  []string `json:"depends_on,omitempty"`
	Variations []string `json:"variations,omitempty"`
}

// Range is a low/high band.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary is the full estimation result.
type Summary struct {
	Features          []LineItem `json:"features"`
	TotalTimeHours    float64    `json:"total_time_hours"`
	TimeRangeHours    Range      `json:"time_range_hours"`
	BufferedTimeHours float64    `json:"buffered_time_hours"`
	TotalCost         float64    `json:"total_cost"`
	CostRange         Range      `json:"cost_range"`
	HourlyRate        float64    `json:"hourly_rate"`
	BufferPct         float64    `json:"buffer_pct"`
	Currency          string     `json:"currency"`
	Timeline          string     `json:"timeline"`
	Assumptions       []string   `json:"assumptions"`
	GeneratedAt       time.Time  `json:"generated_at"`
}

// Options carry the arithmetic knobs.
type Options struct {
	HourlyRate       float64
	BufferPct        float64
	DefaultBaseHours float64
	RangeSpread      float64
}

// Engine computes estimates against a feature catalog.
type Engine struct {
	catalog *catalog.Registry
	opts    Options
}

// NewEngine wires the engine. Zero option fields get working defaults.
func NewEngine(reg *catalog.Registry, opts Options) *Engine {
	if opts.HourlyRate <= 0 {
		opts.HourlyRate = 30
	}
	if opts.BufferPct < 0 {
		opts.BufferPct = 0
	}
	if opts.DefaultBaseHours <= 0 {
		opts.DefaultBaseHours = 40
	}
	if opts.RangeSpread <= 0 {
		opts.RangeSpread = 0.10
	}
	return &Engine{catalog: reg, opts: opts}
}

// Estimate prices the given feature specs at the configured hourly rate.
func (e *Engine) Estimate(specs []FeatureSpec) (*Summary, error) {
	return e.EstimateAt(specs, e.opts.HourlyRate)
}

// EstimateAt prices the given feature specs at a caller-supplied hourly rate;
// a non-positive rate falls back to the configured one. Duplicate names
// collapse into one line item, first occurrence wins. The buffer is applied
// once to the totals, never per feature.
func (e *Engine) EstimateAt(specs []FeatureSpec, hourlyRate float64) (*Summary, error) {
	specs = dedupe(specs)
	if len(specs) == 0 {
		return nil, ErrInsufficientInput
	}
	if hourlyRate <= 0 {
		hourlyRate = e.opts.HourlyRate
	}

	rate := decimal.NewFromFloat(hourlyRate)
	bufferFactor := decimal.NewFromFloat(1 + e.opts.BufferPct)

	items := make([]LineItem, 0, len(specs))
	totalHours := decimal.Zero
	rawCost := decimal.Zero
	var assumptions []string
	for _, spec := range specs {
		item, costMult := e.price(spec)
		cost := decimal.NewFromFloat(item.Hours).Mul(rate).Mul(costMult)
		item.Cost = round2(cost)
		items = append(items, item)
		totalHours = totalHours.Add(decimal.NewFromFloat(item.Hours))
		rawCost = rawCost.Add(cost)
		if item.Custom {
			assumptions = append(assumptions, fmt.Sprintf(
				"%q has no reference entry; its %.0fh base is a placeholder pending scoping.", item.Name, item.BaseHours))
		}
	}

	spread := decimal.NewFromFloat(e.opts.RangeSpread)
	low := decimal.NewFromInt(1).Sub(spread)
	high := decimal.NewFromInt(1).Add(spread)
	buffered := totalHours.Mul(bufferFactor)
	totalCost := rawCost.Mul(bufferFactor)

	opts := e.opts
	opts.HourlyRate = hourlyRate
	summary := &Summary{
		Features:          items,
		TotalTimeHours:    round1(totalHours),
		TimeRangeHours:    Range{Min: round1(totalHours.Mul(low)), Max: round1(totalHours.Mul(high))},
		BufferedTimeHours: round1(buffered),
		TotalCost:         round2(totalCost),
		CostRange: Range{
			Min: round2(totalCost.Mul(low)),
			Max: round2(totalCost.Mul(high)),
		},
		HourlyRate:  hourlyRate,
		BufferPct:   e.opts.BufferPct,
		Currency:    "USD",
		Timeline:    timeline(totalHours.InexactFloat64()),
		Assumptions: append(baseAssumptions(opts), assumptions...),
		GeneratedAt: time.Now().UTC(),
	}
	logger.Debugf("estimated %d features: %.1fh, $%.2f", len(items), summary.TotalTimeHours, summary.TotalCost)
	return summary, nil
}

// price resolves base hours for one spec: catalog entry first, then the
// analyst's own band, then the configured default flagged as custom. The
// second return is the cost multiplier accumulated from named variations.
func (e *Engine) price(spec FeatureSpec) (LineItem, decimal.Decimal) {
	item := LineItem{Name: strings.TrimSpace(spec.Name), DependsOn: spec.DependsOn}
	var entry catalog.Feature
	var found bool
	if e.catalog != nil {
		entry, found = e.catalog.Lookup(spec.Name)
	}
	switch {
	case found:
		item.BaseHours = entry.BaseTimeHours
		item.Complexity = pickComplexity(spec.Complexity, entry.Complexity)
		item.Source = "catalog"
	case spec.HoursMin > 0 || spec.HoursMax > 0:
		item.BaseHours = midpoint(spec.HoursMin, spec.HoursMax)
		item.Complexity = pickComplexity(spec.Complexity, "medium")
		item.Source = "model"
	default:
		item.BaseHours = e.opts.DefaultBaseHours
		item.Complexity = pickComplexity(spec.Complexity, "medium")
		item.Source = "default"
		item.Custom = true
	}
	item.Multiplier = multipliers[item.Complexity]
	hours := decimal.NewFromFloat(item.BaseHours).Mul(decimal.NewFromFloat(item.Multiplier))

	costMult := decimal.NewFromInt(1)
	for _, name := range spec.Variations {
		if e.catalog == nil {
			break
		}
		v, ok := e.catalog.Variation(name)
		if !ok {
			continue
		}
		item.Variations = append(item.Variations, v.Name)
		hours = hours.Mul(decimal.NewFromFloat(v.TimeMultiplier))
		costMult = costMult.Mul(decimal.NewFromFloat(v.CostMultiplier / v.TimeMultiplier))
	}
	item.Hours = round1(hours)

	spread := decimal.NewFromFloat(e.opts.RangeSpread)
	item.HoursMin = round1(hours.Mul(decimal.NewFromInt(1).Sub(spread)))
	item.HoursMax = round1(hours.Mul(decimal.NewFromInt(1).Add(spread)))
	return item, costMult
}

func pickComplexity(proposed, fallback string) string {
	proposed = strings.ToLower(strings.TrimSpace(proposed))
	if _, ok := multipliers[proposed]; ok {
		return proposed
	}
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if _, ok := multipliers[fallback]; ok {
		return fallback
	}
	return "medium"
}

func midpoint(min, max float64) float64 {
	if min <= 0 {
		return max
	}
	if max <= 0 {
		return min
	}
	return (min + max) / 2
}

func dedupe(specs []FeatureSpec) []FeatureSpec {
	seen := make(map[string]bool, len(specs))
	out := specs[:0:0]
	for _, spec := range specs {
		key := catalog.NormalizeKey(spec.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, spec)
	}
	return out
}

// timeline renders total hours as working days, weeks or months, 8h days and
// 5-day weeks, for a single developer.
func timeline(hours float64) string {
	if hours <= 0 {
		return ""
	}
	days := math.Ceil(hours / 8)
	if days <= 5 {
		return fmt.Sprintf("approximately %.0f working day(s) for a single developer", days)
	}
	weeks := days / 5
	if weeks < 4 {
		return fmt.Sprintf("approximately %.0f working days (about %.1f weeks) for a single developer", days, weeks)
	}
	return fmt.Sprintf("approximately %.0f working days (about %.1f months) for a single developer", days, weeks/4)
}

func round1(d decimal.Decimal) float64 { return d.Round(1).InexactFloat64() }
func round2(d decimal.Decimal) float64 { return d.Round(2).InexactFloat64() }

func baseAssumptions(opts Options) []string {
	return []string{
		fmt.Sprintf("Hourly rate of $%.2f for a mid-level developer.", opts.HourlyRate),
		fmt.Sprintf("A %.0f%% contingency buffer is included in all cost figures.", opts.BufferPct*100),
		"Hours assume an 8-hour working day and a 5-day week.",
		"Estimates cover implementation and basic testing, not deployment or maintenance.",
	}
}
