package estimate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"estimator/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *catalog.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.yaml")
	body := []byte(`
features:
  - name: Landing Page
    base_time_hours: 10
    complexity: simple
  - name: Payment Integration
    base_time_hours: 10
    complexity: complex
    aliases: [payments]
  - name: Search
    base_time_hours: 20
    complexity: medium
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	reg, err := catalog.NewRegistry(path)
	require.NoError(t, err)
	return reg
}

func defaultOptions() Options {
	return Options{HourlyRate: 30, BufferPct: 0.20, DefaultBaseHours: 40, RangeSpread: 0.10}
}

func TestEstimateCanonicalTotals(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	sum, err := e.Estimate([]FeatureSpec{
		{Name: "Landing Page"},
		{Name: "Payment Integration"},
	})
	require.NoError(t, err)

	// 10h simple (x1.0) + 10h complex (x2.2) = 32h; cost 32 * 30 * 1.2 = 1152
	assert.Equal(t, 32.0, sum.TotalTimeHours)
	assert.Equal(t, 1152.0, sum.TotalCost)
	assert.Equal(t, 38.4, sum.BufferedTimeHours)
	assert.Equal(t, Range{Min: 28.8, Max: 35.2}, sum.TimeRangeHours)
	assert.Equal(t, Range{Min: 1036.8, Max: 1267.2}, sum.CostRange)
	assert.Equal(t, "USD", sum.Currency)
	assert.NotEmpty(t, sum.Timeline)
	assert.NotEmpty(t, sum.Assumptions)
}

func TestEstimateLineItemSources(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	sum, err := e.Estimate([]FeatureSpec{
		{Name: "payments"},                                           // catalog via alias
		{Name: "Custom Scheduler", HoursMin: 10, HoursMax: 20},       // model band
		{Name: "Quantum Module", Complexity: "complex"},              // default base
		{Name: "PAYMENTS", Description: "duplicate, should be gone"}, // dedupe
	})
	require.NoError(t, err)
	require.Len(t, sum.Features, 3)

	byName := map[string]LineItem{}
	for _, item := range sum.Features {
		byName[item.Name] = item
	}

	pay := byName["payments"]
	assert.Equal(t, "catalog", pay.Source)
	assert.Equal(t, "complex", pay.Complexity)
	assert.Equal(t, 22.0, pay.Hours)

	sched := byName["Custom Scheduler"]
	assert.Equal(t, "model", sched.Source)
	assert.Equal(t, 15.0, sched.BaseHours, "midpoint of the band")
	assert.Equal(t, 22.5, sched.Hours, "medium multiplier by default")

	quantum := byName["Quantum Module"]
	assert.Equal(t, "default", quantum.Source)
	assert.True(t, quantum.Custom)
	assert.Equal(t, 40.0, quantum.BaseHours)
	assert.Equal(t, 88.0, quantum.Hours, "40h default at complex multiplier")
}

func TestEstimateCustomFeatureAddsAssumption(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	sum, err := e.Estimate([]FeatureSpec{{Name: "Quantum Module"}})
	require.NoError(t, err)

	found := false
	for _, a := range sum.Assumptions {
		if strings.Contains(a, "Quantum Module") && strings.Contains(a, "placeholder") {
			found = true
		}
	}
	assert.True(t, found, "custom feature should surface an assumption")
}

func TestEstimateEmptyInput(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	_, err := e.Estimate(nil)
	assert.ErrorIs(t, err, ErrInsufficientInput)

	_, err = e.Estimate([]FeatureSpec{{Name: "   "}})
	assert.ErrorIs(t, err, ErrInsufficientInput)
}

func TestEstimateSingleSidedBand(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	sum, err := e.Estimate([]FeatureSpec{{Name: "Only Max", HoursMax: 12}})
	require.NoError(t, err)
	assert.Equal(t, 12.0, sum.Features[0].BaseHours)
}

func TestEstimateAtOverridesRate(t *testing.T) {
	e := NewEngine(testCatalog(t), defaultOptions())
	sum, err := e.EstimateAt([]FeatureSpec{
		{Name: "Landing Page"},
		{Name: "Payment Integration"},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, 32.0, sum.TotalTimeHours)
	assert.Equal(t, 3840.0, sum.TotalCost, "32h * $100 * 1.2")
	assert.Equal(t, 100.0, sum.HourlyRate)

	// non-positive rate falls back to the configured one
	sum, err = e.EstimateAt([]FeatureSpec{{Name: "Landing Page"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, sum.HourlyRate)
}

func TestEstimateAppliesVariations(t *testing.T) {
	// built-in catalog carries the mvp (0.6/0.6) variation
	reg, err := catalog.NewRegistry("")
	require.NoError(t, err)
	e := NewEngine(reg, defaultOptions())

	sum, err := e.Estimate([]FeatureSpec{
		{Name: "User Registration", Variations: []string{"mvp", "unknown"}},
	})
	require.NoError(t, err)
	require.Len(t, sum.Features, 1)

	item := sum.Features[0]
	// 16h base, simple x1.0, mvp x0.6
	assert.Equal(t, 9.6, item.Hours)
	assert.Equal(t, []string{"mvp"}, item.Variations, "unknown variations are ignored")
	assert.Equal(t, 9.6, sum.TotalTimeHours)
	assert.InDelta(t, 9.6*30*1.2, sum.TotalCost, 0.01)
}

func TestTimelineWording(t *testing.T) {
	assert.Contains(t, timeline(8), "1 working day")
	assert.Contains(t, timeline(120), "weeks")
	assert.Contains(t, timeline(800), "months")
	assert.Equal(t, "", timeline(0))
}
