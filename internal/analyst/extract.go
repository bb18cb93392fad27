package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"estimator/internal/estimate"
	"estimator/internal/gateway/provider"
	"estimator/internal/logger"
	"estimator/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// featuresSchema gates what the model returned before normalization runs.
var featuresSchema = jsonschema.MustCompileString("features.json", `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "minLength": 1}
		}
	}
}`)

// hour bands assigned when the model names a feature without numbers.
var complexityBands = map[string][2]float64{
	"simple":  {20, 35},
	"medium":  {40, 65},
	"complex": {70, 120},
}

// ExtractFeatures asks the model for the feature list implied by text and
// returns normalized specs ready for the engine.
func (a *Analyst) ExtractFeatures(ctx context.Context, text string) ([]estimate.FeatureSpec, error) {
	if a.provider == nil {
		return nil, ErrNoProvider
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, estimate.ErrInsufficientInput
	}

	user := a.buildExtractionPrompt(ctx, text)
	raw, err := a.provider.Chat(ctx, provider.ChatRequest{
		Purpose:     "feature-extraction",
		System:      extractSystemPrompt,
		User:        user,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("feature extraction call failed: %w", err)
	}
	return parseFeatures(raw)
}

func (a *Analyst) buildExtractionPrompt(ctx context.Context, text string) string {
	var sb strings.Builder
	if a.knowledge != nil {
		if ref := a.knowledge.EstimatesReference(4000); ref != "" {
			sb.WriteString("Reference estimates from past projects:\n")
			sb.WriteString(ref)
			sb.WriteString("\n\n")
		}
		if kctx, err := a.knowledge.Context(ctx, text, 8, 6000); err == nil && kctx != "" {
			sb.WriteString("Relevant reference passages:\n")
			sb.WriteString(kctx)
			sb.WriteString("\n\n")
		}
	}
	sb.WriteString("Project description:\n")
	sb.WriteString(text)
	return sb.String()
}

// parseFeatures salvages a JSON array from raw model output, validates its
// shape and normalizes every entry.
func parseFeatures(raw string) ([]estimate.FeatureSpec, error) {
	doc, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		logger.Warnf("model returned no parseable JSON: %.120s", raw)
		return nil, estimate.ErrInsufficientInput
	}
	if !gjson.Valid(doc) {
		return nil, estimate.ErrInsufficientInput
	}

	var parsed any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, estimate.ErrInsufficientInput
	}
	if _, isArray := parsed.([]any); !isArray {
		// lone object, wrap it
		parsed = []any{parsed}
		doc = "[" + doc + "]"
	}
	if err := featuresSchema.Validate(parsed); err != nil {
		logger.Warnf("model feature list failed validation: %v", err)
		return nil, estimate.ErrInsufficientInput
	}

	var specs []estimate.FeatureSpec
	gjson.Parse(doc).ForEach(func(_, item gjson.Result) bool {
		name := strings.TrimSpace(firstString(item, "name", "feature", "title"))
		if name == "" {
			return true
		}
		spec := estimate.FeatureSpec{
			Name:        name,
			Description: strings.TrimSpace(firstString(item, "description", "details")),
			Complexity:  strings.ToLower(strings.TrimSpace(firstString(item, "complexity", "difficulty"))),
			HoursMin:    firstNumber(item, "hours_min", "min_hours", "hours.min"),
			HoursMax:    firstNumber(item, "hours_max", "max_hours", "hours.max"),
			DependsOn:   stringList(item, "depends_on", "dependencies"),
			Variations:  stringList(item, "variations", "modifiers"),
		}
		if spec.HoursMin == 0 && spec.HoursMax == 0 {
			if h := firstNumber(item, "hours", "estimated_hours", "time_hours"); h > 0 {
				spec.HoursMin, spec.HoursMax = h, h
			}
		}
		specs = append(specs, normalizeSpec(spec))
		return true
	})
	if len(specs) == 0 {
		return nil, estimate.ErrInsufficientInput
	}
	return specs, nil
}

// normalizeSpec enforces the hour-band sanity rules:
//   - no numbers at all: assign the band for the complexity
//   - a single number: spread it plus/minus 15 percent
//   - max further than 1.5x min: clamp max to 1.3x min
func normalizeSpec(spec estimate.FeatureSpec) estimate.FeatureSpec {
	if _, ok := complexityBands[spec.Complexity]; !ok {
		spec.Complexity = "medium"
	}
	min, max := spec.HoursMin, spec.HoursMax
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	switch {
	case min == 0 && max == 0:
		band := complexityBands[spec.Complexity]
		spec.HoursMin, spec.HoursMax = band[0], band[1]
		return spec
	case min == 0:
		min, max = max*0.85, max*1.15
	case max == 0:
		min, max = min*0.85, min*1.15
	case min == max:
		min, max = min*0.85, max*1.15
	}
	if min > max {
		min, max = max, min
	}
	if max > min*1.5 {
		max = min * 1.3
	}
	spec.HoursMin, spec.HoursMax = min, max
	return spec
}

func firstString(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func stringList(item gjson.Result, paths ...string) []string {
	for _, p := range paths {
		v := item.Get(p)
		if !v.IsArray() {
			continue
		}
		var out []string
		for _, el := range v.Array() {
			if s := strings.TrimSpace(el.String()); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstNumber(item gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() {
			if n := v.Float(); n > 0 {
				return n
			}
		}
	}
	return 0
}
