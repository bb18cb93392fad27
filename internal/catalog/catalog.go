// Package catalog holds the feature reference table the estimation engine
// consults before falling back to model-proposed hours. The table ships with
// built-in entries and can be replaced by a YAML file that is hot-reloaded.
package catalog

import (
	"strings"
	"time"
)

// Feature is one reference entry of the catalog.
type Feature struct {
	Name          string   `mapstructure:"name" yaml:"name"`
	Description   string   `mapstructure:"description" yaml:"description"`
	BaseTimeHours float64  `mapstructure:"base_time_hours" yaml:"base_time_hours"`
	Complexity    string   `mapstructure:"complexity" yaml:"complexity"`
	Category      string   `mapstructure:"category" yaml:"category"`
	Aliases       []string `mapstructure:"aliases" yaml:"aliases"`
}

// Variation scales a feature's figures, e.g. an MVP cut or a hardened build.
type Variation struct {
	Name           string  `mapstructure:"name" yaml:"name"`
	TimeMultiplier float64 `mapstructure:"time_multiplier" yaml:"time_multiplier"`
	CostMultiplier float64 `mapstructure:"cost_multiplier" yaml:"cost_multiplier"`
}

// Snapshot is an immutable view of the catalog at one load generation.
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Features   []Feature
	Variations []Variation

	index      map[string]int
	variations map[string]int
}

// NormalizeKey lowercases and collapses whitespace so "User  Login" and
// "user login" hit the same entry.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Lookup resolves a feature by name or alias, case and whitespace insensitive.
func (s Snapshot) Lookup(name string) (Feature, bool) {
	key := NormalizeKey(name)
	if key == "" {
		return Feature{}, false
	}
	if idx, ok := s.index[key]; ok {
		return s.Features[idx], true
	}
	return Feature{}, false
}

// Variation resolves a variation by name, case and whitespace insensitive.
func (s Snapshot) Variation(name string) (Variation, bool) {
	key := NormalizeKey(name)
	if key == "" {
		return Variation{}, false
	}
	if idx, ok := s.variations[key]; ok {
		return s.Variations[idx], true
	}
	return Variation{}, false
}

// Len returns the number of entries in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Features)
}

func buildSnapshot(version int64, features []Feature, variations []Variation) Snapshot {
	snap := Snapshot{
		Version:    version,
		LoadedAt:   time.Now(),
		Features:   make([]Feature, 0, len(features)),
		Variations: make([]Variation, 0, len(variations)),
		index:      make(map[string]int, len(features)),
		variations: make(map[string]int, len(variations)),
	}
	for _, v := range variations {
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			continue
		}
		if v.TimeMultiplier <= 0 {
			v.TimeMultiplier = 1
		}
		if v.CostMultiplier <= 0 {
			v.CostMultiplier = v.TimeMultiplier
		}
		snap.variations[NormalizeKey(v.Name)] = len(snap.Variations)
		snap.Variations = append(snap.Variations, v)
	}
	for _, f := range features {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" || f.BaseTimeHours <= 0 {
			continue
		}
		f.Complexity = normalizeComplexity(f.Complexity)
		idx := len(snap.Features)
		snap.Features = append(snap.Features, f)
		snap.index[NormalizeKey(f.Name)] = idx
		for _, alias := range f.Aliases {
			key := NormalizeKey(alias)
			if key == "" {
				continue
			}
			if _, taken := snap.index[key]; !taken {
				snap.index[key] = idx
			}
		}
	}
	return snap
}

func normalizeComplexity(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "simple", "low":
		return "simple"
	case "complex", "high":
		return "complex"
	default:
		return "medium"
	}
}

// builtinFeatures seed the catalog when no file is configured. Base hours follow
// the reference estimates the knowledge base ships with.
func builtinFeatures() []Feature {
	return []Feature{
		{Name: "User Authentication", BaseTimeHours: 24, Complexity: "medium", Category: "security",
			Aliases: []string{"login", "user login", "authentication", "sign in"}},
		{Name: "User Registration", BaseTimeHours: 16, Complexity: "simple", Category: "security",
			Aliases: []string{"sign up", "signup", "registration"}},
		{Name: "Password Reset", BaseTimeHours: 8, Complexity: "simple", Category: "security",
			Aliases: []string{"forgot password", "password recovery"}},
		{Name: "OAuth Integration", BaseTimeHours: 20, Complexity: "medium", Category: "security",
			Aliases: []string{"social login", "google login", "sso"}},
		{Name: "User Profile", BaseTimeHours: 12, Complexity: "simple", Category: "core",
			Aliases: []string{"profile page", "account settings"}},
		{Name: "Admin Dashboard", BaseTimeHours: 60, Complexity: "complex", Category: "core",
			Aliases: []string{"admin panel", "dashboard", "back office"}},
		{Name: "Search", BaseTimeHours: 30, Complexity: "medium", Category: "core",
			Aliases: []string{"search functionality", "full text search"}},
		{Name: "Payment Integration", BaseTimeHours: 40, Complexity: "complex", Category: "commerce",
			Aliases: []string{"payments", "stripe integration", "checkout"}},
		{Name: "Shopping Cart", BaseTimeHours: 32, Complexity: "medium", Category: "commerce",
			Aliases: []string{"cart", "basket"}},
		{Name: "Product Catalog", BaseTimeHours: 28, Complexity: "medium", Category: "commerce",
			Aliases: []string{"product listing", "product pages"}},
		{Name: "Email Notifications", BaseTimeHours: 12, Complexity: "simple", Category: "messaging",
			Aliases: []string{"email", "transactional email"}},
		{Name: "Push Notifications", BaseTimeHours: 24, Complexity: "medium", Category: "messaging",
			Aliases: []string{"notifications", "mobile push"}},
		{Name: "Real-time Chat", BaseTimeHours: 50, Complexity: "complex", Category: "messaging",
			Aliases: []string{"chat", "messaging", "live chat"}},
		{Name: "File Upload", BaseTimeHours: 14, Complexity: "simple", Category: "core",
			Aliases: []string{"uploads", "attachments", "image upload"}},
		{Name: "Reporting", BaseTimeHours: 36, Complexity: "medium", Category: "analytics",
			Aliases: []string{"reports", "analytics dashboard", "export"}},
		{Name: "REST API", BaseTimeHours: 40, Complexity: "medium", Category: "platform",
			Aliases: []string{"api", "public api", "api endpoints"}},
		{Name: "Third-party Integration", BaseTimeHours: 24, Complexity: "medium", Category: "platform",
			Aliases: []string{"external integration", "webhook integration"}},
		{Name: "Role-based Access Control", BaseTimeHours: 28, Complexity: "medium", Category: "security",
			Aliases: []string{"rbac", "permissions", "user roles"}},
		{Name: "Multi-language Support", BaseTimeHours: 20, Complexity: "medium", Category: "platform",
			Aliases: []string{"i18n", "localization", "internationalization"}},
		{Name: "Mobile Responsive UI", BaseTimeHours: 24, Complexity: "medium", Category: "frontend",
			Aliases: []string{"responsive design", "mobile layout"}},
	}
}

func builtinVariations() []Variation {
	return []Variation{
		{Name: "mvp", TimeMultiplier: 0.6, CostMultiplier: 0.6},
		{Name: "hardened", TimeMultiplier: 1.3, CostMultiplier: 1.3},
		{Name: "rush", TimeMultiplier: 1.0, CostMultiplier: 1.25},
	}
}
