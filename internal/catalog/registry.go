package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"estimator/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileConfig maps the YAML catalog file.
type FileConfig struct {
	Features   []Feature   `mapstructure:"features" yaml:"features"`
	Variations []Variation `mapstructure:"variations" yaml:"variations"`
}

// ChangeListener fires after a successful reload.
type ChangeListener func(Snapshot)

// Registry serves catalog snapshots and, when backed by a file, reloads on change.
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry builds a registry from path. An empty path yields the built-in
// catalog with no file watching.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: strings.TrimSpace(path)}
	if r.path == "" {
		r.snapshot = buildSnapshot(1, builtinFeatures(), builtinVariations())
		logger.Infof("Feature catalog using %d built-in entries", r.snapshot.Len())
		return r, nil
	}
	v := viper.New()
	v.SetConfigFile(r.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog config failed: %w", err)
	}
	r.v = v
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("catalog reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current catalog view.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Lookup resolves a feature against the current snapshot.
func (r *Registry) Lookup(name string) (Feature, bool) {
	return r.Snapshot().Lookup(name)
}

// Variation resolves a variation against the current snapshot.
func (r *Registry) Variation(name string) (Variation, bool) {
	return r.Snapshot().Variation(name)
}

// OnChange registers a listener for reloads.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) reload() error {
	cfg, err := readCatalogFile(r.path)
	if err != nil {
		return err
	}
	features := cfg.Features
	if len(features) == 0 {
		features = builtinFeatures()
	}
	variations := cfg.Variations
	if len(variations) == 0 {
		variations = builtinVariations()
	}
	r.mu.Lock()
	r.snapshot = buildSnapshot(r.snapshot.Version+1, features, variations)
	count := r.snapshot.Len()
	r.mu.Unlock()
	logger.Infof("Feature catalog loaded %d entries from %s", count, filepath.Base(r.path))
	return nil
}

func (r *Registry) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb ChangeListener) {
			defer safeRecover("catalog listener")
			cb(snap)
		}(fn)
	}
}

func safeRecover(tag string) {
	if rec := recover(); rec != nil {
		logger.Errorf("%s panic: %v", tag, rec)
	}
}

func readCatalogFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read catalog config failed: %w", err)
	}
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse catalog config failed: %w", err)
	}
	return cfg, nil
}
