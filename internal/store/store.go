// Package store persists the audit trail of served estimates in SQLite so past
// quotes can be reviewed and replayed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"estimator/internal/estimate"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound marks a lookup miss.
var ErrNotFound = errors.New("estimate record not found")

// EstimateRecord is one served estimate.
type EstimateRecord struct {
	ID             uint           `gorm:"primaryKey" json:"-"`
	RequestID      string         `gorm:"uniqueIndex;size:64" json:"request_id"`
	Source         string         `gorm:"size:16" json:"source"`
	Input          string         `json:"input"`
	Features       datatypes.JSON `json:"features"`
	Summary        datatypes.JSON `json:"summary"`
	TotalTimeHours float64        `json:"total_time_hours"`
	TotalCost      float64        `json:"total_cost"`
	CreatedAt      time.Time      `json:"created_at"`
}

// EstimateStore is the audit log backed by Gorm + SQLite.
type EstimateStore struct {
	db *gorm.DB
}

// NewEstimateStore opens (and migrates) the SQLite database at path.
func NewEstimateStore(path string) (*EstimateStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("estimate store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&EstimateRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads without
	// piling up lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &EstimateStore{db: db}, nil
}

// Close closes the underlying connection.
func (s *EstimateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append records one served estimate.
func (s *EstimateStore) Append(ctx context.Context, requestID, source, input string, sum *estimate.Summary) error {
	features, err := json.Marshal(sum.Features)
	if err != nil {
		return err
	}
	summary, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	rec := EstimateRecord{
		RequestID:      requestID,
		Source:         source,
		Input:          input,
		Features:       features,
		Summary:        summary,
		TotalTimeHours: sum.TotalTimeHours,
		TotalCost:      sum.TotalCost,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// List returns the most recent records, newest first.
func (s *EstimateStore) List(ctx context.Context, limit int) ([]EstimateRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []EstimateRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Get looks up one record by request id.
func (s *EstimateStore) Get(ctx context.Context, requestID string) (*EstimateRecord, error) {
	var rec EstimateRecord
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
