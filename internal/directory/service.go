// Package directory is the read-only record/activity lookup collaborator:
// typed summaries for external records, consumed when inserting record and
// activity cards onto a canvas.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opGet    = "directory.get"
	opSearch = "directory.search"

	maxSearchResults = 25
)

var (
	errMissingDatabase = errors.New("database handle is required")
	// ErrNotFound indicates no entry exists for the id and kind.
	ErrNotFound = errors.New("directory: entry not found")
)

// ServiceError carries an operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason error code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig carries the lookup service dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service resolves record and activity summaries.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the lookup service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError("directory.service.new", "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// Get returns the summary for one entry.
func (s *Service) Get(ctx context.Context, kind EntryKind, entryID string) (Summary, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("entry_id = ? AND kind = ?", entryID, kind).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Summary{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, entryID)
	}
	if err != nil {
		s.logger.Error("directory lookup failed",
			zap.String("operation", opGet),
			zap.String("entry_id", entryID),
			zap.Error(err))
		return Summary{}, newServiceError(opGet, "query_failed", err)
	}
	return summaryOf(entry), nil
}

// Search returns summaries whose display name contains the query,
// case-insensitive, capped at a fixed result count. An empty query lists
// the first entries of the kind.
func (s *Service) Search(ctx context.Context, kind EntryKind, query string) ([]Summary, error) {
	tx := s.db.WithContext(ctx).Where("kind = ?", kind)
	trimmed := strings.TrimSpace(query)
	if trimmed != "" {
		tx = tx.Where("LOWER(display_name) LIKE ?", "%"+strings.ToLower(trimmed)+"%")
	}
	var entries []Entry
	if err := tx.Order("display_name ASC").Limit(maxSearchResults).Find(&entries).Error; err != nil {
		s.logger.Error("directory search failed",
			zap.String("operation", opSearch),
			zap.String("query", trimmed),
			zap.Error(err))
		return nil, newServiceError(opSearch, "query_failed", err)
	}
	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, summaryOf(entry))
	}
	return summaries, nil
}

// Put inserts or updates an entry. Exposed for seeding and tests; the
// canvas side only ever reads.
func (s *Service) Put(ctx context.Context, entry Entry) error {
	return s.db.WithContext(ctx).Save(&entry).Error
}

func summaryOf(entry Entry) Summary {
	return Summary{
		ID:          entry.EntryID,
		DisplayName: entry.DisplayName,
		Subtitle:    entry.Subtitle,
		Icon:        entry.Icon,
	}
}
