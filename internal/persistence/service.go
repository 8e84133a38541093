// Package persistence stores and loads whole-scene snapshots keyed by
// canvas id. The scene is serialized as one JSON payload per canvas.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opSave = "snapshot.save"
	opLoad = "snapshot.load"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	// ErrSnapshotNotFound indicates no snapshot has been saved for the
	// canvas yet. Callers treat this as an empty canvas.
	ErrSnapshotNotFound = errors.New("persistence: snapshot not found")
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

// ServiceConfig carries the snapshot service dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service reads and writes full-scene snapshots.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the snapshot service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError("snapshot.service.new", "missing_database", errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Save replaces the canvas's snapshot with the given scene. Unlike mutation
// publishing, persistence failures are returned to the caller.
func (s *Service) Save(ctx context.Context, canvasID scene.CanvasID, snapshot *scene.Scene, savedBy scene.UserID) error {
	if snapshot == nil {
		snapshot = &scene.Scene{}
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return newServiceError(opSave, "encode_failed", err)
	}
	row := BoardSnapshot{
		CanvasID:    canvasID.String(),
		PayloadJSON: string(payload),
		SavedBy:     savedBy.String(),
		UpdatedAtS:  s.clock().UTC().Unix(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canvas_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		s.logger.Error("snapshot save failed",
			zap.String("operation", opSave),
			zap.String("canvas_id", canvasID.String()),
			zap.Error(err))
		return newServiceError(opSave, "write_failed", err)
	}
	return nil
}

// Load returns the canvas's saved scene, or ErrSnapshotNotFound when no
// save has happened yet.
func (s *Service) Load(ctx context.Context, canvasID scene.CanvasID) (*scene.Scene, error) {
	var row BoardSnapshot
	err := s.db.WithContext(ctx).
		Where("canvas_id = ?", canvasID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, canvasID.String())
	}
	if err != nil {
		s.logger.Error("snapshot load failed",
			zap.String("operation", opLoad),
			zap.String("canvas_id", canvasID.String()),
			zap.Error(err))
		return nil, newServiceError(opLoad, "query_failed", err)
	}
	var snapshot scene.Scene
	if err := json.Unmarshal([]byte(row.PayloadJSON), &snapshot); err != nil {
		return nil, newServiceError(opLoad, "decode_failed", err)
	}
	return &snapshot, nil
}

// NotFound reports whether err means the canvas has no snapshot.
func (s *Service) NotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound)
}
