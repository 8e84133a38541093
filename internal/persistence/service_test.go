package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/inkforge/boardsync/internal/scene"
	"gorm.io/gorm"
)

func newTestService(testContext *testing.T) *Service {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "snapshots.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&BoardSnapshot{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service
}

func testScene() *scene.Scene {
	return &scene.Scene{
		Objects: []*scene.CanvasObject{{
			ID: "obj-1", Type: scene.ObjectTypeSticky,
			X: 10, Y: 20, Width: 100, Height: 100, ZIndex: 1,
			Text: "hello",
		}},
		Connectors: []*scene.Connector{{
			ID:          "conn-1",
			StartAnchor: &scene.Anchor{ObjectID: "obj-1", Position: scene.AnchorRight},
			EndX:        400, EndY: 70, ZIndex: 2,
		}},
	}
}

func TestSaveThenLoadRoundTripsScene(testContext *testing.T) {
	service := newTestService(testContext)
	ctx := context.Background()

	if err := service.Save(ctx, scene.CanvasID("canvas-1"), testScene(), scene.UserID("user-1")); err != nil {
		testContext.Fatalf("failed to save: %v", err)
	}

	loaded, err := service.Load(ctx, scene.CanvasID("canvas-1"))
	if err != nil {
		testContext.Fatalf("failed to load: %v", err)
	}
	if len(loaded.Objects) != 1 || loaded.Objects[0].Text != "hello" {
		testContext.Fatalf("unexpected loaded objects: %+v", loaded.Objects)
	}
	if len(loaded.Connectors) != 1 || loaded.Connectors[0].StartAnchor == nil {
		testContext.Fatalf("expected anchor to survive the round trip: %+v", loaded.Connectors)
	}
	if loaded.Connectors[0].StartAnchor.ObjectID != "obj-1" {
		testContext.Fatalf("unexpected anchor target: %q", loaded.Connectors[0].StartAnchor.ObjectID)
	}
}

func TestSaveReplacesPreviousSnapshot(testContext *testing.T) {
	service := newTestService(testContext)
	ctx := context.Background()

	if err := service.Save(ctx, scene.CanvasID("canvas-1"), testScene(), scene.UserID("user-1")); err != nil {
		testContext.Fatalf("failed first save: %v", err)
	}
	if err := service.Save(ctx, scene.CanvasID("canvas-1"), &scene.Scene{}, scene.UserID("user-2")); err != nil {
		testContext.Fatalf("failed second save: %v", err)
	}

	loaded, err := service.Load(ctx, scene.CanvasID("canvas-1"))
	if err != nil {
		testContext.Fatalf("failed to load: %v", err)
	}
	if len(loaded.Objects) != 0 {
		testContext.Fatalf("expected second save to replace the first, got %d objects", len(loaded.Objects))
	}
}

func TestLoadMissingCanvasReportsNotFound(testContext *testing.T) {
	service := newTestService(testContext)

	_, err := service.Load(context.Background(), scene.CanvasID("canvas-empty"))
	if !errors.Is(err, ErrSnapshotNotFound) {
		testContext.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if !service.NotFound(err) {
		testContext.Fatalf("expected NotFound to recognize the error")
	}
}

func TestSaveNilSceneStoresEmptyScene(testContext *testing.T) {
	service := newTestService(testContext)
	ctx := context.Background()

	if err := service.Save(ctx, scene.CanvasID("canvas-1"), nil, scene.UserID("user-1")); err != nil {
		testContext.Fatalf("failed to save nil scene: %v", err)
	}
	loaded, err := service.Load(ctx, scene.CanvasID("canvas-1"))
	if err != nil {
		testContext.Fatalf("failed to load: %v", err)
	}
	if len(loaded.Objects) != 0 || len(loaded.Strokes) != 0 || len(loaded.Connectors) != 0 {
		testContext.Fatalf("expected empty scene, got %+v", loaded)
	}
}
