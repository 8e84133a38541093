package server

import (
	"context"
	"testing"
	"time"

	"github.com/inkforge/boardsync/internal/presence"
)

type storeClock struct {
	now time.Time
}

func (c *storeClock) advance(delta time.Duration) {
	c.now = c.now.Add(delta)
}

func newStoreClock() *storeClock {
	return &storeClock{now: time.Unix(1700000000, 0)}
}

func storeCursor(x, y float64, at time.Time) presence.Cursor {
	return presence.Cursor{X: x, Y: y, Name: "Ada", Color: "#ff0000", Timestamp: at}
}

func TestCursorStoreRoundTrip(testContext *testing.T) {
	clock := newStoreClock()
	store := NewMemoryCursorStore(func() time.Time { return clock.now })
	ctx := context.Background()

	if err := store.Set(ctx, "canvas-1", "user-1", storeCursor(10, 20, clock.now)); err != nil {
		testContext.Fatalf("set failed: %v", err)
	}

	cursors, err := store.All(ctx, "canvas-1")
	if err != nil {
		testContext.Fatalf("all failed: %v", err)
	}
	cursor, ok := cursors["user-1"]
	if !ok {
		testContext.Fatalf("expected cursor for user-1, got %v", cursors)
	}
	if cursor.X != 10 || cursor.Y != 20 {
		testContext.Fatalf("unexpected cursor position: %+v", cursor)
	}
}

func TestCursorStoreEvictsExpiredEntries(testContext *testing.T) {
	clock := newStoreClock()
	store := NewMemoryCursorStore(func() time.Time { return clock.now })
	ctx := context.Background()

	mustSetCursor(testContext, store, "canvas-1", "user-1", storeCursor(1, 1, clock.now))
	clock.advance(cursorTTL + time.Second)

	cursors, err := store.All(ctx, "canvas-1")
	if err != nil {
		testContext.Fatalf("all failed: %v", err)
	}
	if len(cursors) != 0 {
		testContext.Fatalf("expected expired cursor evicted, got %v", cursors)
	}
}

func TestTouchExtendsExpiryAndBumpsTimestamp(testContext *testing.T) {
	clock := newStoreClock()
	store := NewMemoryCursorStore(func() time.Time { return clock.now })
	ctx := context.Background()

	seeded := clock.now
	mustSetCursor(testContext, store, "canvas-1", "user-1", storeCursor(1, 1, seeded))

	clock.advance(cursorTTL - time.Second)
	if err := store.Touch(ctx, "canvas-1", "user-1"); err != nil {
		testContext.Fatalf("touch failed: %v", err)
	}

	// Well past the original expiry, but inside the refreshed one.
	clock.advance(2 * time.Second)
	cursors, err := store.All(ctx, "canvas-1")
	if err != nil {
		testContext.Fatalf("all failed: %v", err)
	}
	cursor, ok := cursors["user-1"]
	if !ok {
		testContext.Fatalf("expected touched cursor to survive, got %v", cursors)
	}
	if !cursor.Timestamp.After(seeded) {
		testContext.Fatalf("expected touch to bump timestamp past %v, got %v", seeded, cursor.Timestamp)
	}
	if cursor.X != 1 || cursor.Y != 1 {
		testContext.Fatalf("touch must not move the cursor: %+v", cursor)
	}
}

func TestTouchUnknownUserIsNoOp(testContext *testing.T) {
	store := NewMemoryCursorStore(nil)
	if err := store.Touch(context.Background(), "canvas-1", "user-missing"); err != nil {
		testContext.Fatalf("touch failed: %v", err)
	}
}

func TestDeleteRemovesCursor(testContext *testing.T) {
	clock := newStoreClock()
	store := NewMemoryCursorStore(func() time.Time { return clock.now })
	ctx := context.Background()

	mustSetCursor(testContext, store, "canvas-1", "user-1", storeCursor(1, 1, clock.now))
	if err := store.Delete(ctx, "canvas-1", "user-1"); err != nil {
		testContext.Fatalf("delete failed: %v", err)
	}

	cursors, err := store.All(ctx, "canvas-1")
	if err != nil {
		testContext.Fatalf("all failed: %v", err)
	}
	if len(cursors) != 0 {
		testContext.Fatalf("expected empty canvas, got %v", cursors)
	}
}

func TestCanvasesAreIsolated(testContext *testing.T) {
	clock := newStoreClock()
	store := NewMemoryCursorStore(func() time.Time { return clock.now })
	ctx := context.Background()

	mustSetCursor(testContext, store, "canvas-1", "user-1", storeCursor(1, 1, clock.now))
	mustSetCursor(testContext, store, "canvas-2", "user-2", storeCursor(2, 2, clock.now))

	cursors, err := store.All(ctx, "canvas-1")
	if err != nil {
		testContext.Fatalf("all failed: %v", err)
	}
	if len(cursors) != 1 {
		testContext.Fatalf("expected one cursor on canvas-1, got %v", cursors)
	}
	if _, ok := cursors["user-2"]; ok {
		testContext.Fatalf("cursor leaked across canvases: %v", cursors)
	}
}

func mustSetCursor(testContext *testing.T, store *MemoryCursorStore, canvasID, userID string, cursor presence.Cursor) {
	testContext.Helper()
	if err := store.Set(context.Background(), canvasID, userID, cursor); err != nil {
		testContext.Fatalf("set cursor: %v", err)
	}
}
