package server

import (
	"context"
	"sync"
	"time"

	"github.com/inkforge/boardsync/internal/presence"
)

// cursorTTL is the server-side eviction window for cursor entries. Clients
// apply a tighter staleness cutoff for display; this TTL only bounds memory
// for users who vanish without a leave.
const cursorTTL = 300 * time.Second

// MemoryCursorStore is an in-process presence.CursorStore with per-entry
// expiry, keyed by canvas id then user id.
type MemoryCursorStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	cursors map[string]map[string]cursorEntry
}

type cursorEntry struct {
	cursor    presence.Cursor
	expiresAt time.Time
}

// NewMemoryCursorStore constructs an empty store. A nil clock defaults to
// time.Now.
func NewMemoryCursorStore(clock func() time.Time) *MemoryCursorStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCursorStore{
		clock:   clock,
		cursors: make(map[string]map[string]cursorEntry),
	}
}

// Set stores the cursor and resets its expiry.
func (s *MemoryCursorStore) Set(ctx context.Context, canvasID, userID string, cursor presence.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	canvas, ok := s.cursors[canvasID]
	if !ok {
		canvas = make(map[string]cursorEntry)
		s.cursors[canvasID] = canvas
	}
	canvas[userID] = cursorEntry{cursor: cursor, expiresAt: s.clock().Add(cursorTTL)}
	return nil
}

// All returns the live cursors on a canvas, evicting expired entries.
func (s *MemoryCursorStore) All(ctx context.Context, canvasID string) (map[string]presence.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	canvas := s.cursors[canvasID]
	result := make(map[string]presence.Cursor, len(canvas))
	for userID, entry := range canvas {
		if now.After(entry.expiresAt) {
			delete(canvas, userID)
			continue
		}
		result[userID] = entry.cursor
	}
	if len(canvas) == 0 {
		delete(s.cursors, canvasID)
	}
	return result, nil
}

// Delete removes one user's cursor.
func (s *MemoryCursorStore) Delete(ctx context.Context, canvasID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	canvas := s.cursors[canvasID]
	if canvas != nil {
		delete(canvas, userID)
		if len(canvas) == 0 {
			delete(s.cursors, canvasID)
		}
	}
	return nil
}

// Touch refreshes the entry's expiry and liveness timestamp without moving
// the cursor. Idle users stay visible to peers through this.
func (s *MemoryCursorStore) Touch(ctx context.Context, canvasID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	canvas := s.cursors[canvasID]
	if canvas == nil {
		return nil
	}
	entry, ok := canvas[userID]
	if !ok {
		return nil
	}
	now := s.clock()
	entry.cursor.Timestamp = now
	entry.expiresAt = now.Add(cursorTTL)
	canvas[userID] = entry
	return nil
}
