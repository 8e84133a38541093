package board

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inkforge/boardsync/internal/mutation"
	"github.com/inkforge/boardsync/internal/presence"
	"github.com/inkforge/boardsync/internal/scene"
)

var errNoSnapshot = errors.New("no snapshot")

type fakeSnapshotStore struct {
	mu        sync.Mutex
	scenes    map[scene.CanvasID]*scene.Scene
	saves     int
	loadError error
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{scenes: make(map[scene.CanvasID]*scene.Scene)}
}

func (f *fakeSnapshotStore) Save(ctx context.Context, canvasID scene.CanvasID, snapshot *scene.Scene, savedBy scene.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenes[canvasID] = snapshot
	f.saves++
	return nil
}

func (f *fakeSnapshotStore) Load(ctx context.Context, canvasID scene.CanvasID) (*scene.Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadError != nil {
		return nil, f.loadError
	}
	snapshot, ok := f.scenes[canvasID]
	if !ok {
		return nil, errNoSnapshot
	}
	return snapshot, nil
}

func (f *fakeSnapshotStore) NotFound(err error) bool {
	return errors.Is(err, errNoSnapshot)
}

func (f *fakeSnapshotStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeTransport struct {
	mu       sync.Mutex
	events   []mutation.Event
	inbound  chan mutation.Event
	canceled bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan mutation.Event, 16)}
}

func (f *fakeTransport) Publish(event mutation.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, canvasID string) (<-chan mutation.Event, func()) {
	return f.inbound, func() {
		f.mu.Lock()
		f.canceled = true
		f.mu.Unlock()
	}
}

func (f *fakeTransport) published() []mutation.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mutation.Event(nil), f.events...)
}

type fakePresenceStore struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakePresenceStore) Set(ctx context.Context, canvasID, userID string, cursor presence.Cursor) error {
	return nil
}

func (f *fakePresenceStore) All(ctx context.Context, canvasID string) (map[string]presence.Cursor, error) {
	return map[string]presence.Cursor{}, nil
}

func (f *fakePresenceStore) Delete(ctx context.Context, canvasID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakePresenceStore) Touch(ctx context.Context, canvasID, userID string) error {
	return nil
}

type sessionRig struct {
	session   *Session
	snapshots *fakeSnapshotStore
	transport *fakeTransport
	cursors   *fakePresenceStore
}

func newSessionRig(testContext *testing.T) *sessionRig {
	testContext.Helper()
	snapshots := newFakeSnapshotStore()
	transport := newFakeTransport()
	cursors := &fakePresenceStore{}
	session, err := NewSession(Config{
		CanvasID:  "canvas-1",
		UserID:    "user-local",
		UserName:  "Local",
		Transport: transport,
		Snapshots: snapshots,
		Cursors:   cursors,
	})
	if err != nil {
		testContext.Fatalf("new session: %v", err)
	}
	return &sessionRig{session: session, snapshots: snapshots, transport: transport, cursors: cursors}
}

func waitUntil(testContext *testing.T, description string, condition func() bool) {
	testContext.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	testContext.Fatalf("timed out waiting for %s", description)
}

func TestNewSessionRequiresCollaborators(testContext *testing.T) {
	_, err := NewSession(Config{Snapshots: newFakeSnapshotStore(), Cursors: &fakePresenceStore{}})
	if err == nil {
		testContext.Fatalf("expected error for missing transport")
	}
	_, err = NewSession(Config{Transport: newFakeTransport(), Cursors: &fakePresenceStore{}})
	if err == nil {
		testContext.Fatalf("expected error for missing snapshot store")
	}
	_, err = NewSession(Config{Transport: newFakeTransport(), Snapshots: newFakeSnapshotStore()})
	if err == nil {
		testContext.Fatalf("expected error for missing cursor store")
	}
}

func TestJoinMissingSnapshotStartsEmpty(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)

	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}
	if rig.session.LoadFailed() {
		testContext.Fatalf("missing snapshot must not mark the session failed")
	}
	if count := len(rig.session.Store().Objects()); count != 0 {
		testContext.Fatalf("expected empty scene, got %d objects", count)
	}

	events := rig.transport.published()
	if len(events) != 1 || events[0].Type != mutation.EventUserJoin {
		testContext.Fatalf("expected a join announcement, got %v", events)
	}
}

func TestJoinLoadsExistingSnapshot(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	rig.snapshots.scenes["canvas-1"] = &scene.Scene{
		Objects: []*scene.CanvasObject{{ID: "obj-1", Type: scene.ObjectTypeRectangle, Width: 100, Height: 60, ZIndex: 1}},
	}

	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}
	if _, ok := rig.session.Store().Object("obj-1"); !ok {
		testContext.Fatalf("expected loaded object in store")
	}
}

func TestJoinLoadFailureIsStickyUntilRetry(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	rig.snapshots.loadError = errors.New("storage offline")

	if err := rig.session.Join(ctx); err == nil {
		testContext.Fatalf("expected join to surface the load failure")
	}
	if !rig.session.LoadFailed() {
		testContext.Fatalf("expected sticky failure state")
	}
	if events := rig.transport.published(); len(events) != 0 {
		testContext.Fatalf("failed join must not announce the user, got %v", events)
	}

	rig.snapshots.loadError = nil
	if err := rig.session.RetryLoad(ctx); err != nil {
		testContext.Fatalf("retry failed: %v", err)
	}
	if rig.session.LoadFailed() {
		testContext.Fatalf("expected failure state cleared after retry")
	}
}

func TestInboundEventsReachTheStore(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}

	payload, err := json.Marshal(mutation.ObjectAddPayload{
		Object: &scene.CanvasObject{ID: "obj-remote", Type: scene.ObjectTypeCircle, Width: 80, Height: 80, ZIndex: 1},
	})
	if err != nil {
		testContext.Fatalf("marshal payload: %v", err)
	}
	rig.transport.inbound <- mutation.Event{
		Type:     mutation.EventObjectAdd,
		Payload:  payload,
		CanvasID: "canvas-1",
		UserID:   "user-remote",
	}

	waitUntil(testContext, "remote object to merge", func() bool {
		_, ok := rig.session.Store().Object("obj-remote")
		return ok
	})
}

func TestPeerJoinSavesCurrentScene(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}

	if _, err := rig.session.Controller().AddObject(scene.ObjectTypeRectangle, 0, 0, 100, 60); err != nil {
		testContext.Fatalf("add object: %v", err)
	}

	rig.transport.inbound <- mutation.Event{
		Type:     mutation.EventUserJoin,
		Payload:  json.RawMessage(`{"userId":"user-peer","userName":"Peer"}`),
		CanvasID: "canvas-1",
		UserID:   "user-peer",
	}

	waitUntil(testContext, "courtesy save", func() bool {
		return rig.snapshots.saveCount() == 1
	})
	saved := rig.snapshots.scenes["canvas-1"]
	if saved == nil || len(saved.Objects) != 1 {
		testContext.Fatalf("expected full scene saved, got %+v", saved)
	}
}

func TestLeaveAnnouncesAndClearsCursor(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}

	rig.session.Leave(ctx)

	events := rig.transport.published()
	last := events[len(events)-1]
	if last.Type != mutation.EventUserLeave {
		testContext.Fatalf("expected leave announcement, got %v", last)
	}
	rig.cursors.mu.Lock()
	deleted := append([]string(nil), rig.cursors.deleted...)
	rig.cursors.mu.Unlock()
	if len(deleted) != 1 || deleted[0] != "user-local" {
		testContext.Fatalf("expected cursor removal for user-local, got %v", deleted)
	}
}

func TestSavePersistsDetachedSnapshot(testContext *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rig := newSessionRig(testContext)
	if err := rig.session.Join(ctx); err != nil {
		testContext.Fatalf("join failed: %v", err)
	}
	if _, err := rig.session.Controller().AddObject(scene.ObjectTypeRectangle, 10, 10, 100, 60); err != nil {
		testContext.Fatalf("add object: %v", err)
	}

	if err := rig.session.Save(ctx); err != nil {
		testContext.Fatalf("save failed: %v", err)
	}
	saved := rig.snapshots.scenes["canvas-1"]
	if saved == nil || len(saved.Objects) != 1 {
		testContext.Fatalf("expected saved scene with one object, got %+v", saved)
	}
}
