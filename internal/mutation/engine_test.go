package mutation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/inkforge/boardsync/internal/scene"
)

type capturingTransport struct {
	events []Event
	err    error
}

func (t *capturingTransport) Publish(event Event) error {
	if t.err != nil {
		return t.err
	}
	t.events = append(t.events, event)
	return nil
}

type recordingListener struct {
	removed []string
	merged  []string
	joined  []string
	left    []string
}

func (l *recordingListener) EntityRemoved(entityID string) {
	l.removed = append(l.removed, entityID)
}

func (l *recordingListener) ConnectorMerged(connector *scene.Connector) {
	l.merged = append(l.merged, connector.ID)
}

func (l *recordingListener) PeerJoined(userID, userName string) {
	l.joined = append(l.joined, userID)
}

func (l *recordingListener) PeerLeft(userID string) {
	l.left = append(l.left, userID)
}

func newTestEngine(testContext *testing.T, transport Transport, listener Listener) (*Engine, *scene.Store) {
	testContext.Helper()
	store := scene.NewStore(nil)
	engine, err := NewEngine(Config{
		Store:     store,
		Transport: transport,
		CanvasID:  scene.CanvasID("canvas-1"),
		UserID:    scene.UserID("user-local"),
		UserName:  "Local",
		Listener:  listener,
	})
	if err != nil {
		testContext.Fatalf("failed to build engine: %v", err)
	}
	return engine, store
}

func remoteEvent(testContext *testing.T, eventType EventType, payload any) Event {
	testContext.Helper()
	encoded, err := json.Marshal(payload)
	if err != nil {
		testContext.Fatalf("failed to encode payload: %v", err)
	}
	return Event{
		Type:     eventType,
		Payload:  encoded,
		CanvasID: "canvas-1",
		UserID:   "user-remote",
		UserName: "Remote",
	}
}

func remoteObject(id string, x, y float64) *scene.CanvasObject {
	return &scene.CanvasObject{
		ID: id, Type: scene.ObjectTypeSticky,
		X: x, Y: y, Width: 100, Height: 100, ZIndex: 1,
	}
}

func TestHandleDiscardsOwnEcho(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)

	event := remoteEvent(testContext, EventObjectAdd, ObjectAddPayload{Object: remoteObject("obj-1", 0, 0)})
	event.UserID = "user-local"
	engine.Handle(event)

	if len(store.Objects()) != 0 {
		testContext.Fatalf("expected own echo to be discarded")
	}
}

func TestHandleDiscardsForeignCanvas(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)

	event := remoteEvent(testContext, EventObjectAdd, ObjectAddPayload{Object: remoteObject("obj-1", 0, 0)})
	event.CanvasID = "canvas-other"
	engine.Handle(event)

	if len(store.Objects()) != 0 {
		testContext.Fatalf("expected foreign-canvas event to be discarded")
	}
}

func TestHandleObjectAddIsIdempotent(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)

	event := remoteEvent(testContext, EventObjectAdd, ObjectAddPayload{Object: remoteObject("obj-1", 10, 10)})
	engine.Handle(event)
	engine.Handle(event)

	if count := len(store.Objects()); count != 1 {
		testContext.Fatalf("expected exactly one object after duplicate delivery, got %d", count)
	}
}

func TestHandleObjectDeleteOfMissingObjectIsNoOp(testContext *testing.T) {
	listener := &recordingListener{}
	engine, _ := newTestEngine(testContext, &capturingTransport{}, listener)

	engine.Handle(remoteEvent(testContext, EventObjectDelete, ObjectDeletePayload{ObjectID: "ghost"}))

	if len(listener.removed) != 0 {
		testContext.Fatalf("expected no removal notifications, got %v", listener.removed)
	}
}

func TestHandleObjectDeleteNotifiesCascadedConnectors(testContext *testing.T) {
	listener := &recordingListener{}
	engine, store := newTestEngine(testContext, &capturingTransport{}, listener)

	store.AddObject(remoteObject("obj-1", 0, 0))
	store.AddConnector(&scene.Connector{
		ID:          "conn-1",
		StartAnchor: &scene.Anchor{ObjectID: "obj-1", Position: scene.AnchorRight},
		ZIndex:      2,
	})

	engine.Handle(remoteEvent(testContext, EventObjectDelete, ObjectDeletePayload{ObjectID: "obj-1"}))

	if len(listener.removed) != 2 {
		testContext.Fatalf("expected object and cascaded connector notifications, got %v", listener.removed)
	}
}

func TestHandleObjectMoveMergesFieldSubset(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)
	object := remoteObject("obj-1", 0, 0)
	object.Text = "keep me"
	store.AddObject(object)

	x, y := 40.0, 60.0
	engine.Handle(remoteEvent(testContext, EventObjectMove, ObjectUpdatePayload{
		ObjectID: "obj-1",
		Patch:    scene.ObjectPatch{X: &x, Y: &y},
	}))

	merged, _ := store.Object("obj-1")
	if merged.X != 40 || merged.Y != 60 {
		testContext.Fatalf("expected position merge, got (%v, %v)", merged.X, merged.Y)
	}
	if merged.Text != "keep me" {
		testContext.Fatalf("expected unmentioned fields untouched, got %q", merged.Text)
	}
}

func TestHandleMalformedPayloadIsDropped(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)
	store.AddObject(remoteObject("obj-1", 0, 0))

	engine.Handle(Event{
		Type:     EventObjectMove,
		Payload:  json.RawMessage(`{"objectId": 42`),
		CanvasID: "canvas-1",
		UserID:   "user-remote",
	})

	object, _ := store.Object("obj-1")
	if object.X != 0 || object.Y != 0 {
		testContext.Fatalf("expected malformed event to leave store untouched")
	}
}

func TestHandleConnectorUpdateNotifiesListener(testContext *testing.T) {
	listener := &recordingListener{}
	engine, store := newTestEngine(testContext, &capturingTransport{}, listener)
	store.AddConnector(&scene.Connector{ID: "conn-1", EndX: 10, ZIndex: 1})

	endX := 99.0
	engine.Handle(remoteEvent(testContext, EventConnectorUpdate, ConnectorUpdatePayload{
		ConnectorID: "conn-1",
		Patch:       scene.ConnectorPatch{EndX: &endX},
	}))

	if len(listener.merged) != 1 || listener.merged[0] != "conn-1" {
		testContext.Fatalf("expected merge notification for conn-1, got %v", listener.merged)
	}
	connector, _ := store.Connector("conn-1")
	if connector.EndX != 99 {
		testContext.Fatalf("expected merged end x 99, got %v", connector.EndX)
	}
}

func TestHandleLayerEventSetsAbsoluteZIndex(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)
	store.AddObject(remoteObject("obj-1", 0, 0))

	engine.Handle(remoteEvent(testContext, EventObjectLayer, LayerPayload{EntityID: "obj-1", ZIndex: 12}))

	object, _ := store.Object("obj-1")
	if object.ZIndex != 12 {
		testContext.Fatalf("expected z 12, got %d", object.ZIndex)
	}
}

func TestHandleUserJoinReachesListener(testContext *testing.T) {
	listener := &recordingListener{}
	engine, _ := newTestEngine(testContext, &capturingTransport{}, listener)

	engine.Handle(remoteEvent(testContext, EventUserJoin, struct{}{}))
	engine.Handle(remoteEvent(testContext, EventUserLeave, struct{}{}))

	if len(listener.joined) != 1 || listener.joined[0] != "user-remote" {
		testContext.Fatalf("expected join notification, got %v", listener.joined)
	}
	if len(listener.left) != 1 {
		testContext.Fatalf("expected leave notification, got %v", listener.left)
	}
}

func TestPublishFailureDoesNotRollBack(testContext *testing.T) {
	transport := &capturingTransport{err: errors.New("broker down")}
	engine, store := newTestEngine(testContext, transport, nil)

	object := remoteObject("obj-1", 0, 0)
	store.AddObject(object)
	engine.PublishObjectAdd(object)

	if len(store.Objects()) != 1 {
		testContext.Fatalf("expected local state to survive publish failure")
	}
}

func TestPublishStampsEnvelope(testContext *testing.T) {
	transport := &capturingTransport{}
	engine, _ := newTestEngine(testContext, transport, nil)

	engine.PublishObjectDelete("obj-1")

	if len(transport.events) != 1 {
		testContext.Fatalf("expected one published event, got %d", len(transport.events))
	}
	event := transport.events[0]
	if event.CanvasID != "canvas-1" || event.UserID != "user-local" || event.UserName != "Local" {
		testContext.Fatalf("unexpected envelope: %+v", event)
	}
	if event.Type != EventObjectDelete {
		testContext.Fatalf("expected object_delete, got %q", event.Type)
	}
}

func TestHandleRawDropsMalformedEnvelope(testContext *testing.T) {
	engine, store := newTestEngine(testContext, &capturingTransport{}, nil)

	engine.HandleRaw([]byte(`not json at all`))

	if len(store.Objects()) != 0 {
		testContext.Fatalf("expected malformed envelope to be dropped")
	}
}
