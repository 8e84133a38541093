// Package mutation is the sync engine: it publishes discrete events for
// local scene mutations and merges remote events into the local store.
// Local mutations are always applied first, optimistically; publish failures
// never roll them back. Conflict policy is last-writer-wins at field-merge
// granularity, in transport arrival order.
package mutation

import (
	"encoding/json"
	"errors"

	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

var (
	errMissingStore     = errors.New("mutation: scene store is required")
	errMissingTransport = errors.New("mutation: transport is required")
	errMissingCanvasID  = errors.New("mutation: canvas id is required")
	errMissingUserID    = errors.New("mutation: user id is required")
)

// Transport broadcasts events to every client on a canvas. Delivering the
// publisher's own events back to it is allowed; the engine filters echoes.
type Transport interface {
	Publish(event Event) error
}

// Listener receives notifications about remote merges that touch local UI
// state, so dangling hover/selection references can be cleared.
type Listener interface {
	// EntityRemoved fires after a remote delete lands, for each removed id.
	EntityRemoved(entityID string)
	// ConnectorMerged fires after a remote connector_update lands with the
	// merged result, so a live selection of that connector can be refreshed.
	ConnectorMerged(connector *scene.Connector)
	// PeerJoined fires on a remote user_join.
	PeerJoined(userID, userName string)
	// PeerLeft fires on a remote user_leave.
	PeerLeft(userID string)
}

// Config carries the engine dependencies.
type Config struct {
	Store     *scene.Store
	Transport Transport
	CanvasID  scene.CanvasID
	UserID    scene.UserID
	UserName  string
	Listener  Listener
	Logger    *zap.Logger
}

// Engine applies and publishes durable scene mutations.
type Engine struct {
	store     *scene.Store
	transport Transport
	canvasID  string
	userID    string
	userName  string
	listener  Listener
	logger    *zap.Logger
}

// NewEngine validates the configuration and constructs an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Transport == nil {
		return nil, errMissingTransport
	}
	if cfg.CanvasID.String() == "" {
		return nil, errMissingCanvasID
	}
	if cfg.UserID.String() == "" {
		return nil, errMissingUserID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     cfg.Store,
		transport: cfg.Transport,
		canvasID:  cfg.CanvasID.String(),
		userID:    cfg.UserID.String(),
		userName:  cfg.UserName,
		listener:  cfg.Listener,
		logger:    logger,
	}, nil
}

// publish serializes and sends one event. Publish failures are logged and
// swallowed: the local store is the source of truth for the local user
// regardless of whether the broadcast went out.
func (e *Engine) publish(eventType EventType, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("event payload encode failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
		return
	}
	event := Event{
		Type:     eventType,
		Payload:  encoded,
		CanvasID: e.canvasID,
		UserID:   e.userID,
		UserName: e.userName,
	}
	if err := e.transport.Publish(event); err != nil {
		e.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

// PublishObjectAdd broadcasts a newly created object.
func (e *Engine) PublishObjectAdd(object *scene.CanvasObject) {
	e.publish(EventObjectAdd, ObjectAddPayload{Object: object})
}

// PublishObjectMove broadcasts an object update. The patch may carry any
// field subset; object_move is the generic publish-current-state event.
func (e *Engine) PublishObjectMove(objectID string, patch scene.ObjectPatch) {
	e.publish(EventObjectMove, ObjectUpdatePayload{ObjectID: objectID, Patch: patch})
}

// PublishObjectResize broadcasts an object's new bounds.
func (e *Engine) PublishObjectResize(objectID string, patch scene.ObjectPatch) {
	e.publish(EventObjectResize, ObjectUpdatePayload{ObjectID: objectID, Patch: patch})
}

// PublishObjectStyle broadcasts an object's new styling fields.
func (e *Engine) PublishObjectStyle(objectID string, patch scene.ObjectPatch) {
	e.publish(EventObjectStyle, ObjectUpdatePayload{ObjectID: objectID, Patch: patch})
}

// PublishObjectDelete broadcasts an object removal.
func (e *Engine) PublishObjectDelete(objectID string) {
	e.publish(EventObjectDelete, ObjectDeletePayload{ObjectID: objectID})
}

// PublishStrokeAdd broadcasts a completed stroke.
func (e *Engine) PublishStrokeAdd(stroke *scene.Stroke) {
	e.publish(EventDrawStroke, StrokeAddPayload{Stroke: stroke})
}

// PublishStrokeDelete broadcasts a stroke removal.
func (e *Engine) PublishStrokeDelete(strokeID string) {
	e.publish(EventStrokeDelete, StrokeDeletePayload{StrokeID: strokeID})
}

// PublishConnectorAdd broadcasts a newly created connector.
func (e *Engine) PublishConnectorAdd(connector *scene.Connector) {
	e.publish(EventConnectorAdd, ConnectorAddPayload{Connector: connector})
}

// PublishConnectorUpdate broadcasts a connector update.
func (e *Engine) PublishConnectorUpdate(connectorID string, patch scene.ConnectorPatch) {
	e.publish(EventConnectorUpdate, ConnectorUpdatePayload{ConnectorID: connectorID, Patch: patch})
}

// PublishConnectorDelete broadcasts a connector removal.
func (e *Engine) PublishConnectorDelete(connectorID string) {
	e.publish(EventConnectorDelete, ConnectorDeletePayload{ConnectorID: connectorID})
}

// PublishLayerChanges broadcasts one layer event per changed entity.
func (e *Engine) PublishLayerChanges(changes []scene.LayerChange) {
	for _, change := range changes {
		eventType := EventObjectLayer
		if change.Kind == scene.KindConnector {
			eventType = EventConnectorLayer
		}
		e.publish(eventType, LayerPayload{EntityID: change.ID, ZIndex: change.ZIndex})
	}
}

// PublishGroupCreate broadcasts a new group container.
func (e *Engine) PublishGroupCreate(group *scene.CanvasObject) {
	e.publish(EventGroupCreate, GroupCreatePayload{Group: group})
}

// PublishGroupUngroup broadcasts dissolution of a group container.
func (e *Engine) PublishGroupUngroup(groupID string) {
	e.publish(EventGroupUngroup, GroupUngroupPayload{GroupID: groupID})
}

// PublishUserJoin announces this client on the canvas.
func (e *Engine) PublishUserJoin() {
	e.publish(EventUserJoin, struct{}{})
}

// PublishUserLeave announces this client's departure.
func (e *Engine) PublishUserLeave() {
	e.publish(EventUserLeave, struct{}{})
}

// HandleRaw decodes a wire event and applies it. Malformed envelopes are
// logged and dropped; the session keeps running.
func (e *Engine) HandleRaw(raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		e.logger.Error("event decode failed", zap.Error(err))
		return
	}
	e.Handle(event)
}

// Handle merges one inbound event into the local store. Events published by
// this client (own echoes) and events for other canvases are discarded.
func (e *Engine) Handle(event Event) {
	if event.UserID == e.userID {
		return
	}
	if event.CanvasID != e.canvasID {
		return
	}

	switch event.Type {
	case EventObjectAdd:
		var payload ObjectAddPayload
		if !e.decode(event, &payload) || payload.Object == nil {
			return
		}
		e.store.AddObject(payload.Object)
	case EventObjectMove, EventObjectResize, EventObjectStyle:
		var payload ObjectUpdatePayload
		if !e.decode(event, &payload) {
			return
		}
		e.store.UpdateObject(payload.ObjectID, payload.Patch)
	case EventObjectDelete:
		var payload ObjectDeletePayload
		if !e.decode(event, &payload) {
			return
		}
		removed, ok := e.store.RemoveObject(payload.ObjectID)
		if !ok {
			return
		}
		e.notifyRemoved(removed.Object.ID)
		for _, connector := range removed.Connectors {
			e.notifyRemoved(connector.ID)
		}
	case EventDrawStroke:
		var payload StrokeAddPayload
		if !e.decode(event, &payload) || payload.Stroke == nil {
			return
		}
		e.store.AddStroke(payload.Stroke)
	case EventStrokeDelete:
		var payload StrokeDeletePayload
		if !e.decode(event, &payload) {
			return
		}
		if _, ok := e.store.RemoveStroke(payload.StrokeID); ok {
			e.notifyRemoved(payload.StrokeID)
		}
	case EventConnectorAdd:
		var payload ConnectorAddPayload
		if !e.decode(event, &payload) || payload.Connector == nil {
			return
		}
		e.store.AddConnector(payload.Connector)
	case EventConnectorUpdate:
		var payload ConnectorUpdatePayload
		if !e.decode(event, &payload) {
			return
		}
		merged, ok := e.store.UpdateConnector(payload.ConnectorID, payload.Patch)
		if ok && e.listener != nil {
			e.listener.ConnectorMerged(merged)
		}
	case EventConnectorDelete:
		var payload ConnectorDeletePayload
		if !e.decode(event, &payload) {
			return
		}
		if _, ok := e.store.RemoveConnector(payload.ConnectorID); ok {
			e.notifyRemoved(payload.ConnectorID)
		}
	case EventObjectLayer, EventConnectorLayer:
		var payload LayerPayload
		if !e.decode(event, &payload) {
			return
		}
		e.store.SetZIndex(payload.EntityID, payload.ZIndex)
	case EventGroupCreate:
		var payload GroupCreatePayload
		if !e.decode(event, &payload) || payload.Group == nil {
			return
		}
		e.store.AddObject(payload.Group)
	case EventGroupUngroup:
		var payload GroupUngroupPayload
		if !e.decode(event, &payload) {
			return
		}
		if _, ok := e.store.Ungroup(payload.GroupID); ok {
			e.notifyRemoved(payload.GroupID)
		}
	case EventUserJoin:
		if e.listener != nil {
			e.listener.PeerJoined(event.UserID, event.UserName)
		}
	case EventUserLeave:
		if e.listener != nil {
			e.listener.PeerLeft(event.UserID)
		}
	default:
		e.logger.Warn("unknown event type dropped", zap.String("event_type", string(event.Type)))
	}
}

func (e *Engine) decode(event Event, payload any) bool {
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		e.logger.Error("event payload decode failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) notifyRemoved(entityID string) {
	if e.listener != nil {
		e.listener.EntityRemoved(entityID)
	}
}
