package mutation

import (
	"encoding/json"

	"github.com/inkforge/boardsync/internal/scene"
)

// EventType enumerates the durable mutation event vocabulary carried by the
// broadcast transport.
type EventType string

const (
	EventObjectAdd       EventType = "object_add"
	EventObjectMove      EventType = "object_move"
	EventObjectResize    EventType = "object_resize"
	EventObjectStyle     EventType = "object_style"
	EventObjectDelete    EventType = "object_delete"
	EventDrawStroke      EventType = "draw_stroke"
	EventStrokeDelete    EventType = "stroke_delete"
	EventConnectorAdd    EventType = "connector_add"
	EventConnectorUpdate EventType = "connector_update"
	EventConnectorDelete EventType = "connector_delete"
	EventObjectLayer     EventType = "object_layer"
	EventConnectorLayer  EventType = "connector_layer"
	EventGroupCreate     EventType = "group_create"
	EventGroupUngroup    EventType = "group_ungroup"
	EventUserJoin        EventType = "user_join"
	EventUserLeave       EventType = "user_leave"
)

// Event is one discrete mutation broadcast to every client on a canvas.
// Delivery is at-least-once and unordered across publishers; the merge
// handlers compensate by being idempotent.
type Event struct {
	Type     EventType       `json:"eventType"`
	Payload  json.RawMessage `json:"payload"`
	CanvasID string          `json:"canvasId"`
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
}

// ObjectAddPayload carries a complete new object.
type ObjectAddPayload struct {
	Object *scene.CanvasObject `json:"object"`
}

// ObjectUpdatePayload carries a partial update for an existing object. The
// object_move event type is overloaded to carry any subset of fields, not
// just position, whenever the publisher wants to push the object's current
// state; object_resize and object_style carry only their listed fields.
type ObjectUpdatePayload struct {
	ObjectID string            `json:"objectId"`
	Patch    scene.ObjectPatch `json:"patch"`
}

// ObjectDeletePayload names an object to remove.
type ObjectDeletePayload struct {
	ObjectID string `json:"objectId"`
}

// StrokeAddPayload carries a completed freehand stroke.
type StrokeAddPayload struct {
	Stroke *scene.Stroke `json:"stroke"`
}

// StrokeDeletePayload names a stroke to remove.
type StrokeDeletePayload struct {
	StrokeID string `json:"strokeId"`
}

// ConnectorAddPayload carries a complete new connector.
type ConnectorAddPayload struct {
	Connector *scene.Connector `json:"connector"`
}

// ConnectorUpdatePayload carries a partial update for a connector.
type ConnectorUpdatePayload struct {
	ConnectorID string               `json:"connectorId"`
	Patch       scene.ConnectorPatch `json:"patch"`
}

// ConnectorDeletePayload names a connector to remove.
type ConnectorDeletePayload struct {
	ConnectorID string `json:"connectorId"`
}

// LayerPayload carries an entity's new z-index after a layer operation.
type LayerPayload struct {
	EntityID string `json:"entityId"`
	ZIndex   int    `json:"zIndex"`
}

// GroupCreatePayload carries the complete group container object.
type GroupCreatePayload struct {
	Group *scene.CanvasObject `json:"group"`
}

// GroupUngroupPayload names a group container to dissolve. Children are not
// touched; they already exist independently.
type GroupUngroupPayload struct {
	GroupID string `json:"groupId"`
}
