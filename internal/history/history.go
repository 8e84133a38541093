// Package history is the bounded undo/redo engine. Undo and redo are the
// same restore-and-capture routine run in opposite directions: applying an
// action's inverse captures the pre-application state into a fresh action of
// the same shape pushed on the opposite stack. Every restore republishes the
// matching sync event, so undo is itself an optimistic broadcast mutation.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/inkforge/boardsync/internal/mutation"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

// maxUndoDepth bounds the forward-action stack; the oldest action falls off.
const maxUndoDepth = 5

// ActionType tags one reversible operation kind.
type ActionType string

const (
	ActionObjectAdd       ActionType = "object_add"
	ActionObjectMove      ActionType = "object_move"
	ActionObjectResize    ActionType = "object_resize"
	ActionObjectStyle     ActionType = "object_style"
	ActionObjectDelete    ActionType = "object_delete"
	ActionStrokeAdd       ActionType = "stroke_add"
	ActionStrokeDelete    ActionType = "stroke_delete"
	ActionConnectorAdd    ActionType = "connector_add"
	ActionConnectorUpdate ActionType = "connector_update"
	ActionConnectorDelete ActionType = "connector_delete"
	ActionGroupCreate     ActionType = "group_create"
)

// Action is one recorded reversible operation.
type Action struct {
	Type      ActionType
	Data      any
	Timestamp time.Time
}

// MoveData records an object's position before a move.
type MoveData struct {
	ObjectID  string
	PreviousX float64
	PreviousY float64
}

// BoundsData records an object's placement before a resize.
type BoundsData struct {
	ObjectID       string
	PreviousX      float64
	PreviousY      float64
	PreviousWidth  float64
	PreviousHeight float64
}

// StyleData records the style fields before a style change.
type StyleData struct {
	ObjectID      string
	PreviousPatch scene.ObjectPatch
}

// ObjectRefData names an object created by the forward action.
type ObjectRefData struct {
	ObjectID string
}

// DeleteData holds deep copies captured at delete time, including the
// connectors removed by the cascade.
type DeleteData struct {
	Object     *scene.CanvasObject
	Connectors []*scene.Connector
}

// StrokeRefData names a stroke created by the forward action.
type StrokeRefData struct {
	StrokeID string
}

// StrokeData holds a deep copy of a deleted stroke.
type StrokeData struct {
	Stroke *scene.Stroke
}

// ConnectorRefData names a connector created by the forward action.
type ConnectorRefData struct {
	ConnectorID string
}

// ConnectorData holds a deep copy of a deleted connector.
type ConnectorData struct {
	Connector *scene.Connector
}

// ConnectorUpdateData records a connector's state before an update.
type ConnectorUpdateData struct {
	ConnectorID   string
	PreviousPatch scene.ConnectorPatch
}

// GroupData names the group created by the forward action. Undoing a group
// creation ungroups; children are never deleted.
type GroupData struct {
	GroupID string
}

var (
	errUnknownActionType = errors.New("history: unknown action type")
	errMismatchedData    = errors.New("history: action data has unexpected type")
)

// actionData asserts the action's payload shape. A mismatch means a Record
// call paired the wrong data with the action type; it surfaces as a failed
// undo or redo instead of a panic.
func actionData[T any](action Action) (T, error) {
	data, ok := action.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", errMismatchedData, action.Type)
	}
	return data, nil
}

// Engine holds the two action stacks and applies inverses through the store
// and the sync engine.
type Engine struct {
	store  *scene.Store
	sync   *mutation.Engine
	clock  func() time.Time
	logger *zap.Logger
	undo   []Action
	redo   []Action
}

// NewEngine constructs a history engine over the given store and sync engine.
func NewEngine(store *scene.Store, syncEngine *mutation.Engine, clock func() time.Time, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, sync: syncEngine, clock: clock, logger: logger}
}

// Record pushes a new forward action. The redo stack is cleared: a new edit
// invalidates any previously undone future. The undo stack keeps at most
// five entries.
func (e *Engine) Record(actionType ActionType, data any) {
	e.undo = append(e.undo, Action{Type: actionType, Data: data, Timestamp: e.clock()})
	if len(e.undo) > maxUndoDepth {
		e.undo = e.undo[len(e.undo)-maxUndoDepth:]
	}
	e.redo = e.redo[:0]
}

// CanUndo reports whether an undo is available.
func (e *Engine) CanUndo() bool {
	return len(e.undo) > 0
}

// CanRedo reports whether a redo is available.
func (e *Engine) CanRedo() bool {
	return len(e.redo) > 0
}

// Undo reverses the most recent action and pushes its capture on the redo
// stack. Returns false when there is nothing to undo.
func (e *Engine) Undo() bool {
	if len(e.undo) == 0 {
		return false
	}
	action := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]
	reversed, err := e.apply(action, true)
	if err != nil {
		e.logger.Error("undo failed", zap.String("action_type", string(action.Type)), zap.Error(err))
		return false
	}
	e.redo = append(e.redo, reversed)
	return true
}

// Redo re-applies the most recently undone action and pushes its capture
// back on the undo stack.
func (e *Engine) Redo() bool {
	if len(e.redo) == 0 {
		return false
	}
	action := e.redo[len(e.redo)-1]
	e.redo = e.redo[:len(e.redo)-1]
	reversed, err := e.apply(action, false)
	if err != nil {
		e.logger.Error("redo failed", zap.String("action_type", string(action.Type)), zap.Error(err))
		return false
	}
	e.undo = append(e.undo, reversed)
	if len(e.undo) > maxUndoDepth {
		e.undo = e.undo[len(e.undo)-maxUndoDepth:]
	}
	return true
}

// apply restores the state an action captured and returns a new action of
// the same shape capturing the state that was just replaced. The undoing
// flag flips creation-style actions between remove and re-insert.
func (e *Engine) apply(action Action, undoing bool) (Action, error) {
	now := e.clock()
	switch action.Type {
	case ActionObjectMove:
		data, err := actionData[MoveData](action)
		if err != nil {
			return Action{}, err
		}
		current, ok := e.store.Object(data.ObjectID)
		captured := data
		if ok {
			captured = MoveData{ObjectID: data.ObjectID, PreviousX: current.X, PreviousY: current.Y}
		}
		patch := scene.MovePatch(data.PreviousX, data.PreviousY)
		if _, ok := e.store.UpdateObject(data.ObjectID, patch); ok {
			e.sync.PublishObjectMove(data.ObjectID, patch)
		}
		return Action{Type: action.Type, Data: captured, Timestamp: now}, nil

	case ActionObjectResize:
		data, err := actionData[BoundsData](action)
		if err != nil {
			return Action{}, err
		}
		current, ok := e.store.Object(data.ObjectID)
		captured := data
		if ok {
			captured = BoundsData{
				ObjectID:       data.ObjectID,
				PreviousX:      current.X,
				PreviousY:      current.Y,
				PreviousWidth:  current.Width,
				PreviousHeight: current.Height,
			}
		}
		patch := scene.BoundsPatch(data.PreviousX, data.PreviousY, data.PreviousWidth, data.PreviousHeight)
		if _, ok := e.store.UpdateObject(data.ObjectID, patch); ok {
			e.sync.PublishObjectResize(data.ObjectID, patch)
		}
		return Action{Type: action.Type, Data: captured, Timestamp: now}, nil

	case ActionObjectStyle:
		data, err := actionData[StyleData](action)
		if err != nil {
			return Action{}, err
		}
		captured := data
		if current, ok := e.store.Object(data.ObjectID); ok {
			captured = StyleData{ObjectID: data.ObjectID, PreviousPatch: scene.FullPatch(current)}
		}
		if _, ok := e.store.UpdateObject(data.ObjectID, data.PreviousPatch); ok {
			e.sync.PublishObjectStyle(data.ObjectID, data.PreviousPatch)
		}
		return Action{Type: action.Type, Data: captured, Timestamp: now}, nil

	case ActionObjectAdd:
		if undoing {
			data, err := actionData[ObjectRefData](action)
			if err != nil {
				return Action{}, err
			}
			removed, ok := e.store.RemoveObject(data.ObjectID)
			if !ok {
				return Action{}, errStaleTarget(data.ObjectID)
			}
			e.sync.PublishObjectDelete(data.ObjectID)
			for _, connector := range removed.Connectors {
				e.sync.PublishConnectorDelete(connector.ID)
			}
			return Action{Type: action.Type, Data: DeleteData(removed), Timestamp: now}, nil
		}
		data, err := actionData[DeleteData](action)
		if err != nil {
			return Action{}, err
		}
		e.restoreDeleted(data)
		return Action{Type: action.Type, Data: ObjectRefData{ObjectID: data.Object.ID}, Timestamp: now}, nil

	case ActionObjectDelete:
		if undoing {
			data, err := actionData[DeleteData](action)
			if err != nil {
				return Action{}, err
			}
			e.restoreDeleted(data)
			return Action{Type: action.Type, Data: ObjectRefData{ObjectID: data.Object.ID}, Timestamp: now}, nil
		}
		data, err := actionData[ObjectRefData](action)
		if err != nil {
			return Action{}, err
		}
		removed, ok := e.store.RemoveObject(data.ObjectID)
		if !ok {
			return Action{}, errStaleTarget(data.ObjectID)
		}
		e.sync.PublishObjectDelete(data.ObjectID)
		for _, connector := range removed.Connectors {
			e.sync.PublishConnectorDelete(connector.ID)
		}
		return Action{Type: action.Type, Data: DeleteData(removed), Timestamp: now}, nil

	case ActionStrokeAdd:
		if undoing {
			data, err := actionData[StrokeRefData](action)
			if err != nil {
				return Action{}, err
			}
			removed, ok := e.store.RemoveStroke(data.StrokeID)
			if !ok {
				return Action{}, errStaleTarget(data.StrokeID)
			}
			e.sync.PublishStrokeDelete(data.StrokeID)
			return Action{Type: action.Type, Data: StrokeData{Stroke: removed}, Timestamp: now}, nil
		}
		data, err := actionData[StrokeData](action)
		if err != nil {
			return Action{}, err
		}
		if e.store.AddStroke(data.Stroke) {
			e.sync.PublishStrokeAdd(data.Stroke)
		}
		return Action{Type: action.Type, Data: StrokeRefData{StrokeID: data.Stroke.ID}, Timestamp: now}, nil

	case ActionStrokeDelete:
		if undoing {
			data, err := actionData[StrokeData](action)
			if err != nil {
				return Action{}, err
			}
			if e.store.AddStroke(data.Stroke) {
				e.sync.PublishStrokeAdd(data.Stroke)
			}
			return Action{Type: action.Type, Data: StrokeRefData{StrokeID: data.Stroke.ID}, Timestamp: now}, nil
		}
		data, err := actionData[StrokeRefData](action)
		if err != nil {
			return Action{}, err
		}
		removed, ok := e.store.RemoveStroke(data.StrokeID)
		if !ok {
			return Action{}, errStaleTarget(data.StrokeID)
		}
		e.sync.PublishStrokeDelete(data.StrokeID)
		return Action{Type: action.Type, Data: StrokeData{Stroke: removed}, Timestamp: now}, nil

	case ActionConnectorAdd:
		if undoing {
			data, err := actionData[ConnectorRefData](action)
			if err != nil {
				return Action{}, err
			}
			removed, ok := e.store.RemoveConnector(data.ConnectorID)
			if !ok {
				return Action{}, errStaleTarget(data.ConnectorID)
			}
			e.sync.PublishConnectorDelete(data.ConnectorID)
			return Action{Type: action.Type, Data: ConnectorData{Connector: removed}, Timestamp: now}, nil
		}
		data, err := actionData[ConnectorData](action)
		if err != nil {
			return Action{}, err
		}
		if e.store.AddConnector(data.Connector) {
			e.sync.PublishConnectorAdd(data.Connector)
		}
		return Action{Type: action.Type, Data: ConnectorRefData{ConnectorID: data.Connector.ID}, Timestamp: now}, nil

	case ActionConnectorDelete:
		if undoing {
			data, err := actionData[ConnectorData](action)
			if err != nil {
				return Action{}, err
			}
			if e.store.AddConnector(data.Connector) {
				e.sync.PublishConnectorAdd(data.Connector)
			}
			return Action{Type: action.Type, Data: ConnectorRefData{ConnectorID: data.Connector.ID}, Timestamp: now}, nil
		}
		data, err := actionData[ConnectorRefData](action)
		if err != nil {
			return Action{}, err
		}
		removed, ok := e.store.RemoveConnector(data.ConnectorID)
		if !ok {
			return Action{}, errStaleTarget(data.ConnectorID)
		}
		e.sync.PublishConnectorDelete(data.ConnectorID)
		return Action{Type: action.Type, Data: ConnectorData{Connector: removed}, Timestamp: now}, nil

	case ActionConnectorUpdate:
		data, err := actionData[ConnectorUpdateData](action)
		if err != nil {
			return Action{}, err
		}
		captured := data
		if current, ok := e.store.Connector(data.ConnectorID); ok {
			captured = ConnectorUpdateData{ConnectorID: data.ConnectorID, PreviousPatch: scene.FullConnectorPatch(current)}
		}
		if _, ok := e.store.UpdateConnector(data.ConnectorID, data.PreviousPatch); ok {
			e.sync.PublishConnectorUpdate(data.ConnectorID, data.PreviousPatch)
		}
		return Action{Type: action.Type, Data: captured, Timestamp: now}, nil

	case ActionGroupCreate:
		if undoing {
			data, err := actionData[GroupData](action)
			if err != nil {
				return Action{}, err
			}
			removed, ok := e.store.Ungroup(data.GroupID)
			if !ok {
				return Action{}, errStaleTarget(data.GroupID)
			}
			e.sync.PublishGroupUngroup(data.GroupID)
			return Action{Type: action.Type, Data: DeleteData{Object: removed}, Timestamp: now}, nil
		}
		data, err := actionData[DeleteData](action)
		if err != nil {
			return Action{}, err
		}
		if e.store.AddObject(data.Object) {
			e.sync.PublishGroupCreate(data.Object)
		}
		return Action{Type: action.Type, Data: GroupData{GroupID: data.Object.ID}, Timestamp: now}, nil
	}
	return Action{}, errUnknownActionType
}

func (e *Engine) restoreDeleted(data DeleteData) {
	if e.store.AddObject(data.Object) {
		e.sync.PublishObjectAdd(data.Object)
	}
	for _, connector := range data.Connectors {
		if e.store.AddConnector(connector) {
			e.sync.PublishConnectorAdd(connector)
		}
	}
}

func errStaleTarget(entityID string) error {
	return errors.New("history: target entity no longer exists: " + entityID)
}
