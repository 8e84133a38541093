// Package interaction is the selection and gesture controller: tool modes,
// single/multi/marquee selection, drag, resize, grouping, clipboard, and
// card insertion. It mutates the scene store optimistically and emits every
// durable change through the mutation engine.
package interaction

import (
	"errors"

	"github.com/inkforge/boardsync/internal/geometry"
	"github.com/inkforge/boardsync/internal/history"
	"github.com/inkforge/boardsync/internal/mutation"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

// Tool enumerates the mutually exclusive interaction modes.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolPan       Tool = "pan"
	ToolDraw      Tool = "draw"
	ToolEraser    Tool = "eraser"
	ToolConnector Tool = "connector"
)

// Modifiers carries the keyboard state accompanying a pointer event.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
}

const (
	connectorHitTolerance = 6.0
	eraserTolerance       = 8.0
	gridSize              = 20.0
)

type gestureKind int

const (
	gestureNone gestureKind = iota
	gestureDrag
	gestureMarquee
	gestureResize
	gestureDrawStroke
	gestureConnectorDraft
)

var (
	errMissingStore   = errors.New("interaction: scene store is required")
	errMissingEngine  = errors.New("interaction: mutation engine is required")
	errMissingHistory = errors.New("interaction: history engine is required")
	errIDCollision    = errors.New("interaction: generated id collided")
)

// Config carries the controller dependencies.
type Config struct {
	Store      *scene.Store
	Sync       *mutation.Engine
	History    *history.Engine
	Directory  Directory
	IDProvider scene.IDProvider
	Logger     *zap.Logger

	// Defaults for newly drawn entities.
	StrokeColor   string
	StrokeWidth   float64
	ConnectorType scene.ConnectorType
}

// Controller drives all user gestures against the scene.
type Controller struct {
	store     *scene.Store
	sync      *mutation.Engine
	history   *history.Engine
	directory Directory
	ids       scene.IDProvider
	logger    *zap.Logger

	tool                 Tool
	selectedObjectIDs    []string
	selectedConnectorIDs []string
	hoveredID            string

	gesture gestureKind

	// Drag state.
	grabbedObjectID string
	dragStartX      float64
	dragStartY      float64
	lastX           float64
	lastY           float64
	dragMoved       bool

	// Marquee state.
	marqueeStartX float64
	marqueeStartY float64
	marqueeEndX   float64
	marqueeEndY   float64

	// Resize state.
	resize resizeState

	// In-progress stroke.
	draftStroke []scene.Point

	// In-progress connector.
	draftStart       scene.Point
	draftStartAnchor *scene.Anchor

	strokeColor   string
	strokeWidth   float64
	connectorType scene.ConnectorType

	clipboard Clipboard
}

// NewController validates the configuration and constructs a Controller in
// select mode.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Sync == nil {
		return nil, errMissingEngine
	}
	if cfg.History == nil {
		return nil, errMissingHistory
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = scene.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	strokeColor := cfg.StrokeColor
	if strokeColor == "" {
		strokeColor = "#1a1a1a"
	}
	strokeWidth := cfg.StrokeWidth
	if strokeWidth == 0 {
		strokeWidth = 2
	}
	connectorType := cfg.ConnectorType
	if connectorType == "" {
		connectorType = scene.ConnectorTypeArrow
	}
	return &Controller{
		store:         cfg.Store,
		sync:          cfg.Sync,
		history:       cfg.History,
		directory:     cfg.Directory,
		ids:           ids,
		logger:        logger,
		tool:          ToolSelect,
		strokeColor:   strokeColor,
		strokeWidth:   strokeWidth,
		connectorType: connectorType,
	}, nil
}

// Tool returns the active tool.
func (c *Controller) Tool() Tool {
	return c.tool
}

// SetTool switches the active tool. Tools are mutually exclusive: switching
// clears the selection and abandons any in-flight gesture.
func (c *Controller) SetTool(tool Tool) {
	if tool == c.tool {
		return
	}
	c.tool = tool
	c.ClearSelection()
	c.gesture = gestureNone
	c.draftStroke = nil
	c.draftStartAnchor = nil
}

// SelectedObjectIDs returns the ids of the selected objects.
func (c *Controller) SelectedObjectIDs() []string {
	return append([]string(nil), c.selectedObjectIDs...)
}

// SelectedConnectorIDs returns the ids of the selected connectors.
func (c *Controller) SelectedConnectorIDs() []string {
	return append([]string(nil), c.selectedConnectorIDs...)
}

// SelectedConnector returns the live state of the primary selected
// connector. Reading through the store means a remote connector_update is
// reflected here immediately after merge.
func (c *Controller) SelectedConnector() (*scene.Connector, bool) {
	if len(c.selectedConnectorIDs) == 0 {
		return nil, false
	}
	return c.store.Connector(c.selectedConnectorIDs[0])
}

// HoveredID returns the entity currently hovered, if any.
func (c *Controller) HoveredID() string {
	return c.hoveredID
}

// SetHover records the hovered entity for the renderer.
func (c *Controller) SetHover(entityID string) {
	c.hoveredID = entityID
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.selectedObjectIDs = c.selectedObjectIDs[:0]
	c.selectedConnectorIDs = c.selectedConnectorIDs[:0]
}

// EntityRemoved clears any selection or hover referencing a removed entity.
// Wired to the mutation engine so remote deletes cannot leave dangling
// references.
func (c *Controller) EntityRemoved(entityID string) {
	c.selectedObjectIDs = removeID(c.selectedObjectIDs, entityID)
	c.selectedConnectorIDs = removeID(c.selectedConnectorIDs, entityID)
	if c.hoveredID == entityID {
		c.hoveredID = ""
	}
}

// ConnectorMerged is notified after a remote connector_update merges. The
// selection is id-based and reads live state, so there is nothing to patch;
// the hook exists so the session can route the listener here.
func (c *Controller) ConnectorMerged(connector *scene.Connector) {
}

func removeID(ids []string, target string) []string {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (c *Controller) isSelected(objectID string) bool {
	for _, id := range c.selectedObjectIDs {
		if id == objectID {
			return true
		}
	}
	return false
}

// PointerDown begins a gesture for the active tool.
func (c *Controller) PointerDown(x, y float64, mods Modifiers) {
	switch c.tool {
	case ToolSelect:
		c.selectPointerDown(x, y, mods)
	case ToolDraw:
		c.gesture = gestureDrawStroke
		c.draftStroke = []scene.Point{{X: x, Y: y}}
	case ToolEraser:
		c.eraseAt(x, y)
	case ToolConnector:
		c.gesture = gestureConnectorDraft
		c.draftStart, c.draftStartAnchor = c.snapToAnchor(x, y)
	case ToolPan:
		// Panning moves the viewport, which belongs to the renderer; the
		// scene itself is untouched.
	}
}

// PointerMove advances the gesture in progress.
func (c *Controller) PointerMove(x, y float64, mods Modifiers) {
	switch c.gesture {
	case gestureDrag:
		dx := x - c.lastX
		dy := y - c.lastY
		if dx == 0 && dy == 0 {
			return
		}
		c.lastX = x
		c.lastY = y
		c.dragMoved = true
		c.store.TranslateObjects(c.selectedObjectIDs, dx, dy)
	case gestureMarquee:
		c.marqueeEndX = x
		c.marqueeEndY = y
	case gestureResize:
		c.resizeMove(x, y, mods)
	case gestureDrawStroke:
		c.draftStroke = append(c.draftStroke, scene.Point{X: x, Y: y})
	}
	if c.tool == ToolEraser && c.gesture == gestureNone {
		c.eraseAt(x, y)
	}
}

// PointerUp completes the gesture in progress.
func (c *Controller) PointerUp(x, y float64, mods Modifiers) {
	switch c.gesture {
	case gestureDrag:
		c.finishDrag()
	case gestureMarquee:
		c.finishMarquee()
	case gestureResize:
		c.finishResize()
	case gestureDrawStroke:
		c.finishStroke()
	case gestureConnectorDraft:
		c.finishConnector(x, y)
	}
	c.gesture = gestureNone
}

func (c *Controller) selectPointerDown(x, y float64, mods Modifiers) {
	objectID, connectorID := c.topmostHit(x, y)

	if objectID == "" && connectorID == "" {
		if !mods.Ctrl {
			c.ClearSelection()
		}
		c.gesture = gestureMarquee
		c.marqueeStartX, c.marqueeStartY = x, y
		c.marqueeEndX, c.marqueeEndY = x, y
		return
	}

	if connectorID != "" {
		if mods.Ctrl {
			c.toggleConnectorSelection(connectorID)
			return
		}
		c.ClearSelection()
		c.selectedConnectorIDs = append(c.selectedConnectorIDs, connectorID)
		return
	}

	if mods.Ctrl {
		// Toggle membership without arming a drag.
		c.toggleObjectSelection(objectID)
		return
	}

	if len(c.selectedObjectIDs) == 1 && c.selectedObjectIDs[0] == objectID {
		if handle, ok := c.handleAt(objectID, x, y); ok {
			c.startResize(objectID, handle, x, y)
			return
		}
	}

	if !c.isSelected(objectID) {
		// A plain click replaces the multi-selection with this object.
		c.ClearSelection()
		c.selectedObjectIDs = append(c.selectedObjectIDs, objectID)
	}
	c.armDrag(objectID, x, y)
}

func (c *Controller) toggleObjectSelection(objectID string) {
	if c.isSelected(objectID) {
		c.selectedObjectIDs = removeID(c.selectedObjectIDs, objectID)
		return
	}
	c.selectedObjectIDs = append(c.selectedObjectIDs, objectID)
}

func (c *Controller) toggleConnectorSelection(connectorID string) {
	for _, id := range c.selectedConnectorIDs {
		if id == connectorID {
			c.selectedConnectorIDs = removeID(c.selectedConnectorIDs, connectorID)
			return
		}
	}
	c.selectedConnectorIDs = append(c.selectedConnectorIDs, connectorID)
}

func (c *Controller) armDrag(objectID string, x, y float64) {
	c.gesture = gestureDrag
	c.grabbedObjectID = objectID
	c.dragStartX, c.dragStartY = x, y
	c.lastX, c.lastY = x, y
	c.dragMoved = false
}

func (c *Controller) finishDrag() {
	if !c.dragMoved {
		return
	}
	// Record the grabbed object's pre-drag position, then publish the final
	// position of everything the drag translated.
	if grabbed, ok := c.store.Object(c.grabbedObjectID); ok {
		dx := c.lastX - c.dragStartX
		dy := c.lastY - c.dragStartY
		c.history.Record(history.ActionObjectMove, history.MoveData{
			ObjectID:  c.grabbedObjectID,
			PreviousX: grabbed.X - dx,
			PreviousY: grabbed.Y - dy,
		})
	}
	published := map[string]bool{}
	for _, objectID := range c.selectedObjectIDs {
		c.publishSubtreeMoves(objectID, published)
	}
}

// publishSubtreeMoves emits one object_move per translated object and one
// connector_update per grouped connector whose floating geometry moved.
func (c *Controller) publishSubtreeMoves(objectID string, published map[string]bool) {
	if published[objectID] {
		return
	}
	published[objectID] = true
	object, ok := c.store.Object(objectID)
	if !ok {
		return
	}
	c.sync.PublishObjectMove(objectID, scene.MovePatch(object.X, object.Y))
	if !object.IsGroup() {
		return
	}
	for _, childID := range object.Children {
		c.publishSubtreeMoves(childID, published)
	}
	for _, connectorID := range object.ConnectorIDs {
		if published[connectorID] {
			continue
		}
		published[connectorID] = true
		if connector, ok := c.store.Connector(connectorID); ok {
			c.sync.PublishConnectorUpdate(connectorID, scene.FullConnectorPatch(connector))
		}
	}
}

func (c *Controller) finishMarquee() {
	marquee := geometry.Rect{
		X:      c.marqueeStartX,
		Y:      c.marqueeStartY,
		Width:  c.marqueeEndX - c.marqueeStartX,
		Height: c.marqueeEndY - c.marqueeStartY,
	}
	c.ClearSelection()
	for _, object := range c.store.Objects() {
		if geometry.MarqueeHitsObject(object, marquee) {
			c.selectedObjectIDs = append(c.selectedObjectIDs, object.ID)
		}
	}
	for _, connector := range c.store.Connectors() {
		if geometry.MarqueeHitsConnector(connector, c.store, marquee) {
			c.selectedConnectorIDs = append(c.selectedConnectorIDs, connector.ID)
		}
	}
}

func (c *Controller) finishStroke() {
	if len(c.draftStroke) == 0 {
		return
	}
	strokeID, err := c.ids.NewID()
	if err != nil {
		c.logger.Error("stroke id generation failed", zap.Error(err))
		c.draftStroke = nil
		return
	}
	stroke := &scene.Stroke{
		ID:     strokeID,
		Points: c.draftStroke,
		Color:  c.strokeColor,
		Width:  c.strokeWidth,
		ZIndex: c.store.NextZIndex(),
	}
	c.draftStroke = nil
	if !c.store.AddStroke(stroke) {
		return
	}
	c.sync.PublishStrokeAdd(stroke)
	c.history.Record(history.ActionStrokeAdd, history.StrokeRefData{StrokeID: stroke.ID})
}

func (c *Controller) finishConnector(x, y float64) {
	end, endAnchor := c.snapToAnchor(x, y)
	connectorID, err := c.ids.NewID()
	if err != nil {
		c.logger.Error("connector id generation failed", zap.Error(err))
		return
	}
	connector := &scene.Connector{
		ID:            connectorID,
		ConnectorType: c.connectorType,
		StartX:        c.draftStart.X,
		StartY:        c.draftStart.Y,
		EndX:          end.X,
		EndY:          end.Y,
		StartAnchor:   c.draftStartAnchor,
		EndAnchor:     endAnchor,
		ZIndex:        c.store.NextZIndex(),
	}
	c.draftStartAnchor = nil
	if !c.store.AddConnector(connector) {
		return
	}
	c.sync.PublishConnectorAdd(connector)
	c.history.Record(history.ActionConnectorAdd, history.ConnectorRefData{ConnectorID: connector.ID})
}

// snapToAnchor returns the anchor reference and resolved point when the
// position lands on an object, or the literal point when it does not.
func (c *Controller) snapToAnchor(x, y float64) (scene.Point, *scene.Anchor) {
	objectID, _ := c.topmostHit(x, y)
	if objectID == "" {
		return scene.Point{X: x, Y: y}, nil
	}
	object, ok := c.store.Object(objectID)
	if !ok {
		return scene.Point{X: x, Y: y}, nil
	}
	position := nearestAnchorSide(object, x, y)
	anchor := &scene.Anchor{ObjectID: objectID, Position: position}
	return geometry.AnchorPoint(object, position), anchor
}

func nearestAnchorSide(object *scene.CanvasObject, x, y float64) scene.AnchorPosition {
	centerX := object.X + object.Width/2
	centerY := object.Y + object.Height/2
	dx := x - centerX
	dy := y - centerY
	// Compare against the box aspect so wide objects prefer left/right.
	relX := 0.0
	if object.Width > 0 {
		relX = dx / object.Width
	}
	relY := 0.0
	if object.Height > 0 {
		relY = dy / object.Height
	}
	if relX >= relY && relX >= -relY {
		return scene.AnchorRight
	}
	if relX <= relY && relX <= -relY {
		return scene.AnchorLeft
	}
	if relY > 0 {
		return scene.AnchorBottom
	}
	return scene.AnchorTop
}

// topmostHit finds the highest entity under the point. Higher z-index wins;
// duplicate z-indices fall back to later collection position, matching paint
// order.
func (c *Controller) topmostHit(x, y float64) (objectID, connectorID string) {
	bestZ := 0
	found := false
	for _, object := range c.store.Objects() {
		if !geometry.HitObject(object, x, y) {
			continue
		}
		if !found || object.ZIndex >= bestZ {
			bestZ = object.ZIndex
			objectID = object.ID
			connectorID = ""
			found = true
		}
	}
	for _, connector := range c.store.Connectors() {
		if !geometry.HitConnector(connector, c.store, x, y, connectorHitTolerance) {
			continue
		}
		if !found || connector.ZIndex >= bestZ {
			bestZ = connector.ZIndex
			objectID = ""
			connectorID = connector.ID
			found = true
		}
	}
	return objectID, connectorID
}

func (c *Controller) eraseAt(x, y float64) {
	objectID, connectorID := c.topmostHit(x, y)
	if objectID != "" {
		c.DeleteObject(objectID)
		return
	}
	if connectorID != "" {
		c.DeleteConnector(connectorID)
		return
	}
	for _, stroke := range c.store.Strokes() {
		if geometry.HitStroke(stroke, x, y, eraserTolerance) {
			c.DeleteStroke(stroke.ID)
			return
		}
	}
}

// AddObject creates an object at the given placement, publishes it, and
// records the forward action.
func (c *Controller) AddObject(objectType scene.ObjectType, x, y, width, height float64) (*scene.CanvasObject, error) {
	objectID, err := c.ids.NewID()
	if err != nil {
		return nil, err
	}
	object := &scene.CanvasObject{
		ID:     objectID,
		Type:   objectType,
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
		ZIndex: c.store.NextZIndex(),
	}
	if !c.store.AddObject(object) {
		return nil, errIDCollision
	}
	c.sync.PublishObjectAdd(object)
	c.history.Record(history.ActionObjectAdd, history.ObjectRefData{ObjectID: object.ID})
	return object, nil
}

// UpdateObjectStyle applies style fields to an object, records the previous
// values, and publishes the change.
func (c *Controller) UpdateObjectStyle(objectID string, patch scene.ObjectPatch) bool {
	previous, ok := c.store.Object(objectID)
	if !ok {
		return false
	}
	merged, ok := c.store.UpdateObject(objectID, patch)
	if !ok {
		return false
	}
	c.history.Record(history.ActionObjectStyle, history.StyleData{
		ObjectID:      objectID,
		PreviousPatch: scene.FullPatch(previous),
	})
	c.sync.PublishObjectStyle(merged.ID, patch)
	return true
}

// SetObjectText writes an object's text through the overloaded object_move
// publish path, which carries arbitrary field subsets.
func (c *Controller) SetObjectText(objectID, text string) bool {
	previous, ok := c.store.Object(objectID)
	if !ok {
		return false
	}
	patch := scene.ObjectPatch{Text: &text}
	if _, ok := c.store.UpdateObject(objectID, patch); !ok {
		return false
	}
	c.history.Record(history.ActionObjectStyle, history.StyleData{
		ObjectID:      objectID,
		PreviousPatch: scene.FullPatch(previous),
	})
	c.sync.PublishObjectMove(objectID, patch)
	return true
}

// DeleteObject removes an object with its connector cascade, publishes the
// deletions, and records the inverse.
func (c *Controller) DeleteObject(objectID string) bool {
	removed, ok := c.store.RemoveObject(objectID)
	if !ok {
		return false
	}
	c.EntityRemoved(objectID)
	c.sync.PublishObjectDelete(objectID)
	for _, connector := range removed.Connectors {
		c.EntityRemoved(connector.ID)
		c.sync.PublishConnectorDelete(connector.ID)
	}
	c.history.Record(history.ActionObjectDelete, history.DeleteData{
		Object:     removed.Object,
		Connectors: removed.Connectors,
	})
	return true
}

// DeleteConnector removes a connector, publishes, and records the inverse.
func (c *Controller) DeleteConnector(connectorID string) bool {
	removed, ok := c.store.RemoveConnector(connectorID)
	if !ok {
		return false
	}
	c.EntityRemoved(connectorID)
	c.sync.PublishConnectorDelete(connectorID)
	c.history.Record(history.ActionConnectorDelete, history.ConnectorData{Connector: removed})
	return true
}

// DeleteStroke removes a stroke, publishes, and records the inverse.
func (c *Controller) DeleteStroke(strokeID string) bool {
	removed, ok := c.store.RemoveStroke(strokeID)
	if !ok {
		return false
	}
	c.EntityRemoved(strokeID)
	c.sync.PublishStrokeDelete(strokeID)
	c.history.Record(history.ActionStrokeDelete, history.StrokeData{Stroke: removed})
	return true
}

// DeleteSelection removes every selected object and connector.
func (c *Controller) DeleteSelection() {
	objects := c.SelectedObjectIDs()
	connectors := c.SelectedConnectorIDs()
	for _, objectID := range objects {
		c.DeleteObject(objectID)
	}
	for _, connectorID := range connectors {
		c.DeleteConnector(connectorID)
	}
	c.ClearSelection()
}

// GroupSelection groups the selected objects and connectors into a new
// group container.
func (c *Controller) GroupSelection() (*scene.CanvasObject, error) {
	groupID, err := c.ids.NewID()
	if err != nil {
		return nil, err
	}
	group, err := c.store.CreateGroup(groupID, c.selectedObjectIDs, c.selectedConnectorIDs)
	if err != nil {
		return nil, err
	}
	c.sync.PublishGroupCreate(group)
	c.history.Record(history.ActionGroupCreate, history.GroupData{GroupID: group.ID})
	c.ClearSelection()
	c.selectedObjectIDs = append(c.selectedObjectIDs, group.ID)
	return group, nil
}

// UngroupSelection dissolves the selected group container; its children stay.
func (c *Controller) UngroupSelection() bool {
	if len(c.selectedObjectIDs) != 1 {
		return false
	}
	groupID := c.selectedObjectIDs[0]
	removed, ok := c.store.Ungroup(groupID)
	if !ok {
		return false
	}
	c.sync.PublishGroupUngroup(groupID)
	c.ClearSelection()
	c.selectedObjectIDs = append(c.selectedObjectIDs, removed.Children...)
	return true
}

// Layer operations on the primary selected entity.

// BringForward raises the selected entity one step.
func (c *Controller) BringForward() {
	c.publishLayer(c.store.BringForward(c.primarySelection()))
}

// SendBackward lowers the selected entity one step.
func (c *Controller) SendBackward() {
	c.publishLayer(c.store.SendBackward(c.primarySelection()))
}

// BringToFront raises the selected entity above everything.
func (c *Controller) BringToFront() {
	c.publishLayer(c.store.BringToFront(c.primarySelection()))
}

// SendToBack lowers the selected entity below everything.
func (c *Controller) SendToBack() {
	c.publishLayer(c.store.SendToBack(c.primarySelection()))
}

func (c *Controller) primarySelection() string {
	if len(c.selectedObjectIDs) > 0 {
		return c.selectedObjectIDs[0]
	}
	if len(c.selectedConnectorIDs) > 0 {
		return c.selectedConnectorIDs[0]
	}
	return ""
}

func (c *Controller) publishLayer(changes []scene.LayerChange) {
	if len(changes) == 0 {
		return
	}
	c.sync.PublishLayerChanges(changes)
}
