package scene

import (
	"sync"

	"go.uber.org/zap"
)

// Store owns the three scene collections. All mutation goes through explicit
// methods; accessors return deep copies so callers never hold references into
// the store's own state. Collection order is stable: entities keep their
// insertion position, which breaks ties between duplicate z-indices.
type Store struct {
	mu         sync.RWMutex
	objects    []*CanvasObject
	strokes    []*Stroke
	connectors []*Connector
	logger     *zap.Logger
}

// NewStore constructs an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// Object returns a copy of the object with the given id.
func (s *Store) Object(objectID string) (*CanvasObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	object := s.findObject(objectID)
	if object == nil {
		return nil, false
	}
	return object.Clone(), true
}

// Connector returns a copy of the connector with the given id.
func (s *Store) Connector(connectorID string) (*Connector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	connector := s.findConnector(connectorID)
	if connector == nil {
		return nil, false
	}
	return connector.Clone(), true
}

// Stroke returns a copy of the stroke with the given id.
func (s *Store) Stroke(strokeID string) (*Stroke, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stroke := s.findStroke(strokeID)
	if stroke == nil {
		return nil, false
	}
	return stroke.Clone(), true
}

// Objects returns copies of all objects in stable collection order.
func (s *Store) Objects() []*CanvasObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copies := make([]*CanvasObject, 0, len(s.objects))
	for _, object := range s.objects {
		copies = append(copies, object.Clone())
	}
	return copies
}

// Strokes returns copies of all strokes in stable collection order.
func (s *Store) Strokes() []*Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copies := make([]*Stroke, 0, len(s.strokes))
	for _, stroke := range s.strokes {
		copies = append(copies, stroke.Clone())
	}
	return copies
}

// Connectors returns copies of all connectors in stable collection order.
func (s *Store) Connectors() []*Connector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copies := make([]*Connector, 0, len(s.connectors))
	for _, connector := range s.connectors {
		copies = append(copies, connector.Clone())
	}
	return copies
}

// AddObject inserts the object. The insert is idempotent: if any entity in
// any collection already uses the id, the add is a no-op and false is
// returned. Id uniqueness spans objects, strokes, and connectors combined.
func (s *Store) AddObject(object *CanvasObject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idInUse(object.ID) {
		s.logger.Debug("object add ignored, id in use", zap.String("object_id", object.ID))
		return false
	}
	s.objects = append(s.objects, object.Clone())
	return true
}

// UpdateObject applies a patch to the object and returns a copy of the
// merged result. Unknown ids are a no-op.
func (s *Store) UpdateObject(objectID string, patch ObjectPatch) (*CanvasObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object := s.findObject(objectID)
	if object == nil {
		return nil, false
	}
	patch.Apply(object)
	return object.Clone(), true
}

// RemovedSet is the result of a cascade removal: the entity that was asked to
// be removed plus every dependent entity removed with it.
type RemovedSet struct {
	Object     *CanvasObject
	Connectors []*Connector
}

// AttachedConnectorIDs computes the ids of connectors with an anchor
// referencing the object. Pure with respect to the removal itself: callers can
// audit the cascade before applying it.
func (s *Store) AttachedConnectorIDs(objectID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attachedConnectorIDs(objectID)
}

func (s *Store) attachedConnectorIDs(objectID string) []string {
	var attached []string
	for _, connector := range s.connectors {
		if connector.StartAnchor != nil && connector.StartAnchor.ObjectID == objectID {
			attached = append(attached, connector.ID)
			continue
		}
		if connector.EndAnchor != nil && connector.EndAnchor.ObjectID == objectID {
			attached = append(attached, connector.ID)
		}
	}
	return attached
}

// RemoveObject removes the object and, in the same batch, every connector
// anchored to it. Removing an unknown id is a no-op. The removed entities are
// returned as deep copies so callers can record inverses and emit deletions.
func (s *Store) RemoveObject(objectID string) (RemovedSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object := s.findObject(objectID)
	if object == nil {
		return RemovedSet{}, false
	}
	removed := RemovedSet{Object: object.Clone()}
	for _, connectorID := range s.attachedConnectorIDs(objectID) {
		if connector := s.findConnector(connectorID); connector != nil {
			removed.Connectors = append(removed.Connectors, connector.Clone())
			s.deleteConnector(connectorID)
		}
	}
	s.deleteObject(objectID)
	return removed, true
}

// AddConnector inserts the connector; idempotent on id across all collections.
func (s *Store) AddConnector(connector *Connector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idInUse(connector.ID) {
		s.logger.Debug("connector add ignored, id in use", zap.String("connector_id", connector.ID))
		return false
	}
	s.connectors = append(s.connectors, connector.Clone())
	return true
}

// UpdateConnector applies a patch to the connector and returns a copy of the
// merged result. Unknown ids are a no-op.
func (s *Store) UpdateConnector(connectorID string, patch ConnectorPatch) (*Connector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connector := s.findConnector(connectorID)
	if connector == nil {
		return nil, false
	}
	patch.Apply(connector)
	return connector.Clone(), true
}

// RemoveConnector removes the connector. Unknown ids are a no-op.
func (s *Store) RemoveConnector(connectorID string) (*Connector, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	connector := s.findConnector(connectorID)
	if connector == nil {
		return nil, false
	}
	removed := connector.Clone()
	s.deleteConnector(connectorID)
	return removed, true
}

// AddStroke inserts the stroke; idempotent on id across all collections.
func (s *Store) AddStroke(stroke *Stroke) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idInUse(stroke.ID) {
		s.logger.Debug("stroke add ignored, id in use", zap.String("stroke_id", stroke.ID))
		return false
	}
	s.strokes = append(s.strokes, stroke.Clone())
	return true
}

// RemoveStroke removes the stroke. Unknown ids are a no-op.
func (s *Store) RemoveStroke(strokeID string) (*Stroke, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stroke := s.findStroke(strokeID)
	if stroke == nil {
		return nil, false
	}
	removed := stroke.Clone()
	s.deleteStroke(strokeID)
	return removed, true
}

// TranslateObject moves the object by a delta. Group objects cascade: every
// child translates by the same delta (recursively for nested groups) and
// every grouped connector's floating geometry translates with them. Anchored
// connector endpoints need no handling here; they re-resolve from the moved
// objects. The ids of every translated object are returned, group included,
// so callers can publish one move per affected object.
func (s *Store) TranslateObject(objectID string, dx, dy float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translateObject(objectID, dx, dy, map[string]bool{})
}

// TranslateObjects moves several objects by one delta through a shared
// visited set. A selection holding both a group and its children translates
// each entity exactly once; without the shared set the children would move
// again through the group's cascade. Returns each translated object id once.
func (s *Store) TranslateObjects(objectIDs []string, dx, dy float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	visited := map[string]bool{}
	var moved []string
	for _, objectID := range objectIDs {
		moved = append(moved, s.translateObject(objectID, dx, dy, visited)...)
	}
	return moved
}

func (s *Store) translateObject(objectID string, dx, dy float64, visited map[string]bool) []string {
	if visited[objectID] {
		return nil
	}
	visited[objectID] = true
	object := s.findObject(objectID)
	if object == nil {
		return nil
	}
	object.X += dx
	object.Y += dy
	moved := []string{objectID}
	if !object.IsGroup() {
		return moved
	}
	for _, childID := range object.Children {
		moved = append(moved, s.translateObject(childID, dx, dy, visited)...)
	}
	for _, connectorID := range object.ConnectorIDs {
		if visited[connectorID] {
			continue
		}
		visited[connectorID] = true
		connector := s.findConnector(connectorID)
		if connector == nil {
			continue
		}
		s.translateConnectorGeometry(connector, dx, dy)
	}
	return moved
}

func (s *Store) translateConnectorGeometry(connector *Connector, dx, dy float64) {
	if connector.StartAnchor == nil {
		connector.StartX += dx
		connector.StartY += dy
	}
	if connector.EndAnchor == nil {
		connector.EndX += dx
		connector.EndY += dy
	}
	for i := range connector.Waypoints {
		connector.Waypoints[i].X += dx
		connector.Waypoints[i].Y += dy
	}
	if connector.ControlPoint1 != nil {
		connector.ControlPoint1.X += dx
		connector.ControlPoint1.Y += dy
	}
	if connector.ControlPoint2 != nil {
		connector.ControlPoint2.X += dx
		connector.ControlPoint2.Y += dy
	}
}

// TranslateConnector moves a connector's floating geometry by a delta.
func (s *Store) TranslateConnector(connectorID string, dx, dy float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	connector := s.findConnector(connectorID)
	if connector == nil {
		return false
	}
	s.translateConnectorGeometry(connector, dx, dy)
	return true
}

// Bounds is an axis-aligned rectangle in canvas space.
type Bounds struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// ContentBounds returns the union of every entity's extent, for
// fit-to-content. The second result is false for an empty scene.
func (s *Store) ContentBounds() (Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := false
	bounds := Bounds{}
	include := func(x, y float64) {
		if !found {
			bounds = Bounds{MinX: x, MinY: y, MaxX: x, MaxY: y}
			found = true
			return
		}
		if x < bounds.MinX {
			bounds.MinX = x
		}
		if y < bounds.MinY {
			bounds.MinY = y
		}
		if x > bounds.MaxX {
			bounds.MaxX = x
		}
		if y > bounds.MaxY {
			bounds.MaxY = y
		}
	}
	for _, object := range s.objects {
		include(object.X, object.Y)
		include(object.X+object.Width, object.Y+object.Height)
	}
	for _, stroke := range s.strokes {
		for _, point := range stroke.Points {
			include(point.X, point.Y)
		}
	}
	for _, connector := range s.connectors {
		include(connector.StartX, connector.StartY)
		include(connector.EndX, connector.EndY)
		for _, waypoint := range connector.Waypoints {
			include(waypoint.X, waypoint.Y)
		}
	}
	return bounds, found
}

// SnapshotScene returns a deep copy of the whole scene for persistence.
func (s *Store) SnapshotScene() *Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := &Scene{
		Objects:    make([]*CanvasObject, 0, len(s.objects)),
		Strokes:    make([]*Stroke, 0, len(s.strokes)),
		Connectors: make([]*Connector, 0, len(s.connectors)),
	}
	for _, object := range s.objects {
		snapshot.Objects = append(snapshot.Objects, object.Clone())
	}
	for _, stroke := range s.strokes {
		snapshot.Strokes = append(snapshot.Strokes, stroke.Clone())
	}
	for _, connector := range s.connectors {
		snapshot.Connectors = append(snapshot.Connectors, connector.Clone())
	}
	return snapshot
}

// Replace swaps the entire scene contents, used when loading a snapshot.
func (s *Store) Replace(loaded *Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = s.objects[:0]
	s.strokes = s.strokes[:0]
	s.connectors = s.connectors[:0]
	if loaded == nil {
		return
	}
	for _, object := range loaded.Objects {
		s.objects = append(s.objects, object.Clone())
	}
	for _, stroke := range loaded.Strokes {
		s.strokes = append(s.strokes, stroke.Clone())
	}
	for _, connector := range loaded.Connectors {
		s.connectors = append(s.connectors, connector.Clone())
	}
}

func (s *Store) idInUse(entityID string) bool {
	return s.findObject(entityID) != nil || s.findConnector(entityID) != nil || s.findStroke(entityID) != nil
}

func (s *Store) findObject(objectID string) *CanvasObject {
	for _, object := range s.objects {
		if object.ID == objectID {
			return object
		}
	}
	return nil
}

func (s *Store) findConnector(connectorID string) *Connector {
	for _, connector := range s.connectors {
		if connector.ID == connectorID {
			return connector
		}
	}
	return nil
}

func (s *Store) findStroke(strokeID string) *Stroke {
	for _, stroke := range s.strokes {
		if stroke.ID == strokeID {
			return stroke
		}
	}
	return nil
}

func (s *Store) deleteObject(objectID string) {
	for i, object := range s.objects {
		if object.ID == objectID {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return
		}
	}
}

func (s *Store) deleteConnector(connectorID string) {
	for i, connector := range s.connectors {
		if connector.ID == connectorID {
			s.connectors = append(s.connectors[:i], s.connectors[i+1:]...)
			return
		}
	}
}

func (s *Store) deleteStroke(strokeID string) {
	for i, stroke := range s.strokes {
		if stroke.ID == strokeID {
			s.strokes = append(s.strokes[:i], s.strokes[i+1:]...)
			return
		}
	}
}
