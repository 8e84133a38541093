package scene

// EntityKind distinguishes the collection an entity lives in.
type EntityKind string

const (
	KindObject    EntityKind = "object"
	KindConnector EntityKind = "connector"
	KindStroke    EntityKind = "stroke"
)

// LayerChange records one entity whose z-index changed during a layer
// operation, so each change can be published to peers.
type LayerChange struct {
	ID     string
	Kind   EntityKind
	ZIndex int
}

type zEntry struct {
	id   string
	kind EntityKind
	z    *int
}

// NextZIndex returns max z-index across all three collections plus one.
// Z-order is a single shared namespace so objects, strokes, and connectors
// interleave correctly.
func (s *Store) NextZIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextZIndex()
}

func (s *Store) nextZIndex() int {
	highest := 0
	for _, entry := range s.zEntries() {
		if *entry.z > highest {
			highest = *entry.z
		}
	}
	return highest + 1
}

func (s *Store) zEntries() []zEntry {
	entries := make([]zEntry, 0, len(s.objects)+len(s.strokes)+len(s.connectors))
	for _, object := range s.objects {
		entries = append(entries, zEntry{id: object.ID, kind: KindObject, z: &object.ZIndex})
	}
	for _, stroke := range s.strokes {
		entries = append(entries, zEntry{id: stroke.ID, kind: KindStroke, z: &stroke.ZIndex})
	}
	for _, connector := range s.connectors {
		entries = append(entries, zEntry{id: connector.ID, kind: KindConnector, z: &connector.ZIndex})
	}
	return entries
}

func (s *Store) zOf(entityID string) (*int, EntityKind, bool) {
	if object := s.findObject(entityID); object != nil {
		return &object.ZIndex, KindObject, true
	}
	if stroke := s.findStroke(entityID); stroke != nil {
		return &stroke.ZIndex, KindStroke, true
	}
	if connector := s.findConnector(entityID); connector != nil {
		return &connector.ZIndex, KindConnector, true
	}
	return nil, "", false
}

// SetZIndex assigns an absolute z-index to whichever entity holds the id.
// Unknown ids are a no-op. Used when merging remote layer events.
func (s *Store) SetZIndex(entityID string, zIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, _, ok := s.zOf(entityID)
	if !ok {
		return false
	}
	*current = zIndex
	return true
}

// BringForward swaps the entity's z-index with the nearest entity above it.
// Swap-with-neighbor preserves the relative order of untouched entities,
// unlike a blind renumbering. Entities already on top are a no-op.
func (s *Store) BringForward(entityID string) []LayerChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, kind, ok := s.zOf(entityID)
	if !ok {
		return nil
	}
	var neighbor *zEntry
	for _, entry := range s.zEntries() {
		if entry.id == entityID || *entry.z <= *current {
			continue
		}
		if neighbor == nil || *entry.z < *neighbor.z {
			candidate := entry
			neighbor = &candidate
		}
	}
	if neighbor == nil {
		return nil
	}
	*current, *neighbor.z = *neighbor.z, *current
	return []LayerChange{
		{ID: entityID, Kind: kind, ZIndex: *current},
		{ID: neighbor.id, Kind: neighbor.kind, ZIndex: *neighbor.z},
	}
}

// SendBackward swaps the entity's z-index with the nearest entity below it.
func (s *Store) SendBackward(entityID string) []LayerChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, kind, ok := s.zOf(entityID)
	if !ok {
		return nil
	}
	var neighbor *zEntry
	for _, entry := range s.zEntries() {
		if entry.id == entityID || *entry.z >= *current {
			continue
		}
		if neighbor == nil || *entry.z > *neighbor.z {
			candidate := entry
			neighbor = &candidate
		}
	}
	if neighbor == nil {
		return nil
	}
	*current, *neighbor.z = *neighbor.z, *current
	return []LayerChange{
		{ID: entityID, Kind: kind, ZIndex: *current},
		{ID: neighbor.id, Kind: neighbor.kind, ZIndex: *neighbor.z},
	}
}

// BringToFront assigns the entity the next free z-index above everything.
func (s *Store) BringToFront(entityID string) []LayerChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, kind, ok := s.zOf(entityID)
	if !ok {
		return nil
	}
	*current = s.nextZIndex()
	return []LayerChange{{ID: entityID, Kind: kind, ZIndex: *current}}
}

// SendToBack assigns the entity a z-index below everything.
func (s *Store) SendToBack(entityID string) []LayerChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, kind, ok := s.zOf(entityID)
	if !ok {
		return nil
	}
	lowest := *current
	for _, entry := range s.zEntries() {
		if entry.id != entityID && *entry.z < lowest {
			lowest = *entry.z
		}
	}
	*current = lowest - 1
	return []LayerChange{{ID: entityID, Kind: kind, ZIndex: *current}}
}
