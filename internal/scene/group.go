package scene

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGroup indicates a group was requested with no resolvable members.
	ErrEmptyGroup = errors.New("scene: group needs at least one member")
)

// CreateGroup builds a group object over the given members and grouped
// connectors. The group's own bounding box is the union of its members'
// boxes at creation time, and each member's relative position and size are
// captured as fractional child offsets. Stale member ids are skipped.
func (s *Store) CreateGroup(groupID string, memberIDs []string, connectorIDs []string) (*CanvasObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idInUse(groupID) {
		return nil, fmt.Errorf("scene: group id %q already in use", groupID)
	}

	var members []*CanvasObject
	var children []string
	for _, memberID := range memberIDs {
		member := s.findObject(memberID)
		if member == nil {
			continue
		}
		members = append(members, member)
		children = append(children, memberID)
	}
	if len(members) == 0 {
		return nil, ErrEmptyGroup
	}

	minX, minY := members[0].X, members[0].Y
	maxX, maxY := members[0].X+members[0].Width, members[0].Y+members[0].Height
	for _, member := range members[1:] {
		if member.X < minX {
			minX = member.X
		}
		if member.Y < minY {
			minY = member.Y
		}
		if member.X+member.Width > maxX {
			maxX = member.X + member.Width
		}
		if member.Y+member.Height > maxY {
			maxY = member.Y + member.Height
		}
	}
	width := maxX - minX
	height := maxY - minY

	offsets := make(map[string]ChildOffset, len(members))
	for _, member := range members {
		offset := ChildOffset{}
		if width > 0 {
			offset.FracX = (member.X - minX) / width
			offset.FracW = member.Width / width
		}
		if height > 0 {
			offset.FracY = (member.Y - minY) / height
			offset.FracH = member.Height / height
		}
		offsets[member.ID] = offset
	}

	var grouped []string
	for _, connectorID := range connectorIDs {
		if s.findConnector(connectorID) != nil {
			grouped = append(grouped, connectorID)
		}
	}

	group := &CanvasObject{
		ID:           groupID,
		Type:         ObjectTypeGroup,
		X:            minX,
		Y:            minY,
		Width:        width,
		Height:       height,
		ZIndex:       s.nextZIndex(),
		Children:     children,
		ConnectorIDs: grouped,
		ChildOffsets: offsets,
	}
	s.objects = append(s.objects, group)
	return group.Clone(), nil
}

// Ungroup removes the group container. Children already exist as independent
// objects and are untouched. Removing an unknown or non-group id is a no-op.
func (s *Store) Ungroup(groupID string) (*CanvasObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group := s.findObject(groupID)
	if group == nil || !group.IsGroup() {
		return nil, false
	}
	removed := group.Clone()
	s.deleteObject(groupID)
	return removed, true
}

// ResizeObject sets the object's bounds. Resizing a group changes only the
// container's own box: child offsets are captured at creation but not
// re-applied here, matching the container-only resize semantics.
func (s *Store) ResizeObject(objectID string, x, y, width, height float64) (*CanvasObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object := s.findObject(objectID)
	if object == nil {
		return nil, false
	}
	object.X = x
	object.Y = y
	object.Width = width
	object.Height = height
	return object.Clone(), true
}
