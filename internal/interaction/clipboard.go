package interaction

import (
	"github.com/inkforge/boardsync/internal/history"
	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

// pasteOffsetStep is how far each successive paste is displaced, so repeated
// pastes stack visibly instead of overlapping exactly.
const pasteOffsetStep = 20.0

// Clipboard is a transient local-only buffer of deep copies. It is never
// transmitted; paste re-materializes the copies with fresh ids.
type Clipboard struct {
	objects    []*scene.CanvasObject
	connectors []*scene.Connector
	pasteCount int
}

// Empty reports whether there is anything to paste.
func (cb *Clipboard) Empty() bool {
	return len(cb.objects) == 0 && len(cb.connectors) == 0
}

// Copy snapshots the current selection into the clipboard and resets the
// paste stacking counter. A selected group pulls its descendants and grouped
// connectors along even when they are not themselves selected, so the paste
// rebuilds a populated group instead of an empty container.
func (c *Controller) Copy() {
	if len(c.selectedObjectIDs) == 0 && len(c.selectedConnectorIDs) == 0 {
		return
	}
	c.clipboard = Clipboard{}
	copied := map[string]bool{}
	for _, objectID := range c.selectedObjectIDs {
		c.copyObjectSubtree(objectID, copied)
	}
	for _, connectorID := range c.selectedConnectorIDs {
		if copied[connectorID] {
			continue
		}
		if connector, ok := c.store.Connector(connectorID); ok {
			copied[connectorID] = true
			c.clipboard.connectors = append(c.clipboard.connectors, connector)
		}
	}
}

func (c *Controller) copyObjectSubtree(objectID string, copied map[string]bool) {
	if copied[objectID] {
		return
	}
	object, ok := c.store.Object(objectID)
	if !ok {
		return
	}
	copied[objectID] = true
	c.clipboard.objects = append(c.clipboard.objects, object)
	if !object.IsGroup() {
		return
	}
	for _, childID := range object.Children {
		c.copyObjectSubtree(childID, copied)
	}
	for _, connectorID := range object.ConnectorIDs {
		if copied[connectorID] {
			continue
		}
		if connector, ok := c.store.Connector(connectorID); ok {
			copied[connectorID] = true
			c.clipboard.connectors = append(c.clipboard.connectors, connector)
		}
	}
}

// Cut copies the selection and then deletes it.
func (c *Controller) Cut() {
	c.Copy()
	c.DeleteSelection()
}

// Paste inserts clones of the clipboard contents with fresh ids. Group
// children and connector anchor references are remapped through an
// old-id-to-new-id table; references to entities outside the clipboard are
// dropped. Geometry is offset by an increasing multiple of the paste step.
// The pasted entities become the new selection.
func (c *Controller) Paste() []string {
	if c.clipboard.Empty() {
		return nil
	}
	c.clipboard.pasteCount++
	offset := pasteOffsetStep * float64(c.clipboard.pasteCount)

	idMap := make(map[string]string, len(c.clipboard.objects)+len(c.clipboard.connectors))
	for _, object := range c.clipboard.objects {
		newID, err := c.ids.NewID()
		if err != nil {
			c.logger.Error("paste id generation failed", zap.Error(err))
			return nil
		}
		idMap[object.ID] = newID
	}
	for _, connector := range c.clipboard.connectors {
		newID, err := c.ids.NewID()
		if err != nil {
			c.logger.Error("paste id generation failed", zap.Error(err))
			return nil
		}
		idMap[connector.ID] = newID
	}

	var pastedIDs []string
	for _, original := range c.clipboard.objects {
		pasted := original.Clone()
		pasted.ID = idMap[original.ID]
		pasted.X += offset
		pasted.Y += offset
		pasted.ZIndex = c.store.NextZIndex()
		remapGroupRefs(pasted, idMap)
		if !c.store.AddObject(pasted) {
			continue
		}
		c.sync.PublishObjectAdd(pasted)
		c.history.Record(history.ActionObjectAdd, history.ObjectRefData{ObjectID: pasted.ID})
		pastedIDs = append(pastedIDs, pasted.ID)
	}
	var pastedConnectorIDs []string
	for _, original := range c.clipboard.connectors {
		pasted := original.Clone()
		pasted.ID = idMap[original.ID]
		pasted.ZIndex = c.store.NextZIndex()
		remapConnectorRefs(pasted, idMap, offset)
		if !c.store.AddConnector(pasted) {
			continue
		}
		c.sync.PublishConnectorAdd(pasted)
		c.history.Record(history.ActionConnectorAdd, history.ConnectorRefData{ConnectorID: pasted.ID})
		pastedConnectorIDs = append(pastedConnectorIDs, pasted.ID)
	}

	c.ClearSelection()
	c.selectedObjectIDs = append(c.selectedObjectIDs, pastedIDs...)
	c.selectedConnectorIDs = append(c.selectedConnectorIDs, pastedConnectorIDs...)
	return append(append([]string(nil), pastedIDs...), pastedConnectorIDs...)
}

func remapGroupRefs(object *scene.CanvasObject, idMap map[string]string) {
	if !object.IsGroup() {
		return
	}
	var children []string
	for _, childID := range object.Children {
		if newID, ok := idMap[childID]; ok {
			children = append(children, newID)
		}
	}
	object.Children = children
	var connectors []string
	for _, connectorID := range object.ConnectorIDs {
		if newID, ok := idMap[connectorID]; ok {
			connectors = append(connectors, newID)
		}
	}
	object.ConnectorIDs = connectors
	if object.ChildOffsets != nil {
		offsets := make(map[string]scene.ChildOffset, len(object.ChildOffsets))
		for childID, offset := range object.ChildOffsets {
			if newID, ok := idMap[childID]; ok {
				offsets[newID] = offset
			}
		}
		object.ChildOffsets = offsets
	}
}

// remapConnectorRefs rewrites anchors to pasted objects. An anchor to an
// object outside the clipboard is dropped and replaced with its cached
// literal coordinates, offset along with everything else.
func remapConnectorRefs(connector *scene.Connector, idMap map[string]string, offset float64) {
	if connector.StartAnchor != nil {
		if newID, ok := idMap[connector.StartAnchor.ObjectID]; ok {
			connector.StartAnchor.ObjectID = newID
		} else {
			connector.StartAnchor = nil
		}
	}
	if connector.EndAnchor != nil {
		if newID, ok := idMap[connector.EndAnchor.ObjectID]; ok {
			connector.EndAnchor.ObjectID = newID
		} else {
			connector.EndAnchor = nil
		}
	}
	connector.StartX += offset
	connector.StartY += offset
	connector.EndX += offset
	connector.EndY += offset
	for i := range connector.Waypoints {
		connector.Waypoints[i].X += offset
		connector.Waypoints[i].Y += offset
	}
	if connector.ControlPoint1 != nil {
		connector.ControlPoint1.X += offset
		connector.ControlPoint1.Y += offset
	}
	if connector.ControlPoint2 != nil {
		connector.ControlPoint2.X += offset
		connector.ControlPoint2.Y += offset
	}
}
