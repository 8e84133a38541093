package scene

// ObjectPatch is a partial update for a CanvasObject. Nil fields are left
// untouched; set fields overwrite, last writer wins. The fixed field set keeps
// remote merges statically checkable while still allowing any subset of fields
// per event.
type ObjectPatch struct {
	X            *float64 `json:"x,omitempty"`
	Y            *float64 `json:"y,omitempty"`
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	ZIndex       *int     `json:"zIndex,omitempty"`
	Color        *string  `json:"color,omitempty"`
	BorderColor  *string  `json:"borderColor,omitempty"`
	Text         *string  `json:"text,omitempty"`
	TextColor    *string  `json:"textColor,omitempty"`
	FontSize     *float64 `json:"fontSize,omitempty"`
	CardSubtitle *string  `json:"cardSubtitle,omitempty"`
	CardIcon     *string  `json:"cardIcon,omitempty"`
}

// Apply overwrites the set fields onto the object.
func (p ObjectPatch) Apply(object *CanvasObject) {
	if p.X != nil {
		object.X = *p.X
	}
	if p.Y != nil {
		object.Y = *p.Y
	}
	if p.Width != nil {
		object.Width = *p.Width
	}
	if p.Height != nil {
		object.Height = *p.Height
	}
	if p.ZIndex != nil {
		object.ZIndex = *p.ZIndex
	}
	if p.Color != nil {
		object.Color = *p.Color
	}
	if p.BorderColor != nil {
		object.BorderColor = *p.BorderColor
	}
	if p.Text != nil {
		object.Text = *p.Text
	}
	if p.TextColor != nil {
		object.TextColor = *p.TextColor
	}
	if p.FontSize != nil {
		object.FontSize = *p.FontSize
	}
	if p.CardSubtitle != nil {
		object.CardSubtitle = *p.CardSubtitle
	}
	if p.CardIcon != nil {
		object.CardIcon = *p.CardIcon
	}
}

// MovePatch builds a patch carrying only position.
func MovePatch(x, y float64) ObjectPatch {
	return ObjectPatch{X: &x, Y: &y}
}

// BoundsPatch builds a patch carrying position and size.
func BoundsPatch(x, y, width, height float64) ObjectPatch {
	return ObjectPatch{X: &x, Y: &y, Width: &width, Height: &height}
}

// FullPatch captures every patchable field of the object, for events that
// publish the object's complete current state.
func FullPatch(object *CanvasObject) ObjectPatch {
	x, y := object.X, object.Y
	width, height := object.Width, object.Height
	zIndex := object.ZIndex
	color, borderColor := object.Color, object.BorderColor
	text, textColor := object.Text, object.TextColor
	fontSize := object.FontSize
	cardSubtitle, cardIcon := object.CardSubtitle, object.CardIcon
	return ObjectPatch{
		X:            &x,
		Y:            &y,
		Width:        &width,
		Height:       &height,
		ZIndex:       &zIndex,
		Color:        &color,
		BorderColor:  &borderColor,
		Text:         &text,
		TextColor:    &textColor,
		FontSize:     &fontSize,
		CardSubtitle: &cardSubtitle,
		CardIcon:     &cardIcon,
	}
}

// FullConnectorPatch captures every patchable field of the connector, for
// events that publish the connector's complete current state.
func FullConnectorPatch(connector *Connector) ConnectorPatch {
	connectorType := connector.ConnectorType
	startX, startY := connector.StartX, connector.StartY
	endX, endY := connector.EndX, connector.EndY
	label := connector.Label
	labelPosition := connector.LabelPosition
	zIndex := connector.ZIndex
	patch := ConnectorPatch{
		ConnectorType: &connectorType,
		StartX:        &startX,
		StartY:        &startY,
		EndX:          &endX,
		EndY:          &endY,
		Waypoints:     append([]Point(nil), connector.Waypoints...),
		Label:         &label,
		LabelPosition: &labelPosition,
		ZIndex:        &zIndex,
	}
	if connector.StartAnchor != nil {
		anchor := *connector.StartAnchor
		patch.StartAnchor = &anchor
	} else {
		patch.ClearStartAnchor = true
	}
	if connector.EndAnchor != nil {
		anchor := *connector.EndAnchor
		patch.EndAnchor = &anchor
	} else {
		patch.ClearEndAnchor = true
	}
	if connector.ControlPoint1 != nil {
		point := *connector.ControlPoint1
		patch.ControlPoint1 = &point
	}
	if connector.ControlPoint2 != nil {
		point := *connector.ControlPoint2
		patch.ControlPoint2 = &point
	}
	return patch
}

// ConnectorPatch is a partial update for a Connector. Anchor and control
// point fields use a double-pointer-free encoding: a set field replaces the
// current value, including replacing an anchor with nil via the Clear flags.
type ConnectorPatch struct {
	ConnectorType    *ConnectorType `json:"connectorType,omitempty"`
	StartX           *float64       `json:"startX,omitempty"`
	StartY           *float64       `json:"startY,omitempty"`
	EndX             *float64       `json:"endX,omitempty"`
	EndY             *float64       `json:"endY,omitempty"`
	StartAnchor      *Anchor        `json:"startAnchor,omitempty"`
	EndAnchor        *Anchor        `json:"endAnchor,omitempty"`
	ClearStartAnchor bool           `json:"clearStartAnchor,omitempty"`
	ClearEndAnchor   bool           `json:"clearEndAnchor,omitempty"`
	Waypoints        []Point        `json:"waypoints,omitempty"`
	ControlPoint1    *Point         `json:"controlPoint1,omitempty"`
	ControlPoint2    *Point         `json:"controlPoint2,omitempty"`
	Label            *string        `json:"label,omitempty"`
	LabelPosition    *float64       `json:"labelPosition,omitempty"`
	ZIndex           *int           `json:"zIndex,omitempty"`
}

// Apply overwrites the set fields onto the connector.
func (p ConnectorPatch) Apply(connector *Connector) {
	if p.ConnectorType != nil {
		connector.ConnectorType = *p.ConnectorType
	}
	if p.StartX != nil {
		connector.StartX = *p.StartX
	}
	if p.StartY != nil {
		connector.StartY = *p.StartY
	}
	if p.EndX != nil {
		connector.EndX = *p.EndX
	}
	if p.EndY != nil {
		connector.EndY = *p.EndY
	}
	if p.StartAnchor != nil {
		anchor := *p.StartAnchor
		connector.StartAnchor = &anchor
	} else if p.ClearStartAnchor {
		connector.StartAnchor = nil
	}
	if p.EndAnchor != nil {
		anchor := *p.EndAnchor
		connector.EndAnchor = &anchor
	} else if p.ClearEndAnchor {
		connector.EndAnchor = nil
	}
	if p.Waypoints != nil {
		connector.Waypoints = append([]Point(nil), p.Waypoints...)
	}
	if p.ControlPoint1 != nil {
		point := *p.ControlPoint1
		connector.ControlPoint1 = &point
	}
	if p.ControlPoint2 != nil {
		point := *p.ControlPoint2
		connector.ControlPoint2 = &point
	}
	if p.Label != nil {
		connector.Label = *p.Label
	}
	if p.LabelPosition != nil {
		connector.LabelPosition = *p.LabelPosition
	}
	if p.ZIndex != nil {
		connector.ZIndex = *p.ZIndex
	}
}
