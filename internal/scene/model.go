package scene

import (
	"errors"
	"fmt"
	"strings"
)

// ObjectType enumerates the canvas object variants.
type ObjectType string

const (
	ObjectTypeSticky           ObjectType = "sticky"
	ObjectTypeRectangle        ObjectType = "rectangle"
	ObjectTypeCircle           ObjectType = "circle"
	ObjectTypeDiamond          ObjectType = "diamond"
	ObjectTypeTriangle         ObjectType = "triangle"
	ObjectTypeHexagon          ObjectType = "hexagon"
	ObjectTypeParallelogram    ObjectType = "parallelogram"
	ObjectTypeCylinder         ObjectType = "cylinder"
	ObjectTypeCloud            ObjectType = "cloud"
	ObjectTypeRoundedRectangle ObjectType = "roundedRectangle"
	ObjectTypeDocument         ObjectType = "document"
	ObjectTypeRecord           ObjectType = "record"
	ObjectTypeActivity         ObjectType = "activity"
	ObjectTypeGroup            ObjectType = "group"
)

// ConnectorType enumerates how a connector is routed and decorated.
type ConnectorType string

const (
	ConnectorTypeArrow         ConnectorType = "arrow"
	ConnectorTypeLine          ConnectorType = "line"
	ConnectorTypeElbow         ConnectorType = "elbow"
	ConnectorTypeCurved        ConnectorType = "curved"
	ConnectorTypeBidirectional ConnectorType = "bidirectional"
)

// AnchorPosition names a side of an object a connector endpoint can attach to.
type AnchorPosition string

const (
	AnchorTop    AnchorPosition = "top"
	AnchorBottom AnchorPosition = "bottom"
	AnchorLeft   AnchorPosition = "left"
	AnchorRight  AnchorPosition = "right"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidCanvasID indicates that a canvas identifier is empty or exceeds bounds.
	ErrInvalidCanvasID = errors.New("scene: invalid canvas id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds bounds.
	ErrInvalidUserID = errors.New("scene: invalid user id")
)

// CanvasID represents a validated canvas identifier.
type CanvasID string

// NewCanvasID validates raw input and returns a CanvasID.
func NewCanvasID(rawInput string) (CanvasID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCanvasID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidCanvasID, maxIdentifierLength)
	}
	return CanvasID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CanvasID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// Point is a position in canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChildOffset records a child's position and size relative to its group's
// bounding box at group-creation time, as fractions of the group's dimensions.
type ChildOffset struct {
	FracX float64 `json:"fracX"`
	FracY float64 `json:"fracY"`
	FracW float64 `json:"fracW"`
	FracH float64 `json:"fracH"`
}

// CanvasObject is a positioned, typed entity on the canvas. Group objects
// additionally carry their member ids and the offsets captured when the group
// was created.
type CanvasObject struct {
	ID          string     `json:"id"`
	Type        ObjectType `json:"type"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	ZIndex      int        `json:"zIndex"`
	Color       string     `json:"color,omitempty"`
	BorderColor string     `json:"borderColor,omitempty"`
	Text        string     `json:"text,omitempty"`
	TextColor   string     `json:"textColor,omitempty"`
	FontSize    float64    `json:"fontSize,omitempty"`

	// Card fields, populated for record and activity objects from the
	// directory lookup and synced verbatim like any other field.
	CardSubtitle string `json:"cardSubtitle,omitempty"`
	CardIcon     string `json:"cardIcon,omitempty"`

	// Group fields. Stale ids in Children or ConnectorIDs are tolerated and
	// treated as already removed.
	Children     []string               `json:"children,omitempty"`
	ConnectorIDs []string               `json:"connectorIds,omitempty"`
	ChildOffsets map[string]ChildOffset `json:"childOffsets,omitempty"`
}

// IsGroup reports whether the object is a group container.
func (o *CanvasObject) IsGroup() bool {
	return o.Type == ObjectTypeGroup
}

// Clone returns a deep copy of the object.
func (o *CanvasObject) Clone() *CanvasObject {
	copied := *o
	if o.Children != nil {
		copied.Children = append([]string(nil), o.Children...)
	}
	if o.ConnectorIDs != nil {
		copied.ConnectorIDs = append([]string(nil), o.ConnectorIDs...)
	}
	if o.ChildOffsets != nil {
		copied.ChildOffsets = make(map[string]ChildOffset, len(o.ChildOffsets))
		for childID, offset := range o.ChildOffsets {
			copied.ChildOffsets[childID] = offset
		}
	}
	return &copied
}

// Anchor references a side of an object that a connector endpoint follows.
type Anchor struct {
	ObjectID string         `json:"objectId"`
	Position AnchorPosition `json:"position"`
}

// Connector links two points, each either free-floating or anchored to an
// object. When an anchor is set, the literal endpoint coordinates are only a
// cache of the last resolved anchor position; geometry always re-resolves
// from the live object.
type Connector struct {
	ID            string        `json:"id"`
	ConnectorType ConnectorType `json:"connectorType"`
	StartX        float64       `json:"startX"`
	StartY        float64       `json:"startY"`
	EndX          float64       `json:"endX"`
	EndY          float64       `json:"endY"`
	StartAnchor   *Anchor       `json:"startAnchor,omitempty"`
	EndAnchor     *Anchor       `json:"endAnchor,omitempty"`
	Waypoints     []Point       `json:"waypoints,omitempty"`
	ControlPoint1 *Point        `json:"controlPoint1,omitempty"`
	ControlPoint2 *Point        `json:"controlPoint2,omitempty"`
	Label         string        `json:"label,omitempty"`
	LabelPosition float64       `json:"labelPosition,omitempty"`
	ZIndex        int           `json:"zIndex"`
}

// Clone returns a deep copy of the connector.
func (c *Connector) Clone() *Connector {
	copied := *c
	if c.StartAnchor != nil {
		anchor := *c.StartAnchor
		copied.StartAnchor = &anchor
	}
	if c.EndAnchor != nil {
		anchor := *c.EndAnchor
		copied.EndAnchor = &anchor
	}
	if c.Waypoints != nil {
		copied.Waypoints = append([]Point(nil), c.Waypoints...)
	}
	if c.ControlPoint1 != nil {
		point := *c.ControlPoint1
		copied.ControlPoint1 = &point
	}
	if c.ControlPoint2 != nil {
		point := *c.ControlPoint2
		copied.ControlPoint2 = &point
	}
	return &copied
}

// Stroke is a finished freehand drawing. Points are append-only while the
// stroke is being drawn and immutable once complete.
type Stroke struct {
	ID     string  `json:"id"`
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	ZIndex int     `json:"zIndex"`
}

// Clone returns a deep copy of the stroke.
func (s *Stroke) Clone() *Stroke {
	copied := *s
	copied.Points = append([]Point(nil), s.Points...)
	return &copied
}

// Scene is the aggregate persisted as one snapshot blob.
type Scene struct {
	Objects    []*CanvasObject `json:"objects"`
	Strokes    []*Stroke       `json:"strokes"`
	Connectors []*Connector    `json:"connectors"`
}
