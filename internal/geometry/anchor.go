// Package geometry holds the pure shape math: anchor resolution, hit
// testing, and connector path sampling. Nothing here mutates the scene.
package geometry

import (
	"github.com/inkforge/boardsync/internal/scene"
)

// ObjectLookup resolves an object id against the live scene.
type ObjectLookup interface {
	Object(objectID string) (*scene.CanvasObject, bool)
}

// AnchorPoint returns the attachment point for a named side of an object.
// Diamond and triangle anchors sit on vertices; every other shape uses the
// midpoints of its bounding box edges.
func AnchorPoint(object *scene.CanvasObject, position scene.AnchorPosition) scene.Point {
	centerX := object.X + object.Width/2
	centerY := object.Y + object.Height/2
	switch object.Type {
	case scene.ObjectTypeDiamond:
		switch position {
		case scene.AnchorTop:
			return scene.Point{X: centerX, Y: object.Y}
		case scene.AnchorBottom:
			return scene.Point{X: centerX, Y: object.Y + object.Height}
		case scene.AnchorLeft:
			return scene.Point{X: object.X, Y: centerY}
		case scene.AnchorRight:
			return scene.Point{X: object.X + object.Width, Y: centerY}
		}
	case scene.ObjectTypeTriangle:
		// Apex on top, base along the bottom edge.
		switch position {
		case scene.AnchorTop:
			return scene.Point{X: centerX, Y: object.Y}
		case scene.AnchorBottom:
			return scene.Point{X: centerX, Y: object.Y + object.Height}
		case scene.AnchorLeft:
			return scene.Point{X: object.X, Y: object.Y + object.Height}
		case scene.AnchorRight:
			return scene.Point{X: object.X + object.Width, Y: object.Y + object.Height}
		}
	default:
		switch position {
		case scene.AnchorTop:
			return scene.Point{X: centerX, Y: object.Y}
		case scene.AnchorBottom:
			return scene.Point{X: centerX, Y: object.Y + object.Height}
		case scene.AnchorLeft:
			return scene.Point{X: object.X, Y: centerY}
		case scene.AnchorRight:
			return scene.Point{X: object.X + object.Width, Y: centerY}
		}
	}
	return scene.Point{X: centerX, Y: centerY}
}

// ResolveEndpoints returns the connector's live start and end points. An
// anchored endpoint is recomputed from the referenced object's current
// geometry on every call; the literal coordinates are only a cache. If the
// anchored object no longer exists the literal coordinates are the fallback.
func ResolveEndpoints(connector *scene.Connector, lookup ObjectLookup) (scene.Point, scene.Point) {
	start := scene.Point{X: connector.StartX, Y: connector.StartY}
	end := scene.Point{X: connector.EndX, Y: connector.EndY}
	if connector.StartAnchor != nil {
		if object, ok := lookup.Object(connector.StartAnchor.ObjectID); ok {
			start = AnchorPoint(object, connector.StartAnchor.Position)
		}
	}
	if connector.EndAnchor != nil {
		if object, ok := lookup.Object(connector.EndAnchor.ObjectID); ok {
			end = AnchorPoint(object, connector.EndAnchor.Position)
		}
	}
	return start, end
}

// PathPoints returns the polyline the connector follows, endpoints resolved.
// Elbow connectors thread their waypoints; curved connectors are sampled at a
// fixed count; straight connectors are a single segment.
func PathPoints(connector *scene.Connector, lookup ObjectLookup) []scene.Point {
	start, end := ResolveEndpoints(connector, lookup)
	switch connector.ConnectorType {
	case scene.ConnectorTypeElbow:
		points := make([]scene.Point, 0, len(connector.Waypoints)+2)
		points = append(points, start)
		points = append(points, connector.Waypoints...)
		points = append(points, end)
		return points
	case scene.ConnectorTypeCurved:
		return SampleBezier(start, end, connector.ControlPoint1, connector.ControlPoint2, bezierSampleCount)
	default:
		return []scene.Point{start, end}
	}
}

const bezierSampleCount = 20

// SampleBezier evaluates a cubic bezier at count evenly spaced parameters,
// inclusive of both endpoints. Missing control points degrade toward a
// straight segment.
func SampleBezier(start, end scene.Point, control1, control2 *scene.Point, count int) []scene.Point {
	if count < 2 {
		count = 2
	}
	c1 := start
	if control1 != nil {
		c1 = *control1
	}
	c2 := end
	if control2 != nil {
		c2 = *control2
	}
	samples := make([]scene.Point, 0, count)
	for i := 0; i < count; i++ {
		t := float64(i) / float64(count-1)
		samples = append(samples, bezierPoint(start, c1, c2, end, t))
	}
	return samples
}

func bezierPoint(p0, p1, p2, p3 scene.Point, t float64) scene.Point {
	inv := 1 - t
	a := inv * inv * inv
	b := 3 * inv * inv * t
	c := 3 * inv * t * t
	d := t * t * t
	return scene.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// PointAlongPath returns the position at fraction t of the connector's
// resolved path length, used to place connector labels.
func PointAlongPath(connector *scene.Connector, lookup ObjectLookup, t float64) scene.Point {
	points := PathPoints(connector, lookup)
	if len(points) == 1 {
		return points[0]
	}
	if t <= 0 {
		return points[0]
	}
	if t >= 1 {
		return points[len(points)-1]
	}
	total := 0.0
	lengths := make([]float64, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		lengths[i] = distance(points[i], points[i+1])
		total += lengths[i]
	}
	if total == 0 {
		return points[0]
	}
	target := t * total
	for i, length := range lengths {
		if target <= length && length > 0 {
			f := target / length
			return scene.Point{
				X: points[i].X + (points[i+1].X-points[i].X)*f,
				Y: points[i].Y + (points[i+1].Y-points[i].Y)*f,
			}
		}
		target -= length
	}
	return points[len(points)-1]
}
