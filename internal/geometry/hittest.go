package geometry

import (
	"math"

	"github.com/inkforge/boardsync/internal/scene"
)

// Rect is an axis-aligned rectangle, used for marquee selection.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Normalized returns the rect with non-negative width and height, so a
// marquee dragged in any direction compares the same.
func (r Rect) Normalized() Rect {
	if r.Width < 0 {
		r.X += r.Width
		r.Width = -r.Width
	}
	if r.Height < 0 {
		r.Y += r.Height
		r.Height = -r.Height
	}
	return r
}

// Contains reports whether the point lies inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether two rects overlap. Partial overlap counts.
func (r Rect) Intersects(other Rect) bool {
	return r.X < other.X+other.Width && r.X+r.Width > other.X &&
		r.Y < other.Y+other.Height && r.Y+r.Height > other.Y
}

// ObjectBounds returns the object's bounding box as a Rect.
func ObjectBounds(object *scene.CanvasObject) Rect {
	return Rect{X: object.X, Y: object.Y, Width: object.Width, Height: object.Height}
}

// HitObject reports whether the point falls inside the object's shape.
func HitObject(object *scene.CanvasObject, x, y float64) bool {
	if object.Width <= 0 || object.Height <= 0 {
		return false
	}
	halfW := object.Width / 2
	halfH := object.Height / 2
	centerX := object.X + halfW
	centerY := object.Y + halfH
	dx := x - centerX
	dy := y - centerY

	switch object.Type {
	case scene.ObjectTypeCircle, scene.ObjectTypeHexagon:
		// Hexagon uses the ellipse approximation.
		nx := dx / halfW
		ny := dy / halfH
		return nx*nx+ny*ny <= 1
	case scene.ObjectTypeDiamond:
		return math.Abs(dx)/halfW+math.Abs(dy)/halfH <= 1
	case scene.ObjectTypeTriangle:
		apex := scene.Point{X: centerX, Y: object.Y}
		left := scene.Point{X: object.X, Y: object.Y + object.Height}
		right := scene.Point{X: object.X + object.Width, Y: object.Y + object.Height}
		return pointInTriangle(scene.Point{X: x, Y: y}, apex, left, right)
	case scene.ObjectTypeParallelogram:
		skew := object.Width * 0.2
		polygon := []scene.Point{
			{X: object.X + skew, Y: object.Y},
			{X: object.X + object.Width, Y: object.Y},
			{X: object.X + object.Width - skew, Y: object.Y + object.Height},
			{X: object.X, Y: object.Y + object.Height},
		}
		return pointInPolygon(scene.Point{X: x, Y: y}, polygon)
	default:
		return ObjectBounds(object).Contains(x, y)
	}
}

// pointInTriangle uses barycentric coordinates.
func pointInTriangle(p, a, b, c scene.Point) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(p.X-c.X) + (c.X-b.X)*(p.Y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(p.X-c.X) + (a.X-c.X)*(p.Y-c.Y)) / denom
	gamma := 1 - alpha - beta
	return alpha >= 0 && beta >= 0 && gamma >= 0
}

// pointInPolygon casts a ray along +X and counts edge crossings.
func pointInPolygon(p scene.Point, polygon []scene.Point) bool {
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi := polygon[i]
		pj := polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) &&
			p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// HitConnector reports whether the point lies within tolerance of the
// connector's resolved path. Straight and elbow connectors check each
// segment; curved connectors check distance to the fixed bezier samples.
func HitConnector(connector *scene.Connector, lookup ObjectLookup, x, y, tolerance float64) bool {
	points := PathPoints(connector, lookup)
	target := scene.Point{X: x, Y: y}
	if connector.ConnectorType == scene.ConnectorTypeCurved {
		for _, sample := range points {
			if distance(target, sample) <= tolerance {
				return true
			}
		}
		return false
	}
	for i := 0; i < len(points)-1; i++ {
		if pointSegmentDistance(target, points[i], points[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

// HitStroke reports whether the point lies within tolerance of any stroke
// segment.
func HitStroke(stroke *scene.Stroke, x, y, tolerance float64) bool {
	target := scene.Point{X: x, Y: y}
	if len(stroke.Points) == 1 {
		return distance(target, stroke.Points[0]) <= tolerance
	}
	for i := 0; i < len(stroke.Points)-1; i++ {
		if pointSegmentDistance(target, stroke.Points[i], stroke.Points[i+1]) <= tolerance {
			return true
		}
	}
	return false
}

// MarqueeHitsObject reports whether the object's bounding box overlaps the
// marquee. Partial overlap selects.
func MarqueeHitsObject(object *scene.CanvasObject, marquee Rect) bool {
	return marquee.Normalized().Intersects(ObjectBounds(object))
}

// MarqueeHitsConnector reports whether any of the connector's resolved
// endpoints, waypoints, control points, or path segments intersect the
// marquee rectangle.
func MarqueeHitsConnector(connector *scene.Connector, lookup ObjectLookup, marquee Rect) bool {
	marquee = marquee.Normalized()
	start, end := ResolveEndpoints(connector, lookup)
	if marquee.Contains(start.X, start.Y) || marquee.Contains(end.X, end.Y) {
		return true
	}
	for _, waypoint := range connector.Waypoints {
		if marquee.Contains(waypoint.X, waypoint.Y) {
			return true
		}
	}
	if connector.ControlPoint1 != nil && marquee.Contains(connector.ControlPoint1.X, connector.ControlPoint1.Y) {
		return true
	}
	if connector.ControlPoint2 != nil && marquee.Contains(connector.ControlPoint2.X, connector.ControlPoint2.Y) {
		return true
	}
	points := PathPoints(connector, lookup)
	for i := 0; i < len(points)-1; i++ {
		if segmentIntersectsRect(points[i], points[i+1], marquee) {
			return true
		}
	}
	return false
}

func segmentIntersectsRect(a, b scene.Point, rect Rect) bool {
	if rect.Contains(a.X, a.Y) || rect.Contains(b.X, b.Y) {
		return true
	}
	corners := []scene.Point{
		{X: rect.X, Y: rect.Y},
		{X: rect.X + rect.Width, Y: rect.Y},
		{X: rect.X + rect.Width, Y: rect.Y + rect.Height},
		{X: rect.X, Y: rect.Y + rect.Height},
	}
	for i := 0; i < 4; i++ {
		if segmentsIntersect(a, b, corners[i], corners[(i+1)%4]) {
			return true
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 scene.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func cross(a, b, c scene.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p scene.Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

func pointSegmentDistance(p, a, b scene.Point) float64 {
	abX := b.X - a.X
	abY := b.Y - a.Y
	lengthSq := abX*abX + abY*abY
	if lengthSq == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*abX + (p.Y-a.Y)*abY) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return distance(p, scene.Point{X: a.X + t*abX, Y: a.Y + t*abY})
}

func distance(a, b scene.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
