package geometry

import (
	"testing"

	"github.com/inkforge/boardsync/internal/scene"
	"go.uber.org/zap"
)

func anchorTestStore(testContext *testing.T) *scene.Store {
	testContext.Helper()
	return scene.NewStore(zap.NewNop())
}

func TestAnchorPointUsesEdgeMidpointsForBoxShapes(testContext *testing.T) {
	object := &scene.CanvasObject{
		ID: "obj-1", Type: scene.ObjectTypeRectangle,
		X: 100, Y: 200, Width: 80, Height: 40,
	}

	right := AnchorPoint(object, scene.AnchorRight)
	if right.X != 180 || right.Y != 220 {
		testContext.Fatalf("expected right anchor (180, 220), got (%v, %v)", right.X, right.Y)
	}
	top := AnchorPoint(object, scene.AnchorTop)
	if top.X != 140 || top.Y != 200 {
		testContext.Fatalf("expected top anchor (140, 200), got (%v, %v)", top.X, top.Y)
	}
}

func TestAnchorPointPlacesTriangleSideAnchorsOnBaseCorners(testContext *testing.T) {
	object := &scene.CanvasObject{
		ID: "obj-1", Type: scene.ObjectTypeTriangle,
		X: 0, Y: 0, Width: 100, Height: 100,
	}

	left := AnchorPoint(object, scene.AnchorLeft)
	if left.X != 0 || left.Y != 100 {
		testContext.Fatalf("expected left anchor on base corner (0, 100), got (%v, %v)", left.X, left.Y)
	}
	top := AnchorPoint(object, scene.AnchorTop)
	if top.X != 50 || top.Y != 0 {
		testContext.Fatalf("expected apex anchor (50, 0), got (%v, %v)", top.X, top.Y)
	}
}

func TestResolveEndpointsFollowsMovedObject(testContext *testing.T) {
	store := anchorTestStore(testContext)
	object := &scene.CanvasObject{
		ID: "obj-1", Type: scene.ObjectTypeRectangle,
		X: 0, Y: 0, Width: 100, Height: 60, ZIndex: 1,
	}
	if !store.AddObject(object) {
		testContext.Fatalf("expected object to be added")
	}
	connector := &scene.Connector{
		ID:          "conn-1",
		StartAnchor: &scene.Anchor{ObjectID: "obj-1", Position: scene.AnchorRight},
		StartX:      100, StartY: 30,
		EndX: 400, EndY: 30,
	}

	start, _ := ResolveEndpoints(connector, store)
	if start.X != 100 || start.Y != 30 {
		testContext.Fatalf("expected initial resolved start (100, 30), got (%v, %v)", start.X, start.Y)
	}

	store.TranslateObject("obj-1", 50, 10)

	start, end := ResolveEndpoints(connector, store)
	if start.X != 150 || start.Y != 40 {
		testContext.Fatalf("expected resolved start to follow object to (150, 40), got (%v, %v)", start.X, start.Y)
	}
	if end.X != 400 || end.Y != 30 {
		testContext.Fatalf("expected floating end untouched, got (%v, %v)", end.X, end.Y)
	}
}

func TestResolveEndpointsFallsBackToCacheForMissingObject(testContext *testing.T) {
	store := anchorTestStore(testContext)
	connector := &scene.Connector{
		ID:          "conn-1",
		StartAnchor: &scene.Anchor{ObjectID: "ghost", Position: scene.AnchorLeft},
		StartX:      7, StartY: 9,
		EndX: 11, EndY: 13,
	}

	start, _ := ResolveEndpoints(connector, store)
	if start.X != 7 || start.Y != 9 {
		testContext.Fatalf("expected literal fallback (7, 9), got (%v, %v)", start.X, start.Y)
	}
}

func TestPathPointsThreadsElbowWaypoints(testContext *testing.T) {
	store := anchorTestStore(testContext)
	connector := &scene.Connector{
		ID:            "conn-1",
		ConnectorType: scene.ConnectorTypeElbow,
		StartX:        0, StartY: 0,
		EndX: 100, EndY: 100,
		Waypoints: []scene.Point{{X: 100, Y: 0}},
	}

	points := PathPoints(connector, store)
	if len(points) != 3 {
		testContext.Fatalf("expected 3 path points, got %d", len(points))
	}
	if points[1].X != 100 || points[1].Y != 0 {
		testContext.Fatalf("expected waypoint in the middle, got (%v, %v)", points[1].X, points[1].Y)
	}
}

func TestSampleBezierHitsBothEndpoints(testContext *testing.T) {
	start := scene.Point{X: 0, Y: 0}
	end := scene.Point{X: 90, Y: 0}
	control := scene.Point{X: 45, Y: 60}

	samples := SampleBezier(start, end, &control, &control, 20)
	if len(samples) != 20 {
		testContext.Fatalf("expected 20 samples, got %d", len(samples))
	}
	if samples[0] != start {
		testContext.Fatalf("expected first sample at start, got %+v", samples[0])
	}
	if samples[len(samples)-1] != end {
		testContext.Fatalf("expected last sample at end, got %+v", samples[len(samples)-1])
	}
	if samples[10].Y <= 0 {
		testContext.Fatalf("expected interior samples pulled toward control point, got %+v", samples[10])
	}
}

func TestPointAlongPathAtMidpoint(testContext *testing.T) {
	store := anchorTestStore(testContext)
	connector := &scene.Connector{
		ID:     "conn-1",
		StartX: 0, StartY: 0,
		EndX: 100, EndY: 0,
	}

	mid := PointAlongPath(connector, store, 0.5)
	if mid.X != 50 || mid.Y != 0 {
		testContext.Fatalf("expected midpoint (50, 0), got (%v, %v)", mid.X, mid.Y)
	}
}
