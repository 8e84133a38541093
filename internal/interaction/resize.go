package interaction

import (
	"math"

	"github.com/inkforge/boardsync/internal/history"
	"github.com/inkforge/boardsync/internal/scene"
)

// Handle names one of the eight resize positions around a selected object.
type Handle int

const (
	HandleTopLeft Handle = iota
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
)

const (
	handleTolerance = 8.0
	maxDimension    = 4000.0
)

type minSize struct {
	width  float64
	height float64
}

// minSizes is the per-type minimum dimensions table; types not listed use
// the default.
var minSizes = map[scene.ObjectType]minSize{
	scene.ObjectTypeSticky:   {width: 80, height: 80},
	scene.ObjectTypeRecord:   {width: 140, height: 60},
	scene.ObjectTypeActivity: {width: 140, height: 60},
	scene.ObjectTypeGroup:    {width: 60, height: 60},
}

var defaultMinSize = minSize{width: 40, height: 40}

type resizeState struct {
	objectID string
	handle   Handle
	// Bounds at gesture start, for the undo record and for the anchored
	// corner/edge the handle drags against.
	startX float64
	startY float64
	startW float64
	startH float64
}

func handlePoints(object *scene.CanvasObject) [8]scene.Point {
	left, top := object.X, object.Y
	right, bottom := object.X+object.Width, object.Y+object.Height
	midX := object.X + object.Width/2
	midY := object.Y + object.Height/2
	return [8]scene.Point{
		HandleTopLeft:     {X: left, Y: top},
		HandleTop:         {X: midX, Y: top},
		HandleTopRight:    {X: right, Y: top},
		HandleRight:       {X: right, Y: midY},
		HandleBottomRight: {X: right, Y: bottom},
		HandleBottom:      {X: midX, Y: bottom},
		HandleBottomLeft:  {X: left, Y: bottom},
		HandleLeft:        {X: left, Y: midY},
	}
}

func (c *Controller) handleAt(objectID string, x, y float64) (Handle, bool) {
	object, ok := c.store.Object(objectID)
	if !ok {
		return 0, false
	}
	for handle, point := range handlePoints(object) {
		if math.Abs(x-point.X) <= handleTolerance && math.Abs(y-point.Y) <= handleTolerance {
			return Handle(handle), true
		}
	}
	return 0, false
}

func (c *Controller) startResize(objectID string, handle Handle, x, y float64) {
	object, ok := c.store.Object(objectID)
	if !ok {
		return
	}
	c.gesture = gestureResize
	c.resize = resizeState{
		objectID: objectID,
		handle:   handle,
		startX:   object.X,
		startY:   object.Y,
		startW:   object.Width,
		startH:   object.Height,
	}
	c.lastX, c.lastY = x, y
}

// resizeMove recomputes the object's bounds from the dragged handle. The
// opposite corner or edge stays anchored; shift preserves the start aspect
// ratio; alt disables grid snap.
func (c *Controller) resizeMove(x, y float64, mods Modifiers) {
	state := c.resize
	object, ok := c.store.Object(state.objectID)
	if !ok {
		return
	}

	left := state.startX
	top := state.startY
	right := state.startX + state.startW
	bottom := state.startY + state.startH

	switch state.handle {
	case HandleTopLeft:
		left, top = x, y
	case HandleTop:
		top = y
	case HandleTopRight:
		right, top = x, y
	case HandleRight:
		right = x
	case HandleBottomRight:
		right, bottom = x, y
	case HandleBottom:
		bottom = y
	case HandleBottomLeft:
		left, bottom = x, y
	case HandleLeft:
		left = x
	}

	newX, newW := orderSpan(left, right)
	newY, newH := orderSpan(top, bottom)

	if !mods.Alt {
		newX = snap(newX)
		newY = snap(newY)
		newW = snap(newW)
		newH = snap(newH)
	}

	min := minSizes[object.Type]
	if min.width == 0 {
		min = defaultMinSize
	}
	if newW < min.width {
		newW = min.width
	}
	if newH < min.height {
		newH = min.height
	}
	if newW > maxDimension {
		newW = maxDimension
	}
	if newH > maxDimension {
		newH = maxDimension
	}

	if mods.Shift && state.startW > 0 && state.startH > 0 {
		ratio := state.startW / state.startH
		if newW/newH > ratio {
			newW = newH * ratio
		} else {
			newH = newW / ratio
		}
	}

	c.store.ResizeObject(state.objectID, newX, newY, newW, newH)
}

func (c *Controller) finishResize() {
	state := c.resize
	object, ok := c.store.Object(state.objectID)
	if !ok {
		return
	}
	changed := object.X != state.startX || object.Y != state.startY ||
		object.Width != state.startW || object.Height != state.startH
	if !changed {
		return
	}
	c.history.Record(history.ActionObjectResize, history.BoundsData{
		ObjectID:       state.objectID,
		PreviousX:      state.startX,
		PreviousY:      state.startY,
		PreviousWidth:  state.startW,
		PreviousHeight: state.startH,
	})
	c.sync.PublishObjectResize(state.objectID,
		scene.BoundsPatch(object.X, object.Y, object.Width, object.Height))
}

func orderSpan(a, b float64) (float64, float64) {
	if b < a {
		a, b = b, a
	}
	return a, b - a
}

func snap(value float64) float64 {
	return math.Round(value/gridSize) * gridSize
}
