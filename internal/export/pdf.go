// Package export renders a scene snapshot to a PDF document.
package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/inkforge/boardsync/internal/geometry"
	"github.com/inkforge/boardsync/internal/scene"
	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthMM  = 297.0
	pageHeightMM = 210.0
	pageMarginMM = 10.0
)

// WritePDF renders the scene onto a single landscape A4 page, scaled to
// fit. Groups render as dashed outlines; connectors re-resolve their
// anchored endpoints against the snapshot before drawing.
func WritePDF(w io.Writer, snapshot *scene.Scene) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 8)

	if snapshot == nil {
		return pdf.Output(w)
	}

	minX, minY, scaling := fitToPage(snapshot)
	mapX := func(x float64) float64 { return pageMarginMM + (x-minX)*scaling }
	mapY := func(y float64) float64 { return pageMarginMM + (y-minY)*scaling }
	lookup := newSnapshotLookup(snapshot)

	pdf.SetLineWidth(0.3)
	for _, stroke := range snapshot.Strokes {
		r, g, b := parseHexColor(stroke.Color)
		pdf.SetDrawColor(r, g, b)
		for i := 1; i < len(stroke.Points); i++ {
			pdf.Line(
				mapX(stroke.Points[i-1].X), mapY(stroke.Points[i-1].Y),
				mapX(stroke.Points[i].X), mapY(stroke.Points[i].Y),
			)
		}
	}

	for _, connector := range snapshot.Connectors {
		pdf.SetDrawColor(0, 0, 0)
		points := geometry.PathPoints(connector, lookup)
		for i := 1; i < len(points); i++ {
			pdf.Line(
				mapX(points[i-1].X), mapY(points[i-1].Y),
				mapX(points[i].X), mapY(points[i].Y),
			)
		}
		if connector.Label != "" && len(points) > 1 {
			at := geometry.PointAlongPath(connector, lookup, connector.LabelPosition)
			pdf.Text(mapX(at.X), mapY(at.Y), connector.Label)
		}
	}

	for _, object := range snapshot.Objects {
		drawObject(pdf, object, mapX, mapY, scaling)
	}

	return pdf.Output(w)
}

func drawObject(pdf *gofpdf.Fpdf, object *scene.CanvasObject, mapX, mapY func(float64) float64, scaling float64) {
	x, y := mapX(object.X), mapY(object.Y)
	w, h := object.Width*scaling, object.Height*scaling

	r, g, b := parseHexColor(object.BorderColor)
	pdf.SetDrawColor(r, g, b)
	fr, fg, fb := parseHexColor(object.Color)
	pdf.SetFillColor(fr, fg, fb)

	if object.IsGroup() {
		pdf.SetDashPattern([]float64{1.5, 1.5}, 0)
		pdf.Rect(x, y, w, h, "D")
		pdf.SetDashPattern(nil, 0)
		return
	}

	switch object.Type {
	case scene.ObjectTypeCircle, scene.ObjectTypeHexagon:
		pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, "FD")
	case scene.ObjectTypeDiamond:
		pdf.Polygon([]gofpdf.PointType{
			{X: x + w/2, Y: y},
			{X: x + w, Y: y + h/2},
			{X: x + w/2, Y: y + h},
			{X: x, Y: y + h/2},
		}, "FD")
	case scene.ObjectTypeTriangle:
		pdf.Polygon([]gofpdf.PointType{
			{X: x + w/2, Y: y},
			{X: x + w, Y: y + h},
			{X: x, Y: y + h},
		}, "FD")
	default:
		pdf.Rect(x, y, w, h, "FD")
	}

	if object.Text != "" {
		tr, tg, tb := parseHexColor(object.TextColor)
		pdf.SetTextColor(tr, tg, tb)
		pdf.Text(x+1.5, y+h/2, object.Text)
		pdf.SetTextColor(0, 0, 0)
	}
}

// fitToPage returns the content origin and a uniform scale that fits the
// whole scene inside the page margins. An empty scene maps one to one.
func fitToPage(snapshot *scene.Scene) (minX, minY, scaling float64) {
	first := true
	var maxX, maxY float64
	extend := func(x1, y1, x2, y2 float64) {
		if first {
			minX, minY, maxX, maxY = x1, y1, x2, y2
			first = false
			return
		}
		if x1 < minX {
			minX = x1
		}
		if y1 < minY {
			minY = y1
		}
		if x2 > maxX {
			maxX = x2
		}
		if y2 > maxY {
			maxY = y2
		}
	}
	for _, object := range snapshot.Objects {
		extend(object.X, object.Y, object.X+object.Width, object.Y+object.Height)
	}
	for _, stroke := range snapshot.Strokes {
		for _, point := range stroke.Points {
			extend(point.X, point.Y, point.X, point.Y)
		}
	}
	for _, connector := range snapshot.Connectors {
		extend(connector.StartX, connector.StartY, connector.StartX, connector.StartY)
		extend(connector.EndX, connector.EndY, connector.EndX, connector.EndY)
	}
	if first {
		return 0, 0, 1
	}

	width := maxX - minX
	height := maxY - minY
	scaling = 1.0
	usableW := pageWidthMM - 2*pageMarginMM
	usableH := pageHeightMM - 2*pageMarginMM
	if width > 0 && usableW/width < scaling {
		scaling = usableW / width
	}
	if height > 0 && usableH/height < scaling {
		scaling = usableH / height
	}
	return minX, minY, scaling
}

type snapshotLookup struct {
	objects map[string]*scene.CanvasObject
}

func newSnapshotLookup(snapshot *scene.Scene) *snapshotLookup {
	lookup := &snapshotLookup{objects: make(map[string]*scene.CanvasObject, len(snapshot.Objects))}
	for _, object := range snapshot.Objects {
		lookup.objects[object.ID] = object
	}
	return lookup
}

func (l *snapshotLookup) Object(id string) (*scene.CanvasObject, bool) {
	object, ok := l.objects[id]
	return object, ok
}

// parseHexColor decodes "#rgb" and "#rrggbb"; anything else renders black.
func parseHexColor(value string) (int, int, int) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(hex) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[2*i] = hex[i]
			expanded[2*i+1] = hex[i]
		}
		hex = string(expanded)
	case 6:
	default:
		return 0, 0, 0
	}
	parsed, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(parsed >> 16 & 0xff), int(parsed >> 8 & 0xff), int(parsed & 0xff)
}
