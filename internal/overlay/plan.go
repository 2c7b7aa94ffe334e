package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

// Shape identifies the geometry of a Primitive
type Shape int

const (
	ShapeBox    Shape = iota // stroked rectangle outline
	ShapeMarker              // filled circle
	ShapeLine                // stroked segment
)

// Primitive is one drawing instruction. Only the fields for its Shape are set.
type Primitive struct {
	Shape  Shape
	Color  color.NRGBA
	Box    faces.BoundingBox
	Center faces.Point
	Radius float32
	From   faces.Point
	To     faces.Point
	Width  float32
}

// Plan lists the drawing instructions for faces in encounter order: the box,
// then every contour point marker, then the nose-bottom arrow when present.
func Plan(detected []faces.DetectedFace) []Primitive {
	var plan []Primitive

	for _, face := range detected {
		plan = append(plan, Primitive{
			Shape: ShapeBox,
			Color: BoxColor,
			Box:   face.Box,
			Width: BoxStrokeWidth,
		})

		for _, contour := range face.Contours {
			c := ContourColor(contour.Kind)
			for _, p := range contour.Points {
				plan = append(plan, Primitive{
					Shape:  ShapeMarker,
					Color:  c,
					Center: p,
					Radius: MarkerRadius,
				})
			}
		}

		if nose, ok := face.Contour(faces.ContourNoseBottom); ok && len(nose) > 0 {
			for _, segment := range Arrow(nose[0], nose[len(nose)-1]) {
				plan = append(plan, Primitive{
					Shape: ShapeLine,
					Color: ArrowColor,
					From:  segment[0],
					To:    segment[1],
					Width: ArrowStrokeWidth,
				})
			}
		}
	}

	return plan
}

// Arrow returns the shaft from start to end followed by the two head segments.
// Each head starts at end and points back along the shaft, rotated by ±π/6.
func Arrow(start, end faces.Point) [3][2]faces.Point {
	angle := math.Atan2(float64(start.Y-end.Y), float64(start.X-end.X))
	head := func(a float64) faces.Point {
		return faces.Point{
			X: float32(float64(end.X) + ArrowHeadLength*math.Cos(a)),
			Y: float32(float64(end.Y) + ArrowHeadLength*math.Sin(a)),
		}
	}

	return [3][2]faces.Point{
		{start, end},
		{end, head(angle + math.Pi/6)},
		{end, head(angle - math.Pi/6)},
	}
}

// bounds returns the pixel rectangle touched by p
func (p Primitive) bounds() image.Rectangle {
	var minX, minY, maxX, maxY float64
	switch p.Shape {
	case ShapeBox:
		half := float64(p.Width) / 2
		minX, minY = float64(p.Box.Left)-half, float64(p.Box.Top)-half
		maxX, maxY = float64(p.Box.Right)+half, float64(p.Box.Bottom)+half
	case ShapeMarker:
		r := float64(p.Radius)
		minX, minY = float64(p.Center.X)-r, float64(p.Center.Y)-r
		maxX, maxY = float64(p.Center.X)+r, float64(p.Center.Y)+r
	case ShapeLine:
		half := float64(p.Width) / 2
		minX = math.Min(float64(p.From.X), float64(p.To.X)) - half
		minY = math.Min(float64(p.From.Y), float64(p.To.Y)) - half
		maxX = math.Max(float64(p.From.X), float64(p.To.X)) + half
		maxY = math.Max(float64(p.From.Y), float64(p.To.Y)) + half
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}
