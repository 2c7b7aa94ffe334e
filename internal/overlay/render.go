package overlay

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

// circle approximation constant for four cubic Bézier arcs
const kappa = 0.5522847498

// Render copies src and draws the Plan for detected onto the copy.
// src is never modified; an empty face list yields a pixel-identical copy.
func Render(src image.Image, detected []faces.DetectedFace) *image.NRGBA {
	dst := imaging.Clone(src)
	offset := src.Bounds().Min

	z := vector.NewRasterizer(0, 0)
	for _, p := range Plan(detected) {
		drawPrimitive(z, dst, p, offset)
	}

	return dst
}

// drawPrimitive rasterizes one primitive into dst. Only the primitive's bounding
// rectangle is visited.
func drawPrimitive(z *vector.Rasterizer, dst *image.NRGBA, p Primitive, offset image.Point) {
	area := p.bounds().Sub(offset).Intersect(dst.Bounds())
	if area.Empty() {
		return
	}

	z.Reset(area.Dx(), area.Dy())
	ox := float32(area.Min.X + offset.X)
	oy := float32(area.Min.Y + offset.Y)

	switch p.Shape {
	case ShapeBox:
		strokeRect(z, p.Box, p.Width, ox, oy)
	case ShapeMarker:
		fillCircle(z, p.Center.X-ox, p.Center.Y-oy, p.Radius)
	case ShapeLine:
		if !strokeLine(z, p.From, p.To, p.Width, ox, oy) {
			return
		}
	}

	z.Draw(dst, area, image.NewUniform(p.Color), image.Point{})
}

// strokeRect adds an outline centered on the box edges. The inner contour winds
// opposite to the outer one so the interior stays unpainted.
func strokeRect(z *vector.Rasterizer, box faces.BoundingBox, width float32, ox, oy float32) {
	half := width / 2
	l, t := float32(box.Left)-ox, float32(box.Top)-oy
	r, b := float32(box.Right)-ox, float32(box.Bottom)-oy

	z.MoveTo(l-half, t-half)
	z.LineTo(r+half, t-half)
	z.LineTo(r+half, b+half)
	z.LineTo(l-half, b+half)
	z.ClosePath()

	if r-l > width && b-t > width {
		z.MoveTo(l+half, t+half)
		z.LineTo(l+half, b-half)
		z.LineTo(r-half, b-half)
		z.LineTo(r-half, t+half)
		z.ClosePath()
	}
}

// fillCircle adds a closed circle path
func fillCircle(z *vector.Rasterizer, cx, cy, radius float32) {
	k := radius * kappa
	z.MoveTo(cx+radius, cy)
	z.CubeTo(cx+radius, cy+k, cx+k, cy+radius, cx, cy+radius)
	z.CubeTo(cx-k, cy+radius, cx-radius, cy+k, cx-radius, cy)
	z.CubeTo(cx-radius, cy-k, cx-k, cy-radius, cx, cy-radius)
	z.CubeTo(cx+k, cy-radius, cx+radius, cy-k, cx+radius, cy)
	z.ClosePath()
}

// strokeLine adds a butt-capped segment as a quadrilateral. A zero-length
// segment covers no area and reports false.
func strokeLine(z *vector.Rasterizer, from, to faces.Point, width float32, ox, oy float32) bool {
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return false
	}

	half := float64(width) / 2
	nx := float32(-dy / length * half)
	ny := float32(dx / length * half)

	fx, fy := from.X-ox, from.Y-oy
	tx, ty := to.X-ox, to.Y-oy

	z.MoveTo(fx+nx, fy+ny)
	z.LineTo(tx+nx, ty+ny)
	z.LineTo(tx-nx, ty-ny)
	z.LineTo(fx-nx, fy-ny)
	z.ClosePath()
	return true
}
