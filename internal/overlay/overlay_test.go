package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

func whiteImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

func assertColorNear(t *testing.T, want color.NRGBA, got color.Color, msgAndArgs ...interface{}) {
	t.Helper()
	c := color.NRGBAModel.Convert(got).(color.NRGBA)
	assert.InDelta(t, want.R, c.R, 2, msgAndArgs...)
	assert.InDelta(t, want.G, c.G, 2, msgAndArgs...)
	assert.InDelta(t, want.B, c.B, 2, msgAndArgs...)
	assert.InDelta(t, want.A, c.A, 2, msgAndArgs...)
}

func countShape(plan []Primitive, shape Shape) int {
	n := 0
	for _, p := range plan {
		if p.Shape == shape {
			n++
		}
	}
	return n
}

func TestContourColor(t *testing.T) {
	expected := map[faces.ContourKind]color.NRGBA{
		faces.ContourFace:               Blue,
		faces.ContourLeftEyebrowTop:     Green,
		faces.ContourLeftEyebrowBottom:  Green,
		faces.ContourRightEyebrowTop:    Yellow,
		faces.ContourRightEyebrowBottom: Yellow,
		faces.ContourLeftEye:            Cyan,
		faces.ContourRightEye:           Cyan,
		faces.ContourUpperLipTop:        Magenta,
		faces.ContourUpperLipBottom:     Magenta,
		faces.ContourLowerLipTop:        Magenta,
		faces.ContourLowerLipBottom:     Magenta,
		faces.ContourNoseBridge:         Red,
		faces.ContourNoseBottom:         Red,
		faces.ContourLeftCheek:          LightGray,
		faces.ContourRightCheek:         LightGray,
	}
	require.Len(t, expected, len(faces.KnownContourKinds))

	for kind, want := range expected {
		assert.Equal(t, want, ContourColor(kind), kind.String())
	}

	assert.Equal(t, DefaultMarkerColor, ContourColor(faces.ContourKind(42)))
	assert.Equal(t, DefaultMarkerColor, ContourColor(faces.ContourKind(-1)))
}

func TestPlan_OneBoxPerFace(t *testing.T) {
	detected := []faces.DetectedFace{
		{Box: faces.BoundingBox{Left: 0, Top: 0, Right: 10, Bottom: 10}},
		{
			Box: faces.BoundingBox{Left: 20, Top: 20, Right: 40, Bottom: 40},
			Contours: []faces.Contour{
				{Kind: faces.ContourLeftEye, Points: []faces.Point{{X: 25, Y: 25}, {X: 27, Y: 25}}},
				{Kind: faces.ContourNoseBottom, Points: []faces.Point{{X: 30, Y: 30}, {X: 30, Y: 35}}},
			},
		},
		{Box: faces.BoundingBox{Left: 50, Top: 50, Right: 60, Bottom: 60}},
	}

	plan := Plan(detected)

	assert.Equal(t, 3, countShape(plan, ShapeBox))
	assert.Equal(t, 4, countShape(plan, ShapeMarker))
	assert.Equal(t, 3, countShape(plan, ShapeLine))
	assert.Empty(t, Plan(nil))
}

func TestPlan_EncounterOrder(t *testing.T) {
	detected := []faces.DetectedFace{
		{
			Box: faces.BoundingBox{Left: 0, Top: 0, Right: 10, Bottom: 10},
			Contours: []faces.Contour{
				{Kind: faces.ContourRightCheek, Points: []faces.Point{{X: 1, Y: 1}}},
			},
		},
		{Box: faces.BoundingBox{Left: 20, Top: 20, Right: 30, Bottom: 30}},
	}

	plan := Plan(detected)
	require.Len(t, plan, 3)
	assert.Equal(t, ShapeBox, plan[0].Shape)
	assert.Equal(t, detected[0].Box, plan[0].Box)
	assert.Equal(t, ShapeMarker, plan[1].Shape)
	assert.Equal(t, LightGray, plan[1].Color)
	assert.Equal(t, float32(MarkerRadius), plan[1].Radius)
	assert.Equal(t, ShapeBox, plan[2].Shape)
	assert.Equal(t, detected[1].Box, plan[2].Box)
	assert.Equal(t, float32(BoxStrokeWidth), plan[0].Width)
}

func TestArrow_Geometry(t *testing.T) {
	start := faces.Point{X: 10, Y: 50}
	end := faces.Point{X: 12, Y: 80}

	segments := Arrow(start, end)

	assert.Equal(t, [2]faces.Point{start, end}, segments[0])

	back := math.Atan2(float64(start.Y-end.Y), float64(start.X-end.X))
	for i, sign := range []float64{1, -1} {
		head := segments[i+1]
		assert.Equal(t, end, head[0])

		dx := float64(head[1].X - end.X)
		dy := float64(head[1].Y - end.Y)
		assert.InDelta(t, ArrowHeadLength, math.Hypot(dx, dy), 1e-4)

		want := back + sign*math.Pi/6
		assert.InDelta(t, float64(end.X)+ArrowHeadLength*math.Cos(want), float64(head[1].X), 1e-4)
		assert.InDelta(t, float64(end.Y)+ArrowHeadLength*math.Sin(want), float64(head[1].Y), 1e-4)

		// angle between head segment and the reversed shaft
		sx, sy := float64(start.X-end.X), float64(start.Y-end.Y)
		cos := (dx*sx + dy*sy) / (math.Hypot(dx, dy) * math.Hypot(sx, sy))
		assert.InDelta(t, math.Pi/6, math.Acos(cos), 1e-4)
	}
}

func TestPlan_NoseArrowUsesFirstAndLastPoint(t *testing.T) {
	face := faces.DetectedFace{
		Box: faces.BoundingBox{Left: 0, Top: 0, Right: 100, Bottom: 100},
		Contours: []faces.Contour{
			{Kind: faces.ContourNoseBottom, Points: []faces.Point{{X: 10, Y: 50}, {X: 11, Y: 60}, {X: 12, Y: 80}}},
		},
	}

	var lines []Primitive
	for _, p := range Plan([]faces.DetectedFace{face}) {
		if p.Shape == ShapeLine {
			lines = append(lines, p)
		}
	}

	require.Len(t, lines, 3)
	assert.Equal(t, faces.Point{X: 10, Y: 50}, lines[0].From)
	assert.Equal(t, faces.Point{X: 12, Y: 80}, lines[0].To)
	for _, l := range lines {
		assert.Equal(t, ArrowColor, l.Color)
		assert.Equal(t, float32(ArrowStrokeWidth), l.Width)
	}
}

func TestPlan_EmptyNoseContourDrawsNoArrow(t *testing.T) {
	face := faces.DetectedFace{
		Box:      faces.BoundingBox{Left: 0, Top: 0, Right: 100, Bottom: 100},
		Contours: []faces.Contour{{Kind: faces.ContourNoseBottom}},
	}
	assert.Equal(t, 0, countShape(Plan([]faces.DetectedFace{face}), ShapeLine))
}

func TestRender_EmptyFacesIsIdenticalCopy(t *testing.T) {
	src := whiteImage(64, 48)
	src.SetNRGBA(3, 4, color.NRGBA{R: 12, G: 34, B: 56, A: 255})

	out := Render(src, nil)

	require.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
	assert.NotSame(t, &src.Pix[0], &out.Pix[0])
}

func TestRender_DoesNotMutateSource(t *testing.T) {
	src := whiteImage(200, 200)
	before := append([]uint8(nil), src.Pix...)

	out := Render(src, []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: 40, Top: 40, Right: 160, Bottom: 160},
		Contours: []faces.Contour{
			{Kind: faces.ContourLeftEye, Points: []faces.Point{{X: 100, Y: 100}}},
		},
	}})

	assert.Equal(t, before, src.Pix)
	assert.NotEqual(t, src.Pix, out.Pix)
}

func TestRender_BoxStroke(t *testing.T) {
	src := whiteImage(200, 200)
	out := Render(src, []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: 40, Top: 40, Right: 160, Bottom: 160},
	}})

	// on the stroke centerlines
	assertColorNear(t, Red, out.At(40, 100), "left edge")
	assertColorNear(t, Red, out.At(159, 100), "right edge")
	assertColorNear(t, Red, out.At(100, 40), "top edge")
	assertColorNear(t, Red, out.At(100, 159), "bottom edge")
	// stroke extends half its width either side
	assertColorNear(t, Red, out.At(37, 100), "outer half")
	assertColorNear(t, Red, out.At(42, 100), "inner half")

	white := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	assertColorNear(t, white, out.At(100, 100), "interior")
	assertColorNear(t, white, out.At(30, 100), "outside")
	assertColorNear(t, white, out.At(50, 100), "inside stroke")
}

func TestRender_Markers(t *testing.T) {
	src := whiteImage(200, 200)
	out := Render(src, []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: 10, Top: 10, Right: 190, Bottom: 190},
		Contours: []faces.Contour{
			{Kind: faces.ContourLeftEye, Points: []faces.Point{{X: 60, Y: 60}}},
			{Kind: faces.ContourUpperLipTop, Points: []faces.Point{{X: 100, Y: 140}}},
			{Kind: faces.ContourKind(77), Points: []faces.Point{{X: 140, Y: 60}}},
		},
	}})

	assertColorNear(t, Cyan, out.At(60, 60))
	assertColorNear(t, Cyan, out.At(64, 60))
	assertColorNear(t, Magenta, out.At(100, 140))
	assertColorNear(t, DefaultMarkerColor, out.At(140, 60))

	white := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	assertColorNear(t, white, out.At(60, 75), "outside marker radius")
}

func TestRender_NoseArrow(t *testing.T) {
	src := whiteImage(200, 200)
	out := Render(src, []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: 100, Top: 100, Right: 150, Bottom: 150},
		Contours: []faces.Contour{
			{Kind: faces.ContourNoseBottom, Points: []faces.Point{{X: 10, Y: 50}, {X: 12, Y: 80}}},
		},
	}})

	// shaft midpoint, away from the endpoint markers
	assertColorNear(t, ArrowColor, out.At(11, 65))

	segments := Arrow(faces.Point{X: 10, Y: 50}, faces.Point{X: 12, Y: 80})
	for _, head := range segments[1:] {
		mx := (head[0].X + head[1].X) / 2
		my := (head[0].Y + head[1].Y) / 2
		assertColorNear(t, ArrowColor, out.At(int(math.Floor(float64(mx))), int(math.Floor(float64(my)))))
	}

	white := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	assertColorNear(t, white, out.At(40, 65), "far from arrow")
}

func TestRender_ClipsOffImagePrimitives(t *testing.T) {
	src := whiteImage(50, 50)
	out := Render(src, []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: -20, Top: -20, Right: 30, Bottom: 30},
		Contours: []faces.Contour{
			{Kind: faces.ContourFace, Points: []faces.Point{{X: 500, Y: 500}}},
		},
	}})

	assert.Equal(t, src.Bounds(), out.Bounds())
	assertColorNear(t, Red, out.At(30, 10))
}
