package faces

import (
	"errors"
	"image"
)

// Point is a landmark coordinate in source image pixels
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// BoundingBox represents face coordinates in the image
type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// ContourKind identifies a named facial landmark group
type ContourKind int

const (
	ContourFace ContourKind = iota
	ContourLeftEyebrowTop
	ContourLeftEyebrowBottom
	ContourRightEyebrowTop
	ContourRightEyebrowBottom
	ContourLeftEye
	ContourRightEye
	ContourUpperLipTop
	ContourUpperLipBottom
	ContourLowerLipTop
	ContourLowerLipBottom
	ContourNoseBridge
	ContourNoseBottom
	ContourLeftCheek
	ContourRightCheek
)

// KnownContourKinds lists every contour kind a detector may report, in enum order
var KnownContourKinds = []ContourKind{
	ContourFace,
	ContourLeftEyebrowTop,
	ContourLeftEyebrowBottom,
	ContourRightEyebrowTop,
	ContourRightEyebrowBottom,
	ContourLeftEye,
	ContourRightEye,
	ContourUpperLipTop,
	ContourUpperLipBottom,
	ContourLowerLipTop,
	ContourLowerLipBottom,
	ContourNoseBridge,
	ContourNoseBottom,
	ContourLeftCheek,
	ContourRightCheek,
}

// String converts ContourKind to string representation
func (k ContourKind) String() string {
	switch k {
	case ContourFace:
		return "face"
	case ContourLeftEyebrowTop:
		return "left-eyebrow-top"
	case ContourLeftEyebrowBottom:
		return "left-eyebrow-bottom"
	case ContourRightEyebrowTop:
		return "right-eyebrow-top"
	case ContourRightEyebrowBottom:
		return "right-eyebrow-bottom"
	case ContourLeftEye:
		return "left-eye"
	case ContourRightEye:
		return "right-eye"
	case ContourUpperLipTop:
		return "upper-lip-top"
	case ContourUpperLipBottom:
		return "upper-lip-bottom"
	case ContourLowerLipTop:
		return "lower-lip-top"
	case ContourLowerLipBottom:
		return "lower-lip-bottom"
	case ContourNoseBridge:
		return "nose-bridge"
	case ContourNoseBottom:
		return "nose-bottom"
	case ContourLeftCheek:
		return "left-cheek"
	case ContourRightCheek:
		return "right-cheek"
	default:
		return "n/a"
	}
}

// Contour is an ordered point sequence for one contour kind
type Contour struct {
	Kind   ContourKind `json:"kind"`
	Points []Point     `json:"points"`
}

// DetectedFace is one face reported by a detector. Contours keep detector order.
type DetectedFace struct {
	Box        BoundingBox `json:"box"`
	Contours   []Contour   `json:"contours,omitempty"`
	Confidence float64     `json:"confidence"`
}

// Contour returns the points of the first contour with the given kind
func (f DetectedFace) Contour(kind ContourKind) ([]Point, bool) {
	for _, c := range f.Contours {
		if c.Kind == kind {
			return c.Points, true
		}
	}
	return nil, false
}

// Translate returns a copy of f moved by offset
func (f DetectedFace) Translate(offset image.Point) DetectedFace {
	f.Box = BoundingBox{
		Left:   f.Box.Left + offset.X,
		Top:    f.Box.Top + offset.Y,
		Right:  f.Box.Right + offset.X,
		Bottom: f.Box.Bottom + offset.Y,
	}
	if f.Contours == nil {
		return f
	}
	dx, dy := float32(offset.X), float32(offset.Y)
	contours := make([]Contour, len(f.Contours))
	for i, c := range f.Contours {
		points := make([]Point, len(c.Points))
		for j, p := range c.Points {
			points[j] = Point{X: p.X + dx, Y: p.Y + dy}
		}
		contours[i] = Contour{Kind: c.Kind, Points: points}
	}
	f.Contours = contours
	return f
}

// ToImageSpace moves faces found on a raster rebased to (0,0) back into the
// coordinate space of an image whose bounds start at origin
func ToImageSpace(detected []DetectedFace, origin image.Point) []DetectedFace {
	if origin == (image.Point{}) {
		return detected
	}
	out := make([]DetectedFace, len(detected))
	for i, f := range detected {
		out[i] = f.Translate(origin)
	}
	return out
}

// Width returns the bounding box width
func (b BoundingBox) Width() int {
	return b.Right - b.Left
}

// Height returns the bounding box height
func (b BoundingBox) Height() int {
	return b.Bottom - b.Top
}

// Valid reports whether the box has positive extent
func (b BoundingBox) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() image.Point {
	return image.Point{
		X: (b.Left + b.Right) / 2,
		Y: (b.Top + b.Bottom) / 2,
	}
}

// Area returns the area of the bounding box
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// IoU calculates Intersection over Union with another bounding box
func (b BoundingBox) IoU(other BoundingBox) float64 {
	left := max(b.Left, other.Left)
	top := max(b.Top, other.Top)
	right := min(b.Right, other.Right)
	bottom := min(b.Bottom, other.Bottom)

	// No intersection
	if left >= right || top >= bottom {
		return 0.0
	}

	intersection := (right - left) * (bottom - top)
	union := b.Area() + other.Area() - intersection

	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// ============================================================================
// Detection result
// ============================================================================

// Detection is the outcome of one detector call: either a face list or a failure cause
type Detection struct {
	faces []DetectedFace
	cause error
}

// Detected builds a successful detection result. An empty list is a valid outcome.
func Detected(faces []DetectedFace) Detection {
	if faces == nil {
		faces = []DetectedFace{}
	}
	return Detection{faces: faces}
}

// Failed builds a failed detection result
func Failed(cause error) Detection {
	return Detection{cause: cause}
}

// Faces returns the detected faces and true, or nil and false for a failed detection
func (d Detection) Faces() ([]DetectedFace, bool) {
	if d.faces == nil {
		return nil, false
	}
	return d.faces, true
}

// Err returns the failure cause, or nil for a successful detection
func (d Detection) Err() error {
	if d.faces == nil && d.cause == nil {
		return errUnset
	}
	return d.cause
}

var errUnset = errors.New("detection result not set")
