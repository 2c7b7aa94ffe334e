package overlay

import (
	"image/color"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

var (
	Red       = color.NRGBA{R: 0xFF, A: 0xFF}
	Green     = color.NRGBA{G: 0xFF, A: 0xFF}
	Blue      = color.NRGBA{B: 0xFF, A: 0xFF}
	Yellow    = color.NRGBA{R: 0xFF, G: 0xFF, A: 0xFF}
	Cyan      = color.NRGBA{G: 0xFF, B: 0xFF, A: 0xFF}
	Magenta   = color.NRGBA{R: 0xFF, B: 0xFF, A: 0xFF}
	LightGray = color.NRGBA{R: 0xCC, G: 0xCC, B: 0xCC, A: 0xFF}
)

const (
	// BoxStrokeWidth is the bounding box outline width
	BoxStrokeWidth = 8
	// ArrowStrokeWidth is the nose indicator line width
	ArrowStrokeWidth = 8
	// MarkerRadius is the landmark dot radius
	MarkerRadius = 8
	// ArrowHeadLength is the length of each arrowhead segment
	ArrowHeadLength = 20
)

// BoxColor is the bounding box stroke color
var BoxColor = Red

// ArrowColor is the nose indicator color
var ArrowColor = Red

// DefaultMarkerColor is used for contour kinds outside contourColors
var DefaultMarkerColor = Blue

// contourColors is indexed by faces.ContourKind
var contourColors = [...]color.NRGBA{
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

// ContourColor returns the marker color for a contour kind
func ContourColor(kind faces.ContourKind) color.NRGBA {
	if kind < 0 || int(kind) >= len(contourColors) {
		return DefaultMarkerColor
	}
	return contourColors[kind]
}
