package detect

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

// PigoConfig holds cascade parameters for the pure-Go detector
type PigoConfig struct {
	CascadePath  string  // facefinder cascade (required)
	PuplocPath   string  // pupil localization cascade (optional)
	MinSize      int     // smallest face edge in pixels
	MaxSize      int     // largest face edge in pixels
	ShiftFactor  float64 // sliding window step as a fraction of the window
	ScaleFactor  float64 // window growth between scales
	IoUThreshold float64 // detections overlapping more than this are merged
	MinQuality   float32 // detections scoring lower are dropped
}

// DefaultPigoConfig returns the parameters used by pigo's reference tooling
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PigoDetector finds face boxes with a pixel-intensity cascade and,
// when a pupil cascade is loaded, one point per eye
type PigoDetector struct {
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	config     PigoConfig
}

// NewPigoDetector unpacks the cascades named in config
func NewPigoDetector(config PigoConfig) (*PigoDetector, error) {
	if config.CascadePath == "" {
		return nil, fmt.Errorf("pigo cascade path is required")
	}

	cascadeFile, err := os.ReadFile(config.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pigo cascade: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pigo cascade: %w", err)
	}

	d := &PigoDetector{classifier: classifier, config: config}

	if config.PuplocPath != "" {
		puplocFile, err := os.ReadFile(config.PuplocPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
		}
		d.puploc, err = pigo.NewPuplocCascade().UnpackCascade(puplocFile)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
		}
	}

	return d, nil
}

// Name identifies the backend in logs
func (d *PigoDetector) Name() string {
	return "pigo"
}

// Detect runs the cascade over a grayscale copy of img
func (d *PigoDetector) Detect(ctx context.Context, img image.Image) faces.Detection {
	if err := ctx.Err(); err != nil {
		return faces.Failed(err)
	}

	src := pigo.ImgToNRGBA(img)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     d.config.MaxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: params,
	}

	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	detected := make([]faces.DetectedFace, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.config.MinQuality {
			log.Tracef("pigo: dropping detection at (%d,%d) with quality %.2f", det.Col, det.Row, det.Q)
			continue
		}

		face := faces.DetectedFace{
			Box:        pigoBox(det),
			Confidence: float64(det.Q),
		}
		if d.puploc != nil {
			face.Contours = d.pupils(det, params)
		}
		detected = append(detected, face)
	}

	// ImgToNRGBA rebases the raster to (0,0)
	return faces.Detected(faces.ToImageSpace(detected, img.Bounds().Min))
}

// pupils locates both eyes inside a face detection
func (d *PigoDetector) pupils(det pigo.Detection, params pigo.ImageParams) []faces.Contour {
	var contours []faces.Contour

	eyes := []struct {
		kind   faces.ContourKind
		offset float32
	}{
		// image-left eye is the subject's right eye
		{faces.ContourRightEye, -0.175},
		{faces.ContourLeftEye, 0.185},
	}

	for _, eye := range eyes {
		loc := pigo.Puploc{
			Row:      det.Row - int(0.075*float32(det.Scale)),
			Col:      det.Col + int(eye.offset*float32(det.Scale)),
			Scale:    float32(det.Scale) * 0.25,
			Perturbs: 50,
		}
		found := d.puploc.RunDetector(loc, params, 0.0, false)
		if found == nil || found.Row <= 0 || found.Col <= 0 {
			continue
		}
		contours = append(contours, faces.Contour{
			Kind:   eye.kind,
			Points: []faces.Point{{X: float32(found.Col), Y: float32(found.Row)}},
		})
	}

	return contours
}

// Close is a no-op; cascades are plain Go memory
func (d *PigoDetector) Close() {}

// pigoBox converts a center/scale detection to a bounding box
func pigoBox(det pigo.Detection) faces.BoundingBox {
	half := det.Scale / 2
	return faces.BoundingBox{
		Left:   det.Col - half,
		Top:    det.Row - half,
		Right:  det.Col + half,
		Bottom: det.Row + half,
	}
}
