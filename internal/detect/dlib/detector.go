// Package dlib adapts go-face to the detect.Detector interface. It links
// against dlib through cgo, so it lives apart from the pure-Go backends.
package dlib

import (
	"context"
	"fmt"
	"image"

	"github.com/Kagami/go-face"
	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/imageio"
)

// Detector handles face detection and 5-point landmarks using dlib
type Detector struct {
	rec       *face.Recognizer
	modelsDir string
}

// Config holds configuration for the dlib detector
type Config struct {
	ModelsDir string // Directory containing shape_predictor_5_face_landmarks.dat and friends
}

// NewDetector creates a new face detector instance
func NewDetector(config Config) (*Detector, error) {
	if config.ModelsDir == "" {
		return nil, fmt.Errorf("models directory is required")
	}

	rec, err := face.NewRecognizer(config.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face recognizer: %w", err)
	}

	return &Detector{
		rec:       rec,
		modelsDir: config.ModelsDir,
	}, nil
}

// Name identifies the backend in logs
func (d *Detector) Name() string {
	return "dlib"
}

// Detect encodes img as JPEG, which is the only format go-face accepts from memory
func (d *Detector) Detect(ctx context.Context, img image.Image) faces.Detection {
	if err := ctx.Err(); err != nil {
		return faces.Failed(err)
	}

	data, err := imageio.EncodeJPEG(img)
	if err != nil {
		return faces.Failed(fmt.Errorf("failed to encode image: %w", err))
	}

	found, err := d.rec.Recognize(data)
	if err != nil {
		return faces.Failed(fmt.Errorf("failed to recognize faces: %w", err))
	}

	detected := make([]faces.DetectedFace, 0, len(found))
	for _, f := range found {
		detected = append(detected, toDetectedFace(f.Rectangle, f.Shapes))
	}
	// go-face reports coordinates relative to the encoded image, whose origin is (0,0)
	detected = faces.ToImageSpace(detected, img.Bounds().Min)

	log.Debugf("dlib found %d face(s)", len(detected))
	return faces.Detected(detected)
}

// Close releases resources used by the detector
func (d *Detector) Close() {
	if d.rec != nil {
		d.rec.Close()
	}
}

// toDetectedFace maps dlib's 5-point layout: two corners per eye, then the
// base of the nose
func toDetectedFace(rect image.Rectangle, shapes []image.Point) faces.DetectedFace {
	detected := faces.DetectedFace{
		Box: faces.BoundingBox{
			Left:   rect.Min.X,
			Top:    rect.Min.Y,
			Right:  rect.Max.X,
			Bottom: rect.Max.Y,
		},
		Confidence: 1.0,
	}

	groups := []struct {
		kind  faces.ContourKind
		start int
		end   int
	}{
		{faces.ContourRightEye, 0, 2},
		{faces.ContourLeftEye, 2, 4},
		{faces.ContourNoseBottom, 4, 5},
	}

	for _, g := range groups {
		if len(shapes) < g.end {
			break
		}
		points := make([]faces.Point, 0, g.end-g.start)
		for _, p := range shapes[g.start:g.end] {
			points = append(points, faces.Point{X: float32(p.X), Y: float32(p.Y)})
		}
		detected.Contours = append(detected.Contours, faces.Contour{Kind: g.kind, Points: points})
	}

	return detected
}
