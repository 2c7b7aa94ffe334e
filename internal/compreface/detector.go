package compreface

import (
	"context"
	"fmt"
	"image"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/imageio"
)

// landmarkKinds maps CompreFace's 5-point landmark order (image-left eye,
// image-right eye, nose tip, mouth corners) onto contour kinds
var landmarkKinds = []faces.ContourKind{
	faces.ContourRightEye,
	faces.ContourLeftEye,
	faces.ContourNoseBottom,
	faces.ContourUpperLipBottom,
	faces.ContourUpperLipBottom,
}

// Detector adapts the CompreFace detection service to a face detector
type Detector struct {
	client *Client
}

// NewDetector wraps a CompreFace client
func NewDetector(client *Client) *Detector {
	return &Detector{client: client}
}

// Name identifies the backend in logs
func (d *Detector) Name() string {
	return "compreface"
}

// Detect uploads img as JPEG and converts the response. Transport and API
// errors become a failed detection.
func (d *Detector) Detect(ctx context.Context, img image.Image) faces.Detection {
	data, err := imageio.EncodeJPEG(img)
	if err != nil {
		return faces.Failed(err)
	}

	resp, err := d.client.DetectFacesFromBytes(ctx, data, "image.jpg")
	if err != nil {
		return faces.Failed(fmt.Errorf("compreface detection: %w", err))
	}

	// the JPEG upload starts at (0,0)
	return faces.Detected(faces.ToImageSpace(ToDetectedFaces(resp.Result), img.Bounds().Min))
}

// Close is a no-op; the HTTP client holds no resources
func (d *Detector) Close() {}

// ToDetectedFaces converts CompreFace results, grouping landmarks by contour kind
func ToDetectedFaces(results []FaceDetection) []faces.DetectedFace {
	detected := make([]faces.DetectedFace, 0, len(results))

	for _, r := range results {
		face := faces.DetectedFace{
			Box: faces.BoundingBox{
				Left:   r.Box.XMin,
				Top:    r.Box.YMin,
				Right:  r.Box.XMax,
				Bottom: r.Box.YMax,
			},
			Confidence: r.Box.Probability,
		}

		index := map[faces.ContourKind]int{}
		for i, lm := range r.Landmarks {
			if i >= len(landmarkKinds) || len(lm) < 2 {
				break
			}
			kind := landmarkKinds[i]
			point := faces.Point{X: float32(lm[0]), Y: float32(lm[1])}
			if j, ok := index[kind]; ok {
				face.Contours[j].Points = append(face.Contours[j].Points, point)
				continue
			}
			index[kind] = len(face.Contours)
			face.Contours = append(face.Contours, faces.Contour{Kind: kind, Points: []faces.Point{point}})
		}

		detected = append(detected, face)
	}

	return detected
}
