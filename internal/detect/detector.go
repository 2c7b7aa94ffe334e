package detect

import (
	"context"
	"image"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

// Detector finds faces and landmark contours in an upright raster.
// Errors are reported through the returned Detection, never by panicking.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img image.Image) faces.Detection
	Close()
}
