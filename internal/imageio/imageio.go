package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/stashapp/stash/pkg/plugin/common/log"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// EXIF orientation values
const (
	OrientationNormal     = 1
	OrientationFlipH      = 2
	OrientationRotate180  = 3
	OrientationFlipV      = 4
	OrientationTranspose  = 5
	OrientationRotate90   = 6
	OrientationTransverse = 7
	OrientationRotate270  = 8
)

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsSupported reports whether path has a decodable image extension
func IsSupported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads and decodes an image file with its EXIF orientation applied
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return DecodeBytes(data)
}

// Decode reads all of r and decodes it with its EXIF orientation applied
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes an encoded image and bakes in its EXIF orientation, so
// downstream consumers always see an upright raster
func DecodeBytes(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	orientation := Orientation(data)
	log.Tracef("Decoded %s image %dx%d (orientation %d)", format, img.Bounds().Dx(), img.Bounds().Dy(), orientation)

	return Orient(img, orientation), nil
}

// Orientation returns the EXIF orientation tag of an encoded image, or
// OrientationNormal when absent or unreadable
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationNormal
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}

	value, err := tag.Int(0)
	if err != nil || value < OrientationNormal || value > OrientationRotate270 {
		return OrientationNormal
	}

	return value
}

// Orient transforms img so that it displays upright for the given EXIF orientation
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Save writes img to path, choosing the format from the extension
func Save(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(92)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	log.Debugf("Saved annotated image to %s", path)
	return nil
}

// EncodeJPEG encodes img as JPEG
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// AnnotatedPath derives the output file name for an annotated copy of source inside dir
func AnnotatedPath(dir, source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if !IsSupported(base) || strings.EqualFold(ext, ".webp") {
		ext = ".jpg"
	}
	return filepath.Join(dir, name+"_annotated"+ext)
}
