package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	// InputSize is the square edge both attribute models expect
	InputSize = 56
	// TensorSize is the number of values in an attribute tensor
	TensorSize = InputSize * InputSize
)

// Tensor is a row-major 56x56 single-channel buffer with values in [0, 1]
type Tensor []float32

// Preprocess resizes img to 56x56 with bilinear filtering and returns the
// red channel of every pixel divided by 255. The result always has TensorSize
// values; an empty image yields an all-zero tensor.
func Preprocess(img image.Image) Tensor {
	tensor := make(Tensor, TensorSize)
	if img == nil || img.Bounds().Empty() {
		return tensor
	}

	resized := imaging.Resize(img, InputSize, InputSize, imaging.Linear)

	for y := 0; y < InputSize; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < InputSize; x++ {
			tensor[y*InputSize+x] = float32(row[x*4]) / 255.0
		}
	}

	return tensor
}
