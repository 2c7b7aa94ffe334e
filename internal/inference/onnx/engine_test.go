package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
)

func TestFixedShape(t *testing.T) {
	assert.Equal(t, ort.NewShape(1, 56, 56, 1), fixedShape(ort.NewShape(-1, 56, 56, 1)))
	assert.Equal(t, ort.NewShape(1, 7), fixedShape(ort.NewShape(0, 7)))
	assert.Equal(t, int64(3136), fixedShape(ort.NewShape(-1, 3136)).FlattenedSize())
}
