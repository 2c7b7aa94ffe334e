package inference

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrModelLoad marks a model that could not be opened. It is permanent for the process.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference marks a forward pass that failed on a loaded model
	ErrInference = errors.New("inference failed")
)

// Engine executes forward passes of one loaded model.
//
// Run receives the flattened input tensor in native byte order and returns every
// output tensor flattened, indexed by the model's output position.
type Engine interface {
	Run(input []float32) ([][]float32, error)
	Close()
}

// Loader opens a serialized model and returns an Engine for it
type Loader func(modelPath string) (Engine, error)

// Backend names an inference runtime
type Backend string

const (
	BackendTFLite Backend = "tflite" // TensorFlow Lite C runtime
	BackendONNX   Backend = "onnx"   // ONNX Runtime shared library
	BackendAuto   Backend = "auto"   // Select by model file extension
)

// ParseBackend validates a configured backend name
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case BackendTFLite:
		return BackendTFLite, nil
	case BackendONNX:
		return BackendONNX, nil
	case BackendAuto, "":
		return BackendAuto, nil
	default:
		return "", fmt.Errorf("invalid inference engine: %s", name)
	}
}

// ResolveBackend picks the concrete runtime for a model. Auto chooses by file extension.
func ResolveBackend(mode Backend, modelPath string) (Backend, error) {
	if mode != BackendAuto {
		return mode, nil
	}

	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".tflite":
		return BackendTFLite, nil
	case ".onnx":
		return BackendONNX, nil
	default:
		return "", fmt.Errorf("cannot infer engine for model %s", filepath.Base(modelPath))
	}
}

// Output returns output tensor index of outputs, checking it holds exactly size values
func Output(outputs [][]float32, index int, size int) ([]float32, error) {
	if index >= len(outputs) {
		return nil, fmt.Errorf("%w: model produced %d outputs, need index %d", ErrInference, len(outputs), index)
	}
	if len(outputs[index]) != size {
		return nil, fmt.Errorf("%w: output %d has %d values, want %d", ErrInference, index, len(outputs[index]), size)
	}
	return outputs[index], nil
}
