package onnx

import (
	"fmt"
	"sync"

	"github.com/stashapp/stash/pkg/plugin/common/log"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

// Initialize loads the ONNX Runtime shared library once per process
func Initialize(sharedLibraryPath string) error {
	envOnce.Do(func() {
		if sharedLibraryPath != "" {
			ort.SetSharedLibraryPath(sharedLibraryPath)
		}
		envErr = ort.InitializeEnvironment()
		if envErr != nil {
			envErr = fmt.Errorf("failed to initialize onnxruntime: %w", envErr)
		}
	})
	return envErr
}

// Engine runs an ONNX model with pre-allocated input and output tensors.
// Tensors are shared between calls, so Run is serialized.
type Engine struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	outputs   []*ort.Tensor[float32]
	modelPath string
	mu        sync.Mutex
}

// Load inspects the model's first input and all outputs and binds float32 tensors to them
func Load(modelPath string, sharedLibraryPath string) (*Engine, error) {
	if err := Initialize(sharedLibraryPath); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io info: %w", err)
	}
	if len(inputInfo) == 0 || len(outputInfo) == 0 {
		return nil, fmt.Errorf("model %s declares no inputs or outputs", modelPath)
	}

	input, err := ort.NewEmptyTensor[float32](fixedShape(inputInfo[0].Dimensions))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	e := &Engine{input: input, modelPath: modelPath}

	outputNames := make([]string, len(outputInfo))
	outputValues := make([]ort.Value, len(outputInfo))
	for i, info := range outputInfo {
		out, err := ort.NewEmptyTensor[float32](fixedShape(info.Dimensions))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("create output tensor %s: %w", info.Name, err)
		}
		e.outputs = append(e.outputs, out)
		outputNames[i] = info.Name
		outputValues[i] = out
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputInfo[0].Name},
		outputNames,
		[]ort.Value{input},
		outputValues,
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.session = session

	log.Debugf("onnx model %s: input %s %v, %d output(s)",
		modelPath, inputInfo[0].Name, inputInfo[0].Dimensions, len(outputInfo))

	return e, nil
}

// Run copies input into the bound input tensor and returns copies of every output
func (e *Engine) Run(input []float32) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := e.input.GetData()
	if len(buf) != len(input) {
		return nil, fmt.Errorf("model %s expects %d input values, got %d", e.modelPath, len(buf), len(input))
	}
	copy(buf, input)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", e.modelPath, err)
	}

	outputs := make([][]float32, len(e.outputs))
	for i, out := range e.outputs {
		data := out.GetData()
		outputs[i] = make([]float32, len(data))
		copy(outputs[i], data)
	}

	return outputs, nil
}

// Close destroys the session and its tensors
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	for _, out := range e.outputs {
		out.Destroy()
	}
	e.outputs = nil
}

// fixedShape replaces dynamic dimensions with 1 for single-image inference
func fixedShape(dims ort.Shape) ort.Shape {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return ort.NewShape(shape...)
}
