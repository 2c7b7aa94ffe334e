package tflite

import (
	"fmt"
	"sync"

	"github.com/mattn/go-tflite"
	"github.com/stashapp/stash/pkg/plugin/common/log"
)

// Engine runs a TensorFlow Lite model through the C interpreter.
// The interpreter is not reentrant, so Run is serialized.
type Engine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	modelPath   string
	mu          sync.Mutex
}

// Config holds interpreter settings
type Config struct {
	NumThreads int
}

// Load opens a .tflite model and allocates its tensors
func Load(modelPath string, config Config) (*Engine, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to open tflite model %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if config.NumThreads > 0 {
		options.SetNumThread(config.NumThreads)
	}

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create tflite interpreter for %s", modelPath)
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to allocate tensors for %s: status %v", modelPath, status)
	}

	log.Debugf("tflite model %s: %d input(s), %d output(s)",
		modelPath, interpreter.GetInputTensorCount(), interpreter.GetOutputTensorCount())

	return &Engine{
		model:       model,
		options:     options,
		interpreter: interpreter,
		modelPath:   modelPath,
	}, nil
}

// Run copies input into tensor 0, invokes the interpreter and copies every output tensor out
func (e *Engine) Run(input []float32) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	in := e.interpreter.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("model %s has no input tensor", e.modelPath)
	}
	buf := in.Float32s()
	if len(buf) != len(input) {
		return nil, fmt.Errorf("model %s expects %d input values, got %d", e.modelPath, len(buf), len(input))
	}
	copy(buf, input)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("invoke failed for %s: status %v", e.modelPath, status)
	}

	count := e.interpreter.GetOutputTensorCount()
	outputs := make([][]float32, count)
	for i := 0; i < count; i++ {
		out := e.interpreter.GetOutputTensor(i)
		if out == nil {
			return nil, fmt.Errorf("model %s output %d missing", e.modelPath, i)
		}
		values := out.Float32s()
		outputs[i] = make([]float32, len(values))
		copy(outputs[i], values)
	}

	return outputs, nil
}

// Close releases the interpreter, options and model
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}
