package estimator

import (
	"fmt"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/preprocess"
)

// Output positions fixed by the age/gender model file
const (
	genderOutput = 0
	ageOutput    = 1
)

// AgeGender holds the raw head values and their decoded labels
type AgeGender struct {
	GenderScore float32 `json:"gender_score"`
	AgeScore    float32 `json:"age_score"`
	Gender      string  `json:"gender"`
	Age         string  `json:"age"`
}

// AgeGenderEstimator predicts age bracket and gender from an attribute tensor
type AgeGenderEstimator interface {
	Estimate(tensor preprocess.Tensor) (AgeGender, error)
}

// ExpressionClassifier predicts one of ExpressionLabels from an attribute tensor
type ExpressionClassifier interface {
	Classify(tensor preprocess.Tensor) (string, error)
}

// ============================================================================
// Engine-backed implementations
// ============================================================================

// EngineSource yields the engine for one model, loading it on first use
type EngineSource func() (inference.Engine, error)

// Loaded returns a source for an engine that is already open
func Loaded(engine inference.Engine) EngineSource {
	return func() (inference.Engine, error) {
		return engine, nil
	}
}

// FromRegistry returns a source that loads modelPath through registry
func FromRegistry(registry *inference.Registry, modelPath string) EngineSource {
	return func() (inference.Engine, error) {
		return registry.Get(modelPath)
	}
}

// ModelAgeGender runs the dual-output age/gender model
type ModelAgeGender struct {
	source EngineSource
}

// NewAgeGender wraps a loaded age/gender engine
func NewAgeGender(engine inference.Engine) *ModelAgeGender {
	return NewAgeGenderFrom(Loaded(engine))
}

// NewAgeGenderFrom defers obtaining the engine until the first estimate
func NewAgeGenderFrom(source EngineSource) *ModelAgeGender {
	return &ModelAgeGender{source: source}
}

// Estimate performs a single forward pass. Engine errors are returned, never defaulted.
func (m *ModelAgeGender) Estimate(tensor preprocess.Tensor) (AgeGender, error) {
	engine, err := m.source()
	if err != nil {
		return AgeGender{}, err
	}

	outputs, err := engine.Run(tensor)
	if err != nil {
		return AgeGender{}, fmt.Errorf("%w: age/gender: %v", inference.ErrInference, err)
	}

	gender, err := inference.Output(outputs, genderOutput, 1)
	if err != nil {
		return AgeGender{}, fmt.Errorf("age/gender gender head: %w", err)
	}
	age, err := inference.Output(outputs, ageOutput, 1)
	if err != nil {
		return AgeGender{}, fmt.Errorf("age/gender age head: %w", err)
	}
	if !finite(gender) || !finite(age) {
		return AgeGender{}, fmt.Errorf("%w: age/gender output is not finite: gender=%v age=%v", inference.ErrInference, gender[0], age[0])
	}

	return AgeGender{
		GenderScore: gender[0],
		AgeScore:    age[0],
		Gender:      GenderLabel(gender[0]),
		Age:         AgeLabel(age[0]),
	}, nil
}

// ModelExpression runs the single-output expression model
type ModelExpression struct {
	source EngineSource
}

// NewExpression wraps a loaded expression engine
func NewExpression(engine inference.Engine) *ModelExpression {
	return NewExpressionFrom(Loaded(engine))
}

// NewExpressionFrom defers obtaining the engine until the first classification
func NewExpressionFrom(source EngineSource) *ModelExpression {
	return &ModelExpression{source: source}
}

// Classify performs a single forward pass and arg-max decodes output 0
func (m *ModelExpression) Classify(tensor preprocess.Tensor) (string, error) {
	engine, err := m.source()
	if err != nil {
		return "", err
	}

	outputs, err := engine.Run(tensor)
	if err != nil {
		return "", fmt.Errorf("%w: expression: %v", inference.ErrInference, err)
	}

	scores, err := inference.Output(outputs, 0, len(ExpressionLabels))
	if err != nil {
		return "", fmt.Errorf("expression head: %w", err)
	}

	return ExpressionLabel(scores)
}
