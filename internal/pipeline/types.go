package pipeline

import (
	"errors"
	"image"
	"sync"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/estimator"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
)

// ErrDetectionFailed marks a request whose face detector reported an error
var ErrDetectionFailed = errors.New("face detection failed")

// User-visible status strings
const (
	StatusNoFace            = "No face detected"
	StatusDetectionFailed   = "Face detection failed"
	StatusInferenceFailed   = "Attribute prediction failed"
	StatusModelsUnavailable = "Attribute models unavailable"
)

// State is a step of one request through the orchestrator
type State int

const (
	StateIdle State = iota
	StateNoFace
	StateAnnotating
	StateInferring
	StateDone
	StateFailed
)

// String converts State to string representation
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNoFace:
		return "no-face"
	case StateAnnotating:
		return "annotating"
	case StateInferring:
		return "inferring"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "n/a"
	}
}

// Result is the terminal outcome of one request. AgeGenderText is
// "Age: {age}\nGender: {gender}" when Done and a status otherwise; ExpressionText
// is "Expression: {label}" when Done and empty otherwise.
type Result struct {
	State          State                `json:"state"`
	AgeGenderText  string               `json:"age_gender"`
	ExpressionText string               `json:"expression"`
	Attributes     *estimator.AgeGender `json:"attributes,omitempty"`
	Expression     string               `json:"expression_label,omitempty"`
	Faces          []faces.DetectedFace `json:"faces,omitempty"`
	Annotated      *image.NRGBA         `json:"-"`
	Err            error                `json:"-"`
}

// noFaceResult is the terminal outcome for an empty detection
func noFaceResult() *Result {
	return &Result{
		State:         StateNoFace,
		AgeGenderText: StatusNoFace,
	}
}

// FailedResult builds the terminal outcome for err. No label text is carried over.
func FailedResult(err error) *Result {
	status := StatusInferenceFailed
	switch {
	case errors.Is(err, ErrDetectionFailed):
		status = StatusDetectionFailed
	case errors.Is(err, inference.ErrModelLoad):
		status = StatusModelsUnavailable
	}
	return &Result{
		State:         StateFailed,
		AgeGenderText: status,
		Err:           err,
	}
}

// Surface holds the two text fields and image shown to the user.
// Every Show replaces all three, so a previous request never leaks into the next.
type Surface struct {
	ageGender  string
	expression string
	image      image.Image
	mu         sync.RWMutex
}

// Show replaces the displayed values with those of r
func (s *Surface) Show(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ageGender = r.AgeGenderText
	s.expression = r.ExpressionText
	if r.Annotated != nil {
		s.image = r.Annotated
	} else {
		s.image = nil
	}
}

// Text returns the displayed age/gender and expression fields
func (s *Surface) Text() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ageGender, s.expression
}

// Image returns the displayed annotated image, if any
func (s *Surface) Image() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.image
}
