package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/stashapp/stash/pkg/plugin/common/log"
	"golang.org/x/sync/errgroup"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/estimator"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/overlay"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/preprocess"
)

// DefaultTimeout bounds the inference step of one request
const DefaultTimeout = 30 * time.Second

// Options tunes the orchestrator
type Options struct {
	// Timeout bounds the Inferring step. Zero means DefaultTimeout.
	Timeout time.Duration
	// Sequential runs the two models one after the other instead of concurrently
	Sequential bool
	// OnTransition, when set, observes every state change
	OnTransition func(from, to State)
}

// Orchestrator sequences overlay rendering, preprocessing and both attribute
// models for one image at a time.
type Orchestrator struct {
	ageGender  estimator.AgeGenderEstimator
	expression estimator.ExpressionClassifier
	options    Options
}

// New creates an orchestrator over the two estimators
func New(ageGender estimator.AgeGenderEstimator, expression estimator.ExpressionClassifier, options Options) *Orchestrator {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	return &Orchestrator{
		ageGender:  ageGender,
		expression: expression,
		options:    options,
	}
}

// Process runs one request. A detection failure or inference failure yields a
// Failed result together with the error; an empty detection yields NoFace and
// no model is invoked.
//
// The models see the annotated image, not img. Drawn overlay pixels therefore
// contribute to the tensor.
func (o *Orchestrator) Process(ctx context.Context, img image.Image, detection faces.Detection) (*Result, error) {
	state := StateIdle

	detected, ok := detection.Faces()
	if !ok {
		err := fmt.Errorf("%w: %v", ErrDetectionFailed, detection.Err())
		o.transition(&state, StateFailed)
		log.Warnf("Face detection failed: %v", detection.Err())
		return FailedResult(err), err
	}

	if len(detected) == 0 {
		o.transition(&state, StateNoFace)
		log.Info(StatusNoFace)
		return noFaceResult(), nil
	}

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("request cancelled before annotation: %w", err)
		o.transition(&state, StateFailed)
		return FailedResult(err), err
	}

	o.transition(&state, StateAnnotating)
	annotated := overlay.Render(img, detected)

	o.transition(&state, StateInferring)
	tensor := preprocess.Preprocess(annotated)

	attributes, expression, err := o.infer(ctx, tensor)
	if err != nil {
		o.transition(&state, StateFailed)
		log.Errorf("Attribute inference failed: %v", err)
		return FailedResult(err), err
	}

	o.transition(&state, StateDone)
	log.Infof("Analyzed %d face(s): age=%s gender=%s expression=%s",
		len(detected), attributes.Age, attributes.Gender, expression)

	return &Result{
		State:          StateDone,
		AgeGenderText:  fmt.Sprintf("Age: %s\nGender: %s", attributes.Age, attributes.Gender),
		ExpressionText: fmt.Sprintf("Expression: %s", expression),
		Attributes:     &attributes,
		Expression:     expression,
		Faces:          detected,
		Annotated:      annotated,
	}, nil
}

// infer runs both models on the shared tensor. Caller cancellation does not
// interrupt a started inference; only the defensive timeout does.
func (o *Orchestrator) infer(ctx context.Context, tensor preprocess.Tensor) (estimator.AgeGender, string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.options.Timeout)
	defer cancel()

	type outcome struct {
		attributes estimator.AgeGender
		expression string
		err        error
	}
	done := make(chan outcome, 1)

	go func() {
		var out outcome
		g := new(errgroup.Group)
		if o.options.Sequential {
			g.SetLimit(1)
		}
		g.Go(func() error {
			var err error
			out.attributes, err = o.ageGender.Estimate(tensor)
			return err
		})
		g.Go(func() error {
			var err error
			out.expression, err = o.expression.Classify(tensor)
			return err
		})
		out.err = g.Wait()
		done <- out
	}()

	select {
	case out := <-done:
		return out.attributes, out.expression, out.err
	case <-ctx.Done():
		return estimator.AgeGender{}, "", fmt.Errorf("%w: timed out after %s", inference.ErrInference, o.options.Timeout)
	}
}

// transition moves the request to the next state
func (o *Orchestrator) transition(state *State, next State) {
	log.Debugf("pipeline: %s -> %s", *state, next)
	if o.options.OnTransition != nil {
		o.options.OnTransition(*state, next)
	}
	*state = next
}
