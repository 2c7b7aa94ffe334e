package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/estimator"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/overlay"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/preprocess"
)

type mockAgeGender struct {
	mock.Mock
}

func (m *mockAgeGender) Estimate(tensor preprocess.Tensor) (estimator.AgeGender, error) {
	args := m.Called(tensor)
	return args.Get(0).(estimator.AgeGender), args.Error(1)
}

type mockExpression struct {
	mock.Mock
}

func (m *mockExpression) Classify(tensor preprocess.Tensor) (string, error) {
	args := m.Called(tensor)
	return args.String(0), args.Error(1)
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
		}
	}
	return img
}

func oneFace() []faces.DetectedFace {
	return []faces.DetectedFace{{
		Box: faces.BoundingBox{Left: 20, Top: 20, Right: 100, Bottom: 100},
		Contours: []faces.Contour{
			{Kind: faces.ContourNoseBottom, Points: []faces.Point{{X: 10, Y: 50}, {X: 12, Y: 80}}},
		},
	}}
}

func femaleAdult() estimator.AgeGender {
	return estimator.AgeGender{GenderScore: 0.8, AgeScore: 1.2, Gender: "Female", Age: "18-30"}
}

func TestProcess_NoFaceInvokesNoModel(t *testing.T) {
	ageGender := new(mockAgeGender)
	expression := new(mockExpression)

	result, err := New(ageGender, expression, Options{}).Process(context.Background(), testImage(), faces.Detected(nil))
	require.NoError(t, err)

	assert.Equal(t, StateNoFace, result.State)
	assert.Equal(t, "No face detected", result.AgeGenderText)
	assert.Equal(t, "", result.ExpressionText)
	assert.Nil(t, result.Annotated)
	ageGender.AssertNotCalled(t, "Estimate", mock.Anything)
	expression.AssertNotCalled(t, "Classify", mock.Anything)
	ageGender.AssertNumberOfCalls(t, "Estimate", 0)
	expression.AssertNumberOfCalls(t, "Classify", 0)
}

func TestProcess_DetectionFailure(t *testing.T) {
	ageGender := new(mockAgeGender)
	expression := new(mockExpression)

	result, err := New(ageGender, expression, Options{}).Process(context.Background(), testImage(), faces.Failed(errors.New("detector offline")))
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrDetectionFailed)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "Face detection failed", result.AgeGenderText)
	assert.Equal(t, "", result.ExpressionText)
	assert.Nil(t, result.Attributes)
	ageGender.AssertNotCalled(t, "Estimate", mock.Anything)
	expression.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestProcess_Done(t *testing.T) {
	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Return(femaleAdult(), nil).Once()
	expression.On("Classify", mock.Anything).Return("Happy", nil).Once()

	var transitions []State
	var mu sync.Mutex
	options := Options{OnTransition: func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, to)
	}}

	src := testImage()
	result, err := New(ageGender, expression, options).Process(context.Background(), src, faces.Detected(oneFace()))
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, "Age: 18-30\nGender: Female", result.AgeGenderText)
	assert.Equal(t, "Expression: Happy", result.ExpressionText)
	assert.Equal(t, "Happy", result.Expression)
	require.NotNil(t, result.Attributes)
	assert.Equal(t, "Female", result.Attributes.Gender)
	assert.Len(t, result.Faces, 1)
	require.NotNil(t, result.Annotated)
	assert.Equal(t, []State{StateAnnotating, StateInferring, StateDone}, transitions)

	ageGender.AssertNumberOfCalls(t, "Estimate", 1)
	expression.AssertNumberOfCalls(t, "Classify", 1)
}

func TestProcess_ModelsSeeAnnotatedImage(t *testing.T) {
	src := testImage()
	detected := oneFace()
	want := preprocess.Preprocess(overlay.Render(src, detected))
	unannotated := preprocess.Preprocess(src)
	require.NotEqual(t, unannotated, want)

	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", want).Return(femaleAdult(), nil).Once()
	expression.On("Classify", want).Return("Neutral", nil).Once()

	_, err := New(ageGender, expression, Options{}).Process(context.Background(), src, faces.Detected(detected))
	require.NoError(t, err)

	ageGender.AssertExpectations(t)
	expression.AssertExpectations(t)
}

func TestProcess_SourceImageUntouched(t *testing.T) {
	src := testImage()
	before := append([]uint8(nil), src.Pix...)

	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Return(femaleAdult(), nil)
	expression.On("Classify", mock.Anything).Return("Sad", nil)

	result, err := New(ageGender, expression, Options{}).Process(context.Background(), src, faces.Detected(oneFace()))
	require.NoError(t, err)

	assert.Equal(t, before, src.Pix)
	assert.NotEqual(t, src.Pix, result.Annotated.Pix)
}

func TestProcess_InferenceFailure(t *testing.T) {
	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Return(estimator.AgeGender{}, errors.New("tensor mismatch")).Once()
	expression.On("Classify", mock.Anything).Return("Happy", nil).Maybe()

	result, err := New(ageGender, expression, Options{}).Process(context.Background(), testImage(), faces.Detected(oneFace()))
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StatusInferenceFailed, result.AgeGenderText)
	assert.Equal(t, "", result.ExpressionText)
	assert.Nil(t, result.Attributes)
	assert.Nil(t, result.Annotated)
	ageGender.AssertNumberOfCalls(t, "Estimate", 1)
}

func TestProcess_Sequential(t *testing.T) {
	var active, peak int
	var mu sync.Mutex
	track := func(mock.Arguments) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Run(track).Return(femaleAdult(), nil)
	expression.On("Classify", mock.Anything).Run(track).Return("Fear", nil)

	result, err := New(ageGender, expression, Options{Sequential: true}).Process(context.Background(), testImage(), faces.Detected(oneFace()))
	require.NoError(t, err)

	assert.Equal(t, "Expression: Fear", result.ExpressionText)
	assert.Equal(t, 1, peak)
}

func TestProcess_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Run(func(mock.Arguments) { <-release }).Return(femaleAdult(), nil)
	expression.On("Classify", mock.Anything).Return("Happy", nil)

	result, err := New(ageGender, expression, Options{Timeout: 20 * time.Millisecond}).Process(context.Background(), testImage(), faces.Detected(oneFace()))
	require.Error(t, err)

	assert.ErrorIs(t, err, inference.ErrInference)
	assert.Equal(t, StateFailed, result.State)
}

func TestProcess_CallerCancelDoesNotAbortInference(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Run(func(mock.Arguments) {
		cancel()
		time.Sleep(5 * time.Millisecond)
	}).Return(femaleAdult(), nil)
	expression.On("Classify", mock.Anything).Return("Disgust", nil)

	result, err := New(ageGender, expression, Options{Sequential: true}).Process(ctx, testImage(), faces.Detected(oneFace()))
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
}

func TestFailedResult_Statuses(t *testing.T) {
	assert.Equal(t, StatusDetectionFailed, FailedResult(ErrDetectionFailed).AgeGenderText)
	assert.Equal(t, StatusModelsUnavailable, FailedResult(inference.ErrModelLoad).AgeGenderText)
	assert.Equal(t, StatusInferenceFailed, FailedResult(inference.ErrInference).AgeGenderText)
	assert.Equal(t, "", FailedResult(inference.ErrInference).ExpressionText)
}

func TestSurface_NoStaleLabels(t *testing.T) {
	ageGender := new(mockAgeGender)
	expression := new(mockExpression)
	ageGender.On("Estimate", mock.Anything).Return(femaleAdult(), nil)
	expression.On("Classify", mock.Anything).Return("Surprise", nil)

	orchestrator := New(ageGender, expression, Options{})
	surface := &Surface{}

	done, err := orchestrator.Process(context.Background(), testImage(), faces.Detected(oneFace()))
	require.NoError(t, err)
	surface.Show(done)

	ag, expr := surface.Text()
	assert.Equal(t, "Age: 18-30\nGender: Female", ag)
	assert.Equal(t, "Expression: Surprise", expr)
	assert.NotNil(t, surface.Image())

	failed, err := orchestrator.Process(context.Background(), testImage(), faces.Failed(errors.New("timeout")))
	require.Error(t, err)
	surface.Show(failed)

	ag, expr = surface.Text()
	assert.Equal(t, "Face detection failed", ag)
	assert.Equal(t, "", expr)
	assert.Nil(t, surface.Image())

	noFace, err := orchestrator.Process(context.Background(), testImage(), faces.Detected([]faces.DetectedFace{}))
	require.NoError(t, err)
	surface.Show(noFace)

	ag, expr = surface.Text()
	assert.Equal(t, "No face detected", ag)
	assert.Equal(t, "", expr)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "inferring", StateInferring.String())
	assert.Equal(t, "n/a", State(99).String())
}
