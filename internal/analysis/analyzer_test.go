package analysis

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/detect"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/pipeline"
)

type stubEngine struct {
	outputs [][]float32
	runs    *atomic.Int32
}

func (s *stubEngine) Run(input []float32) ([][]float32, error) {
	if s.runs != nil {
		s.runs.Add(1)
	}
	return s.outputs, nil
}

func (s *stubEngine) Close() {}

type stubDetector struct {
	detection faces.Detection
	calls     atomic.Int32
}

func (s *stubDetector) Name() string { return "stub" }

func (s *stubDetector) Detect(ctx context.Context, img image.Image) faces.Detection {
	s.calls.Add(1)
	return s.detection
}

func (s *stubDetector) Close() {}

func testConfig(t *testing.T) *config.PluginConfig {
	t.Helper()
	cfg := config.Defaults(t.TempDir())
	cfg.Detector = string(detect.ModePigo)
	require.NoError(t, cfg.Finalize())
	return cfg
}

// modelLoader serves fixed outputs per model file and counts loads
func modelLoader(loads *atomic.Int32) inference.Loader {
	return func(modelPath string) (inference.Engine, error) {
		loads.Add(1)
		if strings.Contains(modelPath, "agender") {
			return &stubEngine{outputs: [][]float32{{0.2}, {2.1}}}, nil
		}
		return &stubEngine{outputs: [][]float32{{0, 0, 0, 0.9, 0.1, 0, 0}}}, nil
	}
}

func withDetector(d detect.Detector) []detect.Backend {
	return []detect.Backend{{Mode: detect.ModePigo, Open: func() (detect.Detector, error) { return d, nil }}}
}

func face() faces.DetectedFace {
	return faces.DetectedFace{
		Box: faces.BoundingBox{Left: 20, Top: 20, Right: 80, Bottom: 80},
		Contours: []faces.Contour{
			{Kind: faces.ContourNoseBottom, Points: []faces.Point{{X: 50, Y: 40}, {X: 50, Y: 60}}},
		},
	}
}

func writeImage(t *testing.T, dir string, name string) string {
	t.Helper()
	img := imaging.New(100, 100, color.NRGBA{R: 200, G: 180, B: 160, A: 255})
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestAnalyze_Done(t *testing.T) {
	var loads atomic.Int32
	detector := &stubDetector{detection: faces.Detected([]faces.DetectedFace{face()})}
	analyzer := New(testConfig(t), Dependencies{Loader: modelLoader(&loads), Backends: withDetector(detector)})
	defer analyzer.Close()

	result := analyzer.Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 100, 100)))

	assert.Equal(t, pipeline.StateDone, result.State)
	assert.Equal(t, "Age: 30-50\nGender: Male", result.AgeGenderText)
	assert.Equal(t, "Expression: Happy", result.ExpressionText)
	assert.Equal(t, int32(2), loads.Load())

	ageGender, expression := analyzer.Surface().Text()
	assert.Equal(t, result.AgeGenderText, ageGender)
	assert.Equal(t, result.ExpressionText, expression)
}

func TestNew_OpensModelsUpFront(t *testing.T) {
	var loads, runs atomic.Int32
	loader := func(modelPath string) (inference.Engine, error) {
		loads.Add(1)
		return &stubEngine{outputs: [][]float32{{0.2}, {2.1}}, runs: &runs}, nil
	}
	detector := &stubDetector{detection: faces.Detected(nil)}

	analyzer := New(testConfig(t), Dependencies{Loader: loader, Backends: withDetector(detector)})
	defer analyzer.Close()
	assert.Equal(t, int32(2), loads.Load())
	assert.NoError(t, analyzer.ModelErr())

	result := analyzer.Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	assert.Equal(t, pipeline.StateNoFace, result.State)
	assert.Equal(t, pipeline.StatusNoFace, result.AgeGenderText)
	assert.Equal(t, int32(2), loads.Load())
	assert.Equal(t, int32(0), runs.Load())
}

func TestNew_ModelLoadFailureReportedAtConstruction(t *testing.T) {
	var loads atomic.Int32
	loader := func(modelPath string) (inference.Engine, error) {
		loads.Add(1)
		return nil, errors.New("missing model")
	}
	detector := &stubDetector{detection: faces.Detected(nil)}

	analyzer := New(testConfig(t), Dependencies{Loader: loader, Backends: withDetector(detector)})
	defer analyzer.Close()

	require.Error(t, analyzer.ModelErr())
	assert.ErrorIs(t, analyzer.ModelErr(), inference.ErrModelLoad)
	assert.Contains(t, analyzer.ModelErr().Error(), "missing model")
	assert.Equal(t, int32(2), loads.Load())

	for i := 0; i < 3; i++ {
		result := analyzer.Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
		assert.Equal(t, pipeline.StateNoFace, result.State)
	}
	assert.Equal(t, int32(2), loads.Load())
}

func TestAnalyze_ModelLoadFailureReportedEveryRequest(t *testing.T) {
	var loads atomic.Int32
	loader := func(modelPath string) (inference.Engine, error) {
		loads.Add(1)
		return nil, errors.New("missing model")
	}
	detector := &stubDetector{detection: faces.Detected([]faces.DetectedFace{face()})}
	analyzer := New(testConfig(t), Dependencies{Loader: loader, Backends: withDetector(detector)})

	for i := 0; i < 3; i++ {
		result := analyzer.Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 100, 100)))
		assert.Equal(t, pipeline.StateFailed, result.State)
		assert.Equal(t, pipeline.StatusModelsUnavailable, result.AgeGenderText)
		assert.ErrorIs(t, result.Err, inference.ErrModelLoad)
	}

	// one attempt per model file, never retried
	assert.Equal(t, int32(2), loads.Load())
}

func TestAnalyze_NoDetectorAvailable(t *testing.T) {
	var loads atomic.Int32
	backends := []detect.Backend{{Mode: detect.ModePigo, Open: func() (detect.Detector, error) {
		return nil, errors.New("cascade missing")
	}}}
	analyzer := New(testConfig(t), Dependencies{Loader: modelLoader(&loads), Backends: backends})

	result := analyzer.Analyze(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	assert.Equal(t, pipeline.StateFailed, result.State)
	assert.Equal(t, pipeline.StatusDetectionFailed, result.AgeGenderText)
	assert.ErrorIs(t, result.Err, pipeline.ErrDetectionFailed)
	assert.Contains(t, result.Err.Error(), "cascade missing")
}

func TestAnalyzeFile_SavesAnnotatedImage(t *testing.T) {
	dir := t.TempDir()
	source := writeImage(t, dir, "portrait.png")
	out := filepath.Join(dir, "out", "portrait_annotated.png")

	var loads atomic.Int32
	detector := &stubDetector{detection: faces.Detected([]faces.DetectedFace{face()})}
	analyzer := New(testConfig(t), Dependencies{Loader: modelLoader(&loads), Backends: withDetector(detector)})

	report := analyzer.AnalyzeFile(context.Background(), source, out)

	assert.Equal(t, "done", report.State)
	assert.Equal(t, out, report.AnnotatedPath)
	assert.Empty(t, report.Error)
	require.Len(t, report.Faces, 1)

	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestAnalyzeFile_NoAnnotatedImageWithoutFaces(t *testing.T) {
	dir := t.TempDir()
	source := writeImage(t, dir, "empty.png")
	out := filepath.Join(dir, "empty_annotated.png")

	var loads atomic.Int32
	detector := &stubDetector{detection: faces.Detected(nil)}
	analyzer := New(testConfig(t), Dependencies{Loader: modelLoader(&loads), Backends: withDetector(detector)})

	report := analyzer.AnalyzeFile(context.Background(), source, out)

	assert.Equal(t, "no-face", report.State)
	assert.Empty(t, report.AnnotatedPath)
	assert.NotNil(t, report.Faces)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestAnalyzeFile_Unreadable(t *testing.T) {
	var loads atomic.Int32
	detector := &stubDetector{detection: faces.Detected(nil)}
	analyzer := New(testConfig(t), Dependencies{Loader: modelLoader(&loads), Backends: withDetector(detector)})

	report := analyzer.AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"), "")
	assert.Equal(t, "failed", report.State)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, int32(0), detector.calls.Load())

	report = analyzer.AnalyzeBytes(context.Background(), "upload", []byte("not an image"), "")
	assert.Equal(t, "failed", report.State)
}

func TestOutputPath(t *testing.T) {
	cfg := testConfig(t)
	analyzer := New(cfg, Dependencies{Loader: modelLoader(new(atomic.Int32))})

	assert.Equal(t, "/explicit.jpg", analyzer.OutputPath("/photos/a.jpg", "/explicit.jpg"))
	assert.Equal(t, "", analyzer.OutputPath("/photos/a.jpg", ""))

	cfg.OutputDir = "/annotated"
	assert.Equal(t, filepath.Join("/annotated", "a_annotated.jpg"), analyzer.OutputPath("/photos/a.jpg", ""))
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]Report{
		{State: "done"},
		{State: "done"},
		{State: "no-face"},
		{State: "failed"},
	})
	assert.Equal(t, Summary{Total: 4, Done: 2, NoFace: 1, Failed: 1}, summary)
}
