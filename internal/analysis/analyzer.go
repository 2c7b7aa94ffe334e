// Package analysis composes face detection and the attribute pipeline behind
// a single entry point shared by the plugin and the CLI.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/detect"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/estimator"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/imageio"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/pipeline"
)

// Dependencies are the concrete backends an Analyzer runs on
type Dependencies struct {
	// Loader opens one attribute model file
	Loader inference.Loader
	// Backends lists face detectors in preference order
	Backends []detect.Backend
}

// Factory builds Dependencies for a configuration
type Factory func(cfg *config.PluginConfig) Dependencies

// Analyzer runs one request at a time through detection and the attribute pipeline
type Analyzer struct {
	config       *config.PluginConfig
	backends     []detect.Backend
	registry     *inference.Registry
	orchestrator *pipeline.Orchestrator
	surface      *pipeline.Surface

	detectorOnce sync.Once
	detector     detect.Detector
	detectorErr  error

	modelErr error

	// one in-flight request
	mu sync.Mutex
}

// New creates an analyzer and opens both attribute models. A model that cannot
// be opened is reported once here; requests that reach inference then fail
// with inference.ErrModelLoad. Detectors are opened on first use.
func New(cfg *config.PluginConfig, deps Dependencies) *Analyzer {
	registry := inference.NewRegistry(deps.Loader)

	orchestrator := pipeline.New(
		estimator.NewAgeGenderFrom(estimator.FromRegistry(registry, cfg.AgeGenderModel)),
		estimator.NewExpressionFrom(estimator.FromRegistry(registry, cfg.ExpressionModel)),
		pipeline.Options{
			Timeout:    cfg.InferenceTimeout(),
			Sequential: cfg.Sequential,
		},
	)

	analyzer := &Analyzer{
		config:       cfg,
		backends:     deps.Backends,
		registry:     registry,
		orchestrator: orchestrator,
		surface:      &pipeline.Surface{},
	}
	analyzer.modelErr = analyzer.openModels()
	return analyzer
}

// openModels loads both models through the registry, which caches the outcome
func (a *Analyzer) openModels() error {
	var errs []error
	for _, path := range []string{a.config.AgeGenderModel, a.config.ExpressionModel} {
		if _, err := a.registry.Get(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ModelErr returns the model load failure recorded by New, or nil
func (a *Analyzer) ModelErr() error {
	return a.modelErr
}

// Surface exposes the most recently shown result
func (a *Analyzer) Surface() *pipeline.Surface {
	return a.surface
}

// Analyze detects faces in img and runs the attribute pipeline. The outcome,
// including any failure, is carried in the returned Result.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image) *pipeline.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	detection := a.detect(ctx, img)

	result, err := a.orchestrator.Process(ctx, img, detection)
	if err != nil {
		log.Debugf("Request ended in %s: %v", result.State, err)
	}

	a.surface.Show(result)
	return result
}

// AnalyzeFile loads path, analyzes it and, when outputPath is set and an
// annotated image was produced, saves the annotated copy there
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, outputPath string) Report {
	img, err := imageio.Load(path)
	if err != nil {
		return ErrorReport(path, err)
	}
	return a.analyzeImage(ctx, path, img, outputPath)
}

// AnalyzeBytes is AnalyzeFile for an image already held in memory
func (a *Analyzer) AnalyzeBytes(ctx context.Context, source string, data []byte, outputPath string) Report {
	img, err := imageio.DecodeBytes(data)
	if err != nil {
		return ErrorReport(source, err)
	}
	return a.analyzeImage(ctx, source, img, outputPath)
}

func (a *Analyzer) analyzeImage(ctx context.Context, source string, img image.Image, outputPath string) Report {
	log.Infof("Analyzing %s (%dx%d)", source, img.Bounds().Dx(), img.Bounds().Dy())

	result := a.Analyze(ctx, img)
	report := NewReport(source, result)

	if outputPath != "" && result.Annotated != nil {
		if err := imageio.Save(result.Annotated, outputPath); err != nil {
			log.Warnf("Failed to save annotated image for %s: %v", source, err)
		} else {
			report.AnnotatedPath = outputPath
		}
	}

	return report
}

// OutputPath returns where the annotated copy of source is written: explicit
// wins, then the configured output directory, else nowhere
func (a *Analyzer) OutputPath(source string, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if a.config.OutputDir != "" {
		return imageio.AnnotatedPath(a.config.OutputDir, source)
	}
	return ""
}

// detect opens the detector router on first use. A router that cannot open
// fails every request as a detection failure.
func (a *Analyzer) detect(ctx context.Context, img image.Image) faces.Detection {
	a.detectorOnce.Do(func() {
		mode, err := detect.ParseMode(a.config.Detector)
		if err != nil {
			a.detectorErr = err
			return
		}
		router, err := detect.NewRouter(detect.RouterConfig{
			Mode:        mode,
			MinFaceSize: a.config.MinFaceSize,
			Backends:    a.backends,
		})
		if err != nil {
			log.Errorf("No face detector available: %v", err)
			a.detectorErr = err
			return
		}
		a.detector = router
	})

	if a.detectorErr != nil {
		return faces.Failed(fmt.Errorf("detector unavailable: %w", a.detectorErr))
	}
	return a.detector.Detect(ctx, img)
}

// Close releases detectors and loaded models
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detector != nil {
		a.detector.Close()
	}
	a.registry.Close()
}
