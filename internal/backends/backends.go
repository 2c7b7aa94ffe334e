// Package backends binds configuration to the concrete inference engines and
// face detectors. It links the native libraries, so only the binaries import it.
package backends

import (
	"fmt"

	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/compreface"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/detect"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/detect/dlib"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference/onnx"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference/tflite"
)

// Dependencies satisfies analysis.Factory
func Dependencies(cfg *config.PluginConfig) analysis.Dependencies {
	return analysis.Dependencies{
		Loader:   Loader(cfg),
		Backends: Detectors(cfg),
	}
}

var _ analysis.Factory = Dependencies

// Loader opens each model with the engine chosen by cfg.Engine, or by file
// extension in auto mode
func Loader(cfg *config.PluginConfig) inference.Loader {
	return func(modelPath string) (inference.Engine, error) {
		mode, err := inference.ParseBackend(cfg.Engine)
		if err != nil {
			return nil, err
		}
		backend, err := inference.ResolveBackend(mode, modelPath)
		if err != nil {
			return nil, err
		}

		log.Debugf("Loading %s with %s engine", modelPath, backend)

		switch backend {
		case inference.BackendTFLite:
			engine, err := tflite.Load(modelPath, tflite.Config{NumThreads: cfg.NumThreads})
			if err != nil {
				return nil, err
			}
			return engine, nil
		case inference.BackendONNX:
			engine, err := onnx.Load(modelPath, cfg.OnnxLibraryPath)
			if err != nil {
				return nil, err
			}
			return engine, nil
		default:
			return nil, fmt.Errorf("no engine for backend %s", backend)
		}
	}
}

// Detectors lists detector backends in auto-mode preference order:
// CompreFace when a key is configured, then dlib, then pigo
func Detectors(cfg *config.PluginConfig) []detect.Backend {
	var backends []detect.Backend

	if cfg.UsesCompreFace() {
		backends = append(backends, detect.Backend{
			Mode: detect.ModeCompreFace,
			Open: func() (detect.Detector, error) {
				client := compreface.NewClient(cfg.ComprefaceURL, cfg.DetectionAPIKey, cfg.MinDetectionProb)
				return compreface.NewDetector(client), nil
			},
		})
	}

	backends = append(backends,
		detect.Backend{
			Mode: detect.ModeDlib,
			Open: func() (detect.Detector, error) {
				detector, err := dlib.NewDetector(dlib.Config{ModelsDir: cfg.DlibModelsDir})
				if err != nil {
					return nil, err
				}
				return detector, nil
			},
		},
		detect.Backend{
			Mode: detect.ModePigo,
			Open: func() (detect.Detector, error) {
				pigoConfig := detect.DefaultPigoConfig()
				pigoConfig.CascadePath = cfg.CascadePath
				pigoConfig.PuplocPath = cfg.PuplocPath
				detector, err := detect.NewPigoDetector(pigoConfig)
				if err != nil {
					return nil, err
				}
				return detector, nil
			},
		},
	)

	return backends
}
