package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
	"github.com/smegmarip/stash-face-attributes-plugin/pkg/utils"
)

// Mode defines the face detection backend to use
type Mode string

const (
	ModeCompreFace Mode = "compreface" // CompreFace detection service over HTTP
	ModeDlib       Mode = "dlib"       // go-face (dlib via CGO)
	ModePigo       Mode = "pigo"       // pure-Go pixel intensity cascade
	ModeAuto       Mode = "auto"       // first backend that opens, falling back on failure
)

// ParseMode validates a configured detector name
func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case ModeCompreFace:
		return ModeCompreFace, nil
	case ModeDlib:
		return ModeDlib, nil
	case ModePigo:
		return ModePigo, nil
	case ModeAuto, "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("invalid detector: %s", name)
	}
}

// Backend is a detector that can be opened on demand
type Backend struct {
	Mode Mode
	Open func() (Detector, error)
}

// Router routes detection requests to the configured backend
type Router struct {
	mode        Mode
	detectors   []Detector
	minFaceSize int
}

// RouterConfig holds configuration for Router
type RouterConfig struct {
	Mode        Mode
	MinFaceSize int
	// Backends in preference order. Auto mode tries them in this order.
	Backends []Backend
}

// NewRouter opens the backend for config.Mode, or every openable backend in auto mode
func NewRouter(config RouterConfig) (*Router, error) {
	router := &Router{
		mode:        config.Mode,
		minFaceSize: config.MinFaceSize,
	}

	var errs []error
	for _, backend := range config.Backends {
		if config.Mode != ModeAuto && backend.Mode != config.Mode {
			continue
		}
		detector, err := backend.Open()
		if err != nil {
			log.Warnf("Face detector %s unavailable: %v", backend.Mode, err)
			errs = append(errs, fmt.Errorf("%s: %w", backend.Mode, err))
			continue
		}
		log.Infof("Face detector %s ready", detector.Name())
		router.detectors = append(router.detectors, detector)
	}

	if len(router.detectors) == 0 {
		if len(errs) == 0 {
			return nil, fmt.Errorf("no face detector configured for mode %s", config.Mode)
		}
		return nil, fmt.Errorf("failed to initialize face detector: %w", errors.Join(errs...))
	}

	return router, nil
}

// Name lists the active backends
func (r *Router) Name() string {
	names := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		names[i] = d.Name()
	}
	return strings.Join(names, ",")
}

// Detect tries each active backend in order until one succeeds. Faces smaller
// than the configured minimum are dropped.
func (r *Router) Detect(ctx context.Context, img image.Image) faces.Detection {
	var errs []error

	for _, detector := range r.detectors {
		detection := detector.Detect(ctx, img)
		detected, ok := detection.Faces()
		if !ok {
			log.Warnf("Face detector %s failed: %v", detector.Name(), detection.Err())
			errs = append(errs, fmt.Errorf("%s: %w", detector.Name(), detection.Err()))
			continue
		}

		kept := make([]faces.DetectedFace, 0, len(detected))
		for _, face := range detected {
			if !face.Box.Valid() {
				continue
			}
			if r.minFaceSize > 0 && !utils.IsFaceSizeValid(face.Box, r.minFaceSize) {
				log.Debugf("Dropping face %dx%d below minimum size %d", face.Box.Width(), face.Box.Height(), r.minFaceSize)
				continue
			}
			kept = append(kept, face)
		}

		log.Debugf("Face detector %s found %d face(s), kept %d", detector.Name(), len(detected), len(kept))
		return faces.Detected(kept)
	}

	return faces.Failed(errors.Join(errs...))
}

// Close releases resources
func (r *Router) Close() {
	for _, d := range r.detectors {
		d.Close()
	}
}
