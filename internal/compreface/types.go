package compreface

import "net/http"

// Client handles detection calls to a CompreFace service
type Client struct {
	BaseURL          string
	DetectionKey     string
	MinDetectionProb float64
	httpClient       *http.Client
}

// FaceDetection represents a detected face from Compreface
type FaceDetection struct {
	Box       BoundingBox `json:"box"`
	Landmarks [][]float64 `json:"landmarks"`
}

// BoundingBox represents face coordinates
type BoundingBox struct {
	XMin        int     `json:"x_min"`
	YMin        int     `json:"y_min"`
	XMax        int     `json:"x_max"`
	YMax        int     `json:"y_max"`
	Probability float64 `json:"probability"`
}

// DetectionResponse is the response from face detection API
type DetectionResponse struct {
	Result          []FaceDetection   `json:"result"`
	PluginsVersions map[string]string `json:"plugins_versions"`
}

// errorResponse is the body CompreFace returns on failure
type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
