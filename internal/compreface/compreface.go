package compreface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stashapp/stash/pkg/plugin/common/log"
)

// ============================================================================
// Compreface HTTP Client - Detection
// ============================================================================

// NewClient creates a new Compreface detection client
func NewClient(baseURL string, detectionKey string, minDetectionProb float64) *Client {
	return &Client{
		BaseURL:          baseURL,
		DetectionKey:     detectionKey,
		MinDetectionProb: minDetectionProb,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// DetectFacesFromBytes detects faces and their 5-point landmarks in image bytes
// POST /api/v1/detection/detect?face_plugins=landmarks
func (c *Client) DetectFacesFromBytes(ctx context.Context, imageBytes []byte, filename string) (*DetectionResponse, error) {
	query := url.Values{}
	query.Set("face_plugins", "landmarks")
	if c.MinDetectionProb > 0 {
		query.Set("det_prob_threshold", strconv.FormatFloat(c.MinDetectionProb, 'f', -1, 64))
	}
	endpoint := fmt.Sprintf("%s/api/v1/detection/detect?%s", c.BaseURL, query.Encode())

	// Create multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = part.Write(imageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Create request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.DetectionKey)

	// Send request
	log.Tracef("DetectFacesFromBytes: POST %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Read response
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// CompreFace answers 400 with code 28 when the image contains no face
	if resp.StatusCode == http.StatusBadRequest {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code == noFaceFoundCode {
			log.Debugf("DetectFacesFromBytes: %s", apiErr.Message)
			return &DetectionResponse{Result: []FaceDetection{}}, nil
		}
	}

	// Check status code
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	// Parse response
	var detection DetectionResponse
	err = json.Unmarshal(respBody, &detection)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	log.Debugf("DetectFacesFromBytes: Found %d face(s)", len(detection.Result))
	return &detection, nil
}

// noFaceFoundCode is CompreFace's error code for an image without faces
const noFaceFoundCode = 28
