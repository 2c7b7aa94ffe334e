package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/joho/godotenv"
	"github.com/stashapp/stash/pkg/plugin/common"
	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/detect"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/inference"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/stash"
)

// EnvPrefix prefixes every environment override, e.g. FACEATTR_DETECTOR
const EnvPrefix = "FACEATTR_"

// Defaults returns the configuration used when nothing is overridden
func Defaults(pluginDir string) *PluginConfig {
	return &PluginConfig{
		Detector:                string(detect.ModeAuto),
		MinDetectionProb:        0.8,
		Engine:                  string(inference.BackendAuto),
		ModelsDir:               filepath.Join(pluginDir, "models"),
		AgeGenderModel:          "agender_cnn_model.tflite",
		ExpressionModel:         "expression_cnn_model.tflite",
		NumThreads:              1,
		InferenceTimeoutSeconds: 30,
		CooldownSeconds:         0,
		MaxBatchSize:            20,
		MinFaceSize:             0,
	}
}

// Load loads and validates plugin configuration. Layers apply in order:
// defaults, Stash plugin settings, then FACEATTR_* overrides from the process
// environment or <plugin dir>/.env.
func Load(ctx context.Context, input common.PluginInput, client *graphql.Client) (*PluginConfig, error) {
	pluginDir := input.ServerConnection.PluginDir
	config := Defaults(pluginDir)

	// Fetch plugin configuration from Stash
	if client != nil {
		pluginConfig, err := getPluginConfiguration(ctx, client)
		if err != nil {
			log.Warnf("Failed to get plugin configuration: %v, using defaults", err)
			// Don't fail - use defaults
		} else {
			config.ApplySettings(pluginConfig)
		}
	}

	if err := config.ApplyEnvFile(filepath.Join(pluginDir, ".env")); err != nil {
		log.Warnf("Failed to read .env overrides: %v", err)
	}

	if err := config.Finalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// getPluginConfiguration fetches plugin configuration from Stash via GraphQL
func getPluginConfiguration(ctx context.Context, client *graphql.Client) (map[string]interface{}, error) {
	settings, err := stash.GetPluginSettings(ctx, client, PluginID)
	if err != nil {
		return nil, err
	}
	log.Debugf("Loaded %d plugin setting(s) from Stash", len(settings))
	return settings, nil
}

// ApplySettings overrides fields with any recognised, non-empty setting
func (c *PluginConfig) ApplySettings(settings map[string]interface{}) {
	if val := getStringSetting(settings, keyDetector); val != "" {
		c.Detector = val
	}
	if val := getStringSetting(settings, keyComprefaceURL); val != "" {
		c.ComprefaceURL = val
	}
	if val := getStringSetting(settings, keyDetectionAPIKey); val != "" {
		c.DetectionAPIKey = val
	}
	if val := getFloatSetting(settings, keyMinDetectionProb); val > 0 {
		c.MinDetectionProb = val
	}
	if val := getStringSetting(settings, keyCascadePath); val != "" {
		c.CascadePath = val
	}
	if val := getStringSetting(settings, keyPuplocPath); val != "" {
		c.PuplocPath = val
	}
	if val := getStringSetting(settings, keyDlibModelsDir); val != "" {
		c.DlibModelsDir = val
	}
	if val := getIntSetting(settings, keyMinFaceSize); val > 0 {
		c.MinFaceSize = val
	}
	if val := getStringSetting(settings, keyEngine); val != "" {
		c.Engine = val
	}
	if val := getStringSetting(settings, keyModelsDir); val != "" {
		c.ModelsDir = val
	}
	if val := getStringSetting(settings, keyAgeGenderModel); val != "" {
		c.AgeGenderModel = val
	}
	if val := getStringSetting(settings, keyExpressionModel); val != "" {
		c.ExpressionModel = val
	}
	if val := getStringSetting(settings, keyOnnxLibraryPath); val != "" {
		c.OnnxLibraryPath = val
	}
	if val := getIntSetting(settings, keyNumThreads); val > 0 {
		c.NumThreads = val
	}
	if val := getIntSetting(settings, keyInferenceTimeoutSeconds); val > 0 {
		c.InferenceTimeoutSeconds = val
	}
	if val, ok := getBoolSetting(settings, keySequential); ok {
		c.Sequential = val
	}
	if val := getIntSetting(settings, keyCooldownSeconds); val > 0 {
		c.CooldownSeconds = val
	}
	if val := getIntSetting(settings, keyMaxBatchSize); val > 0 {
		c.MaxBatchSize = val
	}
	if val := getStringSetting(settings, keyOutputDir); val != "" {
		c.OutputDir = val
	}
}

// ApplyEnvFile applies FACEATTR_* overrides. Variables already set in the
// process environment win over the file; a missing file is not an error.
func (c *PluginConfig) ApplyEnvFile(path string) error {
	fileValues := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileValues = values
			log.Debugf("Loaded %d value(s) from %s", len(values), path)
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	overrides := make(map[string]interface{})
	for _, key := range settingKeys {
		name := EnvName(key)
		if val, ok := os.LookupEnv(name); ok {
			overrides[key] = val
		} else if val, ok := fileValues[name]; ok {
			overrides[key] = val
		}
	}

	c.ApplySettings(overrides)
	return nil
}

// Finalize resolves service URLs and model paths, then validates
func (c *PluginConfig) Finalize() error {
	mode, err := detect.ParseMode(c.Detector)
	if err != nil {
		return err
	}
	c.Detector = string(mode)

	backend, err := inference.ParseBackend(c.Engine)
	if err != nil {
		return err
	}
	c.Engine = string(backend)

	if c.UsesCompreFace() {
		// Resolve Compreface URL with auto-detection
		c.ComprefaceURL = resolveServiceURL(c.ComprefaceURL, "compreface", "8000")
	}

	c.AgeGenderModel = c.modelPath(c.AgeGenderModel)
	c.ExpressionModel = c.modelPath(c.ExpressionModel)
	if c.CascadePath == "" {
		c.CascadePath = filepath.Join(c.ModelsDir, "facefinder")
	}
	if c.DlibModelsDir == "" {
		c.DlibModelsDir = c.ModelsDir
	}

	return c.Validate()
}

// Validate checks settings that have no usable fallback
func (c *PluginConfig) Validate() error {
	if mode, _ := detect.ParseMode(c.Detector); mode == detect.ModeCompreFace && c.DetectionAPIKey == "" {
		return fmt.Errorf("detection API key is required")
	}
	if c.InferenceTimeoutSeconds <= 0 {
		return fmt.Errorf("inference timeout must be positive, got %d", c.InferenceTimeoutSeconds)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive, got %d", c.MaxBatchSize)
	}
	if c.MinDetectionProb < 0 || c.MinDetectionProb > 1 {
		return fmt.Errorf("min detection probability must be within [0, 1], got %g", c.MinDetectionProb)
	}
	if c.AgeGenderModel == "" || c.ExpressionModel == "" {
		return fmt.Errorf("both attribute model paths are required")
	}
	return nil
}

// UsesCompreFace reports whether detection may be routed to CompreFace. In
// auto mode the service is only tried when a key has been configured.
func (c *PluginConfig) UsesCompreFace() bool {
	switch detect.Mode(c.Detector) {
	case detect.ModeCompreFace:
		return true
	case detect.ModeAuto:
		return c.DetectionAPIKey != ""
	default:
		return false
	}
}

// InferenceTimeout is the per-request inference budget
func (c *PluginConfig) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

// Cooldown is the pause between images in batch tasks
func (c *PluginConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// modelPath resolves a bare model file name against ModelsDir
func (c *PluginConfig) modelPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(c.ModelsDir, name)
}

var settingKeys = []string{
	keyDetector,
	keyComprefaceURL,
	keyDetectionAPIKey,
	keyMinDetectionProb,
	keyCascadePath,
	keyPuplocPath,
	keyDlibModelsDir,
	keyMinFaceSize,
	keyEngine,
	keyModelsDir,
	keyAgeGenderModel,
	keyExpressionModel,
	keyOnnxLibraryPath,
	keyNumThreads,
	keyInferenceTimeoutSeconds,
	keySequential,
	keyCooldownSeconds,
	keyMaxBatchSize,
	keyOutputDir,
}

// EnvName maps a setting key to its environment variable, e.g.
// comprefaceUrl -> FACEATTR_COMPREFACE_URL
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// getStringSetting retrieves a string setting from plugin config
func getStringSetting(config map[string]interface{}, key string) string {
	if val, ok := config[key]; ok {
		if str, ok := val.(string); ok {
			return strings.TrimSpace(str)
		}
	}
	return ""
}

// getIntSetting retrieves an integer setting from plugin config
func getIntSetting(config map[string]interface{}, key string) int {
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n
			}
		}
	}
	return 0
}

// getFloatSetting retrieves a float setting from plugin config
func getFloatSetting(config map[string]interface{}, key string) float64 {
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0.0
}

// getBoolSetting retrieves a boolean setting; ok is false when unset or malformed
func getBoolSetting(config map[string]interface{}, key string) (bool, bool) {
	if val, ok := config[key]; ok {
		switch v := val.(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

// resolveServiceURL resolves the service URL with proper DNS lookup.
// Handles IP addresses, hostnames, container names, and localhost.
//
// Based on auto-caption pattern for Docker Compose compatibility.
//
// Parameters:
//   - configuredURL: The URL from configuration (may be empty)
//   - defaultContainerName: Default container name for auto-detection
//   - defaultPort: Default port number
//
// Returns: Resolved URL
func resolveServiceURL(configuredURL string, defaultContainerName string, defaultPort string) string {
	const defaultScheme = "http"
	var hardcodedFallback = fmt.Sprintf("%s://%s:%s", defaultScheme, defaultContainerName, defaultPort)

	// If no URL configured, use fallback
	if configuredURL == "" {
		log.Infof("No service URL configured, using default: %s", hardcodedFallback)
		return hardcodedFallback
	}

	// Parse the URL
	parsedURL, err := url.Parse(configuredURL)
	if err != nil {
		log.Warnf("Failed to parse service URL '%s': %v, using fallback", configuredURL, err)
		return hardcodedFallback
	}

	hostname := parsedURL.Hostname()
	port := parsedURL.Port()
	scheme := parsedURL.Scheme

	// Default scheme if not specified
	if scheme == "" {
		scheme = defaultScheme
	}

	// Default port if not specified
	if port == "" {
		port = defaultPort
	}

	// Case 1: localhost - use as-is
	if hostname == "localhost" || hostname == "127.0.0.1" {
		resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
		log.Infof("Using localhost service URL: %s", resolvedURL)
		return resolvedURL
	}

	// Case 2: Already an IP address - use as-is
	if net.ParseIP(hostname) != nil {
		resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
		log.Infof("Using IP-based service URL: %s", resolvedURL)
		return resolvedURL
	}

	// Case 3: Hostname or container name - resolve via DNS
	log.Infof("Resolving hostname via DNS: %s", hostname)
	addrs, err := net.LookupIP(hostname)
	if err != nil {
		log.Warnf("DNS lookup failed for '%s': %v, using hostname as-is", hostname, err)
		// Return original URL even if DNS fails - it might still work
		resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
		return resolvedURL
	}

	if len(addrs) == 0 {
		log.Warnf("No IP addresses found for hostname '%s', using hostname as-is", hostname)
		resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
		return resolvedURL
	}

	// Use the first resolved IP address
	resolvedIP := addrs[0].String()
	resolvedURL := fmt.Sprintf("%s://%s:%s", scheme, resolvedIP, port)
	log.Infof("Resolved '%s' to %s", hostname, resolvedURL)
	return resolvedURL
}
