package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stashapp/stash/pkg/plugin/common"
	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/stash"
	"github.com/smegmarip/stash-face-attributes-plugin/pkg/utils"
)

// Run handles RPC task execution
func (s *Service) Run(input common.PluginInput, output *common.PluginOutput) error {
	ctx := context.Background()

	// Initialize GraphQL client and image cache
	s.serverConnection = input.ServerConnection
	client, err := stash.Connect(input.ServerConnection)
	if err != nil {
		return s.errorOutput(output, err)
	}
	s.graphqlClient = client
	s.imageCache = stash.NewImageCache()

	// Load plugin configuration
	cfg, err := config.Load(ctx, input, s.graphqlClient)
	if err != nil {
		return s.errorOutput(output, fmt.Errorf("failed to load config: %w", err))
	}
	s.config = cfg

	s.analyzer = analysis.New(cfg, s.dependencies(cfg))
	defer s.analyzer.Close()

	mode := input.Args.String("mode")
	argsMap := input.Args.ToMap()

	log.Infof("Face attributes plugin started - mode: %s", mode)
	log.Debugf("Configuration: Detector=%s, Engine=%s, AgeGender=%s, Expression=%s, Timeout=%ds",
		cfg.Detector, cfg.Engine, cfg.AgeGenderModel, cfg.ExpressionModel, cfg.InferenceTimeoutSeconds)

	var reports []analysis.Report

	switch mode {
	case "analyzeImage":
		imageID := utils.ArgString(argsMap, "imageId")
		outputPath := utils.ArgString(argsMap, "outputPath")
		log.Infof("Analyzing image: %s", imageID)
		var report analysis.Report
		report, err = s.analyzeImage(ctx, imageID, outputPath)
		reports = []analysis.Report{report}

	case "analyzeFile":
		path := utils.ArgString(argsMap, "path")
		outputPath := utils.ArgString(argsMap, "outputPath")
		log.Infof("Analyzing file: %s", path)
		var report analysis.Report
		report, err = s.analyzeFile(ctx, path, outputPath)
		reports = []analysis.Report{report}

	case "analyzeGallery":
		galleryID := utils.ArgString(argsMap, "galleryId")
		outputDir := utils.ArgString(argsMap, "outputDir")
		limit := utils.ArgInt(argsMap, "limit")
		log.Infof("Analyzing gallery: %s (limit=%d)", galleryID, limit)
		reports, err = s.analyzeGallery(ctx, galleryID, outputDir, limit)

	default:
		err = fmt.Errorf("unknown mode: %s", mode)
	}

	if err != nil {
		return s.errorOutput(output, err)
	}

	response := AnalysisResponse{
		Summary: analysis.Summarize(reports),
		Results: reports,
	}
	res, err := json.Marshal(response)
	if err != nil {
		return s.errorOutput(output, fmt.Errorf("failed to encode results: %w", err))
	}
	outputStr := string(res)

	*output = common.PluginOutput{
		Output: &outputStr,
	}

	return nil
}
