package rpc

import (
	"context"
	"fmt"
	"os"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/plugin/common/log"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/imageio"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/stash"
	"github.com/smegmarip/stash-face-attributes-plugin/pkg/utils"
)

// analyzeFile runs the pipeline on a local file
func (s *Service) analyzeFile(ctx context.Context, path string, outputPath string) (analysis.Report, error) {
	if s.stopping {
		return analysis.Report{}, fmt.Errorf("operation cancelled")
	}
	if path == "" {
		return analysis.Report{}, fmt.Errorf("path is required")
	}
	if !imageio.IsSupported(path) {
		return analysis.Report{}, fmt.Errorf("unsupported image format: %s", path)
	}

	report := s.analyzer.AnalyzeFile(ctx, path, s.analyzer.OutputPath(path, outputPath))
	logReport(report)
	return report, nil
}

// analyzeImage resolves a Stash image and runs the pipeline on it. The file
// is read from disk when the plugin can see it, otherwise downloaded.
func (s *Service) analyzeImage(ctx context.Context, imageID string, outputPath string) (analysis.Report, error) {
	if s.stopping {
		return analysis.Report{}, fmt.Errorf("operation cancelled")
	}
	if imageID == "" {
		return analysis.Report{}, fmt.Errorf("imageId is required")
	}

	image, err := s.getImage(ctx, graphql.ID(imageID))
	if err != nil {
		return analysis.Report{}, err
	}

	report := s.analyzeStashImage(ctx, image, outputPath)
	logReport(report)
	return report, nil
}

// analyzeStashImage analyzes one image already fetched from Stash
func (s *Service) analyzeStashImage(ctx context.Context, image *stash.Image, outputPath string) analysis.Report {
	path := image.FilePath()
	source := path
	if source == "" {
		source = image.Paths.Image
	}
	outputPath = s.analyzer.OutputPath(source, outputPath)

	var report analysis.Report
	if path != "" && fileExists(path) {
		report = s.analyzer.AnalyzeFile(ctx, path, outputPath)
	} else {
		log.Debugf("Image %s not readable locally, downloading %s", image.ID, image.Paths.Image)
		data, err := stash.DownloadImage(ctx, image.Paths.Image, s.serverConnection.SessionCookie)
		if err != nil {
			report = analysis.ErrorReport(source, err)
		} else {
			report = s.analyzer.AnalyzeBytes(ctx, source, data, outputPath)
		}
	}

	report.ImageID = fmt.Sprint(image.ID)
	return report
}

// analyzeGallery analyzes every image in a gallery, one at a time
func (s *Service) analyzeGallery(ctx context.Context, galleryID string, outputDir string, limit int) ([]analysis.Report, error) {
	if s.stopping {
		return nil, fmt.Errorf("operation cancelled")
	}
	if galleryID == "" {
		return nil, fmt.Errorf("galleryId is required")
	}

	gallery, err := stash.GetGallery(ctx, s.graphqlClient, graphql.ID(galleryID))
	if err != nil {
		return nil, err
	}
	log.Infof("Gallery '%s' has %d images", gallery.Name(), gallery.ImageCount)

	// Step 1: Collect image IDs page by page
	var ids []graphql.ID
	batchSize := s.config.MaxBatchSize
	for page := 1; ; page++ {
		if s.stopping {
			return nil, fmt.Errorf("operation cancelled")
		}

		images, total, err := stash.FindGalleryImages(ctx, s.graphqlClient, gallery.ID, page, batchSize)
		if err != nil {
			return nil, err
		}
		for i := range images {
			s.imageCache.Set(&images[i])
			ids = append(ids, images[i].ID)
		}
		if len(images) < batchSize || page*batchSize >= total {
			break
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}

	ids = utils.DeduplicateIDs(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		log.Infof("Gallery %s has no images", galleryID)
		return []analysis.Report{}, nil
	}

	// Step 2: Process each image in the gallery
	reports := make([]analysis.Report, 0, len(ids))
	for i, id := range ids {
		if s.stopping {
			return reports, fmt.Errorf("operation cancelled")
		}

		progress := float64(i) / float64(len(ids))
		log.Progress(progress)
		log.Infof("Processing image %d/%d: %s", i+1, len(ids), id)

		image, err := s.getImage(ctx, id)
		if err != nil {
			log.Warnf("Failed to resolve image %s: %v", id, err)
			report := analysis.ErrorReport(fmt.Sprint(id), err)
			report.ImageID = fmt.Sprint(id)
			reports = append(reports, report)
			continue
		}

		explicit := ""
		if outputDir != "" {
			explicit = imageio.AnnotatedPath(outputDir, firstNonEmpty(image.FilePath(), image.Paths.Image))
		}
		report := s.analyzeStashImage(ctx, image, explicit)
		logReport(report)
		reports = append(reports, report)

		if i < len(ids)-1 {
			s.applyCooldown()
		}
	}

	log.Progress(1.0)
	summary := analysis.Summarize(reports)
	log.Infof("Gallery analysis complete: %d done, %d without faces, %d failed", summary.Done, summary.NoFace, summary.Failed)

	return reports, nil
}

// getImage returns an image from the cache, querying Stash on a miss
func (s *Service) getImage(ctx context.Context, id graphql.ID) (*stash.Image, error) {
	if image, ok := s.imageCache.Get(id); ok {
		return image, nil
	}
	image, err := stash.GetImage(ctx, s.graphqlClient, id)
	if err != nil {
		return nil, err
	}
	s.imageCache.Set(image)
	return image, nil
}

// logReport prints the two user-visible result fields
func logReport(report analysis.Report) {
	if report.Error != "" && report.AgeGender == "" {
		log.Warnf("%s: %s", report.Source, report.Error)
		return
	}
	log.Infof("%s: %s", report.Source, report.AgeGender)
	if report.Expression != "" {
		log.Infof("%s: %s", report.Source, report.Expression)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
