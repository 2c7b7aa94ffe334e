package stash

import (
	"context"
	"fmt"
	"io"
	"net/http"

	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/plugin/common/log"
)

// ============================================================================
// Image Data Operations (Repository Layer)
// ============================================================================

// FindImages finds images with optional filtering
func FindImages(ctx context.Context, client *graphql.Client, filter *ImageFilterType, page int, perPage int) ([]Image, int, error) {
	var query struct {
		FindImages struct {
			Count  int
			Images []Image
		} `graphql:"findImages(filter: $filter, image_filter: $image_filter)"`
	}

	filterInput := &FindFilterType{
		Page:    &page,
		PerPage: &perPage,
	}

	variables := map[string]interface{}{
		"filter": filterInput,
	}

	if filter != nil {
		variables["image_filter"] = filter
	} else {
		variables["image_filter"] = &ImageFilterType{}
	}

	err := client.Query(ctx, &query, variables)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query images: %w", err)
	}

	log.Debugf("Found %d images (page %d, per_page %d)", len(query.FindImages.Images), page, perPage)
	return query.FindImages.Images, query.FindImages.Count, nil
}

// FindGalleryImages pages through the images belonging to one gallery
func FindGalleryImages(ctx context.Context, client *graphql.Client, galleryID graphql.ID, page int, perPage int) ([]Image, int, error) {
	filter := &ImageFilterType{
		Galleries: &MultiCriterionInput{
			Value:    []string{fmt.Sprint(galleryID)},
			Modifier: CriterionModifierIncludes,
		},
	}
	return FindImages(ctx, client, filter, page, perPage)
}

// GetImage retrieves a single image by ID
func GetImage(ctx context.Context, client *graphql.Client, imageID graphql.ID) (*Image, error) {
	var query struct {
		FindImage *Image `graphql:"findImage(id: $id)"`
	}

	variables := map[string]interface{}{
		"id": imageID,
	}

	err := client.Query(ctx, &query, variables)
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}

	if query.FindImage == nil {
		return nil, fmt.Errorf("image %v not found", imageID)
	}

	return query.FindImage, nil
}

// FilePath returns the image's primary file on disk, or "" when Stash has none
func (i *Image) FilePath() string {
	if len(i.Files) == 0 {
		return ""
	}
	return i.Files[0].Path
}

// DownloadImage downloads an image from Stash HTTP endpoint
func DownloadImage(ctx context.Context, imageURL string, sessionCookie *http.Cookie) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if sessionCookie != nil {
		req.AddCookie(sessionCookie)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return imageBytes, nil
}
