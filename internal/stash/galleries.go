package stash

import (
	"context"
	"fmt"
	"path/filepath"

	graphql "github.com/hasura/go-graphql-client"
)

// GetGallery fetches gallery metadata; the image list is paged separately
// through FindGalleryImages.
func GetGallery(ctx context.Context, client *graphql.Client, galleryID graphql.ID) (*Gallery, error) {
	var query struct {
		FindGallery *Gallery `graphql:"findGallery(id: $id)"`
	}

	if err := client.Query(ctx, &query, map[string]interface{}{"id": galleryID}); err != nil {
		return nil, fmt.Errorf("failed to query gallery %v: %w", galleryID, err)
	}
	if query.FindGallery == nil {
		return nil, fmt.Errorf("gallery %v not found", galleryID)
	}

	return query.FindGallery, nil
}

// Name is the label used in logs: the title, else the folder or archive
// name, else the ID.
func (g *Gallery) Name() string {
	switch {
	case g.Title != "":
		return g.Title
	case g.Folder != nil && g.Folder.Path != "":
		return filepath.Base(g.Folder.Path)
	case len(g.Files) > 0 && g.Files[0].Path != "":
		return filepath.Base(g.Files[0].Path)
	}
	return fmt.Sprint(g.ID)
}
