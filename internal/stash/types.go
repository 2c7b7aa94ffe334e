package stash

import (
	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/models"
)

// ImagePaths represents the paths for an image
type ImagePaths struct {
	Image     string `graphql:"image"`
	Thumbnail string `graphql:"thumbnail"`
}

// ImageFile represents a file associated with an image
type ImageFile struct {
	Path   string `graphql:"path"`
	Width  int    `graphql:"width"`
	Height int    `graphql:"height"`
}

// Image represents a Stash image
type Image struct {
	ID        graphql.ID   `graphql:"id"`
	Title     string       `graphql:"title"`
	Paths     ImagePaths   `graphql:"paths"`
	Files     []ImageFile  `graphql:"files"`
	Galleries []GalleryRef `graphql:"galleries"`
}

// GalleryRef is the minimal gallery reference embedded in an image
type GalleryRef struct {
	ID graphql.ID `graphql:"id"`
}

// Folder represents a folder in the file system.
type Folder struct {
	ID   string `graphql:"id"`
	Path string `graphql:"path"`
}

type RelatedFile struct {
	ID   graphql.ID `graphql:"id"`
	Path string     `graphql:"path"`
}

// Gallery represents a Stash gallery
type Gallery struct {
	ID         graphql.ID    `graphql:"id"`
	Title      string        `graphql:"title"`
	Files      []RelatedFile `graphql:"files"`
	Folder     *Folder       `graphql:"folder"`
	ImageCount int           `graphql:"image_count"`
}

// ============================================================================
// Re-exported types from github.com/stashapp/stash/pkg/models
// ============================================================================

// Filter Types
type (
	MultiCriterionInput = models.MultiCriterionInput
	ImageFilterType     = models.ImageFilterType
	FindFilterType      = models.FindFilterType
)

const (
	CriterionModifierIncludes = models.CriterionModifierIncludes
)

// PluginSettings holds one plugin's saved settings keyed by setting name
type PluginSettings map[string]interface{}
