package stash

import (
	"sync"

	graphql "github.com/hasura/go-graphql-client"
)

// ImageCache provides thread-safe lookups of images already fetched from Stash
type ImageCache struct {
	images map[graphql.ID]*Image
	mu     sync.RWMutex
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[graphql.ID]*Image),
	}
}

// Get retrieves a cached image by ID
func (ic *ImageCache) Get(id graphql.ID) (*Image, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	img, ok := ic.images[id]
	return img, ok
}

// Set stores an image in the cache
func (ic *ImageCache) Set(img *Image) {
	if img == nil {
		return
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.images[img.ID] = img
}

// Len reports how many images are cached
func (ic *ImageCache) Len() int {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return len(ic.images)
}
