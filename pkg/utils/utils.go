package utils

import (
	"fmt"
	"strconv"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/faces"
)

// ============================================================================
// Pure Utility Functions
// ============================================================================
//
// This file contains only domain-agnostic utility functions that can be
// used across any part of the application.
// ============================================================================

// GetFaceDimensions returns the width and height of a face bounding box
func GetFaceDimensions(box faces.BoundingBox) (int, int) {
	return box.Width(), box.Height()
}

// IsFaceSizeValid checks if a face meets the minimum size requirement
func IsFaceSizeValid(box faces.BoundingBox, minSize int) bool {
	width, height := GetFaceDimensions(box)
	return width >= minSize && height >= minSize
}

// DeduplicateIDs removes duplicate IDs from a slice
func DeduplicateIDs(ids []graphql.ID) []graphql.ID {
	seen := make(map[graphql.ID]bool)
	result := []graphql.ID{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

// ArgString coerces a plugin argument to a string. Stash sends integers as float64 in JSON.
func ArgString(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ArgInt coerces a plugin argument to an int, returning 0 when absent or malformed
func ArgInt(args map[string]interface{}, key string) int {
	val, ok := args[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
