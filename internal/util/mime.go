package util

import "strings"

// IsImageContentType reports whether a declared Content-Type names an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
