package util

import (
	"regexp"
	"time"
)

// TimestampLayout is the UTC prefix of every object key, e.g. 20240131T235959.
const TimestampLayout = "20060102T150405"

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9_.-] with an underscore.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// ObjectKey builds the storage key for an upload received at the given time.
// Uploads of the same name within one second share a key.
func ObjectKey(now time.Time, filename string) string {
	return now.UTC().Format(TimestampLayout) + "-" + SanitizeFilename(filename)
}
