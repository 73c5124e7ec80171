package transfer

import (
	"os"
	"path/filepath"
	"strconv"
)

// CachePath is the stable on-disk location for a downloaded activity file.
// Using the label id as the filename makes the path a content cache across
// retries and re-created jobs.
func CachePath(downloadsDir string, sportType int, labelID string) string {
	return filepath.Join(downloadsDir, "coros", strconv.Itoa(sportType), labelID+".fit")
}

// CacheHit reports whether a non-empty cached file already exists.
func CacheHit(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
