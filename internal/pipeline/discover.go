package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Supported scan file extensions (lowercase, with leading dot).
var scanExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// Discover lists the scanner TIFFs sitting directly in inputDir, sorted
// lexicographically for deterministic processing order. Subdirectories are
// not scanned: the output and archive trees live beneath the input root and
// must never be re-ingested.
func Discover(inputDir string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if scanExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(inputDir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
