package ingest

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/receiptdu/receiptdu/constants"
)

// DiscoverImages walks root recursively and returns every file with an
// allowed image extension, sorted for deterministic batch order.
func DiscoverImages(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsAllowedPath(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
