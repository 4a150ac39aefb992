package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for receipt images.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedPath reports whether the path's extension is an ingestible receipt image.
func IsAllowedPath(path string) bool {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(path[i:])]
	return ok
}
