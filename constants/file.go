package constants

import "strings"

// ImageFormats lists the image encodings the decoder accepts.
var ImageFormats = []string{"png", "jpeg", "gif", "bmp", "tiff", "webp"}

// AllowedExtensions holds the file extensions picked up when ingesting a directory of invoice images.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
