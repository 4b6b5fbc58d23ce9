package ocr

import (
	"path/filepath"
	"strings"
)

const fallbackMimeType = "application/octet-stream"

var extMimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// MimeTypeFromPath maps the file extension to the MIME type sent to the OCR API.
func MimeTypeFromPath(path string) string {
	if mt, ok := extMimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return fallbackMimeType
}
