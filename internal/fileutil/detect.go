// Package fileutil holds file content helpers shared by the tool layer.
package fileutil

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// binarySniffLen is how many leading bytes IsBinary inspects.
const binarySniffLen = 8000

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
}

// IsBinary reports whether data looks like binary content. A NUL byte in
// the leading window is the signal, same heuristic git uses.
func IsBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

// MimeType guesses the MIME type from extension first, falling back to
// content sniffing.
func MimeType(path string, data []byte) string {
	if mime, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return http.DetectContentType(data)
}

// IsImage reports whether the path has a known image extension.
func IsImage(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// DetectLanguage returns the programming language for a file, or empty when
// nothing matches.
func DetectLanguage(path string) string {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}
