package util

import (
	"errors"
	"path"
	"strings"
)

var ErrInvalidName = errors.New("invalid file name")

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", ErrInvalidName
	}
	return s, nil
}

// SafeRelPath normalizes an archive member name to a slash separated relative
// path and rejects names that would escape the extraction root.
func SafeRelPath(name string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if s == "" || strings.HasPrefix(s, "/") || strings.Contains(s, ":") {
		return "", ErrInvalidName
	}
	clean := path.Clean(s)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidName
	}
	return clean, nil
}
