// Package validation provides the checks that stand between author input and
// the page: the embed domain allow-list, URL scheme checks and input clean-up.
package validation

import (
	"fmt"
	"path"
	"strings"
)

// SanitizeInput removes null bytes and control characters (except common
// whitespace) from user input such as tab labels.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}

// ValidateFileExtension validates the extension of a URL path or file name
// against an allowlist.
func ValidateFileExtension(name string, allowedExtensions []string) error {
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}
