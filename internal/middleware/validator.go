package middleware

import (
	"fmt"
	"path"
	"strings"

	"github.com/bryanwahyu/pawspeak/internal/domain/interpretation"
)

// Input validation and sanitization utilities

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// ValidateContentType accepts JPEG and PNG uploads only. Parameters such as
// charset are ignored.
func ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if !allowedImageTypes[ct] {
		return fmt.Errorf("unsupported content type %q (allowed: image/jpeg, image/png)", contentType)
	}
	return nil
}

// ValidateTone checks the optional tone against the known prompt variants.
func ValidateTone(tone string, known []interpretation.Variant) (interpretation.Variant, error) {
	tone = strings.ToLower(SanitizeString(tone))
	if tone == "" {
		return interpretation.VariantDefault, nil
	}
	names := make([]string, 0, len(known))
	for _, v := range known {
		if string(v) == tone {
			return v, nil
		}
		names = append(names, string(v))
	}
	return "", fmt.Errorf("invalid tone: %s (allowed: %s)", tone, strings.Join(names, ", "))
}

// ValidateObjectKey rejects keys that try to climb out of the bucket prefix.
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("object key cannot be empty")
	}
	if len(key) > 1024 {
		return fmt.Errorf("object key too long")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid object key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("path traversal detected")
		}
	}
	if path.Clean(key) != key {
		return fmt.Errorf("invalid object key")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
