package parser

import (
	"fmt"

	"github.com/tgstat-tools/tgstat-cli/internal/models"
)

// ValidationError reports a job configuration that violates a local
// constraint. No network call is made for a configuration that fails
// validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateRequest checks a parsing request before submission. It runs
// entirely locally and must pass before the request is sent to the backend.
func ValidateRequest(request models.ParsingRequest) error {
	if !models.KnownCategory(request.Category) {
		return &ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("%q is not a known category", request.Category),
		}
	}

	if len(request.ContentTypes) == 0 {
		return &ValidationError{
			Field:  "content_types",
			Reason: "at least one content type must be selected",
		}
	}

	for _, ct := range request.ContentTypes {
		if !models.KnownContentType(ct) {
			return &ValidationError{
				Field:  "content_types",
				Reason: fmt.Sprintf("%q is not a known content type", ct),
			}
		}
	}

	if request.MaxPages < models.MinPages || request.MaxPages > models.MaxPages {
		return &ValidationError{
			Field:  "max_pages",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", models.MinPages, models.MaxPages, request.MaxPages),
		}
	}

	return nil
}

// ParseContentTypes converts raw flag values into the closed content type
// set, rejecting unknown members and duplicates.
func ParseContentTypes(raw []string) ([]models.ContentType, error) {
	seen := make(map[models.ContentType]bool)
	var contentTypes []models.ContentType

	for _, value := range raw {
		ct := models.ContentType(value)
		if !models.KnownContentType(ct) {
			return nil, &ValidationError{
				Field:  "content_types",
				Reason: fmt.Sprintf("%q is not a known content type", value),
			}
		}
		if seen[ct] {
			continue
		}
		seen[ct] = true
		contentTypes = append(contentTypes, ct)
	}

	return contentTypes, nil
}
