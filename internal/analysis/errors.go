package analysis

import (
	"errors"

	"resume-zip-analyzer/internal/extract"
	"resume-zip-analyzer/internal/inference"
	"resume-zip-analyzer/internal/llm"
	"resume-zip-analyzer/internal/resume"
)

var ErrNotConfigured = errors.New("analysis service not configured")

// classify maps a per-file failure onto its outcome error code.
func classify(err error) string {
	var unreadable *extract.UnreadableDocumentError
	var svcErr *llm.ServiceError
	var parseErr *inference.SchemaParseError
	switch {
	case errors.As(err, &unreadable):
		return resume.ErrorCodeUnreadableDocument
	case errors.As(err, &parseErr):
		return resume.ErrorCodeSchemaParse
	case errors.As(err, &svcErr):
		return resume.ErrorCodeInferenceService
	default:
		return resume.ErrorCodeInternal
	}
}

// withArchiveName swaps the scratch path in an extraction error for the
// member's archive-relative name, so outcome text is stable across runs.
func withArchiveName(err error, name string) error {
	var unreadable *extract.UnreadableDocumentError
	if errors.As(err, &unreadable) {
		unreadable.Path = name
	}
	return err
}
