package resume

import (
	"path"
	"strings"
)

// Kind is the declared document type of an archive member.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindDOCX        Kind = "docx"
	KindUnsupported Kind = "unsupported"
)

// KindFromName classifies a member by its extension. Only .pdf and .docx are
// recognized; the comparison is case-insensitive.
func KindFromName(name string) Kind {
	switch strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/"))) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	default:
		return KindUnsupported
	}
}

// Supported reports whether documents of this kind are processed.
func (k Kind) Supported() bool {
	return k == KindPDF || k == KindDOCX
}

// Record is the structured data extracted from one resume.
type Record struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Skills  []string `json:"skills"`
	Summary string   `json:"summary"`
}

// NewRecord returns a record that owns its own copy of skills.
func NewRecord(name, email string, skills []string, summary string) Record {
	owned := make([]string, len(skills))
	copy(owned, skills)
	return Record{Name: name, Email: email, Skills: owned, Summary: summary}
}

// File is a member materialized in an analysis scratch area.
type File struct {
	// Path is the absolute location on disk.
	Path string
	// Name is the slash separated path inside the archive.
	Name string
	Kind Kind
}

// Status is the terminal state of one file.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	ErrorCodeUnreadableDocument = "UNREADABLE_DOCUMENT"
	ErrorCodeInferenceService   = "INFERENCE_SERVICE_ERROR"
	ErrorCodeSchemaParse        = "SCHEMA_PARSE_ERROR"
	ErrorCodeInternal           = "INTERNAL_ERROR"
)

// Outcome is the result of processing one member: a record or an attributed error.
type Outcome struct {
	Filename  string  `json:"filename"`
	Status    Status  `json:"status"`
	Record    *Record `json:"record,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorCode string  `json:"errorCode,omitempty"`
}

// Succeeded builds a success outcome.
func Succeeded(filename string, rec Record) Outcome {
	owned := NewRecord(rec.Name, rec.Email, rec.Skills, rec.Summary)
	return Outcome{Filename: filename, Status: StatusSucceeded, Record: &owned}
}

// Failed builds a failure outcome.
func Failed(filename, code, message string) Outcome {
	if code == "" {
		code = ErrorCodeInternal
	}
	return Outcome{Filename: filename, Status: StatusFailed, Error: message, ErrorCode: code}
}

// OK reports whether the outcome carries a record.
func (o Outcome) OK() bool {
	return o.Status == StatusSucceeded && o.Record != nil
}
