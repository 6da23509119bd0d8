package inference

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"resume-zip-analyzer/internal/resume"
)

const (
	schemaResource = "resume.schema.json"
	// FormatVersion identifies the format instructions template sent to the model.
	FormatVersion = "v1"
)

var (
	//go:embed schema/resume.schema.json
	resumeSchemaJSON string
	//go:embed prompts/format_instructions_v1.txt
	formatInstructionsV1 string

	resumeSchema = mustCompileSchema(resumeSchemaJSON)
)

// SchemaParseError reports model output that does not match the record shape.
// Raw carries the unmodified response for diagnosis.
type SchemaParseError struct {
	Raw string
	Err error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("model output does not match resume schema: %v", e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

var errNoJSONObject = errors.New("no JSON object found in response")

func mustCompileSchema(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add resume schema: %v", err))
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		panic(fmt.Sprintf("compile resume schema: %v", err))
	}
	return schema
}

// FormatInstructions returns the machine-readable description of the
// required output shape, with the JSON schema embedded.
func FormatInstructions() string {
	var compact bytes.Buffer
	schema := resumeSchemaJSON
	if err := json.Compact(&compact, []byte(resumeSchemaJSON)); err == nil {
		schema = compact.String()
	}
	return strings.NewReplacer("{{SCHEMA}}", schema).Replace(formatInstructionsV1)
}

// ParseRecord validates raw model output against the resume schema and
// decodes it. It never returns a partially filled record.
func ParseRecord(raw string) (resume.Record, error) {
	candidate, err := jsonObject(raw)
	if err != nil {
		return resume.Record{}, &SchemaParseError{Raw: raw, Err: err}
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return resume.Record{}, &SchemaParseError{Raw: raw, Err: fmt.Errorf("decode json: %w", err)}
	}
	if err := resumeSchema.Validate(doc); err != nil {
		return resume.Record{}, &SchemaParseError{Raw: raw, Err: err}
	}

	var rec resume.Record
	if err := json.Unmarshal([]byte(candidate), &rec); err != nil {
		return resume.Record{}, &SchemaParseError{Raw: raw, Err: fmt.Errorf("decode record: %w", err)}
	}
	return resume.NewRecord(rec.Name, rec.Email, rec.Skills, rec.Summary), nil
}

// jsonObject strips markdown fences and returns the outermost {...} span.
func jsonObject(raw string) (string, error) {
	clean := cleanJSON(raw)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return clean[start : end+1], nil
}

func cleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")

	return strings.TrimSpace(clean)
}
