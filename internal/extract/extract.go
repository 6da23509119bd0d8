package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"resume-zip-analyzer/internal/resume"
)

// ErrUnsupportedKind is returned for documents that are neither PDF nor DOCX.
var ErrUnsupportedKind = errors.New("unsupported document kind")

// UnreadableDocumentError reports a corrupt file or one that is not actually
// of its declared kind. It is scoped to a single document.
type UnreadableDocumentError struct {
	Path string
	Kind resume.Kind
	Err  error
}

func (e *UnreadableDocumentError) Error() string {
	return fmt.Sprintf("unreadable %s document %s: %v", e.Kind, e.Path, e.Err)
}

func (e *UnreadableDocumentError) Unwrap() error { return e.Err }

// Extractor turns PDF and DOCX files into plain text.
// Libraries used: github.com/ledongthuc/pdf (PDF) and github.com/nguyenthenguyen/docx (DOCX).
type Extractor struct{}

// New returns an Extractor.
func New() Extractor {
	return Extractor{}
}

// ExtractFile reads the file at path and extracts its text according to kind.
func (Extractor) ExtractFile(ctx context.Context, path string, kind resume.Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &UnreadableDocumentError{Path: path, Kind: kind, Err: err}
	}
	text, err := extractBytes(data, kind)
	if err != nil {
		return "", &UnreadableDocumentError{Path: path, Kind: kind, Err: err}
	}
	return text, nil
}

// ExtractBytes extracts text from an in-memory document. name is only used in errors.
func (Extractor) ExtractBytes(ctx context.Context, data []byte, kind resume.Kind, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := extractBytes(data, kind)
	if err != nil {
		return "", &UnreadableDocumentError{Path: name, Kind: kind, Err: err}
	}
	return text, nil
}

func extractBytes(data []byte, kind resume.Kind) (text string, err error) {
	// Both parsers panic on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("parser panic: %v", rec)
		}
	}()

	switch kind {
	case resume.KindPDF:
		return extractPDF(data)
	case resume.KindDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, pageText(reader.Page(i)))
	}
	return strings.Join(pages, "\n"), nil
}

// pageText never fails the document: a page without extractable text yields "".
func pageText(page pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	paragraphs, err := docxParagraphs(doc.Editable().GetContent())
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}

// docxParagraphs returns the text of every w:p element in document order.
func docxParagraphs(raw string) ([]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var (
		out    []string
		open   []*strings.Builder
		inText int
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText++
			case "tab":
				if len(open) > 0 {
					open[len(open)-1].WriteString("\t")
				}
			case "br", "cr":
				if len(open) > 0 {
					open[len(open)-1].WriteString("\n")
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if len(open) > 0 {
					out = append(out, open[len(open)-1].String())
					open = open[:len(open)-1]
				}
			case "t":
				if inText > 0 {
					inText--
				}
			}
		case xml.CharData:
			if inText > 0 && len(open) > 0 {
				open[len(open)-1].Write(t)
			}
		}
	}
	return out, nil
}
