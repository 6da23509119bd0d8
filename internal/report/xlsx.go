package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"resume-zip-analyzer/internal/resume"
)

const (
	resumesSheet = "Resumes"
	summarySheet = "Summary"
	// ContentTypeXLSX is the media type of WriteXLSX output.
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var resumeHeaders = []string{"File", "Status", "Name", "Email", "Skills", "Summary", "Error Code", "Error"}

// WriteXLSX renders the report as a workbook with one row per outcome and a
// summary sheet, and writes it to w.
func WriteXLSX(w io.Writer, r *resume.Report) error {
	if r == nil {
		return fmt.Errorf("xlsx: nil report")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resumesSheet); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	for i, h := range resumeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(resumesSheet, cell, h)
	}

	for i, o := range r.Outcomes {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(resumesSheet, cell, v)
		}
		write(1, o.Filename)
		write(2, string(o.Status))
		if o.Record != nil {
			write(3, o.Record.Name)
			write(4, o.Record.Email)
			write(5, strings.Join(o.Record.Skills, ", "))
			write(6, o.Record.Summary)
		}
		write(7, o.ErrorCode)
		write(8, o.Error)
	}

	_ = f.SetColWidth(resumesSheet, "A", "A", 32) // file
	_ = f.SetColWidth(resumesSheet, "B", "B", 12)
	_ = f.SetColWidth(resumesSheet, "C", "D", 28)
	_ = f.SetColWidth(resumesSheet, "E", "F", 60)
	_ = f.SetColWidth(resumesSheet, "G", "G", 26)
	_ = f.SetColWidth(resumesSheet, "H", "H", 60)
	if len(r.Outcomes) > 0 {
		_ = f.SetPanes(resumesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("xlsx summary sheet: %w", err)
	}
	summary := [][]any{
		{"Run ID", r.RunID},
		{"Archive", r.ArchiveName},
		{"Started", r.StartedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Finished", r.FinishedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Files", len(r.Outcomes)},
		{"Succeeded", r.Succeeded()},
		{"Failed", r.Failed()},
		{"Skipped", strings.Join(r.Skipped, ", ")},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx summary row: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 14)
	_ = f.SetColWidth(summarySheet, "B", "B", 48)

	idx, _ := f.GetSheetIndex(resumesSheet)
	f.SetActiveSheet(idx)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
