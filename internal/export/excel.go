package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

const allCasesSheet = "All Cases"

// maxSheetNameLen is the Excel limit for sheet names.
const maxSheetNameLen = 31

// SanitizeSheetName makes a valid Excel sheet name from free text: invalid
// characters become dashes, leading/trailing apostrophes are stripped, and
// the result is capped at 31 characters.
func SanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", "?", "-", "*", "-", "[", "-", "]", "-", ":", "-",
	)
	name = replacer.Replace(name)
	name = strings.Trim(strings.TrimSpace(name), "'")
	if len(name) > maxSheetNameLen {
		name = strings.TrimRight(name[:maxSheetNameLen], " ")
	}
	if name == "" {
		return "Sheet"
	}
	return name
}

// writeExcelFile builds the workbook: an All Cases sheet plus one sheet per
// attorney, each with a styled header row and content-sized columns.
func writeExcelFile(path string, records []courts.CaseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", allCasesSheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSheet(f, allCasesSheet, records, headerStyle); err != nil {
		return err
	}

	used := map[string]bool{allCasesSheet: true}
	for _, attorney := range attorneyOrder(records) {
		sheet := uniqueSheetName(SanitizeSheetName(attorney), used)
		used[sheet] = true
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, recordsFor(records, attorney), headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// attorneyOrder returns distinct attorney names in first-seen order,
// skipping blanks and the UNKNOWN placeholder.
func attorneyOrder(records []courts.CaseRecord) []string {
	var order []string
	seen := map[string]bool{}
	for _, rec := range records {
		name := rec.AttorneyName
		if name == "" || name == "UNKNOWN" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

func recordsFor(records []courts.CaseRecord, attorney string) []courts.CaseRecord {
	var out []courts.CaseRecord
	for _, rec := range records {
		if rec.AttorneyName == attorney {
			out = append(out, rec)
		}
	}
	return out
}

// uniqueSheetName appends "-N" until the name is unused, trimming the base
// to stay under the length cap.
func uniqueSheetName(base string, used map[string]bool) string {
	name := base
	for counter := 1; used[name]; counter++ {
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSheetNameLen {
			trimmed = strings.TrimRight(base[:maxSheetNameLen-len(suffix)], " ")
		}
		name = trimmed + suffix
	}
	return name
}

func writeSheet(f *excelize.File, sheet string, records []courts.CaseRecord, headerStyle int) error {
	header := make([]any, len(columnTitles))
	widths := make([]int, len(columnTitles))
	for i, title := range columnTitles {
		header[i] = title
		widths[i] = len(title)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header on %q: %w", sheet, err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(columnTitles))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header on %q: %w", sheet, err)
	}

	for i, rec := range records {
		values := rowValues(rec)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
			if len(v) > widths[j] {
				widths[j] = len(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row on %q: %w", sheet, err)
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		w := float64(width + 2)
		if w > 50 {
			w = 50
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("size column %s on %q: %w", col, sheet, err)
		}
	}
	return nil
}
