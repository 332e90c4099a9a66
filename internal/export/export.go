// Package export writes scraped case records to CSV, JSON, or Excel files.
// The Excel workbook mirrors the reporting layout analysts expect: an "All
// Cases" sheet plus one sheet per attorney.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// Format selects the output file type.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatExcel Format = "excel"
)

// ParseFormat normalizes a configured format string. Unknown values fall
// back to Excel.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV
	case "json":
		return FormatJSON
	case "excel", "xlsx":
		return FormatExcel
	default:
		return FormatExcel
	}
}

// columnTitles is the report column order. Attorney identity leads.
var columnTitles = []string{
	"Attorney",
	"Case Number",
	"File Date",
	"Judicial Officer",
	"Case Status",
	"Case Type",
	"Charge Description",
	"Bond Amount",
	"Disposition",
	"Sentencing",
}

func rowValues(rec courts.CaseRecord) []string {
	return []string{
		rec.AttorneyName,
		rec.CaseNumber,
		rec.FileDate,
		rec.JudicialOfficer,
		rec.CaseStatus,
		rec.CaseType,
		rec.ChargeDescription,
		rec.BondAmount,
		rec.Disposition,
		rec.SentencingInfo,
	}
}

// exportRow carries the JSON field names the report consumers expect.
type exportRow struct {
	Attorney          string `json:"Attorney"`
	CaseNumber        string `json:"Case Number"`
	FileDate          string `json:"File Date"`
	JudicialOfficer   string `json:"Judicial Officer"`
	CaseStatus        string `json:"Case Status"`
	CaseType          string `json:"Case Type"`
	ChargeDescription string `json:"Charge Description"`
	BondAmount        string `json:"Bond Amount"`
	Disposition       string `json:"Disposition"`
	Sentencing        string `json:"Sentencing"`
}

// Exporter writes timestamped result files into a directory.
type Exporter struct {
	dir    string
	clock  courts.Clock
	logger *zap.Logger
}

// New builds an Exporter rooted at dir. The directory is created on first
// export.
func New(dir string, clock courts.Clock, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dir: dir, clock: clock, logger: logger}
}

// Export writes records in the given format and returns the file path.
// Exporting zero records is a no-op returning an empty path.
func (e *Exporter) Export(format Format, records []courts.CaseRecord) (string, error) {
	if len(records) == 0 {
		e.logger.Info("no records to export")
		return "", nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	stamp := e.clock.Now().Format("20060102_150405")
	var path string
	var err error
	switch format {
	case FormatCSV:
		path = filepath.Join(e.dir, fmt.Sprintf("cases_%s.csv", stamp))
		err = writeFile(path, func(w io.Writer) error { return WriteCSV(w, records) })
	case FormatJSON:
		path = filepath.Join(e.dir, fmt.Sprintf("cases_%s.json", stamp))
		err = writeFile(path, func(w io.Writer) error { return WriteJSON(w, records) })
	default:
		path = filepath.Join(e.dir, fmt.Sprintf("cases_%s.xlsx", stamp))
		err = writeExcelFile(path, records)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("results exported",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
	)
	return path, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV streams records as CSV with a header row.
func WriteCSV(w io.Writer, records []courts.CaseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columnTitles); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rowValues(rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON streams records as an indented JSON array.
func WriteJSON(w io.Writer, records []courts.CaseRecord) error {
	rows := make([]exportRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, exportRow{
			Attorney:          rec.AttorneyName,
			CaseNumber:        rec.CaseNumber,
			FileDate:          rec.FileDate,
			JudicialOfficer:   rec.JudicialOfficer,
			CaseStatus:        rec.CaseStatus,
			CaseType:          rec.CaseType,
			ChargeDescription: rec.ChargeDescription,
			BondAmount:        rec.BondAmount,
			Disposition:       rec.Disposition,
			Sentencing:        rec.SentencingInfo,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
