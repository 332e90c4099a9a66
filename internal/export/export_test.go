package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func sampleRecords() []courts.CaseRecord {
	return []courts.CaseRecord{
		{
			CaseNumber:        "F25-001",
			FileDate:          "06/15/2025",
			JudicialOfficer:   "HON. A. JUDGE",
			CaseStatus:        "OPEN",
			CaseType:          "FELONY",
			ChargeDescription: "AGG ASSAULT",
			BondAmount:        "$25,000.00",
			Disposition:       "NA",
			SentencingInfo:    "NA",
			AttorneyName:      "JANE ROE",
		},
		{
			CaseNumber:      "F25-002",
			FileDate:        "06/16/2025",
			JudicialOfficer: "HON. B. NGUYEN",
			CaseStatus:      "CLOSED",
			AttorneyName:    "JOHN DOE",
		},
	}
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	stamp := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)
	return New(t.TempDir(), fixedClock{t: stamp}, zap.NewNop())
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	require.Equal(t, FormatCSV, ParseFormat("CSV"))
	require.Equal(t, FormatJSON, ParseFormat(" json "))
	require.Equal(t, FormatExcel, ParseFormat("xlsx"))
	require.Equal(t, FormatExcel, ParseFormat("parquet"), "unknown formats fall back to excel")
}

func TestExport_CSV(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t)
	path, err := e.Export(FormatCSV, sampleRecords())
	require.NoError(t, err)
	require.Equal(t, "cases_20260830_140509.csv", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, columnTitles, rows[0])
	require.Equal(t, "JANE ROE", rows[1][0])
	require.Equal(t, "F25-001", rows[1][1])
	require.Equal(t, "F25-002", rows[2][1])
}

func TestExport_JSON(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t)
	path, err := e.Export(FormatJSON, sampleRecords())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	require.Equal(t, "F25-001", rows[0]["Case Number"])
	require.Equal(t, "HON. A. JUDGE", rows[0]["Judicial Officer"])
	require.Equal(t, "JOHN DOE", rows[1]["Attorney"])
}

func TestExport_ExcelSheetPerAttorney(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t)
	path, err := e.Export(FormatExcel, sampleRecords())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".xlsx"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"All Cases", "JANE ROE", "JOHN DOE"}, f.GetSheetList())

	all, err := f.GetRows("All Cases")
	require.NoError(t, err)
	require.Len(t, all, 3, "header plus both records")
	require.Equal(t, columnTitles, all[0])

	jane, err := f.GetRows("JANE ROE")
	require.NoError(t, err)
	require.Len(t, jane, 2)
	require.Equal(t, "F25-001", jane[1][1])
}

func TestExport_ZeroRecordsIsNoop(t *testing.T) {
	t.Parallel()

	e := newTestExporter(t)
	path, err := e.Export(FormatCSV, nil)
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestSanitizeSheetName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SMITH-JONES", SanitizeSheetName("SMITH/JONES"))
	require.Equal(t, "Sheet", SanitizeSheetName("''"))
	require.Len(t, SanitizeSheetName(strings.Repeat("A", 40)), 31)
	require.Equal(t, "O'BRIEN PLLC", SanitizeSheetName(" O'BRIEN PLLC "))
}

func TestUniqueSheetName(t *testing.T) {
	t.Parallel()

	used := map[string]bool{"JANE ROE": true, "JANE ROE-1": true}
	require.Equal(t, "JANE ROE-2", uniqueSheetName("JANE ROE", used))
	require.Equal(t, "JOHN DOE", uniqueSheetName("JOHN DOE", used))
}
