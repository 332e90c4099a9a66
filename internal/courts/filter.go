package courts

import (
	"strings"
	"time"
)

// fileDateFormats is the fallback order for portal date strings. MM/DD/YYYY
// is what the grid renders; the others show up in exported views.
var fileDateFormats = []string{
	"01/02/2006",
	"2006-01-02",
	"01-02-2006",
	"02/01/2006",
}

// ParseFileDate parses a portal file-date string, trying each known format
// in order. The second return is false when no format matches.
func ParseFileDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range fileDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsRecentEnough reports whether the newest case's file date clears the
// configured minimum year. An unparseable or empty date is treated as
// recent: the tolerant default is to continue rather than silently drop an
// attorney.
func IsRecentEnough(raw string, minYear int) bool {
	t, ok := ParseFileDate(raw)
	if !ok {
		return true
	}
	return t.Year() >= minYear
}

// MatchesCaseType reports whether the row text contains the configured case
// type as a case-insensitive substring. An empty case type matches all rows.
func MatchesCaseType(rowText, caseType string) bool {
	caseType = strings.TrimSpace(caseType)
	if caseType == "" {
		return true
	}
	return strings.Contains(strings.ToLower(rowText), strings.ToLower(caseType))
}

// MatchesAnyKeyword reports whether any configured charge keyword appears in
// the page text, case-insensitively. Empty keywords are skipped.
func MatchesAnyKeyword(pageText string, keywords []string) bool {
	if pageText == "" {
		return false
	}
	lower := strings.ToLower(pageText)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// FilterRowsByCaseType keeps only rows whose text matches the case type.
func FilterRowsByCaseType(rows []CaseRow, caseType string) []CaseRow {
	filtered := make([]CaseRow, 0, len(rows))
	for _, row := range rows {
		if MatchesCaseType(row.Text, caseType) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}
