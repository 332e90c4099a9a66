// Package extract turns the rendered text of a case detail page into a
// structured CaseRecord. It is pure text parsing: the browser layer renders,
// the session decides what to keep, extract only reads.
package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// Words that disqualify a dollar figure from being read as a bond amount.
// Fee schedules and payment ledgers on the same page also carry amounts.
var bondDisqualifiers = []string{
	"due", "owed", "balance", "paid", "fee", "fees", "financial",
	"assessment", "assessments", "transaction", "transactions",
	"credit", "credits", "payment", "payments", "total",
	"fine", "fines", "cost", "costs",
}

// Section headings the portal renders. Used to bound section scans in the
// flattened page text.
var sectionHeadings = []string{
	"case information",
	"party information",
	"charge information",
	"charges",
	"charge",
	"events and hearings",
	"disposition events",
	"confinement",
	"tx cscd and community service",
	"bond settings",
	"bond",
	"financial",
	"conditions",
}

var (
	dollarAmountRe = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)
	durationRe     = regexp.MustCompile(`(?i)(\d+\s*(?:days?|months?|years?))`)
)

var facilityLabels = []string{"STATE JAIL", "COUNTY JAIL", "PENITENTIARY", "PRISON", "JAIL"}

// ErrEmptyPage is returned when the detail page rendered no text at all.
var ErrEmptyPage = errors.New("case detail page is empty")

// CaseDetails parses one detail page. Missing individual fields are not an
// error here; the caller validates the record and decides whether to keep it.
func CaseDetails(_ context.Context, pageText string) (courts.CaseRecord, error) {
	lines := splitLines(pageText)
	if len(lines) == 0 {
		return courts.CaseRecord{}, ErrEmptyPage
	}

	rec := courts.CaseRecord{
		CaseNumber:        valueForLabel(lines, "Case Number"),
		FileDate:          valueForLabel(lines, "File Date"),
		JudicialOfficer:   valueForLabel(lines, "Judicial Officer"),
		CaseStatus:        valueForLabel(lines, "Case Status"),
		CaseType:          valueForLabel(lines, "Case Type"),
		ChargeDescription: chargeDescription(lines),
		BondAmount:        bondAmount(lines),
	}
	if rec.CaseNumber == "" {
		rec.CaseNumber = valueForLabel(lines, "Case #")
	}
	if rec.FileDate == "" {
		rec.FileDate = valueForLabel(lines, "Filed")
	}
	if rec.JudicialOfficer == "" {
		rec.JudicialOfficer = valueForLabel(lines, "Judge")
	}

	// Open cases have no outcome yet; the portal shows stale rows from
	// related dockets, so skip disposition parsing entirely.
	status := strings.ToUpper(strings.TrimSpace(rec.CaseStatus))
	if status == "ACTIVE" || status == "OPEN" {
		rec.Disposition = "NA"
		rec.SentencingInfo = "NA"
	} else {
		rec.Disposition = orNA(dispositionEvents(lines))
		rec.SentencingInfo = orNA(sentencingSummary(lines))
	}

	return rec, nil
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// valueForLabel finds "Label: value" or "Label" followed by a value line.
func valueForLabel(lines []string, label string) string {
	lower := strings.ToLower(label)
	for i, line := range lines {
		lineLower := strings.ToLower(line)
		if lineLower == lower || lineLower == lower+":" {
			if i+1 < len(lines) {
				return lines[i+1]
			}
			return ""
		}
		if strings.HasPrefix(lineLower, lower) {
			rest := strings.TrimSpace(line[len(label):])
			rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			if rest != "" {
				return rest
			}
		}
	}
	return ""
}

// sectionLines returns the lines between the given heading and the next
// known section heading.
func sectionLines(lines []string, heading string) []string {
	lower := strings.ToLower(heading)
	start := -1
	for i, line := range lines {
		if strings.ToLower(line) == lower {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	for end := start; end < len(lines); end++ {
		if isSectionHeading(lines[end]) {
			return lines[start:end]
		}
	}
	return lines[start:]
}

func isSectionHeading(line string) bool {
	lower := strings.ToLower(line)
	for _, h := range sectionHeadings {
		if lower == h {
			return true
		}
	}
	return false
}

// chargeDescription pulls the first substantial line of the charge section,
// skipping the column headers the grid renders as their own lines.
func chargeDescription(lines []string) string {
	section := sectionLines(lines, "Charges")
	if section == nil {
		section = sectionLines(lines, "Charge Information")
	}
	if section == nil {
		section = sectionLines(lines, "Charge")
	}
	if v := valueForLabel(lines, "Charge Description"); v != "" {
		return v
	}

	excluded := map[string]bool{
		"charge": true, "charges": true, "description": true,
		"statute": true, "level": true, "date": true,
	}
	for i, line := range section {
		lower := strings.ToLower(line)
		if excluded[lower] {
			continue
		}
		// Grids render the charge index as its own line before the text.
		if isDigits(line) {
			if i+1 < len(section) && !excluded[strings.ToLower(section[i+1])] {
				return section[i+1]
			}
			continue
		}
		if strings.Contains(line, ",") {
			continue
		}
		return line
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// bondAmount scans for a dollar figure outside fee/payment context. The page
// mixes bond grids with financial ledgers, so any line carrying a
// disqualifier word is ignored wholesale.
func bondAmount(lines []string) string {
	for _, line := range lines {
		if strings.Contains(line, "Hold Without Bond") {
			return "Hold Without Bond"
		}
	}
	for _, line := range lines {
		amount := dollarAmountRe.FindString(line)
		if amount == "" {
			continue
		}
		if hasDisqualifier(line) {
			continue
		}
		return amount
	}
	return "No bond amount set"
}

func hasDisqualifier(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range bondDisqualifiers {
		if containsWord(lower, word) {
			return true
		}
	}
	return false
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isLetter(haystack[pos-1])
		afterIdx := pos + len(word)
		after := afterIdx == len(haystack) || !isLetter(haystack[afterIdx])
		if before && after {
			return true
		}
		idx = pos + len(word)
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// dispositionEvents joins up to four outcome lines from the Disposition
// Events grid.
func dispositionEvents(lines []string) string {
	section := sectionLines(lines, "Disposition Events")
	if len(section) == 0 {
		return ""
	}
	var events []string
	for _, line := range section {
		events = append(events, line)
		if len(events) == 4 {
			break
		}
	}
	return strings.Join(events, " | ")
}

// sentencingSummary combines confinement and probation findings, e.g.
// "Confinement: 6 Months, STATE JAIL || Probation: 2 Years".
func sentencingSummary(lines []string) string {
	var parts []string
	if v := confinementDetails(sectionLines(lines, "Confinement")); v != "" {
		parts = append(parts, "Confinement: "+v)
	}
	if v := probationDuration(sectionLines(lines, "TX CSCD and Community Service")); v != "" {
		parts = append(parts, "Probation: "+v)
	}
	return strings.Join(parts, " || ")
}

// confinementDetails produces "6 Months, STATE JAIL" style output. Lines
// naming a facility are scanned first so durations from unrelated rows do
// not win.
func confinementDetails(section []string) string {
	if len(section) == 0 {
		return ""
	}

	var prioritized, rest []string
	for _, line := range section {
		if facilityIn(line) != "" {
			prioritized = append(prioritized, line)
		} else {
			rest = append(rest, line)
		}
	}

	var duration, facility string
	for _, line := range append(prioritized, rest...) {
		if duration == "" {
			if m := durationRe.FindString(line); m != "" {
				duration = titleDuration(m)
			}
		}
		if facility == "" {
			facility = facilityIn(line)
		}
		if duration != "" && facility != "" {
			break
		}
	}

	switch {
	case duration != "" && facility != "":
		return duration + ", " + facility
	case duration != "":
		return duration
	default:
		return facility
	}
}

func facilityIn(line string) string {
	upper := strings.ToUpper(line)
	for _, label := range facilityLabels {
		if strings.Contains(upper, label) {
			return label
		}
	}
	return ""
}

func probationDuration(section []string) string {
	if len(section) == 0 {
		return ""
	}

	var prioritized, rest []string
	for _, line := range section {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "cscd") || strings.Contains(lower, "probation") ||
			strings.Contains(lower, "community service") {
			prioritized = append(prioritized, line)
		} else {
			rest = append(rest, line)
		}
	}

	ordered := append(prioritized, rest...)
	for _, line := range ordered {
		if m := durationRe.FindString(line); m != "" {
			return titleDuration(m)
		}
	}
	for _, line := range ordered {
		if line != "" {
			return line
		}
	}
	return ""
}

func titleDuration(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
