package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/captcha"
	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// fakePortal is a scriptable in-memory portal. Zero values behave like a
// healthy portal with no captcha and no rows.
type fakePortal struct {
	rows       []courts.CaseRow
	newestDate string

	openErr      error
	selectErr    error
	fillErr      error
	submitErr    error
	rowsErr      error
	openCaseErrs map[string]error
	detailTexts  map[string]string
	backErrs     map[string]error

	hasCaptcha     bool
	captchaChecked bool

	openedCase string
	caseOpens  []string
	closed     bool
	backCalls  int
}

func (p *fakePortal) Open(context.Context) error                  { return p.openErr }
func (p *fakePortal) ExpandAdvancedOptions(context.Context) error { return errors.New("not visible") }
func (p *fakePortal) SelectAttorneySearch(context.Context) error  { return p.selectErr }
func (p *fakePortal) FillAttorneyName(_ context.Context, _, _ string) error {
	return p.fillErr
}
func (p *fakePortal) SubmitSearch(context.Context) error { return p.submitErr }
func (p *fakePortal) NewestFileDate(context.Context) (string, error) {
	return p.newestDate, nil
}
func (p *fakePortal) SetPageSize(context.Context, int) error { return nil }
func (p *fakePortal) CaseRows(context.Context) ([]courts.CaseRow, error) {
	if p.rowsErr != nil {
		return nil, p.rowsErr
	}
	return p.rows, nil
}
func (p *fakePortal) OpenCase(_ context.Context, row courts.CaseRow) error {
	if err := p.openCaseErrs[row.CaseNumber]; err != nil {
		return err
	}
	p.openedCase = row.CaseNumber
	p.caseOpens = append(p.caseOpens, row.CaseNumber)
	return nil
}
func (p *fakePortal) DetailText(context.Context) (string, error) {
	return p.detailTexts[p.openedCase], nil
}
func (p *fakePortal) BackToResults(context.Context) error {
	p.backCalls++
	if err := p.backErrs[p.openedCase]; err != nil {
		return err
	}
	return nil
}
func (p *fakePortal) HasCaptcha(context.Context) (bool, error) { return p.hasCaptcha, nil }
func (p *fakePortal) CaptchaSiteKey(context.Context) (string, error) {
	return "", errors.New("no site key")
}
func (p *fakePortal) URL(context.Context) (string, error)                  { return "https://portal.test", nil }
func (p *fakePortal) InjectCaptchaToken(context.Context, string) error     { return nil }
func (p *fakePortal) CaptchaTokenAccepted(context.Context) (bool, error)   { return false, nil }
func (p *fakePortal) ClickCaptchaCheckbox(context.Context) error           { return nil }
func (p *fakePortal) CaptchaCheckboxChecked(context.Context) (bool, error) { return p.captchaChecked, nil }
func (p *fakePortal) Close(context.Context) error {
	p.closed = true
	return nil
}

// fakeFactory hands out portals in sequence; the last one repeats.
type fakeFactory struct {
	portals []*fakePortal
	built   int
	err     error
}

func (f *fakeFactory) NewPortal(context.Context) (courts.Portal, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.built
	if idx >= len(f.portals) {
		idx = len(f.portals) - 1
	}
	f.built++
	return f.portals[idx], nil
}

func detailFor(caseNumber string) string {
	return fmt.Sprintf(`Case Information
Case Number %s
File Date 06/15/2025
Judicial Officer HON. A. JUDGE
Case Status OPEN
Charge ASSAULT CAUSING BODILY INJURY`, caseNumber)
}

func extractFromFixture(_ context.Context, text string) (courts.CaseRecord, error) {
	rec := courts.CaseRecord{
		FileDate:        "06/15/2025",
		JudicialOfficer: "HON. A. JUDGE",
		CaseStatus:      "OPEN",
	}
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "Case Number "); ok {
			rec.CaseNumber = strings.TrimSpace(rest)
		}
	}
	return rec, nil
}

func testConfig() Config {
	return Config{
		MinCaseYear:      2025,
		CaseType:         "FELONY",
		ChargeKeywords:   []string{"ASSAULT"},
		EnableRecovery:   false,
		RecoveryAttempts: 2,
		RecoveryDelay:    time.Millisecond,
	}
}

func felonyRows(caseNumbers ...string) []courts.CaseRow {
	rows := make([]courts.CaseRow, 0, len(caseNumbers))
	for i, cn := range caseNumbers {
		rows = append(rows, courts.CaseRow{
			Index:      i,
			CaseNumber: cn,
			Text:       cn + " FELONY ASSAULT 06/15/2025",
		})
	}
	return rows
}

func newTestSession(factory *fakeFactory, cfg Config) *Session {
	resolver := captcha.NewResolver(nil, captcha.Config{ManualTimeout: 50 * time.Millisecond, ManualPollInterval: time.Millisecond}, zap.NewNop())
	return New(0, courts.AttorneyQuery{FirstName: "JANE", LastName: "ROE"}, factory, resolver, extractFromFixture, cfg, zap.NewNop())
}

func TestSession_HappyPathExtractsAllRows(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-1", "F-2", "F-3"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
			"F-3": detailFor("F-3"),
		},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.NoError(t, res.Err)
	require.Len(t, res.Records, 3)
	require.Equal(t, "JANE ROE", res.Records[0].AttorneyName)
	require.True(t, portal.closed, "portal must be released on exit")
}

func TestSession_NoDuplicateCaseNumbersInOutput(t *testing.T) {
	t.Parallel()

	// The grid repeats F-1 (server-side refresh reordering); the processed
	// set must keep it to a single record.
	portal := &fakePortal{
		rows: append(felonyRows("F-1", "F-2"), courts.CaseRow{
			Index: 2, CaseNumber: "F-1", Text: "F-1 FELONY ASSAULT 06/15/2025",
		}),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
		},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 2)

	seen := map[string]bool{}
	for _, rec := range res.Records {
		require.False(t, seen[rec.CaseNumber], "duplicate case %s", rec.CaseNumber)
		seen[rec.CaseNumber] = true
	}
	require.Equal(t, []string{"F-1", "F-2"}, portal.caseOpens, "F-1 must be visited once")
}

func TestSession_OldNewestCaseEndsDoneWithoutExtraction(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-OLD"),
		newestDate: "03/01/2019",
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success, "no recent cases is a successful outcome")
	require.Empty(t, res.Records)
	require.Empty(t, portal.caseOpens, "extraction loop must never be entered")
}

func TestSession_UnparseableNewestDateProceeds(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:        felonyRows("F-1"),
		newestDate:  "pending",
		detailTexts: map[string]string{"F-1": detailFor("F-1")},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
}

func TestSession_NoMatchingCaseTypeEndsDone(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows: []courts.CaseRow{
			{Index: 0, CaseNumber: "M-1", Text: "M-1 MISDEMEANOR 06/15/2025"},
		},
		newestDate: "06/15/2025",
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Empty(t, res.Records)
	require.Empty(t, portal.caseOpens)
}

func TestSession_KeywordMissIsSeenButNotRecorded(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": "Case Number F-1\nCharge CRIMINAL TRESPASS",
			"F-2": detailFor("F-2"),
		},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
	require.Equal(t, "F-2", res.Records[0].CaseNumber)
	require.True(t, s.processed.Contains("F-1"), "keyword miss still marks the case processed")
}

func TestSession_UnreachableRowDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	// Row 5 of 10 cannot be opened; the other nine must still be recorded.
	caseNumbers := make([]string, 10)
	details := make(map[string]string, 10)
	for i := range caseNumbers {
		cn := fmt.Sprintf("F-%d", i+1)
		caseNumbers[i] = cn
		details[cn] = detailFor(cn)
	}
	portal := &fakePortal{
		rows:         felonyRows(caseNumbers...),
		newestDate:   "06/15/2025",
		detailTexts:  details,
		openCaseErrs: map[string]error{"F-5": errors.New("element detached")},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 9)
	for _, rec := range res.Records {
		require.NotEqual(t, "F-5", rec.CaseNumber)
	}
}

func TestSession_InvalidRecordMarkedProcessedNotStored(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			// Missing the judicial officer and status labels the extractor
			// needs; keyword still matches.
			"F-1": "ASSAULT charge with a broken layout",
			"F-2": detailFor("F-2"),
		},
	}
	broken := func(ctx context.Context, text string) (courts.CaseRecord, error) {
		if !strings.Contains(text, "Case Number") {
			return courts.CaseRecord{CaseNumber: "F-1"}, nil
		}
		return extractFromFixture(ctx, text)
	}
	resolver := captcha.NewResolver(nil, captcha.Config{}, zap.NewNop())
	s := New(0, courts.AttorneyQuery{FirstName: "JANE", LastName: "ROE"},
		&fakeFactory{portals: []*fakePortal{portal}}, resolver, broken, testConfig(), zap.NewNop())

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 1)
	require.Equal(t, "F-2", res.Records[0].CaseNumber)
	require.True(t, s.processed.Contains("F-1"), "broken cases must not cause retry loops")
}

func TestSession_BackNavFailureWithoutRecoveryFails(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
		},
		backErrs: map[string]error{"F-1": errors.New("results tab gone")},
	}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.False(t, res.Success)
	require.True(t, courts.IsNavigation(res.Err))
	// F-1 was extracted before the back navigation broke; partial progress
	// is returned, F-2 stays unprocessed.
	require.Len(t, res.Records, 1)
	require.Equal(t, "F-1", res.Records[0].CaseNumber)
}

func TestSession_RecoveryResumesWithoutReExtraction(t *testing.T) {
	t.Parallel()

	first := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
		},
		backErrs: map[string]error{"F-1": errors.New("session expired")},
	}
	second := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
		},
	}
	cfg := testConfig()
	cfg.EnableRecovery = true
	s := newTestSession(&fakeFactory{portals: []*fakePortal{first, second}}, cfg)

	res := s.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Records, 2)
	require.True(t, first.closed)
	// The replacement portal must only visit F-2: F-1 is in the processed
	// set from before the failure.
	require.Equal(t, []string{"F-2"}, second.caseOpens)
}

func TestSession_RecoveryRevalidatesRecencyGate(t *testing.T) {
	t.Parallel()

	// The first portal dies before the search is ever validated; the
	// replacement shows only stale cases. Recovery must pass back through
	// the recency gate instead of jumping straight into extraction.
	first := &fakePortal{fillErr: errors.New("input not found")}
	second := &fakePortal{
		rows:        felonyRows("F-OLD"),
		newestDate:  "03/01/2019",
		detailTexts: map[string]string{"F-OLD": detailFor("F-OLD")},
	}
	cfg := testConfig()
	cfg.EnableRecovery = true
	s := newTestSession(&fakeFactory{portals: []*fakePortal{first, second}}, cfg)

	res := s.Run(context.Background())
	require.True(t, res.Success, "no recent cases is a successful outcome")
	require.Empty(t, res.Records)
	require.Empty(t, second.caseOpens, "stale attorney must not be extracted after recovery")
	require.True(t, first.closed)
}

func TestSession_RecoveryBoundExhaustedKeepsPartialRecords(t *testing.T) {
	t.Parallel()

	first := &fakePortal{
		rows:       felonyRows("F-1", "F-2"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
		},
		backErrs: map[string]error{"F-1": errors.New("session expired")},
	}
	// Every replacement portal fails to open, so recovery can never rebuild.
	dead := &fakePortal{openErr: errors.New("connection refused")}

	cfg := testConfig()
	cfg.EnableRecovery = true
	factory := &fakeFactory{portals: []*fakePortal{first, dead}}
	s := newTestSession(factory, cfg)

	res := s.Run(context.Background())
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "recovery exhausted")
	require.Len(t, res.Records, 1, "records extracted before the failure are never discarded")
	require.Equal(t, "F-1", res.Records[0].CaseNumber)
	// One portal for the initial pass plus one per recovery attempt.
	require.Equal(t, 1+int(cfg.RecoveryAttempts), factory.built)
}

func TestSession_RepeatedFailureWithoutProgressStops(t *testing.T) {
	t.Parallel()

	// Recovery rebuilds fine, but reading rows always fails afterwards; the
	// session must stop instead of cycling through recovery forever.
	first := &fakePortal{
		rows:       felonyRows("F-1"),
		newestDate: "06/15/2025",
		rowsErr:    errors.New("grid never renders"),
	}
	cfg := testConfig()
	cfg.EnableRecovery = true
	s := newTestSession(&fakeFactory{portals: []*fakePortal{first}}, cfg)

	res := s.Run(context.Background())
	require.False(t, res.Success)
	require.ErrorContains(t, res.Err, "no progress")
}

func TestSession_InitialFillFailureWithoutRecoveryFails(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{fillErr: errors.New("input not found")}
	s := newTestSession(&fakeFactory{portals: []*fakePortal{portal}}, testConfig())

	res := s.Run(context.Background())
	require.False(t, res.Success)
	require.True(t, courts.IsNavigation(res.Err))
	require.Empty(t, res.Records)
	require.True(t, portal.closed)
}

func TestSession_CaptchaFailureIsHardStop(t *testing.T) {
	t.Parallel()

	portal := &fakePortal{
		rows:       felonyRows("F-1"),
		newestDate: "06/15/2025",
		hasCaptcha: true, // never gets checked, manual wait times out
	}
	cfg := testConfig()
	cfg.EnableRecovery = true
	factory := &fakeFactory{portals: []*fakePortal{portal}}
	s := newTestSession(factory, cfg)

	res := s.Run(context.Background())
	require.False(t, res.Success)
	require.True(t, courts.IsCaptcha(res.Err))
	require.Equal(t, 1, factory.built, "captcha failure on the initial pass must not trigger recovery")
}

func TestSession_CancellationReturnsPartialRecords(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	portal := &fakePortal{
		rows:       felonyRows("F-1", "F-2", "F-3"),
		newestDate: "06/15/2025",
		detailTexts: map[string]string{
			"F-1": detailFor("F-1"),
			"F-2": detailFor("F-2"),
			"F-3": detailFor("F-3"),
		},
	}
	cancelling := func(ctx context.Context, text string) (courts.CaseRecord, error) {
		rec, err := extractFromFixture(ctx, text)
		if rec.CaseNumber == "F-1" {
			cancel() // interrupt arrives mid-run
		}
		return rec, err
	}
	resolver := captcha.NewResolver(nil, captcha.Config{}, zap.NewNop())
	s := New(0, courts.AttorneyQuery{FirstName: "JANE", LastName: "ROE"},
		&fakeFactory{portals: []*fakePortal{portal}}, resolver, cancelling, testConfig(), zap.NewNop())

	res := s.Run(ctx)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, courts.ErrInterrupted)
	require.Len(t, res.Records, 1, "partial progress is returned on interrupt")
	require.True(t, portal.closed)
}
