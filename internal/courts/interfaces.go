package courts

import (
	"context"
	"io"
	"time"
)

// Portal is the browser-facing capability surface a session drives. Each
// operation hides its selector strategies behind a success/failure outcome;
// the ordered fallback lists live with the implementation, not here.
type Portal interface {
	// Open navigates to the search entry point and waits for it to settle.
	Open(ctx context.Context) error
	// ExpandAdvancedOptions reveals the advanced filtering UI. Best-effort:
	// callers ignore the error beyond logging it.
	ExpandAdvancedOptions(ctx context.Context) error
	// SelectAttorneySearch switches the search mode to attorney name.
	SelectAttorneySearch(ctx context.Context) error
	// FillAttorneyName enters the first/last name into the search fields.
	FillAttorneyName(ctx context.Context, first, last string) error
	// SubmitSearch submits the form and waits for the results view.
	SubmitSearch(ctx context.Context) error
	// NewestFileDate reads the file date text of the most recent result.
	NewestFileDate(ctx context.Context) (string, error)
	// SetPageSize raises the results page size. Best-effort.
	SetPageSize(ctx context.Context, size int) error
	// CaseRows resolves the currently visible result rows.
	CaseRows(ctx context.Context) ([]CaseRow, error)
	// OpenCase clicks into the detail view for the given row.
	OpenCase(ctx context.Context, row CaseRow) error
	// DetailText returns the rendered text of the open detail page.
	DetailText(ctx context.Context) (string, error)
	// BackToResults returns from a detail page to the results grid.
	BackToResults(ctx context.Context) error

	// Captcha-facing operations, consumed through the resolver's narrower
	// page interface.
	HasCaptcha(ctx context.Context) (bool, error)
	CaptchaSiteKey(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	InjectCaptchaToken(ctx context.Context, token string) error
	CaptchaTokenAccepted(ctx context.Context) (bool, error)
	ClickCaptchaCheckbox(ctx context.Context) error
	CaptchaCheckboxChecked(ctx context.Context) (bool, error)

	// Close releases the underlying browser resources. Safe to call on
	// every exit path.
	Close(ctx context.Context) error
}

// PortalFactory creates fresh portals. Recovery tears down a broken session
// and asks the factory for a new one.
type PortalFactory interface {
	NewPortal(ctx context.Context) (Portal, error)
}

// ExtractFunc builds a CaseRecord from the rendered text of a detail page.
// It is pure: validation and storage decisions belong to the caller.
type ExtractFunc func(ctx context.Context, pageText string) (CaseRecord, error)

// RecordStore persists extracted case records.
type RecordStore interface {
	SaveRecords(ctx context.Context, runID string, records []CaseRecord) error
}

// BlobStore writes export artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
