package courts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted marks a session that was stopped by external cancellation.
// Accumulated records are still returned alongside it.
var ErrInterrupted = errors.New("session interrupted")

// NavigationError is a session-level failure to drive the portal through a
// required step. It triggers recovery when recovery is enabled, otherwise
// it ends the session.
type NavigationError struct {
	Step string
	Err  error
}

func (e *NavigationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("navigation failed at %s", e.Step)
	}
	return fmt.Sprintf("navigation failed at %s: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// CaptchaError ends the current attempt. The resolver has already exhausted
// its own manual fallback by the time this surfaces, so the session does not
// retry it directly.
type CaptchaError struct {
	Err error
}

func (e *CaptchaError) Error() string {
	if e.Err == nil {
		return "captcha resolution failed"
	}
	return fmt.Sprintf("captcha resolution failed: %v", e.Err)
}

func (e *CaptchaError) Unwrap() error { return e.Err }

// ExtractionError is a per-case failure. It never escapes the extraction
// loop: the case is marked processed and the loop continues.
type ExtractionError struct {
	CaseNumber string
	Missing    []string
	Err        error
}

func (e *ExtractionError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("case %s missing required fields: %s", e.CaseNumber, strings.Join(e.Missing, ", "))
	case e.Err != nil:
		return fmt.Sprintf("case %s extraction failed: %v", e.CaseNumber, e.Err)
	default:
		return fmt.Sprintf("case %s extraction failed", e.CaseNumber)
	}
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IsNavigation reports whether err is (or wraps) a NavigationError.
func IsNavigation(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}

// IsCaptcha reports whether err is (or wraps) a CaptchaError.
func IsCaptcha(err error) bool {
	var capErr *CaptchaError
	return errors.As(err, &capErr)
}
