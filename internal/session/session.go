// Package session implements the per-attorney scraping state machine. One
// Session owns one browser portal and drives it through search, captcha
// resolution, result filtering, case-by-case extraction, and recovery.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/captcha"
	"github.com/Fennzo/CourtScrapper/internal/courts"
	"github.com/Fennzo/CourtScrapper/internal/metrics"
)

// state is the session's position in its lifecycle.
type state int

const (
	stateInit state = iota
	stateSearchSubmitted
	stateResultsValidated
	stateExtracting
	stateRecovering
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSearchSubmitted:
		return "search_submitted"
	case stateResultsValidated:
		return "results_validated"
	case stateExtracting:
		return "extracting_cases"
	case stateRecovering:
		return "recovering"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config controls session behavior.
type Config struct {
	MinCaseYear      int
	CaseType         string
	ChargeKeywords   []string
	PageSize         int
	EnableRecovery   bool
	RecoveryAttempts uint
	RecoveryDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 200
	}
	if c.RecoveryAttempts == 0 {
		c.RecoveryAttempts = 6
	}
	if c.RecoveryDelay <= 0 {
		c.RecoveryDelay = 2 * time.Second
	}
	return c
}

// Session drives one attorney search. All mutable state is owned by the
// session and touched only from its own Run goroutine.
type Session struct {
	attorney courts.AttorneyQuery
	index    int
	factory  courts.PortalFactory
	resolver *captcha.Resolver
	extract  courts.ExtractFunc
	cfg      Config
	logger   *zap.Logger

	portal      courts.Portal
	state       state
	processed   courts.ProcessedCaseSet
	records     []courts.CaseRecord
	captchaPref captcha.Preference

	recovered           bool
	processedAtRecovery int
}

// New builds a Session for one attorney.
func New(
	index int,
	attorney courts.AttorneyQuery,
	factory courts.PortalFactory,
	resolver *captcha.Resolver,
	extract courts.ExtractFunc,
	cfg Config,
	logger *zap.Logger,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		attorney:    attorney,
		index:       index,
		factory:     factory,
		resolver:    resolver,
		extract:     extract,
		cfg:         cfg.withDefaults(),
		logger:      logger.With(zap.Int("attorney_index", index), zap.String("attorney", attorney.FullName())),
		state:       stateInit,
		processed:   courts.NewProcessedCaseSet(),
		captchaPref: captcha.PreferService,
	}
}

// Run executes the state machine to a terminal state and always returns a
// WorkerResult; errors never cross the session boundary. Partial records are
// carried on every exit path, and the portal is released on every exit path.
func (s *Session) Run(ctx context.Context) courts.WorkerResult {
	metrics.SessionStarted()
	defer s.closePortal()

	var runErr error
	for s.state != stateDone && s.state != stateFailed {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("session interrupted", zap.String("state", s.state.String()))
			runErr = courts.ErrInterrupted
			s.state = stateFailed
			break
		}

		var err error
		switch s.state {
		case stateInit:
			err = s.stepInit(ctx)
		case stateSearchSubmitted:
			err = s.stepValidateResults(ctx)
		case stateResultsValidated:
			err = s.stepPrepareExtraction(ctx)
		case stateExtracting:
			err = s.stepExtractCases(ctx)
		case stateRecovering:
			err = s.stepRecover(ctx)
		}
		if err != nil {
			runErr = err
		}
	}

	success := s.state == stateDone
	if success {
		// A recovered session may have logged failures along the way; a Done
		// outcome reports none of them.
		runErr = nil
	}
	metrics.SessionFinished(success)
	s.logger.Info("session finished",
		zap.String("state", s.state.String()),
		zap.Int("records", len(s.records)),
		zap.Int("processed", s.processed.Len()),
	)
	return courts.WorkerResult{
		AttorneyIndex: s.index,
		Attorney:      s.attorney,
		Records:       s.records,
		Success:       success,
		Err:           runErr,
	}
}

// stepInit walks Init → SearchSubmitted: portal setup, advanced filters,
// attorney search mode, name fill, the captcha gate, and the form submit.
func (s *Session) stepInit(ctx context.Context) error {
	if err := s.openAndFill(ctx); err != nil {
		s.logger.Error("search setup failed", zap.Error(err))
		return s.escalateNavigation(err)
	}

	pref, mode, err := s.resolver.Resolve(ctx, s.portal, s.captchaPref)
	s.captchaPref = pref
	if err != nil {
		// Captcha failures are a hard stop for the attempt; recovery never
		// re-runs the captcha path on its own.
		s.logger.Error("captcha gate failed", zap.Error(err))
		s.state = stateFailed
		return &courts.CaptchaError{Err: err}
	}
	if mode != captcha.ModeNone {
		metrics.CaptchaResolved(mode == captcha.ModeManual)
	}

	if err := s.portal.SubmitSearch(ctx); err != nil {
		s.logger.Error("search submit failed", zap.Error(err))
		return s.escalateNavigation(&courts.NavigationError{Step: "submit search", Err: err})
	}
	s.state = stateSearchSubmitted
	return nil
}

// openAndFill performs the pre-captcha portion of the search flow. It is
// shared between the initial pass and each recovery attempt.
func (s *Session) openAndFill(ctx context.Context) error {
	if s.portal == nil {
		portal, err := s.factory.NewPortal(ctx)
		if err != nil {
			return &courts.NavigationError{Step: "create portal", Err: err}
		}
		s.portal = portal
	}

	if err := s.portal.Open(ctx); err != nil {
		return &courts.NavigationError{Step: "open search page", Err: err}
	}
	if err := s.portal.ExpandAdvancedOptions(ctx); err != nil {
		// Best-effort: the default view still accepts attorney searches.
		s.logger.Debug("could not expand advanced options", zap.Error(err))
	}
	if err := s.portal.SelectAttorneySearch(ctx); err != nil {
		return &courts.NavigationError{Step: "select attorney search mode", Err: err}
	}
	if err := s.portal.FillAttorneyName(ctx, s.attorney.FirstName, s.attorney.LastName); err != nil {
		return &courts.NavigationError{Step: "fill attorney name", Err: err}
	}
	return nil
}

// stepValidateResults applies the recency gate and bumps the page size.
func (s *Session) stepValidateResults(ctx context.Context) error {
	newest, err := s.portal.NewestFileDate(ctx)
	if err != nil {
		// An unreadable date is treated as unknown, not as a failure.
		s.logger.Warn("could not read newest file date", zap.Error(err))
		newest = ""
	}
	if !courts.IsRecentEnough(newest, s.cfg.MinCaseYear) {
		s.logger.Info("newest case predates minimum year, no recent cases",
			zap.String("newest_file_date", newest),
			zap.Int("min_year", s.cfg.MinCaseYear),
		)
		s.state = stateDone
		return nil
	}

	if err := s.portal.SetPageSize(ctx, s.cfg.PageSize); err != nil {
		s.logger.Debug("could not raise page size", zap.Error(err))
	}
	s.state = stateResultsValidated
	return nil
}

// stepPrepareExtraction filters the visible rows by case type.
func (s *Session) stepPrepareExtraction(ctx context.Context) error {
	rows, err := s.filteredRows(ctx)
	if err != nil {
		return s.escalateNavigation(err)
	}
	if len(rows) == 0 {
		s.logger.Info("no rows matched case type filter", zap.String("case_type", s.cfg.CaseType))
		s.state = stateDone
		return nil
	}
	s.logger.Info("rows matched case type filter", zap.Int("rows", len(rows)))
	s.state = stateExtracting
	return nil
}

// stepExtractCases runs the extraction loop. The row list is re-resolved
// after every navigation because the grid may be refreshed server-side; the
// processed set makes resumption idempotent regardless of row reordering.
func (s *Session) stepExtractCases(ctx context.Context) error {
	rows, err := s.filteredRows(ctx)
	if err != nil {
		return s.escalateNavigation(err)
	}

	i := 0
	for i < len(rows) {
		if err := ctx.Err(); err != nil {
			s.state = stateFailed
			return courts.ErrInterrupted
		}

		row := rows[i]
		if row.CaseNumber != "" && s.processed.Contains(row.CaseNumber) {
			i++
			continue
		}

		if err := s.portal.OpenCase(ctx, row); err != nil {
			// A single unreachable case must never abort the batch.
			s.logger.Warn("could not open case, skipping row",
				zap.String("case_number", row.CaseNumber), zap.Error(err))
			metrics.CaseSkipped("unreachable")
			if rows, err = s.filteredRows(ctx); err != nil {
				return s.escalateNavigation(err)
			}
			i++
			continue
		}

		s.handleCaseDetail(ctx, row)

		if err := s.portal.BackToResults(ctx); err != nil {
			s.logger.Error("navigation back to results failed",
				zap.String("case_number", row.CaseNumber), zap.Error(err))
			return s.escalateNavigation(&courts.NavigationError{Step: "back to results", Err: err})
		}

		if rows, err = s.filteredRows(ctx); err != nil {
			return s.escalateNavigation(err)
		}
		i++
	}

	s.state = stateDone
	return nil
}

// handleCaseDetail applies the keyword gate and the extraction function to
// the open detail page. Per-case failures are absorbed here: the case number
// is marked processed either way so broken cases cannot cause retry loops.
func (s *Session) handleCaseDetail(ctx context.Context, row courts.CaseRow) {
	text, err := s.portal.DetailText(ctx)
	if err != nil {
		s.logger.Warn("could not read case detail text",
			zap.String("case_number", row.CaseNumber), zap.Error(err))
		s.processed.Add(row.CaseNumber)
		metrics.CaseSkipped("detail_unreadable")
		return
	}

	if !courts.MatchesAnyKeyword(text, s.cfg.ChargeKeywords) {
		s.logger.Debug("no charge keyword matched", zap.String("case_number", row.CaseNumber))
		s.processed.Add(row.CaseNumber)
		metrics.CaseSkipped("keyword_miss")
		return
	}

	record, err := s.extract(ctx, text)
	if err != nil {
		extErr := &courts.ExtractionError{CaseNumber: row.CaseNumber, Err: err}
		s.logger.Warn("case extraction failed", zap.Error(extErr))
		s.processed.Add(row.CaseNumber)
		metrics.CaseSkipped("extraction_error")
		return
	}
	if record.CaseNumber == "" {
		record.CaseNumber = row.CaseNumber
	}
	if missing := record.MissingFields(); len(missing) > 0 {
		extErr := &courts.ExtractionError{CaseNumber: row.CaseNumber, Missing: missing}
		s.logger.Warn("case record incomplete, not storing", zap.Error(extErr))
		s.processed.Add(row.CaseNumber)
		metrics.CaseSkipped("missing_fields")
		return
	}
	if s.processed.Contains(record.CaseNumber) {
		s.processed.Add(row.CaseNumber)
		return
	}

	record.AttachAttorney(s.attorney)
	s.records = append(s.records, record)
	s.processed.Add(record.CaseNumber)
	s.processed.Add(row.CaseNumber)
	metrics.CaseExtracted()
	s.logger.Info("case extracted",
		zap.String("case_number", record.CaseNumber),
		zap.Int("session_total", len(s.records)),
	)
}

// filteredRows resolves the current rows and applies the case-type filter.
func (s *Session) filteredRows(ctx context.Context) ([]courts.CaseRow, error) {
	rows, err := s.portal.CaseRows(ctx)
	if err != nil {
		return nil, &courts.NavigationError{Step: "read case rows", Err: err}
	}
	return courts.FilterRowsByCaseType(rows, s.cfg.CaseType), nil
}

// escalateNavigation routes a session-level error into Recovering or Failed
// depending on configuration, and returns the error for the result.
func (s *Session) escalateNavigation(err error) error {
	if s.cfg.EnableRecovery {
		s.logger.Warn("session-level failure, entering recovery", zap.Error(err))
		s.state = stateRecovering
		return err
	}
	s.state = stateFailed
	return err
}

func (s *Session) closePortal() {
	if s.portal == nil {
		return
	}
	// Teardown must survive an already-broken browser; use a fresh context
	// so cancellation cannot leak resources.
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.portal.Close(closeCtx); err != nil {
		s.logger.Debug("portal close failed", zap.Error(err))
	}
	s.portal = nil
}
