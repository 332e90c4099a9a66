package session

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/captcha"
	"github.com/Fennzo/CourtScrapper/internal/courts"
	"github.com/Fennzo/CourtScrapper/internal/metrics"
)

// stepRecover tears down the broken browser session and replays the whole
// search flow from scratch against a fresh portal, bounded by the configured
// attempt count with a fixed delay between attempts. The processed set is
// deliberately kept, so resumed extraction skips everything already done.
// Exhausting the bound fails the session; accumulated records are never
// discarded.
func (s *Session) stepRecover(ctx context.Context) error {
	s.closePortal()

	// A recovered session that fails again without processing a single new
	// case will never make progress; stop instead of cycling forever.
	if s.recovered && s.processed.Len() == s.processedAtRecovery {
		s.logger.Error("no progress since last recovery, giving up")
		s.state = stateFailed
		return fmt.Errorf("no progress since last recovery (%d cases processed)", s.processed.Len())
	}
	s.recovered = true
	s.processedAtRecovery = s.processed.Len()

	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			metrics.RecoveryAttempt()
			s.logger.Info("session recovery attempt",
				zap.Int("attempt", attempt),
				zap.Uint("max_attempts", s.cfg.RecoveryAttempts),
			)
			if rerr := s.rebuild(ctx); rerr != nil {
				s.logger.Warn("recovery attempt failed", zap.Int("attempt", attempt), zap.Error(rerr))
				s.closePortal()
				return rerr
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.RecoveryAttempts),
		retry.Delay(s.cfg.RecoveryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		s.logger.Error("session recovery exhausted", zap.Int("attempts", attempt), zap.Error(err))
		s.state = stateFailed
		return fmt.Errorf("recovery exhausted after %d attempts: %w", attempt, err)
	}

	s.logger.Info("session recovered",
		zap.Int("attempt", attempt),
		zap.Int("already_processed", s.processed.Len()),
	)
	// Resume behind the submit so the recency gate and row filter run again
	// on the fresh portal; a session whose first pass died before validation
	// must not reach extraction without them.
	s.state = stateSearchSubmitted
	return nil
}

// rebuild replays the search flow up to the submit on a fresh portal:
// navigate, expand filters, select search mode, fill names, clear the
// captcha, and submit. A captcha failure here fails only this attempt.
// Result validation and the page-size bump run afterwards through the
// normal state machine.
func (s *Session) rebuild(ctx context.Context) error {
	if err := s.openAndFill(ctx); err != nil {
		return err
	}

	pref, mode, err := s.resolver.Resolve(ctx, s.portal, s.captchaPref)
	s.captchaPref = pref
	if err != nil {
		return &courts.CaptchaError{Err: err}
	}
	if mode != captcha.ModeNone {
		metrics.CaptchaResolved(mode == captcha.ModeManual)
	}

	if err := s.portal.SubmitSearch(ctx); err != nil {
		return &courts.NavigationError{Step: "submit search", Err: err}
	}
	return nil
}
