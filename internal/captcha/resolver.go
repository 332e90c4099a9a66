package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Preference records how a session wants its captchas handled. Once the
// remote service fails for a session, the session sticks to manual mode; the
// preference travels with the session state rather than any ambient storage,
// so concurrent sessions stay independent.
type Preference int

const (
	// PreferService tries the remote solving service first.
	PreferService Preference = iota
	// ManualOnly skips the remote service for the rest of the session.
	ManualOnly
)

// Mode reports how a Resolve call concluded. ModeNone means no challenge
// was present, so nothing was actually solved.
type Mode int

const (
	ModeNone Mode = iota
	ModeService
	ModeManual
)

// Page is the captcha-facing slice of the browser portal surface.
type Page interface {
	HasCaptcha(ctx context.Context) (bool, error)
	CaptchaSiteKey(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	InjectCaptchaToken(ctx context.Context, token string) error
	CaptchaTokenAccepted(ctx context.Context) (bool, error)
	ClickCaptchaCheckbox(ctx context.Context) error
	CaptchaCheckboxChecked(ctx context.Context) (bool, error)
}

// Config controls resolver behavior.
type Config struct {
	// UseService enables the remote solving path when an API client is set.
	UseService bool
	// MinBalance is the smallest account balance worth attempting a solve.
	MinBalance float64
	// ServiceInitialWait gives the service workers a head start before the
	// first poll.
	ServiceInitialWait time.Duration
	// ServicePollInterval / ServicePollTimeout bound the solution wait.
	ServicePollInterval time.Duration
	ServicePollTimeout  time.Duration
	// ManualPollInterval paces the checkbox polling in manual mode.
	ManualPollInterval time.Duration
	// ManualTimeout bounds the manual wait; zero means wait indefinitely.
	ManualTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinBalance <= 0 {
		c.MinBalance = 0.003
	}
	if c.ServiceInitialWait <= 0 {
		c.ServiceInitialWait = 10 * time.Second
	}
	if c.ServicePollInterval <= 0 {
		c.ServicePollInterval = 5 * time.Second
	}
	if c.ServicePollTimeout <= 0 {
		c.ServicePollTimeout = 5 * time.Minute
	}
	if c.ManualPollInterval <= 0 {
		c.ManualPollInterval = 2 * time.Second
	}
	return c
}

// Resolver runs the detect → service → manual-fallback decision chain. It
// holds no mutable state and is safe to share across concurrent sessions.
type Resolver struct {
	client *TwoCaptchaClient
	cfg    Config
	logger *zap.Logger
}

// NewResolver builds a Resolver. client may be nil when no service key is
// configured; the resolver then goes straight to manual mode.
func NewResolver(client *TwoCaptchaClient, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Resolve detects and clears any captcha on the page. It returns the
// (possibly updated) preference for the session to carry forward, the mode
// that cleared the challenge (ModeNone when there was none), and an error
// when the challenge could not be cleared at all.
func (r *Resolver) Resolve(ctx context.Context, page Page, pref Preference) (Preference, Mode, error) {
	present, err := page.HasCaptcha(ctx)
	if err != nil {
		return pref, ModeNone, fmt.Errorf("detect captcha: %w", err)
	}
	if !present {
		r.logger.Debug("no captcha detected")
		return pref, ModeNone, nil
	}
	r.logger.Info("captcha detected")

	if r.cfg.UseService && r.client != nil && pref == PreferService {
		if err := r.solveWithService(ctx, page); err == nil {
			r.logger.Info("captcha solved via service")
			return pref, ModeService, nil
		} else {
			r.logger.Warn("service solve failed, switching session to manual mode", zap.Error(err))
			pref = ManualOnly
		}
	}

	if err := r.solveManually(ctx, page); err != nil {
		return pref, ModeNone, err
	}
	return pref, ModeManual, nil
}

func (r *Resolver) solveWithService(ctx context.Context, page Page) error {
	balance, err := r.client.Balance(ctx)
	if err != nil {
		// An unreadable balance is not disqualifying; a known-low one is.
		r.logger.Warn("could not check solver balance", zap.Error(err))
	} else if balance < r.cfg.MinBalance {
		return fmt.Errorf("insufficient solver balance %.4f (need %.4f)", balance, r.cfg.MinBalance)
	}

	siteKey, err := page.CaptchaSiteKey(ctx)
	if err != nil {
		return fmt.Errorf("extract site key: %w", err)
	}
	pageURL, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page url: %w", err)
	}

	jobID, err := r.client.Submit(ctx, siteKey, pageURL)
	if err != nil {
		return err
	}
	r.logger.Info("captcha submitted to solving service", zap.String("job_id", jobID))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.cfg.ServiceInitialWait):
	}

	token, err := r.client.PollSolution(ctx, jobID, r.cfg.ServicePollInterval, r.cfg.ServicePollTimeout)
	if err != nil {
		return err
	}

	if err := page.InjectCaptchaToken(ctx, token); err != nil {
		return fmt.Errorf("inject token: %w", err)
	}
	accepted, err := page.CaptchaTokenAccepted(ctx)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	if !accepted {
		return errors.New("token injected but not accepted by the page")
	}
	return nil
}

func (r *Resolver) solveManually(ctx context.Context, page Page) error {
	if err := page.ClickCaptchaCheckbox(ctx); err != nil {
		r.logger.Debug("captcha checkbox click failed, polling anyway", zap.Error(err))
	}
	r.logger.Info("waiting for manual captcha completion")

	var deadline time.Time
	if r.cfg.ManualTimeout > 0 {
		deadline = time.Now().Add(r.cfg.ManualTimeout)
	}
	ticker := time.NewTicker(r.cfg.ManualPollInterval)
	defer ticker.Stop()

	for {
		checked, err := page.CaptchaCheckboxChecked(ctx)
		if err == nil && checked {
			r.logger.Info("captcha completed manually")
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("manual captcha not completed within %s", r.cfg.ManualTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("manual captcha wait: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
