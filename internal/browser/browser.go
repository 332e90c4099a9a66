// Package browser implements the portal interface against the live court
// records site using chromedp. Selector strategies live here: every portal
// operation tries an ordered list of selectors because the site ships
// multiple grid skins.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// Config controls browser behavior for all portals of one run.
type Config struct {
	BaseURL           string
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	// ActionDelay paces portal interactions so the site sees human-like
	// cadence. Zero disables pacing.
	ActionDelay time.Duration
	PostNavWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.PostNavWait <= 0 {
		c.PostNavWait = 2 * time.Second
	}
	return c
}

// Factory owns one Chrome allocator and hands out an isolated browser
// context per session.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewFactory builds the shared allocator. Close must be called when the run
// finishes.
func NewFactory(cfg Config, logger *zap.Logger) (*Factory, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("browser: base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		// Manual captcha solving needs a visible window.
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ActionDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.ActionDelay), 1)
	}

	return &Factory{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// NewPortal creates an isolated browser tab context. Each scraping session
// gets its own so a crashed tab never affects siblings.
func (f *Factory) NewPortal(_ context.Context) (courts.Portal, error) {
	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	return &portal{
		ctx:     tabCtx,
		cancel:  tabCancel,
		cfg:     f.cfg,
		limiter: f.limiter,
		logger:  f.logger,
	}, nil
}

// Close tears down the allocator and every remaining tab.
func (f *Factory) Close() {
	f.allocCancel()
}

type portal struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// run executes actions on the portal's tab, honoring the caller's context
// and the configured timeout. The tab context is not derived from the
// caller, so cancellation is bridged explicitly.
func (p *portal) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// pace waits for the rate limiter so actions are spaced out.
func (p *portal) pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

func (p *portal) Open(ctx context.Context) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	p.logger.Debug("navigating to search page", zap.String("url", p.cfg.BaseURL))
	return p.run(ctx, p.cfg.NavigationTimeout,
		p.networkSetup(),
		chromedp.Navigate(p.cfg.BaseURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.PostNavWait),
	)
}

// networkSetup enables the network domain and applies the user agent on the
// tab before the first navigation.
func (p *portal) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if p.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(p.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

var advancedOptionSelectors = []string{
	`a[href*='Advanced']`,
	`[id*='advanced']`,
	`[class*='advanced']`,
}

func (p *portal) ExpandAdvancedOptions(ctx context.Context) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	if err := p.clickFirst(ctx, advancedOptionSelectors); err == nil {
		return nil
	}
	// The expander is often a text node, not a stable element.
	var clicked bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(clickByTextScript("Advanced Filtering Options"), &clicked))
	if err != nil {
		return fmt.Errorf("expand advanced options: %w", err)
	}
	if !clicked {
		return fmt.Errorf("expand advanced options: no selector matched")
	}
	return p.settle(ctx)
}

func (p *portal) SelectAttorneySearch(ctx context.Context) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	const combo = `input[name='caseCriteria.SearchBy_input']`
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.WaitVisible(combo, chromedp.ByQuery),
		chromedp.Click(combo, chromedp.ByQuery),
		chromedp.SetValue(combo, "", chromedp.ByQuery),
		chromedp.SendKeys(combo, "Attorney Name", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("type into search-by combo: %w", err)
	}

	var picked bool
	err = p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(pickComboOptionScript, &picked))
	if err != nil || !picked {
		// Keyboard fallback: the Kendo combo commits the typed text on Enter.
		if kerr := p.run(ctx, p.cfg.ActionTimeout,
			chromedp.SendKeys(combo, "\r", chromedp.ByQuery),
		); kerr != nil {
			return fmt.Errorf("select attorney search mode: %w", kerr)
		}
	}
	return p.settle(ctx)
}

func (p *portal) FillAttorneyName(ctx context.Context, first, last string) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	const (
		lastInput  = `input#caseCriteria_NameLast, input[name='caseCriteria.NameLast']`
		firstInput = `input#caseCriteria_NameFirst, input[name='caseCriteria.NameFirst']`
	)
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.WaitVisible(lastInput, chromedp.ByQuery),
		chromedp.SetValue(lastInput, last, chromedp.ByQuery),
		chromedp.WaitVisible(firstInput, chromedp.ByQuery),
		chromedp.SetValue(firstInput, first, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill attorney name fields: %w", err)
	}
	return nil
}

var submitSelectors = []string{
	`input[type='submit']`,
	`button[type='submit']`,
	`input[value*='Submit']`,
	`button.btn-primary`,
	`input.btn-primary`,
}

func (p *portal) SubmitSearch(ctx context.Context) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	if err := p.clickFirst(ctx, submitSelectors); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	return p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.PostNavWait),
	)
}

func (p *portal) NewestFileDate(ctx context.Context) (string, error) {
	var date string
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(newestFileDateScript, &date))
	if err != nil {
		return "", fmt.Errorf("read newest file date: %w", err)
	}
	if date == "" {
		return "", fmt.Errorf("no file date cell found")
	}
	return date, nil
}

func (p *portal) SetPageSize(ctx context.Context, size int) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	var changed bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(setPageSizeScript(size), &changed))
	if err != nil {
		return fmt.Errorf("set page size: %w", err)
	}
	if !changed {
		return fmt.Errorf("page size selector not found")
	}
	return p.settle(ctx)
}

type rowDTO struct {
	Index      int    `json:"index"`
	CaseNumber string `json:"caseNumber"`
	Text       string `json:"text"`
}

func (p *portal) CaseRows(ctx context.Context) ([]courts.CaseRow, error) {
	var dtos []rowDTO
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(caseRowsScript, &dtos))
	if err != nil {
		return nil, fmt.Errorf("read case rows: %w", err)
	}
	rows := make([]courts.CaseRow, 0, len(dtos))
	for _, d := range dtos {
		rows = append(rows, courts.CaseRow{Index: d.Index, CaseNumber: d.CaseNumber, Text: d.Text})
	}
	return rows, nil
}

func (p *portal) OpenCase(ctx context.Context, row courts.CaseRow) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	var clicked bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(openCaseScript(row), &clicked))
	if err != nil {
		return fmt.Errorf("click case link: %w", err)
	}
	if !clicked {
		return fmt.Errorf("case link not found for %q", row.CaseNumber)
	}
	return p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.PostNavWait),
	)
}

func (p *portal) DetailText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		return "", fmt.Errorf("read detail text: %w", err)
	}
	return text, nil
}

var backToResultsSelectors = []string{
	`a#tcControllerLink_1`,
	`li#tcController_1 a`,
}

func (p *portal) BackToResults(ctx context.Context) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	if err := p.clickFirst(ctx, backToResultsSelectors); err != nil {
		var clicked bool
		if jerr := p.run(ctx, p.cfg.ActionTimeout,
			chromedp.Evaluate(clickByTextScript("Search Results"), &clicked),
		); jerr != nil || !clicked {
			return fmt.Errorf("search results tab not found")
		}
	}
	return p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.cfg.PostNavWait),
	)
}

func (p *portal) Close(ctx context.Context) error {
	p.cancel()
	return nil
}

// clickFirst tries each selector with a short per-attempt timeout.
func (p *portal) clickFirst(ctx context.Context, selectors []string) error {
	for _, sel := range selectors {
		err := p.run(ctx, 5*time.Second,
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		)
		if err == nil {
			return nil
		}
		p.logger.Debug("selector did not match", zap.String("selector", sel), zap.Error(err))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("no selector matched")
}

// settle gives the page a beat after a UI interaction triggers a reload.
func (p *portal) settle(ctx context.Context) error {
	return p.run(ctx, p.cfg.ActionTimeout, chromedp.Sleep(p.cfg.PostNavWait))
}
