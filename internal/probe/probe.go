// Package probe checks that the court portal is reachable and serving its
// search page before a run spends browser time on it.
package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls the reachability probe.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Result describes what the probe saw.
type Result struct {
	StatusCode int
	Title      string
	HasCaptcha bool
}

// Prober fetches the portal entry page with a lightweight HTTP client.
type Prober struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{cfg: cfg, logger: logger}
}

// Check fetches the base URL and reports status, page title, and whether a
// captcha widget is visible to plain HTTP clients. A non-2xx status or a
// transport failure is an error: the run should not start.
func (p *Prober) Check(ctx context.Context, baseURL string) (Result, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse portal url: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.MaxDepth(1),
	)
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	collector.SetRequestTimeout(p.cfg.Timeout)

	var result Result
	var visitErr error

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		body := strings.ToLower(string(r.Body))
		result.HasCaptcha = strings.Contains(body, "recaptcha") || strings.Contains(body, "data-sitekey")
	})
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		result.Title = strings.TrimSpace(e.Text)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		visitErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(baseURL)
	}()
	select {
	case <-ctx.Done():
		return result, fmt.Errorf("portal probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return result, fmt.Errorf("portal unreachable (status %d): %w", result.StatusCode, err)
		}
	}
	collector.Wait()

	if visitErr != nil {
		return result, fmt.Errorf("portal probe failed (status %d): %w", result.StatusCode, visitErr)
	}
	p.logger.Info("portal probe succeeded",
		zap.Int("status", result.StatusCode),
		zap.String("title", result.Title),
		zap.Bool("captcha_visible", result.HasCaptcha),
	)
	return result, nil
}
