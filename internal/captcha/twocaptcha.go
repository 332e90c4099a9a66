// Package captcha detects and resolves captcha challenges, either through
// the 2captcha remote solving service or by waiting for manual completion.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://2captcha.com"
	softID         = "4582"
)

// ErrNotReady is returned while the service is still working on a challenge.
var ErrNotReady = errors.New("solution not ready")

// apiResponse is the JSON envelope 2captcha wraps every answer in.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// TwoCaptchaClient talks to the 2captcha HTTP API.
type TwoCaptchaClient struct {
	http   *resty.Client
	apiKey string
}

// NewTwoCaptchaClient builds a client for the given API key.
func NewTwoCaptchaClient(apiKey string) *TwoCaptchaClient {
	return newTwoCaptchaClient(apiKey, defaultBaseURL)
}

func newTwoCaptchaClient(apiKey, baseURL string) *TwoCaptchaClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &TwoCaptchaClient{
		http:   client,
		apiKey: apiKey,
	}
}

// Balance returns the account balance in dollars.
func (c *TwoCaptchaClient) Balance(ctx context.Context) (float64, error) {
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    c.apiKey,
			"action": "getbalance",
			"json":   "1",
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/res.php")
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("get balance: http %d", resp.StatusCode())
	}
	if out.Status != 1 {
		return 0, fmt.Errorf("get balance: %s", out.Request)
	}
	balance, err := strconv.ParseFloat(out.Request, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", out.Request, err)
	}
	return balance, nil
}

// Submit sends a reCAPTCHA challenge to the service and returns its job ID.
func (c *TwoCaptchaClient) Submit(ctx context.Context, siteKey, pageURL string) (string, error) {
	if len(siteKey) < 20 {
		return "", fmt.Errorf("site key %q too short", siteKey)
	}
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":       c.apiKey,
			"method":    "userrecaptcha",
			"googlekey": siteKey,
			"pageurl":   pageURL,
			"json":      "1",
			"soft_id":   softID,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/in.php")
	if err != nil {
		return "", fmt.Errorf("submit challenge: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("submit challenge: http %d", resp.StatusCode())
	}
	if out.Status != 1 {
		return "", fmt.Errorf("submit challenge: %s", out.Request)
	}
	return out.Request, nil
}

// FetchSolution asks for the solved token once. It returns ErrNotReady while
// the service is still working.
func (c *TwoCaptchaClient) FetchSolution(ctx context.Context, jobID string) (string, error) {
	var out apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    c.apiKey,
			"action": "get",
			"id":     jobID,
			"json":   "1",
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/res.php")
	if err != nil {
		return "", fmt.Errorf("poll solution: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("poll solution: http %d", resp.StatusCode())
	}
	if out.Status == 1 {
		if len(out.Request) < 100 {
			return "", fmt.Errorf("implausible token (length %d)", len(out.Request))
		}
		return out.Request, nil
	}
	// The service has shipped both spellings at different times.
	if out.Request == "CAPCHA_NOT_READY" || out.Request == "CAPTCHA_NOT_READY" {
		return "", ErrNotReady
	}
	return "", fmt.Errorf("poll solution: %s", out.Request)
}

// PollSolution polls FetchSolution at the given interval until a token
// arrives, the deadline passes, or the context is canceled.
func (c *TwoCaptchaClient) PollSolution(ctx context.Context, jobID string, interval, timeout time.Duration) (string, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		token, err := c.FetchSolution(ctx, jobID)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNotReady) {
			return "", err
		}
		if timeout > 0 && time.Now().After(deadline) {
			return "", fmt.Errorf("solution not ready after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("poll solution: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
