package browser

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
)

// detectCaptchaScript reports whether any reCAPTCHA artifact is present.
const detectCaptchaScript = `(() => {
	const selectors = [
		"iframe[src*='recaptcha']",
		"iframe[src*='captcha']",
		".g-recaptcha",
		"[data-sitekey]",
		"iframe[title*='reCAPTCHA']",
		"iframe[title*='captcha']",
	];
	return selectors.some(sel => document.querySelector(sel) !== null);
})()`

func (p *portal) HasCaptcha(ctx context.Context) (bool, error) {
	var present bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(detectCaptchaScript, &present))
	if err != nil {
		return false, fmt.Errorf("detect captcha: %w", err)
	}
	return present, nil
}

var siteKeyRe = regexp.MustCompile(`data-sitekey="([^"]+)"`)

func (p *portal) CaptchaSiteKey(ctx context.Context) (string, error) {
	var key string
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(`(() => {
		const el = document.querySelector("[data-sitekey]");
		return el ? (el.getAttribute("data-sitekey") || "") : "";
	})()`, &key))
	if err != nil {
		return "", fmt.Errorf("read site key: %w", err)
	}
	if key != "" {
		return key, nil
	}

	// Some skins render the widget from script; fall back to the raw HTML.
	var html string
	err = p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	if err != nil {
		return "", fmt.Errorf("read page source: %w", err)
	}
	if m := siteKeyRe.FindStringSubmatch(html); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("no site key on page")
}

func (p *portal) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// injectTokenScript writes the solved token into every response textarea and
// fires the widget callback when one is registered.
func injectTokenScript(token string) string {
	return fmt.Sprintf(`(() => {
		const token = %s;
		let elements = document.querySelectorAll('textarea[name="g-recaptcha-response"]');
		if (!elements.length) {
			const byId = document.getElementById('g-recaptcha-response');
			elements = byId ? [byId] : [];
		}
		let injected = false;
		for (const el of elements) {
			el.style.display = 'block';
			el.value = token;
			el.dispatchEvent(new Event('change', { bubbles: true }));
			injected = true;
		}
		try {
			const widget = document.querySelector('.g-recaptcha');
			const cbName = widget ? widget.getAttribute('data-callback') : null;
			if (cbName && typeof window[cbName] === 'function') {
				window[cbName](token);
			}
		} catch (e) {}
		return injected;
	})()`, strconv.Quote(token))
}

func (p *portal) InjectCaptchaToken(ctx context.Context, token string) error {
	var injected bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(injectTokenScript(token), &injected))
	if err != nil {
		return fmt.Errorf("inject captcha token: %w", err)
	}
	if !injected {
		return fmt.Errorf("no g-recaptcha-response element to inject into")
	}
	return nil
}

// tokenAcceptedScript mirrors the post-injection verification: the response
// textarea must still hold a token of plausible length.
const tokenAcceptedScript = `(() => {
	const el = document.querySelector('textarea[name="g-recaptcha-response"]');
	return !!(el && el.value && el.value.length > 100);
})()`

func (p *portal) CaptchaTokenAccepted(ctx context.Context) (bool, error) {
	var ok bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(tokenAcceptedScript, &ok))
	if err != nil {
		return false, fmt.Errorf("verify captcha token: %w", err)
	}
	return ok, nil
}

// ClickCaptchaCheckbox clicks the anchor iframe so a human at a visible
// browser gets the checkbox focused. The widget itself is cross-origin, so
// the click targets the iframe element.
func (p *portal) ClickCaptchaCheckbox(ctx context.Context) error {
	err := p.run(ctx, 5*time.Second,
		chromedp.Click(`iframe[title='reCAPTCHA']`, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("click captcha iframe: %w", err)
	}
	return nil
}

// CaptchaCheckboxChecked reports whether the widget has produced a response
// token, which is the only cross-origin-safe signal that the checkbox was
// completed.
func (p *portal) CaptchaCheckboxChecked(ctx context.Context) (bool, error) {
	var ok bool
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(`(() => {
		const el = document.querySelector('textarea[name="g-recaptcha-response"]');
		return !!(el && el.value && el.value.length > 0);
	})()`, &ok))
	if err != nil {
		return false, fmt.Errorf("check captcha state: %w", err)
	}
	return ok, nil
}
