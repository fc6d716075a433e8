package capture

import (
	"context"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/resilience"
	"github.com/GriffinCanCode/shotdiff/internal/trace"
)

// PlaywrightCapturer drives a real browser through playwright.
type PlaywrightCapturer struct {
	opts    Options
	log     *slog.Logger
	breaker *resilience.Breaker
	retry   resilience.RetryConfig

	pw      *playwright.Playwright
	browser playwright.Browser
	shoot   func(t Target, dest string) error
}

// NewPlaywrightCapturer starts the playwright driver and launches the configured browser.
func NewPlaywrightCapturer(opts Options, log *slog.Logger) (*PlaywrightCapturer, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := checkBrowser(opts.Browser); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "start playwright driver")
	}

	launch := playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(opts.Headless)}
	var browser playwright.Browser
	switch opts.Browser {
	case "firefox":
		browser, err = pw.Firefox.Launch(launch)
	case "webkit":
		browser, err = pw.WebKit.Launch(launch)
	default:
		browser, err = pw.Chromium.Launch(launch)
	}
	if err != nil {
		_ = pw.Stop()
		return nil, apperrors.Wrapf(err, apperrors.CodeUnavailable, "launch %s", opts.Browser)
	}

	c := newCapturer(opts, log)
	c.pw = pw
	c.browser = browser
	c.shoot = c.screenshot
	log.Info("browser launched", "browser", opts.Browser, "headless", opts.Headless, "version", browser.Version())
	return c, nil
}

func newCapturer(opts Options, log *slog.Logger) *PlaywrightCapturer {
	if opts.Browser == "" {
		opts.Browser = "chromium"
	}
	return &PlaywrightCapturer{
		opts:    opts,
		log:     log,
		breaker: resilience.New(resilience.CaptureConfig(log)),
		retry:   resilience.NavigationRetryConfig(log),
	}
}

func checkBrowser(name string) error {
	switch name {
	case "", "chromium", "firefox", "webkit":
		return nil
	default:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "unsupported browser %q", name)
	}
}

// Capture screenshots t into dest. Transient failures are retried; repeated
// failures open the breaker and later captures fail with UNAVAILABLE.
func (c *PlaywrightCapturer) Capture(ctx context.Context, t Target, dest string) error {
	log := trace.Logger(ctx, c.log).With("screenshot", t.ID, "url", t.URL)
	if t.URL == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "capture target has no url").
			WithMetadata("id", t.ID)
	}
	if err := ensureDir(dest); err != nil {
		return err
	}

	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, c.retry, func() error {
			return c.shoot(t, dest)
		})
	}, apperrors.IsRetryable)
	if err != nil {
		log.Error("capture failed", "error", err)
		return err
	}
	log.Debug("captured", "path", dest)
	return nil
}

func (c *PlaywrightCapturer) screenshot(t Target, dest string) error {
	timeout := c.opts.timeoutMS()
	bctx, err := c.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: c.opts.ViewportWidth, Height: c.opts.ViewportHeight},
	})
	if err != nil {
		return captureFailed(err, t, "open browser context")
	}
	defer bctx.Close()
	bctx.SetDefaultTimeout(timeout)

	page, err := bctx.NewPage()
	if err != nil {
		return captureFailed(err, t, "open page")
	}

	if _, err := page.Goto(t.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(timeout),
	}); err != nil {
		return captureFailed(err, t, "navigate")
	}

	if t.WaitFor != "" {
		if err := page.Locator(t.WaitFor).First().WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(timeout),
		}); err != nil {
			return captureFailed(err, t, "wait for "+t.WaitFor)
		}
	}

	if t.Selector != "" {
		_, err = page.Locator(t.Selector).First().Screenshot(playwright.LocatorScreenshotOptions{
			Path:    playwright.String(dest),
			Timeout: playwright.Float(timeout),
		})
	} else {
		_, err = page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(dest),
			FullPage: playwright.Bool(t.FullPage),
			Timeout:  playwright.Float(timeout),
		})
	}
	if err != nil {
		return captureFailed(err, t, "screenshot")
	}
	return nil
}

func captureFailed(err error, t Target, step string) error {
	return apperrors.Wrapf(err, apperrors.CodeCaptureFailed, "%s failed", step).
		WithMetadata("id", t.ID).
		WithMetadata("url", t.URL)
}

// Close shuts down the browser and the playwright driver.
func (c *PlaywrightCapturer) Close() error {
	var firstErr error
	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if c.pw != nil {
		if err := c.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
