package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/config"
)

// loginPollInterval is how often the post-submit outcome check runs.
const loginPollInterval = 250 * time.Millisecond

// ChromeAuthenticator drives the application's login form in a dedicated
// Chrome context. The browser is launched and torn down per Login call, which
// is why callers cache the resulting Session instead of logging in per test.
type ChromeAuthenticator struct {
	cfg    *config.Config
	logger *zap.Logger
}

var _ Authenticator = (*ChromeAuthenticator)(nil)

// NewChromeAuthenticator creates an authenticator bound to the configured
// application and browser settings.
func NewChromeAuthenticator(cfg *config.Config, logger *zap.Logger) *ChromeAuthenticator {
	return &ChromeAuthenticator{
		cfg:    cfg,
		logger: logger.Named("authenticator"),
	}
}

// Login performs the full UI login flow and harvests the session artifacts.
func (a *ChromeAuthenticator) Login(ctx context.Context, creds schemas.Credentials) (*schemas.Session, error) {
	app := a.cfg.App

	timeout := a.cfg.Browser.LoginTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	timeout = time.Duration(float64(timeout) * a.cfg.CI.TimeoutScale())

	loginCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(loginCtx, a.allocatorOptions()...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(a.logger.Sugar().Debugf),
		chromedp.WithErrorf(a.logger.Sugar().Errorf),
	)
	defer tabCancel()

	loginURL := strings.TrimRight(app.BaseURL, "/") + "/" + strings.TrimLeft(app.LoginPath, "/")
	a.logger.Info("Starting UI login", zap.String("identity", creds.Identity), zap.String("url", loginURL))
	start := time.Now()

	err := chromedp.Run(tabCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(app.IdentityField, chromedp.ByQuery),
		chromedp.SendKeys(app.IdentityField, creds.Identity, chromedp.ByQuery),
		chromedp.SendKeys(app.SecretField, creds.Secret, chromedp.ByQuery),
		chromedp.Click(app.SubmitButton, chromedp.ByQuery),
	)
	if err != nil {
		return nil, a.wrapRunError(creds.Identity, err)
	}

	if err := a.awaitOutcome(tabCtx, creds.Identity); err != nil {
		return nil, err
	}

	var cookies []*network.Cookie
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, a.wrapRunError(creds.Identity, err)
	}

	token := FindCookie(cookies, app.BearerCookie)
	if token == "" {
		return nil, &AuthError{
			Reason:   ReasonMissingToken,
			Identity: creds.Identity,
			Err:      fmt.Errorf("cookie %q absent after login", app.BearerCookie),
		}
	}

	session := &schemas.Session{
		Identity:      creds.Identity,
		BearerToken:   token,
		CookieHeader:  BuildCookieHeader(cookies),
		CreatedAt:     time.Now(),
		BaseURL:       app.BaseURL,
		ExpiresInHint: a.cfg.AuthCache.TokenTTLHint,
	}

	a.logger.Info("UI login complete",
		zap.String("identity", creds.Identity),
		zap.Int("cookies", len(cookies)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return session, nil
}

// awaitOutcome polls the page until the success indicator or the failure
// banner appears, or the login context expires.
func (a *ChromeAuthenticator) awaitOutcome(ctx context.Context, identity string) error {
	app := a.cfg.App
	check := fmt.Sprintf(
		`document.querySelector(%q) ? "success" : (document.querySelector(%q) ? "failure" : "pending")`,
		app.SuccessIndicator, app.FailureIndicator,
	)

	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return &AuthError{Reason: ReasonTimeout, Identity: identity, Err: ctx.Err()}
		case <-ticker.C:
			var outcome string
			if err := chromedp.Run(ctx, chromedp.Evaluate(check, &outcome)); err != nil {
				if ctx.Err() != nil {
					return &AuthError{Reason: ReasonTimeout, Identity: identity, Err: ctx.Err()}
				}
				// The page may be mid-navigation; treat evaluation errors as
				// "still pending" and keep polling.
				a.logger.Debug("Outcome probe failed, retrying", zap.Error(err))
				continue
			}
			switch outcome {
			case "success":
				return nil
			case "failure":
				return &AuthError{Reason: ReasonInvalidCredentials, Identity: identity}
			}
		}
	}
}

func (a *ChromeAuthenticator) wrapRunError(identity string, err error) error {
	if err == context.DeadlineExceeded || strings.Contains(err.Error(), "context deadline exceeded") {
		return &AuthError{Reason: ReasonTimeout, Identity: identity, Err: err}
	}
	return fmt.Errorf("login flow for %s failed: %w", identity, err)
}

func (a *ChromeAuthenticator) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if a.cfg.Browser.Headless {
		opts = append(opts, chromedp.Headless)
	}

	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", a.cfg.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", a.cfg.Browser.IgnoreTLSErrors),
	)

	for _, arg := range a.cfg.Browser.Args {
		if name, value, found := strings.Cut(arg, "="); found {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(name, "--"), value))
		} else {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
		}
	}

	return opts
}
