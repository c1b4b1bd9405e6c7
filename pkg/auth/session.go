// Package auth handles the user-assisted login to the setup site.
//
// Credentials are never seen by this tool. The user signs in inside a headed
// Chrome window and the session cookies persist in the browser profile
// directory, which later headless runs reuse.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

// DefaultPollInterval is how often the current address is checked while the
// user signs in.
const DefaultPollInterval = time.Second

// Page is the part of a browser session login needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
}

// Options configures WaitForLogin.
type Options struct {
	LoginURL        string
	DashboardMarker string
	Timeout         time.Duration
	PollInterval    time.Duration
}

// ErrLoginTimeout is returned when the dashboard was not reached in time.
var ErrLoginTimeout = errs.New(errs.ErrorTypeAuth, "login was not completed in time")

// IsLoggedIn reports whether address is a post-login page.
func IsLoggedIn(address, marker string) bool {
	return marker != "" && strings.Contains(address, marker)
}

// WaitForLogin opens the login page and polls until the browser lands on an
// address containing the dashboard marker, the timeout passes, or stop is
// requested.
func WaitForLogin(ctx context.Context, page Page, opts Options, signals *control.Signals, log logger.Logger) (control.Outcome, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if signals == nil {
		signals = control.NewSignals()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	log.WithField("url", opts.LoginURL).Info("Opening login page")
	if err := page.Navigate(ctx, opts.LoginURL); err != nil {
		if signals.Stopped() || ctx.Err() != nil {
			return control.Cancelled, nil
		}
		return control.Failed, errs.Wrap(errs.ErrorTypeAuth, "failed to open login page", err)
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		current, err := page.CurrentURL(ctx)
		if err != nil {
			log.WithError(err).Debug("Could not read the current address")
		} else if IsLoggedIn(current, opts.DashboardMarker) {
			log.WithField("url", current).Info("Login detected")
			return control.Ok, nil
		}

		if opts.Timeout > 0 && !time.Now().Before(deadline) {
			log.WithField("timeout", opts.Timeout.String()).Error("Login timed out")
			return control.Failed, ErrLoginTimeout
		}
		if signals.Sleep(ctx, opts.PollInterval) == control.Cancelled {
			log.Warn("Login cancelled")
			return control.Cancelled, nil
		}
	}
}

// CheckSession loads the listing page and reports an auth error when the site
// bounced the browser to the login page instead.
func CheckSession(ctx context.Context, page Page, setupsURL, loginURL string, log logger.Logger) error {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := page.Navigate(ctx, setupsURL); err != nil {
		return errs.Network("failed to open setups page", err)
	}
	current, err := page.CurrentURL(ctx)
	if err != nil {
		return errs.Network("failed to read the current address", err)
	}
	if loginURL != "" && strings.HasPrefix(current, loginURL) {
		log.WithField("url", current).Warn("Session is not signed in")
		return errs.New(errs.ErrorTypeAuth, "not signed in, run `setupsync login` first")
	}
	return nil
}

// MaskCookies renders cookies as name=value pairs with the values masked, for
// display after a login.
func MaskCookies(cookies []*http.Cookie) []string {
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.Name+"="+maskString(c.Value))
	}
	return out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
