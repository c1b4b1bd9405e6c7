package main

import (
	"context"
	"time"

	"setupsync/pkg/browser"
	"setupsync/pkg/config"
	"setupsync/pkg/logger"
	"setupsync/pkg/retry"
)

// launchAttempts covers a profile still locked by a Chrome that is shutting down.
const launchAttempts = 3

func launchBrowser(ctx context.Context, cfg *config.Config, downloadDir string, log logger.Logger) (*browser.Chrome, error) {
	return retry.DoWithResult(ctx, retry.Config{
		MaxAttempts: launchAttempts,
		Backoff:     &retry.ExponentialBackoff{Base: 2 * time.Second, Max: 10 * time.Second, Factor: 2, Jitter: 0.1},
		RetryIf:     func(err error) bool { return ctx.Err() == nil },
		Logger:      log,
	}, func(attempt int) (*browser.Chrome, error) {
		return browser.Launch(ctx, cfg.Browser, cfg.Site.UserAgent, downloadDir, log)
	})
}
