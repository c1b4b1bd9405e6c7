package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"setupsync/pkg/config"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/retry"
	"setupsync/pkg/storage"
)

// ArchiveExtension is what the browser saves a finished download as.
const ArchiveExtension = ".zip"

// Clicker is the part of a browser session the click-through needs.
// Expressions are XPath.
type Clicker interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, xpath string, timeout time.Duration) error
	Present(ctx context.Context, xpath string, timeout time.Duration) (bool, error)
}

var errItemCancelled = errors.New("item cancelled")

// ClickThrough triggers the download from the setup page and waits for the
// browser to save a new archive into the download directory.
type ClickThrough struct {
	page      Clicker
	store     *storage.Manager
	dir       string
	selectors config.SelectorConfig
	opts      config.DeliveryConfig
	signals   *control.Signals
	logger    logger.Logger
}

// NewClickThrough creates a click-through deliverer watching dir.
func NewClickThrough(page Clicker, store *storage.Manager, dir string, selectors config.SelectorConfig, opts config.DeliveryConfig, signals *control.Signals, log logger.Logger) *ClickThrough {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if signals == nil {
		signals = control.NewSignals()
	}
	if opts.ClickAttempts < 1 {
		opts.ClickAttempts = 1
	}
	return &ClickThrough{
		page:      page,
		store:     store,
		dir:       dir,
		selectors: selectors,
		opts:      opts,
		signals:   signals,
		logger:    log,
	}
}

// Deliver clicks through the setup page and returns the archive that
// appeared. Only one delivery may be in flight per download directory.
func (c *ClickThrough) Deliver(ctx context.Context, link string) Delivery {
	log := c.logger.WithField("link", link)

	before, err := c.store.Snapshot(c.dir, ArchiveExtension)
	if err != nil {
		log.WithError(err).Error("Could not list the download directory")
		return failed(errs.Delivery("failed to list download directory", err))
	}

	if err := c.trigger(ctx, link, log); err != nil {
		if errors.Is(err, errItemCancelled) || errors.Is(err, retry.ErrCancelled) || ctx.Err() != nil {
			return c.cancel(log)
		}
		log.WithError(err).Error("Could not trigger download")
		return failed(err)
	}

	return c.await(ctx, before, link, log)
}

func (c *ClickThrough) trigger(ctx context.Context, link string, log logger.Logger) error {
	cfg := retry.Config{
		MaxAttempts: c.opts.ClickAttempts,
		Backoff:     retry.ConstantBackoff{Delay: c.opts.RetryWait},
		RetryIf: func(err error) bool {
			return !errors.Is(err, errItemCancelled) && ctx.Err() == nil
		},
		OnRetry: func(attempt int, err error, _ time.Duration) {
			log.WithError(err).WarnWithFields("Retrying download", map[string]interface{}{
				"attempt":      attempt + 1,
				"max_attempts": c.opts.ClickAttempts,
			})
		},
		Wait: func(ctx context.Context, d time.Duration) error {
			if c.signals.SleepItem(ctx, d) == control.Cancelled {
				return errItemCancelled
			}
			return nil
		},
	}

	return retry.Do(ctx, cfg, func(attempt int) error {
		if c.signals.ItemCancelled() {
			return errItemCancelled
		}
		return c.clickOnce(ctx, link, log)
	})
}

func (c *ClickThrough) clickOnce(ctx context.Context, link string, log logger.Logger) error {
	if err := c.page.Navigate(ctx, link); err != nil {
		return errs.Delivery("failed to open setup page", err)
	}
	if err := c.page.Click(ctx, c.selectors.DownloadButton, c.opts.ClickTimeout); err != nil {
		return errs.Delivery("download button not clickable", err)
	}

	if c.selectors.ManualDownloadButton != "" {
		if err := c.page.Click(ctx, c.selectors.ManualDownloadButton, c.opts.ClickTimeout); err != nil {
			log.Debug("No manual download button, assuming direct download")
		}
	}
	if c.signals.ItemCancelled() {
		return errItemCancelled
	}

	if c.selectors.DownloadErrorNotice != "" {
		shown, err := c.page.Present(ctx, c.selectors.DownloadErrorNotice, c.opts.ErrorWait)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Debug("Could not check for a download error notice")
		}
		if shown {
			return errs.Delivery("site reported an issue downloading this setup", nil)
		}
	}
	return nil
}

// await polls the download directory for an archive not in before.
func (c *ClickThrough) await(ctx context.Context, before map[string]struct{}, link string, log logger.Logger) Delivery {
	deadline := time.Now().Add(c.opts.FileWait)
	for {
		if c.signals.ItemCancelled() {
			return c.cancel(log)
		}

		path, err := c.store.NewestSince(c.dir, ArchiveExtension, before)
		if err != nil {
			log.WithError(err).Error("Could not list the download directory")
			return failed(errs.Delivery("failed to list download directory", err))
		}
		if path != "" {
			return c.settle(ctx, path, link, log)
		}

		if !time.Now().Before(deadline) {
			log.WithField("dir", c.dir).Error("Download did not appear in time")
			return failed(errs.Delivery(fmt.Sprintf("download did not appear after %s", c.opts.FileWait), nil))
		}
		if c.signals.SleepItem(ctx, c.opts.PollInterval) == control.Cancelled {
			return c.cancel(log)
		}
	}
}

// settle waits for the browser to finish writing path.
func (c *ClickThrough) settle(ctx context.Context, path, link string, log logger.Logger) Delivery {
	if c.signals.SleepItem(ctx, c.opts.SettleWait) == control.Cancelled {
		if err := c.store.Remove(path); err != nil {
			log.WithError(err).Warn("Could not remove cancelled download")
		}
		return c.cancel(log)
	}

	info, err := c.store.Fs().Stat(path)
	if err != nil {
		log.WithError(err).Error("Downloaded archive disappeared")
		return failed(errs.Delivery("downloaded archive disappeared", err))
	}
	log.InfoWithFields("Identified new download", map[string]interface{}{
		"archive": filepath.Base(path),
		"bytes":   info.Size(),
	})
	return delivered(models.DeliveredArchive{Path: path, Link: link, Size: info.Size()})
}

func (c *ClickThrough) cancel(log logger.Logger) Delivery {
	log.WithField("reason", cancelReason(c.signals)).Warn("Skipping download")
	return cancelled()
}
