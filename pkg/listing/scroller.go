package listing

import (
	"context"

	"setupsync/pkg/config"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

// Scroller forces a lazy-loaded listing to render completely by scrolling to
// the bottom until inactive-section headers or a stable page height say there
// is nothing left to load.
type Scroller struct {
	page      Page
	selectors config.SelectorConfig
	opts      config.ScrollConfig
	signals   *control.Signals
	diag      *Diagnostics
	logger    logger.Logger
}

// NewScroller creates a Scroller. diag may be nil.
func NewScroller(page Page, selectors config.SelectorConfig, opts config.ScrollConfig, signals *control.Signals, diag *Diagnostics, log logger.Logger) *Scroller {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if signals == nil {
		signals = control.NewSignals()
	}
	if opts.ExtraInactiveSections < 1 {
		opts.ExtraInactiveSections = 2
	}
	return &Scroller{page: page, selectors: selectors, opts: opts, signals: signals, diag: diag, logger: log}
}

// Render loads url and scrolls it until fully rendered. A Failed outcome
// carries a structural error; Cancelled means stop was requested.
func (s *Scroller) Render(ctx context.Context, url string) (control.Outcome, error) {
	log := s.logger.WithField("url", url)

	if err := s.page.Navigate(ctx, url); err != nil {
		if s.cancelled(ctx) {
			return control.Cancelled, nil
		}
		s.diag.Capture(ctx, s.page, FileRunError)
		return control.Failed, errs.Structural("failed to load the setups page", err)
	}

	log.Info("Waiting for the active setups section...")
	if err := s.page.WaitPresent(ctx, s.selectors.ActiveMarker, s.opts.ActiveWait); err != nil {
		if s.cancelled(ctx) {
			return control.Cancelled, nil
		}
		log.WithError(err).Error("Timed out waiting for the active section to appear")
		s.diag.Capture(ctx, s.page, FileNoActiveSection)
		return control.Failed, errs.Structural("active section not found", err)
	}
	log.Info("Located the active section, scrolling to load all setups")

	outcome, err := s.scroll(ctx, log)
	if err != nil {
		if s.cancelled(ctx) {
			return control.Cancelled, nil
		}
		s.diag.Capture(ctx, s.page, FileRunError)
		return control.Failed, errs.Structural("scrolling the setups page failed", err)
	}
	return outcome, nil
}

func (s *Scroller) cancelled(ctx context.Context) bool {
	return s.signals.Stopped() || ctx.Err() != nil
}

func (s *Scroller) scroll(ctx context.Context, log logger.Logger) (control.Outcome, error) {
	lastHeight, err := s.page.ScrollHeight(ctx)
	if err != nil {
		return control.Failed, err
	}

	firstSeen := false
	firstCount := 0
	scrolls := 0

	for {
		if s.signals.Stopped() {
			return control.Cancelled, nil
		}
		if s.opts.MaxScrolls > 0 && scrolls >= s.opts.MaxScrolls {
			log.WarnWithFields("Scroll limit reached, stopping", map[string]interface{}{"scrolls": scrolls})
			break
		}

		if _, err := s.page.ScrollToBottom(ctx); err != nil {
			return control.Failed, err
		}
		scrolls++
		if s.signals.Sleep(ctx, s.opts.Settle) == control.Cancelled {
			return control.Cancelled, nil
		}

		inactive, err := s.page.CountElements(ctx, s.selectors.InactiveHeader, s.selectors.InactiveText)
		if err != nil {
			return control.Failed, err
		}

		if inactive > 0 && !firstSeen {
			firstSeen = true
			firstCount = inactive
			log.Info("First inactive section header is visible, waiting a grace period for late active setups")
			if s.signals.Sleep(ctx, s.opts.Grace) == control.Cancelled {
				return control.Cancelled, nil
			}

			height, err := s.page.ScrollHeight(ctx)
			if err != nil {
				return control.Failed, err
			}
			if height <= lastHeight {
				log.Info("No additional content after the grace period, stopping scroll")
				break
			}
			log.Info("Additional content after the grace period, continuing scroll")
			lastHeight = height
			continue
		}

		if firstSeen && inactive-firstCount >= s.opts.ExtraInactiveSections {
			log.InfoWithFields("Additional inactive sections detected, stopping scroll", map[string]interface{}{
				"inactive": inactive,
			})
			break
		}

		height, err := s.page.ScrollHeight(ctx)
		if err != nil {
			return control.Failed, err
		}
		if height == lastHeight {
			log.Debug("Page height unchanged, reached the end of the page")
			break
		}
		lastHeight = height
	}

	log.InfoWithFields("Finished scrolling", map[string]interface{}{"scrolls": scrolls})
	return control.Ok, nil
}
