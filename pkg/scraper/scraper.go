// Package scraper drives one sync run: render the listing, extract the
// eligible links, then deliver and install each archive in order.
//
// A run never aborts because of a single item. Delivery and organize failures
// are recorded against the link and the loop moves on; only a structural
// failure of the listing page or a stop request ends the run early.
//
// Usage:
//
//	s := scraper.New(scraper.Deps{
//	    Page:      chrome,
//	    Renderer:  listing.NewScroller(chrome, cfg.Selectors, cfg.Scroll, signals, diag, log),
//	    Extractor: listing.NewExtractor(cfg.Selectors, diag, log),
//	    Deliverer: downloader.NewDirect(chrome, client, store, dir, 0, signals, log),
//	    Organizer: organizer.New(store, opts, log),
//	}, scraper.Options{SetupsURL: cfg.Site.SetupsURL(), ItemDelay: time.Second})
//	result := s.Run(ctx)
package scraper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"setupsync/internal/downloader"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/listing"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/progress"
)

// ScanningLabel is shown while the listing is rendered and parsed.
const ScanningLabel = "Scanning for setups..."

// Failure stages.
const (
	StageDelivery = "delivery"
	StageOrganize = "organize"
)

// Renderer makes the listing page fully loaded.
type Renderer interface {
	Render(ctx context.Context, url string) (control.Outcome, error)
}

// Extractor returns the eligible links of the rendered page.
type Extractor interface {
	Collect(ctx context.Context, page listing.Page) ([]models.ListingItem, error)
}

// Organizer installs a delivered archive.
type Organizer interface {
	Organize(archive models.DeliveredArchive) (*models.ProcessedItem, error)
}

// Deps are the collaborators of a run. Signals, Reporter and Logger may be nil.
type Deps struct {
	Page      listing.Page
	Renderer  Renderer
	Extractor Extractor
	Deliverer downloader.Deliverer
	Organizer Organizer
	Signals   *control.Signals
	Reporter  *progress.Reporter
	Logger    logger.Logger
}

// Options tune a run.
type Options struct {
	SetupsURL string
	ItemDelay time.Duration
}

// Scraper orchestrates a sync run
type Scraper struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a Scraper.
func New(deps Deps, opts Options) *Scraper {
	if deps.Signals == nil {
		deps.Signals = control.NewSignals()
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.NewReporter(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	return &Scraper{deps: deps, opts: opts, now: time.Now}
}

// Run performs one sync. The result is always returned; Error is set when
// the listing could not be read.
func (s *Scraper) Run(ctx context.Context) models.RunResult {
	result := models.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Processed: []models.ProcessedItem{},
		Failed:    []models.Failure{},
	}
	log := s.deps.Logger.WithField("run_id", result.RunID)

	log.WithField("url", s.opts.SetupsURL).Info("Starting setup sync")
	s.deps.Reporter.Indeterminate(ScanningLabel)

	items, ok := s.discover(ctx, &result, log)
	if !ok {
		s.deps.Reporter.Start(0)
		result.FinishedAt = s.now()
		return result
	}

	result.Found = len(items)
	s.deps.Reporter.Start(len(items))
	if len(items) == 0 {
		log.Warn("No eligible setups found")
		result.FinishedAt = s.now()
		return result
	}
	log.WithField("found", len(items)).Info("Found eligible setups")

	for i, item := range items {
		s.deps.Signals.ResetSkip()
		if s.stopped(ctx) {
			log.Warn("Stop requested, ending run")
			result.Stopped = true
			break
		}

		itemLog := log.WithFields(map[string]interface{}{
			"link":  item.Link,
			"index": i + 1,
			"total": len(items),
		})
		s.process(ctx, item, &result, itemLog)
		s.deps.Reporter.Advance(i+1, progress.Counts{
			Installed: len(result.Processed),
			Failed:    len(result.Failed),
		})

		if i < len(items)-1 && s.deps.Signals.Sleep(ctx, s.opts.ItemDelay) == control.Cancelled {
			log.Warn("Stop requested, ending run")
			result.Stopped = true
			break
		}
	}
	// a stop that lands while the last item is in flight has no later
	// checkpoint in the loop
	if !result.Stopped && s.stopped(ctx) {
		log.Warn("Stop requested, ending run")
		result.Stopped = true
	}

	s.summarize(&result, log)
	result.FinishedAt = s.now()
	return result
}

// discover renders the listing and extracts its links. It returns false when
// the run cannot continue.
func (s *Scraper) discover(ctx context.Context, result *models.RunResult, log logger.Logger) ([]models.ListingItem, bool) {
	outcome, err := s.deps.Renderer.Render(ctx, s.opts.SetupsURL)
	switch outcome {
	case control.Cancelled:
		log.Warn("Stopped while loading the setups page")
		result.Stopped = true
		return nil, false
	case control.Failed:
		log.WithError(err).Error("Could not load the setups page")
		result.Error = errorText(err, "failed to load the setups page")
		return nil, false
	}

	items, err := s.deps.Extractor.Collect(ctx, s.deps.Page)
	if err != nil {
		log.WithError(err).Error("Could not extract setup links")
		result.Error = errorText(err, "failed to extract setup links")
		return nil, false
	}
	return items, true
}

func (s *Scraper) process(ctx context.Context, item models.ListingItem, result *models.RunResult, log logger.Logger) {
	log.Debug("Processing setup")

	delivery := s.deps.Deliverer.Deliver(ctx, item.Link)
	switch delivery.Outcome {
	case control.Cancelled:
		reason := "skipped"
		if s.stopped(ctx) {
			reason = "stopped"
		}
		result.Failed = append(result.Failed, models.Failure{
			Link:    item.Link,
			Stage:   StageDelivery,
			Type:    string(errs.ErrorTypeCancelled),
			Message: reason,
			Skipped: true,
		})
		return
	case control.Failed:
		log.WithError(delivery.Err).Warn("Setup was not delivered")
		result.Failed = append(result.Failed, failure(item.Link, StageDelivery, delivery.Err))
		return
	}

	processed, err := s.deps.Organizer.Organize(delivery.Archive)
	if err != nil {
		log.WithError(err).Warn("Setup was not installed")
		result.Failed = append(result.Failed, failure(item.Link, StageOrganize, err))
		return
	}
	processed.Link = item.Link
	result.Processed = append(result.Processed, *processed)
}

func (s *Scraper) summarize(result *models.RunResult, log logger.Logger) {
	if n := len(result.Failed); n > 0 {
		log.WithField("failed", n).Warn("Some setups failed")
		for _, f := range result.Failed {
			log.WithFields(map[string]interface{}{
				"link":  f.Link,
				"stage": f.Stage,
				"type":  f.Type,
			}).Warn("Failed setup")
		}
	}
	log.InfoWithFields("Sync finished", map[string]interface{}{
		"found":      result.Found,
		"downloaded": len(result.Processed),
		"failed":     len(result.Failed),
		"stopped":    result.Stopped,
	})
}

func (s *Scraper) stopped(ctx context.Context) bool {
	return s.deps.Signals.Stopped() || ctx.Err() != nil
}

func failure(link, stage string, err error) models.Failure {
	return models.Failure{
		Link:    link,
		Stage:   stage,
		Type:    string(errs.TypeOf(err)),
		Message: errorText(err, stage+" failed"),
	}
}

func errorText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
