package listing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"setupsync/pkg/config"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
)

// Extractor collects setup links from the active sections of a rendered
// listing, skipping the paid bundle section.
type Extractor struct {
	selectors config.SelectorConfig
	diag      *Diagnostics
	logger    logger.Logger
}

// NewExtractor creates an Extractor. diag may be nil.
func NewExtractor(selectors config.SelectorConfig, diag *Diagnostics, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{selectors: selectors, diag: diag, logger: log}
}

// Collect reads the page's current document and extracts its links.
func (e *Extractor) Collect(ctx context.Context, page Page) ([]models.ListingItem, error) {
	doc, err := page.PageHTML(ctx)
	if err != nil {
		return nil, errs.Structural("failed to read the rendered listing", err)
	}
	base, err := page.CurrentURL(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Could not read page address, links are kept as written")
		base = ""
	}
	return e.Extract(doc, base)
}

// Extract returns every link inside the active sections of doc in document
// order, resolved against base. Any problem with the page structure aborts
// the whole extraction: the document is saved and no links are returned.
func (e *Extractor) Extract(doc, base string) ([]models.ListingItem, error) {
	items, err := e.extract(doc, base)
	if err != nil {
		e.logger.WithError(err).Error("Could not process the active sections, saved page HTML for debugging")
		if e.diag != nil {
			if _, saveErr := e.diag.Save(FileExtractError, doc); saveErr != nil {
				e.logger.WithError(saveErr).Error("Could not save debug HTML")
			}
		}
		return nil, errs.Structural("failed to extract setup links", err)
	}
	return items, nil
}

func (e *Extractor) extract(doc, base string) ([]models.ListingItem, error) {
	active, err := cascadia.Compile(e.selectors.ActiveMarker)
	if err != nil {
		return nil, fmt.Errorf("invalid active marker selector %q: %w", e.selectors.ActiveMarker, err)
	}

	var baseURL *url.URL
	if base != "" {
		if baseURL, err = url.Parse(base); err != nil {
			return nil, fmt.Errorf("invalid page address %q: %w", base, err)
		}
	}

	page, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	markers := page.FindMatcher(active)
	if markers.Length() == 0 {
		e.logger.Warn("No active sections found on the page")
		return nil, nil
	}
	e.logger.InfoWithFields("Found active sections, collecting links from each", map[string]interface{}{
		"sections": markers.Length(),
	})

	var items []models.ListingItem
	for i := range markers.Nodes {
		// the header is the nearest div above the marker, never the marker itself
		header := markers.Eq(i).Parent().Closest("div")
		if header.Length() == 0 {
			return nil, fmt.Errorf("active marker %d has no enclosing block", i+1)
		}

		label := strings.TrimSpace(header.Text())
		if e.selectors.PaidSectionText != "" && strings.Contains(label, e.selectors.PaidSectionText) {
			e.logger.InfoWithFields("Skipping paid bundle section", map[string]interface{}{"section": label})
			continue
		}

		container := header.NextAllFiltered("div").First()
		if container.Length() == 0 {
			return nil, fmt.Errorf("active section %q has no link container", label)
		}

		for _, href := range links(container) {
			link, err := resolve(baseURL, href)
			if err != nil {
				e.logger.WithError(err).Debug("Ignoring unresolvable link")
				continue
			}
			items = append(items, models.ListingItem{Link: link})
		}
	}
	return items, nil
}

// links returns the non-empty href of every anchor in sel in document order.
func links(sel *goquery.Selection) []string {
	var out []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href := strings.TrimSpace(a.AttrOr("href", "")); href != "" {
			out = append(out, href)
		}
	})
	return out
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
