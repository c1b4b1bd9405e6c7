package listing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"setupsync/pkg/logger"
)

// Diagnostic snapshot file names.
const (
	FileNoActiveSection = "debug_no_active_section.html"
	FileExtractError    = "debug_extract_error.html"
	FileRunError        = "debug_run_error.html"
)

// Diagnostics saves rendered pages for offline inspection when the listing
// does not have the expected shape.
type Diagnostics struct {
	fs     afero.Fs
	dir    string
	logger logger.Logger
}

// NewDiagnostics writes snapshots into dir on fs.
func NewDiagnostics(fs afero.Fs, dir string, log logger.Logger) *Diagnostics {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Diagnostics{fs: fs, dir: dir, logger: log}
}

// Save writes content to name and returns the full path.
func (d *Diagnostics) Save(name, content string) (string, error) {
	if err := d.fs.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	path := filepath.Join(d.dir, name)
	if err := afero.WriteFile(d.fs, path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	d.logger.InfoWithFields("Saved page HTML for debugging", map[string]interface{}{"file": path})
	return path, nil
}

// Capture saves the page's current document. Failures are logged, never
// returned, since a snapshot is only ever taken on the way out of an error.
func (d *Diagnostics) Capture(ctx context.Context, page Page, name string) {
	if d == nil {
		return
	}
	html, err := page.PageHTML(ctx)
	if err != nil {
		d.logger.WithError(err).Error("Could not read page HTML for debugging")
		return
	}
	if _, err := d.Save(name, html); err != nil {
		d.logger.WithError(err).Error("Could not save debug HTML")
	}
}
