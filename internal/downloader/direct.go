package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/site"
	"setupsync/pkg/storage"
)

// DefaultChunkSize is used when no chunk size is configured.
const DefaultChunkSize = 32 * 1024

// CookieSource exports the authenticated session's cookies for a URL.
type CookieSource interface {
	Cookies(ctx context.Context, url string) ([]*http.Cookie, error)
}

// Transport opens an authenticated GET and returns a successful response.
type Transport interface {
	Open(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error)
}

// Direct streams archives from the site's download endpoint.
type Direct struct {
	cookies   CookieSource
	client    Transport
	store     *storage.Manager
	dir       string
	chunkSize int
	signals   *control.Signals
	logger    logger.Logger
}

// NewDirect creates a direct-transfer deliverer writing archives into dir.
func NewDirect(cookies CookieSource, client Transport, store *storage.Manager, dir string, chunkSize int, signals *control.Signals, log logger.Logger) *Direct {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if signals == nil {
		signals = control.NewSignals()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Direct{
		cookies:   cookies,
		client:    client,
		store:     store,
		dir:       dir,
		chunkSize: chunkSize,
		signals:   signals,
		logger:    log,
	}
}

// Deliver downloads the archive for link into a temporary file. The file is
// removed on every path except success. Failures are not retried.
func (d *Direct) Deliver(ctx context.Context, link string) Delivery {
	log := d.logger.WithField("link", link)

	endpoint, err := site.DownloadURL(link)
	if err != nil {
		log.WithError(err).Error("Could not derive download address")
		return failed(errs.Delivery("invalid setup link", err))
	}
	log = log.WithField("url", endpoint)

	cookies, err := d.cookies.Cookies(ctx, endpoint)
	if err != nil {
		if d.cancelled(ctx) {
			return d.cancel(log)
		}
		log.WithError(err).Error("Could not export session cookies")
		return failed(errs.Delivery("failed to read session cookies", err))
	}
	if d.signals.ItemCancelled() {
		return d.cancel(log)
	}

	log.Debug("Downloading setup archive")
	resp, err := d.client.Open(ctx, endpoint, cookies)
	if err != nil {
		if d.cancelled(ctx) {
			return d.cancel(log)
		}
		log.WithError(err).Error("Download request failed")
		return failed(err)
	}
	defer resp.Body.Close()

	tmp, err := d.store.CreateTemp(d.dir, "setupsync-*.zip")
	if err != nil {
		log.WithError(err).Error("Could not create temporary archive")
		return failed(errs.Delivery("failed to create temporary file", err))
	}
	path := tmp.Name()

	keep := false
	defer func() {
		if keep {
			return
		}
		tmp.Close()
		if err := d.store.Remove(path); err != nil {
			log.WithError(err).Warn("Could not remove partial archive")
		}
	}()

	size, outcome, err := d.copy(ctx, tmp, resp.Body)
	switch outcome {
	case control.Cancelled:
		return d.cancel(log)
	case control.Failed:
		log.WithError(err).Error("Download interrupted")
		return failed(errs.Delivery("transfer failed", err))
	}

	if err := tmp.Close(); err != nil {
		log.WithError(err).Error("Could not finish writing archive")
		return failed(errs.Delivery("failed to close archive", err))
	}
	keep = true

	log.InfoWithFields("Archive downloaded", map[string]interface{}{
		"archive": filepath.Base(path),
		"bytes":   size,
	})
	return delivered(models.DeliveredArchive{Path: path, Link: link, Size: size})
}

// copy streams body into w, checking the flags before every chunk is written.
func (d *Direct) copy(ctx context.Context, w io.Writer, body io.Reader) (int64, control.Outcome, error) {
	buf := make([]byte, d.chunkSize)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if d.signals.ItemCancelled() {
				return written, control.Cancelled, nil
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return written, control.Failed, werr
			}
			written += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			return written, control.Ok, nil
		}
		if rerr != nil {
			if d.cancelled(ctx) {
				return written, control.Cancelled, nil
			}
			return written, control.Failed, rerr
		}
	}
}

func (d *Direct) cancelled(ctx context.Context) bool {
	return d.signals.ItemCancelled() || ctx.Err() != nil
}

func (d *Direct) cancel(log logger.Logger) Delivery {
	log.WithField("reason", cancelReason(d.signals)).Warn("Download cancelled")
	return cancelled()
}
