// Package listing renders the lazy-loaded setups page and collects the links
// of every eligible setup on it.
package listing

import (
	"context"
	"time"
)

// Page is the part of a browser session the listing needs. Selectors are CSS.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	ScrollToBottom(ctx context.Context) (int64, error)
	ScrollHeight(ctx context.Context) (int64, error)
	CountElements(ctx context.Context, selector, text string) (int, error)
	PageHTML(ctx context.Context) (string, error)
}
