package listing

import (
	"context"
	"time"
)

// fakePage replays scripted heights and inactive-header counts.
type fakePage struct {
	url  string
	html string

	navErr  error
	waitErr error

	heights     []int64
	heightCalls int
	counts      []int
	countCalls  int
	scrolls     int

	onScroll func(n int)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.url = url
	return nil
}

func (p *fakePage) CurrentURL(ctx context.Context) (string, error) {
	return p.url, nil
}

func (p *fakePage) WaitPresent(ctx context.Context, selector string, timeout time.Duration) error {
	return p.waitErr
}

func (p *fakePage) ScrollToBottom(ctx context.Context) (int64, error) {
	p.scrolls++
	if p.onScroll != nil {
		p.onScroll(p.scrolls)
	}
	return 0, nil
}

func (p *fakePage) ScrollHeight(ctx context.Context) (int64, error) {
	h := p.heights[min(p.heightCalls, len(p.heights)-1)]
	p.heightCalls++
	return h, nil
}

func (p *fakePage) CountElements(ctx context.Context, selector, text string) (int, error) {
	if len(p.counts) == 0 {
		return 0, nil
	}
	n := p.counts[min(p.countCalls, len(p.counts)-1)]
	p.countCalls++
	return n, nil
}

func (p *fakePage) PageHTML(ctx context.Context) (string, error) {
	return p.html, nil
}
