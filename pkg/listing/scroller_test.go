package listing

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"setupsync/pkg/config"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

func testScrollConfig() config.ScrollConfig {
	return config.ScrollConfig{
		ActiveWait:            time.Second,
		Settle:                time.Millisecond,
		Grace:                 time.Millisecond,
		ExtraInactiveSections: 2,
	}
}

func newTestScroller(page Page, opts config.ScrollConfig, signals *control.Signals) (*Scroller, afero.Fs) {
	fs := afero.NewMemMapFs()
	diag := NewDiagnostics(fs, "/diag", nil)
	return NewScroller(page, config.DefaultConfig().Selectors, opts, signals, diag, logger.NewNopLogger()), fs
}

func TestScrollStopsWhenHeightIsStable(t *testing.T) {
	page := &fakePage{heights: []int64{100, 200, 200}}
	s, _ := newTestScroller(page, testScrollConfig(), nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Ok, outcome)
	assert.Equal(t, 2, page.scrolls)
	assert.Equal(t, "https://example.test/setups", page.url)
}

func TestScrollStopsAfterGraceWithoutGrowth(t *testing.T) {
	page := &fakePage{heights: []int64{100, 100}, counts: []int{1}}
	s, _ := newTestScroller(page, testScrollConfig(), nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Ok, outcome)
	assert.Equal(t, 1, page.scrolls)
}

func TestScrollStopsOnExtraInactiveSections(t *testing.T) {
	// initial, after grace (grew), after second scroll (grew) and never again
	page := &fakePage{heights: []int64{100, 150, 200}, counts: []int{1, 2, 3}}
	s, _ := newTestScroller(page, testScrollConfig(), nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Ok, outcome)
	assert.Equal(t, 3, page.scrolls)
	assert.Equal(t, 3, page.heightCalls)
}

func TestScrollThresholdIsConfigurable(t *testing.T) {
	heights := []int64{100, 150}
	for h := int64(200); h < 2000; h += 100 {
		heights = append(heights, h)
	}
	page := &fakePage{heights: heights, counts: []int{1, 2, 3, 4, 5, 6}}
	opts := testScrollConfig()
	opts.ExtraInactiveSections = 4
	s, _ := newTestScroller(page, opts, nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Ok, outcome)
	assert.Equal(t, 5, page.scrolls)
}

func TestScrollMaxScrolls(t *testing.T) {
	heights := make([]int64, 0, 50)
	for h := int64(100); len(heights) < 50; h += 100 {
		heights = append(heights, h)
	}
	page := &fakePage{heights: heights}
	opts := testScrollConfig()
	opts.MaxScrolls = 3
	s, _ := newTestScroller(page, opts, nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Ok, outcome)
	assert.Equal(t, 3, page.scrolls)
}

func TestScrollStopSignal(t *testing.T) {
	signals := control.NewSignals()
	heights := make([]int64, 0, 50)
	for h := int64(100); len(heights) < 50; h += 100 {
		heights = append(heights, h)
	}
	page := &fakePage{heights: heights, onScroll: func(n int) {
		if n == 2 {
			signals.Stop()
		}
	}}
	s, _ := newTestScroller(page, testScrollConfig(), signals)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Cancelled, outcome)
	assert.Equal(t, 2, page.scrolls)
}

func TestScrollSlowSettleStillInterruptible(t *testing.T) {
	signals := control.NewSignals()
	page := &fakePage{heights: []int64{100, 200, 300}}
	opts := testScrollConfig()
	opts.Settle = time.Minute
	s, _ := newTestScroller(page, opts, signals)

	go func() {
		time.Sleep(150 * time.Millisecond)
		signals.Stop()
	}()

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Cancelled, outcome)
	assert.Equal(t, 1, page.scrolls)
}

func TestRenderNoActiveSection(t *testing.T) {
	page := &fakePage{
		heights: []int64{100},
		waitErr: context.DeadlineExceeded,
		html:    "<html><body>empty</body></html>",
	}
	s, fs := newTestScroller(page, testScrollConfig(), nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.Error(t, err)
	assert.Equal(t, control.Failed, outcome)
	assert.True(t, errs.IsType(err, errs.ErrorTypeStructural))
	assert.Equal(t, 0, page.scrolls)

	data, err := afero.ReadFile(fs, filepath.Join("/diag", FileNoActiveSection))
	require.NoError(t, err)
	assert.Equal(t, page.html, string(data))
}

func TestRenderNavigationFailure(t *testing.T) {
	page := &fakePage{heights: []int64{100}, navErr: errors.New("net::ERR_NAME_NOT_RESOLVED"), html: "<html></html>"}
	s, fs := newTestScroller(page, testScrollConfig(), nil)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.Error(t, err)
	assert.Equal(t, control.Failed, outcome)

	exists, err := afero.Exists(fs, filepath.Join("/diag", FileRunError))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRenderWaitCancelledByStop(t *testing.T) {
	signals := control.NewSignals()
	signals.Stop()
	page := &fakePage{heights: []int64{100}, waitErr: context.Canceled}
	s, fs := newTestScroller(page, testScrollConfig(), signals)

	outcome, err := s.Render(context.Background(), "https://example.test/setups")
	require.NoError(t, err)
	assert.Equal(t, control.Cancelled, outcome)

	exists, _ := afero.Exists(fs, filepath.Join("/diag", FileNoActiveSection))
	assert.False(t, exists, "a cancelled wait is not a structural failure")
}
