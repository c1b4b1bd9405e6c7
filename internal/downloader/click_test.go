package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"setupsync/pkg/config"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

// fakeClicker simulates the setup page. A successful click on the download
// button drops file into dir, like the browser would.
type fakeClicker struct {
	mu sync.Mutex

	dir  string
	file string

	clickErr  error
	noticeFor int // attempts that show the error notice

	navigations int
	clicks      []string
}

func (f *fakeClicker) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations++
	return nil
}

func (f *fakeClicker) Click(ctx context.Context, xpath string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, xpath)
	if xpath != testSelectors().DownloadButton {
		return errors.New("not found")
	}
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.file != "" && f.navigations > f.noticeFor {
		return os.WriteFile(filepath.Join(f.dir, f.file), []byte("PK"), 0644)
	}
	return nil
}

func (f *fakeClicker) Present(ctx context.Context, xpath string, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navigations <= f.noticeFor, nil
}

func testSelectors() config.SelectorConfig {
	return config.DefaultConfig().Selectors
}

func testDeliveryConfig() config.DeliveryConfig {
	return config.DeliveryConfig{
		Mode:          config.ModeClick,
		ClickAttempts: 2,
		ClickTimeout:  time.Millisecond,
		RetryWait:     time.Millisecond,
		ErrorWait:     time.Millisecond,
		FileWait:      time.Second,
		PollInterval:  5 * time.Millisecond,
		SettleWait:    time.Millisecond,
	}
}

func TestClickThroughDelivers(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "older.zip"), []byte("old"), 0644))

	page := &fakeClicker{dir: dir, file: "Setup Pack.zip"}
	c := NewClickThrough(page, store, dir, testSelectors(), testDeliveryConfig(), nil, logger.NewNopLogger())

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	require.Equal(t, control.Ok, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, filepath.Join(dir, "Setup Pack.zip"), res.Archive.Path)
	assert.Equal(t, "https://example.test/setups/7", res.Archive.Link)
	assert.Equal(t, int64(2), res.Archive.Size)
	assert.Equal(t, 1, page.navigations)
	assert.Equal(t, []string{testSelectors().DownloadButton, testSelectors().ManualDownloadButton}, page.clicks)
}

func TestClickThroughRetriesAfterErrorNotice(t *testing.T) {
	store, dir := newStore(t)
	page := &fakeClicker{dir: dir, file: "setup.zip", noticeFor: 1}
	log := logger.NewTestLogger()
	c := NewClickThrough(page, store, dir, testSelectors(), testDeliveryConfig(), nil, log)

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	require.Equal(t, control.Ok, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, 2, page.navigations)
	assert.True(t, log.HasMessage("Retrying download"))
}

func TestClickThroughGivesUpAfterAttempts(t *testing.T) {
	store, dir := newStore(t)
	page := &fakeClicker{dir: dir, file: "setup.zip", noticeFor: 5}
	c := NewClickThrough(page, store, dir, testSelectors(), testDeliveryConfig(), nil, nil)

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Failed, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeDelivery))
	assert.Contains(t, res.Err.Error(), "site reported an issue")
	assert.Equal(t, 2, page.navigations)
}

func TestClickThroughButtonMissing(t *testing.T) {
	store, dir := newStore(t)
	page := &fakeClicker{dir: dir, clickErr: context.DeadlineExceeded}
	c := NewClickThrough(page, store, dir, testSelectors(), testDeliveryConfig(), nil, nil)

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Failed, res.Outcome)
	assert.Contains(t, res.Err.Error(), "download button not clickable")
	assert.Equal(t, 2, page.navigations)
}

func TestClickThroughTimesOut(t *testing.T) {
	store, dir := newStore(t)
	page := &fakeClicker{dir: dir}
	opts := testDeliveryConfig()
	opts.FileWait = 30 * time.Millisecond
	c := NewClickThrough(page, store, dir, testSelectors(), opts, nil, nil)

	start := time.Now()
	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Failed, res.Outcome)
	assert.Contains(t, res.Err.Error(), "download did not appear")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClickThroughSkipWhileWaiting(t *testing.T) {
	store, dir := newStore(t)
	signals := control.NewSignals()
	page := &fakeClicker{dir: dir}
	opts := testDeliveryConfig()
	opts.FileWait = time.Minute
	c := NewClickThrough(page, store, dir, testSelectors(), opts, signals, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		signals.Skip()
	}()

	start := time.Now()
	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Cancelled, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestClickThroughStopBeforeStart(t *testing.T) {
	store, dir := newStore(t)
	signals := control.NewSignals()
	signals.Stop()
	page := &fakeClicker{dir: dir, file: "setup.zip"}
	c := NewClickThrough(page, store, dir, testSelectors(), testDeliveryConfig(), signals, nil)

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Cancelled, res.Outcome)
	assert.Equal(t, 0, page.navigations)
}

func TestClickThroughCancelledSettleRemovesFile(t *testing.T) {
	store, dir := newStore(t)
	signals := control.NewSignals()
	page := &fakeClicker{dir: dir, file: "setup.zip"}
	opts := testDeliveryConfig()
	opts.SettleWait = time.Minute
	c := NewClickThrough(page, store, dir, testSelectors(), opts, signals, nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		signals.Skip()
	}()

	res := c.Deliver(context.Background(), "https://example.test/setups/7")
	assert.Equal(t, control.Cancelled, res.Outcome)
	assert.Empty(t, dirEntries(t, dir))
}
