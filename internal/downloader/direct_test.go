package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"setupsync/pkg/control"
	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
	"setupsync/pkg/site"
	"setupsync/pkg/storage"
)

type staticCookies struct {
	cookies []*http.Cookie
	err     error
	urls    []string
}

func (s *staticCookies) Cookies(ctx context.Context, url string) ([]*http.Cookie, error) {
	s.urls = append(s.urls, url)
	return s.cookies, s.err
}

// transportFunc adapts a function to Transport.
type transportFunc func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error)

func (f transportFunc) Open(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
	return f(ctx, url, cookies)
}

// chunkReader returns size bytes per Read forever and calls hook before each.
type chunkReader struct {
	size  int
	reads int
	hook  func(reads int)
	err   error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.reads++
	if r.hook != nil {
		r.hook(r.reads)
	}
	if r.err != nil && r.reads > 2 {
		return 0, r.err
	}
	n := min(r.size, len(p))
	for i := 0; i < n; i++ {
		p[i] = 'x'
	}
	return n, nil
}

func newStore(t *testing.T) (*storage.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewManagerWithFS(afero.NewOsFs(), dir, nil)
	require.NoError(t, err)
	return store, dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDirectDeliversArchive(t *testing.T) {
	payload := bytes.Repeat([]byte("PK"), 40000)
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if ck, err := r.Cookie("session"); err != nil || ck.Value != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	store, dir := newStore(t)
	cookies := &staticCookies{cookies: []*http.Cookie{{Name: "session", Value: "s3cret"}}}
	client := site.NewClient(5*time.Second, "", logger.NewNopLogger())
	d := NewDirect(cookies, client, store, dir, 1024, nil, logger.NewNopLogger())

	res := d.Deliver(context.Background(), server.URL+"/setups/abc")
	require.Equal(t, control.Ok, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, "/setups/download/abc", gotPath)
	assert.Equal(t, []string{server.URL + "/setups/download/abc"}, cookies.urls)
	assert.Equal(t, server.URL+"/setups/abc", res.Archive.Link)
	assert.Equal(t, int64(len(payload)), res.Archive.Size)

	data, err := os.ReadFile(res.Archive.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.True(t, strings.HasSuffix(res.Archive.Path, ".zip"))
}

func TestDirectStopMidTransferRemovesTempFile(t *testing.T) {
	for _, flag := range []string{"stop", "skip"} {
		t.Run(flag, func(t *testing.T) {
			store, dir := newStore(t)
			signals := control.NewSignals()
			body := &chunkReader{size: 512, hook: func(reads int) {
				if reads == 3 {
					if flag == "stop" {
						signals.Stop()
					} else {
						signals.Skip()
					}
				}
			}}
			transport := transportFunc(func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(body)}, nil
			})

			d := NewDirect(&staticCookies{}, transport, store, dir, 512, signals, logger.NewNopLogger())
			res := d.Deliver(context.Background(), "https://example.test/setups/1")

			assert.Equal(t, control.Cancelled, res.Outcome)
			assert.NoError(t, res.Err)
			assert.Empty(t, res.Archive.Path)
			assert.Equal(t, 3, body.reads)
			assert.Empty(t, dirEntries(t, dir), "partial archive must be removed")
		})
	}
}

func TestDirectHTTPFailureIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store, dir := newStore(t)
	log := logger.NewTestLogger()
	d := NewDirect(&staticCookies{}, site.NewClient(time.Second, "", logger.NewNopLogger()), store, dir, 0, nil, log)

	res := d.Deliver(context.Background(), server.URL+"/setups/9")
	assert.Equal(t, control.Failed, res.Outcome)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(res.Err))
	assert.Equal(t, int32(1), requests.Load())
	assert.Empty(t, dirEntries(t, dir))
	assert.True(t, log.HasMessage("Download request failed"))
}

func TestDirectReadErrorRemovesTempFile(t *testing.T) {
	store, dir := newStore(t)
	body := &chunkReader{size: 100, err: errors.New("connection reset by peer")}
	transport := transportFunc(func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(body)}, nil
	})

	d := NewDirect(&staticCookies{}, transport, store, dir, 0, nil, nil)
	res := d.Deliver(context.Background(), "https://example.test/setups/1")

	assert.Equal(t, control.Failed, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeDelivery))
	assert.Empty(t, dirEntries(t, dir))
}

func TestDirectInvalidLink(t *testing.T) {
	store, dir := newStore(t)
	called := false
	transport := transportFunc(func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
		called = true
		return nil, errors.New("unexpected")
	})

	d := NewDirect(&staticCookies{}, transport, store, dir, 0, nil, nil)
	res := d.Deliver(context.Background(), "https://example.test/dashboard")

	assert.Equal(t, control.Failed, res.Outcome)
	assert.True(t, errs.IsType(res.Err, errs.ErrorTypeDelivery))
	assert.False(t, called)
}

func TestDirectCookieFailure(t *testing.T) {
	store, dir := newStore(t)
	transport := transportFunc(func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	d := NewDirect(&staticCookies{err: errors.New("target closed")}, transport, store, dir, 0, nil, nil)
	res := d.Deliver(context.Background(), "https://example.test/setups/1")
	assert.Equal(t, control.Failed, res.Outcome)
}

func TestDirectCancelledBeforeRequest(t *testing.T) {
	store, dir := newStore(t)
	signals := control.NewSignals()
	signals.Skip()
	transport := transportFunc(func(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	d := NewDirect(&staticCookies{}, transport, store, dir, 0, signals, nil)
	res := d.Deliver(context.Background(), "https://example.test/setups/1")
	assert.Equal(t, control.Cancelled, res.Outcome)
}
