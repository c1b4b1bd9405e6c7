// Package site knows the setup site's routes and performs authenticated HTTP
// transfers using cookies exported from the browser session.
package site

import (
	"context"
	"fmt"
	"net/http"
	"time"

	errs "setupsync/pkg/errors"
	"setupsync/pkg/logger"
)

// Client performs authenticated requests against the setup site
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a client whose requests, including body reads, are bounded
// by timeout.
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	headers := map[string]string{
		"Accept":          "application/zip,application/octet-stream,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
	if userAgent != "" {
		headers["User-Agent"] = userAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		logger:     log,
	}
}

// NewClientWithHTTP wraps an existing http.Client.
func NewClientWithHTTP(hc *http.Client, log logger.Logger) *Client {
	c := NewClient(0, "", log)
	c.httpClient = hc
	return c
}

// SetHeader sets a header sent with every request, replacing any default.
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Open issues a GET for url with the given cookies and returns the response
// once its status is known to be successful. The caller closes the body.
func (c *Client) Open(ctx context.Context, url string, cookies []*http.Cookie) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL.String(),
		"cookies": len(req.Cookies()),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Network("request failed", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
		"length":   resp.ContentLength,
	})

	return resp, nil
}

// checkResponseStatus maps non-success statuses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", fields)
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "session is not authorized, run login again", Code: resp.StatusCode}
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "setup archive not found", Code: resp.StatusCode}
	default:
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			c.logger.ErrorWithFields("server error", fields)
			return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
		}
		c.logger.ErrorWithFields("unexpected response", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}
