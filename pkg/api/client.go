package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/statesync/errors"
	"github.com/sirupsen/logrus"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client implements Caller over the server's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call performs req and returns the response body. Transport failures,
// non-2xx statuses and undecodable bodies are all errors.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Upload != nil:
		body = newProgressReader(req.Upload.Reader, req.Upload.Size, req.OnProgress)
		contentType = "application/octet-stream"
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Upload != nil && req.Upload.Size > 0 {
		httpReq.ContentLength = req.Upload.Size
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("Remote call finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.RemoteCallStatus(req.Kind.String(), resp.StatusCode, truncate(string(data), maxErrorBody))
	}

	if len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
		return nil, fmt.Errorf("failed to decode response from %s %s: invalid JSON", req.Method, req.Path)
	}

	return &Response{Status: resp.StatusCode, Body: json.RawMessage(data)}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Caller = (*Client)(nil)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// progressReader reports the fraction of bytes read so far.
type progressReader struct {
	r          io.Reader
	size       int64
	read       int64
	onProgress func(float64)
	mu         sync.Mutex
}

func newProgressReader(r io.Reader, size int64, onProgress func(float64)) io.Reader {
	if onProgress == nil || size <= 0 {
		return r
	}
	return &progressReader{r: r, size: size, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		fraction := float64(p.read) / float64(p.size)
		p.mu.Unlock()
		if fraction > 1 {
			fraction = 1
		}
		p.onProgress(fraction)
	}
	return n, err
}
