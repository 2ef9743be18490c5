// Package catalog is the HTTP client for the appvaultd catalog
// service: version lookups, artifact downloads with progress
// reporting, and the app/asset listing endpoints used by UI callers.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/blackwell-systems/appvault/internal/version"
)

var (
	// ErrRemoteUnavailable is returned when the catalog service
	// cannot be reached or times out.
	ErrRemoteUnavailable = errors.New("catalog service unavailable")

	// ErrNotFound is returned when the server does not know the
	// requested app or file.
	ErrNotFound = errors.New("not found on catalog service")

	// ErrTransfer is returned when a download stream is interrupted
	// before the full body arrives.
	ErrTransfer = errors.New("artifact transfer failed")
)

// metadataTimeout bounds version checks and catalog listings.
// Downloads are not subject to it; they are governed by the caller's
// context instead.
const metadataTimeout = 5 * time.Second

// versionCacheTTL is how long a latest-version response is reused
// before asking the server again. A UI initializing a page of app
// cards issues one request per app; the cache keeps that from turning
// into a burst per redraw.
const versionCacheTTL = 15 * time.Second

// downloadChunkSize is the read granularity for download progress
// callbacks.
const downloadChunkSize = 32 * 1024

// ProgressFunc receives download progress. received is cumulative and
// monotonically non-decreasing; total is 0 when the server did not
// send a content length. It is never called after the download
// completes or fails.
type ProgressFunc func(received, total int64)

// AppInfo is one entry of the server's /apps listing.
type AppInfo struct {
	Name             string `json:"name"`
	ExecutablePrefix string `json:"executable_prefix"`
	Icon             string `json:"icon"`
}

// Client talks to one catalog server.
type Client struct {
	baseURL string

	// meta has a bounded timeout for small requests; stream relies
	// on the request context so large downloads are not cut off.
	meta   *http.Client
	stream *http.Client

	versions *expirable.LRU[string, version.Version]
}

// New creates a Client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		meta:     &http.Client{Timeout: metadataTimeout},
		stream:   &http.Client{},
		versions: expirable.NewLRU[string, version.Version](64, nil, versionCacheTTL),
	}
}

// LatestVersion asks the server for the newest published version of
// an app. Results are cached briefly; see versionCacheTTL.
func (c *Client) LatestVersion(ctx context.Context, app string) (version.Version, error) {
	if v, ok := c.versions.Get(app); ok {
		return v, nil
	}

	var payload struct {
		LatestVersion string `json:"latest_version"`
	}
	if err := c.getJSON(ctx, "/latest-version/"+url.PathEscape(app), &payload); err != nil {
		return version.Version{}, err
	}

	v, err := version.Parse(payload.LatestVersion)
	if err != nil {
		return version.Version{}, fmt.Errorf("server reported version %q: %w", payload.LatestVersion, err)
	}

	c.versions.Add(app, v)
	return v, nil
}

// Download streams an artifact and returns its bytes. onProgress (may
// be nil) is invoked after each chunk. On any interruption the partial
// data is discarded and ErrTransfer is returned; the caller never sees
// an incomplete body presented as complete.
func (c *Client) Download(ctx context.Context, filename string, onProgress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: server returned %s", ErrTransfer, resp.Status)
	}

	// ContentLength is -1 when the server omits it; report 0 so
	// callers know the total is unknown.
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	var body []byte
	buf := make([]byte, downloadChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
			if onProgress != nil {
				onProgress(int64(len(body)), total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: stream interrupted after %d bytes: %v", ErrTransfer, len(body), err)
		}
	}

	if total > 0 && int64(len(body)) != total {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTransfer, len(body), total)
	}
	return body, nil
}

// Apps returns the server's catalog listing.
func (c *Client) Apps(ctx context.Context) ([]AppInfo, error) {
	var payload struct {
		Apps []AppInfo `json:"apps"`
	}
	if err := c.getJSON(ctx, "/apps", &payload); err != nil {
		return nil, err
	}
	return payload.Apps, nil
}

// Asset fetches an icon or other asset file by name.
func (c *Client) Asset(ctx context.Context, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/assets/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("building asset request: %w", err)
	}

	resp, err := c.meta.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: asset %s", ErrNotFound, filename)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: server returned %s", ErrRemoteUnavailable, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading asset: %v", ErrTransfer, err)
	}
	return data, nil
}

// Ping hits the server's health probe.
func (c *Client) Ping(ctx context.Context) error {
	var payload struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/", &payload); err != nil {
		return err
	}
	if payload.Status != "ok" {
		return fmt.Errorf("%w: health probe reported %q", ErrRemoteUnavailable, payload.Status)
	}
	return nil
}

// getJSON performs a GET with the metadata timeout and decodes the
// JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.meta.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: server returned %s", ErrRemoteUnavailable, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRemoteUnavailable, err)
	}
	return nil
}
