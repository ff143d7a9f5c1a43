// Package update probes the dataset source for a newer version.
package update

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// Result is the outcome of one probe.
type Result struct {
	UpdateAvailable bool
	Freshness       model.Freshness
}

// Checker issues conditional HEAD requests against the dataset URL.
type Checker struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// New returns a checker. A nil client uses http.DefaultClient and a nil
// logger discards output.
func New(client *http.Client, url string, logger *slog.Logger) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{client: client, url: url, logger: logger}
}

// Check reports whether the source holds a dataset newer than cached.
// Failures never surface: they report no update and keep cached metadata.
func (c *Checker) Check(ctx context.Context, cached model.Freshness) Result {
	unchanged := Result{Freshness: cached}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, nil)
	if err != nil {
		c.logger.Warn("update check request failed", "url", c.url, "err", err)
		return unchanged
	}
	if cached.ETag != "" {
		req.Header.Set("If-None-Match", cached.ETag)
	}
	if cached.LastModified != "" {
		req.Header.Set("If-Modified-Since", cached.LastModified)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("update check failed", "url", c.url, "err", err)
		return unchanged
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close; HEAD has no body.
			_ = cerr
		}
	}()

	if resp.StatusCode == http.StatusNotModified {
		c.logger.Debug("dataset not modified", "url", c.url)
		return unchanged
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("update check returned unexpected status", "url", c.url, "status", resp.StatusCode)
		return unchanged
	}

	fresh := model.Freshness{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if !Newer(cached, fresh) {
		return unchanged
	}
	c.logger.Info("dataset update available", "etag", fresh.ETag, "last_modified", fresh.LastModified)
	return Result{UpdateAvailable: true, Freshness: fresh}
}

// Newer reports whether fresh identifies a different dataset than cached.
// Entity tags win over last-modified values. A source that returns no token
// at all is never considered newer, and neither is one whose tokens share
// no kind with a non-empty cached set. An empty cached set is always older.
func Newer(cached, fresh model.Freshness) bool {
	if fresh.IsZero() {
		return false
	}
	if cached.IsZero() {
		return true
	}
	if fresh.ETag != "" && cached.ETag != "" {
		return fresh.ETag != cached.ETag
	}
	if fresh.LastModified != "" && cached.LastModified != "" {
		return fresh.LastModified != cached.LastModified
	}
	return false
}
