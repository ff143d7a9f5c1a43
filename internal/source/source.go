// Package source downloads the vocabulary dataset.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/offline"
	"github.com/verte-zerg/flashdeck/internal/parser"
)

// ErrStatus reports a non-success response from the dataset source.
var ErrStatus = errors.New("unexpected dataset status")

// Result is one downloaded dataset.
type Result struct {
	Dataset   model.Dataset
	Freshness model.Freshness
	// Dropped counts rows removed for a missing term or meaning.
	Dropped int
	// Cached is set when the offline layer answered from its stored copy
	// because the network was unreachable.
	Cached bool
}

// Fetcher downloads and parses the dataset.
type Fetcher struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// New returns a fetcher for url. A nil client uses http.DefaultClient and a
// nil logger discards output.
func New(client *http.Client, url string, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Fetcher{client: client, url: url, logger: logger}
}

// GetVocabulary fetches the dataset. noCache asks intermediate caches to
// revalidate with the source. On failure the result holds an empty dataset
// and the error describes what went wrong.
func (f *Fetcher) GetVocabulary(ctx context.Context, noCache bool) (Result, error) {
	empty := Result{Dataset: model.Dataset{}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return empty, fmt.Errorf("failed to create request: %w", err)
	}
	if noCache {
		req.Header.Set("Cache-Control", "no-cache")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return empty, fmt.Errorf("failed to fetch vocabulary: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close on read path.
			_ = cerr
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return empty, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	dataset, err := parser.Parse(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("failed to parse vocabulary: %w", err)
	}
	cleaned, dropped := parser.Clean(dataset)
	if dropped > 0 {
		f.logger.Warn("dropped incomplete rows", "count", dropped)
	}
	f.logger.Debug("vocabulary fetched", "cards", len(cleaned), "url", f.url)

	return Result{
		Dataset: cleaned,
		Freshness: model.Freshness{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
		Dropped: dropped,
		Cached:  resp.Header.Get(offline.CacheHeader) != "",
	}, nil
}
