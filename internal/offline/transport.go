package offline

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/rehttp"
)

const (
	retryBaseDelay = 200 * time.Millisecond
	retryMaxDelay  = 3 * time.Second
)

// NewTransport returns the network transport beneath the worker. Idempotent
// requests are retried on temporary errors and gateway failures.
func NewTransport(retries int) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if retries <= 0 {
		return base
	}
	return rehttp.NewTransport(
		base,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(retries),
			rehttp.RetryHTTPMethods(http.MethodGet, http.MethodHead),
			rehttp.RetryAny(
				rehttp.RetryTemporaryErr(),
				rehttp.RetryStatuses(http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout),
			),
		),
		rehttp.ExpJitterDelay(retryBaseDelay, retryMaxDelay),
	)
}

// NewClient returns an HTTP client whose requests pass through rt.
func NewClient(rt http.RoundTripper, timeout time.Duration) *http.Client {
	return &http.Client{Transport: rt, Timeout: timeout}
}

// ResolveAssets resolves asset paths against origin. Absolute asset URLs
// are kept as they are.
func ResolveAssets(origin string, assets []string) ([]string, error) {
	if len(assets) == 0 {
		return nil, nil
	}
	if origin == "" {
		return nil, fmt.Errorf("shell origin is required to resolve %d assets", len(assets))
	}
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse shell origin: %w", err)
	}
	out := make([]string, 0, len(assets))
	for _, asset := range assets {
		ref, err := url.Parse(asset)
		if err != nil {
			return nil, fmt.Errorf("failed to parse asset %q: %w", asset, err)
		}
		out = append(out, base.ResolveReference(ref).String())
	}
	return out, nil
}
