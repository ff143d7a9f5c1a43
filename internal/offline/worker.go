// Package offline serves the application shell and the dataset from local
// cache namespaces, falling back to the network.
package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/lestrrat-go/httpcc"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// CacheHeader marks responses served from a cache namespace.
const CacheHeader = "X-Flashdeck-Cache"

const installConcurrency = 4

// Responses is the namespace-scoped response storage the worker uses.
type Responses interface {
	Namespaces(ctx context.Context) ([]string, error)
	HasNamespace(ctx context.Context, name string) (bool, error)
	OpenNamespace(ctx context.Context, name string) error
	DeleteNamespace(ctx context.Context, name string) error
	PutResponses(ctx context.Context, namespace string, responses []model.StoredResponse) error
	PutResponse(ctx context.Context, namespace string, resp model.StoredResponse) error
	MatchResponse(ctx context.Context, namespace, url string) (model.StoredResponse, bool, error)
	MatchAny(ctx context.Context, url string) (model.StoredResponse, bool, error)
}

// Options configures a worker.
type Options struct {
	// DataURL is the dataset source; requests for it are revalidated.
	DataURL string
	// ShellAssets are absolute URLs cached by Install.
	ShellAssets  []string
	ShellVersion int
	DataVersion  int
	// Base performs network requests. Defaults to http.DefaultTransport.
	Base   http.RoundTripper
	Logger *slog.Logger
}

// Worker intercepts requests and answers them from cache namespaces.
// It implements http.RoundTripper.
type Worker struct {
	store   Responses
	base    http.RoundTripper
	dataURL string
	assets  []string
	shellNS string
	dataNS  string
	logger  *slog.Logger

	updates chan struct{}
	pending sync.WaitGroup
}

// ShellNamespace names the shell namespace for a version.
func ShellNamespace(version int) string {
	return "shell-v" + strconv.Itoa(version)
}

// DataNamespace names the data namespace for a version.
func DataNamespace(version int) string {
	return "data-v" + strconv.Itoa(version)
}

// NewWorker returns a worker over store.
func NewWorker(store Responses, opts Options) *Worker {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	assets := make([]string, len(opts.ShellAssets))
	copy(assets, opts.ShellAssets)
	return &Worker{
		store:   store,
		base:    base,
		dataURL: opts.DataURL,
		assets:  assets,
		shellNS: ShellNamespace(opts.ShellVersion),
		dataNS:  DataNamespace(opts.DataVersion),
		logger:  logger.With("component", "offline"),
		updates: make(chan struct{}, 1),
	}
}

// Updates delivers a signal whenever a revalidation stored a dataset that
// differs from the previous cached one. Signals are coalesced and may be
// dropped when nobody is listening.
func (w *Worker) Updates() <-chan struct{} {
	return w.updates
}

// Wait blocks until background revalidations have finished.
func (w *Worker) Wait() {
	w.pending.Wait()
}

// Installed reports whether the current shell namespace already exists.
func (w *Worker) Installed(ctx context.Context) (bool, error) {
	ok, err := w.store.HasNamespace(ctx, w.shellNS)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", w.shellNS, err)
	}
	return ok, nil
}

// Install fetches every shell asset and stores them together. If any fetch
// fails nothing is stored.
func (w *Worker) Install(ctx context.Context) error {
	batch := uuid.NewString()
	logger := w.logger.With("batch", batch, "namespace", w.shellNS)
	logger.Info("installing shell", "assets", len(w.assets))

	responses := make([]model.StoredResponse, len(w.assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(installConcurrency)
	for i, asset := range w.assets {
		g.Go(func() error {
			stored, err := w.fetchAsset(gctx, asset)
			if err != nil {
				return err
			}
			responses[i] = stored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("shell install failed", "err", err)
		return fmt.Errorf("failed to install shell: %w", err)
	}

	if err := w.store.PutResponses(ctx, w.shellNS, responses); err != nil {
		return fmt.Errorf("failed to store shell: %w", err)
	}
	logger.Info("shell installed")
	return nil
}

// Activate deletes every namespace other than the current shell and data
// namespaces and returns the deleted names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	if err := w.store.OpenNamespace(ctx, w.dataNS); err != nil {
		return nil, err
	}
	names, err := w.store.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	var deleted []string
	for _, name := range names {
		if name == w.shellNS || name == w.dataNS {
			continue
		}
		if err := w.store.DeleteNamespace(ctx, name); err != nil {
			return deleted, fmt.Errorf("failed to delete namespace %s: %w", name, err)
		}
		w.logger.Info("deleted stale namespace", "namespace", name)
		deleted = append(deleted, name)
	}
	return deleted, nil
}

// RoundTrip answers GET requests from the cache namespaces. Requests for
// the dataset are served from cache and revalidated in the background;
// everything else is cache first with a network fallback that is not
// cached. Other methods go straight to the network.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return w.base.RoundTrip(req)
	}
	if w.isData(req) {
		return w.serveData(req)
	}

	key := req.URL.String()
	stored, ok, err := w.store.MatchAny(req.Context(), key)
	if err != nil {
		w.logger.Warn("cache lookup failed", "url", key, "err", err)
	}
	if ok {
		return toResponse(req, stored, true), nil
	}
	return w.base.RoundTrip(req)
}

func (w *Worker) isData(req *http.Request) bool {
	if w.dataURL == "" {
		return false
	}
	u := *req.URL
	u.Fragment = ""
	return u.String() == w.dataURL
}

func (w *Worker) serveData(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := req.URL.String()

	if requestsRevalidation(req) {
		resp, err := w.fetchData(req)
		if err == nil {
			return resp, nil
		}
		stored, ok, lerr := w.store.MatchResponse(ctx, w.dataNS, key)
		if lerr != nil || !ok {
			return nil, err
		}
		w.logger.Warn("dataset fetch failed, serving cached copy", "err", err)
		return toResponse(req, stored, true), nil
	}

	stored, ok, err := w.store.MatchResponse(ctx, w.dataNS, key)
	if err != nil {
		w.logger.Warn("cache lookup failed", "url", key, "err", err)
	}
	if !ok {
		return w.fetchData(req)
	}

	bg := req.Clone(context.WithoutCancel(ctx))
	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		resp, err := w.fetchData(bg)
		if err != nil {
			w.logger.Debug("dataset revalidation failed", "err", err)
			return
		}
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close; body is in memory.
			_ = cerr
		}
	}()
	return toResponse(req, stored, true), nil
}

// fetchData performs the network request for the dataset and replaces the
// cached entry when the response may be stored.
func (w *Worker) fetchData(req *http.Request) (*http.Response, error) {
	resp, err := w.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if cerr := resp.Body.Close(); cerr != nil {
		// Best-effort close; body already consumed.
		_ = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset response: %w", err)
	}

	stored := model.StoredResponse{
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}
	if resp.StatusCode == http.StatusOK && storable(resp) {
		w.replaceData(req.Context(), stored)
	}
	return toResponse(req, stored, false), nil
}

func (w *Worker) replaceData(ctx context.Context, stored model.StoredResponse) {
	previous, existed, err := w.store.MatchResponse(ctx, w.dataNS, stored.URL)
	if err != nil {
		w.logger.Warn("cache lookup failed", "url", stored.URL, "err", err)
	}
	if err := w.store.PutResponse(ctx, w.dataNS, stored); err != nil {
		w.logger.Warn("failed to cache dataset", "err", err)
		return
	}
	if existed && !bytes.Equal(previous.Body, stored.Body) {
		w.logger.Info("cached dataset changed")
		w.notify()
	}
}

func (w *Worker) notify() {
	select {
	case w.updates <- struct{}{}:
	default:
	}
}

func (w *Worker) fetchAsset(ctx context.Context, asset string) (model.StoredResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, http.NoBody)
	if err != nil {
		return model.StoredResponse{}, fmt.Errorf("failed to create request for %s: %w", asset, err)
	}
	resp, err := w.base.RoundTrip(req)
	if err != nil {
		return model.StoredResponse{}, fmt.Errorf("failed to fetch %s: %w", asset, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort close on read path.
			_ = cerr
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return model.StoredResponse{}, fmt.Errorf("unexpected status for %s: %s", asset, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.StoredResponse{}, fmt.Errorf("failed to read %s: %w", asset, err)
	}
	return model.StoredResponse{
		URL:    req.URL.String(),
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

func requestsRevalidation(req *http.Request) bool {
	value := req.Header.Get("Cache-Control")
	if value == "" {
		return false
	}
	directive, err := httpcc.ParseRequest(value)
	if err != nil {
		return false
	}
	return directive.NoCache()
}

func storable(resp *http.Response) bool {
	value := resp.Header.Get("Cache-Control")
	if value == "" {
		return true
	}
	directive, err := httpcc.ParseResponse(value)
	if err != nil {
		return true
	}
	return !directive.NoStore()
}

func toResponse(req *http.Request, stored model.StoredResponse, hit bool) *http.Response {
	header := http.Header{}
	for k, v := range stored.Header {
		header[k] = append([]string(nil), v...)
	}
	if hit {
		header.Set(CacheHeader, "hit")
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", stored.Status, http.StatusText(stored.Status)),
		StatusCode:    stored.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(stored.Body)),
		ContentLength: int64(len(stored.Body)),
		Request:       req,
	}
}
