package offline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/store"
)

type origin struct {
	srv      *httptest.Server
	dataBody atomic.Value
	noStore  atomic.Bool
	hits     atomic.Int32
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{}
	o.dataBody.Store("mandarin,pinyin,english,subject\n你好,nǐ hǎo,hello,Mandarin\n")
	mux := http.NewServeMux()
	mux.HandleFunc("/data.csv", func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		if o.noStore.Load() {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, o.dataBody.Load().(string))
	})
	for _, path := range []string{"/", "/index.html", "/style.css", "/app.js"} {
		body := "asset " + path
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			_, _ = io.WriteString(w, body)
		})
	}
	o.srv = httptest.NewServer(mux)
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) url(path string) string {
	return o.srv.URL + path
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "flashdeck.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return st
}

func newTestWorker(t *testing.T, st *store.Store, o *origin, assets ...string) *Worker {
	t.Helper()
	resolved, err := ResolveAssets(o.srv.URL, assets)
	if err != nil {
		t.Fatalf("resolve assets: %v", err)
	}
	return NewWorker(st, Options{
		DataURL:      o.url("/data.csv"),
		ShellAssets:  resolved,
		ShellVersion: 2,
		DataVersion:  1,
	})
}

func get(t *testing.T, rt http.RoundTripper, url string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip %s: %v", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestInstallStoresAllAssets(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o, "/", "/index.html", "/style.css", "/app.js")
	ctx := context.Background()

	if ok, err := w.Installed(ctx); err != nil || ok {
		t.Fatalf("expected fresh store to be uninstalled, got %v %v", ok, err)
	}
	if err := w.Install(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}
	if ok, _ := w.Installed(ctx); !ok {
		t.Fatalf("expected shell to be installed")
	}
	n, err := st.CountResponses(ctx, ShellNamespace(2))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 shell entries, got %d", n)
	}
}

func TestInstallIsAllOrNothing(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o, "/index.html", "/missing.js", "/app.js")
	ctx := context.Background()

	if err := w.Install(ctx); err == nil {
		t.Fatalf("expected install failure")
	}
	if ok, _ := w.Installed(ctx); ok {
		t.Fatalf("expected no shell namespace after failed install")
	}
}

func TestActivateDeletesStaleNamespaces(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	ctx := context.Background()
	for _, name := range []string{"shell-v1", "data-v0", ShellNamespace(2)} {
		if err := st.PutResponse(ctx, name, model.StoredResponse{URL: "u", Status: 200}); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	w := newTestWorker(t, st, o)

	deleted, err := w.Activate(ctx)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(deleted) != 2 {
		t.Fatalf("expected 2 deleted namespaces, got %v", deleted)
	}
	names, _ := st.Namespaces(ctx)
	if len(names) != 2 {
		t.Fatalf("expected current namespaces only, got %v", names)
	}
	for _, name := range names {
		if name != ShellNamespace(2) && name != DataNamespace(1) {
			t.Fatalf("unexpected namespace %s", name)
		}
	}
}

func TestCacheFirstServesShellOffline(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o, "/index.html")
	if err := w.Install(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}
	indexURL := o.url("/index.html")
	styleURL := o.url("/style.css")

	resp, body := get(t, w, styleURL)
	if resp.Header.Get(CacheHeader) != "" || body != "asset /style.css" {
		t.Fatalf("expected network response, got %q", body)
	}
	o.srv.Close()

	resp, body = get(t, w, indexURL)
	if body != "asset /index.html" || resp.Header.Get(CacheHeader) != "hit" {
		t.Fatalf("expected cached shell, got %q", body)
	}

	req, _ := http.NewRequest(http.MethodGet, styleURL, http.NoBody)
	if _, err := w.RoundTrip(req); err == nil {
		t.Fatalf("expected network fallback to fail for uncached asset")
	}
}

func TestDataCacheAndRevalidate(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o)
	dataURL := o.url("/data.csv")

	resp, first := get(t, w, dataURL)
	if resp.Header.Get(CacheHeader) != "" {
		t.Fatalf("first load must come from network")
	}
	w.Wait()

	updated := "mandarin,pinyin,english,subject\n水,shuǐ,water,Science\n"
	o.dataBody.Store(updated)

	resp, second := get(t, w, dataURL)
	if second != first || resp.Header.Get(CacheHeader) != "hit" {
		t.Fatalf("expected cached dataset, got %q", second)
	}
	w.Wait()

	select {
	case <-w.Updates():
	case <-time.After(time.Second):
		t.Fatalf("expected update notification")
	}

	_, third := get(t, w, dataURL)
	if third != updated {
		t.Fatalf("expected revalidated dataset, got %q", third)
	}
	w.Wait()
	if o.hits.Load() != 3 {
		t.Fatalf("expected 3 network hits, got %d", o.hits.Load())
	}
}

func TestDataRevalidationFailureIsSwallowed(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o)
	dataURL := o.url("/data.csv")

	_, first := get(t, w, dataURL)
	o.srv.Close()

	_, second := get(t, w, dataURL)
	w.Wait()
	if second != first {
		t.Fatalf("expected cached dataset after failed revalidation")
	}
	select {
	case <-w.Updates():
		t.Fatalf("unexpected update notification")
	default:
	}
}

func TestDataNoCacheIsNetworkFirst(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o)
	dataURL := o.url("/data.csv")

	get(t, w, dataURL)
	w.Wait()
	updated := "mandarin,pinyin,english,subject\n火,huǒ,fire,Science\n"
	o.dataBody.Store(updated)

	resp, body := get(t, w, dataURL, "Cache-Control", "no-cache")
	if body != updated || resp.Header.Get(CacheHeader) != "" {
		t.Fatalf("expected network dataset, got %q", body)
	}

	o.srv.Close()
	resp, body = get(t, w, dataURL, "Cache-Control", "no-cache")
	if body != updated || resp.Header.Get(CacheHeader) != "hit" {
		t.Fatalf("expected cached fallback, got %q", body)
	}
}

func TestDataNoStoreIsNotCached(t *testing.T) {
	o := newOrigin(t)
	o.noStore.Store(true)
	st := openStore(t)
	w := newTestWorker(t, st, o)

	get(t, w, o.url("/data.csv"))
	if _, ok, _ := st.MatchResponse(context.Background(), DataNamespace(1), o.url("/data.csv")); ok {
		t.Fatalf("expected no-store response to stay uncached")
	}
}

func TestNonGetBypassesCache(t *testing.T) {
	o := newOrigin(t)
	st := openStore(t)
	w := newTestWorker(t, st, o)

	req, _ := http.NewRequest(http.MethodHead, o.url("/data.csv"), http.NoBody)
	resp, err := w.RoundTrip(req)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	_ = resp.Body.Close()
	if _, ok, _ := st.MatchResponse(context.Background(), DataNamespace(1), o.url("/data.csv")); ok {
		t.Fatalf("expected HEAD to bypass cache")
	}
}

func TestResolveAssets(t *testing.T) {
	got, err := ResolveAssets("https://example.com/app/", []string{"./", "index.html", "/style.css", "https://cdn.example.com/x.js"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{
		"https://example.com/app/",
		"https://example.com/app/index.html",
		"https://example.com/style.css",
		"https://cdn.example.com/x.js",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("asset %d: got %q want %q", i, got[i], want[i])
		}
	}
	if _, err := ResolveAssets("", []string{"/"}); err == nil {
		t.Fatalf("expected error without origin")
	}
}
