package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/verte-zerg/flashdeck/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "flashdeck.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return st
}

func TestKVRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "vocabularyCache"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := st.Set(ctx, "vocabularyCache", "one"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := st.Set(ctx, "vocabularyCache", "two"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, ok, err := st.Get(ctx, "vocabularyCache")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if value != "two" {
		t.Fatalf("expected overwritten value, got %q", value)
	}
	if err := st.Remove(ctx, "vocabularyCache"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := st.Remove(ctx, "vocabularyCache"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "vocabularyCache"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestNamespacesAndResponses(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	responses := []model.StoredResponse{
		{URL: "http://shell/", Status: 200, Header: map[string][]string{"Content-Type": {"text/html"}}, Body: []byte("<html>")},
		{URL: "http://shell/app.js", Status: 200, Body: []byte("js")},
	}
	if err := st.PutResponses(ctx, "shell-v2", responses); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.OpenNamespace(ctx, "data-v1"); err != nil {
		t.Fatalf("open namespace: %v", err)
	}

	names, err := st.Namespaces(ctx)
	if err != nil {
		t.Fatalf("namespaces: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 namespaces, got %v", names)
	}

	resp, ok, err := st.MatchResponse(ctx, "shell-v2", "http://shell/")
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	if string(resp.Body) != "<html>" || resp.Header["Content-Type"][0] != "text/html" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.StoredAt.IsZero() {
		t.Fatalf("expected stored_at to be set")
	}

	if _, ok, _ := st.MatchAny(ctx, "http://shell/app.js"); !ok {
		t.Fatalf("expected match across namespaces")
	}
	if _, ok, _ := st.MatchResponse(ctx, "data-v1", "http://shell/app.js"); ok {
		t.Fatalf("namespaces must be independent")
	}

	if err := st.DeleteNamespace(ctx, "shell-v2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if has, _ := st.HasNamespace(ctx, "shell-v2"); has {
		t.Fatalf("expected namespace removed")
	}
	if n, _ := st.CountResponses(ctx, "shell-v2"); n != 0 {
		t.Fatalf("expected entries removed, got %d", n)
	}
	if _, ok, _ := st.MatchAny(ctx, "http://shell/"); ok {
		t.Fatalf("expected no match after delete")
	}
}

func TestPutResponseOverwrites(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.PutResponse(ctx, "data-v1", model.StoredResponse{URL: "u", Status: 200, Body: []byte("old")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.PutResponse(ctx, "data-v1", model.StoredResponse{URL: "u", Status: 200, Body: []byte("new")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	resp, _, err := st.MatchResponse(ctx, "data-v1", "u")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if string(resp.Body) != "new" {
		t.Fatalf("expected new body, got %q", resp.Body)
	}
	if n, _ := st.CountResponses(ctx, "data-v1"); n != 1 {
		t.Fatalf("expected single entry, got %d", n)
	}
}
