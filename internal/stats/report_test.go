package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/flashdeck/internal/cache"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "flashdeck.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	c := cache.New(st)

	empty, err := BuildReport(ctx, c)
	if err != nil {
		t.Fatalf("build empty report: %v", err)
	}
	if empty.Cards != 0 {
		t.Fatalf("expected empty report, got %+v", empty)
	}

	record := model.CacheRecord{
		Dataset: model.Dataset{
			{Term: "你好", Pronunciation: "nǐ hǎo", Meaning: "hello", Subject: "Mandarin"},
			{Term: "水", Pronunciation: "shuǐ", Meaning: "water", Subject: "Science"},
			{Term: "火", Meaning: "fire", Subject: "Science"},
			{Term: "三", Pronunciation: "sān", Meaning: "three"},
		},
		Freshness:     model.Freshness{ETag: `"v3"`},
		UpdatePending: true,
	}
	if err := c.Store(ctx, record); err != nil {
		t.Fatalf("store: %v", err)
	}

	report, err := BuildReport(ctx, c)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Cards != 4 || report.Unlabeled != 1 || report.WithPronunciation != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Subjects) != 2 || report.Subjects[0].Subject != "Science" {
		t.Fatalf("unexpected subjects: %+v", report.Subjects)
	}
	if report.Freshness.ETag != `"v3"` || !report.UpdatePending {
		t.Fatalf("expected record metadata in report")
	}

	var buf bytes.Buffer
	if err := RenderSummary(&buf, report); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Cards: 4", "Without subject: 1", `ETag: "v3"`, "Update pending: yes", "Science"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
