package tui

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/flashdeck/internal/app"
	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/session"
	"github.com/verte-zerg/flashdeck/internal/source"
	"github.com/verte-zerg/flashdeck/internal/update"
)

type fakeCache struct {
	record model.CacheRecord
	ok     bool
}

func (c *fakeCache) Load(context.Context) (model.CacheRecord, bool, error) {
	return c.record, c.ok, nil
}

func (c *fakeCache) Store(_ context.Context, record model.CacheRecord) error {
	c.record, c.ok = record, true
	return nil
}

func (c *fakeCache) Clear(context.Context) error {
	c.record, c.ok = model.CacheRecord{}, false
	return nil
}

type fakeFetcher struct {
	res source.Result
	err error
}

func (f *fakeFetcher) GetVocabulary(context.Context, bool) (source.Result, error) {
	if f.err != nil {
		return source.Result{Dataset: model.Dataset{}}, f.err
	}
	return f.res, nil
}

type fakeChecker struct {
	result update.Result
}

func (c *fakeChecker) Check(context.Context, model.Freshness) update.Result {
	return c.result
}

func testConfig() model.Config {
	return model.Config{Subject: model.SubjectMixed, Size: model.SizeAll, Options: 4}
}

func newTestModel(t *testing.T, state *app.State) *Model {
	t.Helper()
	return NewModel(context.Background(), state, deck.NewWithSource(rand.NewSource(1)), testConfig(), nil, nil)
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func startup(t *testing.T, m *Model) tea.Cmd {
	t.Helper()
	res := m.state.Startup(context.Background())
	_, cmd := m.Update(loadedMsg{result: res})
	return cmd
}

func TestGameWithSingleCard(t *testing.T) {
	c := &fakeCache{ok: true, record: model.CacheRecord{
		Dataset: model.Dataset{{Term: "你好", Pronunciation: "nǐ hǎo", Meaning: "hello", Subject: "Mandarin"}},
	}}
	state := app.New(c, &fakeFetcher{}, &fakeChecker{}, nil)
	m := newTestModel(t, state)

	if cmd := startup(t, m); cmd == nil {
		t.Fatalf("expected background update check after cached startup")
	}
	if m.screen != screenHome {
		t.Fatalf("expected home screen, got %v", m.screen)
	}

	press(m, "down", "enter")
	if m.screen != screenSubject || m.menu[m.cursor] != model.SubjectMixed {
		t.Fatalf("expected subject menu on Mixed, got %v %v", m.screen, m.menu)
	}
	press(m, "enter")
	if m.screen != screenSize || m.menu[m.cursor] != model.SizeAll {
		t.Fatalf("expected size menu on All, got %v", m.menu)
	}
	press(m, "enter")
	if m.screen != screenGame {
		t.Fatalf("expected game screen, got %v", m.screen)
	}
	view := m.View()
	if !strings.Contains(view, session.NoOtherOptions) || !strings.Contains(view, "hello") {
		t.Fatalf("expected one real option plus placeholder:\n%s", view)
	}

	press(m, "1")
	if m.screen != screenSummary {
		t.Fatalf("expected summary after the only question, got %v", m.screen)
	}
	if s := m.summary; s.Total != 1 || s.Score < 0 || s.Score > 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !strings.Contains(m.View(), "Score") {
		t.Fatalf("expected score in summary view")
	}
}

func TestPracticeFlow(t *testing.T) {
	c := &fakeCache{ok: true, record: model.CacheRecord{Dataset: model.Dataset{
		{Term: "水", Pronunciation: "shuǐ", Meaning: "water", Subject: "Science"},
		{Term: "火", Pronunciation: "huǒ", Meaning: "fire", Subject: "Science"},
		{Term: "三", Pronunciation: "sān", Meaning: "three", Subject: "Math"},
	}}}
	m := newTestModel(t, app.New(c, &fakeFetcher{}, &fakeChecker{}, nil))
	startup(t, m)

	press(m, "enter")
	if m.menu[0] != "Math" || m.menu[1] != "Science" {
		t.Fatalf("unexpected subjects %v", m.menu)
	}
	press(m, "up", "enter", "enter")
	if m.screen != screenPractice || m.practice.Len() != 2 {
		t.Fatalf("expected 2 Science cards, got screen %v", m.screen)
	}
	if !strings.Contains(m.View(), "press f to flip") {
		t.Fatalf("meaning must stay hidden before flip")
	}
	press(m, "f")
	if !m.practice.Flipped() {
		t.Fatalf("expected flipped card")
	}
	press(m, "n", "n")
	if m.screen != screenSummary || m.summary.Total != 2 {
		t.Fatalf("expected practice summary, got %v %+v", m.screen, m.summary)
	}
	press(m, "enter")
	if m.screen != screenHome {
		t.Fatalf("expected home")
	}
}

func TestEmptyDeckNotice(t *testing.T) {
	c := &fakeCache{ok: true, record: model.CacheRecord{Dataset: model.Dataset{
		{Term: "水", Meaning: "water", Subject: "Science"},
	}}}
	cfg := testConfig()
	m := NewModel(context.Background(), app.New(c, &fakeFetcher{}, &fakeChecker{}, nil), deck.New(), cfg, nil, nil)
	startup(t, m)

	press(m, "enter", "enter", "enter")
	if m.screen != screenPractice {
		t.Fatalf("expected practice screen")
	}
	m.practice = session.NewPractice(nil)
	m.subject = "Math"
	if !strings.Contains(m.View(), "No cards for Math") {
		t.Fatalf("expected empty deck notice")
	}
	press(m, "enter")
	if m.screen != screenHome {
		t.Fatalf("expected empty deck to return home")
	}
}

func TestUpdateBannerRefresh(t *testing.T) {
	c := &fakeCache{ok: true, record: model.CacheRecord{
		Dataset:   model.Dataset{{Term: "水", Meaning: "water"}},
		Freshness: model.Freshness{ETag: `"v1"`},
	}}
	fetcher := &fakeFetcher{res: source.Result{
		Dataset:   model.Dataset{{Term: "水", Meaning: "water"}, {Term: "火", Meaning: "fire"}},
		Freshness: model.Freshness{ETag: `"v2"`},
	}}
	checker := &fakeChecker{result: update.Result{UpdateAvailable: true, Freshness: model.Freshness{ETag: `"v2"`}}}
	state := app.New(c, fetcher, checker, nil)
	m := newTestModel(t, state)
	startup(t, m)

	if strings.Contains(m.View(), updateNotice) {
		t.Fatalf("banner must not show before the check completes")
	}
	m.Update(updateCheckedMsg{available: state.CheckForUpdate(context.Background())})
	if !strings.Contains(m.View(), updateNotice) {
		t.Fatalf("expected update banner")
	}
	if len(state.Dataset()) != 1 {
		t.Fatalf("dataset must not change before refresh")
	}
	m.Update(updateCheckedMsg{available: false})
	if !strings.Contains(m.View(), updateNotice) {
		t.Fatalf("banner must stay while the update is pending")
	}

	press(m, "R")
	if m.updateAvailable || len(state.Dataset()) != 2 {
		t.Fatalf("expected refreshed dataset")
	}
	if strings.Contains(m.View(), updateNotice) {
		t.Fatalf("expected banner dismissed")
	}
}

func TestRedownloadConfirmation(t *testing.T) {
	c := &fakeCache{ok: true, record: model.CacheRecord{Dataset: model.Dataset{{Term: "水", Meaning: "water"}}}}
	m := newTestModel(t, app.New(c, &fakeFetcher{}, &fakeChecker{}, nil))
	startup(t, m)

	press(m, "down", "down", "enter")
	if m.screen != screenConfirm || !strings.Contains(m.View(), "clear any saved progress") {
		t.Fatalf("expected confirmation step")
	}
	press(m, "n")
	if m.screen != screenHome || !c.ok {
		t.Fatalf("cancel must keep the cache")
	}

	press(m, "down", "down", "enter")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if cmd == nil || m.screen != screenLoading {
		t.Fatalf("expected redownload to start")
	}
}

func TestLoadFailureOffersRetry(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("network unreachable")}
	m := newTestModel(t, app.New(&fakeCache{}, fetcher, &fakeChecker{}, nil))
	if cmd := startup(t, m); cmd != nil {
		t.Fatalf("no update check expected after a network load")
	}

	view := m.View()
	if !strings.Contains(view, "network unreachable") || !strings.Contains(view, "Press t to retry") {
		t.Fatalf("expected retry prompt:\n%s", view)
	}
	press(m, "enter")
	if m.screen != screenHome {
		t.Fatalf("practice must be disabled without vocabulary")
	}
	press(m, "t")
	if m.screen != screenLoading {
		t.Fatalf("expected retry to reload")
	}
}

func TestRenderFooterFormats(t *testing.T) {
	m := newTestModel(t, app.New(&fakeCache{}, &fakeFetcher{}, &fakeChecker{}, nil))
	m.screen = screenHome
	m.loadErr = errors.New("boom")
	m.updateAvailable = true
	out := m.renderFooter()
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"enter", "select", "retry download", "quit", "refresh vocabulary"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
