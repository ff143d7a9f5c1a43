package main

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/flashdeck/internal/cache"
	"github.com/verte-zerg/flashdeck/internal/config"
	"github.com/verte-zerg/flashdeck/internal/store"
)

func writeConfig(t *testing.T, contents string) {
	t.Helper()
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestResolveConfigLayering(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FLASHDECK_OPTIONS", "5")
	writeConfig(t, `
[source]
url = "https://example.com/vocab.csv"
timeout = "5s"

[practice]
size = "5"
options = 3
`)

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--size", "20"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.SourceURL != "https://example.com/vocab.csv" {
		t.Fatalf("unexpected source url %q", cfg.SourceURL)
	}
	if cfg.SourceTimeout != 5*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.SourceTimeout)
	}
	if cfg.Size != "20" {
		t.Fatalf("expected flag to win, got size %q", cfg.Size)
	}
	if cfg.Options != 5 {
		t.Fatalf("expected env to win over file, got options %d", cfg.Options)
	}
	if cfg.Listen != defaultListen || cfg.ShellVersion != defaultShellVersion {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestResolveConfigRejectsInvalidFlag(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--options", "9"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	_, err := resolveConfig(cmd)
	if err == nil || !strings.Contains(err.Error(), "--options") {
		t.Fatalf("expected --options error, got %v", err)
	}
}

func TestResolveConfigRejectsBadTimeout(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeConfig(t, "[source]\ntimeout = \"soon\"\n")
	if _, err := resolveConfig(newRootCmd()); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestDefaultConfigTemplateUncommented(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	setting := regexp.MustCompile(`^# ([a-z-]+ = .*)$`)
	var lines []string
	for _, line := range strings.Split(defaultConfigTemplate(), "\n") {
		if m := setting.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		lines = append(lines, line)
	}
	writeConfig(t, strings.Join(lines, "\n"))

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if fileCfg.Practice.Options == nil || *fileCfg.Practice.Options != defaultOptions {
		t.Fatalf("unexpected options %v", fileCfg.Practice.Options)
	}
	if fileCfg.Offline.ShellAssets == nil || len(*fileCfg.Offline.ShellAssets) != len(defaultShellAssets) {
		t.Fatalf("unexpected shell assets %v", fileCfg.Offline.ShellAssets)
	}
	if _, err := resolveConfig(newRootCmd()); err != nil {
		t.Fatalf("template values should validate: %v", err)
	}
}

func TestImportSeedsCache(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "vocab.csv")
	data := "mandarin,pinyin,meaning,sources\n你好,nǐ hǎo,hello,Greetings\n谢谢,xièxie,,Greetings\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cmd := newRootCmd()
	cmd.SetArgs([]string{"import", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("import: %v", err)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			t.Fatalf("close store: %v", cerr)
		}
	}()
	record, ok, err := cache.New(st).Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected cached record, got ok=%v err=%v", ok, err)
	}
	if len(record.Dataset) != 1 || record.Dataset[0].Meaning != "hello" || record.Dataset[0].Subject != "Greetings" {
		t.Fatalf("unexpected dataset: %+v", record.Dataset)
	}
	if !record.Freshness.IsZero() {
		t.Fatalf("expected empty freshness, got %+v", record.Freshness)
	}
}
