package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/flashdeck/internal/app"
	"github.com/verte-zerg/flashdeck/internal/cache"
	"github.com/verte-zerg/flashdeck/internal/config"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/offline"
	"github.com/verte-zerg/flashdeck/internal/source"
	"github.com/verte-zerg/flashdeck/internal/store"
	"github.com/verte-zerg/flashdeck/internal/update"
)

// services is the object graph shared by the commands that talk to the
// dataset source.
type services struct {
	store  *store.Store
	worker *offline.Worker
	state  *app.State
}

// resolveConfig layers the config file, the .env file and FLASHDECK_*
// variables, and the command line flags, then validates the result.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.ReadEnv(config.DefaultEnvPath())
	if err != nil {
		return model.Config{}, err
	}
	fileCfg, err = config.ApplyEnv(fileCfg, env)
	if err != nil {
		return model.Config{}, err
	}

	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.LogLevel)
	applyStringConfig(cmd, "source-url", &sourceURL, fileCfg.Source.URL)
	if err := applyDurationConfig(cmd, "timeout", &sourceTimeout, fileCfg.Source.Timeout); err != nil {
		return model.Config{}, err
	}
	applyIntConfig(cmd, "retries", &sourceRetries, fileCfg.Source.Retries)
	applyStringConfig(cmd, "subject", &practiceSubject, fileCfg.Practice.Subject)
	applyStringConfig(cmd, "size", &practiceSize, fileCfg.Practice.Size)
	applyIntConfig(cmd, "options", &practiceOptions, fileCfg.Practice.Options)
	applyStringConfig(cmd, "shell-origin", &serveShellOrigin, fileCfg.Offline.ShellOrigin)
	applyStringConfig(cmd, "listen", &serveListen, fileCfg.Offline.Listen)

	cfg := model.Config{
		SourceURL:     strings.TrimSpace(sourceURL),
		SourceTimeout: sourceTimeout,
		SourceRetries: sourceRetries,
		Subject:       practiceSubject,
		Size:          practiceSize,
		Options:       practiceOptions,
		ShellOrigin:   strings.TrimSpace(serveShellOrigin),
		ShellAssets:   defaultShellAssets,
		ShellVersion:  defaultShellVersion,
		DataVersion:   defaultDataVersion,
		Listen:        serveListen,
		LogLevel:      strings.ToLower(logLevel),
	}
	if fileCfg.Offline.ShellAssets != nil {
		cfg.ShellAssets = *fileCfg.Offline.ShellAssets
	}
	if fileCfg.Offline.ShellVersion != nil {
		cfg.ShellVersion = *fileCfg.Offline.ShellVersion
	}
	if fileCfg.Offline.DataVersion != nil {
		cfg.DataVersion = *fileCfg.Offline.DataVersion
	}
	if fileCfg.Offline.AllowedOrigins != nil {
		cfg.AllowedOrigins = *fileCfg.Offline.AllowedOrigins
	}

	if err := config.Validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// openServices opens the store and wires the offline worker beneath the HTTP
// client used by the fetcher and the update checker. The shell is installed
// once per shell version; install failures are logged and leave the previous
// namespaces in place.
func openServices(ctx context.Context, cfg model.Config, logger *slog.Logger) (*services, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	var assets []string
	if cfg.ShellOrigin != "" {
		assets, err = offline.ResolveAssets(cfg.ShellOrigin, cfg.ShellAssets)
		if err != nil {
			closeStore(st)
			return nil, err
		}
	}
	worker := offline.NewWorker(st, offline.Options{
		DataURL:      cfg.SourceURL,
		ShellAssets:  assets,
		ShellVersion: cfg.ShellVersion,
		DataVersion:  cfg.DataVersion,
		Base:         offline.NewTransport(cfg.SourceRetries),
		Logger:       logger,
	})
	ready := true
	if len(assets) > 0 {
		installed, err := worker.Installed(ctx)
		if err != nil {
			logger.Warn("failed to check shell namespace", "err", err)
		}
		if !installed {
			if err := worker.Install(ctx); err != nil {
				logger.Warn("shell not installed", "err", err)
				ready = false
			}
		}
	}
	// Stale namespaces are only removed once the current shell is in place.
	if ready {
		if _, err := worker.Activate(ctx); err != nil {
			logger.Warn("failed to activate cache namespaces", "err", err)
		}
	}

	client := offline.NewClient(worker, cfg.SourceTimeout)
	state := app.New(
		cache.New(st),
		source.New(client, cfg.SourceURL, logger),
		update.New(client, cfg.SourceURL, logger),
		logger,
	)
	return &services{store: st, worker: worker, state: state}, nil
}

// Close waits for background revalidations and closes the store.
func (s *services) Close() {
	s.worker.Wait()
	closeStore(s.store)
}

// openCache opens the store for commands that only read the cached record.
func openCache() (*store.Store, *cache.Cache, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, cache.New(st), nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// newFileLogger logs to path while the TUI owns the terminal.
func newFileLogger(path, level string) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	closeLog := func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for the log file.
			_ = cerr
		}
	}
	return newLogger(file, level), closeLog, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Changed(name) {
		return nil
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, *value, err)
	}
	*target = parsed
	return nil
}
