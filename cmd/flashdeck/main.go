// Package main provides the CLI entrypoint for flashdeck.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/flashdeck/internal/config"
	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/offline"
	"github.com/verte-zerg/flashdeck/internal/parser"
	"github.com/verte-zerg/flashdeck/internal/stats"
	"github.com/verte-zerg/flashdeck/internal/statsui"
	"github.com/verte-zerg/flashdeck/internal/store"
	"github.com/verte-zerg/flashdeck/internal/tui"
)

const (
	defaultSourceURL    = "https://raw.githubusercontent.com/verte-zerg/flashdeck-data/main/vocabulary.csv"
	defaultTimeout      = 30 * time.Second
	defaultRetries      = 2
	defaultSize         = "10"
	defaultOptions      = 4
	defaultShellVersion = 2
	defaultDataVersion  = 1
	defaultListen       = "127.0.0.1:8787"
	defaultLogLevel     = "info"
	shutdownTimeout     = 5 * time.Second
)

var defaultShellAssets = []string{"/", "/index.html", "/app.js", "/app.css"}

var (
	sourceURL     string
	sourceTimeout time.Duration
	sourceRetries int
	logLevel      string

	practiceSubject string
	practiceSize    string
	practiceOptions int

	serveShellOrigin string
	serveListen      string

	statsSubject string
	statsQuery   string

	redownloadYes bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flashdeck",
		Short:         "Offline-capable vocabulary flashcards",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.PersistentFlags().StringVar(&sourceURL, "source-url", defaultSourceURL, "vocabulary dataset URL")
	rootCmd.PersistentFlags().DurationVar(&sourceTimeout, "timeout", defaultTimeout, "request timeout for the dataset source")
	rootCmd.PersistentFlags().IntVar(&sourceRetries, "retries", defaultRetries, "retries for idempotent requests")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&practiceSubject, "subject", model.SubjectMixed, "preselected subject")
	rootCmd.Flags().StringVar(&practiceSize, "size", defaultSize, "preselected deck size (number or All)")
	rootCmd.Flags().IntVar(&practiceOptions, "options", defaultOptions, "answer options per game question (2-6)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newSubjectsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newRedownloadCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newFileLogger(config.DefaultLogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	m := tui.NewModel(ctx, svc.state, deck.New(), cfg, svc.worker.Updates(), logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the shell and the dataset through the offline cache",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveShellOrigin, "shell-origin", "", "origin the shell assets are fetched from")
	cmd.Flags().StringVar(&serveListen, "listen", defaultListen, "listen address")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	server := &http.Server{
		Addr: cfg.Listen,
		Handler: svc.worker.Handler(offline.HandlerOptions{
			ShellOrigin:    cfg.ShellOrigin,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.Listen, "data", offline.DataPath, "shell", cfg.ShellOrigin)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the dataset source for a newer vocabulary",
		Args:  cobra.NoArgs,
		RunE:  runCheckCmd,
	}
}

func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	svc, err := openServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.state.Startup(cmd.Context())
	if res.Err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", res.Err)
	}
	if !res.FromCache {
		logErrf("Downloaded %d cards.\n", len(res.Dataset))
		return nil
	}
	out := cmd.OutOrStdout()
	cached := svc.state.Freshness()
	if _, err := fmt.Fprintf(out, "Cached version: etag=%s last-modified=%s\n", orUnknown(cached.ETag), orUnknown(cached.LastModified)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if svc.state.CheckForUpdate(cmd.Context()) {
		_, err = fmt.Fprintln(out, "A new version of the vocabulary is available. It will be used on the next start.")
	} else {
		_, err = fmt.Fprintln(out, "Vocabulary is up to date.")
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarize the cached vocabulary",
		Args:  cobra.NoArgs,
		RunE:  runInfoCmd,
	}
}

func runInfoCmd(cmd *cobra.Command, _ []string) error {
	st, c, err := openCache()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(cmd.Context(), c)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	if err := stats.RenderSummary(cmd.OutOrStdout(), report); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return renderNamespaces(cmd, st)
}

func renderNamespaces(cmd *cobra.Command, st *store.Store) error {
	names, err := st.Namespaces(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list cache namespaces: %w", err)
	}
	if len(names) == 0 {
		return nil
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, "\nOffline cache"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, name := range names {
		n, err := st.CountResponses(cmd.Context(), name)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", name, err)
		}
		if _, err := fmt.Fprintf(out, "%s: %d responses\n", name, n); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newSubjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subjects",
		Short: "List subjects of the vocabulary",
		Args:  cobra.NoArgs,
		RunE:  runSubjectsCmd,
	}
}

func runSubjectsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.LogLevel)
	svc, err := openServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if res := svc.state.Startup(cmd.Context()); res.Err != nil {
		logErrf("No vocabulary available: %v\n", res.Err)
		return fmt.Errorf("failed to load vocabulary: %w", res.Err)
	}
	for _, subject := range svc.state.Subjects() {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), subject); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse the cached vocabulary",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSubject, "subject", "", "subject filter")
	cmd.Flags().StringVar(&statsQuery, "search", "", "text filter")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	st, c, err := openCache()
	if err != nil {
		return err
	}
	defer closeStore(st)

	m := statsui.NewModel(cmd.Context(), c, statsui.Filter{Subject: statsSubject, Query: statsQuery})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newRedownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redownload",
		Short: "Clear the cached vocabulary and download it again",
		Args:  cobra.NoArgs,
		RunE:  runRedownloadCmd,
	}
	cmd.Flags().BoolVarP(&redownloadYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runRedownloadCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !redownloadYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to redownload without a terminal (use --yes)")
		}
		ok, err := confirm(cmd, "This will clear any saved progress. Continue? [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			logErrln("Cancelled.")
			return nil
		}
	}

	logger := newLogger(os.Stderr, cfg.LogLevel)
	svc, err := openServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	res := svc.state.Redownload(cmd.Context())
	if res.Err != nil {
		return fmt.Errorf("failed to download vocabulary: %w", res.Err)
	}
	logErrf("Downloaded %d cards.\n", len(res.Dataset))
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the cached vocabulary with a local file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

// runImportCmd seeds the cache for offline use. The record carries no
// freshness tokens, so the next check against the source reports an update.
func runImportCmd(cmd *cobra.Command, args []string) error {
	dataset, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	cleaned, dropped := parser.Clean(dataset)
	if dropped > 0 {
		logErrf("Skipped %d rows without term or meaning.\n", dropped)
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("no cards in %s", args[0])
	}

	st, c, err := openCache()
	if err != nil {
		return err
	}
	defer closeStore(st)

	if err := c.Store(cmd.Context(), model.CacheRecord{Dataset: cleaned}); err != nil {
		return fmt.Errorf("failed to store vocabulary: %w", err)
	}
	logErrf("Imported %d cards.\n", len(cleaned))
	return nil
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	if _, err := fmt.Fprint(cmd.ErrOrStderr(), prompt); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# flashdeck configuration
# Uncomment a value to enable it. FLASHDECK_* variables and %s
# override config values; CLI flags override everything.

# log-level = %q

[source]
# url = %q
# timeout = %q           # Request timeout (Go duration)
# retries = %d              # Retries for GET/HEAD on temporary failures

[practice]
# subject = %q         # Preselected subject
# size = %q              # Preselected deck size (number or "All")
# options = %d              # Answer options per game question (2-6)

[offline]
# shell-origin = ""         # Origin the shell assets are fetched from
# shell-assets = [%s]
# shell-version = %d        # Bump to replace the cached shell
# data-version = %d         # Bump to drop the cached dataset responses
# listen = %q
# allowed-origins = ["*"]
`,
		config.DefaultEnvPath(),
		defaultLogLevel,
		defaultSourceURL,
		defaultTimeout.String(),
		defaultRetries,
		model.SubjectMixed,
		defaultSize,
		defaultOptions,
		quoteList(defaultShellAssets),
		defaultShellVersion,
		defaultDataVersion,
		defaultListen,
	)
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
