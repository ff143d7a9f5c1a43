// Package tui provides the Bubble Tea flashcard interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/flashdeck/internal/app"
	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/session"
)

type screen int

const (
	screenLoading screen = iota
	screenHome
	screenSubject
	screenSize
	screenPractice
	screenGame
	screenSummary
	screenConfirm
)

const (
	menuPractice = iota
	menuGame
	menuRedownload
	menuQuit
)

var homeMenu = []string{"Practice", "Game", "Redownload vocabulary", "Quit"}

var sizePresets = []string{"5", "10", "20", model.SizeAll}

type loadedMsg struct {
	result app.LoadResult
}

type updateCheckedMsg struct {
	available bool
}

type workerSignalMsg struct{}

// Model implements the Bubble Tea flashcard UI.
type Model struct {
	ctx     context.Context
	state   *app.State
	gen     *deck.Generator
	config  model.Config
	signals <-chan struct{}
	logger  *slog.Logger

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width  int
	height int

	screen    screen
	busyLabel string
	loadErr   error

	mode    model.Mode
	menu    []string
	cursor  int
	subject string

	practice *session.Practice
	game     *session.Game
	feedback string
	summary  session.Summary

	updateAvailable bool
}

var (
	titleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	itemStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	disabledStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#73D13D"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	termStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	pronunciationSty = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cardStyle        = lipgloss.NewStyle().
				Padding(1, 4).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E1E")).
			Background(lipgloss.Color("#C89A3A")).
			Padding(0, 1)
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#FF4D4F")).
			Padding(1, 2)
)

// NewModel constructs the flashcard TUI. signals may be nil.
func NewModel(ctx context.Context, state *app.State, gen *deck.Generator, cfg model.Config, signals <-chan struct{}, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	return &Model{
		ctx:       ctx,
		state:     state,
		gen:       gen,
		config:    cfg,
		signals:   signals,
		logger:    logger,
		keys:      defaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		screen:    screenLoading,
		busyLabel: "Loading vocabulary",
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd(), m.waitForSignal())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		if m.screen != screenLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadedMsg:
		return m.handleLoaded(msg.result)
	case updateCheckedMsg:
		m.updateAvailable = msg.available || m.state.UpdatePending()
		return m, nil
	case workerSignalMsg:
		if m.screen == screenLoading {
			return m, m.waitForSignal()
		}
		return m, tea.Batch(m.checkCmd(), m.waitForSignal())
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{result: m.state.Startup(m.ctx)}
	}
}

func (m *Model) redownloadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{result: m.state.Redownload(m.ctx)}
	}
}

func (m *Model) checkCmd() tea.Cmd {
	return func() tea.Msg {
		return updateCheckedMsg{available: m.state.CheckForUpdate(m.ctx)}
	}
}

func (m *Model) waitForSignal() tea.Cmd {
	if m.signals == nil {
		return nil
	}
	signals := m.signals
	return func() tea.Msg {
		if _, ok := <-signals; !ok {
			return nil
		}
		return workerSignalMsg{}
	}
}

func (m *Model) handleLoaded(res app.LoadResult) (tea.Model, tea.Cmd) {
	m.loadErr = res.Err
	m.showHome()
	if res.FromCache {
		return m, m.checkCmd()
	}
	m.updateAvailable = false
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.screen == screenLoading {
		return m, nil
	}
	if m.updateAvailable && key.Matches(msg, m.keys.Refresh) {
		m.applyUpdate()
		return m, nil
	}

	switch m.screen {
	case screenHome:
		return m.updateHome(msg)
	case screenSubject:
		return m.updateSubject(msg)
	case screenSize:
		return m.updateSize(msg)
	case screenPractice:
		return m.updatePractice(msg)
	case screenGame:
		return m.updateGame(msg)
	case screenSummary:
		if key.Matches(msg, m.keys.Select, m.keys.Back) {
			m.showHome()
		}
		return m, nil
	case screenConfirm:
		return m.updateConfirm(msg)
	default:
		return m, nil
	}
}

func (m *Model) updateHome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Retry):
		if m.loadErr != nil {
			return m, m.startLoading("Loading vocabulary", m.loadCmd())
		}
	case key.Matches(msg, m.keys.Select):
		switch m.cursor {
		case menuPractice, menuGame:
			if len(m.state.Dataset()) == 0 {
				return m, nil
			}
			m.mode = model.ModePractice
			if m.cursor == menuGame {
				m.mode = model.ModeGame
			}
			m.showSubjects()
		case menuRedownload:
			m.screen = screenConfirm
		case menuQuit:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) updateSubject(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.showHome()
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Select):
		m.subject = m.menu[m.cursor]
		m.showSizes()
	}
	return m, nil
}

func (m *Model) updateSize(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.showSubjects()
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Select):
		size, err := deck.ParseSize(m.menu[m.cursor])
		if err != nil {
			m.logger.Warn("invalid deck size", "size", m.menu[m.cursor], "err", err)
			return m, nil
		}
		m.startSession(size)
	}
	return m, nil
}

func (m *Model) updatePractice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.showHome()
	case m.practice.Done():
		if key.Matches(msg, m.keys.Select) {
			m.showHome()
		}
	case key.Matches(msg, m.keys.Flip):
		m.practice.Flip()
	case key.Matches(msg, m.keys.Next):
		m.practice.Advance()
		if m.practice.Done() {
			m.finish(m.practice.Summary())
		}
	}
	return m, nil
}

func (m *Model) updateGame(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.showHome()
		return m, nil
	}
	if m.game.Done() {
		if key.Matches(msg, m.keys.Select) {
			m.showHome()
		}
		return m, nil
	}
	q, _ := m.game.Question()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = wrapIndex(m.cursor-1, len(q.Options))
	case key.Matches(msg, m.keys.Down):
		m.cursor = wrapIndex(m.cursor+1, len(q.Options))
	case key.Matches(msg, m.keys.Choose):
		n, err := strconv.Atoi(msg.String())
		if err != nil || n > len(q.Options) {
			return m, nil
		}
		m.answer(n - 1)
	case key.Matches(msg, m.keys.Select):
		m.answer(m.cursor)
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.logger.Info("redownload confirmed")
		m.practice = nil
		m.game = nil
		return m, m.startLoading("Downloading vocabulary", m.redownloadCmd())
	case key.Matches(msg, m.keys.Cancel):
		m.showHome()
	}
	return m, nil
}

func (m *Model) startLoading(label string, cmd tea.Cmd) tea.Cmd {
	m.screen = screenLoading
	m.busyLabel = label
	return tea.Batch(m.spinner.Tick, cmd)
}

func (m *Model) answer(choice int) {
	q, _ := m.game.Question()
	correct, err := m.game.Answer(choice)
	if err != nil {
		if !errors.Is(err, session.ErrInvalidChoice) {
			m.logger.Warn("answer rejected", "session", m.game.ID(), "err", err)
		}
		return
	}
	if correct {
		m.feedback = correctStyle.Render("Correct!")
	} else {
		m.feedback = incorrectStyle.Render(fmt.Sprintf("Wrong! %s means %s.", q.Card.Term, q.Card.Meaning))
	}
	m.cursor = 0
	if m.game.Done() {
		m.finish(m.game.Summary())
	}
}

func (m *Model) startSession(size int) {
	dataset := m.state.Dataset()
	cards := m.gen.Generate(dataset, m.subject, size)
	m.cursor = 0
	m.feedback = ""
	switch m.mode {
	case model.ModeGame:
		m.game = session.NewGame(cards, dataset, m.config.Options, m.gen)
		m.screen = screenGame
		m.logger.Info("session started", "session", m.game.ID(), "mode", m.mode, "subject", m.subject, "cards", len(cards))
	default:
		m.practice = session.NewPractice(cards)
		m.screen = screenPractice
		m.logger.Info("session started", "session", m.practice.ID(), "mode", m.mode, "subject", m.subject, "cards", len(cards))
	}
}

func (m *Model) finish(summary session.Summary) {
	m.summary = summary
	m.screen = screenSummary
	m.logger.Info("session finished", "session", summary.ID, "mode", summary.Mode, "score", summary.Score, "total", summary.Total)
}

func (m *Model) applyUpdate() {
	dataset := m.state.ApplyUpdate(m.ctx)
	m.updateAvailable = false
	m.practice = nil
	m.game = nil
	m.logger.Info("vocabulary refreshed", "cards", len(dataset))
	m.showHome()
}

func (m *Model) showHome() {
	m.screen = screenHome
	m.menu = homeMenu
	m.cursor = 0
}

func (m *Model) showSubjects() {
	m.screen = screenSubject
	m.menu = m.state.Subjects()
	m.cursor = indexOf(m.menu, m.config.Subject)
}

func (m *Model) showSizes() {
	m.screen = screenSize
	m.menu = sizePresets
	if m.config.Size != "" && !slices.Contains(sizePresets, m.config.Size) {
		m.menu = append(slices.Clone(sizePresets), m.config.Size)
	}
	m.cursor = indexOf(m.menu, m.config.Size)
}

func (m *Model) moveCursor(delta int) {
	m.cursor = wrapIndex(m.cursor+delta, len(m.menu))
}

func wrapIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func indexOf(items []string, value string) int {
	return max(slices.Index(items, value), 0)
}
