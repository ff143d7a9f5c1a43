// Package statsui provides the Bubble Tea interface for browsing the cached
// vocabulary.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/flashdeck/internal/deck"
	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/stats"
)

const (
	tabOverview = iota
	tabCards
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Filter narrows the cards tab.
type Filter struct {
	Subject string
	// Query matches term, pronunciation or meaning, case-insensitively.
	Query string
}

// Model implements the Bubble Tea vocabulary browser.
type Model struct {
	ctx    context.Context
	loader stats.RecordLoader
	filter Filter

	dataset model.Dataset
	report  stats.Report
	errMsg  string

	tabs       []string
	activeTab  int
	viewport   viewport.Model
	cardTable  table.Model
	cardLayout tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableLayout struct {
	width  int
	height int
}

// NewModel constructs a browser over the cached record.
func NewModel(ctx context.Context, loader stats.RecordLoader, filter Filter) *Model {
	m := &Model{
		ctx:    ctx,
		loader: loader,
		filter: filter,
		tabs:   []string{"Overview", "Cards"},
	}
	m.viewport = viewport.New(0, 0)
	m.cardTable = table.New(table.WithColumns(cardColumns(80)), table.WithHeight(1))
	m.cardTable.SetStyles(cardTableStyles())
	m.initInputs()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.refreshReport()
			m.updateLayout()
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if m.activeTab == tabCards {
				m.cardTable.GotoTop()
			} else {
				m.viewport.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabCards {
				m.cardTable.GotoBottom()
			} else {
				m.viewport.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabCards {
				m.cardTable, cmd = m.cardTable.Update(msg)
				return m, cmd
			}
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Visible returns the cards the current filter selects.
func (m *Model) Visible() model.Dataset {
	return filterCards(m.dataset, m.filter)
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Subject: "),
		newFilterInput("Search: "),
	}
	m.filterInputs[0].Placeholder = model.SubjectMixed
	m.setInputsFromFilter()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromFilter() {
	m.filterInputs[0].SetValue(m.filter.Subject)
	m.filterInputs[1].SetValue(m.filter.Query)
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.viewport.Width = m.width
	m.viewport.Height = bodyHeight
	m.setCardTableSize(m.width, bodyHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = max(10, m.width-promptWidth-2)
	}
}

func (m *Model) setCardTableSize(width, height int) {
	tableHeight := max(1, height-1)
	if m.cardLayout.width == width && m.cardLayout.height == tableHeight {
		return
	}
	m.cardLayout = tableLayout{width: width, height: tableHeight}
	m.cardTable.SetColumns(cardColumns(width))
	m.cardTable.SetWidth(width)
	m.cardTable.SetHeight(tableHeight)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabCards {
		m.cardTable.Focus()
	} else {
		m.cardTable.Blur()
	}
}

func (m *Model) refreshReport() {
	record, ok, err := m.loader.Load(m.ctx)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load vocabulary: %v", err)
		m.viewport.SetContent("Failed to load vocabulary.")
		return
	}
	m.errMsg = ""
	m.dataset = nil
	m.report = stats.Report{}
	if ok {
		m.dataset = record.Dataset
		m.report = stats.Summarize(record.Dataset)
		m.report.Freshness = record.Freshness
		m.report.UpdatePending = record.UpdatePending
	}
	m.applyCardRows()
	m.renderTabContents()
}

func (m *Model) applyCardRows() {
	visible := m.Visible()
	rows := make([]table.Row, 0, len(visible))
	for _, card := range visible {
		rows = append(rows, table.Row{card.Term, card.Pronunciation, card.Meaning, card.Subject})
	}
	m.cardTable.SetRows(rows)
	m.cardTable.GotoTop()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewport.SetContent(renderOverview(m.report, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	subject := m.filter.Subject
	if subject == "" {
		subject = model.SubjectMixed
	}
	query := m.filter.Query
	if query == "" {
		query = "any"
	}
	summary := fmt.Sprintf("Filter: subject=%s  search=%s  showing=%d/%d", subject, query, len(m.Visible()), len(m.dataset))
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Filter: /  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabCards {
		if len(m.dataset) == 0 {
			return fitLines("No vocabulary cached.", m.width, height)
		}
		if len(m.Visible()) == 0 {
			return fitLines("No cards match the filter.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.cardTable.View()), m.width, height)
	}
	return fitLines(m.viewport.View(), m.width, height)
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filter (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromFilter()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.applyCardRows()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	subject := strings.TrimSpace(m.filterInputs[0].Value())
	if subject != "" && subject != model.SubjectMixed && !hasSubject(m.report.Subjects, subject) {
		return fmt.Errorf("unknown subject %q", subject)
	}
	m.filter = Filter{
		Subject: subject,
		Query:   strings.TrimSpace(m.filterInputs[1].Value()),
	}
	return nil
}

func hasSubject(counts []stats.SubjectCount, subject string) bool {
	for _, c := range counts {
		if c.Subject == subject {
			return true
		}
	}
	return false
}

func filterCards(dataset model.Dataset, filter Filter) model.Dataset {
	cards := deck.Filter(dataset, filter.Subject)
	query := strings.ToLower(filter.Query)
	if query == "" {
		return cards
	}
	out := cards[:0]
	for _, card := range cards {
		if strings.Contains(strings.ToLower(card.Term), query) ||
			strings.Contains(strings.ToLower(card.Pronunciation), query) ||
			strings.Contains(strings.ToLower(card.Meaning), query) {
			out = append(out, card)
		}
	}
	return out
}

func renderOverview(report stats.Report, width int) string {
	if report.Cards == 0 {
		return "No vocabulary cached."
	}
	summary := renderSummaryCards(report, width)
	if len(report.Subjects) == 0 {
		return summary
	}
	var buf bytes.Buffer
	if err := stats.RenderSubjectTable(&buf, report.Subjects); err != nil {
		return fmt.Sprintf("%s\n\nFailed to render subjects: %v", summary, err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(report stats.Report, width int) string {
	pending := "no"
	if report.UpdatePending {
		pending = "yes"
	}
	version := report.Freshness.ETag
	if version == "" {
		version = report.Freshness.LastModified
	}
	if version == "" {
		version = "unknown"
	}
	cards := []string{
		metricCard("Cards", fmt.Sprintf("%d", report.Cards)),
		metricCard("Subjects", fmt.Sprintf("%d", len(report.Subjects))),
		metricCard("No subject", fmt.Sprintf("%d", report.Unlabeled)),
		metricCard("Version", truncateLine(version, 24)),
		metricCard("Update pending", pending),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func cardColumns(width int) []table.Column {
	// Term, pronunciation and subject get a fixed share; meaning takes the rest.
	term := max(8, width/5)
	pron := max(8, width/5)
	subject := max(8, width/6)
	meaning := max(10, width-term-pron-subject-4)
	return []table.Column{
		{Title: "Term", Width: term},
		{Title: "Pronunciation", Width: pron},
		{Title: "Meaning", Width: meaning},
		{Title: "Subject", Width: subject},
	}
}

func cardTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
