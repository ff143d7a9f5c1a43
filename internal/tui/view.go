package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/flashdeck/internal/model"
	"github.com/verte-zerg/flashdeck/internal/session"
	"github.com/verte-zerg/flashdeck/internal/stats"
)

const updateNotice = "A new version of the vocabulary is available. Press R to refresh."

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderBody()
	if m.updateAvailable {
		content = bannerStyle.Render(updateNotice) + "\n\n" + content
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderBody() string {
	switch m.screen {
	case screenLoading:
		return m.spinner.View() + " " + m.busyLabel + "…"
	case screenHome:
		return m.renderHome()
	case screenSubject:
		return titleStyle.Render("Choose a subject") + "\n\n" + m.renderMenu(nil)
	case screenSize:
		return titleStyle.Render("How many cards?") + "\n\n" + m.renderMenu(nil)
	case screenPractice:
		return m.renderPractice()
	case screenGame:
		return m.renderGame()
	case screenSummary:
		return m.renderSummary()
	case screenConfirm:
		return modalStyle.Render("This will clear any saved progress and download the vocabulary again.\n\nContinue? (y/n)")
	default:
		return ""
	}
}

func (m *Model) renderHome() string {
	empty := len(m.state.Dataset()) == 0
	lines := []string{titleStyle.Render("flashdeck")}
	switch {
	case m.loadErr != nil:
		lines = append(lines, incorrectStyle.Render(fmt.Sprintf("Could not load vocabulary: %v", m.loadErr)),
			pendingStyle.Render("Press t to retry."))
	case empty:
		lines = append(lines, pendingStyle.Render("The vocabulary is empty."))
	default:
		lines = append(lines, pendingStyle.Render(fmt.Sprintf("%d cards", len(m.state.Dataset()))))
	}
	disabled := map[int]bool{}
	if empty {
		disabled[menuPractice] = true
		disabled[menuGame] = true
	}
	return strings.Join(lines, "\n") + "\n\n" + m.renderMenu(disabled)
}

func (m *Model) renderMenu(disabled map[int]bool) string {
	lines := make([]string, 0, len(m.menu))
	for i, item := range m.menu {
		switch {
		case disabled[i]:
			lines = append(lines, disabledStyle.Render("  "+item))
		case i == m.cursor:
			lines = append(lines, selectedStyle.Render("> "+item))
		default:
			lines = append(lines, itemStyle.Render("  "+item))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPractice() string {
	p := m.practice
	if p.Len() == 0 {
		return emptyDeckNotice(m.subject)
	}
	card, ok := p.Current()
	if !ok {
		return ""
	}
	front := termStyle.Render(card.Term)
	if card.Pronunciation != "" {
		front += "\n" + pronunciationSty.Render(card.Pronunciation)
	}
	if p.Flipped() {
		front += "\n\n" + selectedStyle.Render(card.Meaning)
	} else {
		front += "\n\n" + disabledStyle.Render("press f to flip")
	}
	progress := pendingStyle.Render(fmt.Sprintf("Card %d / %d · %s", p.Position()+1, p.Len(), m.subject))
	return progress + "\n\n" + cardStyle.Render(front)
}

func (m *Model) renderGame() string {
	g := m.game
	if g.Len() == 0 {
		return emptyDeckNotice(m.subject)
	}
	q, ok := g.Question()
	if !ok {
		return ""
	}
	lines := []string{
		pendingStyle.Render(fmt.Sprintf("Question %d / %d · Score %d", g.Position()+1, g.Len(), g.Score())),
	}
	if m.feedback != "" {
		lines = append(lines, m.feedback)
	}
	prompt := termStyle.Render(q.Card.Term)
	if q.Card.Pronunciation != "" {
		prompt += "\n" + pronunciationSty.Render(q.Card.Pronunciation)
	}
	lines = append(lines, "", cardStyle.Render(prompt), "")
	for i, opt := range q.Options {
		label := fmt.Sprintf("%d. %s", i+1, opt.Text)
		switch {
		case i == m.cursor:
			lines = append(lines, selectedStyle.Render("> "+label))
		case opt.Placeholder:
			lines = append(lines, disabledStyle.Render("  "+label))
		default:
			lines = append(lines, itemStyle.Render("  "+label))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSummary() string {
	lines := []string{titleStyle.Render("Session complete")}
	if m.feedback != "" && m.summary.Mode == model.ModeGame {
		lines = append(lines, m.feedback)
	}
	lines = append(lines, "", summaryLine(m.summary))
	return strings.Join(lines, "\n")
}

func summaryLine(s session.Summary) string {
	if s.Mode == model.ModeGame {
		acc := stats.GameMetrics(s.Score, s.Total)
		return fmt.Sprintf("Score %d / %d · %.1f%%", s.Score, s.Total, acc*100)
	}
	return fmt.Sprintf("Reviewed %d cards", s.Total)
}

func emptyDeckNotice(subject string) string {
	return incorrectStyle.Render(fmt.Sprintf("No cards for %s.", subject)) + "\n\n" +
		disabledStyle.Render("[ Start ]") + "\n\n" + pendingStyle.Render("Press enter to go back.")
}

func (m *Model) renderFooter() string {
	bindings := m.footerBindings()
	if len(bindings) == 0 {
		return ""
	}
	return footerStyle.Render(m.help.ShortHelpView(bindings))
}

func (m *Model) footerBindings() []key.Binding {
	var out []key.Binding
	switch m.screen {
	case screenHome:
		out = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select}
		if m.loadErr != nil {
			out = append(out, m.keys.Retry)
		}
		out = append(out, m.keys.Quit)
	case screenSubject, screenSize:
		out = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Back}
	case screenPractice:
		out = []key.Binding{m.keys.Flip, m.keys.Next, m.keys.Back}
	case screenGame:
		out = []key.Binding{m.keys.Choose, m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Back}
	case screenSummary:
		out = []key.Binding{m.keys.Select}
	case screenConfirm:
		out = []key.Binding{m.keys.Confirm, m.keys.Cancel}
	}
	if m.updateAvailable && m.screen != screenLoading {
		out = append(out, m.keys.Refresh)
	}
	return out
}
