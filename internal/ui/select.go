package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

func (m *Model) handlePreCheckKey(lowerKey string) tea.Cmd {
	n := len(m.state.PreChecks)
	if m.moveCursor(lowerKey, n) {
		return nil
	}
	switch lowerKey {
	case " ", "space", "x":
		if m.focus == focusList && m.cursor < n {
			m.sendAction(domain.Action{Type: domain.ActionTogglePreCheck, Target: m.state.PreChecks[m.cursor].ID})
		}
	case "enter":
		if m.focus == focusList && m.cursor < n {
			// Enter on an item toggles it; the action row continues.
			m.sendAction(domain.Action{Type: domain.ActionTogglePreCheck, Target: m.state.PreChecks[m.cursor].ID})
			return nil
		}
		if !domain.PreChecksSatisfied(m.state.PreChecks) {
			m.notice = "Confirm every item before continuing."
			return nil
		}
		m.state.Phase = domain.PhaseSelect
		m.cursor, m.focus, m.notice = 0, focusList, ""
	case "q", "esc":
		return m.quit()
	}
	return nil
}

func (m *Model) handleSelectKey(lowerKey string) tea.Cmd {
	n := len(m.state.Steps)
	if m.moveCursor(lowerKey, n) {
		return nil
	}
	switch lowerKey {
	case " ", "space", "x":
		if m.focus == focusList && m.cursor < n {
			m.sendAction(domain.Action{Type: domain.ActionToggleStep, Target: m.state.Steps[m.cursor].ID})
		}
	case "enter", "s":
		if lowerKey == "enter" && m.focus == focusList && m.cursor < n {
			m.sendAction(domain.Action{Type: domain.ActionToggleStep, Target: m.state.Steps[m.cursor].ID})
			return nil
		}
		if enabledCount(m.state.Steps) == 0 {
			m.notice = "Enable at least one step."
			return nil
		}
		m.sendAction(domain.Action{Type: domain.ActionStart})
		m.beginRun()
	case "esc", "backspace":
		if len(m.state.PreChecks) > 0 {
			m.state.Phase = domain.PhasePreCheck
			m.cursor, m.focus, m.notice = 0, focusList, ""
		}
	case "q":
		return m.quit()
	}
	return nil
}

func (m *Model) handleSummaryKey(lowerKey string) tea.Cmd {
	switch lowerKey {
	case "r":
		if m.engineDone {
			return nil
		}
		m.state.Phase = domain.PhaseSelect
		m.cursor, m.focus, m.notice = 0, focusList, ""
	case "enter", "q", "esc":
		return m.quit()
	default:
		m.scrollLogs(lowerKey)
	}
	return nil
}

// moveCursor handles list navigation shared by the list screens. Moving
// past the last item lands on the action row.
func (m *Model) moveCursor(lowerKey string, n int) bool {
	switch lowerKey {
	case "up", "k":
		if m.focus == focusActions {
			m.focus = focusList
			m.cursor = max(0, n-1)
			return true
		}
		m.cursor = max(0, m.cursor-1)
	case "down", "j":
		if m.cursor >= n-1 {
			m.focus = focusActions
			return true
		}
		m.cursor++
	case "tab", "shift+tab":
		if m.focus == focusList {
			m.focus = focusActions
		} else {
			m.focus = focusList
		}
	case "home":
		m.cursor, m.focus = 0, focusList
	case "end":
		m.cursor, m.focus = max(0, n-1), focusList
	case "pgup", "pageup":
		m.cursor = max(0, m.cursor-m.listHeight())
	case "pgdown", "pagedown":
		m.cursor = max(0, min(n-1, m.cursor+m.listHeight()))
	default:
		return false
	}
	return true
}

func enabledCount(steps []domain.StepState) int {
	n := 0
	for _, s := range steps {
		if s.Enabled {
			n++
		}
	}
	return n
}

func (m *Model) listHeight() int {
	usableH := max(0, m.height-1)
	h := panelBodyHeight(usableH-m.headerHeight()) - 4
	return max(1, h)
}

func (m *Model) headerHeight() int {
	if m.width >= 90 && m.height >= 24 {
		return logoHeaderHeight
	}
	return compactHeaderHeight
}

func (m *Model) renderPreCheck(width, height int) string {
	contentW := panelContentWidth(width)
	lines := []string{
		truncatePlain("Confirm each item before installing. Space toggles.", contentW),
		"",
	}
	listH := max(1, panelBodyHeight(height)-len(lines)-2)

	items := m.state.PreChecks
	start := listWindow(len(items), listH, m.cursor)
	var list []string
	for i := start; i < len(items) && len(list) < listH; i++ {
		it := items[i]
		check := "[ ]"
		if it.Checked {
			check = okStyle.Render("[x]")
		}
		cursor, style := " ", inputStyle
		if i == m.cursor && m.focus == focusList {
			cursor, style = ">", selectedStyle
		}
		line := cursor + " " + check + " " + style.Render(truncatePlain(it.Question, max(0, contentW-6)))
		list = append(list, line)
		if d := strings.TrimSpace(it.Description); d != "" && len(list) < listH {
			list = append(list, "      "+mutedStyle.Render(truncatePlain(d, max(0, contentW-6))))
		}
	}
	lines = append(lines, fitLines(strings.Join(list, "\n"), contentW, listH)...)

	ready := domain.PreChecksSatisfied(items)
	lines = append(lines, m.renderNotice(contentW), m.renderActions(contentW, "Continue", ready, "Quit"))
	badge := fmt.Sprintf("%d/%d", checkedCount(items), len(items))
	return panelWithBadge("Pre-installation checks", badge, strings.Join(lines, "\n"), width, height)
}

func checkedCount(items []domain.PreCheckItem) int {
	n := 0
	for _, it := range items {
		if it.Checked {
			n++
		}
	}
	return n
}

func (m *Model) renderSelect(width, height int) string {
	contentW := panelContentWidth(width)
	lines := []string{
		truncatePlain("Steps run top to bottom. Space skips or re-enables a step, s starts.", contentW),
		"",
	}
	listH := max(1, panelBodyHeight(height)-len(lines)-2)

	steps := m.state.Steps
	start := listWindow(len(steps), listH, m.cursor)
	var list []string
	for i := start; i < len(steps) && len(list) < listH; i++ {
		s := steps[i]
		check := okStyle.Render("[x]")
		style := inputStyle
		if !s.Enabled {
			check, style = "[ ]", mutedStyle
		}
		cursor := " "
		if i == m.cursor && m.focus == focusList {
			cursor, style = ">", selectedStyle
		}
		label := fmt.Sprintf("%2d. %s", i+1, s.Title)
		if s.Description != "" {
			label += mutedStyle.Render(" - " + s.Description)
		}
		list = append(list, truncateANSI(cursor+" "+check+" "+style.Render(label), contentW))
	}
	lines = append(lines, fitLines(strings.Join(list, "\n"), contentW, listH)...)
	lines = append(lines, m.renderNotice(contentW), m.renderActions(contentW, "Start installation", enabledCount(steps) > 0, "Back"))

	badge := fmt.Sprintf("%d of %d enabled", enabledCount(steps), len(steps))
	return panelWithBadge("Installation steps", badge, strings.Join(lines, "\n"), width, height)
}

func (m *Model) renderNotice(width int) string {
	if m.notice == "" {
		return ""
	}
	return warnStyle.Render(truncatePlain("⚠ "+m.notice, width))
}

func (m *Model) renderActions(width int, primary string, primaryReady bool, secondary string) string {
	pStyle, sStyle := mutedStyle, mutedStyle
	if m.focus == focusActions {
		pStyle = okStyle.Bold(true)
	}
	if !primaryReady {
		pStyle = mutedStyle
	}
	line := pStyle.Render("[ "+primary+" ]") + "  " + sStyle.Render("[ Esc: "+secondary+" ]")
	return padRight(truncateANSI(line, width), width)
}

func (m *Model) renderSummary(width, height int) string {
	contentW := panelContentWidth(width)
	res := m.state.Result
	var lines []string

	if res == nil {
		lines = append(lines, mutedStyle.Render("No result."))
	} else {
		if res.OK {
			lines = append(lines, okStyle.Bold(true).Render("✔ Installation completed successfully."))
		} else {
			lines = append(lines, errStyle.Bold(true).Render("✖ Installation failed."))
			if res.FailedAt != "" {
				lines = append(lines, "Failed step: "+m.stepTitle(res.FailedAt))
			}
			if res.Error != "" {
				lines = append(lines, "Reason: "+truncatePlain(res.Error, max(0, contentW-8)))
			}
		}
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("Run %s, %s", shortID(res.RunID), res.Duration.Round(time.Second))))
	}
	if m.meta.LogDir != "" {
		lines = append(lines, mutedStyle.Render(truncatePlain("Logs: "+m.meta.LogDir, contentW)))
	}
	lines = append(lines, "")

	counts := map[domain.StepStatus]int{}
	skipped := 0
	for _, s := range m.state.Steps {
		if !s.Enabled && s.Status == domain.StepPending {
			skipped++
			continue
		}
		counts[s.Status]++
	}
	lines = append(lines, fmt.Sprintf("%s %d completed   %s %d failed   %s %d not run   %d skipped",
		okStyle.Render("✔"), counts[domain.StepCompleted],
		errStyle.Render("✖"), counts[domain.StepError],
		mutedStyle.Render("□"), counts[domain.StepPending],
		skipped))
	lines = append(lines, "")

	bodyH := panelBodyHeight(height)
	listH := max(0, bodyH-len(lines)-2)
	lines = append(lines, fitLines(m.renderSteps(contentW), contentW, listH)...)

	hint := "Enter/q Quit"
	if !m.engineDone {
		hint = "r Run again   " + hint
	}
	lines = append(lines, "", mutedStyle.Render(truncatePlain(hint, contentW)))
	return panel("Summary", strings.Join(lines, "\n"), width, height)
}

func (m *Model) stepTitle(id string) string {
	for _, s := range m.state.Steps {
		if s.ID == id && s.Title != "" {
			return s.Title
		}
	}
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
