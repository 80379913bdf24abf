package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
	reflowtruncate "github.com/muesli/reflow/truncate"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Loading…"
	}

	usableH := max(0, m.height-1) // footer hints
	footer := m.footerHints(m.width)
	if usableH == 0 {
		return footer
	}

	var body string
	switch {
	case m.cancelling && m.engineDone:
		body = lipgloss.Place(m.width, usableH, lipgloss.Center, lipgloss.Center, "Installation cancelled.")
	case !m.ready:
		line1 := m.spin.View() + " Checking host…"
		line2 := mutedStyle.Render("Starting installer…")
		body = lipgloss.Place(m.width, usableH, lipgloss.Center, lipgloss.Center, line1+"\n"+line2)
	case m.state.Phase == domain.PhasePreCheck || m.state.Phase == domain.PhaseSelect || m.state.Phase == domain.PhaseDone:
		body = m.renderListScreen(usableH)
	default:
		if m.layout.width != m.width || m.layout.height != usableH {
			m.reflow()
		}
		if m.layout.tooSmall {
			body = minSizeView(m.width, usableH)
			break
		}

		header := m.renderHeader(m.layout.leftW, m.layout.showLogo)
		steps := panelWithBadge("Steps", m.stepsBadge(), m.stepsVP.View(), m.layout.leftW, m.layout.stepsH)
		leftTop := lipgloss.JoinVertical(lipgloss.Top, header, steps)
		status := panel("Status", m.statusVP.View(), m.layout.rightW, m.layout.topAreaH)
		top := lipgloss.JoinHorizontal(lipgloss.Top, leftTop, strings.Repeat(" ", m.layout.gap), status)
		logs := panel("Log", m.logVP.View(), m.layout.width, m.layout.logH)
		body = lipgloss.JoinVertical(lipgloss.Top, top, logs)
	}

	out := lipgloss.JoinVertical(lipgloss.Top, body, footer)
	var modal string
	switch {
	case m.confirmQuitActive:
		modal = m.confirmQuitModal(usableH)
	case m.state.Question.Active && m.state.Phase == domain.PhaseRunning && !m.cancelling:
		modal = m.questionModal(usableH)
	}
	if modal != "" {
		x := max(0, (m.width-lipgloss.Width(modal))/2)
		y := max(0, (usableH-len(splitLines(modal)))/2)
		return overlayAt(out, m.width, m.height, modal, x, y)
	}
	return out
}

// renderListScreen stacks the header over one full-width panel.
func (m *Model) renderListScreen(height int) string {
	headerH := m.headerHeight()
	if m.width < 40 || height < headerH+6 {
		return minSizeView(m.width, height)
	}
	header := m.renderHeader(m.width, headerH == logoHeaderHeight)
	bodyH := height - headerH
	var content string
	switch m.state.Phase {
	case domain.PhasePreCheck:
		content = m.renderPreCheck(m.width, bodyH)
	case domain.PhaseSelect:
		content = m.renderSelect(m.width, bodyH)
	default:
		content = m.renderSummary(m.width, bodyH)
	}
	return lipgloss.JoinVertical(lipgloss.Top, header, content)
}

func (m *Model) keyHintsLine() string {
	switch {
	case m.state.Phase == domain.PhasePreCheck:
		return "↑/↓ Move  Space Toggle  Tab Actions  Enter Continue  q Quit"
	case m.state.Phase == domain.PhaseSelect:
		return "↑/↓ Move  Space Enable/skip  s Start  Esc Back  q Quit"
	case m.state.Phase == domain.PhaseDone:
		return "r Run again  Enter/q Quit"
	case m.state.Question.Active:
		return "Enter Answer  Esc Cancel  ctrl+c Cancel run  ctrl+q Quit"
	default:
		return "↑/↓ Scroll  PgUp/PgDn Page  End Follow  ctrl+c Cancel  ctrl+q Quit"
	}
}

func (m *Model) footerHints(width int) string {
	hint := mutedStyle.Render(truncatePlain(m.keyHintsLine(), width))
	return lipgloss.Place(width, 1, lipgloss.Center, lipgloss.Center, hint)
}

func (m *Model) stepsBadge() string {
	total, done := 0, 0
	for _, s := range m.state.Steps {
		if !s.Enabled {
			continue
		}
		total++
		if s.Status.Terminal() {
			done++
		}
	}
	if total == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", done, total)
}

func (m *Model) confirmQuitModal(height int) string {
	boxW := min(66, max(30, m.width-8))
	boxH := min(9, max(7, height-2))

	abort := "[ Abort ]"
	stay := "[ Continue ]"
	if m.confirmQuitSelected == 0 {
		abort = errStyle.Bold(true).Render(abort)
		stay = mutedStyle.Render(stay)
	} else {
		abort = mutedStyle.Render(abort)
		stay = okStyle.Bold(true).Render(stay)
	}

	contentW := panelContentWidth(boxW)
	content := truncatePlain("Abort the installation? The current step is cancelled.", contentW) +
		"\n\n" + truncateANSI(abort+"   "+stay, contentW) +
		"\n\n" + truncateANSI(mutedStyle.Render("Enter: select   Esc/Ctrl+Q: close"), contentW)
	return panel("Confirm exit", content, boxW, boxH)
}

func (m *Model) questionModal(height int) string {
	q := m.state.Question
	boxW := min(76, max(30, m.width-8))
	contentW := panelContentWidth(boxW)

	var lines []string
	for _, l := range wrapPlain(q.Prompt, contentW) {
		lines = append(lines, questionStyle.Render(l))
	}
	if d := strings.TrimSpace(q.Detail); d != "" {
		lines = append(lines, "")
		for _, l := range wrapPlain(d, contentW) {
			lines = append(lines, mutedStyle.Render(l))
		}
	}
	lines = append(lines, "")

	if isTextQuestion(q.Kind) {
		lines = append(lines, truncateANSI(m.input.View(), contentW))
		if len(q.Extensions) > 0 {
			lines = append(lines, mutedStyle.Render(truncatePlain("Accepted: "+strings.Join(q.Extensions, ", "), contentW)))
		}
	} else {
		var opts []string
		for i, opt := range q.Options {
			label := "[ " + opt.Label + " ]"
			switch {
			case !opt.Enabled:
				label = mutedStyle.Render(label)
			case i == q.Selected:
				label = selectedStyle.Foreground(lipgloss.Color("12")).Render(label)
			default:
				label = mutedStyle.Render(label)
			}
			opts = append(opts, label)
		}
		lines = append(lines, truncateANSI(strings.Join(opts, "  "), contentW))
	}
	lines = append(lines, "", mutedStyle.Render(truncatePlain("Enter: answer   Esc: cancel", contentW)))

	boxH := min(max(6, height-2), len(lines)+2)
	title := q.Title
	if title == "" {
		title = "Question"
	}
	return panel(title, strings.Join(lines, "\n"), boxW, boxH)
}

func overlayAt(base string, baseW, baseH int, overlay string, x, y int) string {
	if baseW <= 0 || baseH <= 0 || strings.TrimSpace(overlay) == "" {
		return base
	}

	baseLines := splitLines(base)
	if len(baseLines) > baseH {
		baseLines = baseLines[:baseH]
	}
	for len(baseLines) < baseH {
		baseLines = append(baseLines, "")
	}
	for i := range baseLines {
		baseLines[i] = padRight(truncateANSI(baseLines[i], baseW), baseW)
	}

	overlayLines := splitLines(overlay)
	overlayW := max(1, lipgloss.Width(overlay))
	x, y = max(0, x), max(0, y)
	if x >= baseW || y >= baseH {
		return strings.Join(baseLines, "\n")
	}

	for i, oline := range overlayLines {
		row := y + i
		if row >= baseH {
			break
		}
		oline = padRight(truncateANSI(oline, overlayW), overlayW)
		left := ansi.Cut(baseLines[row], 0, x)
		right := ansi.Cut(baseLines[row], x+overlayW, baseW)
		baseLines[row] = left + oline + right
	}
	return strings.Join(baseLines, "\n")
}

func (m *Model) renderHeader(width int, showLogo bool) string {
	if showLogo {
		if h, ok := m.renderLogoHeader(width); ok {
			return h
		}
	}
	contentW := panelContentWidth(width)
	line := versionStyle.Render(formatVersion(m.meta.Version)) + "  " + taglineStyle.Render(m.meta.tagline())
	return panel("FLIv2 Installer", truncateANSI(line, contentW), width, compactHeaderHeight)
}

func (m *Model) renderLogoHeader(width int) (string, bool) {
	innerW := panelContentWidth(width)
	innerH := panelBodyHeight(logoHeaderHeight)

	logoLines := splitLines(strings.Trim(logoText, "\n"))
	if len(logoLines) == 0 || len(logoLines) > innerH {
		return "", false
	}
	logoW := 0
	for _, l := range logoLines {
		logoW = max(logoW, lipgloss.Width(l))
	}

	const gap = 3
	metaW := innerW - logoW - gap
	if metaW < 12 {
		return "", false
	}
	meta := []string{
		versionStyle.Render(cutPlain(formatVersion(m.meta.Version), metaW)),
		taglineStyle.Render(cutPlain(m.meta.tagline(), metaW)),
	}
	if m.state.Host.OverallLabel != "" {
		ind, st := statusIndicator(m.state.Host.Overall)
		meta = append(meta, st.Render(ind)+" "+cutPlain("Host: "+m.state.Host.OverallLabel, metaW-2))
	}
	top := max(0, (len(logoLines)-len(meta))/2)

	out := make([]string, 0, innerH)
	pad := max(0, (innerH-len(logoLines))/2)
	for range pad {
		out = append(out, "")
	}
	for i, l := range logoLines {
		line := logoStyle.Render(padRight(l, logoW)) + strings.Repeat(" ", gap)
		if j := i - top; j >= 0 && j < len(meta) {
			line += meta[j]
		}
		out = append(out, line)
	}
	return panel("FLIv2 Installer", strings.Join(out, "\n"), width, logoHeaderHeight), true
}

func formatVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		v = "dev"
	}
	if strings.HasPrefix(strings.ToLower(v), "v") {
		return v
	}
	if v[0] >= '0' && v[0] <= '9' {
		return "v" + v
	}
	return v
}

func (m *Model) renderSteps(width int) string {
	lines := make([]string, 0, len(m.state.Steps))
	for i, s := range m.state.Steps {
		icon, iconStyle, labelStyle := stepMarker(s)
		label := fmt.Sprintf("%2d %s", i+1, s.Title)
		if s.Status == domain.StepRunning && s.Progress > 0 {
			label += fmt.Sprintf(" %d%%", s.Progress)
		}
		line := iconStyle.Render(icon) + " " + labelStyle.Render(truncatePlain(label, max(0, width-2)))
		lines = append(lines, truncateANSI(line, width))
	}
	if len(lines) == 0 {
		return truncatePlain("(no steps)", width)
	}
	return strings.Join(lines, "\n")
}

// renderStatus shows the running step with its progress bar above the host
// readiness checks.
func (m *Model) renderStatus(width int) string {
	var lines []string
	if s, ok := m.activeStep(); ok {
		lines = append(lines, selectedStyle.Render(truncatePlain(s.Title, width)))
		p := m.progress
		p.Width = max(5, width-5)
		lines = append(lines, p.ViewAs(float64(s.Progress)/100)+fmt.Sprintf(" %3d%%", s.Progress))
		if msg := strings.TrimSpace(s.Message); msg != "" {
			lines = append(lines, mutedStyle.Render(truncatePlain(msg, width)))
		}
		if pr := m.state.Progress; pr.Visible && pr.StepID == s.ID {
			lines = append(lines, mutedStyle.Render(truncatePlain(formatTransfer(pr), width)))
		}
		if elapsed := time.Since(m.state.StartedAt); !m.state.StartedAt.IsZero() {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("Elapsed %s", elapsed.Round(time.Second))))
		}
	} else if m.cancelling {
		lines = append(lines, m.spin.View()+" Cancelling…")
	} else {
		lines = append(lines, mutedStyle.Render("Waiting…"))
	}

	lines = append(lines, "")
	if len(m.state.Host.Items) == 0 {
		lines = append(lines, mutedStyle.Render("(no host checks)"))
	}
	for _, it := range m.state.Host.Items {
		ind, indStyle := statusIndicator(it.Level)
		text := it.Label
		if it.Details != "" {
			text += ": " + it.Details
		}
		lines = append(lines, truncateANSI(indStyle.Render(ind)+" "+truncatePlain(text, max(0, width-2)), width))
	}
	return strings.Join(lines, "\n")
}

func formatTransfer(p domain.ProgressState) string {
	unit := p.Unit
	cur, total := float64(p.Current), float64(p.Total)
	if unit == "bytes" {
		const mib = 1 << 20
		cur, total, unit = cur/mib, total/mib, "MiB"
		if p.Total <= 0 {
			return fmt.Sprintf("%.1f %s", cur, unit)
		}
		return fmt.Sprintf("%.1f / %.1f %s", cur, total, unit)
	}
	if p.Total <= 0 {
		return fmt.Sprintf("%d %s", p.Current, unit)
	}
	return fmt.Sprintf("%d / %d %s", p.Current, p.Total, unit)
}

func (m *Model) renderLogStream(width int) string {
	entries := m.state.Logs.Entries
	lines := make([]string, 0, len(entries))

	pulseIdx := -1
	if m.currentStep != "" && !m.engineDone && !m.cancelling {
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].StepID == m.currentStep {
				pulseIdx = i
				break
			}
		}
	}
	pulseA := taglineStyle.Bold(true)
	pulseB := versionStyle.Bold(true)

	for i, e := range entries {
		ts := e.TS
		if ts.IsZero() {
			ts = time.Now()
		}
		prefix, pStyle := logPrefix(e)
		if i == pulseIdx && e.Level == domain.LogInfo {
			prefix = "•"
			pStyle = pulseA
			if m.pulseOn {
				pStyle = pulseB
			}
		}

		timeStr := ts.Format("15:04:05")
		avail := max(0, width-lipgloss.Width(timeStr)-3)
		msg := highlightLogMessage(e.Message)
		if e.Source == "process" {
			msg = mutedStyle.Render(e.Message)
		}
		line := timeStr + " " + pStyle.Render(prefix) + " " + truncateANSI(msg, avail)
		lines = append(lines, truncateANSI(line, width))
	}
	if len(lines) == 0 {
		return truncatePlain("(no logs yet)", width)
	}
	return strings.Join(lines, "\n")
}

var (
	quotedRe = regexp.MustCompile(`"[^"]+"`)
	mhzRe    = regexp.MustCompile(`\b[0-9]+ MHz\b`)
	countRe  = regexp.MustCompile(`\b[0-9]+ (camera|file|DLL|model)s?\b`)
)

// highlightLogMessage colours the leading status icon and the values an
// operator looks for (quoted names, clock speeds, counts).
func highlightLogMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}
	icon, core := splitLeadingStatusIcon(message)
	hi := okStyle.Bold(true)
	for _, re := range []*regexp.Regexp{quotedRe, mhzRe, countRe} {
		core = re.ReplaceAllStringFunc(core, func(s string) string { return hi.Render(s) })
	}
	return rejoinLeadingStatusIcon(icon, core)
}

func splitLeadingStatusIcon(s string) (icon, rest string) {
	for _, ic := range []string{"✔", "✖", "⚠", "?"} {
		if strings.HasPrefix(s, ic+" ") {
			return ic, strings.TrimSpace(strings.TrimPrefix(s, ic+" "))
		}
	}
	return "", s
}

func rejoinLeadingStatusIcon(icon, core string) string {
	if icon == "" {
		return core
	}
	style := mutedStyle
	switch icon {
	case "✔":
		style = okStyle
	case "✖":
		style = errStyle
	case "⚠":
		style = warnStyle
	case "?":
		style = questionStyle
	}
	return style.Render(icon) + " " + core
}

func panel(title, body string, width, height int) string {
	return panelWithBadge(title, "", body, width, height)
}

func panelWithBadge(title, badge, body string, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	border := panelBorder
	innerW := max(0, width-2)
	innerH := max(0, height-2)
	contentW := panelContentWidth(width)

	out := make([]string, 0, height)
	out = append(out, topBorderWithTitle(width, title, badge, panelTitleStyle))
	for _, l := range fitLines(body, contentW, innerH) {
		out = append(out, border.Left+" "+l+" "+border.Right)
	}
	out = append(out, border.BottomLeft+strings.Repeat(border.Bottom, innerW)+border.BottomRight)
	return strings.Join(out, "\n")
}

func stepMarker(s domain.StepState) (string, lipgloss.Style, lipgloss.Style) {
	switch {
	case s.Status == domain.StepCompleted:
		return "✔", okStyle, lipgloss.NewStyle()
	case s.Status == domain.StepRunning:
		return "▣", activeStyle, lipgloss.NewStyle().Bold(true)
	case s.Status == domain.StepError:
		return "✖", errStyle, errStyle
	case !s.Enabled:
		return "–", mutedStyle, mutedStyle.Strikethrough(true)
	default:
		return "□", mutedStyle, mutedStyle
	}
}

func statusIndicator(level domain.StatusLevel) (string, lipgloss.Style) {
	switch level {
	case domain.StatusOK:
		return "●", okStyle
	case domain.StatusWarn:
		return "●", warnStyle
	default:
		return "●", errStyle
	}
}

func logPrefix(e domain.LogEntry) (string, lipgloss.Style) {
	switch {
	case e.Level == domain.LogError:
		return "✖", errStyle
	case e.Level == domain.LogWarning:
		return "⚠", warnStyle
	case e.Source == "process":
		return "│", mutedStyle
	default:
		return "•", mutedStyle
	}
}

func fitLines(s string, width, height int) []string {
	if height <= 0 || width <= 0 {
		return nil
	}
	raw := splitLines(s)
	out := make([]string, 0, height)
	for i := range height {
		line := ""
		if i < len(raw) {
			line = raw[i]
		}
		out = append(out, padRight(truncateANSI(line, width), width))
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

// wrapPlain breaks s on spaces so no line exceeds width cells.
func wrapPlain(s string, width int) []string {
	s = strings.TrimSpace(s)
	if s == "" || width <= 0 {
		return nil
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) <= width:
				line += " " + word
			default:
				out = append(out, truncatePlain(line, width))
				line = word
			}
		}
		out = append(out, truncatePlain(line, width))
	}
	return out
}

func truncatePlain(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 1 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "…")
}

func truncateANSI(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	if width <= 1 {
		return reflowtruncate.String(s, uint(width))
	}
	return reflowtruncate.StringWithTail(s, uint(width), "…")
}

func minSizeView(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Increase terminal size"
	}
	msgText := "Increase terminal size"
	if width < 22 {
		msgText = "Increase size"
	}
	msg := lipgloss.NewStyle().Bold(true).Render(truncatePlain(msgText, width))
	sub := lipgloss.NewStyle().Faint(true).Render(truncatePlain(fmt.Sprintf("Current: %dx%d", width, height), width))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg+"\n"+sub)
}
