package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

type layoutState struct {
	width  int
	height int

	gap int

	leftW  int
	rightW int

	headerH  int
	stepsH   int
	logH     int
	topAreaH int

	showLogo bool
	tooSmall bool
}

const (
	compactHeaderHeight = 3
	logoHeaderHeight    = 8
)

func (m *Model) reflow() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	usableH := max(0, m.height-1) // footer hints
	m.layout = computeLayout(m.width, usableH, len(m.state.Steps))
	if m.layout.tooSmall {
		return
	}

	m.stepsVP.Width = panelContentWidth(m.layout.leftW)
	m.stepsVP.Height = panelBodyHeight(m.layout.stepsH)
	m.stepsVP.SetContent(m.renderSteps(m.stepsVP.Width))
	m.keepActiveStepVisible()

	m.statusVP.Width = panelContentWidth(m.layout.rightW)
	m.statusVP.Height = panelBodyHeight(m.layout.topAreaH)
	m.statusVP.SetContent(m.renderStatus(m.statusVP.Width))

	m.logVP.Width = panelContentWidth(m.layout.width)
	m.logVP.Height = panelBodyHeight(m.layout.logH)
	m.logVP.SetContent(m.renderLogStream(m.logVP.Width))
	if m.followLogs {
		m.logVP.GotoBottom()
	}

	m.input.Width = max(10, min(60, m.width-16))
}

func computeLayout(width, height, stepsCount int) layoutState {
	if width >= 90 {
		if l := computeLayoutWithHeader(width, height, stepsCount, true); !l.tooSmall {
			return l
		}
	}
	return computeLayoutWithHeader(width, height, stepsCount, false)
}

func computeLayoutWithHeader(width, height, stepsCount int, showLogo bool) layoutState {
	const (
		gap      = 1
		minColW  = 36
		minStepH = 4 // border + 2 lines
		minLogH  = 5
	)

	headerH := compactHeaderHeight
	if showLogo {
		headerH = logoHeaderHeight
	}
	l := layoutState{width: width, height: height, gap: gap, headerH: headerH, showLogo: showLogo}

	available := width - gap
	if width <= 0 || height <= 0 || available < 2*minColW {
		l.tooSmall = true
		return l
	}
	// The step list gets a little more room than the status column.
	l.leftW = available * 11 / 20
	l.rightW = available - l.leftW
	if l.rightW < minColW {
		l.rightW = minColW
		l.leftW = available - minColW
	}

	maxTop := height - minLogH
	if maxTop < headerH+minStepH {
		l.tooSmall = true
		return l
	}
	l.stepsH = min(max(stepsCount, 1)+2, maxTop-headerH)
	if l.stepsH < minStepH {
		l.tooSmall = true
		return l
	}
	l.topAreaH = headerH + l.stepsH
	l.logH = height - l.topAreaH
	return l
}

func panelContentWidth(panelWidth int) int {
	// Border 2, padding 2.
	return max(0, panelWidth-4)
}

// panelBodyHeight excludes the borders; titles live in the top border.
func panelBodyHeight(panelHeight int) int {
	return max(0, panelHeight-2)
}

// keepActiveStepVisible scrolls the step list so the running step is in view.
func (m *Model) keepActiveStepVisible() {
	idx := -1
	for i, s := range m.state.Steps {
		if s.Status == domain.StepRunning {
			idx = i
			break
		}
	}
	if idx < 0 || m.stepsVP.Height <= 0 {
		return
	}
	if idx < m.stepsVP.YOffset || idx >= m.stepsVP.YOffset+m.stepsVP.Height {
		m.stepsVP.SetYOffset(max(0, idx-m.stepsVP.Height/2))
	}
}

func padRight(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// listWindow returns the first index of a height-row window over n items
// that keeps cursor roughly centred.
func listWindow(n, height, cursor int) int {
	if n <= height || height <= 0 {
		return 0
	}
	start := cursor - height/2
	return max(0, min(start, n-height))
}
