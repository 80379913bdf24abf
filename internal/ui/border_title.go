package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	reflowtruncate "github.com/muesli/reflow/truncate"
)

// topBorderWithTitle draws "╭─ Title ───╮" at exactly width cells. An
// optional badge is right-aligned inside the border, e.g. "3/22".
func topBorderWithTitle(width int, title, badge string, titleStyle lipgloss.Style) string {
	if width <= 0 {
		return ""
	}
	border := panelBorder
	h := border.Top

	fillW := width - lipgloss.Width(border.TopLeft) - lipgloss.Width(border.TopRight)
	if fillW <= 0 {
		return cutPlain(border.TopLeft+border.TopRight, width)
	}

	var titleBlock string
	if t := strings.TrimSpace(title); t != "" && fillW > lipgloss.Width(h)+2 {
		raw := cutPlain(t, fillW-lipgloss.Width(h)-2)
		titleBlock = h + " " + titleStyle.Render(raw) + " "
	}
	var badgeBlock string
	if b := strings.TrimSpace(badge); b != "" {
		badgeBlock = " " + mutedStyle.Render(b) + " " + h
	}
	if lipgloss.Width(titleBlock)+lipgloss.Width(badgeBlock) > fillW {
		badgeBlock = ""
	}
	if lipgloss.Width(titleBlock) > fillW {
		titleBlock = cutANSI(titleBlock, fillW)
	}

	restW := max(0, fillW-lipgloss.Width(titleBlock)-lipgloss.Width(badgeBlock))
	return border.TopLeft + titleBlock + repeatToWidth(h, restW) + badgeBlock + border.TopRight
}

func repeatToWidth(s string, width int) string {
	if width <= 0 || s == "" {
		return ""
	}
	cellW := lipgloss.Width(s)
	if cellW <= 0 {
		return ""
	}
	return cutPlain(strings.Repeat(s, width/cellW+1), width)
}

func cutPlain(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "")
}

// cutANSI hard-cuts styled text without a tail; borders must never end in "…".
func cutANSI(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return reflowtruncate.StringWithTail(s, uint(width), "")
}
