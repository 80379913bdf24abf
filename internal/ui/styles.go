package ui

import "github.com/charmbracelet/lipgloss"

const progressFillHex = "#76B900"

var (
	panelBorder     = lipgloss.RoundedBorder()
	panelTitleStyle = lipgloss.NewStyle().Bold(true)

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	logoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(progressFillHex))
	versionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	questionStyle = versionStyle
	inputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	selectedStyle = inputStyle.Bold(true)
)

const logoText = `
 ___ _    ___      ___
| __| |  |_ _|_ __|_  )
| _|| |__ | |\ V / / /
|_| |____|___|\_/ /___|
`
