package prompt

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
	warnAmber  = lipgloss.Color("#F59E0B")
	errorRed   = lipgloss.Color("#EF4444")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	cursorStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	checkedStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	okStyle = lipgloss.NewStyle().
		Foreground(mintGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnAmber)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorRed)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(1, 2)
)
