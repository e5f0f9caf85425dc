package main

import "github.com/charmbracelet/lipgloss"

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89b4fa")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cba6f7")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6adc8"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6e3a1"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f9e2af"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f38ba8")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89b4fa")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a6e3a1")).
			Bold(true)

	chunkIDStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fab387"))
)
