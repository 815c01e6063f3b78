package notify

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	pendingColor = lipgloss.Color("11") // Yellow
	successColor = lipgloss.Color("10") // Green
	failedColor  = lipgloss.Color("9")  // Red
	dimColor     = lipgloss.Color("8")
)
