package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Common styles used across sagactl's output.
var (
	// Style for root/main elements
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	// Style for section headers
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	// Style for descriptive information
	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	// Style for branch connectors in trees
	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorDarkGray)

	// Style for components/sections
	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	// Style for transaction names
	TransactionStyle = lipgloss.NewStyle().
				Foreground(ColorOrange)

	// Style for step names
	StepStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	// Style for event types
	EventStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	// Style for state values
	StateStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	// Style for error/failure text
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)
)

// TransactionText styles a transaction name.
func TransactionText(text string) string {
	return TransactionStyle.Render(text)
}

// StepText styles a step name.
func StepText(text string) string {
	return StepStyle.Render(text)
}

// EventText styles an event type.
func EventText(text string) string {
	return EventStyle.Render(text)
}

// StateText styles a rendered state value.
func StateText(text string) string {
	return StateStyle.Render(text)
}

// ErrorText styles an error message.
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}
