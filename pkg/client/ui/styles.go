package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	PrimaryColor   = lipgloss.Color("205")
	SecondaryColor = lipgloss.Color("63")
	MutedColor     = lipgloss.Color("240")
	SuccessColor   = lipgloss.Color("42")
	WarningColor   = lipgloss.Color("214")
	ErrorColor     = lipgloss.Color("196")
	TextColor      = lipgloss.Color("252")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 1)

	MutedTextStyle = lipgloss.NewStyle().Foreground(MutedColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor).Bold(true)

	ThreadPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor)

	MainPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Padding(0, 1)

	PaneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	ThreadItemStyle = lipgloss.NewStyle().Foreground(TextColor)

	ActiveThreadStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor)

	CursorStyle = lipgloss.NewStyle().Foreground(PrimaryColor)

	PostAuthorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SecondaryColor)

	PostTimeStyle = lipgloss.NewStyle().Foreground(MutedColor)

	NoticeStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(WarningColor)

	InputLabelStyle = lipgloss.NewStyle().Foreground(MutedColor)

	FocusedLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(PrimaryColor)
)

// RenderError renders an error line for the footer
func RenderError(msg string) string {
	return lipgloss.NewStyle().Foreground(ErrorColor).Render("✗ " + msg)
}
