package modal

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AlertModal is the blocking notice shown for rejected input and failed
// requests. It must be acknowledged before the main view takes keys again.
type AlertModal struct {
	title   string
	message string
}

// NewAlertModal creates a new alert modal
func NewAlertModal(title, message string) *AlertModal {
	return &AlertModal{
		title:   title,
		message: message,
	}
}

func (m *AlertModal) Kind() Kind {
	return KindAlert
}

// Message returns the alert text
func (m *AlertModal) Message() string {
	return m.message
}

// HandleKey closes the alert on enter, esc or space
func (m *AlertModal) HandleKey(msg tea.KeyMsg) (Modal, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", " ":
		return nil, nil
	}
	return m, nil
}

// Render returns the modal content
func (m *AlertModal) Render(width, height int) string {
	alertColor := lipgloss.Color("#FF5555")

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(alertColor).
		MarginBottom(1).
		Align(lipgloss.Center)

	messageStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		MarginBottom(1)

	hintStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	content := titleStyle.Render(m.title) + "\n\n"
	content += messageStyle.Render(m.message) + "\n\n"
	content += hintStyle.Render("Press Enter or Esc to dismiss")

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(alertColor).
		Padding(1, 2)

	modalWidth := 50
	if width < modalWidth+4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	box := borderStyle.Width(modalWidth - 4).Render(content)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
