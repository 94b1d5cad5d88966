package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// KeyHelp is one line of the help overlay.
type KeyHelp struct {
	Keys string
	Help string
}

// HelpModal lists the key bindings.
type HelpModal struct {
	entries []KeyHelp
}

// NewHelpModal creates a help overlay for entries
func NewHelpModal(entries []KeyHelp) *HelpModal {
	return &HelpModal{entries: entries}
}

func (m *HelpModal) Kind() Kind {
	return KindHelp
}

// HandleKey closes the overlay on esc, enter, q or ?
func (m *HelpModal) HandleKey(msg tea.KeyMsg) (Modal, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter", "q", "?":
		return nil, nil
	}
	return m, nil
}

// Render returns the modal content
func (m *HelpModal) Render(width, height int) string {
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Width(14)
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Keys"))
	b.WriteString("\n\n")
	for _, e := range m.entries {
		b.WriteString(keyStyle.Render(e.Keys))
		b.WriteString(textStyle.Render(e.Help))
		b.WriteString("\n")
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
