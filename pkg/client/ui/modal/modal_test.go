package modal

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestModalStack(t *testing.T) {
	var ms Stack
	assert.True(t, ms.IsEmpty())
	assert.Equal(t, KindNone, ms.TopKind())

	ms.Push(NewAlertModal("Error", "first"))
	ms.Push(NewHelpModal(nil))
	assert.Equal(t, 2, ms.Len())
	assert.Equal(t, KindHelp, ms.TopKind())

	// Pushing the same type again replaces the older instance
	ms.Push(NewAlertModal("Error", "second"))
	assert.Equal(t, 2, ms.Len())
	assert.Equal(t, "second", ms.Top().(*AlertModal).Message())

	ms.Replace(nil)
	assert.Equal(t, KindHelp, ms.TopKind())
	ms.Pop()
	assert.True(t, ms.IsEmpty())
	assert.Nil(t, ms.Pop())
}

func TestAlertModalKeys(t *testing.T) {
	tests := []struct {
		key       tea.KeyMsg
		wantClose bool
	}{
		{tea.KeyMsg{Type: tea.KeyEnter}, true},
		{tea.KeyMsg{Type: tea.KeyEsc}, true},
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, true},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			m := NewAlertModal("Error", "boom")
			next, _ := m.HandleKey(tt.key)
			if tt.wantClose {
				assert.Nil(t, next)
			} else {
				assert.Equal(t, m, next)
			}
		})
	}
}

func TestAlertModalRender(t *testing.T) {
	out := NewAlertModal("Error", "title required").Render(80, 24)
	assert.Contains(t, out, "title required")
	assert.Contains(t, out, "Press Enter or Esc to dismiss")
}
