// Package modal holds the overlays drawn on top of the forum view. An open
// overlay takes every key until it closes itself.
package modal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Kind identifies an overlay; at most one of each kind is open
type Kind int

const (
	KindNone Kind = iota
	KindAlert
	KindHelp
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindAlert:
		return "Alert"
	case KindHelp:
		return "Help"
	}
	return "Unknown"
}

// Modal is an overlay that owns the keyboard while it is on top
type Modal interface {
	Kind() Kind

	// HandleKey returns the overlay to show next: itself to stay open,
	// nil to close, or another overlay to swap in.
	HandleKey(msg tea.KeyMsg) (Modal, tea.Cmd)

	// Render draws the overlay over a width x height screen
	Render(width, height int) string
}

// Stack keeps the open overlays; the last one pushed is drawn
type Stack struct {
	open []Modal
}

// Push opens m on top, closing any other overlay of the same kind
func (s *Stack) Push(m Modal) {
	kept := s.open[:0]
	for _, o := range s.open {
		if o.Kind() != m.Kind() {
			kept = append(kept, o)
		}
	}
	s.open = append(kept, m)
}

// Pop closes the top overlay and returns it, or nil when none is open
func (s *Stack) Pop() Modal {
	n := len(s.open)
	if n == 0 {
		return nil
	}
	top := s.open[n-1]
	s.open[n-1] = nil
	s.open = s.open[:n-1]
	return top
}

// Replace closes the top overlay and opens m in its place; nil just closes
func (s *Stack) Replace(m Modal) {
	s.Pop()
	if m != nil {
		s.Push(m)
	}
}

// Top returns the overlay that receives keys, or nil
func (s *Stack) Top() Modal {
	if len(s.open) == 0 {
		return nil
	}
	return s.open[len(s.open)-1]
}

// TopKind returns the kind of the top overlay, KindNone when empty
func (s *Stack) TopKind() Kind {
	if top := s.Top(); top != nil {
		return top.Kind()
	}
	return KindNone
}

func (s *Stack) IsEmpty() bool { return len(s.open) == 0 }

func (s *Stack) Len() int { return len(s.open) }
