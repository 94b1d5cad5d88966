package ui

import (
	"fmt"
	"strings"

	"github.com/76creates/stickers/flexbox"
	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// View renders the current view
func (m Model) View() string {
	// Don't render until we have dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Modals replace the main view until dismissed
	if activeModal := m.modalStack.Top(); activeModal != nil {
		return activeModal.Render(m.width, m.height)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.renderBody(),
		m.renderFooter(),
	)
}

// sidebarWidth is the outer width of the thread list column
func (m Model) sidebarWidth() int {
	return max(24, m.width/3)
}

// mainWidth is the outer width of the welcome/thread column
func (m Model) mainWidth() int {
	return max(20, m.width-m.sidebarWidth())
}

// bodyHeight is the height between header and footer
func (m Model) bodyHeight() int {
	return max(6, m.height-2)
}

// resize fits inputs and the post viewport to the window
func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	inner := m.mainWidth() - 4 // border + padding
	m.postInput.SetWidth(max(10, inner))
	m.usernameInput.Width = max(10, m.sidebarWidth()-6)
	m.titleInput.Width = max(10, m.sidebarWidth()-6)

	// border(2) + title(1) + gap(1) + label(1) + input
	m.postViewport.Width = max(10, inner)
	m.postViewport.Height = max(3, m.bodyHeight()-5-m.postInput.Height())
	m.refreshPosts(false)
}

// refreshPosts rebuilds the post list, optionally scrolling to the latest
func (m *Model) refreshPosts(toBottom bool) {
	m.postViewport.SetContent(m.buildPostContent())
	if toBottom {
		m.postViewport.GotoBottom()
	}
}

func (m Model) renderHeader() string {
	left := HeaderStyle.Render("forumchat")
	if m.serverAddress != "" {
		left += MutedTextStyle.Render(m.serverAddress)
	}

	var right string
	if m.channelError != "" {
		right = WarningStyle.Render(m.channelError) + "  "
	}
	if m.currentUser != "" {
		right += StatusStyle.Render("Logged in as: " + plainLine(m.currentUser))
	} else {
		right += StatusStyle.Render(MutedTextStyle.Render("Not logged in"))
	}

	spacer := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return ansi.Truncate(left+spacer+right, m.width, "")
}

func (m Model) renderBody() string {
	height := m.bodyHeight()
	layout := flexbox.NewHorizontal(m.width, height)

	sw := m.sidebarWidth()
	sidebarCol := layout.NewColumn().AddCells(
		flexbox.NewCell(1, 1).
			SetStyle(ThreadPaneStyle.Width(sw - 2).Height(height - 2)).
			SetContent(m.buildSidebar(sw-2, height-2)),
	)

	var main string
	if m.currentView == ViewThread && m.currentThread != nil {
		main = m.buildThreadView()
	} else {
		main = m.buildWelcomeView()
	}
	mainCol := layout.NewColumn().AddCells(
		flexbox.NewCell(2, 1).
			SetStyle(MainPaneStyle).
			SetContent(main),
	)

	layout.AddColumns([]*flexbox.Column{sidebarCol, mainCol})
	return layout.Render()
}

func (m Model) label(text string, f Focus) string {
	if m.focus == f {
		return FocusedLabelStyle.Render(text)
	}
	return InputLabelStyle.Render(text)
}

// buildSidebar renders the username input, thread list and new thread input
func (m Model) buildSidebar(width, height int) string {
	var top []string
	if m.currentUser == "" {
		top = append(top, m.label("Username", FocusUsername), m.usernameInput.View(), "")
	}

	title := fmt.Sprintf("Threads (%d)", len(m.threads))
	if m.loadingThreads {
		title += MutedTextStyle.Render("  loading...")
	}
	top = append(top, m.label(title, FocusThreadList))

	bottom := []string{"", m.label("New thread", FocusNewThread), m.titleInput.View()}

	listHeight := max(2, height-len(top)-len(bottom))
	list := m.buildThreadListContent(width, listHeight)

	lines := append(top, list...)
	lines = append(lines, bottom...)
	return strings.Join(lines, "\n")
}

// buildThreadListContent renders the threads that fit in height lines,
// keeping the cursor visible. Each thread takes two lines.
func (m Model) buildThreadListContent(width, height int) []string {
	if len(m.threads) == 0 {
		lines := []string{MutedTextStyle.Render("No threads yet.")}
		return padLines(lines, height)
	}

	visible := max(1, height/2)
	start := 0
	if m.threadCursor >= visible {
		start = m.threadCursor - visible + 1
	}
	end := min(len(m.threads), start+visible)

	lines := make([]string, 0, height)
	for i := start; i < end; i++ {
		lines = append(lines, m.formatThreadItem(m.threads[i], i, width)...)
	}
	return padLines(lines, height)
}

// formatThreadItem renders one thread as a title line and a date line
func (m Model) formatThreadItem(t forum.Thread, index, width int) []string {
	prefix := "  "
	if index == m.threadCursor && m.focus == FocusThreadList {
		prefix = CursorStyle.Render("▶ ")
	}

	title := ansi.Truncate(plainLine(t.Title), max(1, width-2), "…")
	style := ThreadItemStyle
	if m.currentThread != nil && m.currentThread.ID == t.ID {
		style = ActiveThreadStyle
	}

	date := "  " + MutedTextStyle.Render("Created: "+formatDate(t.CreatedAt))
	return []string{prefix + style.Render(title), date}
}

func (m Model) buildWelcomeView() string {
	lines := []string{
		PaneTitleStyle.Render("Welcome to forumchat!"),
		"",
	}
	if m.currentUser == "" {
		lines = append(lines, "Enter a username to join the conversation.", "")
	}
	lines = append(lines,
		"Select a thread on the left or create a new one.",
		"",
		"Press [tab] to move between panes.",
		"Press [?] for help.",
	)
	return strings.Join(lines, "\n")
}

func (m Model) buildThreadView() string {
	title := PaneTitleStyle.Render(ansi.Truncate(plainLine(m.currentThread.Title), max(1, m.postViewport.Width-12), "…"))
	title += MutedTextStyle.Render("  [esc] back")

	input := m.label("Message", FocusPostInput)
	if m.currentUser == "" {
		input = MutedTextStyle.Render("Set a username to post")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		m.postViewport.View(),
		input,
		m.postInput.View(),
	)
}

// buildPostContent renders posts and notices as plain text
func (m Model) buildPostContent() string {
	if m.loadingPosts && len(m.entries) == 0 {
		return MutedTextStyle.Render("Loading posts...")
	}
	if m.postsFailed && len(m.entries) == 0 {
		return RenderError("Could not load posts. Select the thread again to retry.")
	}
	if len(m.entries) == 0 {
		return MutedTextStyle.Render("No posts yet. Say hello!")
	}

	width := max(10, m.postViewport.Width)
	body := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e.kind {
		case entryPost:
			b.WriteString(m.formatPost(e.post, body))
		case entryNotice:
			b.WriteString(NoticeStyle.Render(ansi.Truncate("• "+plainLine(e.notice), width, "…")))
		}
	}
	return b.String()
}

func (m Model) formatPost(p forum.Post, body lipgloss.Style) string {
	header := PostAuthorStyle.Render(plainLine(p.Username))
	if when := formatDateTime(p.CreatedAt); when != "" {
		header += "  " + PostTimeStyle.Render(when)
	}
	return header + "\n" + body.Render(plainText(p.Content)) + "\n"
}

func (m Model) renderFooter() string {
	var shortcuts string
	switch m.focus {
	case FocusThreadList:
		shortcuts = "[↑↓] navigate  [enter] open  [n] new  [r] refresh  [?] help  [q] quit"
	case FocusUsername:
		shortcuts = "[enter] set username  [tab] next pane"
	case FocusNewThread:
		shortcuts = "[enter] create thread  [tab] next pane  [esc] back"
	case FocusPostInput:
		shortcuts = "[enter] send  [alt+enter] newline  [pgup/pgdn] scroll  [esc] back"
	}

	content := shortcuts
	if m.statusMessage != "" {
		content += "  " + SuccessStyle.Render(m.statusMessage)
	}
	if m.errorMessage != "" {
		content += "  " + RenderError(m.errorMessage)
	}

	// FooterStyle has Padding(0, 1)
	return FooterStyle.Render(ansi.Truncate(content, max(1, m.width-2), "…"))
}

// formatDate renders a creation date in local time
func formatDate(ts forum.Timestamp) string {
	if ts.IsZero() {
		return "unknown"
	}
	return ts.Local().Format("Jan 2, 2006")
}

// formatDateTime renders a post time in local time
func formatDateTime(ts forum.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format("Jan 2, 2006 15:04")
}

func padLines(lines []string, height int) []string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}
