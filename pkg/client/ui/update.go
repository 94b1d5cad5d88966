package ui

import (
	"fmt"
	"time"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/aeolun/forumchat/pkg/client/ui/modal"
	"github.com/aeolun/forumchat/pkg/forum"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"
	"github.com/pkg/errors"
)

// noticeDuration is how long a status notice stays in the post list
const noticeDuration = 3 * time.Second

// ThreadsLoadedMsg carries the result of a thread list fetch
type ThreadsLoadedMsg struct {
	Threads    []forum.Thread
	Err        error
	Generation uint64
}

// PostsLoadedMsg carries the result of a posts fetch
type PostsLoadedMsg struct {
	ThreadID   int64
	Posts      []forum.Post
	Err        error
	Generation uint64
}

// ThreadCreatedMsg carries the result of a thread creation
type ThreadCreatedMsg struct {
	Thread forum.Thread
	Err    error
}

// PostSentMsg carries the result of a post submission
type PostSentMsg struct {
	ThreadID int64
	Err      error
}

// ChannelConnectedMsg reports the outcome of dialing the realtime channel
type ChannelConnectedMsg struct {
	Err error
}

// RealtimeEventMsg wraps one pushed event
type RealtimeEventMsg struct {
	Event client.Event
}

// ChannelErrorMsg reports that the realtime channel went down
type ChannelErrorMsg struct {
	Err error
}

// ChannelClosedMsg is sent when the channel's event stream ends
type ChannelClosedMsg struct{}

// ClearNoticeMsg removes one transient notice from the post list
type ClearNoticeMsg struct {
	ID uint64
}

// ClearStatusMsg clears the status message after a timeout
type ClearStatusMsg struct {
	Version uint64 // Only clear if this matches current statusVersion
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case ThreadsLoadedMsg:
		return m.handleThreadsLoaded(msg)

	case PostsLoadedMsg:
		return m.handlePostsLoaded(msg)

	case ThreadCreatedMsg:
		if msg.Err != nil {
			m.logger.Warn().Err(msg.Err).Msg("create thread failed")
			m.showAlert("Error", client.ServerMessage(msg.Err, "Failed to create thread"))
			return m, nil
		}
		// A list fetch still in flight predates this thread; it is merged
		// back in when that list arrives
		m.localThreads = append(m.localThreads, localThread{thread: msg.Thread, listGeneration: m.listGeneration})
		m.threads = append([]forum.Thread{msg.Thread}, m.threads...)
		m.titleInput.Reset()
		cmd := tea.Batch(m.selectThread(msg.Thread), m.setStatus("Thread created"))
		return m, cmd

	case PostSentMsg:
		if msg.Err != nil {
			m.logger.Warn().Err(msg.Err).Int64("thread", msg.ThreadID).Msg("send post failed")
			m.showAlert("Error", client.ServerMessage(msg.Err, "Failed to send message"))
			return m, nil
		}
		m.postInput.Reset()
		return m, nil

	case ChannelConnectedMsg:
		if msg.Err != nil {
			m.logger.Error().Err(msg.Err).Str("addr", m.channel.GetAddress()).Msg("realtime connect failed")
			m.channelError = "Realtime connection failed"
			return m, nil
		}
		m.channelError = ""
		cmd := m.setStatus("Realtime connected")
		return m, tea.Batch(listenForRealtime(m.channel), cmd)

	case RealtimeEventMsg:
		cmd := m.handleRealtimeEvent(msg.Event)
		return m, tea.Batch(cmd, listenForRealtime(m.channel))

	case ChannelErrorMsg:
		m.logger.Error().Err(msg.Err).Msg("realtime channel lost")
		m.channelError = "Realtime connection lost"
		// Events read before the failure are still queued; apply them, then
		// stop listening
		cmd := m.drainRealtime()
		return m, cmd

	case ChannelClosedMsg:
		return m, nil

	case ClearNoticeMsg:
		m.removeNotice(msg.ID)
		return m, nil

	case ClearStatusMsg:
		// Only clear if version matches (prevents stale timeouts from clearing new messages)
		if msg.Version == m.statusVersion {
			m.statusMessage = ""
		}
		return m, nil
	}

	return m, nil
}

// handleKeyPress routes a key to the active modal or the focused pane
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.lastInteractionTime = time.Now()

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// An open overlay takes every key
	if top := m.modalStack.Top(); top != nil {
		next, cmd := top.HandleKey(msg)
		if next != top {
			m.modalStack.Replace(next)
		}
		return m, cmd
	}

	switch msg.String() {
	case "tab":
		m.cycleFocus(1)
		return m, nil
	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil
	case "esc":
		if m.currentView == ViewThread {
			m.showWelcomeView()
		} else {
			m.setFocus(FocusThreadList)
		}
		return m, nil
	case "pgup":
		m.postViewport.SetYOffset(m.postViewport.YOffset - m.postViewport.Height)
		return m, nil
	case "pgdown":
		m.postViewport.SetYOffset(m.postViewport.YOffset + m.postViewport.Height)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case FocusThreadList:
		return m.handleThreadListKey(msg)

	case FocusUsername:
		if msg.String() == "enter" {
			cmd = m.setUsername()
			return m, cmd
		}
		m.usernameInput, cmd = m.usernameInput.Update(msg)

	case FocusNewThread:
		if msg.String() == "enter" {
			cmd = m.createThread()
			return m, cmd
		}
		m.titleInput, cmd = m.titleInput.Update(msg)

	case FocusPostInput:
		if msg.String() == "enter" {
			cmd = m.sendPost()
			return m, cmd
		}
		m.postInput, cmd = m.postInput.Update(msg)
	}
	return m, cmd
}

func (m Model) handleThreadListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.threadCursor > 0 {
			m.threadCursor--
		}
	case "down", "j":
		if m.threadCursor < len(m.threads)-1 {
			m.threadCursor++
		}
	case "home", "g":
		m.threadCursor = 0
	case "end", "G":
		if len(m.threads) > 0 {
			m.threadCursor = len(m.threads) - 1
		}
	case "enter":
		if m.threadCursor >= 0 && m.threadCursor < len(m.threads) {
			cmd := m.selectThread(m.threads[m.threadCursor])
			return m, cmd
		}
	case "r":
		cmd := m.refreshThreads()
		return m, cmd
	case "n":
		m.setFocus(FocusNewThread)
	case "?", "h":
		m.modalStack.Push(modal.NewHelpModal(helpEntries))
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

var helpEntries = []modal.KeyHelp{
	{Keys: "tab / shift+tab", Help: "Move between panes"},
	{Keys: "↑↓ / j k", Help: "Move through the thread list"},
	{Keys: "enter", Help: "Open thread, set name, create thread or send message"},
	{Keys: "alt+enter", Help: "New line in a message"},
	{Keys: "n", Help: "New thread"},
	{Keys: "r", Help: "Refresh thread list"},
	{Keys: "pgup / pgdown", Help: "Scroll posts"},
	{Keys: "esc", Help: "Back to the welcome view"},
	{Keys: "? / h", Help: "This help"},
	{Keys: "q / ctrl+c", Help: "Quit"},
}

// focusOrder lists the panes tab cycles through in the current state
func (m Model) focusOrder() []Focus {
	order := make([]Focus, 0, 4)
	if m.currentUser == "" {
		order = append(order, FocusUsername)
	}
	order = append(order, FocusThreadList, FocusNewThread)
	if m.currentView == ViewThread {
		order = append(order, FocusPostInput)
	}
	return order
}

func (m *Model) cycleFocus(delta int) {
	order := m.focusOrder()
	idx := 0
	for i, f := range order {
		if f == m.focus {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(order)) % len(order)
	m.setFocus(order[idx])
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	m.usernameInput.Blur()
	m.titleInput.Blur()
	m.postInput.Blur()
	switch f {
	case FocusUsername:
		m.usernameInput.Focus()
	case FocusNewThread:
		m.titleInput.Focus()
	case FocusPostInput:
		m.postInput.Focus()
	}
}

// setUsername applies the name typed in the username input
func (m *Model) setUsername() tea.Cmd {
	name, err := m.validator.Username(m.usernameInput.Value())
	if err != nil {
		m.showAlert("Username", err.Error())
		return nil
	}

	m.currentUser = name
	if err := m.state.SetDisplayName(name); err != nil {
		m.logger.Warn().Err(err).Msg("failed to persist display name")
	}
	m.usernameInput.Reset()
	m.logger.Info().Str("user", name).Msg("display name set")

	if m.currentView == ViewThread {
		m.setFocus(FocusPostInput)
	} else {
		m.setFocus(FocusThreadList)
	}
	return m.openChannel()
}

// openChannel connects the realtime channel the first time it is called
func (m *Model) openChannel() tea.Cmd {
	if m.channelOpened {
		return nil
	}
	m.channelOpened = true
	return connectChannelCmd(m.channel, m.requestTimeout)
}

// refreshThreads refetches the thread list
func (m *Model) refreshThreads() tea.Cmd {
	m.listGeneration++
	m.loadingThreads = true
	return fetchThreadsCmd(m.api, m.requestTimeout, m.listGeneration)
}

func (m Model) handleThreadsLoaded(msg ThreadsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Generation != m.listGeneration {
		m.metrics.StaleResponse("list_threads")
		m.logger.Debug().Uint64("generation", msg.Generation).Msg("dropping stale thread list")
		return m, nil
	}
	m.loadingThreads = false

	if msg.Err != nil {
		m.logger.Error().Err(msg.Err).Msg("load threads failed")
		m.errorMessage = "Failed to load threads"
		return m, nil
	}

	m.errorMessage = ""
	m.threads = m.mergeLocalThreads(msg.Threads, msg.Generation)
	if m.threadCursor >= len(m.threads) {
		m.threadCursor = max(0, len(m.threads)-1)
	}
	return m, nil
}

// mergeLocalThreads puts locally created threads that a list fetched under
// generation is missing ahead of it, newest first. Once a list issued after
// a create has arrived, that create is no longer tracked.
func (m *Model) mergeLocalThreads(server []forum.Thread, generation uint64) []forum.Thread {
	onServer := make(map[int64]bool, len(server))
	for _, t := range server {
		onServer[t.ID] = true
	}

	var missing []forum.Thread
	var pending []localThread
	for i := len(m.localThreads) - 1; i >= 0; i-- {
		lt := m.localThreads[i]
		if lt.listGeneration < generation || onServer[lt.thread.ID] {
			continue
		}
		missing = append(missing, lt.thread)
	}
	for _, lt := range m.localThreads {
		if lt.listGeneration >= generation && !onServer[lt.thread.ID] {
			pending = append(pending, lt)
		}
	}
	m.localThreads = pending

	merged := make([]forum.Thread, 0, len(missing)+len(server))
	merged = append(merged, missing...)
	return append(merged, server...)
}

// selectThread makes t the active thread, joins its room and loads its
// posts. The previous thread's room is not left.
func (m *Model) selectThread(t forum.Thread) tea.Cmd {
	thread := t
	m.currentThread = &thread
	m.currentView = ViewThread
	m.navGeneration++
	m.loadingPosts = true
	m.postsFailed = false
	// The previous thread's posts must not show under this title
	m.entries = nil

	for i, th := range m.threads {
		if th.ID == t.ID {
			m.threadCursor = i
			break
		}
	}

	if m.channelOpened && m.currentUser != "" {
		if err := m.channel.Join(t.ID, m.currentUser); err != nil {
			m.logger.Warn().Err(err).Int64("thread", t.ID).Msg("join failed")
		}
	}

	if m.currentUser != "" {
		m.setFocus(FocusPostInput)
	} else {
		m.setFocus(FocusThreadList)
	}
	m.resize()

	return fetchPostsCmd(m.api, m.requestTimeout, t.ID, m.navGeneration)
}

func (m Model) handlePostsLoaded(msg PostsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Generation != m.navGeneration {
		m.metrics.StaleResponse("list_posts")
		m.logger.Debug().Int64("thread", msg.ThreadID).Msg("dropping stale posts")
		return m, nil
	}
	m.loadingPosts = false

	if msg.Err != nil {
		m.logger.Error().Err(msg.Err).Int64("thread", msg.ThreadID).Msg("load posts failed")
		m.errorMessage = "Failed to load posts"
		m.postsFailed = true
		m.refreshPosts(false)
		return m, nil
	}

	m.errorMessage = ""
	m.entries = make([]postEntry, 0, len(msg.Posts))
	for _, p := range msg.Posts {
		m.entries = append(m.entries, postEntry{kind: entryPost, post: p})
	}
	m.refreshPosts(true)
	return m, nil
}

// showWelcomeView leaves the active thread's room and returns to the
// welcome pane
func (m *Model) showWelcomeView() {
	if m.currentThread != nil && m.channelOpened && m.currentUser != "" {
		if err := m.channel.Leave(m.currentThread.ID, m.currentUser); err != nil {
			m.logger.Warn().Err(err).Int64("thread", m.currentThread.ID).Msg("leave failed")
		}
	}
	m.currentThread = nil
	m.currentView = ViewWelcome
	m.navGeneration++
	m.loadingPosts = false
	m.entries = nil
	m.setFocus(FocusThreadList)
}

// createThread submits the title typed in the new thread input
func (m *Model) createThread() tea.Cmd {
	title, err := m.validator.ThreadTitle(m.titleInput.Value())
	if err != nil {
		m.showAlert("New thread", err.Error())
		return nil
	}
	return createThreadCmd(m.api, m.requestTimeout, title)
}

// sendPost submits the message input to the active thread. Missing thread,
// identity or content is ignored without feedback.
func (m *Model) sendPost() tea.Cmd {
	if m.currentThread == nil || m.currentUser == "" {
		return nil
	}

	content, err := m.validator.PostContent(m.postInput.Value())
	if err != nil {
		var verr *forum.ValidationError
		if errors.As(err, &verr) && verr.Missing() {
			return nil
		}
		m.showAlert("Message", err.Error())
		return nil
	}
	return createPostCmd(m.api, m.requestTimeout, m.currentThread.ID, m.currentUser, content)
}

// handleRealtimeEvent applies one pushed event
func (m *Model) handleRealtimeEvent(ev client.Event) tea.Cmd {
	switch ev.Kind {
	case client.EventPost:
		p := ev.Post
		if m.currentThread == nil || p.ThreadID != m.currentThread.ID {
			return nil
		}
		if p.ID != 0 && m.hasPost(p.ID) {
			return nil
		}
		m.entries = append(m.entries, postEntry{kind: entryPost, post: p})
		m.refreshPosts(true)
		if m.shouldNotifyForPost(p) {
			return m.sendDesktopNotification(p)
		}
		return nil

	case client.EventStatus:
		return m.addNotice(ev.Notice.Msg)
	}
	return nil
}

// drainRealtime applies the events already buffered on the channel without
// waiting for more
func (m *Model) drainRealtime() tea.Cmd {
	var cmds []tea.Cmd
	for {
		select {
		case ev, ok := <-m.channel.Events():
			if !ok {
				return tea.Batch(cmds...)
			}
			cmds = append(cmds, m.handleRealtimeEvent(ev))
		default:
			return tea.Batch(cmds...)
		}
	}
}

func (m Model) hasPost(id int64) bool {
	for _, e := range m.entries {
		if e.kind == entryPost && e.post.ID == id {
			return true
		}
	}
	return false
}

// addNotice appends a transient notice and schedules its removal
func (m *Model) addNotice(text string) tea.Cmd {
	m.nextNoticeID++
	id := m.nextNoticeID
	m.entries = append(m.entries, postEntry{kind: entryNotice, noticeID: id, notice: text})
	m.refreshPosts(true)
	return noticeTimeout(id)
}

// noticeTimeout returns a command that removes notice id after noticeDuration
func noticeTimeout(id uint64) tea.Cmd {
	return tea.Tick(noticeDuration, func(t time.Time) tea.Msg {
		return ClearNoticeMsg{ID: id}
	})
}

func (m *Model) removeNotice(id uint64) {
	for i, e := range m.entries {
		if e.kind == entryNotice && e.noticeID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.refreshPosts(false)
			return
		}
	}
}

// showAlert pushes a blocking alert. The text may come from the server.
func (m *Model) showAlert(title, message string) {
	m.modalStack.Push(modal.NewAlertModal(title, plainText(message)))
}

// statusTimeout returns a command that clears the status after 3 seconds
func statusTimeout(version uint64) tea.Cmd {
	return tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
		return ClearStatusMsg{Version: version}
	})
}

// setStatus sets the status message and returns the timeout command
func (m *Model) setStatus(message string) tea.Cmd {
	m.statusVersion++
	m.statusMessage = message
	return statusTimeout(m.statusVersion)
}

// shouldNotifyForPost checks if we should send a desktop notification for this post
func (m Model) shouldNotifyForPost(p forum.Post) bool {
	if !m.notify {
		return false
	}
	// Don't notify for our own posts
	if p.Username == m.currentUser {
		return false
	}
	return time.Since(m.lastInteractionTime) >= m.idleThreshold
}

// sendDesktopNotification returns a command that shows a desktop
// notification for a post
func (m Model) sendDesktopNotification(p forum.Post) tea.Cmd {
	title := "forumchat"
	if m.currentThread != nil {
		title = fmt.Sprintf("forumchat - %s", plainLine(m.currentThread.Title))
	}

	// Truncate content to 100 runes for the notification
	content := []rune(plainLine(p.Content))
	if len(content) > 100 {
		content = append(content[:97], []rune("...")...)
	}
	body := fmt.Sprintf("%s: %s", plainLine(p.Username), string(content))

	logger := m.logger
	return func() tea.Msg {
		// Best-effort, don't fail if it doesn't work
		if err := beeep.Notify(title, body, ""); err != nil {
			logger.Warn().Err(err).Msg("failed to send desktop notification")
		}
		return nil
	}
}
