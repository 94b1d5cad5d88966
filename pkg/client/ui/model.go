package ui

import (
	"context"
	"time"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/aeolun/forumchat/pkg/client/ui/modal"
	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// ViewState represents the current main pane
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewThread
)

// Focus identifies the pane that receives keystrokes
type Focus int

const (
	FocusThreadList Focus = iota
	FocusUsername
	FocusNewThread
	FocusPostInput
)

// Options carries the model's collaborators and settings
type Options struct {
	API     client.ThreadStore
	Channel client.RealtimeInterface
	State   client.StateInterface

	Validator *forum.Validator
	Logger    zerolog.Logger
	Metrics   *client.Metrics

	// RequestTimeout bounds each API call; zero means no timeout
	RequestTimeout time.Duration

	// Desktop notifications for posts arriving while the user is idle
	Notify        bool
	IdleThreshold time.Duration

	ServerAddress string
}

type entryKind int

const (
	entryPost entryKind = iota
	entryNotice
)

// localThread is a thread created by this client and the list generation
// current when it was created
type localThread struct {
	thread         forum.Thread
	listGeneration uint64
}

// postEntry is one item of the post list: a post or a transient notice
type postEntry struct {
	kind     entryKind
	post     forum.Post
	noticeID uint64
	notice   string
}

// Model represents the application state
type Model struct {
	// Collaborators
	api       client.ThreadStore
	channel   client.RealtimeInterface
	state     client.StateInterface
	validator *forum.Validator
	logger    zerolog.Logger
	metrics   *client.Metrics

	requestTimeout time.Duration
	serverAddress  string

	// Session
	currentUser   string
	currentThread *forum.Thread
	threads       []forum.Thread
	entries       []postEntry
	channelOpened bool // Connect has been issued; never reset
	channelError  string // shown in the header once the channel fails

	// Stale response guard
	navGeneration  uint64 // bumped on every navigation; tags posts fetches
	listGeneration uint64 // bumped on every list refresh

	// Threads created here that a list fetched before the create cannot
	// contain yet; merged ahead of such lists
	localThreads []localThread

	// Loading states
	loadingThreads bool
	loadingPosts   bool
	postsFailed    bool

	// Transient notices
	nextNoticeID uint64

	// Views and modals
	currentView ViewState
	focus       Focus
	modalStack  modal.Stack

	// UI state
	width         int
	height        int
	threadCursor  int
	usernameInput textinput.Model
	titleInput    textinput.Model
	postInput     textarea.Model
	postViewport  viewport.Model

	// Error and status
	errorMessage  string
	statusMessage string
	statusVersion uint64

	// Notifications
	notify              bool
	idleThreshold       time.Duration
	lastInteractionTime time.Time
}

// NewModel creates the application model. A remembered display name is
// applied immediately; Init then opens the realtime channel for it.
func NewModel(opts Options) Model {
	v := opts.Validator
	if v == nil {
		v = forum.NewValidator(forum.DefaultLimits())
	}

	ni := textinput.New()
	ni.Placeholder = "Enter username"
	ni.Prompt = ""

	ti := textinput.New()
	ti.Placeholder = "New thread title"
	ti.Prompt = ""

	ta := textarea.New()
	ta.Placeholder = "Type a message... (Enter to send, Alt+Enter for newline)"
	ta.Prompt = ""
	ta.CharLimit = 0 // Length is checked against the configured limit on send
	ta.SetWidth(60)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")

	m := Model{
		api:                 opts.API,
		channel:             opts.Channel,
		state:               opts.State,
		validator:           v,
		logger:              opts.Logger,
		metrics:             opts.Metrics,
		requestTimeout:      opts.RequestTimeout,
		serverAddress:       opts.ServerAddress,
		threads:             []forum.Thread{},
		currentView:         ViewWelcome,
		modalStack:          modal.Stack{},
		usernameInput:       ni,
		titleInput:          ti,
		postInput:           ta,
		postViewport:        viewport.New(60, 10),
		notify:              opts.Notify,
		idleThreshold:       opts.IdleThreshold,
		lastInteractionTime: time.Now(),
		listGeneration:      1,
		loadingThreads:      true,
	}

	focus := FocusUsername
	if saved := opts.State.GetDisplayName(); saved != "" {
		if name, err := v.Username(saved); err == nil {
			m.currentUser = name
			m.channelOpened = true
			focus = FocusThreadList
			m.logger.Info().Str("user", name).Msg("restored display name")
		} else {
			m.logger.Warn().Err(err).Msg("ignoring remembered display name")
		}
	}
	m.setFocus(focus)

	return m
}

// Init starts the initial thread list fetch and, after auto-login, the
// realtime connection
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		fetchThreadsCmd(m.api, m.requestTimeout, m.listGeneration),
		textinput.Blink,
	}
	if m.channelOpened {
		cmds = append(cmds, connectChannelCmd(m.channel, m.requestTimeout))
	}
	return tea.Batch(cmds...)
}

// CurrentUser returns the display name, or "" before one is set
func (m Model) CurrentUser() string {
	return m.currentUser
}

// CurrentThread returns the active thread, or nil on the welcome view
func (m Model) CurrentThread() *forum.Thread {
	return m.currentThread
}

// Threads returns the thread list in display order
func (m Model) Threads() []forum.Thread {
	return m.threads
}

// Posts returns the posts of the post list in display order
func (m Model) Posts() []forum.Post {
	var posts []forum.Post
	for _, e := range m.entries {
		if e.kind == entryPost {
			posts = append(posts, e.post)
		}
	}
	return posts
}

// Notices returns the transient notices currently shown
func (m Model) Notices() []string {
	var notices []string
	for _, e := range m.entries {
		if e.kind == entryNotice {
			notices = append(notices, e.notice)
		}
	}
	return notices
}

// requestContext bounds one API call
func requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// fetchThreadsCmd loads the thread list
func fetchThreadsCmd(api client.ThreadStore, timeout time.Duration, generation uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		threads, err := api.ListThreads(ctx)
		return ThreadsLoadedMsg{Threads: threads, Err: err, Generation: generation}
	}
}

// fetchPostsCmd loads the posts of one thread
func fetchPostsCmd(api client.ThreadStore, timeout time.Duration, threadID int64, generation uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		posts, err := api.ListPosts(ctx, threadID)
		return PostsLoadedMsg{ThreadID: threadID, Posts: posts, Err: err, Generation: generation}
	}
}

// createThreadCmd submits a new thread
func createThreadCmd(api client.ThreadStore, timeout time.Duration, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		thread, err := api.CreateThread(ctx, title)
		return ThreadCreatedMsg{Thread: thread, Err: err}
	}
}

// createPostCmd submits a post; the post itself comes back over the
// realtime channel
func createPostCmd(api client.ThreadStore, timeout time.Duration, threadID int64, username, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		_, err := api.CreatePost(ctx, threadID, username, content)
		return PostSentMsg{ThreadID: threadID, Err: err}
	}
}

// connectChannelCmd dials the realtime channel
func connectChannelCmd(ch client.RealtimeInterface, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := requestContext(timeout)
		defer cancel()
		return ChannelConnectedMsg{Err: ch.Connect(ctx)}
	}
}

// listenForRealtime waits for the next realtime event or failure
func listenForRealtime(ch client.RealtimeInterface) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return ChannelClosedMsg{}
			}
			return RealtimeEventMsg{Event: ev}
		case err := <-ch.Errors():
			return ChannelErrorMsg{Err: err}
		}
	}
}
