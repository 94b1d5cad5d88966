package ui

import (
	"testing"
	"time"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/aeolun/forumchat/pkg/client/ui/modal"
	"github.com/aeolun/forumchat/pkg/forum"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// testEnv bundles the mocks behind a test model
type testEnv struct {
	store   *client.MockThreadStore
	channel *client.MockChannel
	state   *client.MockState
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   client.NewMockThreadStore(),
		channel: client.NewMockChannel("ws://localhost:5000/ws/chat"),
		state:   client.NewMockState(),
	}
	t.Cleanup(env.channel.Close)
	return env
}

// model creates a Model wired to the env's mocks
func (e *testEnv) model(opts ...func(*Options)) Model {
	o := Options{
		API:            e.store,
		Channel:        e.channel,
		State:          e.state,
		Validator:      forum.NewValidator(forum.DefaultLimits()),
		Logger:         zerolog.Nop(),
		RequestTimeout: time.Second,
		IdleThreshold:  5 * time.Minute,
		ServerAddress:  "localhost:5000",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return NewModel(o)
}

// loggedIn creates a model for a remembered user with the initial thread
// list applied
func (e *testEnv) loggedIn(t *testing.T, name string) Model {
	t.Helper()
	if err := e.state.SetDisplayName(name); err != nil {
		t.Fatalf("SetDisplayName() error = %v", err)
	}
	m := e.model()
	m = feed(t, m, m.Init())
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return model, cmd
}

// collect runs cmd and returns the messages it produces, flattening
// batches. Commands that do not return promptly (ticks, realtime
// listeners) are dropped.
func collect(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}

	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-out:
	case <-time.After(100 * time.Millisecond):
		return nil
	}

	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var msgs []tea.Msg
		for _, c := range msg {
			msgs = append(msgs, collect(t, c)...)
		}
		return msgs
	default:
		return []tea.Msg{msg}
	}
}

// feed runs cmd and applies the API results it produces, following up on
// the commands they return. A successful channel connect is applied but
// its listener is not started.
func feed(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(t, cmd) {
		switch msg.(type) {
		case ThreadsLoadedMsg, PostsLoadedMsg, ThreadCreatedMsg, PostSentMsg:
			var next tea.Cmd
			m, next = update(t, m, msg)
			m = feed(t, m, next)
		case ChannelConnectedMsg:
			m, _ = update(t, m, msg)
		}
	}
	return m
}

func keyEnter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }
func keyEsc() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyEsc} }
func keyTab() tea.KeyMsg   { return tea.KeyMsg{Type: tea.KeyTab} }

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// alertMessage returns the text of the topmost alert, or "" if none
func alertMessage(m Model) string {
	if a, ok := m.modalStack.Top().(*modal.AlertModal); ok {
		return a.Message()
	}
	return ""
}

func postEvent(id, threadID int64, username, content string) RealtimeEventMsg {
	return RealtimeEventMsg{Event: client.Event{
		Kind: client.EventPost,
		Post: forum.Post{ID: id, ThreadID: threadID, Username: username, Content: content},
	}}
}

func statusEvent(text string) RealtimeEventMsg {
	return RealtimeEventMsg{Event: client.Event{
		Kind:   client.EventStatus,
		Notice: forum.StatusNotice{Msg: text},
	}}
}

// open selects th and applies its posts
func open(t *testing.T, m Model, th forum.Thread) Model {
	t.Helper()
	cmd := m.selectThread(th)
	return feed(t, m, cmd)
}
