package client

import (
	"context"
	"sync"

	"github.com/aeolun/forumchat/pkg/forum"
)

// MockSignal records one join or leave sent through MockChannel
type MockSignal struct {
	Event    string
	ThreadID int64
	Username string
}

// MockChannel is a test implementation of RealtimeInterface
type MockChannel struct {
	mu sync.RWMutex

	address      string
	connected    bool
	closed       bool
	connectErr   error
	signalErr    error
	connectCalls int

	events chan Event
	errors chan error

	// Signals sent, in order, for verification
	Signals []MockSignal
}

// NewMockChannel creates a new mock channel
func NewMockChannel(address string) *MockChannel {
	return &MockChannel{
		address: address,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		Signals: make([]MockSignal, 0),
	}
}

// Connect simulates connecting
func (m *MockChannel) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCalls++
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

// Close simulates closing
func (m *MockChannel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.connected = false
	close(m.events)
}

// IsConnected returns the simulated connection state
func (m *MockChannel) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetAddress returns the mock address
func (m *MockChannel) GetAddress() string {
	return m.address
}

// Join records a join signal
func (m *MockChannel) Join(threadID int64, username string) error {
	return m.record(forum.EventJoin, threadID, username)
}

// Leave records a leave signal
func (m *MockChannel) Leave(threadID int64, username string) error {
	return m.record(forum.EventLeave, threadID, username)
}

func (m *MockChannel) record(event string, threadID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrChannelClosed
	}
	if m.signalErr != nil {
		return m.signalErr
	}
	m.Signals = append(m.Signals, MockSignal{Event: event, ThreadID: threadID, Username: username})
	return nil
}

// Events returns the simulated event stream
func (m *MockChannel) Events() <-chan Event {
	return m.events
}

// Errors returns the simulated error stream
func (m *MockChannel) Errors() <-chan error {
	return m.errors
}

// Test helpers

// SetConnectError sets an error to return from Connect()
func (m *MockChannel) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// SetSignalError sets an error to return from Join() and Leave()
func (m *MockChannel) SetSignalError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalErr = err
}

// ConnectCalls returns how many times Connect was called
func (m *MockChannel) ConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

// SignalsFor returns the recorded signals with the given event name
func (m *MockChannel) SignalsFor(event string) []MockSignal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MockSignal
	for _, s := range m.Signals {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

// SimulateEvent pushes an inbound event
func (m *MockChannel) SimulateEvent(ev Event) {
	m.events <- ev
}

// SimulateError pushes a transport error
func (m *MockChannel) SimulateError(err error) {
	m.errors <- err
}
