package client

import (
	"context"

	"github.com/aeolun/forumchat/pkg/forum"
)

// ThreadStore is the request/response side of the forum server.
// APIClient implements it; tests use MockThreadStore.
type ThreadStore interface {
	ListThreads(ctx context.Context) ([]forum.Thread, error)
	CreateThread(ctx context.Context, title string) (forum.Thread, error)
	ListPosts(ctx context.Context, threadID int64) ([]forum.Post, error)
	CreatePost(ctx context.Context, threadID int64, username, content string) (forum.Post, error)
	DeleteThread(ctx context.Context, threadID int64) error
	WipeThreads(ctx context.Context) error
}

// RealtimeInterface defines the push channel used by the UI.
// This allows for mocking in tests while Channel implements all these methods
type RealtimeInterface interface {
	// Connection management
	Connect(ctx context.Context) error
	Close()
	IsConnected() bool
	GetAddress() string

	// Room membership signals. Signals sent before Connect are queued.
	Join(threadID int64, username string) error
	Leave(threadID int64, username string) error

	// Channels for receiving data. Events is closed after Close.
	Events() <-chan Event
	Errors() <-chan error
}

// StateInterface defines the interface for client state persistence
// This allows for mocking in tests while the real State implements all these methods
type StateInterface interface {
	// Configuration
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Remembered display name
	GetDisplayName() string
	SetDisplayName(name string) error

	// State directory
	GetStateDir() string

	// Close the state
	Close() error
}
