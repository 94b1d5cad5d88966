package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aeolun/forumchat/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd executes the CLI against store with a throwaway config file
func runCmd(t *testing.T, store *client.MockThreadStore, args ...string) (string, error) {
	t.Helper()
	a := &app{newStore: func(cfg client.Config) client.ThreadStore { return store }}

	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "config.toml")}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestThreadsList(t *testing.T) {
	store := client.NewMockThreadStore()
	store.AddThread("First thread")
	store.AddThread("Second thread")

	out, err := runCmd(t, store, "threads", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "First thread")
	assert.Contains(t, out, "Second thread")
	assert.Less(t, strings.Index(out, "Second thread"), strings.Index(out, "First thread"))
}

func TestThreadsListEmpty(t *testing.T) {
	out, err := runCmd(t, client.NewMockThreadStore(), "threads", "list")
	require.NoError(t, err)
	assert.Equal(t, "No threads yet.\n", out)
}

func TestThreadsDelete(t *testing.T) {
	store := client.NewMockThreadStore()
	th := store.AddThread("Doomed")

	out, err := runCmd(t, store, "threads", "delete", "1")
	require.NoError(t, err)
	assert.Equal(t, "Deleted thread 1\n", out)
	assert.Equal(t, client.MockCall{Op: "delete_thread", ThreadID: th.ID}, store.Calls[0])

	_, err = runCmd(t, store, "threads", "delete", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thread not found")
}

func TestThreadsDeleteInvalidID(t *testing.T) {
	for _, arg := range []string{"abc", "0", "-3"} {
		store := client.NewMockThreadStore()
		_, err := runCmd(t, store, "threads", "delete", "--", arg)
		require.Error(t, err, arg)
		assert.Contains(t, err.Error(), "invalid thread id")
		assert.Empty(t, store.Calls)
	}
}

func TestThreadsWipe(t *testing.T) {
	store := client.NewMockThreadStore()
	store.AddThread("A")

	_, err := runCmd(t, store, "threads", "wipe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Zero(t, store.CallCount("wipe_threads"))

	out, err := runCmd(t, store, "threads", "wipe", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "All threads deleted\n", out)
	assert.Equal(t, 1, store.CallCount("wipe_threads"))
}

func TestServerFlagOverridesConfig(t *testing.T) {
	var gotURL string
	a := &app{newStore: func(cfg client.Config) client.ThreadStore {
		gotURL = cfg.Server.URL
		return client.NewMockThreadStore()
	}}
	cmd := a.rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "config.toml"), "--server", "https://forum.example.com", "threads", "list"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "https://forum.example.com", gotURL)
}

func TestServerFlagRejectsBadURL(t *testing.T) {
	_, err := runCmd(t, client.NewMockThreadStore(), "--server", "ftp://forum", "threads", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.url")
}

func TestDisplayAddress(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:5000", "localhost:5000"},
		{"https://forum.example.com/", "forum.example.com"},
		{"localhost:5000", "localhost:5000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, displayAddress(tt.in), tt.in)
	}
}
