package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateDisplayNamePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := OpenState(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), s.GetStateDir())
	assert.Equal(t, "", s.GetDisplayName())

	require.NoError(t, s.SetDisplayName("alice"))
	assert.Equal(t, "alice", s.GetDisplayName())
	require.NoError(t, s.SetDisplayName("alice2"))
	require.NoError(t, s.Close())

	s, err = OpenState(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "alice2", s.GetDisplayName())

	raw, err := s.GetConfig(DisplayNameKey)
	require.NoError(t, err)
	assert.Equal(t, "alice2", raw)
}

func TestStateConfigMissingKey(t *testing.T) {
	s, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer s.Close()

	v, err := s.GetConfig("nope")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetConfig("theme", "dark"))
	v, err = s.GetConfig("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
}

func TestStateMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	for i := 0; i < 3; i++ {
		s, err := OpenState(path)
		require.NoError(t, err)

		var version int
		require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, len(migrations), version)
		require.NoError(t, s.Close())
	}
}
