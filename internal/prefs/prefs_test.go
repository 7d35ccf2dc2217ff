package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarls/arrmon/internal/transport"
)

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	// Unset keys read as empty; the feed treats that as the polling default.
	assert.Equal(t, "", s.Get(transport.PreferenceKey))
	assert.Equal(t, transport.ModePull, transport.ModeFromPreference(s.Get(transport.PreferenceKey)))

	// The file only materializes on first write.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSetPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(transport.PreferenceKey, "websocket"))
	assert.Equal(t, "websocket", s.Get(transport.PreferenceKey))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "websocket", reopened.Get(transport.PreferenceKey))
}

func TestSetOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(transport.PreferenceKey, "websocket"))
	require.NoError(t, s.Set(transport.PreferenceKey, "polling"))
	assert.Equal(t, "polling", s.Get(transport.PreferenceKey))
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{not yaml"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}
