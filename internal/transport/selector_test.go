package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarls/arrmon/internal/errors"
)

// memStore is a PreferenceStore backed by a map, for tests.
type memStore struct {
	values map[string]string
	setErr error
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(key string) string { return m.values[key] }

func (m *memStore) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func TestEligibleForPush(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"no explicit port", "https://dash.example.com", true},
		{"default http port", "http://dash.example.com:80", true},
		{"proxy port", "https://dash.example.com:8443", true},
		{"direct backend port", "http://dash.example.com:7878", false},
		{"dev server port", "http://localhost:3000", false},
		{"empty origin", "", false},
		{"garbage origin", "://nope", false},
	}

	var s Selector // zero value uses DefaultProxyPort
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.EligibleForPush(tt.origin))
		})
	}
}

func TestEligibleForPushCustomProxyPort(t *testing.T) {
	s := Selector{ProxyPort: "9000"}

	assert.True(t, s.EligibleForPush("http://dash:9000"))
	assert.False(t, s.EligibleForPush("http://dash:8443"))
}

func TestModeFromPreference(t *testing.T) {
	assert.Equal(t, ModePush, ModeFromPreference("websocket"))
	assert.Equal(t, ModePull, ModeFromPreference("polling"))
	assert.Equal(t, ModePull, ModeFromPreference(""))
	assert.Equal(t, ModePull, ModeFromPreference("something-else"))
}

func TestPreferenceValueRoundTrip(t *testing.T) {
	assert.Equal(t, ModePush, ModeFromPreference(ModePush.PreferenceValue()))
	assert.Equal(t, ModePull, ModeFromPreference(ModePull.PreferenceValue()))
}

func TestModeOpposite(t *testing.T) {
	assert.Equal(t, ModePull, ModePush.Opposite())
	assert.Equal(t, ModePush, ModePull.Opposite())
}

func TestResolveMode(t *testing.T) {
	var s Selector

	t.Run("absent preference defaults to pull", func(t *testing.T) {
		store := newMemStore()
		assert.Equal(t, ModePull, s.ResolveMode(store, "https://dash.example.com"))
	})

	t.Run("stored push honored while eligible", func(t *testing.T) {
		store := newMemStore()
		store.values[PreferenceKey] = "websocket"
		assert.Equal(t, ModePush, s.ResolveMode(store, "https://dash.example.com"))
	})

	t.Run("stored push falls back when ineligible", func(t *testing.T) {
		store := newMemStore()
		store.values[PreferenceKey] = "websocket"
		assert.Equal(t, ModePull, s.ResolveMode(store, "http://localhost:3000"))
		// The stored value is never auto-corrected.
		assert.Equal(t, "websocket", store.values[PreferenceKey])
	})
}

func TestRequestMode(t *testing.T) {
	var s Selector

	t.Run("eligible push persists preference", func(t *testing.T) {
		store := newMemStore()
		err := s.RequestMode(store, "https://dash.example.com:8443", ModePush)
		require.NoError(t, err)
		assert.Equal(t, "websocket", store.values[PreferenceKey])
	})

	t.Run("ineligible push refused, preference untouched", func(t *testing.T) {
		store := newMemStore()
		store.values[PreferenceKey] = "polling"

		err := s.RequestMode(store, "http://localhost:3000", ModePush)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrEligible))
		assert.Equal(t, "polling", store.values[PreferenceKey])
	})

	t.Run("pull always allowed", func(t *testing.T) {
		store := newMemStore()
		err := s.RequestMode(store, "http://localhost:3000", ModePull)
		require.NoError(t, err)
		assert.Equal(t, "polling", store.values[PreferenceKey])
	})
}
