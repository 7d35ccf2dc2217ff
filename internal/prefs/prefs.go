// Package prefs persists small per-user settings, like the preferred
// transport mode, in a YAML file under the user config directory. It is
// deliberately dumb: flat string keys, last write wins.
package prefs

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/tkarls/arrmon/internal/errors"
)

const (
	// PrefsDir is the directory for preference storage, under $HOME.
	PrefsDir = ".config/arrmon"
	// PrefsFile is the preference file name.
	PrefsFile = "prefs.yaml"
)

// Store is a file-backed preference store. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// DefaultPath returns the standard preference file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set HOME, or pass an explicit preferences path")
	}
	return filepath.Join(home, PrefsDir, PrefsFile), nil
}

// Open loads the preference file at path, creating parent directories as
// needed. A missing file is not an error; it appears on the first Set. An
// empty path uses DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create preferences directory",
			"Check permissions on "+filepath.Dir(path))
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read preferences file",
				"Check that "+path+" is valid YAML, or delete it to reset")
		}
	}

	return &Store{v: v, path: path}, nil
}

// Get returns the stored value for key, or "" when unset.
func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(key)
}

// Set stores and persists one value.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to save preferences",
			"Check permissions on "+s.path)
	}
	return nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}
