package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tkarls/arrmon/internal/errors"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".arrmon.yaml"
	// GlobalConfigDir is the directory for global config, under $HOME.
	GlobalConfigDir = ".config/arrmon"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// TokenEnvVar is the environment variable carrying the push auth token.
	TokenEnvVar = "ARRMON_TOKEN"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'arrmon init' to create one, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	for i := range cfg.Servers {
		if cfg.Servers[i].Kind == "" {
			cfg.Servers[i].Kind = "other"
		}
	}
	if cfg.Dashboard.SocketURL == "" {
		cfg.Dashboard.SocketURL = DeriveSocketURL(cfg.Dashboard.BaseURL)
	}

	return cfg, nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .arrmon.yaml in the current directory
// 3. ~/.config/arrmon/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	if home, _ := os.UserHomeDir(); home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults if not
// found. Commands like 'arrmon init' need to work without existing config.
func LoadOrDefault() (*Config, string, error) {
	path, err := Find("")
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// LoadToken returns the push auth token from the environment, after merging
// in a .env file next to the config when one exists. A missing token is not
// an error: push simply stays unavailable.
func LoadToken(configPath string) string {
	if configPath != "" {
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
		}
	}
	return os.Getenv(TokenEnvVar)
}

// DeriveSocketURL converts a management API base URL into the matching
// websocket endpoint: scheme swapped to ws/wss, path /ws/metrics.
func DeriveSocketURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/metrics"
	return u.String()
}
