// Package config loads daemon configuration and resolves Neon
// credentials. Settings come from an optional YAML file with
// environment variable overrides; secrets only ever come from the
// environment or the neonctl credentials file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
)

// Config holds all configuration for fgp-neon.
// Environment variables always override YAML values. The API key and
// org id are secrets and deliberately have no YAML binding.
type Config struct {
	// Neon API credentials. APIKey falls back to the neonctl
	// credentials file when the environment variable is unset.
	APIKey string `yaml:"-" env:"NEON_API_KEY"`
	OrgID  string `yaml:"-" env:"NEON_ORG_ID"`

	// BaseURL is the Neon control-plane root, without trailing slash.
	BaseURL string `yaml:"base_url" env:"NEON_API_URL" env-default:"https://console.neon.tech/api/v2"`

	// HTTP client tuning.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" env:"FGP_NEON_HTTP_TIMEOUT" env-default:"30"`
	MaxIdleConns       int `yaml:"max_idle_conns" env:"FGP_NEON_MAX_IDLE_CONNS" env-default:"5"`

	// SocketPath is where the daemon listens. Empty means the default
	// under the user's home directory.
	SocketPath string `yaml:"socket" env:"FGP_NEON_SOCKET" env-default:""`

	// Logging.
	LogLevel  string `yaml:"log_level" env:"FGP_NEON_LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"FGP_NEON_LOG_FORMAT" env-default:"json"`

	Version string `yaml:"-"` // Set at load time, not from config
}

// Load reads configuration from ~/.fgp/services/neon/config.yaml if it
// exists, applies environment overrides, and resolves credentials. The
// version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	path, pathErr := ConfigFilePath()
	if pathErr == nil && fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("reading environment: %w", err)
		}
	}

	if err := cfg.resolveCredentials(); err != nil {
		return nil, err
	}

	if cfg.SocketPath == "" {
		sock, err := DefaultSocketPath()
		if err != nil {
			return nil, err
		}
		cfg.SocketPath = sock
	} else {
		cfg.SocketPath = ExpandHome(cfg.SocketPath)
	}

	return cfg, nil
}

// HTTPTimeout returns the outbound request timeout as a Duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// resolveCredentials fills APIKey from the neonctl credentials file
// when the environment did not provide one, then validates that both
// credentials are present.
func (c *Config) resolveCredentials() error {
	if c.APIKey == "" {
		if token, err := readNeonctlToken(); err == nil {
			c.APIKey = token
		}
	}
	if c.APIKey == "" {
		return apperrors.Config("no Neon API key found: set NEON_API_KEY or log in with `neonctl auth`")
	}
	if c.OrgID == "" {
		return apperrors.Config("NEON_ORG_ID must be set")
	}
	return nil
}

// neonctlCredentials is the subset of the neonctl credentials file the
// daemon reads.
type neonctlCredentials struct {
	AccessToken string `json:"access_token"`
}

// readNeonctlToken loads the access token persisted by `neonctl auth`.
func readNeonctlToken() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(home, ".config", "neonctl", "credentials.json")

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var creds neonctlCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	if creds.AccessToken == "" {
		return "", fmt.Errorf("%s has no access_token", path)
	}
	return creds.AccessToken, nil
}

// DefaultSocketPath returns ~/.fgp/services/neon/daemon.sock.
func DefaultSocketPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".fgp", "services", "neon", "daemon.sock"), nil
}

// ResolveSocketPath picks the socket path for commands that run
// without full configuration, such as stop and status: the explicit
// flag value wins, then the FGP_NEON_SOCKET override, then the
// default location.
func ResolveSocketPath(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv("FGP_NEON_SOCKET")
	}
	if explicit == "" {
		return DefaultSocketPath()
	}
	return ExpandHome(explicit), nil
}

// ConfigFilePath returns ~/.fgp/services/neon/config.yaml.
func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".fgp", "services", "neon", "config.yaml"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory. The
// path is returned unchanged when it has no tilde prefix or the home
// directory cannot be resolved.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
