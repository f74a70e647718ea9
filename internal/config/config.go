package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the agent configuration loaded from yaml with env overrides.
type Config struct {
	// Provider holds Codex transport settings.
	Provider ProviderConfig `yaml:"provider"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// SessionRoot is loaded from session_root but is not consulted: session
	// logs are always written under the workspace's .tape/sessions directory.
	SessionRoot string `yaml:"session_root"`
}

// ProviderConfig configures the Codex API provider.
type ProviderConfig struct {
	AccessToken string        `yaml:"access_token"`
	AccountID   string        `yaml:"account_id"`
	ModelIDs    []string      `yaml:"model_ids"`
	BaseURL     string        `yaml:"base_url"`
	SessionID   string        `yaml:"session_id"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoggingConfig mirrors observability.LogConfig for file-based setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			ModelIDs: []string{"gpt-5.2-codex", "gpt-5.1-codex-mini"},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tape", "config.yaml")
}

// Load reads the yaml file at path (when it exists) over the defaults, then
// applies environment overrides. A missing file is not an error; a
// malformed file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults apply.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TAPE_ACCESS_TOKEN"); ok && strings.TrimSpace(v) != "" {
		c.Provider.AccessToken = strings.TrimSpace(v)
	}
	if v, ok := lookup("TAPE_ACCOUNT_ID"); ok && strings.TrimSpace(v) != "" {
		c.Provider.AccountID = strings.TrimSpace(v)
	}
	if v, ok := lookup("TAPE_BASE_URL"); ok && strings.TrimSpace(v) != "" {
		c.Provider.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("TAPE_MODEL_IDS"); ok && strings.TrimSpace(v) != "" {
		var ids []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			c.Provider.ModelIDs = ids
		}
	}
	if v, ok := lookup("TAPE_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = strings.TrimSpace(v)
	}
}

// Validate reports configuration errors a run cannot proceed past.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.AccessToken) == "" {
		return fmt.Errorf("provider access token is required (set provider.access_token or TAPE_ACCESS_TOKEN)")
	}
	if len(c.Provider.ModelIDs) == 0 {
		return fmt.Errorf("at least one model id is required")
	}
	return nil
}
