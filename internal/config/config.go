package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrNoConfig         = errors.New("config file not found")
	ErrNoAPIKey         = errors.New("api_key not set in config")
	ErrInvalidJSON      = errors.New("invalid config JSON")
	ErrInvalidApplyMode = errors.New("apply_mode must be \"trust\" or \"checked\"")
)

// Config holds the global quill configuration.
type Config struct {
	APIKey            string  `json:"api_key"`
	BaseURL           string  `json:"base_url"`
	DefaultModel      string  `json:"default_model"`       // Model id forwarded on chat sends; empty lets the backend choose
	TeamID            string  `json:"team_id"`             // Team scope forwarded on chat sends
	KnowledgeBaseID   string  `json:"knowledge_base_id"`   // Default knowledge base for assist actions
	EnableWebSearch   *bool   `json:"enable_web_search"`   // Include web sources in assist responses (default: false)
	ApplyMode         *string `json:"apply_mode"`          // Patch application mode: "trust" or "checked"
	ContextBudget     int     `json:"context_budget"`      // Token budget for surrounding context (default: 2000)
	SelectionPollMs   int     `json:"selection_poll_ms"`   // Polling tracker interval in ms (default: 200)
	ActionsDir        string  `json:"actions_dir"`         // Directory of user action templates
	DebugFile         string  `json:"debug_file"`          // Optional log file path
	RequestTimeoutSec int     `json:"request_timeout_sec"` // Per-request timeout (default: 300)
}

// Load reads the config from ~/.config/quill/config.json.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "quill", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.quillassist.io/api/v1"
	}
	if cfg.EnableWebSearch == nil {
		f := false
		cfg.EnableWebSearch = &f
	}
	if cfg.ApplyMode == nil {
		am := "trust"
		cfg.ApplyMode = &am
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = 2000
	}
	if cfg.SelectionPollMs <= 0 {
		cfg.SelectionPollMs = 200
	}
	if cfg.ActionsDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.ActionsDir = filepath.Join(home, ".config", "quill", "actions")
		}
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 300
	}
	switch *cfg.ApplyMode {
	case "trust", "checked":
		// valid
	default:
		return nil, ErrInvalidApplyMode
	}

	return &cfg, nil
}
