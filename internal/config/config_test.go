package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFrom(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{
			"api_key": "qk-test-123",
			"base_url": "https://api.example.com",
			"team_id": "team-9",
			"knowledge_base_id": "kb-42"
		}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.APIKey != "qk-test-123" {
			t.Errorf("APIKey = %q, want %q", cfg.APIKey, "qk-test-123")
		}
		if cfg.BaseURL != "https://api.example.com" {
			t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://api.example.com")
		}
		if cfg.TeamID != "team-9" {
			t.Errorf("TeamID = %q, want %q", cfg.TeamID, "team-9")
		}
		if cfg.KnowledgeBaseID != "kb-42" {
			t.Errorf("KnowledgeBaseID = %q, want %q", cfg.KnowledgeBaseID, "kb-42")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{"api_key": "qk-test-123"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.BaseURL != "https://api.quillassist.io/api/v1" {
			t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
		}
		if cfg.EnableWebSearch == nil || *cfg.EnableWebSearch {
			t.Errorf("EnableWebSearch should default to false, got %v", cfg.EnableWebSearch)
		}
		if cfg.ApplyMode == nil || *cfg.ApplyMode != "trust" {
			t.Errorf("ApplyMode should default to \"trust\", got %v", cfg.ApplyMode)
		}
		if cfg.ContextBudget != 2000 {
			t.Errorf("ContextBudget = %d, want 2000", cfg.ContextBudget)
		}
		if cfg.SelectionPollMs != 200 {
			t.Errorf("SelectionPollMs = %d, want 200", cfg.SelectionPollMs)
		}
		if cfg.RequestTimeoutSec != 300 {
			t.Errorf("RequestTimeoutSec = %d, want 300", cfg.RequestTimeoutSec)
		}
	})

	t.Run("apply_mode checked", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{"api_key": "qk-test-123", "apply_mode": "checked"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ApplyMode == nil || *cfg.ApplyMode != "checked" {
			t.Errorf("ApplyMode should be \"checked\", got %v", cfg.ApplyMode)
		}
	})

	t.Run("apply_mode invalid", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{"api_key": "qk-test-123", "apply_mode": "bogus"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := LoadFrom(path)
		if err != ErrInvalidApplyMode {
			t.Errorf("error = %v, want ErrInvalidApplyMode", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFrom("/nonexistent/path/config.json")
		if err != ErrNoConfig {
			t.Errorf("error = %v, want ErrNoConfig", err)
		}
	})

	t.Run("missing api_key", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		content := `{"base_url": "https://api.example.com"}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFrom(path)
		if err != ErrNoAPIKey {
			t.Errorf("error = %v, want ErrNoAPIKey", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.json")
		if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := LoadFrom(path)
		if err != ErrInvalidJSON {
			t.Errorf("error = %v, want ErrInvalidJSON", err)
		}
	})
}
