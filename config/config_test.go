package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != OpenAI {
		t.Errorf("Provider = %s, want openai", cfg.Provider)
	}
	if len(cfg.Watchlist) == 0 {
		t.Error("default watchlist empty")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
provider: anthropic
model: claude-3-5-haiku-latest
api_key_env: ANTHROPIC_API_KEY
base_url: ""
watchlist:
  - NVDA
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider != Anthropic {
		t.Errorf("Provider = %s, want anthropic", cfg.Provider)
	}
	if cfg.Model != "claude-3-5-haiku-latest" {
		t.Errorf("Model = %s", cfg.Model)
	}
	// fields absent from the file keep their defaults
	if cfg.MaxTokens != Default().MaxTokens {
		t.Errorf("MaxTokens = %d, want default", cfg.MaxTokens)
	}
}

func TestLoadInvalidProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: groq\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted unknown provider")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FA_MODEL", "gpt-4o-mini")
	t.Setenv("FA_WATCHLIST", "msft, nvda ,amd")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %s, want env override", cfg.Model)
	}
	want := []string{"MSFT", "NVDA", "AMD"}
	if !reflect.DeepEqual(cfg.Watchlist, want) {
		t.Errorf("Watchlist = %v, want %v", cfg.Watchlist, want)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	cfg := Default()
	cfg.APIKeyEnv = "FA_TEST_MISSING_KEY"
	os.Unsetenv("FA_TEST_MISSING_KEY")
	if _, err := cfg.APIKey(); err == nil {
		t.Fatal("APIKey() accepted missing credential")
	}
	t.Setenv("FA_TEST_MISSING_KEY", "secret")
	key, err := cfg.APIKey()
	if err != nil {
		t.Fatalf("APIKey() error = %v", err)
	}
	if key != "secret" {
		t.Errorf("APIKey() = %q", key)
	}
}
