package config

import (
	"testing"
)

func TestGetAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ORCA_ANTHROPIC_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, err := GetAPIKey(&Config{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" {
			t.Errorf("expected 'sk-ant-test-key', got %q", key)
		}
	})

	t.Run("orca variable wins", func(t *testing.T) {
		t.Setenv("ORCA_ANTHROPIC_API_KEY", "sk-ant-orca-key")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		key, _ := GetAPIKey(&Config{})
		if key != "sk-ant-orca-key" {
			t.Errorf("expected 'sk-ant-orca-key', got %q", key)
		}
	})

	t.Run("from config", func(t *testing.T) {
		t.Setenv("ORCA_ANTHROPIC_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}
		key, err := GetAPIKey(cfg)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if key != "sk-ant-config-key" {
			t.Errorf("expected 'sk-ant-config-key', got %q", key)
		}
	})

	t.Run("unresolved reference", func(t *testing.T) {
		t.Setenv("ORCA_ANTHROPIC_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${ORCA_UNSET_KEY_VAR}"}}
		if _, err := GetAPIKey(cfg); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ORCA_ANTHROPIC_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		if _, err := GetAPIKey(&Config{}); err != ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestNeedsAPIKey(t *testing.T) {
	tests := []struct {
		name  string
		model ModelConfig
		bed   bool
		want  bool
	}{
		{"model disabled", ModelConfig{Provider: "anthropic"}, false, false},
		{"anthropic", ModelConfig{Enabled: true, Provider: "anthropic"}, false, true},
		{"default provider", ModelConfig{Enabled: true}, false, true},
		{"bedrock", ModelConfig{Enabled: true, Provider: "anthropic"}, true, false},
		{"ollama", ModelConfig{Enabled: true, Provider: "ollama"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Workers: WorkersConfig{Model: tt.model}, Anthropic: AnthropicConfig{UseBedrock: tt.bed}}
			if got := NeedsAPIKey(cfg); got != tt.want {
				t.Errorf("NeedsAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty", "", true},
		{"wrong prefix", "sk-test-1234567890abcdef", true},
		{"too short", "sk-ant-123", true},
		{"valid", "sk-ant-REDACTED", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...cdef"},
	}
	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGetAPIKeySource(t *testing.T) {
	t.Setenv("ORCA_ANTHROPIC_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := GetAPIKeySource(&Config{}); got != KeySourceNone {
		t.Errorf("GetAPIKeySource(empty) = %s, want %s", got, KeySourceNone)
	}
	if got := GetAPIKeySource(&Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-x"}}); got != KeySourceConfig {
		t.Errorf("GetAPIKeySource(config) = %s, want %s", got, KeySourceConfig)
	}
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	if got := GetAPIKeySource(&Config{}); got != KeySourceEnv {
		t.Errorf("GetAPIKeySource(env) = %s, want %s", got, KeySourceEnv)
	}
}
