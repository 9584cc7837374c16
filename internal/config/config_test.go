package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.ReferralRate.MaxAttempts != 5 {
		t.Errorf("Expected default max attempts 5, got %d", cfg.ReferralRate.MaxAttempts)
	}
	if cfg.ReferralRate.WindowMinutes != 60 {
		t.Errorf("Expected default window 60 minutes, got %d", cfg.ReferralRate.WindowMinutes)
	}
	if cfg.Redis.Enabled {
		t.Error("Expected Redis disabled by default")
	}
	if cfg.Security.MaxRequestBodySize != 1<<20 {
		t.Errorf("Expected default body size 1MB, got %d", cfg.Security.MaxRequestBodySize)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("REFERRAL_RATE_MAX", "10")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.ReferralRate.MaxAttempts != 10 {
		t.Errorf("Expected max attempts 10, got %d", cfg.ReferralRate.MaxAttempts)
	}
	if !cfg.Redis.Enabled {
		t.Error("Expected Redis enabled")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"server": {"port": "3000"},
		"referral_rate": {"max_attempts": 3, "window_minutes": 30}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port 3000 from file, got %s", cfg.Server.Port)
	}
	if cfg.ReferralRate.MaxAttempts != 3 || cfg.ReferralRate.WindowMinutes != 30 {
		t.Errorf("Expected rate 3/30 from file, got %d/%d",
			cfg.ReferralRate.MaxAttempts, cfg.ReferralRate.WindowMinutes)
	}
}

func TestLoadConfig_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server": {"port": "3000"}}`), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("SERVER_PORT", "4000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("Expected env port 4000 to override file, got %s", cfg.Server.Port)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := LoadConfig("")
		return cfg
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}

	cfg = valid()
	cfg.Server.Port = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty port")
	}

	cfg = valid()
	cfg.ReferralRate.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero max attempts")
	}

	cfg = valid()
	cfg.Email.Enabled = true
	cfg.Email.FromAddress = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for email enabled without from address")
	}
}
