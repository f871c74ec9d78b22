package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacefiler/spacefiler/internal/config"
)

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	expectedSubs := []string{"show", "set", "test", "path"}
	subcommands := cmd.Commands()
	if len(subcommands) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(subcommands))
	}

	foundSubs := make(map[string]bool)
	for _, sub := range subcommands {
		foundSubs[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Subcommand '%s' has no short description", sub.Name())
		}
		if sub.RunE == nil {
			t.Errorf("Subcommand '%s' has no RunE", sub.Name())
		}
	}
	for _, expected := range expectedSubs {
		if !foundSubs[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

func TestConfigSetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	old := cfgFile
	cfgFile = path
	defer func() { cfgFile = old }()

	cmd := newConfigSetCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"filer.base_url", "https://files.example.com"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if !strings.Contains(out.String(), "filer.base_url = https://files.example.com") {
		t.Errorf("unexpected output: %q", out.String())
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BaseURL != "https://files.example.com" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestSetConfigValueRejectsInvalidResult(t *testing.T) {
	cfg := config.NewConfig()

	if err := setConfigValue(cfg, "proxy.mode", "ntlm"); !errors.Is(err, config.ErrMissingProxyHost) {
		t.Errorf("ntlm without host: err = %v, want ErrMissingProxyHost", err)
	}
	if err := setConfigValue(cfg, "nope.key", "x"); err == nil {
		t.Error("unknown key should fail")
	}
	cfg = config.NewConfig()
	if err := setConfigValue(cfg, "client.max_retries", "2"); err != nil || cfg.MaxRetries != 2 {
		t.Errorf("max_retries: err=%v value=%d", err, cfg.MaxRetries)
	}
}

func TestPrintConfigMissingFile(t *testing.T) {
	var out bytes.Buffer
	cfg := config.NewConfig()
	cfg.Username = "alice"
	printConfig(&out, cfg, filepath.Join(t.TempDir(), "absent"))

	s := out.String()
	for _, want := range []string{"Base URL: " + cfg.BaseURL, "Username: alice", "Max Retries:     0", "(file does not exist - using defaults)"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Proxy Host") {
		t.Error("proxy host shown although none is set")
	}
}
