package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfigDir(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return dir
}

// clearEnv unsets every WEBCHAT_* override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WEBCHAT_SERVER_URL", "WEBCHAT_SOCKET_URL", "WEBCHAT_HEALTH_URL", "WEBCHAT_UPLOAD_URL",
		"WEBCHAT_STORAGE", "WEBCHAT_DEFAULT_MODEL", "WEBCHAT_RECONNECT_DELAY",
		"WEBCHAT_HANDSHAKE_TIMEOUT", "WEBCHAT_REQUEST_TIMEOUT", "WEBCHAT_METRICS_ADDR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	clearEnv(t)
	dir := writeTempConfigDir(t, "webchat.yaml", `server_url: https://chat.example.com
storage: pebble
reconnect_delay: 5s
`)

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}
	if cfg.ServerURL != "https://chat.example.com" {
		t.Errorf("expected server_url from file, got %q", cfg.ServerURL)
	}
	if cfg.Storage != "pebble" {
		t.Errorf("expected storage pebble, got %q", cfg.Storage)
	}
	if cfg.ReconnectDelayDuration() != 5*time.Second {
		t.Errorf("expected 5s reconnect delay, got %s", cfg.ReconnectDelayDuration())
	}
	if cfg.Path != filepath.Join(dir, "webchat.yaml") {
		t.Errorf("expected Path to be recorded, got %q", cfg.Path)
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	clearEnv(t)
	dir := writeTempConfigDir(t, "webchat.toml", `server_url = "http://10.0.0.2:23333"
default_model = "pro-2.5"
`)

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("failed to load TOML config: %v", err)
	}
	if cfg.ServerURL != "http://10.0.0.2:23333" {
		t.Errorf("expected server_url from file, got %q", cfg.ServerURL)
	}
	if cfg.DefaultModel != "pro-2.5" {
		t.Errorf("expected default_model pro-2.5, got %q", cfg.DefaultModel)
	}
}

func TestLoadJSONConfig(t *testing.T) {
	clearEnv(t)
	dir := writeTempConfigDir(t, "webchat.json", `{"socket_url": "ws://localhost:9000/ws", "metrics_addr": ":9100"}`)

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}
	if cfg.SocketURL != "ws://localhost:9000/ws" {
		t.Errorf("expected socket_url from file, got %q", cfg.SocketURL)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("expected metrics_addr from file, got %q", cfg.MetricsAddr)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != DefaultServerURL || cfg.Storage != DefaultStorage || cfg.DefaultModel != DefaultModel {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.ReconnectDelayDuration() != 3*time.Second {
		t.Errorf("expected 3s reconnect delay, got %s", cfg.ReconnectDelayDuration())
	}
	if cfg.Path != "" {
		t.Errorf("expected no Path, got %q", cfg.Path)
	}
}

func TestLoadSearchOrder(t *testing.T) {
	clearEnv(t)
	first := writeTempConfigDir(t, "webchat.yaml", "server_url: http://first:1\n")
	second := writeTempConfigDir(t, "webchat.yaml", "server_url: http://second:2\n")

	cfg, err := Load("", "", t.TempDir(), first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != "http://first:1" {
		t.Errorf("expected the first directory with a config to win, got %q", cfg.ServerURL)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := writeTempConfigDir(t, "webchat.yaml", "server_url: http://file:1\nstorage: file\n")
	t.Setenv("WEBCHAT_SERVER_URL", "http://env:2")
	t.Setenv("WEBCHAT_STORAGE", "memory")

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != "http://env:2" {
		t.Errorf("expected env to override file, got %q", cfg.ServerURL)
	}
	if cfg.Storage != "memory" {
		t.Errorf("expected env storage, got %q", cfg.Storage)
	}
}

func TestDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	clearEnv(t)
	dir := writeTempConfigDir(t, ".env", "WEBCHAT_RECONNECT_DELAY=750ms\nWEBCHAT_DEFAULT_MODEL=flash-2.5\n")
	t.Setenv("WEBCHAT_DEFAULT_MODEL", "pro-2.5")
	t.Cleanup(func() { os.Unsetenv("WEBCHAT_RECONNECT_DELAY") })

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReconnectDelayDuration() != 750*time.Millisecond {
		t.Errorf("expected .env reconnect delay, got %s", cfg.ReconnectDelayDuration())
	}
	if cfg.DefaultModel != "pro-2.5" {
		t.Errorf("expected process env to win over .env, got %q", cfg.DefaultModel)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindConfigFile(dir); !errors.Is(err, ErrNoConfigFile) {
		t.Fatalf("expected ErrNoConfigFile, got %v", err)
	}

	ymlPath := filepath.Join(dir, "webchat.yml")
	tomlPath := filepath.Join(dir, "webchat.toml")
	for _, p := range []string{ymlPath, tomlPath} {
		if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}

	found, err := FindConfigFile(dir)
	if err != nil {
		t.Fatalf("failed to find config file: %v", err)
	}
	if found != ymlPath {
		t.Errorf("expected yml to take precedence, got %s", found)
	}
}

func TestInvalidConfigs(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"invalid TOML", "webchat.toml", "server_url = \"x\"\n[invalid\n"},
		{"invalid JSON", "webchat.json", `{"server_url": "x", invalid json}`},
		{"invalid YAML", "webchat.yaml", "server_url: x\ninvalid yaml: [ unclosed bracket"},
		{"bad duration", "webchat.yaml", "reconnect_delay: soon\n"},
		{"negative duration", "webchat.yaml", "request_timeout: -1s\n"},
		{"unknown storage", "webchat.yaml", "storage: redis\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := writeTempConfigDir(t, tt.file, tt.content)
			if _, err := Load("", dir); err == nil {
				t.Fatalf("expected error for %s, but got none", tt.name)
			}
		})
	}
}

func TestIsConfigFile(t *testing.T) {
	tests := []struct {
		filePath string
		expected bool
	}{
		{"webchat.yaml", true},
		{"webchat.yml", true},
		{"/tmp/x/webchat.toml", true},
		{"webchat.json", true},
		{"other.yaml", false},
		{"webchat.txt", false},
		{"webchat.yaml.bak", false},
		{"", false},
		{"webchat", false},
	}

	for _, test := range tests {
		result := IsConfigFile(test.filePath)
		if result != test.expected {
			t.Errorf("IsConfigFile(%q) = %v, expected %v", test.filePath, result, test.expected)
		}
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "webchat.yaml")

	in := &WebchatConfig{ServerURL: "http://saved:1", Storage: "pebble"}
	if err := SaveConfig(in, path); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	out, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if out.ServerURL != in.ServerURL || out.Storage != in.Storage {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
