package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override (WEBCHAT_SERVER_URL, ...).
const EnvPrefix = "WEBCHAT"

// ErrNoConfigFile is returned by FindConfigFile when no file exists.
var ErrNoConfigFile = errors.New("no webchat config file (yaml/toml/json) found")

// Load resolves the configuration for a run: the first config file found in
// searchDirs, then .env in envDir, then WEBCHAT_* variables, then defaults.
// A missing config file is not an error.
func Load(envDir string, searchDirs ...string) (*WebchatConfig, error) {
	path := ""
	for _, dir := range searchDirs {
		if dir == "" {
			continue
		}
		if found, err := FindConfigFile(dir); err == nil {
			path = found
			break
		}
	}
	return LoadFrom(path, envDir)
}

// LoadFrom resolves the configuration from the file at path (none when
// empty) with the same layering as Load. Environment values beat the file.
func LoadFrom(path, envDir string) (*WebchatConfig, error) {
	cfg := &WebchatConfig{}
	if path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if envDir != "" {
		if err := LoadDotEnv(filepath.Join(envDir, ".env")); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s_* environment: %w", EnvPrefix, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfigFile loads a specific webchat config file
func LoadConfigFile(filePath string) (*WebchatConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	fileExt := strings.ToLower(filepath.Ext(filePath))

	var config WebchatConfig
	switch fileExt {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config file %s: %w", filePath, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config file %s: %w", filePath, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config file %s: %w", filePath, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", fileExt)
	}

	config.Path = filePath
	return &config, nil
}

// FindConfigFile searches for webchat config files (yaml/toml/json) in the specified directory
func FindConfigFile(searchPath string) (string, error) {
	if searchPath == "" {
		return "", fmt.Errorf("search path is required")
	}

	for _, configFile := range SupportedConfigFiles {
		fullPath := filepath.Join(searchPath, configFile)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfigFile, searchPath)
}

// IsConfigFile checks if the given file path is a webchat config file
func IsConfigFile(filePath string) bool {
	baseName := filepath.Base(filePath)

	for _, configFile := range SupportedConfigFiles {
		if baseName == configFile {
			return true
		}
	}
	return false
}

// SaveConfig writes config as YAML, creating the parent directory.
func SaveConfig(config *WebchatConfig, configPath string) error {
	if configPath == "" {
		configPath = "webchat.yaml"
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
