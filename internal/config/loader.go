package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitediff.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// ReadConfigFile parses a YAML (or JSON) config file.
// If the file does not exist, it returns ErrConfigNotFound.
func ReadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// LoadConfigFile returns NewConfig with the values of the file at path
// applied. Name is set from the file name.
func LoadConfigFile(path string) (*Config, error) {
	f, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	f.Apply(cfg)
	cfg.Name = NameFromPath(path)
	cfg.ConfigFilePath = path
	return cfg, nil
}

// NameFromPath derives the site name from a config file path:
// "configs/shop.yaml" becomes "shop" and ".sitediff.yaml" becomes "sitediff".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimPrefix(base, ".")
	if base == "" {
		return DefaultName
	}
	return sanitizeName(base)
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .sitediff.yaml in the current directory
// 3. Look for .sitediff.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
