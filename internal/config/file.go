package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the structure of a sitediff config file.
// Keys follow the JSON configs of earlier tooling, so those load unchanged.
// Absent keys leave the defaults of NewConfig in place.
type File struct {
	Website         string    `yaml:"website"`
	ViewportWidth   *int      `yaml:"viewportWidth,omitempty"`
	ViewportHeight  *int      `yaml:"viewportHeight,omitempty"`
	Mobile          *bool     `yaml:"mobile,omitempty"`
	MaxURLs         *Limit    `yaml:"maxUrls,omitempty"`
	MaxDepth        *Limit    `yaml:"maxDepth,omitempty"`
	IgnorePatterns  []string  `yaml:"ignorePatterns,omitempty"`
	CompareDomain   string    `yaml:"compareDomain,omitempty"`
	Username        string    `yaml:"username,omitempty"`
	Password        string    `yaml:"password,omitempty"`
	RemoveSelectors []string  `yaml:"removeSelectors,omitempty"`
	OutputDir       string    `yaml:"outputDir,omitempty"`
	Timeout         *Duration `yaml:"timeout,omitempty"`
	Proxy           string    `yaml:"proxy,omitempty"`
	UserAgent       string    `yaml:"userAgent,omitempty"`
}

// Apply copies every key present in the file onto cfg.
func (f *File) Apply(cfg *Config) {
	if f.Website != "" {
		cfg.Website = f.Website
	}
	if f.ViewportWidth != nil {
		cfg.ViewportWidth = *f.ViewportWidth
	}
	if f.ViewportHeight != nil {
		cfg.ViewportHeight = *f.ViewportHeight
	}
	if f.Mobile != nil {
		cfg.Mobile = *f.Mobile
	}
	if f.MaxURLs != nil {
		cfg.MaxURLs = *f.MaxURLs
	}
	if f.MaxDepth != nil {
		cfg.MaxDepth = *f.MaxDepth
	}
	if len(f.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = f.IgnorePatterns
	}
	if f.CompareDomain != "" {
		cfg.CompareDomain = f.CompareDomain
	}
	if f.Username != "" {
		cfg.Username = f.Username
	}
	if f.Password != "" {
		cfg.Password = f.Password
	}
	if len(f.RemoveSelectors) > 0 {
		cfg.RemoveSelectors = f.RemoveSelectors
	}
	if f.OutputDir != "" {
		cfg.OutputDir = f.OutputDir
	}
	if f.Timeout != nil {
		cfg.Timeout = time.Duration(*f.Timeout)
	}
	if f.Proxy != "" {
		cfg.Proxy = f.Proxy
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
}

// Duration is a time.Duration that unmarshals from "30s" style strings
// or from a bare integer number of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: invalid duration", node.Line)
	}
	if ms, err := strconv.ParseInt(node.Value, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration in time.Duration notation.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
