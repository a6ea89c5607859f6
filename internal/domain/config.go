package domain

import (
	"fmt"
	"time"
)

// ValidProviders enumerates the model providers a config may name.
var ValidProviders = []string{"gemini", "ollama", "scripted"}

// ValidLegacyEncodings enumerates the fallback encodings for non-UTF-8 files.
var ValidLegacyEncodings = []string{"gb18030", "windows-1252"}

// ProjectConfig holds project-level configuration loaded from .layerforge.yaml.
type ProjectConfig struct {
	Model   ModelConfig   `yaml:"model"   json:"model"`
	Scan    ScanConfig    `yaml:"scan"    json:"scan"`
	Sandbox SandboxConfig `yaml:"sandbox" json:"sandbox"`
	Log     LogConfig     `yaml:"log"     json:"log"`
}

// ModelConfig selects and tunes the chat model.
type ModelConfig struct {
	Provider string        `yaml:"provider"  json:"provider"`
	Name     string        `yaml:"name"      json:"name"`
	Timeout  time.Duration `yaml:"timeout"   json:"timeout"`
	MaxTurns int           `yaml:"max_turns" json:"max_turns"`
	// Script is the reply file for the scripted provider.
	Script string `yaml:"script,omitempty" json:"script,omitempty"`
}

// ScanConfig tunes the structure scanner.
type ScanConfig struct {
	ExcludePaths      []string `yaml:"exclude_paths,omitempty" json:"exclude_paths,omitempty"`
	MinNamespaceDepth int      `yaml:"min_namespace_depth" json:"min_namespace_depth"`
	MaxFileSize       int64    `yaml:"max_file_size"       json:"max_file_size"`
}

// SandboxConfig tunes the file tool.
type SandboxConfig struct {
	BackupPrefix    string `yaml:"backup_prefix"     json:"backup_prefix"`
	LegacyEncoding  string `yaml:"legacy_encoding"   json:"legacy_encoding"`
	MaxContentBytes int    `yaml:"max_content_bytes" json:"max_content_bytes"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	File  string `yaml:"file"  json:"file"`
	Level string `yaml:"level" json:"level"`
}

const (
	DefaultModelTimeout      = 120 * time.Second
	DefaultMaxTurns          = 10
	DefaultMinNamespaceDepth = 3
	DefaultMaxFileSize       = 1 << 20
	DefaultMaxContentBytes   = 64 << 10
	DefaultBackupPrefix      = "layerforge"
	DefaultLogFile           = ".layerforge/logs/layerforge.log"
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() ProjectConfig {
	return ProjectConfig{
		Model: ModelConfig{
			Provider: "gemini",
			Name:     "gemini-2.5-flash",
			Timeout:  DefaultModelTimeout,
			MaxTurns: DefaultMaxTurns,
		},
		Scan: ScanConfig{
			MinNamespaceDepth: DefaultMinNamespaceDepth,
			MaxFileSize:       DefaultMaxFileSize,
		},
		Sandbox: SandboxConfig{
			BackupPrefix:    DefaultBackupPrefix,
			LegacyEncoding:  "gb18030",
			MaxContentBytes: DefaultMaxContentBytes,
		},
		Log: LogConfig{
			File:  DefaultLogFile,
			Level: "info",
		},
	}
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ProjectConfig) Validate() error {
	if !contains(ValidProviders, c.Model.Provider) {
		return fmt.Errorf("unknown model.provider %q (valid: gemini, ollama, scripted)", c.Model.Provider)
	}
	if c.Model.Provider == "scripted" && c.Model.Script == "" {
		return fmt.Errorf("model.script is required for the scripted provider")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be > 0 (got %s)", c.Model.Timeout)
	}
	if c.Model.MaxTurns <= 0 {
		return fmt.Errorf("model.max_turns must be > 0 (got %d)", c.Model.MaxTurns)
	}
	if c.Scan.MinNamespaceDepth <= 0 {
		return fmt.Errorf("scan.min_namespace_depth must be > 0 (got %d)", c.Scan.MinNamespaceDepth)
	}
	if c.Scan.MaxFileSize <= 0 {
		return fmt.Errorf("scan.max_file_size must be > 0 (got %d)", c.Scan.MaxFileSize)
	}
	if !contains(ValidLegacyEncodings, c.Sandbox.LegacyEncoding) {
		return fmt.Errorf("unknown sandbox.legacy_encoding %q (valid: gb18030, windows-1252)", c.Sandbox.LegacyEncoding)
	}
	if c.Sandbox.MaxContentBytes <= 0 {
		return fmt.Errorf("sandbox.max_content_bytes must be > 0 (got %d)", c.Sandbox.MaxContentBytes)
	}
	if c.Sandbox.BackupPrefix == "" {
		return fmt.Errorf("sandbox.backup_prefix must not be empty")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q (valid: debug, info, warn, error)", c.Log.Level)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
