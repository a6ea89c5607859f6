package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/layerforge/layerforge/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileName is the project config file at the project root.
const FileName = ".layerforge.yaml"

// YAMLLoader implements domain.ConfigLoader by reading .layerforge.yaml.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads .layerforge.yaml from projectPath.
// Returns DefaultConfig if the file does not exist. Keys absent from the file
// keep their default values.
func (l *YAMLLoader) Load(projectPath string) (domain.ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.ProjectConfig{}, err
	}

	cfg := domain.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	// Relative script paths are resolved against the project, not the cwd.
	if cfg.Model.Script != "" && !filepath.IsAbs(cfg.Model.Script) {
		cfg.Model.Script = filepath.Join(projectPath, cfg.Model.Script)
	}

	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", FileName, err)
	}

	return cfg, nil
}

// LoadParameterSpec reads a feature's parameter spec:
//
//	request:
//	  orderId: Long
//	response:
//	  refundId: String
//	validation:
//	  - orderId must be positive
//	external_call: PaymentClient.refund
func LoadParameterSpec(path string) (*domain.ParameterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("parameter spec %s: %w", path, domain.ErrNotFound)
		}
		return nil, err
	}
	var spec domain.ParameterSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &spec, nil
}
