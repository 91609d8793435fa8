package aireport

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LabelsConfig maps model names to their ordered class labels. Models
// without an explicit entry fall back to the default label set.
type LabelsConfig struct {
	Default []string            `yaml:"default" json:"default"`
	Models  map[string][]string `yaml:"models" json:"models"`
}

func LoadLabels(path string) (LabelsConfig, error) {
	if path == "" {
		return DefaultLabels(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultLabels(), err
	}

	var cfg LabelsConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return LabelsConfig{}, err
	}

	if len(cfg.Default) == 0 {
		return LabelsConfig{}, errors.New("no default labels configured")
	}

	return cfg, nil
}

func DefaultLabels() LabelsConfig {
	return LabelsConfig{Default: []string{
		"Mild_Dementia",
		"Moderate_Dementia",
		"Non_Dementia",
		"Very_mild_Dementia",
	}}
}

// For returns the class labels for a model name.
func (c LabelsConfig) For(modelName string) []string {
	if labels, ok := c.Models[modelName]; ok && len(labels) > 0 {
		return labels
	}
	return c.Default
}
