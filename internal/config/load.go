package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultDefinitionFilename is the definition file looked up when none is given.
const DefaultDefinitionFilename = "cluster.yaml"

// LoadDefinition loads and validates a cluster definition from a file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return LoadDefinitionFromBytes(data)
}

// LoadDefinitionFromBytes loads and validates a cluster definition from bytes.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("definition validation failed: %w", err)
	}
	return &def, nil
}

// LoadSettingsFile loads the settings document. An empty path yields an empty
// document, so runs without external settings still resolve from the
// definition alone.
func LoadSettingsFile(path string) (*SettingsDocument, error) {
	if path == "" {
		return &SettingsDocument{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return LoadSettingsFromBytes(data)
}

// LoadSettingsFromBytes parses a settings document.
func LoadSettingsFromBytes(data []byte) (*SettingsDocument, error) {
	var doc SettingsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	return &doc, nil
}
