// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MockDefinition is a YAML-serializable snapshot of the mock HMC's resource
// tree (component H): a flat list of resources, each carrying its class,
// URI, and property bag, plus the parent URI it hangs off (empty for
// top-level CPCs). mockhmc builds its in-memory tree from this and can
// re-serialize the tree back to the same shape for test fixture capture.
type MockDefinition struct {
	APIVersion string         `yaml:"api_version,omitempty"`
	Resources  []MockResource `yaml:"resources"`
}

// MockResource is one node of a MockDefinition's resource tree.
type MockResource struct {
	Class      string                 `yaml:"class"`
	URI        string                 `yaml:"uri"`
	ParentURI  string                 `yaml:"parent_uri,omitempty"`
	Properties map[string]interface{} `yaml:"properties"`
}

// LoadMockDefinition reads and parses a mock-HMC definition file.
func LoadMockDefinition(path string) (*MockDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock definition file %s: %w", path, err)
	}

	def := &MockDefinition{}
	if err := yaml.Unmarshal(data, def); err != nil {
		return nil, fmt.Errorf("parse mock definition %s: %w", path, err)
	}
	return def, nil
}

// SaveMockDefinition serializes def to path as YAML, overwriting any
// existing file. Used by tests that capture a mock HMC's state as a
// fixture for later replay.
func SaveMockDefinition(path string, def *MockDefinition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal mock definition: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write mock definition %s: %w", path, err)
	}
	return nil
}
