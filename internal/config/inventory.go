// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the HMC inventory file, the HMC vault file, and the
// mock-HMC definition file (SPEC_FULL.md section 6), all YAML. Only the
// inventory is merged with struct defaults and environment overrides, the
// way the teacher's koanf.go layers defaults -> file -> env for its own
// Config; the vault has no defaults or environment layer and the mock
// definition is read with yaml.v3 directly.
package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Inventory groups named HMC hosts, mirroring the zhmcclient Python
// "inventory file" concept used by CLI tools and test suites built on top
// of this client.
type Inventory struct {
	Groups map[string]InventoryGroup `koanf:"groups" yaml:"groups"`
}

// InventoryGroup is a named set of HMC hosts plus optional mock-definition
// reference, so a single inventory file can describe both real HMCs and
// fixtures for the mock HMC (component H).
type InventoryGroup struct {
	Hosts          []InventoryHost `koanf:"hosts" yaml:"hosts"`
	MockDefinition string          `koanf:"mock_definition" yaml:"mock_definition,omitempty"`
}

// InventoryHost is one HMC (or backup HMC) reachable at a host name or IP.
type InventoryHost struct {
	Name        string `koanf:"name" yaml:"name"`
	Description string `koanf:"description" yaml:"description,omitempty"`
	CACertPath  string `koanf:"ca_cert_path" yaml:"ca_cert_path,omitempty"`
	VerifyCert  *bool  `koanf:"verify_cert" yaml:"verify_cert,omitempty"`
}

// InventoryPathEnvVar overrides the inventory file path, analogous to the
// teacher's ConfigPathEnvVar.
const InventoryPathEnvVar = "ZHMC_INVENTORY_PATH"

// LoadInventory loads an inventory file from path, applying
// ZHMC_INVENTORY_* environment overrides on top of it. An empty path loads
// defaults plus environment only.
func LoadInventory(path string) (*Inventory, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(&Inventory{Groups: map[string]InventoryGroup{}}, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load inventory defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("inventory file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load inventory file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("ZHMC_INVENTORY_", ".", envTransform("ZHMC_INVENTORY_")), nil); err != nil {
		return nil, fmt.Errorf("load inventory env overrides: %w", err)
	}

	inv := &Inventory{}
	if err := k.Unmarshal("", inv); err != nil {
		return nil, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return inv, nil
}
