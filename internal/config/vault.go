// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Vault maps an inventory host name to the credential used to log on to it.
// Kept separate from Inventory so an inventory file (safe to commit) can be
// shared while a vault file (never committed) supplies secrets.
type Vault struct {
	Credentials map[string]Credential `koanf:"credentials" yaml:"credentials"`
}

// Credential is either a userid/password pair or a pre-obtained session
// token; Session picks whichever is populated.
type Credential struct {
	Userid   string `koanf:"userid" yaml:"userid,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Token    string `koanf:"token" yaml:"token,omitempty"`
}

// LoadVault loads a vault file. Unlike LoadInventory, no environment
// overlay is applied: secrets belong in the vault file or the process's
// own secret store, never in plain environment variables logged by a
// container runtime.
func LoadVault(path string) (*Vault, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vault file %s: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load vault file %s: %w", path, err)
	}

	v := &Vault{}
	if err := k.Unmarshal("", v); err != nil {
		return nil, fmt.Errorf("unmarshal vault: %w", err)
	}
	return v, nil
}
