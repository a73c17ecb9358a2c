package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.yaml")
	yaml := `
credentials:
  hmc1.example.com:
    userid: admin
    password: secret
  hmc2.example.com:
    token: abc123
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := LoadVault(path)
	if err != nil {
		t.Fatalf("LoadVault() error = %v", err)
	}
	if v.Credentials["hmc1.example.com"].Userid != "admin" {
		t.Errorf("userid = %q, want admin", v.Credentials["hmc1.example.com"].Userid)
	}
	if v.Credentials["hmc2.example.com"].Token != "abc123" {
		t.Errorf("token = %q, want abc123", v.Credentials["hmc2.example.com"].Token)
	}
}

func TestLoadVaultMissingFile(t *testing.T) {
	if _, err := LoadVault(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
