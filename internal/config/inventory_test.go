package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadInventory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	yaml := `
groups:
  prod:
    hosts:
      - name: hmc1.example.com
        description: primary HMC
      - name: hmc1-backup.example.com
    mock_definition: ""
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("LoadInventory() error = %v", err)
	}
	grp, ok := inv.Groups["prod"]
	if !ok {
		t.Fatalf("missing group %q", "prod")
	}
	if len(grp.Hosts) != 2 {
		t.Fatalf("len(Hosts) = %d, want 2", len(grp.Hosts))
	}
	if grp.Hosts[0].Name != "hmc1.example.com" {
		t.Errorf("Hosts[0].Name = %q", grp.Hosts[0].Name)
	}
}

func TestLoadInventoryMissingFile(t *testing.T) {
	if _, err := LoadInventory(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInventoryEmptyPath(t *testing.T) {
	inv, err := LoadInventory("")
	if err != nil {
		t.Fatalf("LoadInventory(\"\") error = %v", err)
	}
	if len(inv.Groups) != 0 {
		t.Errorf("len(Groups) = %d, want 0", len(inv.Groups))
	}
}
