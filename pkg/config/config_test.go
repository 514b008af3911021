package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendFS || cfg.Tree.NoteExtension != ".md" || cfg.Tree.ItemHeight != 1 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Vault = "main"
	cfg.Vaults = []Vault{{Name: "main", Path: "/srv/notes"}}
	cfg.Tree.Ignore = []string{"*.tmp"}
	cfg.Metrics.Addr = "127.0.0.1:9464"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Vault != "main" || len(got.Vaults) != 1 || got.Vaults[0].Path != "/srv/notes" {
		t.Errorf("vaults not round-tripped: %+v", got)
	}
	if len(got.Tree.Ignore) != 1 || got.Metrics.Addr != "127.0.0.1:9464" {
		t.Errorf("tree/metrics not round-tripped: %+v", got)
	}
	if got.ResolveVault("") != "/srv/notes" {
		t.Errorf("expected default vault to resolve to its path, got %q", got.ResolveVault(""))
	}
	if got.ResolveVault("/tmp/x") != "/tmp/x" {
		t.Errorf("expected unregistered argument to pass through")
	}
}

func TestLoadFromNormalizesExtensionAndHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "vault: ~/notes\ntree:\n  note_extension: txt\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tree.NoteExtension != ".txt" {
		t.Errorf("expected .txt, got %q", cfg.Tree.NoteExtension)
	}
	if cfg.Vault != filepath.Join(home, "notes") {
		t.Errorf("expected ~ expanded, got %q", cfg.Vault)
	}
	// Unset fields keep their defaults.
	if cfg.Tree.BufferCount != 3 {
		t.Errorf("expected default buffer count, got %d", cfg.Tree.BufferCount)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }, "unknown backend"},
		{"s3 without bucket", func(c *Config) { c.Backend = BackendS3 }, "s3.bucket"},
		{"s3 with bucket", func(c *Config) { c.Backend = BackendS3; c.S3.Bucket = "notes" }, ""},
		{"negative size", func(c *Config) { c.Tree.BufferCount = -1 }, "negative"},
		{"bad glob", func(c *Config) { c.Tree.Ignore = []string{"[a"} }, "ignore pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_STATE_HOME", "/state")
	if ConfigDir() != filepath.Join("/cfg", "nt") {
		t.Errorf("unexpected config dir %q", ConfigDir())
	}
	if StateDir() != filepath.Join("/state", "nt") {
		t.Errorf("unexpected state dir %q", StateDir())
	}
	if ConfigPath() != filepath.Join("/cfg", "nt", "config.yaml") {
		t.Errorf("unexpected config path %q", ConfigPath())
	}
}

func TestVaultKeyIsStable(t *testing.T) {
	a := VaultKey("/srv/notes")
	if a != VaultKey("/srv/notes") || len(a) != 16 {
		t.Errorf("expected stable 16-char key, got %q", a)
	}
	if a == VaultKey("/srv/other") {
		t.Error("expected different vaults to get different keys")
	}
}
