// Package config handles loading and saving nt configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/nt/config.yaml
//   - State:   ~/.local/state/nt/ (per-vault UI state, pins, log file)
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// VaultMarker is the per-vault directory that marks a folder as a vault and
// holds vault-local data. It is never shown in the tree.
const VaultMarker = ".nt"

// Vault is a registered vault.
type Vault struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// TreeConfig holds tree engine and listing settings.
type TreeConfig struct {
	ItemHeight       int      `yaml:"item_height,omitempty"`        // rows per entry (1 in a terminal)
	BufferCount      int      `yaml:"buffer_count,omitempty"`       // extra rows rendered above and below
	ScrollThrottleMS int      `yaml:"scroll_throttle_ms,omitempty"` // trailing-edge scroll throttle
	NoteExtension    string   `yaml:"note_extension,omitempty"`
	ShowHidden       bool     `yaml:"show_hidden,omitempty"`
	Ignore           []string `yaml:"ignore,omitempty"` // glob patterns matched against entry names
}

// S3Config selects an S3 bucket as the vault.
type S3Config struct {
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"` // for MinIO and other compatible stores
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // e.g. "127.0.0.1:9464"; empty disables
}

// DiscoveryConfig controls auto-discovery of vaults.
type DiscoveryConfig struct {
	ScanPaths []string `yaml:"scan_paths,omitempty"` // Directories to scan for .nt/
	MaxDepth  int      `yaml:"max_depth,omitempty"`  // How deep to scan (default 3)
}

// Config is the top-level configuration for nt.
type Config struct {
	Vault     string          `yaml:"vault,omitempty"`   // default vault path or registered name
	Backend   string          `yaml:"backend,omitempty"` // fs or s3
	Vaults    []Vault         `yaml:"vaults,omitempty"`
	Tree      TreeConfig      `yaml:"tree,omitempty"`
	S3        S3Config        `yaml:"s3,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendFS,
		Tree: TreeConfig{
			ItemHeight:       1,
			BufferCount:      3,
			ScrollThrottleMS: 16,
			NoteExtension:    ".md",
		},
		Discovery: DiscoveryConfig{
			MaxDepth: 3,
		},
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFS, "":
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("backend s3 requires s3.bucket")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendFS, BackendS3)
	}
	if c.Tree.ItemHeight < 0 || c.Tree.BufferCount < 0 || c.Tree.ScrollThrottleMS < 0 {
		return fmt.Errorf("tree sizes must not be negative")
	}
	for _, pat := range c.Tree.Ignore {
		if _, err := filepath.Match(pat, ""); err != nil {
			return fmt.Errorf("bad ignore pattern %q: %w", pat, err)
		}
	}
	return nil
}

// ConfigDir returns the XDG config directory for nt.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "nt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nt")
}

// StateDir returns the XDG state directory for nt.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "nt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "nt")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// VaultKey returns a stable file-name-safe key for a vault location, used
// to keep per-vault state apart.
func VaultKey(location string) string {
	sum := sha256.Sum256([]byte(location))
	return hex.EncodeToString(sum[:8])
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Vault = expandHome(cfg.Vault)
	for i := range cfg.Vaults {
		cfg.Vaults[i].Path = expandHome(cfg.Vaults[i].Path)
	}
	for i := range cfg.Discovery.ScanPaths {
		cfg.Discovery.ScanPaths[i] = expandHome(cfg.Discovery.ScanPaths[i])
	}
	if cfg.Tree.NoteExtension != "" && !strings.HasPrefix(cfg.Tree.NoteExtension, ".") {
		cfg.Tree.NoteExtension = "." + cfg.Tree.NoteExtension
	}

	return cfg, cfg.Validate()
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindVault returns the registered vault with the given name, or nil.
func (c Config) FindVault(name string) *Vault {
	for i := range c.Vaults {
		if strings.EqualFold(c.Vaults[i].Name, name) {
			return &c.Vaults[i]
		}
	}
	return nil
}

// ResolveVault turns a CLI argument or the configured default into a
// directory: a registered vault name wins over a path of the same spelling.
func (c Config) ResolveVault(arg string) string {
	if arg == "" {
		arg = c.Vault
	}
	if arg == "" {
		return ""
	}
	if v := c.FindVault(arg); v != nil {
		return v.ResolvedPath()
	}
	return expandHome(arg)
}

// ResolvedPath returns the vault path with ~ expanded.
func (v Vault) ResolvedPath() string {
	return expandHome(v.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
