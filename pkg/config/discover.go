package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DiscoverVaults scans directories for .nt/ markers and returns the vaults
// found. Registered vaults come first and keep their names when a scanned
// path matches.
func DiscoverVaults(cfg Config) []Vault {
	seen := make(map[string]bool)
	var result []Vault

	for _, v := range cfg.Vaults {
		resolved := v.ResolvedPath()
		seen[resolved] = true
		result = append(result, v)
	}

	maxDepth := cfg.Discovery.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	for _, scanPath := range cfg.Discovery.ScanPaths {
		for _, f := range scanForVaults(scanPath, maxDepth) {
			if !seen[f] {
				seen[f] = true
				result = append(result, Vault{
					Name: filepath.Base(f),
					Path: f,
				})
			}
		}
	}

	return result
}

// scanForVaults walks root up to maxDepth levels deep looking for folders
// that contain a marker directory. Vaults are not searched for nested vaults.
func scanForVaults(root string, maxDepth int) []string {
	root = expandHome(root)
	var results []string

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}

		if depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth; depth > maxDepth {
			return filepath.SkipDir
		}

		if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}

		if isVault(path) {
			results = append(results, path)
			return filepath.SkipDir
		}
		return nil
	})

	return results
}

func isVault(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, VaultMarker))
	return err == nil && info.IsDir()
}

// DetectCurrentVault finds the vault containing the working directory.
func DetectCurrentVault() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	return FindVaultRoot(dir)
}

// FindVaultRoot walks up from dir looking for a .nt/ marker. It stops at
// the home directory.
func FindVaultRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		if isVault(dir) {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
