package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/backend/fsvault"
	"github.com/vanderheijden86/notetree/pkg/backend/s3vault"
	"github.com/vanderheijden86/notetree/pkg/config"
	"github.com/vanderheijden86/notetree/pkg/pins"
	"github.com/vanderheijden86/notetree/pkg/state"
	"github.com/vanderheijden86/notetree/pkg/tree"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// Credentials for S3 come from these variables or the default AWS chain.
const (
	envS3AccessKey = "NT_S3_ACCESS_KEY"
	envS3SecretKey = "NT_S3_SECRET_KEY"
)

// openedVault bundles everything built for one vault so main can tear it
// down in one place.
type openedVault struct {
	adapter  backend.Adapter
	local    *fsvault.Vault // nil for remote vaults
	location string         // directory or s3://bucket/prefix
	label    string
	pins     *pins.Store
}

func (o *openedVault) Close() {
	if o.pins != nil {
		if err := o.pins.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing pin store: %v\n", err)
		}
	}
}

// resolveVaultDir picks the vault directory: the CLI argument, then the
// configured default, then the vault containing the working directory,
// then the working directory itself.
func resolveVaultDir(cfg config.Config, arg string) (string, error) {
	if dir := cfg.ResolveVault(arg); dir != "" {
		return dir, nil
	}
	if dir, ok := config.DetectCurrentVault(); ok {
		return dir, nil
	}
	return os.Getwd()
}

// openVault builds the backend selected by cfg along with its pin store.
// Pins of a local vault live inside it; remote vaults keep them in the
// state directory.
func openVault(ctx context.Context, cfg config.Config, arg, stateDir string) (*openedVault, error) {
	ov := &openedVault{}

	switch cfg.Backend {
	case config.BackendS3:
		v, err := s3vault.New(ctx, s3vault.Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
			AccessKey: os.Getenv(envS3AccessKey),
			SecretKey: os.Getenv(envS3SecretKey),
		})
		if err != nil {
			return nil, err
		}
		ov.adapter = v
		ov.location = v.Describe()
		ov.label = cfg.S3.Bucket

	default:
		dir, err := resolveVaultDir(cfg, arg)
		if err != nil {
			return nil, fmt.Errorf("resolving vault: %w", err)
		}
		v, err := fsvault.New(dir,
			fsvault.WithShowHidden(cfg.Tree.ShowHidden),
			fsvault.WithIgnore(cfg.Tree.Ignore...),
		)
		if err != nil {
			return nil, err
		}
		ov.adapter = v
		ov.local = v
		ov.location = v.Root()
		ov.label = filepath.Base(v.Root())
	}

	pinsPath, err := pinsPath(ov, stateDir)
	if err != nil {
		return nil, err
	}
	if pinsPath != "" {
		store, err := pins.Open(pinsPath)
		if err != nil {
			// Pinning is optional; the tree works without it.
			fmt.Fprintf(os.Stderr, "warning: pins unavailable: %v\n", err)
		} else {
			ov.pins = store
		}
	}
	return ov, nil
}

func pinsPath(ov *openedVault, stateDir string) (string, error) {
	if ov.local != nil {
		dir, err := ov.local.StateDir()
		if err != nil {
			return "", fmt.Errorf("creating vault state directory: %w", err)
		}
		return filepath.Join(dir, "pins.db"), nil
	}
	if stateDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(stateDir, config.VaultKey(ov.location)+".pins.db"), nil
}

// newWorkspace wires the tree engine for ov according to cfg.
func newWorkspace(cfg config.Config, ov *openedVault, stateDir string) *workspace.Workspace {
	// A terminal row is one line; the pixel default does not apply here.
	itemHeight := cfg.Tree.ItemHeight
	if itemHeight <= 0 {
		itemHeight = 1
	}
	opts := []workspace.Option{
		workspace.WithWindow(tree.Window{
			ItemHeight:  itemHeight,
			BufferCount: cfg.Tree.BufferCount,
		}),
		workspace.WithScrollInterval(time.Duration(cfg.Tree.ScrollThrottleMS) * time.Millisecond),
		workspace.WithRootLabel(ov.label),
	}
	if cfg.Tree.NoteExtension != "" {
		opts = append(opts, workspace.WithNoteExtension(cfg.Tree.NoteExtension))
	}
	if ov.pins != nil {
		opts = append(opts, workspace.WithPins(ov.pins))
	}
	if stateDir != "" {
		opts = append(opts, workspace.WithStateFile(state.Path(stateDir, config.VaultKey(ov.location))))
	}
	return workspace.New(ov.adapter, opts...)
}
