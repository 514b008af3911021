// Command nt is a terminal explorer for folders of notes. It opens a vault
// (a local directory or an S3 bucket), shows it as a lazily loaded tree and
// lets you create, rename, move, delete and pin entries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/notetree/pkg/config"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/ui"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

const version = "0.3.0"

// openTimeout bounds the initial root listing and state restore.
const openTimeout = 30 * time.Second

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Config file (default $XDG_CONFIG_HOME/nt/config.yaml)")
	backendFlag := flag.String("backend", "", "Vault backend: fs or s3")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket holding the vault (implies --backend s3)")
	s3Prefix := flag.String("s3-prefix", "", "Key prefix the vault lives under")
	s3Region := flag.String("s3-region", "", "AWS region")
	s3Endpoint := flag.String("s3-endpoint", "", "Custom S3 endpoint (MinIO etc.)")
	showHidden := flag.Bool("hidden", false, "Show dot files and folders")
	noWatch := flag.Bool("no-watch", false, "Do not watch the vault for external changes")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	robotTree := flag.Bool("robot-tree", false, "Print the visible tree (with restored expansion) as JSON and exit")
	listVaults := flag.Bool("list-vaults", false, "List registered and discovered vaults and exit")
	flag.Parse()

	if *help {
		fmt.Println("Usage: nt [options] [vault]")
		fmt.Println("\nA terminal explorer for folders of notes.")
		fmt.Println("\nvault is a directory or the name of a vault registered in the config.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("nt %s\n", version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg, flagOverrides{
		backend:     *backendFlag,
		s3Bucket:    *s3Bucket,
		s3Prefix:    *s3Prefix,
		s3Region:    *s3Region,
		s3Endpoint:  *s3Endpoint,
		showHidden:  *showHidden,
		metricsAddr: *metricsAddr,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *listVaults {
		printVaults(cfg)
		os.Exit(0)
	}

	if needsTerminal(os.Args) && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: nt needs a terminal. Use --robot-tree for non-interactive output.")
		os.Exit(1)
	}

	stateDir := config.StateDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go metrics.Serve(ctx, cfg.Metrics.Addr)
	}

	ov, err := openVault(ctx, cfg, flag.Arg(0), stateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vault: %v\n", err)
		os.Exit(1)
	}
	defer ov.Close()

	if ov.local != nil {
		if err := ov.local.EnsureStateDirIgnored(); err != nil {
			log.Printf("warning: updating .gitignore: %v", err)
		}
	}

	ws := newWorkspace(cfg, ov, stateDir)
	defer ws.Close()

	openCtx, openCancel := context.WithTimeout(ctx, openTimeout)
	err = ws.Open(openCtx)
	openCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening vault: %v\n", err)
		os.Exit(1)
	}

	if *robotTree {
		if err := writeRobotTree(os.Stdout, ws); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding tree: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runTUI(cfg, ov, ws, stateDir, *noWatch); err != nil {
		fmt.Printf("Error running nt: %v\n", err)
		os.Exit(1)
	}
}

// runTUI owns the terminal until the user quits.
func runTUI(cfg config.Config, ov *openedVault, ws *workspace.Workspace, stateDir string, noWatch bool) error {
	if f := redirectLogs(stateDir); f != nil {
		defer f.Close()
	}

	var opts []ui.Option
	if ov.local != nil && !noWatch {
		worker := ui.NewBackgroundWorker(ui.WorkerConfig{
			Workspace: ws,
			Paths:     ov.local,
		})
		if err := worker.Start(); err != nil {
			log.Printf("warning: watching %s: %v", ov.location, err)
		}
		defer worker.Stop()
		opts = append(opts, ui.WithWorker(worker))
	}

	m := ui.NewModel(ws, opts...)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// redirectLogs sends log and debug output to <state dir>/nt.log while the
// TUI owns the screen. It returns the open file, or nil when logging stays
// on stderr.
func redirectLogs(stateDir string) *os.File {
	if stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(stateDir, "nt.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil
	}
	log.SetOutput(f)
	debug.SetOutput(f)
	return f
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

type flagOverrides struct {
	backend     string
	s3Bucket    string
	s3Prefix    string
	s3Region    string
	s3Endpoint  string
	showHidden  bool
	metricsAddr string
}

// applyFlags lets command-line flags win over the config file.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.s3Bucket != "" {
		cfg.S3.Bucket = f.s3Bucket
		if f.backend == "" {
			cfg.Backend = config.BackendS3
		}
	}
	if f.s3Prefix != "" {
		cfg.S3.Prefix = f.s3Prefix
	}
	if f.s3Region != "" {
		cfg.S3.Region = f.s3Region
	}
	if f.s3Endpoint != "" {
		cfg.S3.Endpoint = f.s3Endpoint
		cfg.S3.PathStyle = true
	}
	if f.showHidden {
		cfg.Tree.ShowHidden = true
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

// needsTerminal reports whether the invocation launches the TUI. Help,
// version and robot modes write plain output and work in pipes.
func needsTerminal(args []string) bool {
	for _, a := range args[1:] {
		name := strings.TrimLeft(a, "-")
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		if !strings.HasPrefix(a, "-") {
			continue
		}
		switch {
		case name == "help", name == "h", name == "version", name == "list-vaults":
			return false
		case strings.HasPrefix(name, "robot-"):
			return false
		}
	}
	return true
}

func printVaults(cfg config.Config) {
	vaults := config.DiscoverVaults(cfg)
	if len(vaults) == 0 {
		fmt.Println("No vaults found. Register one under `vaults:` in", config.ConfigPath())
		return
	}
	for _, v := range vaults {
		fmt.Printf("%-20s %s\n", v.Name, v.ResolvedPath())
	}
}
