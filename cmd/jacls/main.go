package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/config"
	"github.com/jward/jacls/internal/lsp"
	"github.com/jward/jacls/scripts"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	flagDB         string
	flagFormat     string
	flagLogLevel   string
	flagScriptsDir string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "jacls",
	Short:         "Language server and workspace index for Jac",
	Long:          "jacls indexes the Jac files of a workspace, merges each file's view with the modules it imports, and serves the result over the Language Server Protocol.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		if flagLogLevel != "" {
			if _, err := config.ParseLevel(flagLogLevel); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "write the session store to this SQLite file (default: in memory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (default from .jacls.toml)")
	rootCmd.PersistentFlags().StringVar(&flagScriptsDir, "scripts-dir", "", "load lint scripts from disk path instead of embedded")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(hoverCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(depsCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Language Server Protocol on stdin/stdout",
	Long:  "Runs the language server over stdio. Logs are written to stderr as JSON; stdout carries the protocol.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	level := new(slog.LevelVar)
	if flagLogLevel != "" {
		l, _ := config.ParseLevel(flagLogLevel)
		level.Set(l)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	factory := func(root string) (*jacls.Engine, *config.Config, error) {
		engine, cfg, err := openEngine(root, logger)
		if err != nil {
			return nil, nil, err
		}
		if flagLogLevel == "" {
			level.Set(cfg.Level())
		}
		return engine, cfg, nil
	}
	srv := lsp.New(factory, lsp.WithLogger(logger), lsp.WithVersion(version))
	logger.Info("serve.start", "version", version)
	err := srv.RunStdio()
	if engine := srv.Engine(); engine != nil {
		engine.Close()
	}
	return err
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a workspace and report what was found",
	Long:  "Scans every Jac file under path (default: the current directory), extracts and merges symbols, and prints a summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()
	root, err := resolveTargetDir(args)
	if err != nil {
		return outputError(cmd, "index", err)
	}
	engine, _, err := openEngine(root, cliLogger())
	if err != nil {
		return outputError(cmd, "index", err)
	}
	defer engine.Close()

	ctx := context.Background()
	if err := engine.FillWorkspace(ctx); err != nil {
		return outputError(cmd, "index", fmt.Errorf("indexing: %w", err))
	}
	stats, err := engine.Store().Stats()
	if err != nil {
		return outputError(cmd, "index", err)
	}
	files, err := engine.Store().Files()
	if err != nil {
		return outputError(cmd, "index", err)
	}
	var problems int
	entries := make([]CLIIndexedFile, 0, len(files))
	for _, f := range files {
		if engine.Problems(ctx, f.Path) != nil {
			problems++
		}
		entries = append(entries, CLIIndexedFile{Path: f.Path, State: engine.State(f.Path), Hash: f.Hash})
	}
	return outputResult(cmd, CLIResult{
		Command: "index",
		Results: CLIIndexSummary{
			Root:     engine.Root(),
			Files:    stats.Files,
			Symbols:  stats.Symbols,
			Imports:  stats.Imports,
			Problems: problems,
			Duration: time.Since(start).Round(time.Millisecond).String(),
			Entries:  entries,
		},
	})
}

// openEngine builds an Engine for root with the settings found there.
// Flags override the settings file.
func openEngine(root string, logger *slog.Logger) (*jacls.Engine, *config.Config, error) {
	cfg := config.Default()
	if root != "" {
		loaded, err := config.Load(root)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if flagScriptsDir != "" {
		cfg.ScriptsDir = flagScriptsDir
	}

	dbPath := resolveDBPath(root)
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
		// The store holds one session; start it empty.
		if err := os.Remove(dbPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("removing stale database: %w", err)
		}
	}

	opts := []jacls.Option{
		jacls.WithScriptsFS(scripts.FS),
		jacls.WithConfig(cfg),
		jacls.WithRoot(root),
		jacls.WithLogger(logger),
	}
	engine, err := jacls.New(dbPath, cfg.ScriptsDir, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, cfg, nil
}

// cliLogger logs to stderr as text, and only when --log-level is given.
func cliLogger() *slog.Logger {
	if flagLogLevel == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level, _ := config.ParseLevel(flagLogLevel)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findWorkspaceRoot walks up from startDir looking for a settings file or a
// .git directory. Returns startDir if neither is found.
func findWorkspaceRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
			return dir
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag, relative to
// root when not absolute. "" keeps the store in memory.
func resolveDBPath(root string) string {
	if flagDB == "" {
		return ""
	}
	if filepath.IsAbs(flagDB) {
		return flagDB
	}
	return filepath.Join(root, flagDB)
}
