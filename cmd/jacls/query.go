package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/jacls"
	"github.com/jward/jacls/internal/diagnostic"
	"github.com/jward/jacls/internal/docs"
)

var (
	flagQuery     string
	flagKind      string
	flagName      string
	flagContainer string
	flagOwn       bool
	flagWarnings  bool
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols [file]",
	Short: "List the symbols visible in a file, or search the workspace",
	Long:  "With a file, prints its merged view: its own declarations followed by those of every Jac module it imports. Without one, prints workspace symbols matching --query, or those selected by --kind, --name or --container.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSymbols,
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the declaration for a position",
	Long:  "Resolves the identifier at the 0-based position, falling back to the innermost declaration enclosing it.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <col>",
	Short: "Show hover text for a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runHover,
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics [file...]",
	Short: "Report parse errors, lint findings and unresolved imports",
	Long:  "Prints diagnostics for the given files, or for every indexed file. Exits non-zero when any error is found.",
	RunE:  runDiagnostics,
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "Show a file's Jac imports and the files that depend on it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func init() {
	symbolsCmd.Flags().StringVar(&flagQuery, "query", "", "case-insensitive name filter for workspace symbols")
	symbolsCmd.Flags().StringVar(&flagKind, "kind", "", "workspace symbols of one kind (walker, node, edge, graph, object, ability, variable)")
	symbolsCmd.Flags().StringVar(&flagName, "name", "", "workspace symbols with exactly this name")
	symbolsCmd.Flags().StringVar(&flagContainer, "container", "", "members declared inside the named architype")
	symbolsCmd.Flags().BoolVar(&flagOwn, "own", false, "only symbols declared in the file itself")
	diagnosticsCmd.Flags().BoolVar(&flagWarnings, "warnings", true, "include warnings")
}

// session is an engine over the workspace containing a file, with the whole
// workspace indexed.
type session struct {
	engine *jacls.Engine
	ctx    context.Context
}

func openSession(start string) (*session, error) {
	root := findWorkspaceRoot(start)
	engine, _, err := openEngine(root, cliLogger())
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := engine.FillWorkspace(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("indexing: %w", err)
	}
	return &session{engine: engine, ctx: ctx}, nil
}

func (s *session) Close() {
	s.engine.Close()
}

// openFileSession resolves a file argument and opens a session on its
// workspace.
func openFileSession(arg string) (*session, string, error) {
	path, err := resolveFilePath(arg)
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("file not found: %s", path)
	}
	s, err := openSession(filepath.Dir(path))
	if err != nil {
		return nil, "", err
	}
	return s, path, nil
}

func runSymbols(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return outputError(cmd, "symbols", fmt.Errorf("getting cwd: %w", err))
		}
		s, err := openSession(cwd)
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		defer s.Close()
		syms, err := workspaceSymbols(s)
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		return outputResult(cmd, CLIResult{Command: "symbols", Results: symbolsToCLI(syms)})
	}

	s, path, err := openFileSession(args[0])
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	defer s.Close()
	syms, err := s.engine.GetDocumentSymbols(s.ctx, path)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	if flagOwn {
		own, err := docs.Canonical(path)
		if err != nil {
			return outputError(cmd, "symbols", err)
		}
		var filtered []*jacls.Symbol
		for _, sym := range syms {
			if sym.Path == own {
				filtered = append(filtered, sym)
			}
		}
		syms = filtered
	}
	return outputResult(cmd, CLIResult{Command: "symbols", Results: symbolsToCLI(syms)})
}

// workspaceSymbols answers the workspace form of the symbols command. The
// selector flags read the session store directly.
func workspaceSymbols(s *session) ([]*jacls.Symbol, error) {
	st := s.engine.Store()
	switch {
	case flagKind != "":
		return st.SymbolsByKind(jacls.SymbolKind(flagKind))
	case flagName != "":
		return st.SymbolsByName(flagName)
	case flagContainer != "":
		return st.SymbolsByContainer(flagContainer)
	default:
		return s.engine.GetWorkspaceSymbols(s.ctx, flagQuery)
	}
}

func runDefinition(cmd *cobra.Command, args []string) error {
	s, path, pos, err := positionArgs(args)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	defer s.Close()

	sym, ok, err := s.engine.LookupReference(s.ctx, path, pos)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	if !ok {
		sym, ok, err = s.engine.GetDefinition(s.ctx, path, pos)
		if err != nil {
			return outputError(cmd, "definition", err)
		}
	}
	if !ok {
		return outputResult(cmd, CLIResult{Command: "definition"})
	}
	return outputResult(cmd, CLIResult{Command: "definition", Results: symbolToCLI(sym)})
}

func runHover(cmd *cobra.Command, args []string) error {
	s, path, pos, err := positionArgs(args)
	if err != nil {
		return outputError(cmd, "hover", err)
	}
	defer s.Close()

	sym, ok, err := s.engine.Hover(s.ctx, path, pos)
	if err != nil {
		return outputError(cmd, "hover", err)
	}
	if !ok {
		return outputResult(cmd, CLIResult{Command: "hover"})
	}
	return outputResult(cmd, CLIResult{
		Command: "hover",
		Results: CLIHover{Text: jacls.HoverText(sym), Symbol: symbolToCLI(sym)},
	})
}

func runDiagnostics(cmd *cobra.Command, args []string) error {
	var (
		s     *session
		files []string
		err   error
	)
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return outputError(cmd, "diagnostics", fmt.Errorf("getting cwd: %w", err))
		}
		if s, err = openSession(cwd); err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		files = s.engine.Files()
	} else {
		var first string
		s, first, err = openFileSession(args[0])
		if err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		files = append(files, first)
		for _, arg := range args[1:] {
			p, err := resolveFilePath(arg)
			if err != nil {
				s.Close()
				return outputError(cmd, "diagnostics", err)
			}
			files = append(files, p)
		}
	}
	defer s.Close()
	s.engine.SetShowWarnings(flagWarnings)

	results := []CLIDiagnostic{}
	var errs int
	for _, f := range files {
		diags, err := s.engine.GetDiagnostics(s.ctx, f)
		if err != nil {
			return outputError(cmd, "diagnostics", err)
		}
		for _, d := range diags {
			cd := diagnosticToCLI(f, d)
			if cd.Severity == "error" {
				errs++
			}
			results = append(results, cd)
		}
	}
	if err := outputResult(cmd, CLIResult{Command: "diagnostics", Results: results}); err != nil {
		return err
	}
	if errs > 0 {
		errorHandled = true
		return fmt.Errorf("%d %s", errs, plural(errs, "error"))
	}
	return nil
}

func runDeps(cmd *cobra.Command, args []string) error {
	s, path, err := openFileSession(args[0])
	if err != nil {
		return outputError(cmd, "deps", err)
	}
	defer s.Close()

	canon, err := docs.Canonical(path)
	if err != nil {
		return outputError(cmd, "deps", err)
	}
	deps := CLIDeps{File: canon, Imports: []CLIImport{}}
	f, err := s.engine.Store().FileByPath(canon)
	if err != nil {
		return outputError(cmd, "deps", err)
	}
	if f != nil {
		deps.Hash, deps.SymbolsHash = f.Hash, f.SymbolsHash
	}
	imports, err := s.engine.Store().ImportsByFile(canon)
	if err != nil {
		return outputError(cmd, "deps", err)
	}
	for _, imp := range imports {
		deps.Imports = append(deps.Imports, CLIImport{
			Module:   imp.Source,
			Target:   imp.Target,
			Language: imp.Language,
			Line:     imp.Line,
		})
	}
	if deps.Dependencies, err = s.engine.Dependencies(path); err != nil {
		return outputError(cmd, "deps", err)
	}
	if deps.Dependents, err = s.engine.Dependents(path); err != nil {
		return outputError(cmd, "deps", err)
	}
	if deps.TransitiveDependents, err = s.engine.TransitiveDependents(path); err != nil {
		return outputError(cmd, "deps", err)
	}
	return outputResult(cmd, CLIResult{Command: "deps", Results: deps})
}

// positionArgs parses <file> <line> <col> and opens a session on the file.
func positionArgs(args []string) (*session, string, jacls.Position, error) {
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return nil, "", jacls.Position{}, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return nil, "", jacls.Position{}, err
	}
	s, path, err := openFileSession(args[0])
	if err != nil {
		return nil, "", jacls.Position{}, err
	}
	return s, path, jacls.Position{Line: line, Col: col}, nil
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// outputResult writes a CLIResult to the command's output in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	w := cmd.OutOrStdout()
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

func symbolToCLI(s *jacls.Symbol) CLISymbol {
	return CLISymbol{
		Name:      s.Name,
		Kind:      string(s.Kind),
		Container: s.ContainerName,
		Detail:    s.Detail,
		Doc:       s.Doc,
		File:      s.Path,
		StartLine: s.StartLine,
		StartCol:  s.StartCol,
		EndLine:   s.EndLine,
		EndCol:    s.EndCol,
	}
}

func symbolsToCLI(syms []*jacls.Symbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, symbolToCLI(s))
	}
	return out
}

func diagnosticToCLI(file string, d protocol.Diagnostic) CLIDiagnostic {
	severity := "error"
	if d.Severity != nil && *d.Severity == protocol.DiagnosticSeverityWarning {
		severity = "warning"
	}
	start := diagnostic.FromPosition(d.Range.Start)
	end := diagnostic.FromPosition(d.Range.End)
	return CLIDiagnostic{
		File:     file,
		Severity: severity,
		Line:     start.Line,
		Col:      start.Col,
		EndLine:  end.Line,
		EndCol:   end.Col,
		Message:  d.Message,
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
