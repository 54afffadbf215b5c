package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	errorLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
	warningLabel = color.New(color.FgYellow).SprintFunc()
)

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tCONTAINER\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			s.Name, s.Kind, s.Container, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatHoverText prints the hover text followed by where the symbol lives.
func formatHoverText(w io.Writer, h CLIHover) {
	fmt.Fprintln(w, h.Text)
	fmt.Fprintf(w, "\n%s:%d:%d\n", h.Symbol.File, h.Symbol.StartLine, h.Symbol.StartCol)
}

// formatDiagnosticsText formats diagnostics as "file:line:col: severity: message"
// lines, the severity colored when the terminal supports it.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		label := errorLabel(d.Severity)
		if d.Severity == "warning" {
			label = warningLabel(d.Severity)
		}
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", d.File, d.Line+1, d.Col+1, label, d.Message)
	}
}

func formatDepsText(w io.Writer, deps CLIDeps) {
	fmt.Fprintf(w, "File: %s\n", deps.File)
	if len(deps.Imports) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODULE\tLANG\tLINE\tTARGET")
		for _, imp := range deps.Imports {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", imp.Module, imp.Language, imp.Line, imp.Target)
		}
		tw.Flush()
	}
	section := func(title string, paths []string) {
		fmt.Fprintf(w, "\n%s (%d):\n", title, len(paths))
		for _, p := range paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	section("Jac dependencies", deps.Dependencies)
	section("Imported by", deps.Dependents)
	section("Transitively imported by", deps.TransitiveDependents)
}

func formatIndexSummaryText(w io.Writer, s CLIIndexSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Root:\t%s\n", s.Root)
	fmt.Fprintf(tw, "Files:\t%d\n", s.Files)
	fmt.Fprintf(tw, "Symbols:\t%d\n", s.Symbols)
	fmt.Fprintf(tw, "Imports:\t%d\n", s.Imports)
	fmt.Fprintf(tw, "Problems:\t%d\n", s.Problems)
	fmt.Fprintf(tw, "Duration:\t%s\n", s.Duration)
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISymbol:
		formatSymbolsText(w, []CLISymbol{v})
	case CLIHover:
		formatHoverText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIDeps:
		formatDepsText(w, v)
	case CLIIndexSummary:
		formatIndexSummaryText(w, v)
	case nil:
		// No output when nothing was found.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
