package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/scripts"
)

func readFixture(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", rel))
	require.NoError(t, err)
	return string(data)
}

func messages(alerts []jac.Alert) []string {
	var out []string
	for _, a := range alerts {
		out = append(out, a.Message)
	}
	return out
}

// --- Pass pipeline tests ---

func TestRun_ArchitypeAndImportPasses(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	res, err := rt.Run(context.Background(), "/w/circle.jac", readFixture(t, "circle/circle.jac"), PassArchitype, PassImport)
	require.NoError(t, err)
	assert.False(t, res.HasErrors())
	assert.Empty(t, res.Warnings)

	require.NotNil(t, res.Output.Module)
	assert.Len(t, res.Output.Decls, 4)
	require.Len(t, res.Output.Imports, 1)
	assert.Equal(t, "math", res.Output.Imports[0].Path)
}

func TestRun_OnlyRequestedOutputs(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	res, err := rt.Run(context.Background(), "/w/a.jac", "import:jac b;\nnode N;", PassImport)
	require.NoError(t, err)
	assert.Nil(t, res.Output.Decls)
	assert.Len(t, res.Output.Imports, 1)
	assert.Len(t, res.Output.Module.Decls, 1)
}

func TestRun_ParseErrorsComeFirst(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	res, err := rt.Run(context.Background(), "/w/a.jac", "node N;\nnode N;\nwalker W {\n", PassArchitype)
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.Contains(t, res.Errors[0].Message, "unterminated block")
	assert.Equal(t, []string{"duplicate node 'N' (first declared on line 1)"}, messages(res.Warnings))
}

func TestRun_DuplicateMembersAndImports(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	src := "import:jac a;\nimport:jac a;\nobj O {\n    has x: int;\n    has x: str;\n}\n"
	res, err := rt.Run(context.Background(), "/w/m.jac", src, PassArchitype, PassImport)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"duplicate variable 'x' (first declared on line 4)",
		"module 'a' is imported more than once",
	}, messages(res.Warnings))
}

func TestRun_UnknownPass(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	_, err := rt.Run(context.Background(), "/w/a.jac", "", "typecheck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown pass "typecheck"`)
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithCacheSize(1))
	src := readFixture(t, "circle/circle.jac")
	first, err := rt.Run(context.Background(), "/w/c.jac", src, PassArchitype, PassImport)
	require.NoError(t, err)
	second, err := rt.Run(context.Background(), "/w/c.jac", src, PassArchitype, PassImport)
	require.NoError(t, err)
	assert.Same(t, first.Output.Module, second.Output.Module, "second run is served from the cache")
	assert.Equal(t, first, second)

	_, err = rt.Run(context.Background(), "/w/d.jac", "node N;", PassArchitype)
	require.NoError(t, err)
	assert.Equal(t, 1, rt.cache.len(), "a full cache is emptied before insert")
}

// --- Lint pass tests ---

func TestRun_LintWithEmbeddedScripts(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	src := "walker W {}\nnode N {\n    has size: int;\n    can size;\n}\n"
	res, err := rt.Run(context.Background(), "/w/lint.jac", src, PassArchitype, PassLint)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "walker 'W' has an empty body", res.Warnings[0].Message)
	assert.Equal(t, jac.Range{Start: jac.Position{Line: 0, Col: 7}, End: jac.Position{Line: 0, Col: 8}}, res.Warnings[0].Range)
	assert.Equal(t, "ability 'size' shadows has-variable 'size' of 'N'", res.Warnings[1].Message)
	assert.Equal(t, 3, res.Warnings[1].Range.Start.Line)
}

func TestRun_LintCleanFixture(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	res, err := rt.Run(context.Background(), "/w/circle.jac", readFixture(t, "circle/circle.jac"), PassLint)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

func TestRun_LintScriptFromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lint"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LintScriptPath("walkers")), []byte(`
for i := 0; i < len(decls); i++ {
    d := decls[i]
    if d["kind"] == "walker" {
        warn(d, "walker in " + path)
    }
}
`), 0o644))

	rt := NewRuntime(dir)
	res, err := rt.Run(context.Background(), "/w/a.jac", "walker A;\nnode B;\nwalker C;", PassLint)
	require.NoError(t, err)
	assert.Equal(t, []string{"walker in /w/a.jac", "walker in /w/a.jac"}, messages(res.Warnings))
}

func TestRun_LintScriptFailure(t *testing.T) {
	t.Parallel()
	mapFS := fstest.MapFS{
		"lint/bad.risor": &fstest.MapFile{Data: []byte(`warn("not a map", "x")`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))
	_, err := rt.Run(context.Background(), "/w/a.jac", "node N;", PassLint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lint/bad.risor")
}

func TestRun_LintWithoutScripts(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("")
	res, err := rt.Run(context.Background(), "/w/a.jac", "walker W {}", PassLint)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
}

// --- Script loading tests ---

func TestLintScripts_Sorted(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	got, err := rt.LintScripts()
	require.NoError(t, err)
	assert.Equal(t, []string{"lint/empty_body.risor", "lint/shadowed_field.risor"}, got)
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"lint/rule.risor": &fstest.MapFile{Data: []byte(content)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("lint/rule.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/lint/rule.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestLoadScript_FallsBackToDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := `z := 7`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(content), 0o644))

	rt := NewRuntime(dir)

	got, err := rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(t.TempDir())
	err := rt.RunScript(context.Background(), "missing.risor", nil)
	require.Error(t, err)
}

// --- Importer wiring tests ---

func TestImport_FSImporter(t *testing.T) {
	// Risor's FSImporter resolves "lib_helpers" by trying name + ".risor",
	// so the file must be at the flat path "lib_helpers.risor" in the FS.
	mapFS := fstest.MapFS{
		"lib_helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import lib_helpers

msg := lib_helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestImport_LocalImporter(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "math_utils.risor"), []byte(`
func double(x) {
	return x * 2
}
`), 0o644))

	rt := NewRuntime(dir)

	script := `
import math_utils

result := math_utils.double(21)
assert(result == 42, 'expected 42, got {result}')
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// The log global is always available, so imported modules must be
	// compiled with the host global names.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}

	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import helper
helper.do_log("test message")
`
	err := rt.RunSource(context.Background(), script, nil)
	require.NoError(t, err)
}

func TestRunSource_DeclsGlobal(t *testing.T) {
	rt := NewRuntime("")
	m := jac.Parse("obj Shape {\n    has kind: str;\n    can area;\n}\n")
	require.False(t, m.HasErrors())

	script := `
assert(len(decls) == 1, 'expected 1 decl, got {len(decls)}')
shape := decls[0]
assert(shape["name"] == "Shape", "expected Shape")
assert(shape["kind"] == "object", "expected object")
assert(shape["line"] == 0 && shape["col"] == 4, "expected name position 0:4")
members := shape["members"]
assert(len(members) == 2, "expected 2 members")
assert(members[1]["container"] == "Shape", "expected container Shape")
assert(members[1]["has_body"] == false, "expected no body")
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"decls": declList(m.Decls),
	})
	require.NoError(t, err)
}

func TestLint_OnlyLintAlerts(t *testing.T) {
	t.Parallel()
	rt := NewRuntime("", WithRuntimeFS(scripts.FS))
	alerts, err := rt.Lint(context.Background(), "/w/lint.jac", "node N;\nnode N;\nwalker W {}\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"walker 'W' has an empty body"}, messages(alerts))

	alerts, err = rt.Lint(context.Background(), "/w/broken.jac", "walker W {\n")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
