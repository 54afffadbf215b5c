package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/jacls/internal/docs"
	"github.com/jward/jacls/internal/extract"
	"github.com/jward/jacls/internal/jac"
	"github.com/jward/jacls/internal/runtime"
	"github.com/jward/jacls/internal/store"
)

type fixture struct {
	ix    *Index
	docs  *docs.Store
	calls map[string]int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewStore("")
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	rt := runtime.NewRuntime("")
	f := &fixture{docs: docs.NewStore(), calls: make(map[string]int)}
	f.ix = New(s, f.docs, func(ctx context.Context, path, text string) extract.Analysis {
		f.calls[path]++
		return extract.Analyze(ctx, rt, path, text)
	})
	return f
}

func (f *fixture) put(path, text string) {
	f.docs.Put(path, text, 1)
	f.ix.Track(path)
}

func names(syms []*store.Symbol) []string {
	var out []string
	for _, s := range syms {
		out = append(out, s.Name)
	}
	return out
}

func (f *fixture) symbols(t *testing.T, path string) []string {
	t.Helper()
	syms, err := f.ix.SymbolsOf(context.Background(), path)
	require.NoError(t, err)
	return names(syms)
}

func TestSymbolsOf_LazyIndexing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/a.jac", "node A {\n    has x: int;\n}\n")
	assert.Equal(t, Unindexed, f.ix.State("/w/a.jac"))

	assert.Equal(t, []string{"A", "x"}, f.symbols(t, "/w/a.jac"))
	assert.Equal(t, Indexed, f.ix.State("/w/a.jac"))

	f.symbols(t, "/w/a.jac")
	assert.Equal(t, 1, f.calls["/w/a.jac"], "unchanged text is never re-extracted")
}

func TestSymbolsOf_Untracked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	syms, err := f.ix.SymbolsOf(context.Background(), "/w/none.jac")
	require.NoError(t, err)
	assert.Nil(t, syms)
	assert.False(t, f.ix.Tracked("/w/none.jac"))
}

func TestSymbolsOf_MergesDirectJacDependencies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/a.jac", "import:jac b;\nimport:jac b;\nimport:py os;\nwalker W;\n")
	f.put("/w/b.jac", "import:jac c;\nnode B {\n    has v: int;\n}\n")
	f.put("/w/c.jac", "edge C;\n")

	assert.Equal(t, []string{"W", "B", "v"}, f.symbols(t, "/w/a.jac"),
		"own symbols, then each direct dependency once; transitive ones are not inlined")
	assert.Equal(t, []string{"B", "v", "C"}, f.symbols(t, "/w/b.jac"))

	syms, err := f.ix.SymbolsOf(context.Background(), "/w/a.jac")
	require.NoError(t, err)
	assert.Equal(t, "/w/b.jac", syms[2].Path)
	assert.Equal(t, "B", syms[2].ContainerName, "inlined symbols keep their architype context")
}

func TestRevalidate_EditInvalidatesTransitiveDependents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.put("/w/a.jac", "node A;\n")
	f.put("/w/b.jac", "import:jac a;\nnode B;\n")
	f.put("/w/c.jac", "import:jac b;\nnode C;\n")
	for _, p := range []string{"/w/a.jac", "/w/b.jac", "/w/c.jac"} {
		f.symbols(t, p)
	}

	f.docs.Put("/w/a.jac", "node A;\nnode A2;\n", 2)
	stale, err := f.ix.Revalidate(ctx, "/w/a.jac")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/b.jac", "/w/c.jac"}, stale)
	assert.Equal(t, Stale, f.ix.State("/w/b.jac"))
	assert.Equal(t, Stale, f.ix.State("/w/c.jac"))
	assert.Equal(t, []string{"A", "A2"}, f.symbols(t, "/w/a.jac"))

	assert.Equal(t, []string{"B", "A", "A2"}, f.symbols(t, "/w/b.jac"))
	assert.Equal(t, []string{"C", "B"}, f.symbols(t, "/w/c.jac"))
	assert.Equal(t, 1, f.calls["/w/b.jac"], "dependents are re-merged, not re-extracted")
	assert.Equal(t, 1, f.calls["/w/c.jac"])
}

func TestRevalidate_UnchangedSymbolSetDoesNotPropagate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.put("/w/a.jac", "node A;\n")
	f.put("/w/b.jac", "import:jac a;\n")
	f.symbols(t, "/w/b.jac")

	f.docs.Put("/w/a.jac", "node A;\n# trailing comment\n", 2)
	stale, err := f.ix.Revalidate(ctx, "/w/a.jac")
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Equal(t, Indexed, f.ix.State("/w/b.jac"))
	assert.Equal(t, 2, f.calls["/w/a.jac"])

	stale, err = f.ix.Revalidate(ctx, "/w/a.jac")
	require.NoError(t, err)
	assert.Empty(t, stale)
	assert.Equal(t, 2, f.calls["/w/a.jac"], "same text skips extraction")
}

func TestCycleSafety(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/a.jac", "import:jac b;\nnode A;\n")
	f.put("/w/b.jac", "import:jac a;\nnode B;\n")

	assert.Equal(t, []string{"A", "B"}, f.symbols(t, "/w/a.jac"))
	assert.Equal(t, []string{"B", "A"}, f.symbols(t, "/w/b.jac"))
	assert.Equal(t, []string{"/w/b.jac"}, f.ix.Graph().TransitiveDependents("/w/a.jac"))

	f.docs.Put("/w/a.jac", "import:jac b;\nnode A;\nnode A3;\n", 2)
	stale, err := f.ix.Revalidate(context.Background(), "/w/a.jac")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/b.jac"}, stale)
	assert.Equal(t, []string{"B", "A", "A3"}, f.symbols(t, "/w/b.jac"))
}

func TestParseFailure_ContainedToFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/bad.jac", "import:jac good;\nwalker W {\n")
	f.put("/w/good.jac", "node G;\n")

	syms, err := f.ix.SymbolsOf(context.Background(), "/w/bad.jac")
	require.NoError(t, err)
	assert.Equal(t, []string{"G"}, names(syms), "a broken file still sees its dependencies")
	assert.True(t, f.ix.Tracked("/w/bad.jac"))

	problems := f.ix.Problems("/w/bad.jac")
	require.Error(t, problems)
	assert.True(t, errors.Is(problems, ErrParseFailure))
	assert.False(t, errors.Is(problems, ErrUnresolvedDependency))
	assert.NoError(t, f.ix.Problems("/w/good.jac"))

	assert.Equal(t, []string{"G"}, f.symbols(t, "/w/good.jac"))
}

func TestUnresolved(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/a.jac", "import:jac missing.mod;\nimport:py numpy;\n")
	f.symbols(t, "/w/a.jac")

	alerts := f.ix.Unresolved("/w/a.jac")
	require.Len(t, alerts, 1)
	assert.Equal(t, jac.SeverityWarning, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "cannot resolve import 'missing.mod'")
	assert.Equal(t, jac.Position{Line: 0, Col: 11}, alerts[0].Range.Start)
	assert.True(t, errors.Is(f.ix.Problems("/w/a.jac"), ErrUnresolvedDependency))

	f.put("/w/missing/mod.jac", "node M;\n")
	assert.Empty(t, f.ix.Unresolved("/w/a.jac"), "resolved once the target is tracked")
}

func TestDefinitionOf_InnermostWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	src := "walker W {\n    has n: int;\n    can run {\n        n = 1;\n    }\n}\n"
	f.put("/w/a.jac", src)

	sym, ok, err := f.ix.DefinitionOf(ctx, "/w/a.jac", jac.Position{Line: 3, Col: 8})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run", sym.Name)
	assert.Equal(t, 2, sym.StartLine)

	sym, ok, err = f.ix.DefinitionOf(ctx, "/w/a.jac", jac.Position{Line: 5, Col: 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "W", sym.Name)

	_, ok, err = f.ix.DefinitionOf(ctx, "/w/a.jac", jac.Position{Line: 7, Col: 0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNarrower(t *testing.T) {
	t.Parallel()
	r := func(sl, sc, el, ec int) jac.Range {
		return jac.Range{Start: jac.Position{Line: sl, Col: sc}, End: jac.Position{Line: el, Col: ec}}
	}
	assert.True(t, narrower(r(2, 4, 3, 5), r(0, 0, 9, 1)))
	assert.False(t, narrower(r(0, 0, 9, 1), r(2, 4, 3, 5)))
	assert.False(t, narrower(r(1, 0, 1, 4), r(1, 0, 1, 4)))
}

func TestRemove_MarksDependentsStale(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.put("/w/a.jac", "node A;\n")
	f.put("/w/b.jac", "import:jac a;\nnode B;\n")
	assert.Equal(t, []string{"B", "A"}, f.symbols(t, "/w/b.jac"))

	f.docs.Remove("/w/a.jac")
	stale, err := f.ix.Remove("/w/a.jac")
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/b.jac"}, stale)
	assert.Equal(t, []string{"B"}, f.symbols(t, "/w/b.jac"))
	assert.Len(t, f.ix.Unresolved("/w/b.jac"), 1)
}

func TestClosedFileKeepsSymbols(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.put("/w/a.jac", "node A;\n")
	f.put("/w/b.jac", "import:jac a;\nnode B;\n")
	f.symbols(t, "/w/b.jac")

	f.docs.Remove("/w/b.jac")
	assert.Equal(t, []string{"B", "A"}, f.symbols(t, "/w/b.jac"))

	f.docs.Put("/w/a.jac", "node A;\nnode A4;\n", 2)
	_, err := f.ix.Revalidate(ctx, "/w/a.jac")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "A4"}, f.symbols(t, "/w/b.jac"), "a closed dependent is re-merged without its text")
}

func TestWorkspaceSymbols(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.put("/w/b.jac", "node Person;\n")
	f.put("/w/a.jac", "walker PersonFinder;\nglob limit = 3;\n")

	syms, err := f.ix.WorkspaceSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PersonFinder", "limit", "Person"}, names(syms))

	found, err := f.ix.SearchSymbols(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, []string{"PersonFinder", "Person"}, names(found))
}

func TestInstall_DefaultsMalformedRanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	doc := f.docs.Put("/w/a.jac", "node N;\n", 1)
	changed, err := f.ix.Install(*doc, extract.Analysis{Symbols: []*store.Symbol{{
		Name: "N", Kind: store.KindNode,
		StartLine: 4, EndLine: 2,
		NameLine: 0, NameCol: 5, NameEndCol: 6,
	}}})
	require.NoError(t, err)
	assert.True(t, changed)

	own, err := f.ix.OwnSymbols(ctx, "/w/a.jac")
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, jac.Range{Start: jac.Position{Line: 0, Col: 5}, End: jac.Position{Line: 0, Col: 6}}, own[0].Range())

	assert.ErrorIs(t, normalize(&store.Symbol{Name: "X", StartLine: 3, EndLine: 1}), ErrMalformedDeclaration)
}
