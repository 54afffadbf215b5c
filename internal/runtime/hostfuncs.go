package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/risor-io/risor/object"

	"github.com/jward/jacls/internal/jac"
)

// lint runs every lint script against decls and collects the warnings they
// report through the warn host function.
func (r *Runtime) lint(ctx context.Context, path string, decls []*jac.Decl) ([]jac.Alert, error) {
	scripts, err := r.LintScripts()
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, nil
	}

	sink := &alertSink{}
	for _, script := range scripts {
		err := r.RunScript(ctx, script, map[string]any{
			"path":  path,
			"decls": declList(decls),
			"warn":  makeWarnFn(sink),
		})
		if err != nil {
			return nil, err
		}
	}
	return sink.alerts, nil
}

// declList converts declarations into the Risor values lint scripts see:
// a list of maps with name, kind, line, col, end_col, has_body, container
// and members keys. Positions are those of the declared name.
func declList(decls []*jac.Decl) *object.List {
	return object.NewList(declObjects(decls, ""))
}

func declObjects(decls []*jac.Decl, container string) []object.Object {
	out := make([]object.Object, 0, len(decls))
	for _, d := range decls {
		out = append(out, object.NewMap(map[string]object.Object{
			"name":      object.NewString(d.Name),
			"kind":      object.NewString(string(d.Kind)),
			"container": object.NewString(container),
			"line":      object.NewInt(int64(d.NameRange.Start.Line)),
			"col":       object.NewInt(int64(d.NameRange.Start.Col)),
			"end_col":   object.NewInt(int64(d.NameRange.End.Col)),
			"has_body":  object.NewBool(d.HasBody),
			"members":   object.NewList(declObjects(d.Members, d.Name)),
		}))
	}
	return out
}

type alertSink struct {
	mu     sync.Mutex
	alerts []jac.Alert
}

// makeWarnFn creates the "warn" host function.
//
// warn(decl, message) reports a warning on the name of decl, one of the
// maps from the decls global.
func makeWarnFn(sink *alertSink) *object.Builtin {
	return object.NewBuiltin("warn", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("warn", 2, len(args))
		}

		decl, ok := args[0].(*object.Map)
		if !ok {
			return object.Errorf("warn: decl must be a map, got %s", args[0].Type())
		}

		msg, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("warn: message must be a string, got %s", args[1].Type())
		}

		fields := decl.Value()
		line, lok := fields["line"].(*object.Int)
		col, cok := fields["col"].(*object.Int)
		if !lok || !cok {
			return object.Errorf("warn: decl is missing line or col")
		}
		end := col.Value()
		if endCol, ok := fields["end_col"].(*object.Int); ok {
			end = endCol.Value()
		}

		r := jac.Range{
			Start: jac.Position{Line: int(line.Value()), Col: int(col.Value())},
			End:   jac.Position{Line: int(line.Value()), Col: int(end)},
		}
		sink.mu.Lock()
		sink.alerts = append(sink.alerts, jac.Warningf(r, "%s", msg.Value()))
		sink.mu.Unlock()
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
	script string
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "script", l.script)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "script", l.script)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "script", l.script)
}
