package eval

import (
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/value"
)

// BuiltinFunc is the signature every registered built-in implements: a
// uniform registry entry rather than one large match on name.
type BuiltinFunc func(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic)

type Builtin struct {
	Name    string
	MinArgs int
	Handler BuiltinFunc
}

// registry is populated once by the register calls in each builtin_*.go
// module's init(); lookupBuiltin never mutates it, so concurrent EvalContexts (one per
// compilation unit) can share it safely.
var registry = map[string]Builtin{}

// register is called by each builtin_*.go module's init(). Only the last
// registration under a given name is reachable; since this is a Go map
// literal-equivalent built at init time, a later register() call for the
// same name simply overwrites the earlier one — there is no dead code to
// separately suppress.
func register(name string, minArgs int, fn BuiltinFunc) {
	registry[name] = Builtin{Name: name, MinArgs: minArgs, Handler: fn}
}

func lookupBuiltin(name string) (Builtin, bool) {
	b, ok := registry[name]
	return b, ok
}

// installBuiltins binds every registered builtin's name into root so user
// code can shadow (but not silently break) them with a local declaration;
// the actual dispatch in invokeCallee still prefers the builtin registry
// for unshadowed identifiers used as call targets.
func installBuiltins(root *value.Scope) {
	for name := range registry {
		root.Declare(name, value.Null(), false)
	}
}

func argAt(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Null()
}

func namedOpt(ctx *EvalContext, args []value.Value, i int, def int) int {
	v := argAt(args, i)
	if v.Kind() == value.KindNull {
		return def
	}
	if v.Kind() == value.KindInt {
		return int(v.AsInt())
	}
	if v.Kind() == value.KindFloat {
		return int(v.AsFloat())
	}
	return def
}

func clampVel(v int) int {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}
