// Package eval walks an ast.Program against a lexical scope model and
// populates a Song-IR. Control flow uses an explicit Signal result type
// rather than panics for return/break/continue.
package eval

import (
	"errors"

	"github.com/leafo/songc/internal/ast"
	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/ir"
	"github.com/leafo/songc/internal/music"
	"github.com/leafo/songc/internal/value"
)

const (
	maxCallDepth = 1000
	maxLoopIters = 100000
)

// SignalKind discriminates the outcome of executing a statement or block.
type SignalKind int

const (
	SigNormal SignalKind = iota
	SigReturn
	SigBreak
	SigContinue
)

// Signal is returned by every statement-executing function; callers
// inspect Kind to decide whether to keep running, unwind to a loop, or
// unwind to a function call boundary.
type Signal struct {
	Kind  SignalKind
	Value value.Value
}

var normal = Signal{Kind: SigNormal}

// Phase distinguishes the two evaluation phases.
type Phase int

const (
	PhaseGlobal Phase = iota
	PhaseTrack
)

// TuplingLevel is one entry of a track's tuplet stack.
type TuplingLevel struct {
	Actual int
	Normal int
}

// TrackState holds the per-track mutable evaluation state: cursor,
// tuplet stack, and the Song-IR track being built.
type TrackState struct {
	IR            ir.Track
	Cursor        int
	Tuplets       []TuplingLevel
	InVocal       bool
	LastTick      int
	OpenSlurs     int
	PendingNotes  []ir.PhraseNote // staged by 'notes', consumed and aligned by 'lyrics'
}

// EvalContext is threaded explicitly through every evaluation function
// rather than relying on a global mutable current-track pointer.
type EvalContext struct {
	Song         *ir.SongIR
	Scope        *value.Scope
	Phase        Phase
	CurrentTrack *TrackState
	Path         string
	Warnings     *diag.Bag
	CallDepth    int
	SoundKinds   map[string]string // sound id -> kind, for phase-aware builtin lookups
	MeterMap     *music.MeterMap
	meterChanges []music.MeterChange
}

// NewContext builds a fresh evaluation context with an empty Song-IR at
// the given PPQ and the global builtin scope as root parent.
func NewContext(path string, ppq int) *EvalContext {
	root := value.NewScope(nil)
	installBuiltins(root)
	return &EvalContext{
		Song:       ir.NewSongIR(ppq),
		Scope:      value.NewScope(root),
		Phase:      PhaseGlobal,
		Path:       path,
		Warnings:   &diag.Bag{},
		SoundKinds: map[string]string{},
	}
}

// Run evaluates prog's top-level declarations (populating global bindings)
// and any top-level expression that produces a score, returning the
// finished Song-IR.
func Run(prog *ast.Program, path string, ppq int) (*ir.SongIR, *diag.Bag, *diag.Diagnostic) {
	ctx := NewContext(path, ppq)
	for _, decl := range prog.Body {
		if d := ctx.evalTopDecl(decl); d != nil {
			return nil, ctx.Warnings, d
		}
	}
	ctx.Song.SortEvents()
	if err := ctx.Song.Validate(); err != nil {
		// Validate prefixes each message with its code ("E001: ...").
		code, msg := "E010", err.Error()
		for i := 0; i+4 < len(msg); i++ {
			if msg[i] == 'E' && msg[i+4] == ':' && (i == 0 || msg[i-1] == ' ') {
				code = msg[i : i+4]
				break
			}
		}
		return nil, ctx.Warnings, diag.New(code, msg, diag.Position{}).WithFile(path)
	}
	return ctx.Song, ctx.Warnings, nil
}

func (ctx *EvalContext) errf(pos diag.Position, code, format string, args ...any) *diag.Diagnostic {
	return diag.Newf(code, pos, format, args...).WithFile(ctx.Path)
}

// ---- Top-level declarations ----

func (ctx *EvalContext) evalTopDecl(decl ast.TopDecl) *diag.Diagnostic {
	switch d := decl.(type) {
	case *ast.FnDecl:
		fn := &value.Function{Params: d.Params, Body: d.Body, Closure: ctx.Scope, Name: d.Name}
		if err := ctx.Scope.Declare(d.Name, value.FunctionVal(fn), false); err != nil {
			return ctx.errf(d.Pos, "E300", "%s", err.Error())
		}
		return nil
	case *ast.ConstDecl:
		v, sig, err := ctx.evalExpr(d.Value)
		if err != nil {
			return err
		}
		_ = sig
		return ctx.bindPattern(d.Target, v, false, d.Pos)
	case *ast.TypeAliasDecl, *ast.EnumDecl:
		return nil
	default:
		return ctx.errf(decl.Position(), "E300", "unsupported top-level declaration")
	}
}

func (ctx *EvalContext) bindPattern(pat ast.Pattern, v value.Value, mutable bool, pos diag.Position) *diag.Diagnostic {
	if !pat.IsTuple {
		if err := ctx.Scope.Declare(pat.Names[0], v, mutable); err != nil {
			return ctx.errf(pos, "E300", "%s", err.Error())
		}
		return nil
	}
	if v.Kind() != value.KindArray {
		return ctx.errf(pos, "E200", "cannot destructure a %s value", v.Kind())
	}
	items := v.AsArray().Items
	for i, name := range pat.Names {
		var item value.Value
		if i < len(items) {
			item = items[i]
		} else {
			item = value.Null()
		}
		if err := ctx.Scope.Declare(name, item, mutable); err != nil {
			return ctx.errf(pos, "E300", "%s", err.Error())
		}
	}
	if pat.Rest != "" {
		rest := []value.Value{}
		if len(items) > len(pat.Names) {
			rest = append(rest, items[len(pat.Names):]...)
		}
		if err := ctx.Scope.Declare(pat.Rest, value.ArrayVal(value.NewArray(rest)), mutable); err != nil {
			return ctx.errf(pos, "E300", "%s", err.Error())
		}
	}
	return nil
}

// ---- Statement execution ----

func (ctx *EvalContext) execBlock(stmts []ast.Statement, parent *value.Scope) (Signal, *diag.Diagnostic) {
	saved := ctx.Scope
	ctx.Scope = value.NewScope(parent)
	defer func() { ctx.Scope = saved }()
	for _, s := range stmts {
		sig, err := ctx.execStmt(s)
		if err != nil {
			return normal, err
		}
		if sig.Kind != SigNormal {
			return sig, nil
		}
	}
	return normal, nil
}

func (ctx *EvalContext) execStmt(s ast.Statement) (Signal, *diag.Diagnostic) {
	switch st := s.(type) {
	case *ast.LetStmt:
		v, _, err := ctx.evalExpr(st.Value)
		if err != nil {
			return normal, err
		}
		if err := ctx.bindPattern(st.Target, v, st.Mutable, st.Pos); err != nil {
			return normal, err
		}
		return normal, nil

	case *ast.AssignStmt:
		v, _, err := ctx.evalExpr(st.Value)
		if err != nil {
			return normal, err
		}
		return normal, ctx.execAssign(st.Target, v)

	case *ast.ExprStmt:
		_, _, err := ctx.evalExpr(st.X)
		return normal, err

	case *ast.IfElseStmt:
		cond, _, err := ctx.evalExpr(st.Cond)
		if err != nil {
			return normal, err
		}
		if cond.IsTruthy() {
			return ctx.execBlock(st.Then, ctx.Scope)
		}
		if st.Else != nil {
			return ctx.execBlock(st.Else, ctx.Scope)
		}
		return normal, nil

	case *ast.WhileStmt:
		iters := 0
		for {
			cond, _, err := ctx.evalExpr(st.Cond)
			if err != nil {
				return normal, err
			}
			if !cond.IsTruthy() {
				return normal, nil
			}
			iters++
			if iters > maxLoopIters {
				return normal, ctx.errf(st.Pos, "E401", "loop exceeded %d iterations", maxLoopIters)
			}
			sig, err := ctx.execBlock(st.Body, ctx.Scope)
			if err != nil {
				return normal, err
			}
			if sig.Kind == SigBreak {
				return normal, nil
			}
			if sig.Kind == SigReturn {
				return sig, nil
			}
		}

	case *ast.ForRangeStmt:
		startV, _, err := ctx.evalExpr(st.Start)
		if err != nil {
			return normal, err
		}
		endV, _, err2 := ctx.evalExpr(st.End)
		if err2 != nil {
			return normal, err2
		}
		start, end := startV.AsInt(), endV.AsInt()
		iters := 0
		for i := start; i < end; i++ {
			iters++
			if iters > maxLoopIters {
				return normal, ctx.errf(st.Pos, "E401", "loop exceeded %d iterations", maxLoopIters)
			}
			loopScope := value.NewScope(ctx.Scope)
			loopScope.Declare(st.Var, value.Int(i), false)
			sig, err := ctx.execBlock(st.Body, loopScope)
			if err != nil {
				return normal, err
			}
			if sig.Kind == SigBreak {
				break
			}
			if sig.Kind == SigReturn {
				return sig, nil
			}
		}
		return normal, nil

	case *ast.ForInStmt:
		iterV, _, err := ctx.evalExpr(st.Iterable)
		if err != nil {
			return normal, err
		}
		if iterV.Kind() != value.KindArray {
			return normal, ctx.errf(st.Pos, "E200", "'for..in' requires an array, got %s", iterV.Kind())
		}
		iters := 0
		for _, item := range iterV.AsArray().Items {
			iters++
			if iters > maxLoopIters {
				return normal, ctx.errf(st.Pos, "E401", "loop exceeded %d iterations", maxLoopIters)
			}
			loopScope := value.NewScope(ctx.Scope)
			loopScope.Declare(st.Var, item, false)
			sig, err := ctx.execBlock(st.Body, loopScope)
			if err != nil {
				return normal, err
			}
			if sig.Kind == SigBreak {
				break
			}
			if sig.Kind == SigReturn {
				return sig, nil
			}
		}
		return normal, nil

	case *ast.MatchStmt:
		return ctx.execMatchStmt(st)

	case *ast.ReturnStmt:
		if st.Value == nil {
			return Signal{Kind: SigReturn, Value: value.Null()}, nil
		}
		v, _, err := ctx.evalExpr(st.Value)
		if err != nil {
			return normal, err
		}
		return Signal{Kind: SigReturn, Value: v}, nil

	case *ast.BreakStmt:
		return Signal{Kind: SigBreak}, nil

	case *ast.ContinueStmt:
		return Signal{Kind: SigContinue}, nil

	case *ast.MetaStmt:
		return normal, ctx.execMeta(st)
	case *ast.TempoStmt:
		return normal, ctx.execTempo(st)
	case *ast.MeterStmt:
		return normal, ctx.execMeter(st)
	case *ast.SoundStmt:
		return normal, ctx.execSound(st)
	case *ast.TrackStmt:
		return normal, ctx.execTrack(st)
	case *ast.PlaceStmt:
		return normal, ctx.execPlace(st)
	case *ast.TripletStmt:
		return ctx.execTriplet(st)
	case *ast.TupletStmt:
		return ctx.execTuplet(st)

	default:
		return normal, ctx.errf(s.Position(), "E300", "unhandled statement %T", s)
	}
}

func (ctx *EvalContext) execAssign(target ast.Expr, v value.Value) *diag.Diagnostic {
	switch t := target.(type) {
	case *ast.Ident:
		if err := ctx.Scope.Assign(t.Name, v); err != nil {
			return ctx.errf(t.Pos, "E300", "%s", err.Error())
		}
		return nil
	case *ast.MemberExpr:
		obj, _, err := ctx.evalExpr(t.X)
		if err != nil {
			return err
		}
		if obj.Kind() != value.KindObject {
			return ctx.errf(t.Pos, "E200", "cannot assign member of a %s value", obj.Kind())
		}
		obj.AsObject().Set(t.Name, v)
		return nil
	case *ast.IndexExpr:
		obj, _, err := ctx.evalExpr(t.X)
		if err != nil {
			return err
		}
		idx, _, err2 := ctx.evalExpr(t.Index)
		if err2 != nil {
			return err2
		}
		if obj.Kind() != value.KindArray {
			return ctx.errf(t.Pos, "E200", "cannot index-assign a %s value", obj.Kind())
		}
		arr := obj.AsArray()
		i := int(idx.AsInt())
		if i < 0 || i >= len(arr.Items) {
			return ctx.errf(t.Pos, "E102", "array index %d out of range 0..%d", i, len(arr.Items)-1)
		}
		arr.Items[i] = v
		return nil
	default:
		return ctx.errf(target.Position(), "E101", "illegal assignment target")
	}
}

func (ctx *EvalContext) execMatchStmt(st *ast.MatchStmt) (Signal, *diag.Diagnostic) {
	subject, _, err := ctx.evalExpr(st.Subject)
	if err != nil {
		return normal, err
	}
	for _, arm := range st.Arms {
		matched, bindScope, err := ctx.tryMatchArm(arm.IsElse, arm.Pattern, subject)
		if err != nil {
			return normal, err
		}
		if !matched {
			continue
		}
		if arm.Guard != nil {
			saved := ctx.Scope
			ctx.Scope = bindScope
			guardV, _, gerr := ctx.evalExpr(arm.Guard)
			ctx.Scope = saved
			if gerr != nil {
				return normal, gerr
			}
			if !guardV.IsTruthy() {
				continue
			}
		}
		return ctx.execBlock(arm.Body, bindScope)
	}
	return normal, nil
}

// tryMatchArm reports whether pattern matches subject. A bare identifier
// pattern always matches and binds the identifier to subject (binding
// pattern); any other expression pattern is evaluated and compared by
// value equality.
func (ctx *EvalContext) tryMatchArm(isElse bool, pattern ast.Expr, subject value.Value) (bool, *value.Scope, *diag.Diagnostic) {
	scope := value.NewScope(ctx.Scope)
	if isElse {
		return true, scope, nil
	}
	if ident, ok := pattern.(*ast.Ident); ok {
		scope.Declare(ident.Name, subject, false)
		return true, scope, nil
	}
	patV, _, err := ctx.evalExpr(pattern)
	if err != nil {
		return false, nil, err
	}
	return value.Equal(patV, subject), scope, nil
}

// ---- Expression evaluation ----

func (ctx *EvalContext) evalExpr(e ast.Expr) (value.Value, Signal, *diag.Diagnostic) {
	switch x := e.(type) {
	case *ast.IntLit:
		return value.Int(x.Value), normal, nil
	case *ast.FloatLit:
		return value.Float(x.Value), normal, nil
	case *ast.BoolLit:
		return value.Bool(x.Value), normal, nil
	case *ast.NullLit:
		return value.Null(), normal, nil
	case *ast.StringLit:
		return value.Str(x.Value), normal, nil
	case *ast.PitchLit:
		return value.PitchVal(music.Pitch(x.Key)), normal, nil
	case *ast.DurationLit:
		d, err := music.NewFractional(x.Numerator, x.Denominator, x.Dots)
		if err != nil {
			return value.Value{}, normal, ctx.errf(x.Pos, "E101", "%s", err.Error())
		}
		return value.DurVal(d), normal, nil
	case *ast.PosRefLit:
		return value.TimeVal(music.Position{Bar: x.Bar, Beat: x.Beat}), normal, nil
	case *ast.TemplateLit:
		return ctx.evalTemplate(x)
	case *ast.Ident:
		v, ok := ctx.Scope.Lookup(x.Name)
		if !ok {
			return value.Value{}, normal, ctx.errf(x.Pos, "E300", "undefined variable %q", x.Name)
		}
		return v, normal, nil
	case *ast.TupleLit:
		return ctx.evalArrayLike(x.Elems, x.Pos)
	case *ast.ArrayLit:
		return ctx.evalArrayLit(x)
	case *ast.ObjectLit:
		return ctx.evalObjectLit(x)
	case *ast.ConditionalExpr:
		cond, _, err := ctx.evalExpr(x.Cond)
		if err != nil {
			return value.Value{}, normal, err
		}
		if cond.IsTruthy() {
			v, _, err := ctx.evalExpr(x.Then)
			return v, normal, err
		}
		v, _, err := ctx.evalExpr(x.Else)
		return v, normal, err
	case *ast.ArrowFunc:
		fn := &value.Function{Params: x.Params, Body: x.BlockBody, Expr: x.Body, Closure: ctx.Scope}
		return value.FunctionVal(fn), normal, nil
	case *ast.MatchExpr:
		return ctx.evalMatchExpr(x)
	case *ast.UnaryExpr:
		return ctx.evalUnary(x)
	case *ast.BinaryExpr:
		return ctx.evalBinary(x)
	case *ast.CallExpr:
		return ctx.evalCall(x)
	case *ast.MemberExpr:
		return ctx.evalMember(x)
	case *ast.IndexExpr:
		return ctx.evalIndex(x)
	case *ast.ScoreBlock:
		return ctx.evalScoreBlock(x)
	case *ast.ClipBlock:
		return ctx.evalClipBlock(x)
	case *ast.SpreadExpr:
		return ctx.evalExpr(x.X)
	default:
		return value.Value{}, normal, ctx.errf(e.Position(), "E300", "unhandled expression %T", e)
	}
}

func (ctx *EvalContext) evalTemplate(x *ast.TemplateLit) (value.Value, Signal, *diag.Diagnostic) {
	out := x.Parts[0]
	for i, expr := range x.Exprs {
		v, _, err := ctx.evalExpr(expr)
		if err != nil {
			return value.Value{}, normal, err
		}
		out += v.String()
		out += x.Parts[i+1]
	}
	return value.Str(out), normal, nil
}

func (ctx *EvalContext) evalArrayLike(elems []ast.Expr, pos diag.Position) (value.Value, Signal, *diag.Diagnostic) {
	items := make([]value.Value, 0, len(elems))
	for _, e := range elems {
		v, _, err := ctx.evalExpr(e)
		if err != nil {
			return value.Value{}, normal, err
		}
		items = append(items, v)
	}
	return value.ArrayVal(value.NewArray(items)), normal, nil
}

func (ctx *EvalContext) evalArrayLit(x *ast.ArrayLit) (value.Value, Signal, *diag.Diagnostic) {
	var items []value.Value
	for _, elem := range x.Elems {
		v, _, err := ctx.evalExpr(elem.Value)
		if err != nil {
			return value.Value{}, normal, err
		}
		if elem.Spread {
			if v.Kind() != value.KindArray {
				return value.Value{}, normal, ctx.errf(x.Pos, "E200", "cannot spread a %s value into an array", v.Kind())
			}
			items = append(items, v.AsArray().Items...)
		} else {
			items = append(items, v)
		}
	}
	if len(items) > 1_000_000 {
		return value.Value{}, normal, ctx.errf(x.Pos, "E402", "array literal exceeds 1,000,000 elements")
	}
	return value.ArrayVal(value.NewArray(items)), normal, nil
}

func (ctx *EvalContext) evalObjectLit(x *ast.ObjectLit) (value.Value, Signal, *diag.Diagnostic) {
	obj := value.NewObject()
	for _, f := range x.Fields {
		if f.Spread {
			v, _, err := ctx.evalExpr(f.Value)
			if err != nil {
				return value.Value{}, normal, err
			}
			if v.Kind() != value.KindObject {
				return value.Value{}, normal, ctx.errf(x.Pos, "E200", "cannot spread a %s value into an object", v.Kind())
			}
			for _, k := range v.AsObject().Keys() {
				val, _ := v.AsObject().Get(k)
				obj.Set(k, val)
			}
			continue
		}
		v, _, err := ctx.evalExpr(f.Value)
		if err != nil {
			return value.Value{}, normal, err
		}
		obj.Set(f.Key, v)
	}
	return value.ObjectVal(obj), normal, nil
}

func (ctx *EvalContext) evalMatchExpr(x *ast.MatchExpr) (value.Value, Signal, *diag.Diagnostic) {
	subject, _, err := ctx.evalExpr(x.Subject)
	if err != nil {
		return value.Value{}, normal, err
	}
	for _, arm := range x.Arms {
		matched, bindScope, err := ctx.tryMatchArm(arm.IsElse, arm.Pattern, subject)
		if err != nil {
			return value.Value{}, normal, err
		}
		if !matched {
			continue
		}
		if arm.Guard != nil {
			saved := ctx.Scope
			ctx.Scope = bindScope
			guardV, _, gerr := ctx.evalExpr(arm.Guard)
			ctx.Scope = saved
			if gerr != nil {
				return value.Value{}, normal, gerr
			}
			if !guardV.IsTruthy() {
				continue
			}
		}
		saved := ctx.Scope
		ctx.Scope = bindScope
		v, _, verr := ctx.evalExpr(arm.Value)
		ctx.Scope = saved
		return v, normal, verr
	}
	return value.Null(), normal, nil
}

func (ctx *EvalContext) evalUnary(x *ast.UnaryExpr) (value.Value, Signal, *diag.Diagnostic) {
	v, _, err := ctx.evalExpr(x.X)
	if err != nil {
		return value.Value{}, normal, err
	}
	switch x.Op {
	case "!":
		return value.Not(v), normal, nil
	case "-":
		r, e := value.Negate(v)
		if e != nil {
			return value.Value{}, normal, ctx.errf(x.Pos, "E200", "%s", e.Error())
		}
		return r, normal, nil
	default:
		return value.Value{}, normal, ctx.errf(x.Pos, "E300", "unknown unary operator %q", x.Op)
	}
}

func (ctx *EvalContext) evalBinary(x *ast.BinaryExpr) (value.Value, Signal, *diag.Diagnostic) {
	switch x.Op {
	case "||":
		l, _, err := ctx.evalExpr(x.L)
		if err != nil {
			return value.Value{}, normal, err
		}
		if l.IsTruthy() {
			return l, normal, nil
		}
		r, _, err2 := ctx.evalExpr(x.R)
		return r, normal, err2
	case "&&":
		l, _, err := ctx.evalExpr(x.L)
		if err != nil {
			return value.Value{}, normal, err
		}
		if !l.IsTruthy() {
			return l, normal, nil
		}
		r, _, err2 := ctx.evalExpr(x.R)
		return r, normal, err2
	case "??":
		l, _, err := ctx.evalExpr(x.L)
		if err != nil {
			return value.Value{}, normal, err
		}
		if l.Kind() != value.KindNull {
			return l, normal, nil
		}
		r, _, err2 := ctx.evalExpr(x.R)
		return r, normal, err2
	}

	l, _, err := ctx.evalExpr(x.L)
	if err != nil {
		return value.Value{}, normal, err
	}
	r, _, err2 := ctx.evalExpr(x.R)
	if err2 != nil {
		return value.Value{}, normal, err2
	}

	var result value.Value
	var opErr error
	switch x.Op {
	case "+":
		result, opErr = value.Add(l, r)
	case "-":
		result, opErr = value.Sub(l, r)
	case "*":
		result, opErr = value.Mul(l, r)
	case "/":
		result, opErr = value.Div(l, r)
	case "%":
		result, opErr = value.Mod(l, r)
	case "==":
		result, opErr = value.Bool(value.Equal(l, r)), nil
	case "!=":
		result, opErr = value.Bool(!value.Equal(l, r)), nil
	case "<", "<=", ">", ">=":
		result, opErr = value.Compare(l, r, x.Op)
	case "..":
		return value.Value{}, normal, ctx.errf(x.Pos, "E300", "'..' is only valid in a 'for' range or array spread context")
	case "|>":
		return ctx.evalPipe(l, x.R)
	default:
		return value.Value{}, normal, ctx.errf(x.Pos, "E300", "unknown binary operator %q", x.Op)
	}
	if opErr != nil {
		if errors.Is(opErr, value.ErrStringCapExceeded) {
			return value.Value{}, normal, ctx.errf(x.Pos, "E402", "%s", opErr.Error())
		}
		return value.Value{}, normal, ctx.errf(x.Pos, "E200", "%s", opErr.Error())
	}
	return result, normal, nil
}

// evalPipe implements `x |> f(args...)` as `f(x, args...)`.
func (ctx *EvalContext) evalPipe(lhs value.Value, rhsExpr ast.Expr) (value.Value, Signal, *diag.Diagnostic) {
	call, ok := rhsExpr.(*ast.CallExpr)
	if !ok {
		v, _, err := ctx.evalExpr(rhsExpr)
		return v, normal, err
	}
	args := []value.Value{lhs}
	for _, a := range call.Args {
		v, _, err := ctx.evalExpr(a)
		if err != nil {
			return value.Value{}, normal, err
		}
		args = append(args, v)
	}
	return ctx.invokeCallee(call.Callee, args, call.Pos)
}

func (ctx *EvalContext) evalMember(x *ast.MemberExpr) (value.Value, Signal, *diag.Diagnostic) {
	obj, _, err := ctx.evalExpr(x.X)
	if err != nil {
		return value.Value{}, normal, err
	}
	if obj.Kind() == value.KindNull && x.Optional {
		return value.Null(), normal, nil
	}
	if obj.Kind() != value.KindObject {
		return value.Value{}, normal, ctx.errf(x.Pos, "E200", "cannot access member %q of a %s value", x.Name, obj.Kind())
	}
	v, ok := obj.AsObject().Get(x.Name)
	if !ok {
		return value.Null(), normal, nil
	}
	return v, normal, nil
}

func (ctx *EvalContext) evalIndex(x *ast.IndexExpr) (value.Value, Signal, *diag.Diagnostic) {
	obj, _, err := ctx.evalExpr(x.X)
	if err != nil {
		return value.Value{}, normal, err
	}
	if obj.Kind() == value.KindNull && x.Optional {
		return value.Null(), normal, nil
	}
	idx, _, err2 := ctx.evalExpr(x.Index)
	if err2 != nil {
		return value.Value{}, normal, err2
	}
	switch obj.Kind() {
	case value.KindArray:
		arr := obj.AsArray()
		i := int(idx.AsInt())
		if i < 0 || i >= len(arr.Items) {
			return value.Value{}, normal, ctx.errf(x.Pos, "E102", "array index %d out of range 0..%d", i, len(arr.Items)-1)
		}
		return arr.Items[i], normal, nil
	case value.KindObject:
		v, ok := obj.AsObject().Get(idx.AsString())
		if !ok {
			return value.Null(), normal, nil
		}
		return v, normal, nil
	default:
		return value.Value{}, normal, ctx.errf(x.Pos, "E200", "cannot index a %s value", obj.Kind())
	}
}

func (ctx *EvalContext) evalCall(x *ast.CallExpr) (value.Value, Signal, *diag.Diagnostic) {
	args, err := ctx.evalCallArgs(x.Args)
	if err != nil {
		return value.Value{}, normal, err
	}
	return ctx.invokeCallee(x.Callee, args, x.Pos)
}

// evalCallArgs evaluates positional/spread/named args into a flat value
// slice; NamedArg values are appended positionally in encounter order and
// their names are not used, so a named arg fills whatever position it
// occupies in the call.
func (ctx *EvalContext) evalCallArgs(argExprs []ast.Expr) ([]value.Value, *diag.Diagnostic) {
	var args []value.Value
	for _, a := range argExprs {
		switch ae := a.(type) {
		case *ast.SpreadExpr:
			v, _, err := ctx.evalExpr(ae.X)
			if err != nil {
				return nil, err
			}
			if v.Kind() != value.KindArray {
				return nil, ctx.errf(ae.Pos, "E200", "cannot spread a %s value into a call", v.Kind())
			}
			args = append(args, v.AsArray().Items...)
		case *ast.NamedArg:
			v, _, err := ctx.evalExpr(ae.Value)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		default:
			v, _, err := ctx.evalExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return args, nil
}

func (ctx *EvalContext) invokeCallee(callee ast.Expr, args []value.Value, pos diag.Position) (value.Value, Signal, *diag.Diagnostic) {
	if ident, ok := callee.(*ast.Ident); ok {
		bound, _ := ctx.Scope.Lookup(ident.Name)
		if b, ok := lookupBuiltin(ident.Name); ok && bound.Kind() != value.KindFunction {
			if len(args) < b.MinArgs {
				return value.Value{}, normal, ctx.errf(pos, "E300", "'%s' expects at least %d argument(s), got %d", ident.Name, b.MinArgs, len(args))
			}
			v, err := b.Handler(ctx, args, pos)
			return v, normal, err
		}
	}
	calleeV, _, err := ctx.evalExpr(callee)
	if err != nil {
		return value.Value{}, normal, err
	}
	if calleeV.Kind() != value.KindFunction {
		return value.Value{}, normal, ctx.errf(pos, "E200", "cannot call a %s value", calleeV.Kind())
	}
	return ctx.callFunction(calleeV.AsFunction(), args, pos)
}

func (ctx *EvalContext) callFunction(fn *value.Function, args []value.Value, pos diag.Position) (value.Value, Signal, *diag.Diagnostic) {
	ctx.CallDepth++
	defer func() { ctx.CallDepth-- }()
	if ctx.CallDepth > maxCallDepth {
		return value.Value{}, normal, ctx.errf(pos, "E310", "call depth exceeded %d", maxCallDepth)
	}
	callScope := value.NewScope(fn.Closure)
	for i, param := range fn.Params {
		var v value.Value
		if i < len(args) {
			v = args[i]
		} else if param.Default != nil {
			saved := ctx.Scope
			ctx.Scope = callScope
			dv, _, err := ctx.evalExpr(param.Default)
			ctx.Scope = saved
			if err != nil {
				return value.Value{}, normal, err
			}
			v = dv
		} else {
			v = value.Null()
		}
		callScope.Declare(param.Name, v, true)
	}
	saved := ctx.Scope
	ctx.Scope = callScope
	defer func() { ctx.Scope = saved }()

	if fn.Expr != nil {
		v, _, err := ctx.evalExpr(fn.Expr)
		return v, normal, err
	}
	sig, err := ctx.execBlock(fn.Body, callScope)
	if err != nil {
		return value.Value{}, normal, err
	}
	if sig.Kind == SigReturn {
		return sig.Value, normal, nil
	}
	return value.Null(), normal, nil
}
