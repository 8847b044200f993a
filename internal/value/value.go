// Package value implements the tagged runtime value sum type and lexical
// scope model shared by the parser and evaluator.
package value

import (
	"fmt"

	"github.com/leafo/songc/internal/ast"
	"github.com/leafo/songc/internal/music"
)

type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindNull
	KindPitch
	KindDur
	KindTime
	KindArray
	KindObject
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindPitch:
		return "pitch"
	case KindDur:
		return "dur"
	case KindTime:
		return "time"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Value is the tagged sum type for every DSL runtime value. Container
// variants (array/object/function) hold a pointer to shared state — copying
// a Value copies the tag and pointer, not the contents.
type Value struct {
	kind Kind

	i   int64
	f   float64
	s   string
	b   bool
	pit music.Pitch
	dur music.Duration
	tim music.Position

	arr *Array
	obj *Object
	fn  *Function
}

func (v Value) Kind() Kind { return v.kind }

func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func Str(s string) Value       { return Value{kind: KindString, s: s} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Null() Value              { return Value{kind: KindNull} }
func PitchVal(p music.Pitch) Value   { return Value{kind: KindPitch, pit: p} }
func DurVal(d music.Duration) Value  { return Value{kind: KindDur, dur: d} }
func TimeVal(t music.Position) Value { return Value{kind: KindTime, tim: t} }
func ArrayVal(a *Array) Value  { return Value{kind: KindArray, arr: a} }
func ObjectVal(o *Object) Value { return Value{kind: KindObject, obj: o} }
func FunctionVal(fn *Function) Value { return Value{kind: KindFunction, fn: fn} }

func (v Value) AsInt() int64           { return v.i }
func (v Value) AsFloat() float64       { return v.f }
func (v Value) AsString() string       { return v.s }
func (v Value) AsBool() bool           { return v.b }
func (v Value) AsPitch() music.Pitch   { return v.pit }
func (v Value) AsDuration() music.Duration { return v.dur }
func (v Value) AsTime() music.Position { return v.tim }
func (v Value) AsArray() *Array        { return v.arr }
func (v Value) AsObject() *Object      { return v.obj }
func (v Value) AsFunction() *Function  { return v.fn }

func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNull:
		return false
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	default:
		return true
	}
}

// Numeric widens int/float to a float64 for numeric ops; callers must
// have already checked Kind() is KindInt or KindFloat.
func (v Value) Numeric() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Array is a shared, ordered container of values.
type Array struct {
	Items []Value
}

func NewArray(items []Value) *Array { return &Array{Items: items} }

// Object is an insertion-ordered string→Value map.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: map[string]Value{}}
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Keys() []string { return o.keys }

func (o *Object) Len() int { return len(o.keys) }

// Function is a closure: the AST of its parameter list and body, plus the
// scope that was active when it was defined. The closure scope — not the
// caller's scope — is the parent of the scope pushed for each call.
type Function struct {
	Params  []ast.Param
	Body    []ast.Statement
	Expr    ast.Expr // non-nil for expression-bodied arrow functions
	Closure *Scope
	Name    string // empty for anonymous arrow functions
}

// Equal implements scalar/musical structural equality and reference
// equality for arrays/objects/functions.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// int/float cross-kind equality is not value-equal; only same-kind
		// scalars compare equal.
		return false
	}
	switch a.kind {
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBool:
		return a.b == b.b
	case KindNull:
		return true
	case KindPitch:
		return a.pit == b.pit
	case KindDur:
		return a.dur == b.dur
	case KindTime:
		return a.tim == b.tim
	case KindArray:
		return a.arr == b.arr
	case KindObject:
		return a.obj == b.obj
	case KindFunction:
		return false
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNull:
		return "null"
	case KindPitch:
		return v.pit.String()
	case KindDur:
		return "dur"
	case KindTime:
		return fmt.Sprintf("%d:%d.%d", v.tim.Bar, v.tim.Beat, v.tim.Sub)
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "?"
	}
}
