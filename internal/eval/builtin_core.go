package eval

import (
	"strconv"

	clone "github.com/huandu/go-clone/generic"

	"github.com/leafo/songc/internal/diag"
	"github.com/leafo/songc/internal/value"
)

func init() {
	register("len", 1, builtinLen)
	register("str", 1, builtinStr)
	register("int", 1, builtinInt)
	register("float", 1, builtinFloat)
	register("push", 2, builtinPush)
	register("copy", 1, builtinCopy)
	register("fill", 2, builtinFill)
	register("repeat", 2, builtinRepeat)
	register("range", 2, builtinRange)
	register("abs", 1, builtinAbs)
	register("keys", 1, builtinKeys)
}

func builtinLen(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindArray:
		return value.Int(int64(len(v.AsArray().Items))), nil
	case value.KindString:
		return value.Int(int64(len(v.AsString()))), nil
	case value.KindObject:
		return value.Int(int64(v.AsObject().Len())), nil
	default:
		return value.Value{}, ctx.errf(pos, "E200", "'len' expects an array, string, or object, got %s", v.Kind())
	}
}

func builtinStr(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	return value.Str(argAt(args, 0).String()), nil
}

func builtinInt(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindInt:
		return v, nil
	case value.KindFloat:
		return value.Int(int64(v.AsFloat())), nil
	case value.KindString:
		n, err := strconv.ParseInt(v.AsString(), 10, 64)
		if err != nil {
			return value.Value{}, ctx.errf(pos, "E200", "cannot convert %q to int", v.AsString())
		}
		return value.Int(n), nil
	default:
		return value.Value{}, ctx.errf(pos, "E200", "'int' cannot convert a %s value", v.Kind())
	}
}

func builtinFloat(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindFloat:
		return v, nil
	case value.KindInt:
		return value.Float(float64(v.AsInt())), nil
	case value.KindString:
		f, err := strconv.ParseFloat(v.AsString(), 64)
		if err != nil {
			return value.Value{}, ctx.errf(pos, "E200", "cannot convert %q to float", v.AsString())
		}
		return value.Float(f), nil
	default:
		return value.Value{}, ctx.errf(pos, "E200", "'float' cannot convert a %s value", v.Kind())
	}
}

func builtinPush(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	if v.Kind() != value.KindArray {
		return value.Value{}, ctx.errf(pos, "E200", "'push' expects an array, got %s", v.Kind())
	}
	arr := v.AsArray()
	arr.Items = append(arr.Items, argAt(args, 1))
	return v, nil
}

// builtinCopy produces a shallow clone: a new Array/Object backing store
// whose scalar elements are copied but whose own array/object elements
// still alias the originals.
func builtinCopy(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindArray:
		items := make([]value.Value, len(v.AsArray().Items))
		copy(items, v.AsArray().Items)
		return value.ArrayVal(value.NewArray(items)), nil
	case value.KindObject:
		src := v.AsObject()
		dst := value.NewObject()
		for _, k := range src.Keys() {
			val, _ := src.Get(k)
			dst.Set(k, val)
		}
		return value.ObjectVal(dst), nil
	default:
		return v, nil
	}
}

// deepCloneValue clones v using go-clone/generic, recursively
// duplicating nested arrays/objects rather than just the top container
// (the copy-vs-fill distinction); scalars are returned as-is since they
// carry no shared backing store.
func deepCloneValue(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindArray:
		return value.ArrayVal(clone.Clone(v.AsArray()).(*value.Array))
	case value.KindObject:
		return value.ObjectVal(clone.Clone(v.AsObject()).(*value.Object))
	default:
		return v
	}
}

// builtinFill builds an array of n independent deep clones of a value:
// fill(value, n). Unlike 'repeat', which aliases the same value into every
// slot, 'fill' clones it into each slot so mutating one element never
// affects another.
func builtinFill(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	n := int(argAt(args, 1).AsInt())
	if n < 0 {
		return value.Value{}, ctx.errf(pos, "E200", "'fill' count must be >= 0")
	}
	if n > 1_000_000 {
		return value.Value{}, ctx.errf(pos, "E402", "'fill' exceeds the 1,000,000 element cap")
	}
	items := make([]value.Value, n)
	for i := range items {
		items[i] = deepCloneValue(v)
	}
	return value.ArrayVal(value.NewArray(items)), nil
}

func builtinRepeat(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	n := int(argAt(args, 1).AsInt())
	if n < 0 {
		return value.Value{}, ctx.errf(pos, "E200", "'repeat' count must be >= 0")
	}
	if n > 1_000_000 {
		return value.Value{}, ctx.errf(pos, "E402", "'repeat' exceeds the 1,000,000 element cap")
	}
	items := make([]value.Value, n)
	for i := range items {
		items[i] = v
	}
	return value.ArrayVal(value.NewArray(items)), nil
}

func builtinRange(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	start := argAt(args, 0).AsInt()
	end := argAt(args, 1).AsInt()
	if end < start {
		return value.ArrayVal(value.NewArray(nil)), nil
	}
	if end-start > 1_000_000 {
		return value.Value{}, ctx.errf(pos, "E402", "'range' exceeds the 1,000,000 element cap")
	}
	items := make([]value.Value, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, value.Int(i))
	}
	return value.ArrayVal(value.NewArray(items)), nil
}

func builtinAbs(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	switch v.Kind() {
	case value.KindInt:
		n := v.AsInt()
		if n < 0 {
			n = -n
		}
		return value.Int(n), nil
	case value.KindFloat:
		f := v.AsFloat()
		if f < 0 {
			f = -f
		}
		return value.Float(f), nil
	default:
		return value.Value{}, ctx.errf(pos, "E200", "'abs' expects a numeric value, got %s", v.Kind())
	}
}

func builtinKeys(ctx *EvalContext, args []value.Value, pos diag.Position) (value.Value, *diag.Diagnostic) {
	v := argAt(args, 0)
	if v.Kind() != value.KindObject {
		return value.Value{}, ctx.errf(pos, "E200", "'keys' expects an object, got %s", v.Kind())
	}
	var items []value.Value
	for _, k := range v.AsObject().Keys() {
		items = append(items, value.Str(k))
	}
	return value.ArrayVal(value.NewArray(items)), nil
}
