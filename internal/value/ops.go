package value

import (
	"errors"
	"fmt"
	"math"
)

// maxStringBytes bounds any single string value produced by concatenation;
// exceeding it reports ErrStringCapExceeded instead of allocating.
const maxStringBytes = 1 << 20

// ErrStringCapExceeded is returned by Add when a string concatenation would
// exceed maxStringBytes.
var ErrStringCapExceeded = errors.New("string concatenation exceeds the 1 MB cap")

// Add implements the overloaded `+` operator: string concat if either side
// is a string; pitch+int transposition (clamped into 0..127); dur+dur for
// fractional durations; numeric addition with int→float widening otherwise.
func Add(a, b Value) (Value, error) {
	if a.Kind() == KindString || b.Kind() == KindString {
		s := a.concatString() + b.concatString()
		if len(s) > maxStringBytes {
			return Value{}, ErrStringCapExceeded
		}
		return Str(s), nil
	}
	if a.Kind() == KindPitch && (b.Kind() == KindInt) {
		return PitchVal(a.AsPitch().TransposeClamped(int(b.AsInt()))), nil
	}
	if b.Kind() == KindPitch && (a.Kind() == KindInt) {
		return PitchVal(b.AsPitch().TransposeClamped(int(a.AsInt()))), nil
	}
	if a.Kind() == KindDur && b.Kind() == KindDur {
		d, err := a.AsDuration().Add(b.AsDuration())
		if err != nil {
			return Value{}, err
		}
		return DurVal(d), nil
	}
	return numericBinOp(a, b, "+")
}

func (v Value) concatString() string {
	if v.Kind() == KindString {
		return v.AsString()
	}
	return v.String()
}

func isNumeric(v Value) bool { return v.Kind() == KindInt || v.Kind() == KindFloat }

func numericBinOp(a, b Value, op string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("operator %q requires numeric operands, got %s and %s", op, a.Kind(), b.Kind())
	}
	bothInt := a.Kind() == KindInt && b.Kind() == KindInt
	af, bf := a.Numeric(), b.Numeric()

	switch op {
	case "+":
		if bothInt {
			return Int(a.AsInt() + b.AsInt()), nil
		}
		return Float(af + bf), nil
	case "-":
		if bothInt {
			return Int(a.AsInt() - b.AsInt()), nil
		}
		return Float(af - bf), nil
	case "*":
		if bothInt {
			return Int(a.AsInt() * b.AsInt()), nil
		}
		return Float(af * bf), nil
	case "/":
		if bf == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		if bothInt && a.AsInt()%b.AsInt() == 0 {
			return Int(a.AsInt() / b.AsInt()), nil
		}
		return Float(af / bf), nil
	case "%":
		if bothInt {
			if b.AsInt() == 0 {
				return Value{}, fmt.Errorf("division by zero")
			}
			return Int(a.AsInt() % b.AsInt()), nil
		}
		if bf == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Float(math.Mod(af, bf)), nil
	default:
		return Value{}, fmt.Errorf("unknown numeric operator %q", op)
	}
}

func Sub(a, b Value) (Value, error) { return numericBinOp(a, b, "-") }
func Mul(a, b Value) (Value, error) { return numericBinOp(a, b, "*") }
func Div(a, b Value) (Value, error) { return numericBinOp(a, b, "/") }
func Mod(a, b Value) (Value, error) { return numericBinOp(a, b, "%") }

// Compare implements < <= > >= for numeric operands only.
func Compare(a, b Value, op string) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, fmt.Errorf("operator %q requires numeric operands, got %s and %s", op, a.Kind(), b.Kind())
	}
	af, bf := a.Numeric(), b.Numeric()
	var result bool
	switch op {
	case "<":
		result = af < bf
	case "<=":
		result = af <= bf
	case ">":
		result = af > bf
	case ">=":
		result = af >= bf
	default:
		return Value{}, fmt.Errorf("unknown comparison operator %q", op)
	}
	return Bool(result), nil
}

// Negate implements unary `-`.
func Negate(a Value) (Value, error) {
	switch a.Kind() {
	case KindInt:
		return Int(-a.AsInt()), nil
	case KindFloat:
		return Float(-a.AsFloat()), nil
	default:
		return Value{}, fmt.Errorf("unary '-' requires a numeric operand, got %s", a.Kind())
	}
}

// Not implements unary `!`.
func Not(a Value) Value { return Bool(!a.IsTruthy()) }
