package program

import (
	"errors"
	"fmt"

	"github.com/zurustar/instrscript/pkg/value"
)

// ErrDivisionByZero is returned by EvalBinary for / and mod by zero.
var ErrDivisionByZero = errors.New("division by zero")

// EvalUnary applies a unary operator. The binder guarantees the operand type.
func EvalUnary(op Op, x value.Value) (value.Value, error) {
	switch op {
	case OpNeg:
		if x.Type == value.TypeReal {
			return value.Real(-x.Real), nil
		}
		return value.Int(-x.Int), nil
	case OpNot:
		return value.Bool(x.Int == 0), nil
	}
	return value.Value{}, fmt.Errorf("invalid unary operator %s", op)
}

// EvalBinary applies a binary operator to operands of the same type. and/or
// evaluate both sides here; the VM short-circuits before calling it.
func EvalBinary(op Op, l, r value.Value) (value.Value, error) {
	switch l.Type {
	case value.TypeInt:
		return evalInt(op, l.Int, r.Int)
	case value.TypeReal:
		return evalReal(op, l.Real, r.Real)
	case value.TypeString:
		switch op {
		case OpEq:
			return value.Bool(l.Str == r.Str), nil
		case OpNe:
			return value.Bool(l.Str != r.Str), nil
		}
	}
	return value.Value{}, fmt.Errorf("invalid operator %s for %s", op, l.Type)
}

func evalInt(op Op, a, b int64) (value.Value, error) {
	switch op {
	case OpAdd:
		return value.Int(a + b), nil
	case OpSub:
		return value.Int(a - b), nil
	case OpMul:
		return value.Int(a * b), nil
	case OpDiv:
		if b == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		return value.Int(a / b), nil
	case OpMod:
		if b == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		return value.Int(a % b), nil
	case OpEq:
		return value.Bool(a == b), nil
	case OpNe:
		return value.Bool(a != b), nil
	case OpLt:
		return value.Bool(a < b), nil
	case OpGt:
		return value.Bool(a > b), nil
	case OpLe:
		return value.Bool(a <= b), nil
	case OpGe:
		return value.Bool(a >= b), nil
	case OpAnd:
		return value.Bool(a != 0 && b != 0), nil
	case OpOr:
		return value.Bool(a != 0 || b != 0), nil
	}
	return value.Value{}, fmt.Errorf("invalid operator %s for int", op)
}

func evalReal(op Op, a, b float64) (value.Value, error) {
	switch op {
	case OpAdd:
		return value.Real(a + b), nil
	case OpSub:
		return value.Real(a - b), nil
	case OpMul:
		return value.Real(a * b), nil
	case OpDiv:
		if b == 0 {
			return value.Value{}, ErrDivisionByZero
		}
		return value.Real(a / b), nil
	case OpEq:
		return value.Bool(a == b), nil
	case OpNe:
		return value.Bool(a != b), nil
	case OpLt:
		return value.Bool(a < b), nil
	case OpGt:
		return value.Bool(a > b), nil
	case OpLe:
		return value.Bool(a <= b), nil
	case OpGe:
		return value.Bool(a >= b), nil
	}
	return value.Value{}, fmt.Errorf("invalid operator %s for real", op)
}
