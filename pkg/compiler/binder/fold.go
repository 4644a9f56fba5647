package binder

import (
	"errors"
	"strings"

	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

var errNotConstant = errors.New("not a constant expression")

// fold evaluates e if it only depends on constants.
func fold(e program.Expr) (value.Value, error) {
	switch n := e.(type) {
	case *program.Const:
		return n.Val, nil
	case *program.Unary:
		x, err := fold(n.X)
		if err != nil {
			return value.Value{}, err
		}
		return program.EvalUnary(n.Op, x)
	case *program.Binary:
		l, err := fold(n.L)
		if err != nil {
			return value.Value{}, err
		}
		r, err := fold(n.R)
		if err != nil {
			return value.Value{}, err
		}
		return program.EvalBinary(n.Op, l, r)
	case *program.ToReal:
		x, err := fold(n.X)
		if err != nil {
			return value.Value{}, err
		}
		return value.Real(float64(x.Int)), nil
	case *program.Concat:
		var sb strings.Builder
		for _, p := range n.Parts {
			v, err := fold(p)
			if err != nil {
				return value.Value{}, err
			}
			sb.WriteString(v.Format())
		}
		return value.String(sb.String()), nil
	}
	return value.Value{}, errNotConstant
}

// simplify replaces e by a Const when it folds without error. Expressions
// that would fault, such as 5 / 0, are left for the VM.
func simplify(e program.Expr) program.Expr {
	if _, ok := e.(*program.Const); ok {
		return e
	}
	v, err := fold(e)
	if err != nil {
		return e
	}
	return &program.Const{Val: v, Range: e.Pos()}
}

func (b *binder) foldError(pos token.Pos, name string, err error) {
	if errors.Is(err, program.ErrDivisionByZero) {
		b.errorf(pos, "division by zero in initializer of %s", name)
		return
	}
	b.errorf(pos, "initializer of %s must be a constant expression", name)
}

// constInt binds and folds an int constant such as an array size or case label.
func (b *binder) constInt(x ast.Expression, what string) (int64, bool) {
	n, _, ok := b.constIntUnit(x, what)
	return n, ok
}

func (b *binder) constIntUnit(x ast.Expression, what string) (int64, value.Unit, bool) {
	e, u := b.bindExpr(x)
	if e == nil {
		return 0, u, false
	}
	if e.Type() != value.TypeInt {
		b.errorf(x.Pos(), "%s must be int, got %s", what, e.Type())
		return 0, u, false
	}
	v, err := fold(e)
	if err != nil {
		if errors.Is(err, program.ErrDivisionByZero) {
			b.errorf(x.Pos(), "division by zero in %s", what)
		} else {
			b.errorf(x.Pos(), "%s must be a constant expression", what)
		}
		return 0, u, false
	}
	return v.Int, u, true
}

// coerce converts e for storage in a variable of type to. int to real is the
// only implicit conversion.
func (b *binder) coerce(e program.Expr, to value.Type, name string) program.Expr {
	from := e.Type()
	if from == to {
		return e
	}
	if from == value.TypeInt && to == value.TypeReal {
		return simplify(&program.ToReal{X: e, Range: e.Pos()})
	}
	b.errorf(e.Pos(), "cannot use %s value as %s (%s)", from, to, name)
	return e
}

func unitName(u value.Unit) string {
	if u == value.UnitNone {
		return "unitless"
	}
	return u.String() + " (" + u.CanonicalName() + ")"
}
