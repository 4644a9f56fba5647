package binder

import (
	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

var binaryOps = map[string]program.Op{
	"+":   program.OpAdd,
	"-":   program.OpSub,
	"*":   program.OpMul,
	"/":   program.OpDiv,
	"mod": program.OpMod,
	"==":  program.OpEq,
	"!=":  program.OpNe,
	"<":   program.OpLt,
	">":   program.OpGt,
	"<=":  program.OpLe,
	">=":  program.OpGe,
	"and": program.OpAnd,
	"or":  program.OpOr,
}

// bindExpr binds an expression and returns it with its static unit. A nil
// expression means an error was reported.
func (b *binder) bindExpr(e ast.Expression) (program.Expr, value.Unit) {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		return b.bindIntLiteral(n)
	case *ast.RealLiteral:
		return b.bindRealLiteral(n)
	case *ast.StringLiteral:
		return b.bindStringLiteral(n), value.UnitNone
	case *ast.Variable:
		return b.bindVariable(n)
	case *ast.IndexExpression:
		return b.bindIndex(n)
	case *ast.PrefixExpression:
		return b.bindPrefix(n)
	case *ast.InfixExpression:
		return b.bindInfix(n)
	case *ast.CallExpression:
		c, u := b.bindCall(n.Function, n.Arguments, n.Range, false)
		if c == nil {
			return nil, u
		}
		return c, u
	}
	b.errorf(e.Pos(), "unexpected expression %s", e.String())
	return nil, value.UnitNone
}

func (b *binder) bindIntLiteral(n *ast.IntegerLiteral) (program.Expr, value.Unit) {
	if n.Unit == "" {
		return &program.Const{Val: value.Int(n.Value), Range: n.Pos()}, value.UnitNone
	}
	s, err := value.ParseSuffix(n.Unit)
	if err != nil {
		b.errorf(n.Pos(), "%v", err)
		return nil, value.UnitNone
	}
	v, err := value.NormalizeInt(n.Value, s)
	if err != nil {
		b.errorf(n.Pos(), "%s%s: %v (canonical unit is %s; use a real literal)", n.TokenLiteral(), n.Unit, err, s.Unit.CanonicalName())
		return nil, value.UnitNone
	}
	return &program.Const{Val: value.Int(v), Range: n.Pos()}, s.Unit
}

func (b *binder) bindRealLiteral(n *ast.RealLiteral) (program.Expr, value.Unit) {
	if n.Unit == "" {
		return &program.Const{Val: value.Real(n.Value), Range: n.Pos()}, value.UnitNone
	}
	s, err := value.ParseSuffix(n.Unit)
	if err != nil {
		b.errorf(n.Pos(), "%v", err)
		return nil, value.UnitNone
	}
	return &program.Const{Val: value.Real(value.NormalizeReal(n.Value, s)), Range: n.Pos()}, s.Unit
}

func (b *binder) bindStringLiteral(n *ast.StringLiteral) program.Expr {
	interpolated := false
	for _, seg := range n.Segments {
		if seg.Var != "" {
			interpolated = true
		}
	}
	if !interpolated {
		return &program.Const{Val: value.String(n.Token.Literal), Range: n.Pos()}
	}

	concat := &program.Concat{Range: n.Pos()}
	for _, seg := range n.Segments {
		if seg.Var == "" {
			concat.Parts = append(concat.Parts, &program.Const{Val: value.String(seg.Text), Range: seg.Pos})
			continue
		}
		v := &ast.Variable{Token: token.Token{Type: token.VAR, Literal: seg.Var, Pos: seg.Pos}, Name: seg.Var}
		e, _ := b.bindVariable(v)
		if e == nil {
			return nil
		}
		if !e.Type().IsScalar() {
			b.errorf(seg.Pos, "cannot interpolate %s %s", e.Type(), seg.Var)
			return nil
		}
		concat.Parts = append(concat.Parts, e)
	}
	return simplify(concat)
}

// resolve looks up a variable and reports undeclared names.
func (b *binder) resolve(v *ast.Variable) *program.Symbol {
	sym, ok := b.lookup(v.Name)
	if !ok {
		b.errorf(v.Pos(), "undeclared variable %s", v.Name)
		return nil
	}
	// globals are visible from their declaration onward in source order,
	// even though init and top-level declarations are bound first
	if sym.Builtin == nil && sym.Storage != program.StorageLocal && v.Pos().Offset < sym.Pos.Offset {
		b.errorf(v.Pos(), "%s is used before its declaration at line %d", v.Name, sym.Pos.Line)
		return nil
	}
	if sym.Storage == program.StoragePolyphonic {
		b.notePolyphonicUse(sym, v.Pos())
	}
	return sym
}

func (b *binder) bindVariable(v *ast.Variable) (program.Expr, value.Unit) {
	sym := b.resolve(v)
	if sym == nil {
		return nil, value.UnitNone
	}
	if sym.Storage == program.StorageConst {
		return &program.Const{Val: sym.Value, Range: v.Pos()}, sym.Unit
	}
	return &program.Load{Sym: sym, Range: v.Pos()}, sym.Unit
}

func (b *binder) bindIndex(n *ast.IndexExpression) (program.Expr, value.Unit) {
	sym := b.resolve(n.Left)
	if sym == nil {
		return nil, value.UnitNone
	}
	if !sym.Type.IsArray() {
		b.errorf(n.Left.Pos(), "%s is not an array", sym.Name)
		return nil, value.UnitNone
	}
	idx := b.bindArrayIndex(sym, n.Index)
	if idx == nil {
		return nil, value.UnitNone
	}
	return &program.LoadElem{Sym: sym, Index: idx, Range: n.Pos()}, sym.Unit
}

// bindArrayIndex checks an index expression; constant indices are checked
// against the declared size.
func (b *binder) bindArrayIndex(sym *program.Symbol, x ast.Expression) program.Expr {
	idx, u := b.bindExpr(x)
	if idx == nil {
		return nil
	}
	if idx.Type() != value.TypeInt {
		b.errorf(x.Pos(), "array index must be int, got %s", idx.Type())
		return nil
	}
	if u != value.UnitNone {
		b.errorf(x.Pos(), "array index must be unitless")
		return nil
	}
	if c, ok := idx.(*program.Const); ok && sym.Size > 0 && (c.Val.Int < 0 || c.Val.Int >= int64(sym.Size)) {
		b.errorf(x.Pos(), "index %d out of bounds for %s[%d]", c.Val.Int, sym.Name, sym.Size)
		return nil
	}
	return idx
}

func (b *binder) bindPrefix(n *ast.PrefixExpression) (program.Expr, value.Unit) {
	x, u := b.bindExpr(n.Right)
	if x == nil {
		return nil, u
	}
	switch n.Operator {
	case "-":
		if !x.Type().IsNumeric() {
			b.errorf(n.Pos(), "operator - needs a number, got %s", x.Type())
			return nil, u
		}
		return simplify(&program.Unary{Op: program.OpNeg, X: x, T: x.Type(), Range: n.Pos()}), u
	case "not":
		if x.Type() != value.TypeInt || u != value.UnitNone {
			b.errorf(n.Pos(), "operator not needs a unitless int, got %s", x.Type())
			return nil, u
		}
		return simplify(&program.Unary{Op: program.OpNot, X: x, T: value.TypeInt, Range: n.Pos()}), value.UnitNone
	}
	b.errorf(n.Pos(), "unknown operator %s", n.Operator)
	return nil, u
}

func (b *binder) bindInfix(n *ast.InfixExpression) (program.Expr, value.Unit) {
	l, lu := b.bindExpr(n.Left)
	r, ru := b.bindExpr(n.Right)
	if l == nil || r == nil {
		return nil, value.UnitNone
	}
	lt, rt := l.Type(), r.Type()

	if n.Operator == "&" {
		if !lt.IsScalar() || !rt.IsScalar() {
			b.errorf(n.Pos(), "operator & needs scalar operands, got %s and %s", lt, rt)
			return nil, value.UnitNone
		}
		concat := &program.Concat{Range: n.Pos()}
		for _, side := range []program.Expr{l, r} {
			if c, ok := side.(*program.Concat); ok {
				concat.Parts = append(concat.Parts, c.Parts...)
			} else {
				concat.Parts = append(concat.Parts, side)
			}
		}
		return simplify(concat), value.UnitNone
	}

	op, ok := binaryOps[n.Operator]
	if !ok {
		b.errorf(n.Pos(), "unknown operator %s", n.Operator)
		return nil, value.UnitNone
	}

	switch {
	case op == program.OpAnd || op == program.OpOr:
		if lt != value.TypeInt || rt != value.TypeInt {
			b.errorf(n.Pos(), "operator %s needs int operands, got %s and %s", op, lt, rt)
			return nil, value.UnitNone
		}
		if lu != value.UnitNone || ru != value.UnitNone {
			b.errorf(n.Pos(), "operator %s needs unitless operands", op)
			return nil, value.UnitNone
		}
		return simplify(&program.Binary{Op: op, L: l, R: r, T: value.TypeInt, Range: n.Pos()}), value.UnitNone

	case op.Comparison():
		if lu != ru {
			b.errorf(n.Pos(), "cannot compare %s with %s", unitName(lu), unitName(ru))
			return nil, value.UnitNone
		}
		switch {
		case lt.IsNumeric() && rt.IsNumeric():
			if lt != rt {
				// int is promoted to real in mixed comparisons
				if lt == value.TypeInt {
					l = simplify(&program.ToReal{X: l, Range: l.Pos()})
				} else {
					r = simplify(&program.ToReal{X: r, Range: r.Pos()})
				}
			}
		case lt == value.TypeString && rt == value.TypeString && (op == program.OpEq || op == program.OpNe):
		default:
			b.errorf(n.Pos(), "cannot compare %s with %s using %s", lt, rt, op)
			return nil, value.UnitNone
		}
		return simplify(&program.Binary{Op: op, L: l, R: r, T: value.TypeInt, Range: n.Pos()}), value.UnitNone
	}

	// arithmetic
	if !lt.IsNumeric() || !rt.IsNumeric() {
		if lt == value.TypeString || rt == value.TypeString {
			b.errorf(n.Pos(), "operator %s needs numbers, got %s and %s (use & to concatenate)", op, lt, rt)
		} else {
			b.errorf(n.Pos(), "operator %s needs numbers, got %s and %s", op, lt, rt)
		}
		return nil, value.UnitNone
	}
	if lt != rt {
		b.errorf(n.Pos(), "operator %s needs operands of the same type, got %s and %s (use int_to_real or real_to_int)", op, lt, rt)
		return nil, value.UnitNone
	}
	if op == program.OpMod && lt != value.TypeInt {
		b.errorf(n.Pos(), "operator mod needs int operands, got %s", lt)
		return nil, value.UnitNone
	}

	unit, ok := b.arithmeticUnit(op, lu, ru, n.Pos())
	if !ok {
		return nil, value.UnitNone
	}
	return simplify(&program.Binary{Op: op, L: l, R: r, T: lt, Range: n.Pos()}), unit
}

// arithmeticUnit applies the unit rules: + and - need equal units, * allows
// one unit operand, / by a unitless value keeps the unit and dividing equal
// units cancels it.
func (b *binder) arithmeticUnit(op program.Op, lu, ru value.Unit, pos token.Pos) (value.Unit, bool) {
	none := value.UnitNone
	switch op {
	case program.OpAdd, program.OpSub:
		if lu != ru {
			b.errorf(pos, "operator %s needs equal units, got %s and %s", op, unitName(lu), unitName(ru))
			return none, false
		}
		return lu, true
	case program.OpMul:
		if lu != none && ru != none {
			b.errorf(pos, "operator * allows at most one operand with a unit, got %s and %s", unitName(lu), unitName(ru))
			return none, false
		}
		if lu != none {
			return lu, true
		}
		return ru, true
	case program.OpDiv, program.OpMod:
		switch {
		case ru == none:
			return lu, true
		case lu == ru:
			return none, true
		}
		b.errorf(pos, "operator %s cannot divide %s by %s", op, unitName(lu), unitName(ru))
		return none, false
	}
	return none, true
}

// bindCall binds a Bridge call. Statement-level calls may suspend and may
// discard their result.
func (b *binder) bindCall(fnIdent *ast.Identifier, args []ast.Expression, rng token.Pos, statement bool) (*program.CallBuiltin, value.Unit) {
	name := fnIdent.Value
	fn, ok := b.reg.Function(name)
	if !ok {
		if _, user := b.functions[name]; user {
			b.errorf(fnIdent.Pos(), "%s is a user function; invoke it with call %s;", name, name)
		} else {
			b.errorf(fnIdent.Pos(), "unknown function %s", name)
		}
		return nil, value.UnitNone
	}
	return b.bindBridgeCall(fn, args, rng, statement)
}

func (b *binder) bindBridgeCall(fn *bridge.Function, args []ast.Expression, rng token.Pos, statement bool) (*program.CallBuiltin, value.Unit) {
	if len(args) < fn.MinArgs() || len(args) > len(fn.Params) {
		if fn.MinArgs() == len(fn.Params) {
			b.errorf(rng, "%s takes %d arguments, got %d", fn.Name, len(fn.Params), len(args))
		} else {
			b.errorf(rng, "%s takes %d to %d arguments, got %d", fn.Name, fn.MinArgs(), len(fn.Params), len(args))
		}
		return nil, value.UnitNone
	}
	if !statement {
		if fn.MaySuspend {
			b.errorf(rng, "%s can only be called as a statement", fn.Name)
			return nil, value.UnitNone
		}
		if fn.Return == value.TypeVoid {
			b.errorf(rng, "%s does not return a value", fn.Name)
			return nil, value.UnitNone
		}
	}

	call := &program.CallBuiltin{
		Fn:    fn,
		Args:  make([]program.Expr, len(fn.Params)),
		Units: make([]value.Unit, len(fn.Params)),
		Range: rng,
	}
	failed := false
	for i, p := range fn.Params {
		if i >= len(args) {
			call.Args[i] = &program.Const{Val: p.Default, Range: rng}
			continue
		}
		e, u := b.bindExpr(args[i])
		if e == nil {
			failed = true
			continue
		}
		e, ok := b.bindArgument(fn, i, p, e, u, args[i].Pos())
		if !ok {
			failed = true
			continue
		}
		call.Args[i] = e
		call.Units[i] = u
	}
	if failed {
		return nil, value.UnitNone
	}

	unit := value.UnitNone
	if fn.ReturnUnit != nil {
		u, err := fn.ReturnUnit(call.Units)
		if err != nil {
			b.errorf(rng, "%s: %v", fn.Name, err)
			return nil, value.UnitNone
		}
		unit = u
	}
	return call, unit
}

// bindArgument checks one argument against its parameter and applies the
// implicit conversions: int to real, and scalar to string for AnyScalar.
func (b *binder) bindArgument(fn *bridge.Function, i int, p bridge.Param, e program.Expr, u value.Unit, pos token.Pos) (program.Expr, bool) {
	t := e.Type()
	switch {
	case p.AnyArray:
		if !t.IsArray() {
			b.errorf(pos, "argument %d of %s must be an array, got %s", i+1, fn.Name, t)
			return nil, false
		}
	case p.AnyScalar && p.Type == value.TypeString:
		if !t.IsScalar() {
			b.errorf(pos, "argument %d of %s must be a scalar, got %s", i+1, fn.Name, t)
			return nil, false
		}
		if t != value.TypeString {
			e = simplify(&program.Concat{Parts: []program.Expr{e}, Range: e.Pos()})
		}
	case t == p.Type:
	case t == value.TypeInt && p.Type == value.TypeReal:
		e = simplify(&program.ToReal{X: e, Range: e.Pos()})
	default:
		b.errorf(pos, "argument %d of %s must be %s, got %s", i+1, fn.Name, p.Type, t)
		return nil, false
	}
	if !p.Accepts(u) {
		b.errorf(pos, "argument %d of %s does not accept %s values", i+1, fn.Name, unitName(u))
		return nil, false
	}
	return e, true
}
