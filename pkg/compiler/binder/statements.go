package binder

import (
	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// bindBlock binds a block in a fresh local scope.
func (b *binder) bindBlock(bs *ast.BlockStatement) *program.Block {
	block := &program.Block{Range: bs.Range}
	b.pushScope()
	for _, s := range bs.Statements {
		if st := b.bindStatement(s); st != nil {
			block.Stmts = append(block.Stmts, st)
		}
	}
	b.popScope()
	return block
}

func (b *binder) bindStatement(s ast.Statement) program.Stmt {
	switch n := s.(type) {
	case *ast.Declaration:
		return b.bindDeclaration(n)
	case *ast.AssignStatement:
		return b.bindAssign(n)
	case *ast.ExpressionStatement:
		call, _ := b.bindCall(n.Call.Function, n.Call.Arguments, n.Call.Range, true)
		if call == nil {
			return nil
		}
		return &program.CallStmt{Call: call, Range: n.Range}
	case *ast.BlockStatement:
		return b.bindBlock(n)
	case *ast.IfStatement:
		return b.bindIf(n)
	case *ast.SelectStatement:
		return b.bindSelect(n)
	case *ast.WhileStatement:
		cond := b.bindCondition(n.Condition)
		b.loopDepth++
		body := b.bindBlock(n.Body)
		b.loopDepth--
		if cond == nil {
			return nil
		}
		return &program.While{Cond: cond, Body: body, Range: n.Range}
	case *ast.ForStatement:
		return b.bindFor(n)
	case *ast.BreakStatement:
		if b.loopDepth == 0 {
			b.errorf(n.Pos(), "break outside of a loop")
			return nil
		}
		return &program.Break{Range: n.Range}
	case *ast.ContinueStatement:
		if b.loopDepth == 0 {
			b.errorf(n.Pos(), "continue outside of a loop")
			return nil
		}
		return &program.Continue{Range: n.Range}
	case *ast.WaitStatement:
		fn, ok := b.reg.Function("wait")
		if !ok {
			b.errorf(n.Pos(), "wait is not available")
			return nil
		}
		call, _ := b.bindBridgeCall(fn, []ast.Expression{n.Duration}, n.Range, true)
		if call == nil {
			return nil
		}
		return &program.CallStmt{Call: call, Range: n.Range}
	case *ast.SyncStatement:
		return b.bindSync(n)
	case *ast.CallStatement:
		return b.bindCallFunction(n)
	}
	b.errorf(s.Pos(), "unexpected statement %s", s.String())
	return nil
}

func (b *binder) bindAssign(n *ast.AssignStatement) program.Stmt {
	sym := b.resolve(n.Target)
	if sym == nil {
		return nil
	}
	if sym.ReadOnly {
		if sym.Storage == program.StorageBuiltin || sym.Builtin != nil {
			b.errorf(n.Target.Pos(), "built-in variable %s is read-only", sym.Name)
		} else {
			b.errorf(n.Target.Pos(), "cannot assign to const %s", sym.Name)
		}
		return nil
	}

	var idx program.Expr
	target := sym.Type
	if n.Index != nil {
		if !sym.Type.IsArray() {
			b.errorf(n.Target.Pos(), "%s is not an array", sym.Name)
			return nil
		}
		if idx = b.bindArrayIndex(sym, n.Index); idx == nil {
			return nil
		}
		target = sym.Type.Elem()
	} else if sym.Type.IsArray() {
		b.errorf(n.Target.Pos(), "cannot assign to a whole array %s", sym.Name)
		return nil
	}

	v, u := b.bindExpr(n.Value)
	if v == nil {
		return nil
	}
	if u != sym.Unit {
		b.errorf(n.Value.Pos(), "cannot assign %s value to %s, which is %s", unitName(u), sym.Name, unitName(sym.Unit))
		return nil
	}
	errCount := len(b.errs)
	v = b.coerce(v, target, sym.Name)
	if len(b.errs) > errCount {
		return nil
	}
	return &program.Assign{Sym: sym, Index: idx, Value: v, Range: n.Range}
}

// bindCondition binds an if or while condition, which must be a unitless int.
func (b *binder) bindCondition(x ast.Expression) program.Expr {
	e, u := b.bindExpr(x)
	if e == nil {
		return nil
	}
	if e.Type() != value.TypeInt {
		b.errorf(x.Pos(), "condition must be int, got %s", e.Type())
		return nil
	}
	if u != value.UnitNone {
		b.errorf(x.Pos(), "condition must be unitless, got %s", unitName(u))
		return nil
	}
	return e
}

func (b *binder) bindIf(n *ast.IfStatement) program.Stmt {
	cond := b.bindCondition(n.Condition)
	then := b.bindBlock(n.Consequence)
	var alt program.Stmt
	switch a := n.Alternative.(type) {
	case nil:
	case *ast.BlockStatement:
		alt = b.bindBlock(a)
	case *ast.IfStatement:
		alt = b.bindIf(a)
	default:
		alt = b.bindStatement(a)
	}
	if cond == nil {
		return nil
	}
	return &program.If{Cond: cond, Then: then, Else: alt, Range: n.Range}
}

func (b *binder) bindSelect(n *ast.SelectStatement) program.Stmt {
	subject, su := b.bindExpr(n.Subject)
	if subject != nil && subject.Type() != value.TypeInt {
		b.errorf(n.Subject.Pos(), "select subject must be int, got %s", subject.Type())
		subject = nil
	}

	sel := &program.Select{Subject: subject, Range: n.Range}
	for _, c := range n.Cases {
		low, lowOK := b.caseLabel(c.Low, su, subject != nil)
		high, highOK := low, lowOK
		if c.High != nil {
			high, highOK = b.caseLabel(c.High, su, subject != nil)
		}
		if lowOK && highOK && low > high {
			b.errorf(c.Pos(), "case range %d to %d is empty", low, high)
		}
		body := b.bindBlock(c.Body)
		sel.Cases = append(sel.Cases, program.Case{Low: low, High: high, Body: body})
	}
	if n.Default != nil {
		sel.Default = b.bindBlock(n.Default)
	}
	if subject == nil {
		return nil
	}
	return sel
}

func (b *binder) caseLabel(x ast.Expression, subjectUnit value.Unit, checkUnit bool) (int64, bool) {
	v, u, ok := b.constIntUnit(x, "case label")
	if !ok {
		return 0, false
	}
	if checkUnit && u != subjectUnit {
		b.errorf(x.Pos(), "case label is %s but the select subject is %s", unitName(u), unitName(subjectUnit))
		return 0, false
	}
	return v, true
}

func (b *binder) bindFor(n *ast.ForStatement) program.Stmt {
	counter := b.resolve(n.Counter)
	ok := counter != nil
	if ok {
		switch {
		case counter.Type != value.TypeInt:
			b.errorf(n.Counter.Pos(), "loop counter %s must be an int variable", counter.Name)
			ok = false
		case counter.ReadOnly:
			b.errorf(n.Counter.Pos(), "loop counter %s is read-only", counter.Name)
			ok = false
		}
	}
	from := b.bindBound(n.From, counter)
	to := b.bindBound(n.To, counter)

	b.loopDepth++
	body := b.bindBlock(n.Body)
	b.loopDepth--
	if !ok || from == nil || to == nil {
		return nil
	}
	return &program.For{Counter: counter, From: from, To: to, Body: body, Range: n.Range}
}

func (b *binder) bindBound(x ast.Expression, counter *program.Symbol) program.Expr {
	e, u := b.bindExpr(x)
	if e == nil {
		return nil
	}
	if e.Type() != value.TypeInt {
		b.errorf(x.Pos(), "loop bound must be int, got %s", e.Type())
		return nil
	}
	if counter != nil && u != counter.Unit {
		b.errorf(x.Pos(), "loop bound is %s but %s is %s", unitName(u), counter.Name, unitName(counter.Unit))
		return nil
	}
	return e
}

func (b *binder) bindSync(n *ast.SyncStatement) program.Stmt {
	for _, held := range b.syncs {
		if held == n.Name {
			b.errorf(n.Pos(), "sync %s is already held by an enclosing sync block", n.Name)
			return nil
		}
	}
	lock := b.lockIndex(n.Name)
	b.syncs = append(b.syncs, n.Name)
	body := b.bindBlock(n.Body)
	b.syncs = b.syncs[:len(b.syncs)-1]
	return &program.Sync{Lock: lock, Body: body, Range: n.Range}
}

func (b *binder) bindCallFunction(n *ast.CallStatement) program.Stmt {
	name := n.Function.Value
	fn, ok := b.functions[name]
	if !ok {
		if _, builtin := b.reg.Function(name); builtin {
			b.errorf(n.Function.Pos(), "%s is a built-in function; call it as %s(...)", name, name)
		} else {
			b.errorf(n.Function.Pos(), "unknown function %s", name)
		}
		return nil
	}
	b.noteCall(name)
	return &program.CallFunction{Fn: fn, Range: n.Range}
}
