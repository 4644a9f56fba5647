package binder

import (
	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// bindDeclaration registers the declared symbol and returns the statement
// that initializes it at run time, or nil when there is nothing to run.
func (b *binder) bindDeclaration(d *ast.Declaration) program.Stmt {
	name := d.Name.Name
	typ := sigilType(name)
	pos := d.Name.Pos()
	global := b.kind == scopeTop || b.kind == scopeInit
	errCount := len(b.errs)

	if _, ok := b.reg.Variable(name); ok {
		b.errorf(pos, "%s is a built-in variable and cannot be declared", name)
		return nil
	}
	if global {
		if _, ok := b.globals[name]; ok {
			b.errorf(pos, "%s is already declared", name)
			return nil
		}
	} else {
		if _, ok := b.globals[name]; ok {
			b.errorf(pos, "local variable %s has the same name as a global variable", name)
			return nil
		}
		if _, ok := b.visibleLocal(name); ok {
			b.errorf(pos, "%s is already declared", name)
			return nil
		}
	}

	isConst := d.Has(ast.QualConst)
	isPoly := d.Has(ast.QualPolyphonic)
	isPatch := d.Has(ast.QualPatch)
	switch {
	case isConst && (isPoly || isPatch):
		b.errorf(d.Pos(), "const cannot be combined with polyphonic or patch")
	case isPoly && isPatch:
		b.errorf(d.Pos(), "polyphonic and patch cannot be combined")
	case (isPoly || isPatch) && !global:
		b.errorf(d.Pos(), "polyphonic and patch variables must be declared at global scope")
	}

	size := 0
	unit := value.UnitNone
	var init program.Expr
	var list []program.Expr

	if typ.IsArray() {
		if d.Size != nil {
			if n, ok := b.constInt(d.Size, "array size"); ok {
				if n <= 0 || n > MaxArraySize {
					b.errorf(d.Size.Pos(), "array size %d out of range 1..%d", n, MaxArraySize)
				}
				size = int(n)
			}
		}
		if d.Init != nil {
			b.errorf(d.Init.Pos(), "array initializer must be a parenthesized list")
		}
		if d.InitList != nil {
			list, unit = b.bindInitList(d, typ.Elem())
			if d.Size == nil {
				size = len(list)
			} else if len(d.InitList) > size && size > 0 {
				b.errorf(d.InitList[size].Pos(), "too many initializers for %s[%d]", name, size)
			}
		}
		if d.Size == nil && len(d.InitList) == 0 {
			b.errorf(pos, "array %s needs a size or an initializer list", name)
		}
	} else {
		if d.Size != nil {
			b.errorf(d.Size.Pos(), "scalar variable %s cannot have a size", name)
		}
		if d.Init != nil {
			var e program.Expr
			e, unit = b.bindExpr(d.Init)
			if e != nil {
				init = b.coerce(e, typ, name)
			}
		}
	}
	if isConst && d.Init == nil && d.InitList == nil {
		b.errorf(d.Pos(), "const %s needs an initializer", name)
	}
	if len(b.errs) > errCount {
		return nil
	}

	sym := &program.Symbol{
		Name:     name,
		Type:     typ,
		Unit:     unit,
		Size:     size,
		ReadOnly: isConst,
		Pos:      pos,
	}

	if isConst && !typ.IsArray() {
		v, err := fold(init)
		if err != nil {
			b.foldError(d.Init.Pos(), name, err)
			return nil
		}
		sym.Storage = program.StorageConst
		sym.Value = v
		if global {
			b.prog.Consts = append(b.prog.Consts, sym)
		}
		b.register(sym, global)
		return nil
	}

	if global || isConst {
		needFold := b.kind == scopeTop || isPoly || isPatch || isConst
		initial, ok := b.initialValue(sym, init, list, needFold, d)
		if !ok {
			return nil
		}
		switch {
		case isPoly:
			sym.Storage = program.StoragePolyphonic
			sym.Slot = len(b.prog.Polyphonic)
			b.prog.Polyphonic = append(b.prog.Polyphonic, sym)
			b.prog.PolyphonicInit = append(b.prog.PolyphonicInit, initial)
		case isPatch:
			sym.Storage = program.StoragePatch
			sym.Slot = len(b.prog.Patch)
			b.prog.Patch = append(b.prog.Patch, sym)
			b.prog.PatchInit = append(b.prog.PatchInit, initial)
		default:
			sym.Storage = program.StorageGlobal
			sym.Slot = len(b.prog.Globals)
			b.prog.Globals = append(b.prog.Globals, sym)
			b.prog.Constants = append(b.prog.Constants, initial)
		}
		b.register(sym, global)
		if b.kind == scopeInit && !needFold {
			return &program.Declare{Sym: sym, Init: init, InitList: list, Range: d.Range}
		}
		return nil
	}

	sym.Storage = program.StorageLocal
	sym.Slot = len(*b.locals)
	*b.locals = append(*b.locals, sym)
	b.register(sym, false)
	return &program.Declare{Sym: sym, Init: init, InitList: list, Range: d.Range}
}

func (b *binder) register(sym *program.Symbol, global bool) {
	if global {
		b.globals[sym.Name] = sym
		return
	}
	b.scopes[len(b.scopes)-1][sym.Name] = sym
}

// bindInitList binds array initializers; every element must share one unit.
func (b *binder) bindInitList(d *ast.Declaration, elem value.Type) ([]program.Expr, value.Unit) {
	list := make([]program.Expr, 0, len(d.InitList))
	unit := value.UnitNone
	for i, x := range d.InitList {
		e, u := b.bindExpr(x)
		if e == nil {
			continue
		}
		if i == 0 {
			unit = u
		} else if u != unit {
			b.errorf(x.Pos(), "array elements must all have the same unit (%s and %s)", unitName(unit), unitName(u))
		}
		list = append(list, b.coerce(e, elem, d.Name.Name))
	}
	return list, unit
}

// initialValue computes the pool value of a global slot. When fold is false
// the slot starts at zero and a Declare statement sets it later.
func (b *binder) initialValue(sym *program.Symbol, init program.Expr, list []program.Expr, needFold bool, d *ast.Declaration) (value.Value, bool) {
	if sym.Type.IsArray() {
		arr := value.NewArray(sym.Type.Elem(), sym.Size)
		if needFold {
			for i, e := range list {
				v, err := fold(e)
				if err != nil {
					b.foldError(e.Pos(), sym.Name, err)
					return value.Value{}, false
				}
				arr.Set(int64(i), v)
			}
		}
		return value.ArrayValue(arr), true
	}
	if init == nil || !needFold {
		return value.Zero(sym.Type), true
	}
	v, err := fold(init)
	if err != nil {
		b.foldError(d.Init.Pos(), sym.Name, err)
		return value.Value{}, false
	}
	return v, true
}
