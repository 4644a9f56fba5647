// Package binder resolves names, checks types and units, folds constants and
// lowers the syntax tree into a program.Program.
package binder

import (
	"fmt"
	"sort"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/ast"
	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// MaxArraySize bounds the declared size of an array.
const MaxArraySize = 1 << 16

// BindError is a static semantic error.
type BindError struct {
	Message string
	Pos     token.Pos
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind error at line %d, column %d (offset %d): %s",
		e.Pos.Line, e.Pos.Column, e.Pos.Offset, e.Message)
}

// scopeKind tells what a declaration site means.
type scopeKind int

const (
	scopeTop scopeKind = iota
	scopeInit
	scopeHandler
	scopeFunction
)

type binder struct {
	reg  *bridge.Registry
	prog *program.Program
	errs []*BindError

	globals  map[string]*program.Symbol
	builtins map[string]*program.Symbol
	scopes   []map[string]*program.Symbol

	kind      scopeKind
	locals    *[]*program.Symbol
	loopDepth int
	syncs     []string
	locks     map[string]int

	functions map[string]*program.Function
	curFunc   string

	// call graph and polyphonic references, for the init reachability check
	calls     map[string][]string
	initCalls []string
	polyUses  map[string]token.Pos
}

// Bind binds a parsed program. Errors are reported in source order; the
// returned Program is nil if there are any.
func Bind(tree *ast.Program, reg *bridge.Registry, source string) (*program.Program, []*BindError) {
	b := &binder{
		reg: reg,
		prog: &program.Program{
			Source:    source,
			Functions: make(map[string]*program.Function),
		},
		globals:   make(map[string]*program.Symbol),
		builtins:  make(map[string]*program.Symbol),
		locks:     make(map[string]int),
		functions: make(map[string]*program.Function),
		calls:     make(map[string][]string),
		polyUses:  make(map[string]token.Pos),
	}

	for _, f := range tree.Functions {
		fn := &program.Function{Name: f.Name, Range: f.Range}
		b.functions[f.Name] = fn
		b.prog.Functions[f.Name] = fn
	}

	b.kind = scopeTop
	for _, d := range tree.Declarations {
		b.bindDeclaration(d)
	}

	// init first: its declarations are globals visible to the code after it
	if h := tree.Handler("init"); h != nil {
		b.bindHandler(h)
	}
	for _, f := range tree.Functions {
		b.bindFunction(f)
	}
	for _, h := range tree.Handlers {
		if h.Event != "init" {
			b.bindHandler(h)
		}
	}

	b.checkPolyphonicReachability()

	if len(b.errs) > 0 {
		sort.SliceStable(b.errs, func(i, j int) bool { return b.errs[i].Pos.Offset < b.errs[j].Pos.Offset })
		return nil, b.errs
	}
	return b.prog, nil
}

func (b *binder) errorf(pos token.Pos, format string, args ...any) {
	b.errs = append(b.errs, &BindError{Message: fmt.Sprintf(format, args...), Pos: pos})
}

func (b *binder) bindHandler(h *ast.EventHandler) {
	event, _ := program.ParseEventType(h.Event)
	handler := &program.Handler{Event: event, Range: h.Range}

	b.kind = scopeHandler
	if event == program.EventInit {
		b.kind = scopeInit
	}
	b.curFunc = ""
	b.locals = &handler.Locals
	b.loopDepth = 0
	b.syncs = b.syncs[:0]

	handler.Body = b.bindBlock(h.Body)
	b.prog.Handlers[event] = handler
	b.noteLocals(len(handler.Locals))
}

func (b *binder) bindFunction(f *ast.FunctionDecl) {
	fn := b.functions[f.Name]

	b.kind = scopeFunction
	b.curFunc = f.Name
	b.locals = &fn.Locals
	b.loopDepth = 0
	b.syncs = b.syncs[:0]

	fn.Body = b.bindBlock(f.Body)
	b.curFunc = ""
	b.noteLocals(len(fn.Locals))
}

func (b *binder) noteLocals(n int) {
	if n > b.prog.MaxLocals {
		b.prog.MaxLocals = n
	}
}

func (b *binder) pushScope() {
	b.scopes = append(b.scopes, make(map[string]*program.Symbol))
}

func (b *binder) popScope() {
	b.scopes = b.scopes[:len(b.scopes)-1]
}

// lookup resolves a variable name: innermost local scope first, then
// globals, then built-in variables.
func (b *binder) lookup(name string) (*program.Symbol, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if s, ok := b.scopes[i][name]; ok {
			return s, true
		}
	}
	if s, ok := b.globals[name]; ok {
		return s, true
	}
	if s, ok := b.builtins[name]; ok {
		return s, true
	}
	if v, ok := b.reg.Variable(name); ok {
		s := &program.Symbol{
			Name:     v.Name,
			Type:     v.Type,
			Unit:     v.Unit,
			Storage:  program.StorageBuiltin,
			ReadOnly: true,
			Builtin:  v,
		}
		if v.Const {
			s.Storage = program.StorageConst
			s.Value = v.Value
		}
		b.builtins[name] = s
		return s, true
	}
	return nil, false
}

// visibleLocal reports whether a local of that name is already in scope.
func (b *binder) visibleLocal(name string) (*program.Symbol, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if s, ok := b.scopes[i][name]; ok {
			return s, true
		}
	}
	return nil, false
}

func (b *binder) lockIndex(name string) int {
	if i, ok := b.locks[name]; ok {
		return i
	}
	i := len(b.prog.Locks)
	b.prog.Locks = append(b.prog.Locks, name)
	b.locks[name] = i
	return i
}

// notePolyphonicUse records a polyphonic reference for the init check.
func (b *binder) notePolyphonicUse(s *program.Symbol, pos token.Pos) {
	switch b.kind {
	case scopeInit:
		b.errorf(pos, "polyphonic variable %s cannot be used in the init handler", s.Name)
	case scopeFunction:
		if _, ok := b.polyUses[b.curFunc]; !ok {
			b.polyUses[b.curFunc] = pos
		}
	}
}

func (b *binder) noteCall(callee string) {
	switch b.kind {
	case scopeInit:
		b.initCalls = append(b.initCalls, callee)
	case scopeFunction:
		b.calls[b.curFunc] = append(b.calls[b.curFunc], callee)
	}
}

// checkPolyphonicReachability rejects polyphonic references in functions
// that the init handler can reach through call statements.
func (b *binder) checkPolyphonicReachability() {
	seen := make(map[string]bool)
	queue := append([]string(nil), b.initCalls...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		if pos, ok := b.polyUses[name]; ok {
			b.errorf(pos, "polyphonic variable used in function %s, which is reachable from the init handler", name)
		}
		queue = append(queue, b.calls[name]...)
	}
}

// sigilType maps a variable sigil to its type.
func sigilType(name string) value.Type {
	switch name[0] {
	case '$':
		return value.TypeInt
	case '~':
		return value.TypeReal
	case '@':
		return value.TypeString
	case '%':
		return value.TypeIntArray
	case '?':
		return value.TypeRealArray
	case '!':
		return value.TypeStringArray
	}
	return value.TypeVoid
}
