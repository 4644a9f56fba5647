package program

import (
	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/value"
)

// Op is a unary or binary operator of the bound tree. Operand types are
// already unified by the binder: both sides of a Binary have the same type.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
	OpNeg
	OpNot
)

var opNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "mod",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
	OpAnd: "and", OpOr: "or", OpNeg: "-", OpNot: "not",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?"
}

// Comparison reports whether o yields an int truth value from two operands.
func (o Op) Comparison() bool {
	return o >= OpEq && o <= OpGe
}

// Expr is a typed expression. Evaluating an Expr never suspends.
type Expr interface {
	Type() value.Type
	Pos() token.Pos
	exprNode()
}

// Const is a folded constant.
type Const struct {
	Val   value.Value
	Range token.Pos
}

// Load reads a variable. For arrays it yields the whole array.
type Load struct {
	Sym   *Symbol
	Range token.Pos
}

// LoadElem reads one array element.
type LoadElem struct {
	Sym   *Symbol
	Index Expr
	Range token.Pos
}

// Unary applies OpNeg or OpNot.
type Unary struct {
	Op    Op
	X     Expr
	T     value.Type
	Range token.Pos
}

// Binary applies an arithmetic, comparison or logical operator. and/or
// short-circuit.
type Binary struct {
	Op    Op
	L, R  Expr
	T     value.Type
	Range token.Pos
}

// ToReal converts an int operand to real.
type ToReal struct {
	X     Expr
	Range token.Pos
}

// Concat renders every part and joins them into a string.
type Concat struct {
	Parts []Expr
	Range token.Pos
}

// CallBuiltin invokes a Bridge function. Units holds the static unit of each
// argument after optional parameters were filled in.
type CallBuiltin struct {
	Fn    *bridge.Function
	Args  []Expr
	Units []value.Unit
	Range token.Pos
}

func (e *Const) Type() value.Type       { return e.Val.Type }
func (e *Load) Type() value.Type        { return e.Sym.Type }
func (e *LoadElem) Type() value.Type    { return e.Sym.Type.Elem() }
func (e *Unary) Type() value.Type       { return e.T }
func (e *Binary) Type() value.Type      { return e.T }
func (e *ToReal) Type() value.Type      { return value.TypeReal }
func (e *Concat) Type() value.Type      { return value.TypeString }
func (e *CallBuiltin) Type() value.Type { return e.Fn.Return }

func (e *Const) Pos() token.Pos       { return e.Range }
func (e *Load) Pos() token.Pos        { return e.Range }
func (e *LoadElem) Pos() token.Pos    { return e.Range }
func (e *Unary) Pos() token.Pos       { return e.Range }
func (e *Binary) Pos() token.Pos      { return e.Range }
func (e *ToReal) Pos() token.Pos      { return e.Range }
func (e *Concat) Pos() token.Pos      { return e.Range }
func (e *CallBuiltin) Pos() token.Pos { return e.Range }

func (*Const) exprNode()       {}
func (*Load) exprNode()        {}
func (*LoadElem) exprNode()    {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*ToReal) exprNode()      {}
func (*Concat) exprNode()      {}
func (*CallBuiltin) exprNode() {}

// Stmt is a bound statement.
type Stmt interface {
	Pos() token.Pos
	stmtNode()
}

// Block is a statement list.
type Block struct {
	Stmts []Stmt
	Range token.Pos
}

// Declare initializes a variable when control reaches its declaration:
// locals, and globals declared inside the init handler. Arrays are reset and
// filled from InitList; scalars get Init or their zero value.
type Declare struct {
	Sym      *Symbol
	Init     Expr
	InitList []Expr
	Range    token.Pos
}

// Assign stores Value into a variable or, with Index, an array element.
type Assign struct {
	Sym   *Symbol
	Index Expr
	Value Expr
	Range token.Pos
}

// CallStmt evaluates a Bridge call for its effect. This is the only place a
// MaySuspend function can appear.
type CallStmt struct {
	Call  *CallBuiltin
	Range token.Pos
}

// If runs Then when Cond is non-zero. Else is nil, a *Block or an *If.
type If struct {
	Cond  Expr
	Then  *Block
	Else  Stmt
	Range token.Pos
}

// Case matches Low..High inclusive.
type Case struct {
	Low, High int64
	Body      *Block
}

// Select runs the first case whose range contains Subject, or Default.
type Select struct {
	Subject Expr
	Cases   []Case
	Default *Block
	Range   token.Pos
}

// While loops while Cond is non-zero.
type While struct {
	Cond  Expr
	Body  *Block
	Range token.Pos
}

// For assigns From to Counter and runs Body while Counter <= To, adding one
// after each iteration. To is evaluated once.
type For struct {
	Counter *Symbol
	From    Expr
	To      Expr
	Body    *Block
	Range   token.Pos
}

type Break struct{ Range token.Pos }

type Continue struct{ Range token.Pos }

// Sync runs Body holding the lock Program.Locks[Lock].
type Sync struct {
	Lock  int
	Body  *Block
	Range token.Pos
}

// CallFunction runs a user function.
type CallFunction struct {
	Fn    *Function
	Range token.Pos
}

func (s *Block) Pos() token.Pos        { return s.Range }
func (s *Declare) Pos() token.Pos      { return s.Range }
func (s *Assign) Pos() token.Pos       { return s.Range }
func (s *CallStmt) Pos() token.Pos     { return s.Range }
func (s *If) Pos() token.Pos           { return s.Range }
func (s *Select) Pos() token.Pos       { return s.Range }
func (s *While) Pos() token.Pos        { return s.Range }
func (s *For) Pos() token.Pos          { return s.Range }
func (s *Break) Pos() token.Pos        { return s.Range }
func (s *Continue) Pos() token.Pos     { return s.Range }
func (s *Sync) Pos() token.Pos         { return s.Range }
func (s *CallFunction) Pos() token.Pos { return s.Range }

func (*Block) stmtNode()        {}
func (*Declare) stmtNode()      {}
func (*Assign) stmtNode()       {}
func (*CallStmt) stmtNode()     {}
func (*If) stmtNode()           {}
func (*Select) stmtNode()       {}
func (*While) stmtNode()        {}
func (*For) stmtNode()          {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*Sync) stmtNode()         {}
func (*CallFunction) stmtNode() {}
