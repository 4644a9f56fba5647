// Package ast defines the syntax tree produced by the parser. Nodes are
// immutable once parsed and every node carries the source range it covers.
package ast

import (
	"bytes"
	"strings"

	"github.com/zurustar/instrscript/pkg/compiler/token"
)

type Node interface {
	TokenLiteral() string
	String() string
	Pos() token.Pos
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Program is the root node: top-level declarations, event handlers and
// user functions in source order.
type Program struct {
	Declarations []*Declaration
	Handlers     []*EventHandler
	Functions    []*FunctionDecl
	Range        token.Pos
}

func (p *Program) TokenLiteral() string { return "" }
func (p *Program) Pos() token.Pos       { return p.Range }
func (p *Program) String() string {
	var out bytes.Buffer
	for _, d := range p.Declarations {
		out.WriteString(d.String())
		out.WriteString("\n")
	}
	for _, f := range p.Functions {
		out.WriteString(f.String())
		out.WriteString("\n")
	}
	for _, h := range p.Handlers {
		out.WriteString(h.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Handler returns the handler for event, or nil.
func (p *Program) Handler(event string) *EventHandler {
	for _, h := range p.Handlers {
		if h.Event == event {
			return h
		}
	}
	return nil
}

// EventHandler: on note { ... }
type EventHandler struct {
	Token token.Token // token.ON
	Event string
	Body  *BlockStatement
	Range token.Pos
}

func (eh *EventHandler) TokenLiteral() string { return eh.Token.Literal }
func (eh *EventHandler) Pos() token.Pos       { return eh.Range }
func (eh *EventHandler) String() string {
	return "on " + eh.Event + " " + eh.Body.String()
}

// FunctionDecl: function name { ... }
type FunctionDecl struct {
	Token token.Token // token.FUNCTION
	Name  string
	Body  *BlockStatement
	Range token.Pos
}

func (fd *FunctionDecl) TokenLiteral() string { return fd.Token.Literal }
func (fd *FunctionDecl) Pos() token.Pos       { return fd.Range }
func (fd *FunctionDecl) String() string {
	return "function " + fd.Name + " " + fd.Body.String()
}

// Qualifier is a declaration qualifier.
type Qualifier int

const (
	QualConst Qualifier = iota
	QualPolyphonic
	QualPatch
)

func (q Qualifier) String() string {
	switch q {
	case QualConst:
		return "const"
	case QualPolyphonic:
		return "polyphonic"
	case QualPatch:
		return "patch"
	}
	return "?"
}

// Declaration: declare [const|polyphonic|patch] $x[size] = init;
// Array declarations may carry a parenthesized InitList instead of Init.
type Declaration struct {
	Token      token.Token // token.DECLARE
	Qualifiers []Qualifier
	Name       *Variable
	Size       Expression // nil for scalars and size-less arrays
	Init       Expression
	InitList   []Expression
	Range      token.Pos
}

func (d *Declaration) statementNode()       {}
func (d *Declaration) TokenLiteral() string { return d.Token.Literal }
func (d *Declaration) Pos() token.Pos       { return d.Range }
func (d *Declaration) String() string {
	var out bytes.Buffer
	out.WriteString("declare ")
	for _, q := range d.Qualifiers {
		out.WriteString(q.String())
		out.WriteString(" ")
	}
	out.WriteString(d.Name.String())
	if d.Size != nil {
		out.WriteString("[" + d.Size.String() + "]")
	}
	if d.Init != nil {
		out.WriteString(" = " + d.Init.String())
	}
	if d.InitList != nil {
		out.WriteString(" = (" + joinExpressions(d.InitList) + ")")
	}
	out.WriteString(";")
	return out.String()
}

// Has reports whether the declaration carries qualifier q.
func (d *Declaration) Has(q Qualifier) bool {
	for _, x := range d.Qualifiers {
		if x == q {
			return true
		}
	}
	return false
}

// AssignStatement: $x = ...; or %a[i] = ...;
type AssignStatement struct {
	Token  token.Token // token.ASSIGN
	Target *Variable
	Index  Expression // nil for scalar assignment
	Value  Expression
	Range  token.Pos
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) TokenLiteral() string { return as.Token.Literal }
func (as *AssignStatement) Pos() token.Pos       { return as.Range }
func (as *AssignStatement) String() string {
	var out bytes.Buffer
	out.WriteString(as.Target.String())
	if as.Index != nil {
		out.WriteString("[" + as.Index.String() + "]")
	}
	out.WriteString(" = ")
	out.WriteString(as.Value.String())
	out.WriteString(";")
	return out.String()
}

// ExpressionStatement is a function call evaluated for its effect.
type ExpressionStatement struct {
	Token token.Token
	Call  *CallExpression
	Range token.Pos
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) Pos() token.Pos       { return es.Range }
func (es *ExpressionStatement) String() string       { return es.Call.String() + ";" }

// BlockStatement: { ... }
type BlockStatement struct {
	Token      token.Token // '{'
	Statements []Statement
	Range      token.Pos
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) Pos() token.Pos       { return bs.Range }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// IfStatement. Alternative is nil, a *BlockStatement or an *IfStatement (else if).
type IfStatement struct {
	Token       token.Token // token.IF
	Condition   Expression
	Consequence *BlockStatement
	Alternative Statement
	Range       token.Pos
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) Pos() token.Pos       { return is.Range }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (" + is.Condition.String() + ") ")
	out.WriteString(is.Consequence.String())
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

// CaseBranch: case low [to high] { ... }
type CaseBranch struct {
	Token token.Token // token.CASE
	Low   Expression
	High  Expression // nil for a single value
	Body  *BlockStatement
	Range token.Pos
}

func (cb *CaseBranch) TokenLiteral() string { return cb.Token.Literal }
func (cb *CaseBranch) Pos() token.Pos       { return cb.Range }
func (cb *CaseBranch) String() string {
	s := "case " + cb.Low.String()
	if cb.High != nil {
		s += " to " + cb.High.String()
	}
	return s + " " + cb.Body.String()
}

// SelectStatement: select (expr) { case ... default ... }
type SelectStatement struct {
	Token   token.Token // token.SELECT
	Subject Expression
	Cases   []*CaseBranch
	Default *BlockStatement
	Range   token.Pos
}

func (ss *SelectStatement) statementNode()       {}
func (ss *SelectStatement) TokenLiteral() string { return ss.Token.Literal }
func (ss *SelectStatement) Pos() token.Pos       { return ss.Range }
func (ss *SelectStatement) String() string {
	var out bytes.Buffer
	out.WriteString("select (" + ss.Subject.String() + ") { ")
	for _, c := range ss.Cases {
		out.WriteString(c.String())
		out.WriteString(" ")
	}
	if ss.Default != nil {
		out.WriteString("default " + ss.Default.String() + " ")
	}
	out.WriteString("}")
	return out.String()
}

// WhileStatement
type WhileStatement struct {
	Token     token.Token // token.WHILE
	Condition Expression
	Body      *BlockStatement
	Range     token.Pos
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WhileStatement) Pos() token.Pos       { return ws.Range }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") " + ws.Body.String()
}

// ForStatement: for $i = from to to { ... }, bounds inclusive.
type ForStatement struct {
	Token   token.Token // token.FOR
	Counter *Variable
	From    Expression
	To      Expression
	Body    *BlockStatement
	Range   token.Pos
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForStatement) Pos() token.Pos       { return fs.Range }
func (fs *ForStatement) String() string {
	return "for " + fs.Counter.String() + " = " + fs.From.String() + " to " + fs.To.String() + " " + fs.Body.String()
}

// BreakStatement
type BreakStatement struct {
	Token token.Token
	Range token.Pos
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BreakStatement) Pos() token.Pos       { return bs.Range }
func (bs *BreakStatement) String() string       { return "break;" }

// ContinueStatement
type ContinueStatement struct {
	Token token.Token
	Range token.Pos
}

func (cs *ContinueStatement) statementNode()       {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ContinueStatement) Pos() token.Pos       { return cs.Range }
func (cs *ContinueStatement) String() string       { return "continue;" }

// WaitStatement: wait expr;
type WaitStatement struct {
	Token    token.Token // token.WAIT
	Duration Expression
	Range    token.Pos
}

func (ws *WaitStatement) statementNode()       {}
func (ws *WaitStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WaitStatement) Pos() token.Pos       { return ws.Range }
func (ws *WaitStatement) String() string       { return "wait " + ws.Duration.String() + ";" }

// SyncStatement: sync name { ... }
type SyncStatement struct {
	Token token.Token // token.SYNC
	Name  string
	Body  *BlockStatement
	Range token.Pos
}

func (ss *SyncStatement) statementNode()       {}
func (ss *SyncStatement) TokenLiteral() string { return ss.Token.Literal }
func (ss *SyncStatement) Pos() token.Pos       { return ss.Range }
func (ss *SyncStatement) String() string       { return "sync " + ss.Name + " " + ss.Body.String() }

// CallStatement: call name;
type CallStatement struct {
	Token    token.Token // token.CALL
	Function *Identifier
	Range    token.Pos
}

func (cs *CallStatement) statementNode()       {}
func (cs *CallStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *CallStatement) Pos() token.Pos       { return cs.Range }
func (cs *CallStatement) String() string       { return "call " + cs.Function.String() + ";" }

// Identifier is a plain name (function, event or lock).
type Identifier struct {
	Token token.Token // token.IDENT
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) Pos() token.Pos       { return i.Token.Pos }
func (i *Identifier) String() string       { return i.Value }

// Variable is a sigil-prefixed variable reference such as $x or %table.
type Variable struct {
	Token token.Token // token.VAR
	Name  string      // includes the sigil
}

func (v *Variable) expressionNode()      {}
func (v *Variable) TokenLiteral() string { return v.Token.Literal }
func (v *Variable) Pos() token.Pos       { return v.Token.Pos }
func (v *Variable) String() string       { return v.Name }

// Sigil returns the type sigil of the variable.
func (v *Variable) Sigil() byte { return v.Name[0] }

// IntegerLiteral, optionally with a unit suffix (10ms).
type IntegerLiteral struct {
	Token token.Token
	Value int64
	Unit  string
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) Pos() token.Pos       { return il.Token.Pos }
func (il *IntegerLiteral) String() string       { return il.Token.Literal + il.Unit }

// RealLiteral, optionally with a unit suffix (2.5kHz).
type RealLiteral struct {
	Token token.Token
	Value float64
	Unit  string
}

func (rl *RealLiteral) expressionNode()      {}
func (rl *RealLiteral) TokenLiteral() string { return rl.Token.Literal }
func (rl *RealLiteral) Pos() token.Pos       { return rl.Token.Pos }
func (rl *RealLiteral) String() string       { return rl.Token.Literal + rl.Unit }

// StringLiteral holds the decoded text and interpolation segments.
type StringLiteral struct {
	Token    token.Token
	Segments []token.Segment
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) Pos() token.Pos       { return sl.Token.Pos }
func (sl *StringLiteral) String() string       { return `"` + sl.Token.Literal + `"` }

// PrefixExpression: -x, not x
type PrefixExpression struct {
	Token    token.Token // the prefix operator
	Operator string
	Right    Expression
	Range    token.Pos
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) Pos() token.Pos       { return pe.Range }
func (pe *PrefixExpression) String() string {
	op := pe.Operator
	if op == "not" {
		op += " "
	}
	return "(" + op + pe.Right.String() + ")"
}

// InfixExpression: a + b, a and b, a & b
type InfixExpression struct {
	Token    token.Token // the operator token
	Left     Expression
	Operator string
	Right    Expression
	Range    token.Pos
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) Pos() token.Pos       { return ie.Range }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// IndexExpression: %a[i]
type IndexExpression struct {
	Token token.Token // '['
	Left  *Variable
	Index Expression
	Range token.Pos
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) Pos() token.Pos       { return ie.Range }
func (ie *IndexExpression) String() string {
	return ie.Left.String() + "[" + ie.Index.String() + "]"
}

// CallExpression: abs($x)
type CallExpression struct {
	Token     token.Token // '('
	Function  *Identifier
	Arguments []Expression
	Range     token.Pos
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) Pos() token.Pos       { return ce.Range }
func (ce *CallExpression) String() string {
	return ce.Function.String() + "(" + joinExpressions(ce.Arguments) + ")"
}

func joinExpressions(exprs []Expression) string {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, ", ")
}

// Events lists the event types a handler may be declared for.
var Events = []string{"init", "note", "release", "controller", "rpn", "nrpn"}

// IsEvent reports whether name is a known event type.
func IsEvent(name string) bool {
	for _, e := range Events {
		if e == name {
			return true
		}
	}
	return false
}
