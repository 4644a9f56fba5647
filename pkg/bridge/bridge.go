// Package bridge is the boundary between running scripts and the host
// engine. A Registry lists the built-in functions and variables a script may
// use; the binder resolves calls against it and the VM invokes entries
// through a pooled Call record.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zurustar/instrscript/pkg/value"
)

// Param describes one parameter of a built-in function.
type Param struct {
	Name string
	Type value.Type

	// Units lists the accepted units besides UnitNone. NoUnit rejects UnitNone.
	Units   []value.Unit
	NoUnit  bool
	AnyUnit bool

	// AnyScalar accepts int, real or string arguments for a string parameter.
	AnyScalar bool
	// AnyArray accepts any array type.
	AnyArray bool

	// Optional parameters may be omitted from the end of the argument list;
	// Default is passed in their place.
	Optional bool
	Default  value.Value
}

// Accepts reports whether an argument of unit u can be passed to p.
func (p Param) Accepts(u value.Unit) bool {
	if p.AnyUnit {
		return true
	}
	if u == value.UnitNone {
		return !p.NoUnit
	}
	for _, a := range p.Units {
		if a == u {
			return true
		}
	}
	return false
}

// Function is a built-in function entry.
type Function struct {
	Name   string
	Params []Param
	Return value.Type

	// ReturnUnit computes the unit of the result from the argument units.
	// nil means the result is unitless.
	ReturnUnit func(args []value.Unit) (value.Unit, error)

	// MaySuspend marks functions that can suspend the calling instance.
	// They may only be called as statements.
	MaySuspend bool

	Impl func(c *Call) (value.Value, error)
}

// MinArgs returns the number of required parameters.
func (f *Function) MinArgs() int {
	n := 0
	for _, p := range f.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Variable is a built-in variable. Constants carry Value and are folded at
// bind time; everything else is read through Get when evaluated.
type Variable struct {
	Name  string // including the sigil
	Type  value.Type
	Unit  value.Unit
	Const bool
	Value value.Value
	Get   func(c *Call) value.Value
}

// Trigger is the event context an instance was created for.
type Trigger struct {
	// Voice is the voice the instance acts for. 0 means no voice.
	Voice    int64
	EventID  int64
	Note     int64
	Velocity int64

	Controller      int64
	ControllerValue int64

	ParamAddress int64
	ParamValue   int64
}

// Call is the record passed to a Function implementation. The VM reuses one
// Call per instance; implementations must not retain it.
type Call struct {
	Function *Function
	Args     []value.Value
	// Units holds the static unit of each argument.
	Units []value.Unit

	Tick          int64
	MicrosPerTick int64
	// Callback is the $NI_CB_TYPE_* value of the running handler.
	Callback int64
	Trigger  Trigger
	Instance uint64

	Host Host
	Log  *slog.Logger

	suspend    bool
	suspendFor int64
	exit       bool
}

// Reset clears the argument list and outputs for reuse.
func (c *Call) Reset() {
	c.Function = nil
	c.Args = c.Args[:0]
	c.Units = c.Units[:0]
	c.suspend = false
	c.suspendFor = 0
	c.exit = false
}

// Suspend asks the VM to suspend the caller for ticks ticks. Only functions
// marked MaySuspend may call it.
func (c *Call) Suspend(ticks int64) {
	c.suspend = true
	c.suspendFor = ticks
}

// Suspended returns the requested suspension, if any.
func (c *Call) Suspended() (int64, bool) {
	return c.suspendFor, c.suspend
}

// Exit asks the VM to complete the caller once the call returns.
func (c *Call) Exit() {
	c.exit = true
}

// Exited reports whether Exit was called.
func (c *Call) Exited() bool {
	return c.exit
}

// MicrosToTicks converts a duration to ticks, rounding up.
func (c *Call) MicrosToTicks(us int64) int64 {
	if c.MicrosPerTick <= 0 || us <= 0 {
		return 0
	}
	ticks := us / c.MicrosPerTick
	if us%c.MicrosPerTick != 0 {
		ticks++
	}
	return ticks
}

var (
	// ErrDuplicate is returned when registering a name twice.
	ErrDuplicate = errors.New("already registered")
	// ErrInvalidArgument is returned by implementations for out-of-domain arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Registry holds the functions and variables visible to scripts. It is
// built by the host and passed explicitly to the compiler; nothing in it is
// process-global.
type Registry struct {
	functions map[string]*Function
	variables map[string]*Variable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]*Function),
		variables: make(map[string]*Variable),
	}
}

// Register adds fn to the registry.
func (r *Registry) Register(fn *Function) error {
	if fn.Name == "" || fn.Impl == nil {
		return fmt.Errorf("function %q: name and implementation are required", fn.Name)
	}
	if _, ok := r.functions[fn.Name]; ok {
		return fmt.Errorf("function %q: %w", fn.Name, ErrDuplicate)
	}
	optional := false
	for _, p := range fn.Params {
		if optional && !p.Optional {
			return fmt.Errorf("function %q: required parameter %q follows an optional one", fn.Name, p.Name)
		}
		optional = p.Optional
	}
	r.functions[fn.Name] = fn
	return nil
}

// RegisterVariable adds v to the registry.
func (r *Registry) RegisterVariable(v *Variable) error {
	if len(v.Name) < 2 {
		return fmt.Errorf("variable %q: invalid name", v.Name)
	}
	if !v.Const && v.Get == nil {
		return fmt.Errorf("variable %q: Get is required for non-constant variables", v.Name)
	}
	if _, ok := r.variables[v.Name]; ok {
		return fmt.Errorf("variable %q: %w", v.Name, ErrDuplicate)
	}
	r.variables[v.Name] = v
	return nil
}

// Function looks up a function by name.
func (r *Registry) Function(name string) (*Function, bool) {
	fn, ok := r.functions[name]
	return fn, ok
}

// Variable looks up a built-in variable by name (with sigil).
func (r *Registry) Variable(name string) (*Variable, bool) {
	v, ok := r.variables[name]
	return v, ok
}

// Functions returns all functions sorted by name.
func (r *Registry) Functions() []*Function {
	out := make([]*Function, 0, len(r.functions))
	for _, fn := range r.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Variables returns all built-in variables sorted by name.
func (r *Registry) Variables() []*Variable {
	out := make([]*Variable, 0, len(r.variables))
	for _, v := range r.variables {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
