package vm

import (
	"errors"
	"strings"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// eval evaluates an expression. Expressions never suspend.
func (in *Instance) eval(e program.Expr) (value.Value, *Fault) {
	switch n := e.(type) {
	case *program.Const:
		return n.Val, nil

	case *program.Load:
		if n.Sym.Storage == program.StorageBuiltin {
			return in.builtinVar(n.Sym), nil
		}
		return *in.slot(n.Sym), nil

	case *program.LoadElem:
		idx, f := in.eval(n.Index)
		if f != nil {
			return value.Value{}, f
		}
		arr := in.slot(n.Sym).Arr
		v, ok := arr.Get(idx.Int)
		if !ok {
			return value.Value{}, newIndexFault(n.Index.Pos(), n.Sym.Name, idx.Int, arr.Len())
		}
		return v, nil

	case *program.Unary:
		x, f := in.eval(n.X)
		if f != nil {
			return value.Value{}, f
		}
		v, err := program.EvalUnary(n.Op, x)
		if err != nil {
			return value.Value{}, newFault(FaultInvalidOperation, n.Range, "%v", err)
		}
		return v, nil

	case *program.Binary:
		return in.evalBinary(n)

	case *program.ToReal:
		x, f := in.eval(n.X)
		if f != nil {
			return value.Value{}, f
		}
		return value.Real(float64(x.Int)), nil

	case *program.Concat:
		var sb strings.Builder
		for _, p := range n.Parts {
			v, f := in.eval(p)
			if f != nil {
				return value.Value{}, f
			}
			sb.WriteString(v.Format())
		}
		return value.String(sb.String()), nil

	case *program.CallBuiltin:
		v, _, f := in.callBuiltin(n)
		return v, f
	}
	return value.Value{}, newFault(FaultInvalidOperation, e.Pos(), "unexpected expression %T", e)
}

func (in *Instance) evalBinary(n *program.Binary) (value.Value, *Fault) {
	l, f := in.eval(n.L)
	if f != nil {
		return value.Value{}, f
	}
	switch n.Op {
	case program.OpAnd:
		if !l.Truthy() {
			return value.Int(0), nil
		}
		r, f := in.eval(n.R)
		if f != nil {
			return value.Value{}, f
		}
		return value.Bool(r.Truthy()), nil
	case program.OpOr:
		if l.Truthy() {
			return value.Int(1), nil
		}
		r, f := in.eval(n.R)
		if f != nil {
			return value.Value{}, f
		}
		return value.Bool(r.Truthy()), nil
	}

	r, f := in.eval(n.R)
	if f != nil {
		return value.Value{}, f
	}
	v, err := program.EvalBinary(n.Op, l, r)
	if err != nil {
		if errors.Is(err, program.ErrDivisionByZero) {
			return value.Value{}, newFault(FaultDivisionByZero, n.Range, "%s by zero", n.Op)
		}
		return value.Value{}, newFault(FaultInvalidOperation, n.Range, "%v", err)
	}
	return v, nil
}

// cond evaluates an int condition.
func (in *Instance) cond(e program.Expr) (bool, *Fault) {
	v, f := in.eval(e)
	if f != nil {
		return false, f
	}
	return v.Truthy(), nil
}

// pushCall takes the next call record from the per-instance pool. Nested
// calls in argument lists each get their own record.
func (in *Instance) pushCall() int {
	idx := in.callTop
	in.callTop++
	if idx == len(in.calls) {
		in.calls = append(in.calls, bridge.Call{})
	}
	in.calls[idx].Reset()
	return idx
}

func (in *Instance) fillContext(c *bridge.Call) {
	c.Tick = in.tick
	c.MicrosPerTick = in.patch.cfg.microsPerTick
	c.Callback = int64(in.event)
	c.Trigger = in.trigger
	c.Instance = in.id
	c.Host = in.patch.cfg.host
	c.Log = in.patch.cfg.log
}

func (in *Instance) builtinVar(sym *program.Symbol) value.Value {
	idx := in.pushCall()
	c := &in.calls[idx]
	in.fillContext(c)
	v := sym.Builtin.Get(c)
	in.callTop--
	return v
}

// callBuiltin evaluates the arguments and invokes a Bridge function. The
// returned record stays valid until the next call.
func (in *Instance) callBuiltin(cb *program.CallBuiltin) (value.Value, *bridge.Call, *Fault) {
	idx := in.pushCall()
	for _, a := range cb.Args {
		v, f := in.eval(a)
		if f != nil {
			in.callTop--
			return value.Value{}, nil, f
		}
		// the pool may have grown while evaluating a nested call
		c := &in.calls[idx]
		c.Args = append(c.Args, v)
	}

	c := &in.calls[idx]
	c.Function = cb.Fn
	c.Units = append(c.Units, cb.Units...)
	in.fillContext(c)
	in.callTop--

	fn := cb.Fn
	if fn.Impl == nil || len(c.Args) < fn.MinArgs() || len(c.Args) > len(fn.Params) {
		return value.Value{}, nil, newFault(FaultBridgeCall, cb.Range, "call to %s does not match its definition", fn.Name)
	}
	v, err := fn.Impl(c)
	if err != nil {
		return value.Value{}, nil, newFault(FaultBridgeCall, cb.Range, "%s: %v", fn.Name, err)
	}
	if in.cancelWant {
		return value.Value{}, nil, errCancelled
	}
	if fn.Return != value.TypeVoid && v.Type != fn.Return {
		return value.Value{}, nil, newFault(FaultBridgeCall, cb.Range, "%s returned %s, want %s", fn.Name, v.Type, fn.Return)
	}
	return v, c, nil
}
