package vm

import (
	"math"

	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// errCancelled unwinds evaluation when the instance was cancelled during a
// Bridge call.
var errCancelled = &Fault{Kind: "CANCELLED", Message: "instance cancelled"}

// Advance runs the instance until it suspends, completes or faults, or the
// step budget runs out. tick is the current engine tick. The budget is
// shared by every Advance made at the same tick, so an instance resumed
// several times within one cycle cannot run unbounded. Advancing a terminal
// instance, or one that is not yet due, only reports its state.
func (in *Instance) Advance(tick int64) Result {
	switch in.status {
	case StatusCreated:
	case StatusSuspended:
		if in.waiting >= 0 {
			if in.patch.locks[in.waiting].holder != in {
				return in.Result()
			}
		} else if tick < in.resumeTick {
			return in.Result()
		}
	default:
		return in.Result()
	}

	in.tick = tick
	if in.stepTick != tick {
		in.stepTick = tick
		in.steps = 0
	}
	in.status = StatusRunning
	in.run()
	return in.Result()
}

func (in *Instance) run() {
	budget := in.patch.cfg.stepBudget
	for ; in.status == StatusRunning; in.steps++ {
		if in.cancelWant {
			in.cancel()
			return
		}
		if len(in.frames) == 0 {
			in.complete()
			return
		}
		if in.steps >= budget {
			in.fail(newFault(FaultBudgetExceeded, in.currentPos(), "step budget of %d exceeded", budget))
			return
		}

		f := &in.frames[len(in.frames)-1]
		switch f.kind {
		case frameWhile:
			ok, fault := in.cond(f.while.Cond)
			switch {
			case fault != nil:
				in.fail(fault)
			case ok:
				in.pushBlock(f.while.Body)
			default:
				in.popFrame()
			}
		case frameFor:
			in.stepFor(f)
		default:
			if f.pc >= len(f.block.Stmts) {
				in.popFrame()
				continue
			}
			st := f.block.Stmts[f.pc]
			f.pc++
			in.exec(st)
		}
	}
	if in.cancelWant && in.status == StatusSuspended {
		in.cancel()
	}
}

// stepFor advances a for loop: the counter is incremented after every
// iteration and the body runs while it is at most the bound.
func (in *Instance) stepFor(f *frame) {
	dst := in.slot(f.loop.Counter)
	if !f.first {
		*dst = value.Int(dst.Int + 1)
	}
	f.first = false
	if dst.Int <= f.to {
		in.pushBlock(f.loop.Body)
		return
	}
	in.popFrame()
}

func (in *Instance) exec(st program.Stmt) {
	switch s := st.(type) {
	case *program.Block:
		in.pushBlock(s)
	case *program.Declare:
		in.declare(s)
	case *program.Assign:
		in.assign(s)
	case *program.CallStmt:
		in.callStmt(s)
	case *program.If:
		in.execIf(s)
	case *program.Select:
		in.execSelect(s)
	case *program.While:
		in.pushFrame(frame{kind: frameWhile, while: s})
	case *program.For:
		in.execFor(s)
	case *program.Break:
		in.unwindLoop(true)
	case *program.Continue:
		in.unwindLoop(false)
	case *program.Sync:
		in.enterSync(s)
	case *program.CallFunction:
		in.callFunction(s)
	}
}

func (in *Instance) declare(s *program.Declare) {
	sym := s.Sym
	dst := in.slot(sym)
	if sym.Type.IsArray() {
		arr := dst.Arr
		if arr == nil || arr.Elem() != sym.Type.Elem() || arr.Len() != sym.Size {
			arr = value.NewArray(sym.Type.Elem(), sym.Size)
			*dst = value.ArrayValue(arr)
		} else {
			arr.Reset()
		}
		for i, e := range s.InitList {
			v, f := in.eval(e)
			if f != nil {
				in.fail(f)
				return
			}
			arr.Set(int64(i), v)
		}
		return
	}
	if s.Init == nil {
		*dst = value.Zero(sym.Type)
		return
	}
	v, f := in.eval(s.Init)
	if f != nil {
		in.fail(f)
		return
	}
	*dst = v
}

func (in *Instance) assign(s *program.Assign) {
	if s.Index == nil {
		v, f := in.eval(s.Value)
		if f != nil {
			in.fail(f)
			return
		}
		*in.slot(s.Sym) = v
		return
	}

	idx, f := in.eval(s.Index)
	if f != nil {
		in.fail(f)
		return
	}
	v, f := in.eval(s.Value)
	if f != nil {
		in.fail(f)
		return
	}
	arr := in.slot(s.Sym).Arr
	if !arr.Set(idx.Int, v) {
		in.fail(newIndexFault(s.Index.Pos(), s.Sym.Name, idx.Int, arr.Len()))
	}
}

func (in *Instance) callStmt(s *program.CallStmt) {
	_, c, f := in.callBuiltin(s.Call)
	if f != nil {
		in.fail(f)
		return
	}
	if c.Exited() {
		in.complete()
		return
	}
	if ticks, ok := c.Suspended(); ok {
		in.status = StatusSuspended
		in.resumeTick = in.tick + ticks
		if in.tick > 0 && ticks > math.MaxInt64-in.tick {
			// saturate; such an instance only ends by cancellation
			in.resumeTick = math.MaxInt64
		}
	}
}

func (in *Instance) execIf(s *program.If) {
	for {
		ok, f := in.cond(s.Cond)
		if f != nil {
			in.fail(f)
			return
		}
		if ok {
			in.pushBlock(s.Then)
			return
		}
		switch e := s.Else.(type) {
		case nil:
			return
		case *program.If:
			s = e
		case *program.Block:
			in.pushBlock(e)
			return
		default:
			in.exec(e)
			return
		}
	}
}

func (in *Instance) execSelect(s *program.Select) {
	v, f := in.eval(s.Subject)
	if f != nil {
		in.fail(f)
		return
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		if v.Int >= c.Low && v.Int <= c.High {
			in.pushBlock(c.Body)
			return
		}
	}
	if s.Default != nil {
		in.pushBlock(s.Default)
	}
}

func (in *Instance) execFor(s *program.For) {
	from, f := in.eval(s.From)
	if f != nil {
		in.fail(f)
		return
	}
	to, f := in.eval(s.To)
	if f != nil {
		in.fail(f)
		return
	}
	*in.slot(s.Counter) = from
	in.pushFrame(frame{kind: frameFor, loop: s, to: to.Int, first: true})
}

// unwindLoop pops frames up to the innermost loop; break pops the loop too.
func (in *Instance) unwindLoop(brk bool) {
	for len(in.frames) > 0 {
		k := in.frames[len(in.frames)-1].kind
		if k == frameWhile || k == frameFor {
			if brk {
				in.popFrame()
			}
			return
		}
		in.popFrame()
	}
}

func (in *Instance) enterSync(s *program.Sync) {
	l := &in.patch.locks[s.Lock]
	if in.waiting == s.Lock && l.holder == in {
		// handed over by the previous holder
		in.waiting = -1
		in.pushFrame(frame{kind: frameSync, block: s.Body, lock: s.Lock})
		return
	}
	if l.holder == in {
		in.fail(newFault(FaultSyncReentry, s.Range, "sync %s is already held by this instance", l.Name))
		return
	}
	if l.acquire(in) {
		in.pushFrame(frame{kind: frameSync, block: s.Body, lock: s.Lock})
		return
	}
	// run this statement again once the lock is handed over
	in.frames[len(in.frames)-1].pc--
	in.waiting = s.Lock
	in.status = StatusSuspended
}

func (in *Instance) callFunction(s *program.CallFunction) {
	if in.depth >= in.patch.cfg.maxCallDepth {
		in.fail(newFault(FaultRecursionDepthExceeded, s.Range, "call depth exceeds %d calling %s", in.patch.cfg.maxCallDepth, s.Fn.Name))
		return
	}
	top := len(in.locals)
	in.growLocals(top + len(s.Fn.Locals))
	in.pushFrame(frame{kind: frameCall, block: s.Fn.Body, base: in.base, top: top})
	in.base = top
	in.depth++
}

// currentPos is the source position of the statement being executed.
func (in *Instance) currentPos() token.Pos {
	if len(in.frames) == 0 {
		return token.Pos{}
	}
	f := &in.frames[len(in.frames)-1]
	switch f.kind {
	case frameWhile:
		return f.while.Range
	case frameFor:
		return f.loop.Range
	}
	if f.pc > 0 && f.pc <= len(f.block.Stmts) {
		return f.block.Stmts[f.pc-1].Pos()
	}
	return f.block.Range
}
