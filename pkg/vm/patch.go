package vm

import (
	"github.com/oklog/ulid/v2"

	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// Patch is a loaded Program together with its variable storage: globals,
// per-voice polyphonic frames, patch-persistent cells and the sync locks.
// Every instance created for the patch shares it.
type Patch struct {
	// ID identifies this load of the program in logs and snapshots.
	ID      ulid.ULID
	Program *program.Program

	cfg   config
	store *PatchStore

	globals   []value.Value
	patchVals []*value.Value

	voices     map[int64]*voiceState
	freeVoices []*voiceState

	locks []Lock
	woken []*Instance
}

// voiceState holds the polyphonic variables of one voice. It lives until the
// voice has ended and no instance refers to it.
type voiceState struct {
	vals  []value.Value
	refs  int
	ended bool
}

// NewPatch prepares prog for execution. Patch variables found in store keep
// their value; the others start from their declared initializer. A nil store
// gives the patch a private one.
func NewPatch(prog *program.Program, store *PatchStore, opts ...Option) *Patch {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if store == nil {
		store = NewPatchStore()
	}

	p := &Patch{
		ID:        ulid.Make(),
		Program:   prog,
		cfg:       cfg,
		store:     store,
		globals:   make([]value.Value, len(prog.Constants)),
		patchVals: make([]*value.Value, len(prog.Patch)),
		voices:    make(map[int64]*voiceState, 64),
		locks:     make([]Lock, len(prog.Locks)),
	}
	for i, v := range prog.Constants {
		p.globals[i] = cloneValue(v)
	}
	restored := 0
	for i, sym := range prog.Patch {
		cell, ok := store.bind(sym, prog.PatchInit[i])
		p.patchVals[i] = cell
		if ok {
			restored++
		}
	}
	for i, name := range prog.Locks {
		p.locks[i].Name = name
	}

	cfg.log.Debug("patch loaded",
		"patch", p.ID.String(),
		"globals", len(p.globals),
		"polyphonic", len(prog.Polyphonic),
		"patch_vars", len(p.patchVals),
		"restored", restored)
	return p
}

// Store returns the patch-persistent store.
func (p *Patch) Store() *PatchStore {
	return p.store
}

// Global returns the current value of a global variable.
func (p *Patch) Global(name string) (value.Value, bool) {
	sym := p.Program.Symbol(name)
	if sym == nil || sym.Storage != program.StorageGlobal {
		return value.Value{}, false
	}
	return p.globals[sym.Slot], true
}

// PatchValue returns the current value of a patch variable.
func (p *Patch) PatchValue(name string) (value.Value, bool) {
	sym := p.Program.Symbol(name)
	if sym == nil || sym.Storage != program.StoragePatch {
		return value.Value{}, false
	}
	return *p.patchVals[sym.Slot], true
}

// Polyphonic returns the value a polyphonic variable has for voice.
func (p *Patch) Polyphonic(voice int64, name string) (value.Value, bool) {
	sym := p.Program.Symbol(name)
	if sym == nil || sym.Storage != program.StoragePolyphonic {
		return value.Value{}, false
	}
	vs, ok := p.voices[voice]
	if !ok {
		return value.Value{}, false
	}
	return vs.vals[sym.Slot], true
}

// Lock returns the named sync lock, or nil if the program never uses it.
func (p *Patch) Lock(name string) *Lock {
	for i := range p.locks {
		if p.locks[i].Name == name {
			return &p.locks[i]
		}
	}
	return nil
}

// Voices returns the number of voices with live polyphonic state.
func (p *Patch) Voices() int {
	return len(p.voices)
}

// EndVoice marks voice as finished. Its polyphonic state is recycled once
// the last instance acting for it retires.
func (p *Patch) EndVoice(voice int64) {
	vs, ok := p.voices[voice]
	if !ok {
		return
	}
	vs.ended = true
	if vs.refs == 0 {
		p.dropVoice(voice, vs)
	}
}

// Woken appends the instances that were handed a sync lock since the last
// call and clears the list. The scheduler must make them due again.
func (p *Patch) Woken(dst []*Instance) []*Instance {
	dst = append(dst, p.woken...)
	clear(p.woken)
	p.woken = p.woken[:0]
	return dst
}

func (p *Patch) acquireVoice(voice int64) *voiceState {
	if vs, ok := p.voices[voice]; ok {
		vs.refs++
		return vs
	}
	var vs *voiceState
	if n := len(p.freeVoices); n > 0 {
		vs = p.freeVoices[n-1]
		p.freeVoices = p.freeVoices[:n-1]
	} else {
		vs = &voiceState{vals: make([]value.Value, len(p.Program.Polyphonic))}
	}
	for i, init := range p.Program.PolyphonicInit {
		cur := vs.vals[i]
		if init.Arr != nil && cur.Arr != nil && cur.Arr.CopyFrom(init.Arr) == nil {
			continue
		}
		vs.vals[i] = cloneValue(init)
	}
	vs.refs = 1
	vs.ended = false
	p.voices[voice] = vs
	return vs
}

func (p *Patch) releaseVoice(voice int64, vs *voiceState) {
	vs.refs--
	if vs.refs <= 0 && vs.ended {
		p.dropVoice(voice, vs)
	}
}

func (p *Patch) dropVoice(voice int64, vs *voiceState) {
	if p.voices[voice] == vs {
		delete(p.voices, voice)
	}
	vs.refs = 0
	p.freeVoices = append(p.freeVoices, vs)
}
