// Package program defines the bound, immutable form of a script: resolved
// symbols, typed expression trees and per-event handlers. A Program is
// produced once per patch load and shared read-only by every instance.
package program

import (
	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler/token"
	"github.com/zurustar/instrscript/pkg/value"
)

// EventType identifies the event a handler reacts to. The numeric values
// match the $NI_CB_TYPE_* constants.
type EventType uint8

const (
	EventInit       = EventType(bridge.CallbackInit)
	EventNote       = EventType(bridge.CallbackNote)
	EventRelease    = EventType(bridge.CallbackRelease)
	EventController = EventType(bridge.CallbackController)
	EventRPN        = EventType(bridge.CallbackRPN)
	EventNRPN       = EventType(bridge.CallbackNRPN)

	// NumEvents bounds EventType values; index 0 is unused.
	NumEvents = int(EventNRPN) + 1
)

var eventNames = map[EventType]string{
	EventInit:       "init",
	EventNote:       "note",
	EventRelease:    "release",
	EventController: "controller",
	EventRPN:        "rpn",
	EventNRPN:       "nrpn",
}

func (e EventType) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "unknown"
}

// HasVoice reports whether instances for this event act for a voice.
func (e EventType) HasVoice() bool {
	return e != EventInit
}

// ParseEventType maps a handler name to its EventType.
func ParseEventType(name string) (EventType, bool) {
	for e, n := range eventNames {
		if n == name {
			return e, true
		}
	}
	return 0, false
}

// Storage is where a variable lives at run time.
type Storage uint8

const (
	StorageGlobal Storage = iota
	StoragePolyphonic
	StoragePatch
	StorageLocal
	StorageConst
	StorageBuiltin
)

func (s Storage) String() string {
	switch s {
	case StorageGlobal:
		return "global"
	case StoragePolyphonic:
		return "polyphonic"
	case StoragePatch:
		return "patch"
	case StorageLocal:
		return "local"
	case StorageConst:
		return "const"
	case StorageBuiltin:
		return "builtin"
	}
	return "unknown"
}

// Symbol is a resolved variable.
type Symbol struct {
	Name    string
	Type    value.Type
	Unit    value.Unit
	Storage Storage
	// ReadOnly is set for const declarations and constant built-ins.
	ReadOnly bool
	// Slot indexes the storage class: globals, polyphonic frame, patch
	// store or the local frame of the declaring handler or function.
	Slot int
	// Size is the declared element count of an array.
	Size int
	// Value is the folded value of a const scalar.
	Value value.Value
	// Builtin is set for StorageBuiltin symbols.
	Builtin *bridge.Variable
	Pos     token.Pos
}

// Global reports whether the symbol is shared by all instances of a patch.
func (s *Symbol) Global() bool {
	return s.Storage == StorageGlobal || s.Storage == StoragePolyphonic || s.Storage == StoragePatch
}

// Handler is a bound event handler.
type Handler struct {
	Event EventType
	Body  *Block
	// Locals are the handler-local symbols; their slots start at 0.
	Locals []*Symbol
	Range  token.Pos
}

// Function is a bound user function. Its locals live in a frame pushed on
// the caller's local stack.
type Function struct {
	Name   string
	Body   *Block
	Locals []*Symbol
	Range  token.Pos
}

// Program is a bound script.
type Program struct {
	Source string

	// Handlers is indexed by EventType; nil entries have no handler.
	Handlers  [NumEvents]*Handler
	Functions map[string]*Function

	// Globals, Polyphonic and Patch list the symbols of each storage class
	// by slot.
	Globals    []*Symbol
	Polyphonic []*Symbol
	Patch      []*Symbol
	// Consts lists the top-level and init const scalars, already folded.
	Consts []*Symbol

	// Constants is the constant pool: the folded initial value of every
	// global slot. Arrays are templates that must be cloned before use.
	Constants []value.Value
	// PolyphonicInit and PatchInit are the initial values of polyphonic and
	// patch slots.
	PolyphonicInit []value.Value
	PatchInit      []value.Value

	// Locks lists the sync lock names used by the program. Sync statements
	// refer to them by index.
	Locks []string

	// MaxLocals is the largest local frame any handler or function needs.
	MaxLocals int
}

// Handler returns the handler for e, or nil.
func (p *Program) Handler(e EventType) *Handler {
	if int(e) <= 0 || int(e) >= NumEvents {
		return nil
	}
	return p.Handlers[e]
}

// HasHandler reports whether the program handles e.
func (p *Program) HasHandler(e EventType) bool {
	return p.Handler(e) != nil
}

// Symbol looks up a global, polyphonic, patch or const symbol by name. It
// returns nil if there is none.
func (p *Program) Symbol(name string) *Symbol {
	for _, list := range [][]*Symbol{p.Globals, p.Polyphonic, p.Patch, p.Consts} {
		for _, s := range list {
			if s.Name == name {
				return s
			}
		}
	}
	return nil
}
