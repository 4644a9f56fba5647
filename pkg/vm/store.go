package vm

import (
	"sort"

	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
)

// PatchStore holds the patch-persistent variables of one patch, keyed by
// variable name so values survive reloading the script. A Patch writes
// through to the store directly; Snapshot and Restore must not run while a
// Cycle is in progress.
type PatchStore struct {
	cells map[string]*value.Value
}

// NewPatchStore creates an empty store.
func NewPatchStore() *PatchStore {
	return &PatchStore{cells: make(map[string]*value.Value)}
}

// bind returns the cell backing sym. A stored value is kept if its type and
// array length match the declaration; otherwise init is installed.
func (s *PatchStore) bind(sym *program.Symbol, init value.Value) (*value.Value, bool) {
	if cell, ok := s.cells[sym.Name]; ok && compatible(*cell, sym) {
		return cell, true
	}
	v := cloneValue(init)
	cell := &v
	s.cells[sym.Name] = cell
	return cell, false
}

func compatible(v value.Value, sym *program.Symbol) bool {
	if v.Type != sym.Type {
		return false
	}
	if sym.Type.IsArray() {
		return v.Arr != nil && v.Arr.Len() == sym.Size
	}
	return true
}

// Get returns the current value of a patch variable.
func (s *PatchStore) Get(name string) (value.Value, bool) {
	cell, ok := s.cells[name]
	if !ok {
		return value.Value{}, false
	}
	return *cell, true
}

// Names returns the stored variable names in sorted order.
func (s *PatchStore) Names() []string {
	names := make([]string, 0, len(s.cells))
	for name := range s.cells {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a deep copy of every stored value.
func (s *PatchStore) Snapshot() map[string]value.Value {
	out := make(map[string]value.Value, len(s.cells))
	for name, cell := range s.cells {
		out[name] = cloneValue(*cell)
	}
	return out
}

// Restore installs values, typically loaded from disk. Cells already bound
// to a Patch are updated in place when the type, and for arrays the length,
// still matches. The names of values left out for a mismatch are returned
// in sorted order.
func (s *PatchStore) Restore(values map[string]value.Value) []string {
	var skipped []string
	for name, v := range values {
		cell, ok := s.cells[name]
		if !ok {
			v := cloneValue(v)
			s.cells[name] = &v
			continue
		}
		if cell.Type != v.Type {
			skipped = append(skipped, name)
			continue
		}
		if v.Type.IsArray() {
			// bound arrays keep their identity and length
			if cell.Arr == nil || v.Arr == nil || cell.Arr.CopyFrom(v.Arr) != nil {
				skipped = append(skipped, name)
			}
			continue
		}
		*cell = v
	}
	sort.Strings(skipped)
	return skipped
}

func cloneValue(v value.Value) value.Value {
	if v.Arr != nil {
		v.Arr = v.Arr.Clone()
	}
	return v
}
