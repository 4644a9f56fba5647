package value

import "fmt"

// Array is a fixed-size array. Its size is fixed at declaration; there is no
// automatic growth, out-of-range accesses are reported to the caller.
type Array struct {
	elem  Type
	elems []Value
}

// NewArray creates an array of size elements of elem type, all set to zero.
func NewArray(elem Type, size int) *Array {
	elems := make([]Value, size)
	z := Zero(elem)
	for i := range elems {
		elems[i] = z
	}
	return &Array{elem: elem, elems: elems}
}

// ArrayValue wraps an array into a Value of the matching array type.
func ArrayValue(a *Array) Value {
	return Value{Type: ArrayOf(a.elem), Arr: a}
}

// Elem returns the element type.
func (a *Array) Elem() Type { return a.elem }

// Len returns the declared size.
func (a *Array) Len() int { return len(a.elems) }

// Get returns the element at index. ok is false when index is out of bounds.
func (a *Array) Get(index int64) (Value, bool) {
	if index < 0 || index >= int64(len(a.elems)) {
		return Value{}, false
	}
	return a.elems[index], true
}

// Set stores v at index. ok is false when index is out of bounds; the array
// is left untouched in that case.
func (a *Array) Set(index int64, v Value) bool {
	if index < 0 || index >= int64(len(a.elems)) {
		return false
	}
	a.elems[index] = v
	return true
}

// Reset sets every element back to zero.
func (a *Array) Reset() {
	z := Zero(a.elem)
	for i := range a.elems {
		a.elems[i] = z
	}
}

// CopyFrom copies the elements of src. Both arrays must have the same
// element type and length.
func (a *Array) CopyFrom(src *Array) error {
	if src.elem != a.elem {
		return fmt.Errorf("cannot copy %s array into %s array", src.elem, a.elem)
	}
	if len(src.elems) != len(a.elems) {
		return fmt.Errorf("cannot copy %d elements into an array of %d", len(src.elems), len(a.elems))
	}
	copy(a.elems, src.elems)
	return nil
}

// Clone returns an independent copy of the array.
func (a *Array) Clone() *Array {
	c := &Array{elem: a.elem, elems: make([]Value, len(a.elems))}
	copy(c.elems, a.elems)
	return c
}

// Values returns the element slice. Callers must not retain it across
// script execution.
func (a *Array) Values() []Value { return a.elems }
