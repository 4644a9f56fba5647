// Package value defines the runtime values, static types and metric units
// shared by the compiler front end, the VM and the built-in function bridge.
package value

import (
	"strconv"
)

// Type is the static type of a variable, expression or Bridge parameter.
type Type uint8

const (
	TypeVoid Type = iota
	TypeInt
	TypeReal
	TypeString
	TypeIntArray
	TypeRealArray
	TypeStringArray
)

var typeNames = map[Type]string{
	TypeVoid:        "void",
	TypeInt:         "int",
	TypeReal:        "real",
	TypeString:      "string",
	TypeIntArray:    "int array",
	TypeRealArray:   "real array",
	TypeStringArray: "string array",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsArray reports whether t is one of the array types.
func (t Type) IsArray() bool {
	return t == TypeIntArray || t == TypeRealArray || t == TypeStringArray
}

// IsNumeric reports whether t is int or real.
func (t Type) IsNumeric() bool {
	return t == TypeInt || t == TypeReal
}

// IsScalar reports whether t is int, real or string.
func (t Type) IsScalar() bool {
	return t == TypeInt || t == TypeReal || t == TypeString
}

// Elem returns the element type of an array type, or t itself for scalars.
func (t Type) Elem() Type {
	switch t {
	case TypeIntArray:
		return TypeInt
	case TypeRealArray:
		return TypeReal
	case TypeStringArray:
		return TypeString
	}
	return t
}

// ArrayOf returns the array type whose elements are of type t.
func ArrayOf(t Type) Type {
	switch t {
	case TypeInt:
		return TypeIntArray
	case TypeReal:
		return TypeRealArray
	case TypeString:
		return TypeStringArray
	}
	return TypeVoid
}

// Value is a runtime value. Only the field matching Type is meaningful.
// Values are passed by value; arrays share their backing *Array.
type Value struct {
	Type Type
	Int  int64
	Real float64
	Str  string
	Arr  *Array
}

// Int returns an int value.
func Int(i int64) Value { return Value{Type: TypeInt, Int: i} }

// Real returns a real value.
func Real(f float64) Value { return Value{Type: TypeReal, Real: f} }

// String returns a string value.
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// Bool returns int 1 for true and int 0 for false.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Zero returns the default value for a scalar type. Arrays must be created
// with NewArray since their size is part of the declaration.
func Zero(t Type) Value {
	switch t {
	case TypeInt:
		return Int(0)
	case TypeReal:
		return Real(0)
	case TypeString:
		return String("")
	}
	return Value{Type: t}
}

// Truthy reports whether an int value is non-zero.
func (v Value) Truthy() bool {
	return v.Int != 0
}

// AsReal returns the value converted to float64. Only int and real are converted.
func (v Value) AsReal() float64 {
	if v.Type == TypeInt {
		return float64(v.Int)
	}
	return v.Real
}

// Format renders a scalar the way string concatenation and message() print it.
func (v Value) Format() string {
	switch v.Type {
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeReal:
		return strconv.FormatFloat(v.Real, 'f', -1, 64)
	case TypeString:
		return v.Str
	case TypeVoid:
		return ""
	}
	if v.Arr != nil {
		return v.Type.String() + "[" + strconv.Itoa(v.Arr.Len()) + "]"
	}
	return v.Type.String()
}

// Equal compares two values of the same scalar type.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeInt:
		return v.Int == o.Int
	case TypeReal:
		return v.Real == o.Real
	case TypeString:
		return v.Str == o.Str
	}
	return v.Arr == o.Arr
}
