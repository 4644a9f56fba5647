package patchstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/zurustar/instrscript/pkg/value"
)

// formatVersion is bumped whenever the record layout changes.
const formatVersion = 1

// ErrUnsupportedVersion is returned for records written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported patch record version")

// record is the stored form of one patch's persistent variables.
type record struct {
	Version int                 `json:"version"`
	Patch   string              `json:"patch"`
	Saved   time.Time           `json:"saved"`
	Vars    map[string]variable `json:"vars"`
}

type variable struct {
	Type  string    `json:"type"`
	Int   int64     `json:"int,omitempty"`
	Real  float64   `json:"real,omitempty"`
	Str   string    `json:"str,omitempty"`
	Ints  []int64   `json:"ints,omitempty"`
	Reals []float64 `json:"reals,omitempty"`
	Strs  []string  `json:"strs,omitempty"`
}

var typesByName = map[string]value.Type{}

func init() {
	for _, t := range []value.Type{
		value.TypeInt, value.TypeReal, value.TypeString,
		value.TypeIntArray, value.TypeRealArray, value.TypeStringArray,
	} {
		typesByName[t.String()] = t
	}
}

func encodeVariable(v value.Value) variable {
	out := variable{Type: v.Type.String()}
	switch v.Type {
	case value.TypeInt:
		out.Int = v.Int
	case value.TypeReal:
		out.Real = v.Real
	case value.TypeString:
		out.Str = v.Str
	case value.TypeIntArray:
		out.Ints = make([]int64, 0, v.Arr.Len())
		for _, e := range v.Arr.Values() {
			out.Ints = append(out.Ints, e.Int)
		}
	case value.TypeRealArray:
		out.Reals = make([]float64, 0, v.Arr.Len())
		for _, e := range v.Arr.Values() {
			out.Reals = append(out.Reals, e.Real)
		}
	case value.TypeStringArray:
		out.Strs = make([]string, 0, v.Arr.Len())
		for _, e := range v.Arr.Values() {
			out.Strs = append(out.Strs, e.Str)
		}
	}
	return out
}

func decodeVariable(v variable) (value.Value, error) {
	t, ok := typesByName[v.Type]
	if !ok {
		return value.Value{}, fmt.Errorf("unknown variable type %q", v.Type)
	}
	switch t {
	case value.TypeInt:
		return value.Int(v.Int), nil
	case value.TypeReal:
		return value.Real(v.Real), nil
	case value.TypeString:
		return value.String(v.Str), nil
	}

	var arr *value.Array
	switch t {
	case value.TypeIntArray:
		arr = value.NewArray(value.TypeInt, len(v.Ints))
		for i, x := range v.Ints {
			arr.Set(int64(i), value.Int(x))
		}
	case value.TypeRealArray:
		arr = value.NewArray(value.TypeReal, len(v.Reals))
		for i, x := range v.Reals {
			arr.Set(int64(i), value.Real(x))
		}
	case value.TypeStringArray:
		arr = value.NewArray(value.TypeString, len(v.Strs))
		for i, x := range v.Strs {
			arr.Set(int64(i), value.String(x))
		}
	}
	return value.ArrayValue(arr), nil
}

// encode serializes a snapshot taken from the patch identified by patchID.
func encode(vals map[string]value.Value, patchID string, saved time.Time) ([]byte, error) {
	rec := record{
		Version: formatVersion,
		Patch:   patchID,
		Saved:   saved.UTC(),
		Vars:    make(map[string]variable, len(vals)),
	}
	for name, v := range vals {
		rec.Vars[name] = encodeVariable(v)
	}
	return json.Marshal(rec)
}

func decode(data []byte) (record, map[string]value.Value, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, nil, fmt.Errorf("failed to decode patch record: %w", err)
	}
	if rec.Version > formatVersion {
		return record{}, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}
	vals := make(map[string]value.Value, len(rec.Vars))
	for name, v := range rec.Vars {
		val, err := decodeVariable(v)
		if err != nil {
			return record{}, nil, fmt.Errorf("variable %s: %w", name, err)
		}
		vals[name] = val
	}
	return rec, vals, nil
}
