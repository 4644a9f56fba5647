package patchstore

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/compiler"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/value"
	"github.com/zurustar/instrscript/pkg/vm"
)

const script = `
declare patch $hits = 10;
declare patch ~gain = 0.5;
declare patch @name = "init";
declare patch %hist[3];
declare patch ?curve[2];
declare patch !labels[2];
on note {
	$hits = $hits + 1;
	%hist[$hits mod 3] = $hits;
	~gain = ~gain * 2.0;
	@name = "played";
	?curve[1] = 0.25;
	!labels[0] = "a{$hits}";
}
`

func compile(t *testing.T, src string) *program.Program {
	t.Helper()
	prog, diags := compiler.Parse(src, bridge.NewDefaultRegistry())
	if len(diags) > 0 {
		t.Fatalf("compile failed: %v", compiler.Errors(diags))
	}
	return prog
}

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patches.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db, path
}

func play(p *vm.Patch, notes int) {
	for i := range notes {
		in := vm.NewInstance()
		in.Reset(p, uint64(i+1), program.EventNote, vm.Trigger{Voice: int64(i + 1)})
		in.Advance(0)
	}
}

func TestSaveAndLoadAcrossReopen(t *testing.T) {
	db, path := openTemp(t)

	store, err := db.Load("lead")
	if err != nil {
		t.Fatal(err)
	}
	p := vm.NewPatch(compile(t, script), store)
	play(p, 2)
	if err := db.Save("lead", p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store, err = db.Load("lead")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p2 := vm.NewPatch(compile(t, script), store)

	check := func(name string, want value.Value) {
		t.Helper()
		got, ok := p2.PatchValue(name)
		if !ok {
			t.Fatalf("missing %s", name)
		}
		if got.Type != want.Type || got.Int != want.Int || got.Real != want.Real || got.Str != want.Str {
			t.Errorf("%s = %+v, want %+v", name, got, want)
		}
	}
	check("$hits", value.Int(12))
	check("~gain", value.Real(2))
	check("@name", value.String("played"))

	elem := func(name string, i int64) value.Value {
		v, _ := p2.PatchValue(name)
		e, _ := v.Arr.Get(i)
		return e
	}
	if e := elem("%hist", 0); e.Int != 12 {
		t.Errorf("%%hist[0] = %d", e.Int)
	}
	if e := elem("%hist", 2); e.Int != 11 {
		t.Errorf("%%hist[2] = %d", e.Int)
	}
	if e := elem("?curve", 1); e.Real != 0.25 {
		t.Errorf("?curve[1] = %v", e.Real)
	}
	if e := elem("!labels", 0); e.Str != "a12" {
		t.Errorf("!labels[0] = %q", e.Str)
	}
}

func TestLoadUnknownKeyIsEmpty(t *testing.T) {
	db, _ := openTemp(t)
	defer db.Close()

	store, err := db.Load("missing")
	if err != nil {
		t.Fatal(err)
	}
	if len(store.Names()) != 0 {
		t.Errorf("names = %v", store.Names())
	}
	p := vm.NewPatch(compile(t, script), store)
	if v, _ := p.PatchValue("$hits"); v.Int != 10 {
		t.Errorf("$hits = %d, want initializer", v.Int)
	}
}

func TestChangedDeclarationStartsFresh(t *testing.T) {
	db, _ := openTemp(t)
	defer db.Close()

	store, _ := db.Load("lead")
	p := vm.NewPatch(compile(t, script), store)
	play(p, 1)
	if err := db.Save("lead", p); err != nil {
		t.Fatal(err)
	}

	store, err := db.Load("lead")
	if err != nil {
		t.Fatal(err)
	}
	p2 := vm.NewPatch(compile(t, "declare patch $hits = 10;\ndeclare patch %hist[5];\non note {}"), store)
	if v, _ := p2.PatchValue("$hits"); v.Int != 11 {
		t.Errorf("$hits = %d, want saved 11", v.Int)
	}
	hist, _ := p2.PatchValue("%hist")
	if hist.Arr.Len() != 5 {
		t.Fatalf("len(%%hist) = %d", hist.Arr.Len())
	}
	for _, e := range hist.Arr.Values() {
		if e.Int != 0 {
			t.Errorf("resized %%hist kept old values: %v", hist.Arr.Values())
			break
		}
	}
}

func TestKeysAndDelete(t *testing.T) {
	db, _ := openTemp(t)
	defer db.Close()

	for _, key := range []string{"pad", "bass", "lead"} {
		store, _ := db.Load(key)
		if err := db.Save(key, vm.NewPatch(compile(t, script), store)); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := db.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(keys, []string{"bass", "lead", "pad"}) {
		t.Errorf("keys = %v", keys)
	}

	if err := db.Delete("bass"); err != nil {
		t.Fatal(err)
	}
	keys, _ = db.Keys()
	if slices.Contains(keys, "bass") {
		t.Errorf("deleted key still listed: %v", keys)
	}
}

func TestClosedStore(t *testing.T) {
	db, _ := openTemp(t)
	db.Close()
	if _, err := db.Load("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close: %v", err)
	}
	if err := db.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close: %v", err)
	}
}

func TestRecordMetadata(t *testing.T) {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := encode(map[string]value.Value{"$x": value.Int(4)}, "01HZY5Q0000000000000000000", saved)
	if err != nil {
		t.Fatal(err)
	}
	rec, vals, err := decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != formatVersion || rec.Patch != "01HZY5Q0000000000000000000" || !rec.Saved.Equal(saved) {
		t.Errorf("record = %+v", rec)
	}
	if vals["$x"].Int != 4 {
		t.Errorf("$x = %+v", vals["$x"])
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"newer version", `{"version":99,"vars":{}}`, ErrUnsupportedVersion},
		{"unknown type", `{"version":1,"vars":{"$x":{"type":"matrix"}}}`, nil},
		{"not json", `{"version":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decode([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
