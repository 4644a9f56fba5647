package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zurustar/instrscript/pkg/patchstore"
)

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(src), 0644); err != nil {
		t.Fatalf("Failed to create script: %v", err)
	}
	return p
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{"HEADLESS", "TIMEOUT", "LOG_LEVEL", "SOUNDFONT"} {
		t.Setenv(name, "")
	}
	return dir
}

func TestRun_HeadlessPersistsPatchVariables(t *testing.T) {
	dir := isolate(t)
	script := writeScript(t, dir, "counter.txt", `
declare patch $runs;
declare patch $played;
on init {
	$runs = $runs + 1;
}
on note {
	$played = $played + 1;
	wait(50ms);
}
`)
	store := filepath.Join(dir, "patches.db")
	args := []string{"--headless", "--store", store, "--notes", "60,64", "--cycles", "600", "-l", "error", script}

	for range 2 {
		if err := New(nil).Run(args); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	}

	db, err := patchstore.Open(store)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	vars, err := db.Load("counter.txt")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := vars.Get("$runs"); v.Int != 2 {
		t.Errorf("$runs = %d, want 2", v.Int)
	}
	if v, _ := vars.Get("$played"); v.Int != 4 {
		t.Errorf("$played = %d, want 4", v.Int)
	}
}

func TestRun_RejectedScriptStillRuns(t *testing.T) {
	dir := isolate(t)
	script := writeScript(t, dir, "broken.txt", "on note { ")

	app := New(nil)
	err := app.Run([]string{"--headless", "--store=", "--notes", "60", "--cycles", "100", "-l", "error", script})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if app.patch != nil {
		t.Error("rejected script should not be loaded")
	}
	if st := app.engine.Stats(); st.Notes != 1 || st.Ticks != 100 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRun_NoScript(t *testing.T) {
	isolate(t)
	if err := New(nil).Run([]string{"--headless"}); !errors.Is(err, ErrNoScript) {
		t.Errorf("err = %v, want ErrNoScript", err)
	}
}

func TestRun_MissingExplicitSoundFont(t *testing.T) {
	dir := isolate(t)
	script := writeScript(t, dir, "lead.txt", "on note { }")
	err := New(nil).Run([]string{"--headless", "--store=", "--soundfont", filepath.Join(dir, "missing.sf2"), "-l", "error", script})
	if err == nil {
		t.Error("expected error for a missing --soundfont file")
	}
}

func TestSamplesInTick(t *testing.T) {
	var total int
	for tick := range int64(1000) {
		total += samplesInTick(tick, 1000)
	}
	if total != 44100 {
		t.Errorf("one second of ticks = %d samples, want 44100", total)
	}
	if n := samplesInTick(0, 1000); n != 44 {
		t.Errorf("first tick = %d samples, want 44", n)
	}
}
