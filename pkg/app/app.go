package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/zurustar/instrscript/pkg/bridge"
	"github.com/zurustar/instrscript/pkg/cli"
	"github.com/zurustar/instrscript/pkg/compiler"
	"github.com/zurustar/instrscript/pkg/fileutil"
	"github.com/zurustar/instrscript/pkg/host"
	"github.com/zurustar/instrscript/pkg/logger"
	"github.com/zurustar/instrscript/pkg/patchstore"
	"github.com/zurustar/instrscript/pkg/program"
	"github.com/zurustar/instrscript/pkg/scheduler"
	"github.com/zurustar/instrscript/pkg/vm"
)

// ノート再生の間隔と長さ（--notes 用）
const (
	noteSpacing  = 250 * time.Millisecond
	noteLength   = 200 * time.Millisecond
	noteVelocity = 100

	audioBuffer     = 100 * time.Millisecond
	framesPerBuffer = 512
)

// ErrNoScript はスクリプトが指定されていない場合のエラー
var ErrNoScript = errors.New("no script specified")

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	assets fs.FS

	prog   *program.Program
	store  *patchstore.DB
	synth  *host.SynthHost
	sched  *scheduler.Scheduler
	patch  *vm.Patch
	engine *host.Engine
	stream *host.Stream
}

// New Applicationを作成
// assets は同梱のSoundFontを探す場所（nil可）
func New(assets fs.FS) *Application {
	return &Application{
		assets: assets,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp()
		return nil
	}
	if app.config.ScriptPath == "" {
		cli.PrintHelp()
		return ErrNoScript
	}

	// 2. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "script", app.config.ScriptPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	if err := app.setup(); err != nil {
		return err
	}
	defer app.closeStore()

	// 5. 演奏
	var err error
	if app.config.Headless {
		err = app.runHeadless(ctx)
	} else {
		err = app.runDriver(ctx)
	}
	if err != nil {
		return err
	}

	st := app.engine.Stats()
	app.log.Info("Engine stopped",
		"ticks", st.Ticks,
		"notes", st.Notes,
		"stolen", st.Stolen,
		"completed", st.Completed,
		"faulted", st.Faulted,
		"cancelled", st.Cancelled)

	// 6. パッチ変数の保存
	if err := app.savePatch(); err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

// setup スクリプト、保存先、シンセ、スケジューラを準備
func (app *Application) setup() error {
	// 3. スクリプトの読み込み（診断があればスクリプトなしで続行）
	app.prog = app.loadScript()

	// 4. パッチ変数の復元
	store, err := app.openStore()
	if err != nil {
		return err
	}

	synth, err := app.newSynth()
	if err != nil {
		app.closeStore()
		return err
	}
	app.synth = synth

	app.sched = scheduler.New(
		scheduler.WithHost(synth),
		scheduler.WithLogger(app.log),
		scheduler.WithMicrosPerTick(app.config.TickMicros),
	)
	if app.prog != nil {
		app.patch = app.sched.Load(app.prog, store)
	}
	app.engine = host.NewEngine(app.sched, synth, app.patch, host.WithEngineLogger(app.log))
	app.stream = host.NewStream(app.engine, synth, app.config.TickMicros)
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadScript スクリプトを読み込んでコンパイル
// エラーはソース位置付きでログに出し、nil を返す
func (app *Application) loadScript() *program.Program {
	fsys, name := fileutil.Split(app.config.ScriptPath)
	prog, diags := compiler.ParseFile(fsys, name, bridge.NewDefaultRegistry(), compiler.Options{
		Encoding: app.config.Encoding,
		Logger:   app.log,
	})
	if len(diags) > 0 {
		for _, d := range diags {
			if d.Context != "" {
				app.log.Debug("Script error context", "context", "\n"+d.Context)
			}
		}
		app.log.Warn("Script rejected, notes will play without it", "diagnostics", len(diags))
		return nil
	}
	app.log.Info("Script compiled", "file", name, "handlers", handlerNames(prog))
	return prog
}

// patchKey パッチ変数の保存キー
func (app *Application) patchKey() string {
	return filepath.Base(app.config.ScriptPath)
}

// openStore パッチ変数の保存先を開き、保存済みの値を読み込む
func (app *Application) openStore() (*vm.PatchStore, error) {
	if app.config.StorePath == "" {
		return vm.NewPatchStore(), nil
	}
	db, err := patchstore.Open(app.config.StorePath, patchstore.WithLogger(app.log))
	if err != nil {
		return nil, err
	}
	app.store = db
	store, err := db.Load(app.patchKey())
	if err != nil {
		// 壊れたレコードは無視して初期値から始める
		app.log.Warn("Failed to restore patch variables", "error", err)
		return vm.NewPatchStore(), nil
	}
	return store, nil
}

func (app *Application) closeStore() {
	if app.store == nil {
		return
	}
	if err := app.store.Close(); err != nil {
		app.log.Warn("Failed to close patch store", "error", err)
	}
	app.store = nil
}

func (app *Application) savePatch() error {
	if app.store == nil || app.patch == nil {
		return nil
	}
	if err := app.store.Save(app.patchKey(), app.patch); err != nil {
		return fmt.Errorf("failed to save patch variables: %w", err)
	}
	return nil
}

// newSynth SoundFontを探してシンセを作成（見つからなければ無音）
func (app *Application) newSynth() (*host.SynthHost, error) {
	loc := findSoundFont(app.assets, app.config.SoundFont, filepath.Dir(app.config.ScriptPath))
	if loc == nil {
		app.log.Warn("SoundFont not found, running silent", "name", DefaultSoundFontName)
		return host.NewSynthHost(nil, host.WithSynthLogger(app.log))
	}
	sf, err := host.LoadSoundFont(loc.FileSystem, loc.Path)
	if err != nil {
		if app.config.SoundFont != "" {
			return nil, err
		}
		app.log.Warn("Failed to load SoundFont, running silent", "path", loc.Path, "error", err)
		return host.NewSynthHost(nil, host.WithSynthLogger(app.log))
	}
	app.log.Info("SoundFont loaded", "path", loc.Path, "embedded", loc.IsEmbedded)
	return host.NewSynthHost(sf, host.WithSynthLogger(app.log))
}

// runHeadless 音声出力なしで指定ティック数だけ回す
// --notes のノートは noteSpacing 間隔で順に鳴らす
func (app *Application) runHeadless(ctx context.Context) error {
	tm := app.config.TickMicros
	cycles := int64(app.config.Cycles)
	app.log.Info("Headless mode", "cycles", cycles, "tick_us", tm, "notes", app.config.Notes)

	type noteEvent struct {
		tick int64
		on   bool
		key  int64
	}
	var events []noteEvent
	spacing := noteSpacing.Microseconds() / tm
	length := max(noteLength.Microseconds()/tm, 1)
	for i, key := range app.config.Notes {
		at := int64(i) * spacing
		events = append(events, noteEvent{at, true, key}, noteEvent{at + length, false, key})
	}

	left := make([]float32, 0, 4096)
	right := make([]float32, 0, 4096)
	for t := int64(0); t < cycles; t++ {
		if ctx.Err() != nil {
			app.log.Info("Timeout reached, terminating", "tick", t)
			break
		}
		for _, ev := range events {
			if ev.tick != t {
				continue
			}
			if ev.on {
				app.engine.NoteOn(ev.key, noteVelocity)
			} else {
				app.engine.NoteOff(ev.key, 0)
			}
		}
		n := samplesInTick(t, tm)
		if cap(left) < n {
			left = make([]float32, n)
			right = make([]float32, n)
		}
		app.stream.Process(left[:n], right[:n])
	}
	return nil
}

// samplesInTick tick の間に出力するサンプル数
func samplesInTick(tick, microsPerTick int64) int {
	at := func(t int64) int64 { return t * microsPerTick * host.SampleRate / 1_000_000 }
	return int(at(tick+1) - at(tick))
}

// runDriver 音声出力ドライバで再生し、タイムアウトか割り込みまで待つ
func (app *Application) runDriver(ctx context.Context) error {
	driver, err := app.newDriver()
	if err != nil {
		return err
	}
	if err := driver.Start(); err != nil {
		driver.Close()
		return fmt.Errorf("failed to start audio: %w", err)
	}
	app.log.Info("Audio started", "driver", app.config.Driver)

	go replayNotes(ctx, app.engine, app.config.Notes)

	<-ctx.Done()
	app.log.Info("Stopping audio", "ticks", app.stream.Ticks())
	return driver.Close()
}

func (app *Application) newDriver() (host.Driver, error) {
	switch app.config.Driver {
	case cli.DriverPortAudio:
		return host.NewPortAudioDriver(app.stream, framesPerBuffer)
	default:
		ctx := audio.CurrentContext()
		if ctx == nil {
			ctx = audio.NewContext(host.SampleRate)
		}
		d, err := host.NewEbitenDriver(ctx, app.stream, audioBuffer)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// replayNotes ノート列を実時間で順に鳴らす
func replayNotes(ctx context.Context, e *host.Engine, notes []int64) {
	for _, key := range notes {
		e.NoteOn(key, noteVelocity)
		select {
		case <-ctx.Done():
			return
		case <-time.After(noteLength):
		}
		e.NoteOff(key, 0)
		select {
		case <-ctx.Done():
			return
		case <-time.After(noteSpacing - noteLength):
		}
	}
}

func handlerNames(prog *program.Program) []string {
	var names []string
	for e := program.EventInit; int(e) < program.NumEvents; e++ {
		if prog.HasHandler(e) {
			names = append(names, e.String())
		}
	}
	return names
}
