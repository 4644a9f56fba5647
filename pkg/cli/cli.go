package cli

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/instrscript/pkg/fileutil"
)

// 出力ドライバ名
const (
	DriverEbiten    = "ebiten"
	DriverPortAudio = "portaudio"
)

// デフォルト値
const (
	DefaultStorePath  = "instrscript.db"
	DefaultTickMicros = 1000
	DefaultCycles     = 2000
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ScriptPath string            // スクリプトファイルのパス
	SoundFont  string            // SF2ファイルのパス（空なら自動検索）
	StorePath  string            // パッチ変数の保存先（空なら保存しない）
	Encoding   fileutil.Encoding // スクリプトの文字コード
	Driver     string            // 出力ドライバ（ebiten, portaudio）
	Notes      []int64           // ヘッドレス時に再生するノート番号
	TickMicros int64             // 1ティックの長さ（マイクロ秒）
	Cycles     int               // ヘッドレス時に回すティック数
	Timeout    time.Duration     // タイムアウト時間（0は無制限）
	LogLevel   string            // ログレベル（debug, info, warn, error）
	Headless   bool              // ヘッドレスモード
	ShowHelp   bool              // ヘルプ表示フラグ
}

// ParseArgs コマンドライン引数を解析してConfigを返す
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("instrscript", flag.ContinueOnError)

	config := &Config{}

	var timeoutSec int
	var encoding, notes string
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SF2ファイルのパス")
	fs.StringVar(&config.StorePath, "store", DefaultStorePath, "パッチ変数の保存先（空文字で無効）")
	fs.StringVar(&encoding, "encoding", "auto", "スクリプトの文字コード（auto, utf-8, shift-jis, windows-1252）")
	fs.StringVar(&config.Driver, "driver", DriverEbiten, "出力ドライバ（ebiten, portaudio）")
	fs.StringVar(&notes, "notes", "", "ヘッドレス時に再生するノート番号（カンマ区切り）")
	fs.Int64Var(&config.TickMicros, "tick", DefaultTickMicros, "1ティックの長さ（マイクロ秒）")
	fs.IntVar(&config.Cycles, "cycles", DefaultCycles, "ヘッドレス時に回すティック数")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if config.LogLevel == "info" {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	// 環境変数からSF2ファイルを取得（コマンドラインフラグが優先）
	if config.SoundFont == "" {
		config.SoundFont = os.Getenv("SOUNDFONT")
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}

	enc, err := fileutil.ParseEncoding(encoding)
	if err != nil {
		return nil, err
	}
	config.Encoding = enc

	if config.Driver != DriverEbiten && config.Driver != DriverPortAudio {
		return nil, fmt.Errorf("invalid driver: %s (must be %s or %s)", config.Driver, DriverEbiten, DriverPortAudio)
	}
	if config.TickMicros <= 0 {
		return nil, fmt.Errorf("tick must be positive, got %d", config.TickMicros)
	}
	if config.Cycles < 0 {
		return nil, fmt.Errorf("cycles must be non-negative, got %d", config.Cycles)
	}

	config.Notes, err = parseNotes(notes)
	if err != nil {
		return nil, err
	}

	// 位置引数（スクリプトファイルのパス）
	if fs.NArg() > 0 {
		config.ScriptPath = fs.Arg(0)
	}

	return config, nil
}

// parseNotes "60,64,67" 形式のノート列を解析
func parseNotes(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var notes []int64
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid note %q: %w", field, err)
		}
		if n < 0 || n > 127 {
			return nil, fmt.Errorf("note out of range: %d (must be 0-127)", n)
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5 のように値を取るフラグは次の引数も一緒に移動
			if i+1 < len(args) && (args[i+1] == "" || args[i+1][0] != '-') {
				if !isBoolFlag(arg) && !strings.Contains(arg, "=") {
					i++
					flags = append(flags, args[i])
				}
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	switch strings.TrimLeft(arg, "-") {
	case "h", "help", "headless":
		return true
	}
	return false
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `instrscript - instrument script engine

Usage:
  instrscript [options] <script>

Arguments:
  script        ノートイベントに反応するスクリプトファイル

Options:
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --headless                  ヘッドレスモード（音声出力なし）
  --soundfont <path>          SF2ファイル（省略時は自動検索）
  --store <path>              パッチ変数の保存先（デフォルト: instrscript.db、空文字で無効）
  --encoding <name>           スクリプトの文字コード: auto, utf-8, shift-jis, windows-1252
  --driver <name>             出力ドライバ: ebiten, portaudio（デフォルト: ebiten）
  --notes <n,n,...>           ヘッドレス時に順に再生するノート番号
  --tick <microseconds>       1ティックの長さ（デフォルト: 1000）
  --cycles <n>                ヘッドレス時に回すティック数（デフォルト: 2000）
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  SOUNDFONT=<path>            SF2ファイル

Examples:
  instrscript lead.txt                          スクリプトを読み込んで演奏
  instrscript --headless --notes 60,64,67 lead.txt  ヘッドレスでノートを再生
  instrscript --timeout 10 lead.txt             10秒後に自動終了
  instrscript --log-level debug lead.txt        デバッグログを有効化
`)
}
