package app

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zurustar/instrscript/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file within FileSystem
	Path string
	// FileSystem is the FileSystem to use for loading
	FileSystem fs.FS
	// IsEmbedded indicates whether the SoundFont comes from the bundled assets
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. Explicit path (--soundfont or SOUNDFONT)
// 2. Bundled assets under soundfonts/
// 3. Current directory
// 4. The script's directory
//
// File names are matched case-insensitively. Returns nil if nothing is found.
func findSoundFont(assets fs.FS, explicit, scriptDir string) *SoundFontLocation {
	// 1. 明示的に指定されたファイル（存在しなくてもそのまま返し、読み込み時にエラーにする）
	if explicit != "" {
		fsys, name := fileutil.Split(explicit)
		return &SoundFontLocation{Path: name, FileSystem: fsys}
	}

	// 2. 同梱アセット
	if assets != nil {
		if p, err := fileutil.FindFile(assets, "soundfonts", DefaultSoundFontName); err == nil {
			return &SoundFontLocation{Path: p, FileSystem: assets, IsEmbedded: true}
		}
	}

	// 3. カレントディレクトリ
	if p, err := fileutil.FindFile(os.DirFS("."), ".", DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: p, FileSystem: os.DirFS(".")}
	}

	// 4. スクリプトのディレクトリ
	if scriptDir != "" {
		fsys := os.DirFS(filepath.Clean(scriptDir))
		if p, err := fileutil.FindFile(fsys, ".", DefaultSoundFontName); err == nil {
			return &SoundFontLocation{Path: p, FileSystem: fsys}
		}
	}

	return nil
}
