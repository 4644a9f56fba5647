// Package fileutil provides file lookup and source decoding helpers shared by
// the script loader and the SoundFont loader.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// FindFile searches dir for a file whose name matches filename ignoring case.
// Scripts and SoundFonts are often copied between case-sensitive and
// case-insensitive file systems, so "Lead.TXT" must find "lead.txt".
//
// Example:
//
//	p, err := FindFile(os.DirFS("/patches"), ".", "Lead.TXT")
//	// p == "lead.txt"
func FindFile(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
}

// ReadFile reads name from fsys, falling back to a case-insensitive match in
// the same directory.
func ReadFile(fsys fs.FS, name string) ([]byte, error) {
	name = clean(name)
	data, err := fs.ReadFile(fsys, name)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return data, err
	}
	actual, findErr := FindFile(fsys, path.Dir(name), path.Base(name))
	if findErr != nil {
		return nil, findErr
	}
	return fs.ReadFile(fsys, actual)
}

// Split turns a host path into a file system rooted at its directory plus the
// base name, so callers can pass command-line paths to ReadFile.
func Split(p string) (fs.FS, string) {
	p = strings.ReplaceAll(p, "\\", "/")
	dir, file := path.Split(p)
	if dir == "" {
		dir = "."
	}
	return os.DirFS(dir), file
}

func clean(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "."
	}
	return path.Clean(name)
}
