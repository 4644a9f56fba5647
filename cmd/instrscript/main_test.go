package main

import (
	"io/fs"
	"testing"
)

func TestEmbeddedAssetsLayout(t *testing.T) {
	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		t.Fatal(err)
	}
	entries, err := fs.ReadDir(assets, "soundfonts")
	if err != nil {
		t.Fatalf("soundfonts directory missing from embedded assets: %v", err)
	}
	if len(entries) == 0 {
		t.Error("soundfonts directory is empty")
	}
}
