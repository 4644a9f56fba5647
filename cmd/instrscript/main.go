package main

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zurustar/instrscript/pkg/app"
)

//go:embed assets
var embeddedAssets embed.FS

func main() {
	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	application := app.New(assets)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, app.ErrNoScript) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
