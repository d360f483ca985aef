package main

import (
	"errors"
	"os"

	"github.com/majorcontext/autobuild/cmd/autobuild/cli"
	"github.com/majorcontext/autobuild/internal/build"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, build.ErrInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
