package main

import (
	"os"

	"github.com/semmy-space/monthend/internal/cli"
)

var (
	version = "dev"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], cli.DefaultDeps(version)))
}
