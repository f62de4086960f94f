package main

import (
	"os"

	"github.com/harrisonrobin/taskview/pkg/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
