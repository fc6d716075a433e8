// shotdiff - perceptual screenshot regression testing
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/GriffinCanCode/shotdiff/internal/cli"
)

const version = "0.3.0"

func main() {
	root := cli.NewRootCmd()

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	)
	os.Exit(cli.ExitCode(err))
}
