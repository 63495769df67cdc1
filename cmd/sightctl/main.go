// Command sightctl manages a running sightline server from the terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/sightline/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args)
	stop()
	os.Exit(code)
}
