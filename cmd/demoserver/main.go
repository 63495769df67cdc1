// Command demoserver serves a demo website whose pages can be switched
// between looks, for trying sightline against visual changes.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/raysh454/sightline/internal/demoserver"
	"github.com/raysh454/sightline/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintf(os.Stderr, "invalid port: %s\n", os.Args[1])
			os.Exit(2)
		}
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := demoserver.NewDemoServer(cfg)
	if err := server.Start(ctx); err != nil {
		cfg.Logger.Error("demo server failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}
