// Command sightline runs the visual change monitor: the capture scheduler
// and the dashboard HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/raysh454/sightline/internal/app"
	"github.com/raysh454/sightline/internal/capture"
	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "sightline",
		Usage: "screenshot websites on a schedule and alert on visual changes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"SIGHTLINE_CONFIG"},
			},
			&cli.StringFlag{Name: "listen", Usage: "override server.listen_addr"},
			&cli.StringFlag{Name: "storage", Usage: "override storage.root"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
		},
		Action: serve,
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sightline: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if v := c.String("listen"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := c.String("storage"); v != "" {
		root, err := config.ExpandPath(v)
		if err != nil {
			return err
		}
		cfg.Storage.Root = root
	}
	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}

	logger := logging.NewWriterLogger(os.Stderr, "sightline", logging.ParseLevel(cfg.Log.Level))
	capture.RegisterDefaultBackends()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	return application.Run(c.Context)
}
