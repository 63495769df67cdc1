// Package cli implements sightctl, the terminal client of a sightline server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/raysh454/sightline/internal/dashboard"
	"github.com/raysh454/sightline/internal/logging"
	"github.com/raysh454/sightline/internal/webclient"
)

// DefaultServer is the address sightctl talks to when none is given.
const DefaultServer = "http://localhost:5000"

// session is the per-invocation state built by the app's Before hook.
type session struct {
	client *webclient.NetHTTPClient
	view   *TerminalView
	ctrl   *dashboard.Controller
	logger logging.Logger
}

// NewApp builds the sightctl application writing to out and errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	s := &session{}

	return &cli.App{
		Name:      "sightctl",
		Usage:     "manage a sightline visual change monitor from the terminal",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   DefaultServer,
				Usage:   "sightline server address",
				EnvVars: []string{"SIGHTLINE_SERVER"},
			},
			&cli.StringFlag{
				Name:    "user",
				Value:   "admin",
				Usage:   "user name for HTTP Basic auth",
				EnvVars: []string{"SIGHTLINE_USER"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "password for HTTP Basic auth",
				EnvVars: []string{"SIGHTLINE_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "request timeout",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level: debug|info|warn|error",
				EnvVars: []string{"SIGHTLINE_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return s.open(c, errOut)
		},
		After: func(c *cli.Context) error {
			if s.client != nil {
				return s.client.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list monitored sites",
				Action: s.ListAction,
			},
			{
				Name:      "show",
				Usage:     "show one site with its recent captures",
				ArgsUsage: "<site_name>",
				Action:    s.ShowAction,
			},
			{
				Name:  "add",
				Usage: "monitor a new site",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page to capture", Required: true},
					&cli.StringFlag{Name: "name", Usage: "site name", Required: true},
					&cli.StringFlag{Name: "interval", Usage: "minutes between captures", Required: true},
					&cli.StringFlag{Name: "viewport-width", Usage: "browser width (default 1366)"},
					&cli.StringFlag{Name: "viewport-height", Usage: "browser height (default 768)"},
					&cli.StringFlag{Name: "cookie-selector", Usage: "CSS selector of a cookie banner button to click"},
					&cli.StringFlag{Name: "wait", Usage: "seconds to wait before capturing (default 2)"},
				},
				Action: s.AddAction,
			},
			{
				Name:      "remove",
				Usage:     "stop monitoring a site",
				ArgsUsage: "<site_name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "job-id", Usage: "treat the argument as a raw job id"},
				},
				Action: s.RemoveAction,
			},
			{
				Name:      "edit",
				Usage:     "change a site's settings; unset flags keep their current value",
				ArgsUsage: "<site_name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page to capture"},
					&cli.StringFlag{Name: "interval", Usage: "minutes between captures"},
					&cli.StringFlag{Name: "viewport", Usage: "browser size as width,height"},
					&cli.StringFlag{Name: "cookie-selector", Usage: "CSS selector of a cookie banner button to click"},
					&cli.StringFlag{Name: "wait", Usage: "seconds to wait before capturing"},
				},
				Action: s.EditAction,
			},
			{
				Name:      "dismiss",
				Usage:     "dismiss a site's change alert",
				ArgsUsage: "<site_name>",
				Action:    s.DismissAction,
			},
			{
				Name:      "capture",
				Usage:     "capture a site now",
				ArgsUsage: "<site_name>",
				Action:    s.CaptureAction,
			},
			{
				Name:      "history",
				Usage:     "show a site's change history",
				ArgsUsage: "<site_name>",
				Action:    s.HistoryAction,
			},
			{
				Name:      "image",
				Usage:     "open a capture at full size (prints its URL, --save downloads it)",
				ArgsUsage: "<site_name> [index]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "save", Usage: "write the PNG to this file"},
				},
				Action: s.ImageAction,
			},
			{
				Name:  "watch",
				Usage: "stream live monitor events",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "site", Usage: "only events of this site"},
					&cli.BoolFlag{Name: "json", Usage: "print raw JSON events"},
					&cli.IntFlag{Name: "count", Usage: "exit after this many events (0 streams until interrupted)"},
				},
				Action: s.WatchAction,
			},
			{
				Name:      "hash-password",
				Usage:     "print the bcrypt hash for server.auth_password_hash",
				ArgsUsage: "[password]",
				Action:    s.HashPasswordAction,
			},
		},
	}
}

// Run runs sightctl with args until it finishes or ctx is cancelled and
// returns the process exit code.
func Run(ctx context.Context, args []string) int {
	app := NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "sightctl: %v\n", err)
		return 1
	}
	return 0
}

func (s *session) open(c *cli.Context, errOut io.Writer) error {
	s.logger = logging.NewWriterLogger(errOut, "sightctl", logging.ParseLevel(c.String("log-level")))

	client, err := webclient.NewNetHTTPClient(webclient.Config{
		BaseURL:  c.String("server"),
		Username: c.String("user"),
		Password: c.String("password"),
		Timeout:  c.Duration("timeout"),
	}, s.logger, nil)
	if err != nil {
		return err
	}
	s.client = client
	s.view = NewTerminalView(c.App.Writer, errOut)
	s.ctrl = dashboard.NewController(client, s.view, nil, s.logger)
	s.view.OnReload(func(ctx context.Context) {
		if err := s.ctrl.Refresh(ctx); err != nil {
			s.view.Diagnostic("Reload failed", err)
			return
		}
		printSites(s.view.out, s.ctrl.Page().Sites())
	})
	return nil
}
