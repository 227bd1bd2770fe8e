package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"horaire/internal/config"
	"horaire/internal/errors"
	"horaire/internal/generate"
	appLog "horaire/internal/log"
	"horaire/internal/upload"
	"horaire/internal/watch"
	"horaire/internal/web"
)

// newCLIApp creates the CLI application with all commands. Running the
// binary without a command behaves like `generate`.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "horaire",
		Usage:   "Build the weekly room schedule XML from the planning API",
		Version: Version,
		Flags:   generationFlags(),
		Action:  generateAction,
		Commands: []*cli.Command{
			generateCmd(),
			watchCmd(),
			uploadCmd(),
			roomsCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// generationFlags are shared by every command that runs the pipeline.
func generationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file (created with defaults if missing)"},
		&cli.StringFlag{Name: "rooms", Aliases: []string{"salles"}, Usage: "Room list file (salleXX=Name per line)"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output XML file"},
		&cli.StringFlag{Name: "api", Usage: "Planning API POST endpoint"},
		&cli.StringFlag{Name: "mock", Usage: "Single mock feed reused for every room"},
		&cli.StringFlag{Name: "mock-dir", Usage: "Directory with one <room>.json or <room>.txt per room"},
		&cli.BoolFlag{Name: "include-empty-days", Usage: "Emit all 7 days even without events"},
		&cli.BoolFlag{Name: "no-filter-location", Usage: "Keep events whose location differs from the room name"},
		&cli.IntFlag{Name: "shift-hours", Usage: "Hours added to every timestamp (default -2)"},
		&cli.StringFlag{Name: "eol", Usage: "Output line ending: lf|crlf"},
		&cli.StringFlag{Name: "timezone", Usage: "IANA timezone used as local time (empty: UTC)"},
		&cli.IntFlag{Name: "fetch-timeout", Usage: "Per-room fetch timeout in seconds"},
		&cli.BoolFlag{Name: "keep-going", Usage: "Skip rooms whose fetch fails instead of aborting"},
		&cli.BoolFlag{Name: "merge-across-rooms", Usage: "Merge contiguous slots across room fetches"},
		&cli.StringFlag{Name: "upload", Usage: "Upload credentials INI; upload the output after generation"},
		&cli.BoolFlag{Name: "verbose", Usage: "Log progress per room"},
	}
}

// resolveConfig loads the config file (if any) and applies flags that were
// set explicitly on the command line.
func resolveConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, errors.NewInvalidConfig(fmt.Sprintf("cannot load config %s: %v", path, err))
		}
		cfg = loaded
	}

	strFlags := map[string]*string{
		"rooms":    &cfg.Rooms,
		"out":      &cfg.Output,
		"api":      &cfg.API,
		"mock":     &cfg.Mock,
		"mock-dir": &cfg.MockDir,
		"eol":      &cfg.EOL,
		"timezone": &cfg.Timezone,
		"upload":   &cfg.UploadCredentials,
	}
	for name, dst := range strFlags {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}

	boolFlags := map[string]*bool{
		"include-empty-days": &cfg.IncludeEmptyDays,
		"no-filter-location": &cfg.NoFilterLocation,
		"keep-going":         &cfg.KeepGoing,
		"merge-across-rooms": &cfg.MergeAcrossRooms,
		"verbose":            &cfg.Verbose,
	}
	for name, dst := range boolFlags {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}

	if c.IsSet("shift-hours") {
		cfg.ShiftHours = c.Int("shift-hours")
	}
	if c.IsSet("fetch-timeout") {
		cfg.FetchTimeoutSeconds = c.Int("fetch-timeout")
	}
	if c.IsSet("eol") {
		switch c.String("eol") {
		case "lf", "crlf":
		default:
			return nil, errors.NewInvalidConfig(fmt.Sprintf("invalid --eol %q (want lf or crlf)", c.String("eol")))
		}
	}
	cfg.Normalize()

	switch {
	case cfg.Verbose:
		appLog.SetLevel(appLog.LevelDebug)
	case cfg.LogLevel != "":
		appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	default:
		appLog.SetLevel(appLog.LevelWarn)
	}
	return cfg, nil
}

// generateCmd creates the generate command.
func generateCmd() *cli.Command {
	return &cli.Command{
		Name:   "generate",
		Usage:  "Fetch every room once and write the schedule XML",
		Flags:  generationFlags(),
		Action: generateAction,
	}
}

func generateAction(c *cli.Context) error {
	cfg, err := resolveConfig(c)
	if err != nil {
		return err
	}
	g, err := generate.New(cfg)
	if err != nil {
		return err
	}
	res, err := g.Run(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "wrote %s (%d events, %d days)\n", res.Path, res.Events, len(res.Days))
	uploadResult(c.Context, cfg.UploadCredentials, res)
	return nil
}

// uploadResult hands the generated bytes to the configured uploader.
// Failures are reported and never change the outcome of the run.
func uploadResult(ctx context.Context, credsPath string, res *generate.Result) {
	if credsPath == "" || res == nil {
		return
	}
	creds, err := upload.FromCredentials(credsPath)
	if err != nil {
		appLog.Warn("upload skipped", "err", err)
		return
	}
	if err := upload.File(ctx, creds, res.Path, res.Data); err != nil {
		appLog.Warn("upload failed", "err", err, "run_id", res.RunID)
	}
}

// watchCmd creates the watch command.
func watchCmd() *cli.Command {
	flags := append(generationFlags(),
		&cli.StringFlag{Name: "schedule", Usage: "Cron expression for regeneration (default \"0 5 * * *\")"},
		&cli.StringFlag{Name: "listen", Usage: "Serve /health, /schedule.xml and /api/schedule on this address"},
	)
	return &cli.Command{
		Name:  "watch",
		Usage: "Regenerate on a schedule, optionally serving the latest document",
		Flags: flags,
		Action: func(c *cli.Context) error {
			cfg, err := resolveConfig(c)
			if err != nil {
				return err
			}
			if c.IsSet("schedule") {
				cfg.Watch.Schedule = c.String("schedule")
			}
			if c.IsSet("listen") {
				cfg.Watch.Listen = c.String("listen")
			}

			g, err := generate.New(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var srv *web.Server
			var hooks []watch.HookFunc
			if cfg.Watch.Listen != "" {
				srv = web.NewServer(cfg.Watch)
				hooks = append(hooks, func(_ context.Context, res *generate.Result) { srv.Publish(res) })
			}
			hooks = append(hooks, func(ctx context.Context, res *generate.Result) {
				uploadResult(ctx, cfg.UploadCredentials, res)
			})

			w, err := watch.New(cfg.Watch.Schedule, cfg.Location(), g.Run, hooks...)
			if err != nil {
				return errors.NewInvalidConfig(err.Error())
			}

			serveErr := make(chan error, 1)
			if srv != nil {
				go func() { serveErr <- srv.Serve(ctx) }()
			}

			watchErr := make(chan error, 1)
			go func() { watchErr <- w.Run(ctx) }()

			select {
			case err := <-serveErr:
				stop()
				<-watchErr
				if err != nil {
					return errors.NewInternal(err)
				}
				return nil
			case err := <-watchErr:
				stop()
				if srv != nil {
					<-serveErr
				}
				return err
			}
		},
	}
}

// uploadCmd creates the upload command.
func uploadCmd() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload an existing schedule file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "credentials", Aliases: []string{"creds"}, Required: true, Usage: "Upload credentials INI ([upload] section)"},
			&cli.BoolFlag{Name: "verbose", Usage: "Log progress"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.NewInvalidConfig("upload takes exactly one FILE argument")
			}
			if c.Bool("verbose") {
				appLog.SetLevel(appLog.LevelDebug)
			}
			path := c.Args().First()
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.NewInvalidConfig(fmt.Sprintf("cannot read %s: %v", path, err))
			}
			creds, err := upload.FromCredentials(c.String("credentials"))
			if err != nil {
				return err
			}
			if err := upload.File(c.Context, creds, path, data); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "uploaded %s to %s\n", path, creds.Target())
			return nil
		},
	}
}

// roomsCmd creates the rooms command.
func roomsCmd() *cli.Command {
	return &cli.Command{
		Name:  "rooms",
		Usage: "Print the room list in fetch order",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "rooms", Aliases: []string{"salles"}, Usage: "Room list file"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("rooms")
			if path == "" && c.String("config") != "" {
				cfg, err := config.Load(c.String("config"))
				if err != nil {
					return errors.NewInvalidConfig(err.Error())
				}
				path = cfg.Rooms
			}
			if path == "" {
				return errors.NewInvalidConfig("room list path is required (--rooms)")
			}

			rooms, err := config.LoadRooms(path)
			if err != nil {
				return errors.NewInvalidConfig(fmt.Sprintf("cannot read room list %s: %v", path, err))
			}
			if len(rooms) == 0 {
				return errors.NewEmptyRoomList(path)
			}
			for _, room := range rooms {
				fmt.Fprintln(c.App.Writer, room)
			}
			return nil
		},
	}
}
