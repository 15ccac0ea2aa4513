package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"uvsense-go/internal/app"
	"uvsense-go/internal/app/config"
	"uvsense-go/services/hal/platform"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/etc/" + app.MODULE + "/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the daemon configuration
	cfg := config.NewConfig()
	var ro readOptions

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "VEML6075 UVA/UVB sensor reader and exporter",
		Version: app.VERSION,
		Description: "Reads a VEML6075 ultraviolet sensor over I2C." +
			"\n run publishes calibrated UVA, UVB and UV index to mqtt, prometheus and a small web api.",
		UsageText: "uvsense read [--backend periph|devfs|sim] [--device 1] [--it 100ms] [--hd] [--force]" +
			"\n   uvsense run [--config <file>] [--log standard|debug|trace]" +
			"\n\nEXAMPLE:" +
			"\n\ttake one reading on /dev/i2c-1 with 100ms integration" +
			"\n\t\tuvsense read --device /dev/i2c-1 --it 100ms",
		Commands: []*cli.Command{
			{
				Name:  "read",
				Usage: "take a single measurement and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Destination: &ro.Backend, Value: platform.BackendPeriph, Usage: "I2C `BACKEND` (periph|devfs|sim)"},
					&cli.StringFlag{Name: "device", Aliases: []string{"d"}, Destination: &ro.Device, Value: "", Usage: "I2C bus `NAME` or device path"},
					&cli.StringFlag{Name: "it", Destination: &ro.IntegrationTime, Value: "100ms", Usage: "integration `TIME` (50ms|100ms|200ms|400ms|800ms)"},
					&cli.BoolFlag{Name: "hd", Destination: &ro.HighDynamic, Usage: "high dynamic setting"},
					&cli.BoolFlag{Name: "force", Destination: &ro.Force, Usage: "active force (one-shot) mode"},
					&cli.BoolFlag{Name: "json", Destination: &ro.JSON, Usage: "print as json"},
					&cli.BoolFlag{Name: "check-id", Destination: &ro.CheckID, Usage: "verify the device id register first"},
				},
				Action: func(ctx *cli.Context) error {
					debug.SetDebug(os.Stderr, debug.Standard)
					return runRead(ro, os.Stdout)
				},
			},
			{
				Name:  "run",
				Usage: "run the exporter daemon",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
					&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.Debug, Value: "", Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
				},
				Action: func(ctx *cli.Context) error {
					return runDaemon(ctx.Context, cfg)
				},
			},
		},
	}

	for _, c := range cliApp.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
}

func runDaemon(parent context.Context, cfg *config.Config) error {
	if err := cfg.LoadConfig(); err != nil {
		return err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	// capture exit signals to ensure resources are released on exit.
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug.InfoLog.Printf("starting app %s", app.Version())
	if err = a.Run(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	debug.InfoLog.Print("got exit signal. Aborting...")
	return nil
}
