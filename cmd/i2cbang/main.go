package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run(os.Args))
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "i2cbang"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "bit-banged I2C master"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{envPrefix + "_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "pin backend: sim, gpio, nanopi or mcp2221",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	// exit codes are handled by run
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.Commands = cli.Commands{
		&scanCmd,
		&readCmd,
		&writeCmd,
		&rtcCmd,
		&eepromCmd,
		&environmentCmd,
		&expanderCmd,
		&configCmd,
		&usbCmd,
	}
	return app
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := newApp().RunContext(ctx, args)
	if err == nil {
		return 0
	}
	console.Error(err.Error())
	var exerr cli.ExitCoder
	if errors.As(err, &exerr) {
		return exerr.ExitCode()
	}
	return 1
}

// configFrom loads the configuration named by the global flags.
func configFrom(c *cli.Context) (*Config, error) {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
		if err := cfg.validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// sessionFrom opens the bus described by the global flags. tweaks apply
// command flags on top of the configuration.
func sessionFrom(c *cli.Context, tweaks ...func(*Config)) (*session, error) {
	cfg, err := configFrom(c)
	if err != nil {
		return nil, console.Exit(1, "configuration error: %s", console.Red(err))
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}
	s, err := openSession(c.Context, cfg)
	if err != nil {
		return nil, console.BusExit(err, "could not open bus")
	}
	return s, nil
}
