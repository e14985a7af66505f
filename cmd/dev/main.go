package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/i2cbang/cmd/dev/cmd"
)

func logger(debug bool) *slog.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	charm := log.NewWithOptions(os.Stdout, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "i2cbang-dev",
	})
	charm.SetColorProfile(termenv.TrueColor)
	return slog.New(charm)
}

func main() {
	var debug bool
	root := &cobra.Command{
		Use:          "dev",
		Short:        "build and check the i2cbang CLI",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			slog.SetDefault(logger(debug))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.AddCommand(cmd.BuildCmd())
	root.AddCommand(cmd.QualityCmds()...)

	if err := root.Execute(); err != nil {
		slog.Error("dev task failed", "error", err)
		os.Exit(1)
	}
}
