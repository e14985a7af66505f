package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
	"github.com/mklimuk/i2cbang/gpio"
)

var expanderCmd = cli.Command{
	Name:  "expander",
	Usage: "read the ports of an MCP23017 I/O expander",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "address",
			Value: gpio.DefaultMCP23017Address,
		},
		&cli.BoolFlag{
			Name:  "pull-up",
			Usage: "enable the pull-ups of all pins before reading",
		},
	},
	Action: func(c *cli.Context) error {
		s, err := sessionFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		exp := gpio.NewMCP23017(s.bus, uint16(c.Uint("address")), gpio.WithClockRate(s.dev.ClockRate))
		for _, port := range []gpio.Port{gpio.PortA, gpio.PortB} {
			if err := exp.SetDirection(c.Context, port, 0xFF); err != nil {
				return console.BusExit(err, "could not initialize gpio")
			}
			if c.Bool("pull-up") {
				if err := exp.SetPullUp(c.Context, port, 0xFF); err != nil {
					return console.BusExit(err, "could not enable pull-ups")
				}
			}
		}
		levels, err := exp.ReadAll(c.Context)
		if err != nil {
			return console.BusExit(err, "could not read gpio")
		}
		console.Printf("I/O A: %08b\nI/O B: %08b\n", levels[0], levels[1])
		return nil
	},
}
