package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
	"github.com/mklimuk/i2cbang/environment"
)

var environmentCmd = cli.Command{
	Name:    "temperature",
	Aliases: []string{"temp"},
	Usage:   "read a temperature sensor",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "sensor",
			Aliases: []string{"s"},
			Usage:   "tc74 or hih6021",
			Value:   "tc74",
		},
		&cli.UintFlag{
			Name:  "address",
			Usage: "sensor address, the part default when unset",
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
		switch c.String("sensor") {
		case "tc74":
			var opts []environment.TC74ConfigOption
			if c.IsSet("address") {
				opts = append(opts, environment.WithAddress(byte(c.Uint("address"))))
			}
			temp, err := environment.NewTC74(s.bus, opts...).GetTemperature(c.Context)
			if err != nil {
				return console.BusExit(err, "error getting temperature read")
			}
			console.Printf("%s %s\n", console.PictoThermometer, console.White(temp))
		case "hih6021":
			var opts []environment.HIH6021Option
			if c.IsSet("address") {
				opts = append(opts, environment.WithHIH6021Address(byte(c.Uint("address"))))
			}
			temp, hum, err := environment.NewHIH6021(s.bus, opts...).GetTempAndHum(c.Context)
			if err != nil {
				return console.BusExit(err, "error getting temperature read")
			}
			console.Printf("%s  %s\n%s %s\n", console.PictoThermometer, console.White(temp), console.PictoHumidity, console.White(hum))
		default:
			return console.Exit(1, "unknown sensor %q", c.String("sensor"))
		}
		return nil
	},
}
