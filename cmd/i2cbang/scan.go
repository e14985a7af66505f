package main

import (
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe the 7-bit address space",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "skip-reserved",
			Usage: "leave out the reserved addresses 0x00-0x07 and 0x78-0x7F",
		},
	},
	Action: func(c *cli.Context) error {
		s, err := sessionFrom(c, func(cfg *Config) {
			if c.IsSet("skip-reserved") {
				cfg.SkipReserved = c.Bool("skip-reserved")
			}
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		found := scan(s)
		if len(found) == 0 {
			console.PInfof(console.PictoGhost, "no device responded")
		}
		return nil
	},
}

func scan(s *session) []uint8 {
	console.Print("----Scanning I2C Bus for Devices----")
	var found []uint8
	s.master.Scan(func(addr uint8) {
		found = append(found, addr)
		console.PInfof(console.PictoPin, "Address: 0x%02X Responded.", addr)
	})
	console.Print("----Done Scanning----")
	return found
}
