package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
	"github.com/mklimuk/i2cbang/eeprom"
)

var eepromTypes = map[string]eeprom.EEPROM24Config{
	"24c02":  eeprom.Conf24C02,
	"24c16":  eeprom.Conf24C16,
	"24c32":  eeprom.Conf24C32,
	"24c256": eeprom.Conf24C256,
}

var eepromCmd = cli.Command{
	Name:  "eeprom",
	Usage: "read and write 24Cxx EEPROMs",
	Flags: []cli.Flag{
		&cli.UintFlag{
			Name:  "address",
			Usage: "device address, the first block for one byte parts",
			Value: 0x50,
		},
		&cli.StringFlag{
			Name:  "type",
			Usage: "24c02, 24c16, 24c32 or 24c256",
			Value: "24c02",
		},
		&cli.Int64Flag{
			Name:  "offset",
			Usage: "position of the first byte",
		},
	},
	Subcommands: cli.Commands{
		&eepromDumpCmd,
		&eepromWriteCmd,
	},
}

func eepromFrom(c *cli.Context) (*session, *eeprom.EEPROM24, error) {
	conf, ok := eepromTypes[strings.ToLower(c.String("type"))]
	if !ok {
		return nil, nil, console.Exit(1, "unknown EEPROM type %q", c.String("type"))
	}
	s, err := sessionFrom(c)
	if err != nil {
		return nil, nil, err
	}
	dev := i2cbang.NewDevice(uint16(c.Uint("address")),
		i2cbang.WithClockRate(s.dev.ClockRate),
		i2cbang.WithTimeout(s.dev.Timeout),
	)
	mem, err := eeprom.NewEEPROM24(c.Context, s.bus, dev, conf)
	if err != nil {
		_ = s.Close()
		return nil, nil, console.Exit(1, "%s", err)
	}
	if _, err := mem.Seek(c.Int64("offset"), io.SeekStart); err != nil {
		_ = s.Close()
		return nil, nil, console.Exit(1, "%s", err)
	}
	return s, mem, nil
}

var eepromDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "print the memory contents",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "length",
			Usage: "bytes to read, 0 reads to the end",
		},
	},
	Action: func(c *cli.Context) error {
		s, mem, err := eepromFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		var src io.Reader = mem
		if n := c.Int64("length"); n > 0 {
			src = io.LimitReader(mem, n)
		}
		d := hex.Dumper(console.Writer())
		if _, err := io.Copy(d, src); err != nil {
			return console.BusExit(err, "dump failed")
		}
		return d.Close()
	},
}

var eepromWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write bytes at the offset",
	ArgsUsage: "HEXDATA",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	},
	Action: func(c *cli.Context) error {
		data, err := hex.DecodeString(strings.ReplaceAll(c.Args().First(), " ", ""))
		if err != nil || len(data) == 0 {
			return console.Exit(1, "invalid data %q", c.Args().First())
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("overwrite %d bytes at %#x?", len(data), c.Int64("offset")))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		s, mem, err := eepromFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		n, err := mem.Write(data)
		if err != nil {
			console.Warnf("%d of %d bytes written", n, len(data))
			return console.BusExit(err, "write failed")
		}
		console.PInfof(console.PictoNotebook, "%d bytes written", n)
		return nil
	},
}
