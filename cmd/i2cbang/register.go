package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
)

var deviceFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "width",
		Usage: "register index bytes, 0 for raw transfers",
		Value: 1,
	},
	&cli.BoolFlag{
		Name:  "ten-bit",
		Usage: "use 10-bit addressing",
	},
}

var readCmd = cli.Command{
	Name:      "read",
	Usage:     "read registers of a device",
	ArgsUsage: "ADDRESS REGISTER COUNT",
	Flags:     deviceFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected %s", c.Command.ArgsUsage)
		}
		count, err := strconv.ParseUint(c.Args().Get(2), 0, 16)
		if err != nil || count == 0 {
			return console.Exit(1, "invalid count %q", c.Args().Get(2))
		}
		s, err := sessionFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		dev, reg, err := target(c, s.dev)
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		buf := make([]byte, count)
		if err := s.bus.ReadRegister(c.Context, dev, reg, buf); err != nil {
			return console.BusExit(err, "read from %#x failed", dev.Address)
		}
		console.Printf("%s", hex.Dump(buf))
		return nil
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Usage:     "write registers of a device",
	ArgsUsage: "ADDRESS REGISTER HEXDATA",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "do not ask for confirmation",
		},
	}, deviceFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected %s", c.Command.ArgsUsage)
		}
		data, err := hex.DecodeString(strings.ReplaceAll(c.Args().Get(2), " ", ""))
		if err != nil || len(data) == 0 {
			return console.Exit(1, "invalid data %q", c.Args().Get(2))
		}
		s, err := sessionFrom(c)
		if err != nil {
			return err
		}
		defer func() {
			_ = s.Close()
		}()
		dev, reg, err := target(c, s.dev)
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %d bytes to register %#x of %#x?", len(data), reg, dev.Address))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		if err := s.bus.WriteRegister(c.Context, dev, reg, data); err != nil {
			return console.BusExit(err, "write to %#x failed", dev.Address)
		}
		console.Infof("%d bytes written", len(data))
		return nil
	},
}

// target builds the descriptor and register index named by the first two
// arguments on top of the bus settings.
func target(c *cli.Context, bus i2cbang.Device) (i2cbang.Device, uint32, error) {
	addr, err := strconv.ParseUint(c.Args().Get(0), 0, 16)
	if err != nil {
		return i2cbang.Device{}, 0, fmt.Errorf("invalid address %q", c.Args().Get(0))
	}
	reg, err := strconv.ParseUint(c.Args().Get(1), 0, 32)
	if err != nil {
		return i2cbang.Device{}, 0, fmt.Errorf("invalid register %q", c.Args().Get(1))
	}
	opts := []i2cbang.DeviceOption{
		i2cbang.WithClockRate(bus.ClockRate),
		i2cbang.WithTimeout(bus.Timeout),
		i2cbang.WithRegisterWidth(c.Int("width")),
	}
	if c.Bool("ten-bit") {
		opts = append(opts, i2cbang.WithTenBitAddress())
	}
	dev := i2cbang.NewDevice(uint16(addr), opts...)
	if err := dev.Validate(); err != nil {
		return i2cbang.Device{}, 0, err
	}
	return dev, uint32(reg), nil
}
