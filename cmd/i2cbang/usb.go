package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2cbang/adapter"
	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "inspect USB adapters",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
		&usbGPIOCmd,
		&usbStatusCmd,
	},
}

var usbLsCmd = cli.Command{
	Name:  "ls",
	Usage: "list HID devices",
	Action: func(c *cli.Context) error {
		devices := hid.Enumerate(0, 0)

		w := tabwriter.NewWriter(os.Stdout, 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range devices {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list attached MCP2221 chips usable as a pin backend",
	Action: func(c *cli.Context) error {
		devices := adapter.Enumerate()
		if len(devices) == 0 {
			console.PInfof(console.PictoGhost, "no MCP2221 attached")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 8, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tSERIAL\tPATH\n")
		for i, dev := range devices {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\t%s\n", i, dev.VendorID, dev.ProductID, dev.Serial, dev.Path)
		}
		return w.Flush()
	},
}

var indexFlag = &cli.IntFlag{
	Name:  "index",
	Usage: "chip position as listed by detect, -1 when only one is attached",
	Value: -1,
}

type gpioReport struct {
	SRAM   adapter.MCP2221GPIOParameters `yaml:"sram"`
	Flash  adapter.MCP2221GPIOParameters `yaml:"flash"`
	Values adapter.MCP2221GPIOValues     `yaml:"values"`
}

var usbGPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "show GP pin settings and levels of an MCP2221",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		mcp := adapter.NewMCP2221(adapter.WithOpener(adapter.OpenIndex(c.Int("index"))))
		if err := mcp.Open(); err != nil {
			return console.Exit(1, "adapter error: %s", console.Red(err))
		}
		defer func() {
			_ = mcp.Close()
		}()
		var rep gpioReport
		var err error
		if rep.SRAM, err = mcp.GPIOParameters(c.Context); err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		if rep.Flash, err = mcp.GetGPIOParameters(c.Context); err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		if rep.Values, err = mcp.ReadGPIO(c.Context); err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return dump(rep)
	},
}

var usbStatusCmd = cli.Command{
	Name:  "status",
	Usage: "show the MCP2221 status report",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		mcp := adapter.NewMCP2221(adapter.WithOpener(adapter.OpenIndex(c.Int("index"))))
		status, err := mcp.Status(c.Context)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return dump(status)
	},
}

func dump(v interface{}) error {
	enc := yaml.NewEncoder(console.Writer())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return enc.Close()
}
