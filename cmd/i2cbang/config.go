package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/bitbang"
	"github.com/mklimuk/i2cbang/cmd/i2cbang/console"
)

const envPrefix = "I2CBANG"

const (
	backendSim     = "sim"
	backendGPIO    = "gpio"
	backendMCP2221 = "mcp2221"
	backendNanoPi  = "nanopi"
)

type Config struct {
	Backend      string        `mapstructure:"backend" yaml:"backend"`
	Clock        string        `mapstructure:"clock" yaml:"clock"`
	Timeout      int           `mapstructure:"timeout" yaml:"timeout"`
	Settle       time.Duration `mapstructure:"settle" yaml:"settle"`
	SkipReserved bool          `mapstructure:"skip_reserved" yaml:"skip_reserved"`
	GPIO         GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	MCP2221      MCP2221Config `mapstructure:"mcp2221" yaml:"mcp2221"`
	NanoPi       NanoPiConfig  `mapstructure:"nanopi" yaml:"nanopi"`
	Sim          SimConfig     `mapstructure:"sim" yaml:"sim"`
}

// GPIOConfig names the host pins, e.g. GPIO3 and GPIO2 on a Raspberry Pi.
type GPIOConfig struct {
	SCL string `mapstructure:"scl" yaml:"scl"`
	SDA string `mapstructure:"sda" yaml:"sda"`
}

// MCP2221Config selects the chip (-1 when only one is attached) and its GP
// pins.
type MCP2221Config struct {
	Index int `mapstructure:"index" yaml:"index"`
	SCL   int `mapstructure:"scl" yaml:"scl"`
	SDA   int `mapstructure:"sda" yaml:"sda"`
}

// NanoPiConfig names the header pins of a NanoPi NEO driven through gobot.
type NanoPiConfig struct {
	SCL string `mapstructure:"scl" yaml:"scl"`
	SDA string `mapstructure:"sda" yaml:"sda"`
}

type SimConfig struct {
	Devices []SimDevice `mapstructure:"devices" yaml:"devices"`
}

type SimDevice struct {
	Address       uint16 `mapstructure:"address" yaml:"address"`
	TenBit        bool   `mapstructure:"ten_bit" yaml:"ten_bit,omitempty"`
	RegisterWidth int    `mapstructure:"register_width" yaml:"register_width"`
	Size          int    `mapstructure:"size" yaml:"size"`
	Stretch       int    `mapstructure:"stretch" yaml:"stretch,omitempty"`
	// Memory presets the start of the device memory, hex encoded.
	Memory string `mapstructure:"memory" yaml:"memory,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", backendSim)
	v.SetDefault("clock", "100kHz")
	v.SetDefault("timeout", i2cbang.DefaultTimeout)
	v.SetDefault("settle", bitbang.DefaultSettle)
	v.SetDefault("skip_reserved", false)
	v.SetDefault("gpio.scl", "GPIO3")
	v.SetDefault("gpio.sda", "GPIO2")
	v.SetDefault("mcp2221.index", -1)
	v.SetDefault("mcp2221.scl", 0)
	v.SetDefault("mcp2221.sda", 1)
	v.SetDefault("nanopi.scl", "5")
	v.SetDefault("nanopi.sda", "3")
	// a DS3231 clock and a 24C02 EEPROM, the usual breakout board pair, next to
	// a TC74 and a HIH6021
	v.SetDefault("sim.devices", []map[string]interface{}{
		{"address": 0x50, "register_width": 1, "size": 256},
		{"address": 0x68, "register_width": 1, "size": 19, "memory": "554123"},
		{"address": 0x4D, "register_width": 1, "size": 2, "memory": "1940"},
		{"address": 0x27, "register_width": 1, "size": 4, "memory": "178b65b8"},
	})
}

// loadConfig reads path (when set) on top of the defaults. I2CBANG_* variables
// override both, e.g. I2CBANG_GPIO_SCL.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case backendSim, backendGPIO, backendMCP2221, backendNanoPi:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	dev, err := c.Device()
	if err != nil {
		return err
	}
	if err := dev.Validate(); err != nil {
		return err
	}
	for _, d := range c.Sim.Devices {
		if _, err := d.memory(); err != nil {
			return fmt.Errorf("sim device %#x: %w", d.Address, err)
		}
	}
	return nil
}

// Device is the descriptor carrying the configured clock rate and timeout
// budget.
func (c *Config) Device() (i2cbang.Device, error) {
	var clock physic.Frequency
	if err := clock.Set(c.Clock); err != nil {
		return i2cbang.Device{}, fmt.Errorf("invalid clock %q: %w", c.Clock, err)
	}
	return i2cbang.NewDevice(0, i2cbang.WithClockRate(clock), i2cbang.WithTimeout(c.Timeout)), nil
}

func (c *Config) ScanPolicy() bitbang.ScanPolicy {
	if c.SkipReserved {
		return bitbang.ScanSkipReserved
	}
	return bitbang.ScanAll
}

func (d SimDevice) memory() ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(d.Memory, " ", ""))
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Action: func(c *cli.Context) error {
		cfg, err := configFrom(c)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}
		return dump(cfg)
	},
}
