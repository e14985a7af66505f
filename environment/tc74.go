package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/i2cbang"
)

const tc74DefaultAddress = 0x4D

const (
	tc74TempRegister   = 0x00
	tc74ConfigRegister = 0x01
)

const (
	tc74DataReady = 0x40
	tc74Standby   = 0x80
)

// ErrNotReady is returned before the first conversion after power up or
// standby.
var ErrNotReady = errors.New("no conversion available yet")

// TC74 represents a Microchip TC74 Digital Temperature Sensor
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
//
// The sensor speaks the SMBus read byte protocol: a one byte write selects the
// register, a separate read returns it.
type TC74 struct {
	transport i2cbang.I2CBus
	address   byte
}

type TC74Config struct {
	Address byte
}

type TC74ConfigOption func(*TC74Config)

func WithAddress(address byte) TC74ConfigOption {
	return func(c *TC74Config) {
		c.Address = address
	}
}

// NewTC74 talks to the sensor at 0x4D (TC74A5) unless configured otherwise.
func NewTC74(trans i2cbang.I2CBus, opts ...TC74ConfigOption) *TC74 {
	config := &TC74Config{
		Address: tc74DefaultAddress,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &TC74{transport: trans, address: config.Address}
}

func (sensor *TC74) register(ctx context.Context, reg byte) (byte, error) {
	if err := sensor.transport.WriteToAddr(ctx, sensor.address, []byte{reg}); err != nil {
		return 0, fmt.Errorf("tc74: could not select register %#x: %w", reg, err)
	}
	resp := make([]byte, 1)
	if err := sensor.transport.ReadFromAddr(ctx, sensor.address, resp); err != nil {
		return 0, fmt.Errorf("tc74: could not read register %#x: %w", reg, err)
	}
	return resp[0], nil
}

// GetConfig returns the configuration register.
func (sensor *TC74) GetConfig(ctx context.Context) (byte, error) {
	return sensor.register(ctx, tc74ConfigRegister)
}

// SetStandby switches the conversions off or back on.
func (sensor *TC74) SetStandby(ctx context.Context, standby bool) error {
	var config byte
	if standby {
		config = tc74Standby
	}
	if err := sensor.transport.WriteToAddr(ctx, sensor.address, []byte{tc74ConfigRegister, config}); err != nil {
		return fmt.Errorf("tc74: could not write config: %w", err)
	}
	return nil
}

// GetTemperature returns the last conversion in degrees Celsius.
func (sensor *TC74) GetTemperature(ctx context.Context) (float32, error) {
	config, err := sensor.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	if config&tc74DataReady == 0 {
		return 0, fmt.Errorf("tc74: %w", ErrNotReady)
	}
	raw, err := sensor.register(ctx, tc74TempRegister)
	if err != nil {
		return 0, err
	}
	// two's complement, one degree per bit
	return float32(int8(raw)), nil
}
