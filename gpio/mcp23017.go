package gpio

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/i2cbang"
)

const DefaultMCP23017Address = 0x21

type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

type register int

const (
	iodir register = iota
	gppu
	gpio
	olat
	iocon
)

// registers per IOCON.BANK setting, port A then port B
var bankAddr = [2]map[register][2]byte{
	{
		iodir: {0x00, 0x01},
		gppu:  {0x0C, 0x0D},
		gpio:  {0x12, 0x13},
		olat:  {0x14, 0x15},
		iocon: {0x0A, 0x0B},
	},
	{
		iodir: {0x00, 0x10},
		gppu:  {0x06, 0x16},
		gpio:  {0x09, 0x19},
		olat:  {0x0A, 0x1A},
		iocon: {0x05, 0x15},
	},
}

// Transport is a register bus that can clear a stuck bus.
type Transport interface {
	i2cbang.RegisterBus
	Release(ctx context.Context) error
}

// MCP23017 is a Microchip 16-bit I/O expander. Every register access is a
// single register transaction; a transfer that times out on a held clock is
// retried after a bus clear.
type MCP23017 struct {
	transport  Transport
	dev        i2cbang.Device
	bank       int
	retryLimit int
}

type MCP23017Option func(*MCP23017)

// WithBank selects the register map matching IOCON.BANK.
func WithBank(bank int) MCP23017Option {
	return func(m *MCP23017) {
		m.bank = bank & 1
	}
}

func WithRetryLimit(n int) MCP23017Option {
	return func(m *MCP23017) {
		m.retryLimit = n
	}
}

func WithClockRate(f physic.Frequency) MCP23017Option {
	return func(m *MCP23017) {
		m.dev.ClockRate = f
	}
}

func NewMCP23017(bus Transport, address uint16, opts ...MCP23017Option) *MCP23017 {
	m := &MCP23017{
		transport:  bus,
		dev:        i2cbang.NewDevice(address, i2cbang.WithClockRate(400*physic.KiloHertz)),
		retryLimit: 2,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP23017) addr(reg register, port Port) uint32 {
	return uint32(bankAddr[m.bank][reg][port])
}

func (m *MCP23017) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = fn()
		if err == nil || !errors.Is(err, i2cbang.ErrTimeout) {
			return err
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

func (m *MCP23017) write(ctx context.Context, reg register, port Port, value byte) error {
	return m.retry(ctx, func() error {
		return m.transport.WriteRegister(ctx, m.dev, m.addr(reg, port), []byte{value})
	})
}

func (m *MCP23017) read(ctx context.Context, reg register, port Port) (byte, error) {
	buf := make([]byte, 1)
	err := m.retry(ctx, func() error {
		return m.transport.ReadRegister(ctx, m.dev, m.addr(reg, port), buf)
	})
	return buf[0], err
}

// SetDirection writes IODIR: set bits are inputs.
func (m *MCP23017) SetDirection(ctx context.Context, port Port, inout byte) error {
	if err := m.write(ctx, iodir, port, inout); err != nil {
		return fmt.Errorf("could not set direction of gpio %s set: %w", port, err)
	}
	return nil
}

// SetPullUp enables the 100k pull-up resistors of the set bits.
func (m *MCP23017) SetPullUp(ctx context.Context, port Port, settings byte) error {
	if err := m.write(ctx, gppu, port, settings); err != nil {
		return fmt.Errorf("could not set pull-up on gpio %s set: %w", port, err)
	}
	return nil
}

// Read returns the pin levels of port.
func (m *MCP23017) Read(ctx context.Context, port Port) (byte, error) {
	v, err := m.read(ctx, gpio, port)
	if err != nil {
		return 0, fmt.Errorf("could not read gpio %s set: %w", port, err)
	}
	return v, nil
}

// ReadAll returns both ports, A first.
func (m *MCP23017) ReadAll(ctx context.Context) ([2]byte, error) {
	var res [2]byte
	var err error
	if res[0], err = m.Read(ctx, PortA); err != nil {
		return res, err
	}
	res[1], err = m.Read(ctx, PortB)
	return res, err
}

// Write sets the output latch of port.
func (m *MCP23017) Write(ctx context.Context, port Port, value byte) error {
	if err := m.write(ctx, olat, port, value); err != nil {
		return fmt.Errorf("could not write gpio %s set: %w", port, err)
	}
	return nil
}

// Settings returns the IOCON register.
func (m *MCP23017) Settings(ctx context.Context) (byte, error) {
	v, err := m.read(ctx, iocon, PortA)
	if err != nil {
		return 0, fmt.Errorf("could not read settings: %w", err)
	}
	return v, nil
}

func (m *MCP23017) WriteSettings(ctx context.Context, settings byte) error {
	if err := m.write(ctx, iocon, PortA, settings); err != nil {
		return fmt.Errorf("could not write settings: %w", err)
	}
	return nil
}
