package i2cbang

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// AddressMode selects the address phase framing.
type AddressMode uint8

const (
	Addr7Bit AddressMode = iota
	Addr10Bit
)

func (m AddressMode) String() string {
	if m == Addr10Bit {
		return "10-bit"
	}
	return "7-bit"
}

// Supported clock range. Slower or faster rates cannot be timed reliably by
// a polled bit-banged master.
const (
	MinClockRate = 10 * physic.KiloHertz
	MaxClockRate = physic.MegaHertz
)

const (
	MaxRegisterWidth = 4

	DefaultClockRate = 100 * physic.KiloHertz
	DefaultTimeout   = 2000
)

// tenBitPrefix is the reserved 11110xx pattern of the first 10-bit address byte.
const tenBitPrefix = 0b11110000

// Device describes how to talk to one target. It is a plain value: build it
// once with NewDevice and pass it to every transaction.
type Device struct {
	ClockRate     physic.Frequency
	AddressMode   AddressMode
	Address       uint16
	RegisterWidth int
	// Timeout is the number of SCL polls tolerated per clock release.
	Timeout int
}

type DeviceOption func(*Device)

func WithClockRate(f physic.Frequency) DeviceOption {
	return func(d *Device) {
		d.ClockRate = f
	}
}

func WithTenBitAddress() DeviceOption {
	return func(d *Device) {
		d.AddressMode = Addr10Bit
	}
}

// WithRegisterWidth sets the number of register index bytes; 0 disables the
// register phase.
func WithRegisterWidth(n int) DeviceOption {
	return func(d *Device) {
		d.RegisterWidth = n
	}
}

func WithTimeout(polls int) DeviceOption {
	return func(d *Device) {
		d.Timeout = polls
	}
}

// NewDevice returns a 7-bit, 100 kHz descriptor with a one byte register
// index, modified by opts.
func NewDevice(address uint16, opts ...DeviceOption) Device {
	d := Device{
		ClockRate:     DefaultClockRate,
		AddressMode:   Addr7Bit,
		Address:       address,
		RegisterWidth: 1,
		Timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func (d Device) Validate() error {
	if d.ClockRate < MinClockRate || d.ClockRate > MaxClockRate {
		return fmt.Errorf("%w: clock rate %s outside %s..%s", ErrInvalidDevice, d.ClockRate, MinClockRate, MaxClockRate)
	}
	switch d.AddressMode {
	case Addr7Bit:
		if d.Address > 0x7F {
			return fmt.Errorf("%w: address %#x does not fit 7 bits", ErrInvalidDevice, d.Address)
		}
	case Addr10Bit:
		if d.Address > 0x3FF {
			return fmt.Errorf("%w: address %#x does not fit 10 bits", ErrInvalidDevice, d.Address)
		}
	default:
		return fmt.Errorf("%w: unknown address mode %d", ErrInvalidDevice, d.AddressMode)
	}
	if d.RegisterWidth < 0 || d.RegisterWidth > MaxRegisterWidth {
		return fmt.Errorf("%w: register width %d", ErrInvalidDevice, d.RegisterWidth)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("%w: timeout budget must be positive", ErrInvalidDevice)
	}
	return nil
}

// HalfPeriod is the time SCL spends in each level during a bit transfer.
func (d Device) HalfPeriod() time.Duration {
	return d.ClockRate.Period() / 2
}

// AddressBytes returns the address phase bytes and how many of them are used.
// A 10-bit read after a repeated start only needs the first byte, see
// RestartAddressBytes.
func (d Device) AddressBytes(read bool) ([2]byte, int) {
	var rw byte
	if read {
		rw = 1
	}
	if d.AddressMode == Addr10Bit {
		return [2]byte{tenBitPrefix | byte(d.Address>>8)&0x03<<1 | rw, byte(d.Address)}, 2
	}
	return [2]byte{byte(d.Address)<<1 | rw}, 1
}

// RestartAddressBytes returns the address bytes sent after a repeated start
// that turns the bus around for reading. A 10-bit target is already selected
// by then, so only the header byte with the read bit is sent.
func (d Device) RestartAddressBytes() ([2]byte, int) {
	b, n := d.AddressBytes(true)
	if d.AddressMode == Addr10Bit {
		n = 1
	}
	return b, n
}

// RegisterBytes encodes reg most significant byte first on RegisterWidth bytes.
func (d Device) RegisterBytes(reg uint32) ([4]byte, int) {
	var b [4]byte
	n := d.RegisterWidth
	for i := 0; i < n; i++ {
		b[i] = byte(reg >> (8 * (n - 1 - i)))
	}
	return b, n
}

func (d Device) String() string {
	return fmt.Sprintf("%#x (%s, %s, %d register bytes)", d.Address, d.AddressMode, d.ClockRate, d.RegisterWidth)
}
