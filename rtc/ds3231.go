package rtc

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/i2cbang"
)

const ds3231DefaultAddress = 0x68

// seconds, minutes and hours follow each other from register 0x00
const ds3231SecondsRegister = 0x00

const (
	hours12h = 0x40
	hoursPM  = 0x20
)

// DS3231 represents a Maxim DS3231 real time clock.
// See: https://www.analog.com/media/en/technical-documentation/data-sheets/DS3231.pdf
//
// Usage: Instantiate with NewDS3231, then call Time(ctx)
type DS3231 struct {
	transport i2cbang.RegisterBus
	dev       i2cbang.Device
}

type DS3231Config struct {
	Address   uint16
	ClockRate physic.Frequency
	Timeout   int
}

type DS3231ConfigOption func(*DS3231Config)

func WithAddress(address uint16) DS3231ConfigOption {
	return func(c *DS3231Config) {
		c.Address = address
	}
}

func WithClockRate(f physic.Frequency) DS3231ConfigOption {
	return func(c *DS3231Config) {
		c.ClockRate = f
	}
}

func WithTimeout(polls int) DS3231ConfigOption {
	return func(c *DS3231Config) {
		c.Timeout = polls
	}
}

// NewDS3231 talks to the clock at 0x68 with a 400 kHz bus and a 2000 poll
// stretch budget unless configured otherwise.
func NewDS3231(trans i2cbang.RegisterBus, opts ...DS3231ConfigOption) *DS3231 {
	config := &DS3231Config{
		Address:   ds3231DefaultAddress,
		ClockRate: 400 * physic.KiloHertz,
		Timeout:   i2cbang.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &DS3231{
		transport: trans,
		dev: i2cbang.NewDevice(config.Address,
			i2cbang.WithClockRate(config.ClockRate),
			i2cbang.WithTimeout(config.Timeout),
		),
	}
}

func (c *DS3231) Device() i2cbang.Device {
	return c.dev
}

// Seconds returns the raw BCD seconds register.
func (c *DS3231) Seconds(ctx context.Context) (byte, error) {
	buf := make([]byte, 1)
	if err := c.transport.ReadRegister(ctx, c.dev, ds3231SecondsRegister, buf); err != nil {
		return 0, fmt.Errorf("ds3231: could not read seconds: %w", err)
	}
	return buf[0], nil
}

// ZeroSeconds restarts the current minute.
func (c *DS3231) ZeroSeconds(ctx context.Context) error {
	return c.WriteRegisters(ctx, ds3231SecondsRegister, []byte{0x00})
}

// WriteRegisters writes data to consecutive registers starting at reg.
func (c *DS3231) WriteRegisters(ctx context.Context, reg byte, data []byte) error {
	if err := c.transport.WriteRegister(ctx, c.dev, uint32(reg), data); err != nil {
		return fmt.Errorf("ds3231: could not write register %#x: %w", reg, err)
	}
	return nil
}

// RawTime returns the seconds, minutes and hours registers as stored.
func (c *DS3231) RawTime(ctx context.Context) ([3]byte, error) {
	var raw [3]byte
	if err := c.transport.ReadRegister(ctx, c.dev, ds3231SecondsRegister, raw[:]); err != nil {
		return raw, fmt.Errorf("ds3231: could not read time: %w", err)
	}
	return raw, nil
}

// Time returns the time of day kept by the clock.
func (c *DS3231) Time(ctx context.Context) (time.Duration, error) {
	raw, err := c.RawTime(ctx)
	if err != nil {
		return 0, err
	}
	return DecodeTime(raw)
}

// SetTime stores the time of day in 24 hour mode. Sub-second precision is
// dropped.
func (c *DS3231) SetTime(ctx context.Context, tod time.Duration) error {
	if tod < 0 || tod >= 24*time.Hour {
		return fmt.Errorf("ds3231: time of day %s out of range", tod)
	}
	h := int(tod / time.Hour)
	m := int(tod % time.Hour / time.Minute)
	s := int(tod % time.Minute / time.Second)
	return c.WriteRegisters(ctx, ds3231SecondsRegister, []byte{toBCD(s), toBCD(m), toBCD(h)})
}

// DecodeTime converts the seconds, minutes and hours registers to a time of
// day. Both the 12 and the 24 hour modes are understood.
func DecodeTime(raw [3]byte) (time.Duration, error) {
	s, err := fromBCD(raw[0] & 0x7F)
	if err != nil || s > 59 {
		return 0, fmt.Errorf("ds3231: invalid seconds %#02x", raw[0])
	}
	m, err := fromBCD(raw[1] & 0x7F)
	if err != nil || m > 59 {
		return 0, fmt.Errorf("ds3231: invalid minutes %#02x", raw[1])
	}
	var h int
	if raw[2]&hours12h != 0 {
		h, err = fromBCD(raw[2] & 0x1F)
		if err != nil || h < 1 || h > 12 {
			return 0, fmt.Errorf("ds3231: invalid hours %#02x", raw[2])
		}
		h %= 12
		if raw[2]&hoursPM != 0 {
			h += 12
		}
	} else {
		h, err = fromBCD(raw[2] & 0x3F)
		if err != nil || h > 23 {
			return 0, fmt.Errorf("ds3231: invalid hours %#02x", raw[2])
		}
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, nil
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}

func fromBCD(b byte) (int, error) {
	hi, lo := b>>4, b&0x0F
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("invalid BCD %#02x", b)
	}
	return int(hi)*10 + int(lo), nil
}
