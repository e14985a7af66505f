package i2c

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mklimuk/i2cbang"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
)

var (
	_ i2cbang.I2CBus      = &Bus{}
	_ i2cbang.RegisterBus = &Bus{}
	_ i2c.BusCloser       = &Bus{}
)

// Master is the transaction engine behind a Bus, implemented by
// *bitbang.Master.
type Master interface {
	WriteRegister(dev i2cbang.Device, reg uint32, data []byte) error
	ReadRegister(dev i2cbang.Device, reg uint32, buf []byte) error
	Write(dev i2cbang.Device, data []byte) error
	Read(dev i2cbang.Device, buf []byte) error
	Tx(dev i2cbang.Device, w, r []byte) error
	Reset(dev i2cbang.Device) error
}

// Bus serialises transactions of a bit-banged master so it can be shared by
// several drivers. Raw transactions use the clock rate and timeout budget of
// the bus descriptor.
type Bus struct {
	mx     sync.Mutex
	name   string
	master Master
	dev    i2cbang.Device
	closer io.Closer
}

type BusOption func(*Bus)

// WithCloser releases the pin backend when the bus is closed.
func WithCloser(c io.Closer) BusOption {
	return func(b *Bus) {
		b.closer = c
	}
}

func WithDevice(dev i2cbang.Device) BusOption {
	return func(b *Bus) {
		b.dev = dev
	}
}

func NewBus(name string, master Master, opts ...BusOption) *Bus {
	b := &Bus{
		name:   name,
		master: master,
		dev:    i2cbang.NewDevice(0, i2cbang.WithRegisterWidth(0)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) raw(addr uint16) i2cbang.Device {
	dev := b.dev
	dev.Address = addr
	dev.RegisterWidth = 0
	dev.AddressMode = i2cbang.Addr7Bit
	if addr > 0x7F {
		dev.AddressMode = i2cbang.Addr10Bit
	}
	return dev
}

func (b *Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.master.Read(b.raw(uint16(address)), buffer); err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.master.Write(b.raw(uint16(address)), buffer); err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// Release runs the bus clear procedure, freeing a target stuck mid-byte.
func (b *Bus) Release(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.master.Reset(b.dev)
}

func (b *Bus) ReadRegister(ctx context.Context, dev i2cbang.Device, reg uint32, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.master.ReadRegister(dev, reg, buffer); err != nil {
		return fmt.Errorf("could not read register %#x of %#x: %w", reg, dev.Address, err)
	}
	return nil
}

func (b *Bus) WriteRegister(ctx context.Context, dev i2cbang.Device, reg uint32, data []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.master.WriteRegister(dev, reg, data); err != nil {
		return fmt.Errorf("could not write register %#x of %#x: %w", reg, dev.Address, err)
	}
	return nil
}

// Tx implements periph's i2c.Bus. Addresses above 0x7F are sent as 10-bit.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.master.Tx(b.raw(addr), w, r)
}

func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	dev := b.dev
	dev.ClockRate = f
	if err := dev.Validate(); err != nil {
		return err
	}
	b.dev = dev
	return nil
}

func (b *Bus) String() string {
	return b.name
}

func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Register makes the bus available through periph's i2creg.Open under name.
// open is called for every Open.
func Register(name string, open func() (*Bus, error)) error {
	return i2creg.Register(name, nil, -1, func() (i2c.BusCloser, error) {
		b, err := open()
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}
