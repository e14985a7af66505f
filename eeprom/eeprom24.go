package eeprom

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mklimuk/i2cbang"
)

// EEPROM24Config describes a member of the 24Cxx family. Parts with a one
// byte word address use the low bits of the device address as block select,
// one address per 256 bytes.
type EEPROM24Config struct {
	Size         uint
	PageSize     uint
	AddressBytes int
	WriteDelay   time.Duration
}

var (
	Conf24C02  = EEPROM24Config{Size: 256, PageSize: 8, AddressBytes: 1, WriteDelay: 5 * time.Millisecond}
	Conf24C16  = EEPROM24Config{Size: 2048, PageSize: 16, AddressBytes: 1, WriteDelay: 5 * time.Millisecond}
	Conf24C32  = EEPROM24Config{Size: 4096, PageSize: 32, AddressBytes: 2, WriteDelay: 10 * time.Millisecond}
	Conf24C256 = EEPROM24Config{Size: 32768, PageSize: 64, AddressBytes: 2, WriteDelay: 5 * time.Millisecond}
)

const blockSize = 256

// EEPROM24 exposes the memory array as a file: reads and writes continue at
// the position left by the previous call.
type EEPROM24 struct {
	EEPROM24Config
	ctx   context.Context
	bus   i2cbang.RegisterBus
	base  i2cbang.Device
	p     uint
	sleep func(time.Duration)
}

var _ io.ReadWriteSeeker = &EEPROM24{}

// NewEEPROM24 returns the EEPROM at address. dev carries the bus settings
// (clock rate, timeout) and is re-addressed for every transfer. ctx bounds
// all transfers made through the io interfaces.
func NewEEPROM24(ctx context.Context, bus i2cbang.RegisterBus, dev i2cbang.Device, conf EEPROM24Config) (*EEPROM24, error) {
	if conf.Size == 0 || conf.PageSize == 0 || conf.PageSize&(conf.PageSize-1) != 0 {
		return nil, fmt.Errorf("invalid EEPROM geometry: size %d, page %d", conf.Size, conf.PageSize)
	}
	if dev.AddressMode != i2cbang.Addr7Bit {
		return nil, errors.New("only EEPROMs with 7 bit device addresses are supported")
	}
	switch conf.AddressBytes {
	case 1:
		blocks := (conf.Size + blockSize - 1) / blockSize
		if blocks > 8 {
			return nil, fmt.Errorf("%d bytes do not fit one byte addressing", conf.Size)
		}
		if uint(dev.Address)&(blocks-1) != 0 {
			return nil, fmt.Errorf("address %#x overlaps the block select bits", dev.Address)
		}
	case 2:
		if conf.Size > 1<<16 {
			return nil, fmt.Errorf("%d bytes do not fit two byte addressing", conf.Size)
		}
	default:
		return nil, fmt.Errorf("unsupported word address width %d", conf.AddressBytes)
	}
	dev.RegisterWidth = conf.AddressBytes
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	return &EEPROM24{
		EEPROM24Config: conf,
		ctx:            ctx,
		bus:            bus,
		base:           dev,
		sleep:          time.Sleep,
	}, nil
}

// locate returns the device and word address holding byte p.
func (e *EEPROM24) locate(p uint) (i2cbang.Device, uint32) {
	dev := e.base
	if e.AddressBytes == 1 {
		dev.Address += uint16(p / blockSize)
		return dev, uint32(p % blockSize)
	}
	return dev, uint32(p)
}

func (e *EEPROM24) Read(b []byte) (int, error) {
	if e.p >= e.Size {
		return 0, io.EOF
	}
	n := 0
	for n < len(b) && e.p < e.Size {
		chunk := uint(len(b) - n)
		if rest := e.Size - e.p; chunk > rest {
			chunk = rest
		}
		// one byte parts do not carry a sequential read over to the next block
		if e.AddressBytes == 1 {
			if rest := blockSize - e.p%blockSize; chunk > rest {
				chunk = rest
			}
		}
		dev, reg := e.locate(e.p)
		if err := e.bus.ReadRegister(e.ctx, dev, reg, b[n:n+int(chunk)]); err != nil {
			return n, fmt.Errorf("eeprom: read at %#x failed: %w", e.p, err)
		}
		e.p += chunk
		n += int(chunk)
	}
	return n, nil
}

// Write splits b at page boundaries and waits the write cycle after every
// page. Bytes beyond the end of the array are not written.
func (e *EEPROM24) Write(b []byte) (int, error) {
	n := 0
	for n < len(b) && e.p < e.Size {
		// address in page
		aip := e.p & (e.PageSize - 1)
		nip := uint(len(b) - n)
		if nip > e.PageSize-aip {
			nip = e.PageSize - aip
		}
		if rest := e.Size - e.p; nip > rest {
			nip = rest
		}
		dev, reg := e.locate(e.p)
		if err := e.bus.WriteRegister(e.ctx, dev, reg, b[n:n+int(nip)]); err != nil {
			return n, fmt.Errorf("eeprom: write at %#x failed: %w", e.p, err)
		}
		e.sleep(e.WriteDelay)
		e.p += nip
		n += int(nip)
	}
	if n < len(b) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (e *EEPROM24) Seek(offset int64, whence int) (int64, error) {
	var np int64
	switch whence {
	case io.SeekStart:
		np = offset
	case io.SeekCurrent:
		np = int64(e.p) + offset
	case io.SeekEnd:
		np = int64(e.Size) + offset
	default:
		return int64(e.p), errors.New("eeprom: invalid whence")
	}
	if np < 0 {
		return int64(e.p), errors.New("eeprom: negative position")
	}
	if np > int64(e.Size) {
		return int64(e.p), errors.New("eeprom: position beyond end of array")
	}
	e.p = uint(np)
	return np, nil
}
