package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")
var ErrNotFound = errors.New("MCP2221 device not found")

// HIDDevice is an open HID interface of the chip.
type HIDDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Opener returns an open HID interface of the chip.
type Opener func() (HIDDevice, error)

// Enumerate lists the MCP2221 chips attached to the host.
func Enumerate() []hid.DeviceInfo {
	return hid.Enumerate(VendorID, ProductID)
}

// OpenIndex opens the chip at position index of Enumerate. A negative index
// requires exactly one chip to be attached.
func OpenIndex(index int) Opener {
	return func() (HIDDevice, error) {
		devs := Enumerate()
		if len(devs) == 0 {
			return nil, ErrNotFound
		}
		if index < 0 {
			if len(devs) > 1 {
				return nil, fmt.Errorf("ambiguous device identification: %d devices attached", len(devs))
			}
			index = 0
		}
		if index >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", index)
		}
		dev, err := devs[index].Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device: %w", err)
		}
		return dev, nil
	}
}

type MCP2221 struct {
	mx           sync.Mutex
	open         Opener
	dev          HIDDevice
	request      []byte
	response     []byte
	responseWait time.Duration
}

type Option func(*MCP2221)

func WithOpener(o Opener) Option {
	return func(d *MCP2221) {
		d.open = o
	}
}

// WithResponseWait sets the pause between a command and its response read.
func WithResponseWait(wait time.Duration) Option {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent"`
	ReadPending            int    `yaml:"read_pending"`
}

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEF
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

func (m GPIOMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// This is alternate function of GPIO0
	GPIO0LedUartRx GPIODesignation = 0b00000001
	// This is the dedicated function operation of GPIO0
	GPIO0SSPND GPIODesignation = 0b00000010
	// This is the dedicated function of GPIO1
	GPIO1ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO1
	GPIO1ADC1 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO1
	GPIO1LedUartTx GPIODesignation = 0b00000011
	// This is the alternate function 2 of GPIO1
	GPIO1InterruptDetection GPIODesignation = 0b00000100
	// This is the dedicated function of GPIO2
	GPIO2ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO2
	GPIO2ADC2 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO2
	GPIO2DAC1 GPIODesignation = 0b00000011
	// This is the dedicated function of GPIO3
	GPIO3LEDI2C GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO3
	GPIO3ADC3 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO3
	GPIO3DAC2 GPIODesignation = 0b00000011
)

const gpioModeMask = 0b00001000
const gpioOperationMask = 0b00000111

// GPIOPins is the number of general purpose pins, GP0 to GP3.
const GPIOPins = 4

type GPIOValue struct {
	Mode  GPIOMode `yaml:"mode"`
	Value byte     `yaml:"value"`
}

type MCP2221GPIOValues [GPIOPins]GPIOValue

type GPIOParameter struct {
	Mode        GPIOMode        `yaml:"mode"`
	Designation GPIODesignation `yaml:"designation"`
}

type MCP2221GPIOParameters [GPIOPins]GPIOParameter

func (p GPIOParameter) encode() byte {
	return byte(p.Designation)&gpioOperationMask | byte(p.Mode)&gpioModeMask
}

func decodeGPIOParameter(b byte) GPIOParameter {
	return GPIOParameter{
		Mode:        GPIOMode(b & gpioModeMask),
		Designation: GPIODesignation(b & gpioOperationMask),
	}
}

func NewMCP2221(opts ...Option) *MCP2221 {
	d := &MCP2221{
		open:         OpenIndex(-1),
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open keeps the HID interface open until Close. Without it every command
// opens and closes the device.
func (d *MCP2221) Open() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev != nil {
		return nil
	}
	dev, err := d.open()
	if err != nil {
		return err
	}
	d.dev = dev
	return nil
}

func (d *MCP2221) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return err
}

// SetGPIOParameters changes the pin functions in SRAM. The power-up defaults
// kept in flash are not touched.
func (d *MCP2221) SetGPIOParameters(ctx context.Context, params MCP2221GPIOParameters) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0x60
	// alter GPIO configuration
	d.request[7] = 0x80
	for i, p := range params {
		d.request[8+i] = p.encode()
	}
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set SRAM settings command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return ErrCommandFailed
	}
	return nil
}

// GPIOParameters returns the pin functions currently in effect.
func (d *MCP2221) GPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0x61
	err := d.send(ctx, true)
	if err != nil {
		return MCP2221GPIOParameters{}, fmt.Errorf("get SRAM settings command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return MCP2221GPIOParameters{}, ErrCommandFailed
	}
	var params MCP2221GPIOParameters
	for i := range params {
		params[i] = decodeGPIOParameter(d.response[22+i])
	}
	return params, nil
}

// GetGPIOParameters returns the power-up pin functions stored in flash.
func (d *MCP2221) GetGPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0xB0
	d.request[1] = 0x01
	err := d.send(ctx, true)
	if err != nil {
		return MCP2221GPIOParameters{}, fmt.Errorf("get GP parameters command write failed: %w", err)
	}
	// read could not be performed
	if d.response[1] == 0x01 {
		return MCP2221GPIOParameters{}, ErrCommandUnsupported
	}
	var params MCP2221GPIOParameters
	for i := range params {
		params[i] = decodeGPIOParameter(d.response[4+i])
	}
	return params, nil
}

// WriteGPIO sets the direction of pin and, for outputs, its level.
func (d *MCP2221) WriteGPIO(ctx context.Context, pin int, mode GPIOMode, value byte) error {
	if pin < 0 || pin >= GPIOPins {
		return fmt.Errorf("invalid GPIO pin %d", pin)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0x50
	off := 2 + 4*pin
	d.request[off] = 0x01
	d.request[off+1] = value & 0x01
	d.request[off+2] = 0x01
	if mode == GPIOModeIn {
		d.request[off+3] = 0x01
	}
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set GPIO values command write failed: %w", err)
	}
	if d.response[1] != 0x00 {
		return ErrCommandFailed
	}
	return nil
}

func (d *MCP2221) ReadGPIO(ctx context.Context) (MCP2221GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0x51
	err := d.send(ctx, true)
	var res MCP2221GPIOValues
	if err != nil {
		return res, fmt.Errorf("read GPIO values command write failed: %w", err)
	}
	// read could not be performed
	if d.response[1] == 0x01 {
		return res, ErrCommandFailed
	}
	for i := range res {
		res[i].Mode = GPIOModeNoOperation
		res[i].Value = d.response[2+2*i]
		if dir := d.response[3+2*i]; dir != byte(GPIOModeNoOperation) {
			res[i].Mode = GPIOMode(dir << 3)
		}
	}
	return res, nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = 0x10
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) send(ctx context.Context, response bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev := d.dev
	if dev == nil {
		var err error
		dev, err = d.open()
		if err != nil {
			return err
		}
		defer func() {
			if err := dev.Close(); err != nil {
				slog.Debug("could not close adapter", "error", err)
			}
		}()
	}
	slog.Debug("sending message to adapter", "command", d.request[0])
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	if d.responseWait > 0 {
		time.Sleep(d.responseWait)
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short read: %d", n)
	}
	if d.response[0] != d.request[0] {
		return fmt.Errorf("response to %#02x carries command %#02x", d.request[0], d.response[0])
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
