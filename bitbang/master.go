// Package bitbang implements an I2C master on two general purpose lines.
//
// The master drives start and stop conditions, clocks bits in and out,
// checks acknowledges and bounds clock stretching with a polling budget taken
// from the device descriptor. It never retries: failed transactions are
// aborted with a stop condition and reported as *i2cbang.BusError.
//
// A Master owns its lines and is not safe for concurrent use; wrap it with
// i2c.Bus when several goroutines share a bus.
package bitbang

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/i2cbang"
)

// DefaultSettle is the wait after releasing the lines in Init. Targets see
// the low to high transition of the pins and need time to ignore it.
const DefaultSettle = 250 * time.Millisecond

// busClearPulses is the number of clocks needed to walk a target out of a
// byte it is transmitting (8 data bits and the acknowledge).
const busClearPulses = 9

type Master struct {
	lines  Lines
	delay  Delayer
	log    *slog.Logger
	settle time.Duration
	scan   scanConfig
}

type Option func(*Master)

func WithLogger(log *slog.Logger) Option {
	return func(m *Master) {
		m.log = log
	}
}

// WithDelayer overrides the timing source. By default lines implementing
// Delayer are used, otherwise a monotonic spin wait.
func WithDelayer(d Delayer) Option {
	return func(m *Master) {
		m.delay = d
	}
}

func WithSettle(d time.Duration) Option {
	return func(m *Master) {
		m.settle = d
	}
}

func New(lines Lines, opts ...Option) *Master {
	m := &Master{
		lines:  lines,
		log:    slog.Default(),
		settle: DefaultSettle,
		scan:   defaultScanConfig(),
	}
	if d, ok := lines.(Delayer); ok {
		m.delay = d
	} else {
		m.delay = spinDelay{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Master) phy(dev i2cbang.Device) phy {
	return phy{
		lines:  m.lines,
		delay:  m.delay,
		half:   dev.HalfPeriod(),
		budget: dev.Timeout,
	}
}

// Init releases both lines, waits for the targets to settle and makes sure
// the bus is idle. A target left mid-byte by an earlier reset is clocked out.
func (m *Master) Init(dev i2cbang.Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}
	m.lines.SetSCL(true)
	m.lines.SetSDA(true)
	m.delay.Delay(m.settle)
	if err := m.clear(dev); err != nil {
		return fmt.Errorf("could not init bus: %w", err)
	}
	return m.lineErr()
}

// Reset performs the bus clear procedure of Init without the settle wait.
func (m *Master) Reset(dev i2cbang.Device) error {
	if err := dev.Validate(); err != nil {
		return err
	}
	if err := m.clear(dev); err != nil {
		return fmt.Errorf("could not reset bus: %w", err)
	}
	return m.lineErr()
}

func (m *Master) clear(dev i2cbang.Device) error {
	p := m.phy(dev)
	m.lines.SetSDA(true)
	if err := p.releaseSCL(); err != nil {
		return fmt.Errorf("%w: clock held low", i2cbang.ErrInit)
	}
	if m.lines.SDA() {
		return nil
	}
	m.log.Debug("data line held low, clocking bus clear")
	for i := 0; i < busClearPulses && !m.lines.SDA(); i++ {
		m.lines.SetSCL(false)
		m.delay.Delay(p.half)
		if err := p.releaseSCL(); err != nil {
			return fmt.Errorf("%w: clock held low", i2cbang.ErrInit)
		}
		m.delay.Delay(p.half)
	}
	if !m.lines.SDA() {
		return fmt.Errorf("%w: data held low", i2cbang.ErrInit)
	}
	// start and stop with the clock kept high: pulling SCL low first would
	// make a transmitting target shift out its next bit
	m.lines.SetSDA(false)
	m.delay.Delay(p.half)
	m.lines.SetSDA(true)
	m.delay.Delay(p.half)
	if !m.lines.SCL() || !m.lines.SDA() {
		return fmt.Errorf("%w: lines not released after stop", i2cbang.ErrInit)
	}
	return nil
}

// WriteRegister writes data to the device starting at register reg. With a
// register width of 0 the register phase is skipped.
func (m *Master) WriteRegister(dev i2cbang.Device, reg uint32, data []byte) error {
	return m.run("write register", dev, func(t *txn) error {
		if err := t.address(false); err != nil {
			return err
		}
		if err := t.register(reg); err != nil {
			return err
		}
		return t.write(data)
	})
}

// ReadRegister selects register reg with a write, turns the bus around with
// a repeated start and fills buf. An empty buf is rejected before the bus is
// touched.
func (m *Master) ReadRegister(dev i2cbang.Device, reg uint32, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("i2c read register: %w", i2cbang.ErrEmptyRead)
	}
	return m.run("read register", dev, func(t *txn) error {
		if err := t.address(false); err != nil {
			return err
		}
		if err := t.register(reg); err != nil {
			return err
		}
		if err := t.restart(); err != nil {
			return err
		}
		return t.read(buf)
	})
}

// Write sends data without a register phase.
func (m *Master) Write(dev i2cbang.Device, data []byte) error {
	return m.run("write", dev, func(t *txn) error {
		if err := t.address(false); err != nil {
			return err
		}
		return t.write(data)
	})
}

// Read fills buf without a register phase.
func (m *Master) Read(dev i2cbang.Device, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("i2c read: %w", i2cbang.ErrEmptyRead)
	}
	return m.run("read", dev, func(t *txn) error {
		if err := t.addressRead(); err != nil {
			return err
		}
		return t.read(buf)
	})
}

// Tx writes w and then reads r in one transaction, joined by a repeated
// start. Either side may be empty; with both empty it is a probe.
func (m *Master) Tx(dev i2cbang.Device, w, r []byte) error {
	return m.run("tx", dev, func(t *txn) error {
		if len(w) == 0 && len(r) > 0 {
			if err := t.addressRead(); err != nil {
				return err
			}
			return t.read(r)
		}
		if err := t.address(false); err != nil {
			return err
		}
		if err := t.write(w); err != nil {
			return err
		}
		if len(r) == 0 {
			return nil
		}
		if err := t.restart(); err != nil {
			return err
		}
		return t.read(r)
	})
}

// Probe sends the address phase of a write and stops, whatever the outcome.
// A nil error means the device acknowledged.
func (m *Master) Probe(dev i2cbang.Device) error {
	return m.run("probe", dev, func(t *txn) error {
		return t.address(false)
	})
}

func (m *Master) run(op string, dev i2cbang.Device, fn func(t *txn) error) error {
	if err := dev.Validate(); err != nil {
		return fmt.Errorf("i2c %s: %w", op, err)
	}
	t := txn{phy: m.phy(dev), dev: dev}
	err := t.begin()
	if err == nil {
		err = fn(&t)
	}
	if err != nil {
		last := t.state
		t.state = i2cbang.StateAborted
		if serr := t.stop(); serr != nil {
			m.log.Debug("stop after abort failed", "op", op, "addr", dev.Address, "error", serr)
		}
		// a target cut off while transmitting still drives its current bit
		if !m.lines.SDA() {
			if cerr := m.clear(dev); cerr != nil {
				m.log.Debug("bus clear after abort failed", "op", op, "addr", dev.Address, "error", cerr)
			}
		}
		// a failing backend makes every later symptom meaningless
		if lerr := m.lineErr(); lerr != nil {
			err = lerr
		}
		m.log.Debug("transaction aborted", "op", op, "addr", dev.Address, "state", last, "error", err)
		return &i2cbang.BusError{Op: op, Addr: dev.Address, State: last, Err: err}
	}
	if err := t.stop(); err != nil {
		return &i2cbang.BusError{Op: op, Addr: dev.Address, State: t.state, Err: err}
	}
	t.state = i2cbang.StateStopped
	if err := m.lineErr(); err != nil {
		return &i2cbang.BusError{Op: op, Addr: dev.Address, State: t.state, Err: err}
	}
	return nil
}

func (m *Master) lineErr() error {
	if e, ok := m.lines.(LineErrer); ok {
		if err := e.Err(); err != nil {
			return fmt.Errorf("line backend failure: %w", err)
		}
	}
	return nil
}

// txn is one transaction in flight.
type txn struct {
	phy
	dev   i2cbang.Device
	state i2cbang.State
}

func (t *txn) begin() error {
	if err := t.start(); err != nil {
		return err
	}
	t.state = i2cbang.StateStarted
	return nil
}

func (t *txn) address(read bool) error {
	b, n := t.dev.AddressBytes(read)
	if err := t.sendAddress(b[:n]); err != nil {
		return err
	}
	t.state = i2cbang.StateAddressSent
	return nil
}

// addressRead selects the device for reading right after the start
// condition. A 10-bit target is addressed for writing first and then turned
// around with a repeated start, as the header byte alone is ambiguous.
func (t *txn) addressRead() error {
	if t.dev.AddressMode == i2cbang.Addr10Bit {
		if err := t.address(false); err != nil {
			return err
		}
		return t.restart()
	}
	return t.address(true)
}

func (t *txn) restart() error {
	if err := t.start(); err != nil {
		return err
	}
	b, n := t.dev.RestartAddressBytes()
	if err := t.sendAddress(b[:n]); err != nil {
		return err
	}
	t.state = i2cbang.StateAddressSent
	return nil
}

func (t *txn) sendAddress(b []byte) error {
	for _, v := range b {
		ack, err := t.writeByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return i2cbang.ErrNoResponse
		}
	}
	return nil
}

func (t *txn) register(reg uint32) error {
	b, n := t.dev.RegisterBytes(reg)
	if n == 0 {
		return nil
	}
	for _, v := range b[:n] {
		ack, err := t.writeByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return fmt.Errorf("%w: register index %#x", i2cbang.ErrProtocol, reg)
		}
	}
	t.state = i2cbang.StateRegisterSent
	return nil
}

func (t *txn) write(data []byte) error {
	for i, v := range data {
		t.state = i2cbang.StateDataTransfer
		ack, err := t.writeByte(v)
		if err != nil {
			return err
		}
		if !ack {
			return fmt.Errorf("%w: data byte %d", i2cbang.ErrProtocol, i)
		}
	}
	return nil
}

// read acknowledges every byte but the last one, which is NACKed to tell the
// target the transfer is over.
func (t *txn) read(buf []byte) error {
	for i := range buf {
		t.state = i2cbang.StateDataTransfer
		b, err := t.readByte(i < len(buf)-1)
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}
