package i2c

import (
	"fmt"

	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/system"
)

// DigitalPinOpener hands out gobot digital pins by header id. The digital
// pins adaptor embedded in gobot platform adaptors (e.g. nanopi.NeoAdaptor)
// implements it.
type DigitalPinOpener interface {
	DigitalPin(id string) (gobot.DigitalPinner, error)
}

// DigitalLines drives the bus from two gobot digital pins. Releasing a line
// switches the pin to input and lets the board pull-up take it high, driving
// it switches the pin to output low.
type DigitalLines struct {
	scl gobot.DigitalPinner
	sda gobot.DigitalPinner
	err error
}

func NewDigitalLines(scl, sda gobot.DigitalPinner) *DigitalLines {
	return &DigitalLines{scl: scl, sda: sda}
}

// OpenDigitalLines looks the pins up on board and releases both.
func OpenDigitalLines(board DigitalPinOpener, scl, sda string) (*DigitalLines, error) {
	sclPin, err := board.DigitalPin(scl)
	if err != nil {
		return nil, fmt.Errorf("could not open SCL pin %q: %w", scl, err)
	}
	sdaPin, err := board.DigitalPin(sda)
	if err != nil {
		return nil, fmt.Errorf("could not open SDA pin %q: %w", sda, err)
	}
	l := NewDigitalLines(sclPin, sdaPin)
	l.SetSCL(true)
	l.SetSDA(true)
	return l, l.Err()
}

func (l *DigitalLines) SetSCL(high bool) {
	l.set(l.scl, "SCL", high)
}

func (l *DigitalLines) SetSDA(high bool) {
	l.set(l.sda, "SDA", high)
}

func (l *DigitalLines) SCL() bool {
	return l.read(l.scl, "SCL")
}

func (l *DigitalLines) SDA() bool {
	return l.read(l.sda, "SDA")
}

func (l *DigitalLines) set(p gobot.DigitalPinner, name string, high bool) {
	opt := system.WithPinDirectionOutput(0)
	if high {
		opt = system.WithPinDirectionInput()
	}
	if err := p.ApplyOptions(opt); err != nil {
		l.latch(name, err)
	}
}

// read reports a failed read as high so the master does not wait on a line
// it cannot see; the latched error ends the transaction.
func (l *DigitalLines) read(p gobot.DigitalPinner, name string) bool {
	v, err := p.Read()
	if err != nil {
		l.latch(name, err)
		return true
	}
	return v != 0
}

func (l *DigitalLines) latch(name string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("pin %s: %w", name, err)
	}
}

// Err returns and clears the first pin failure since the last call.
func (l *DigitalLines) Err() error {
	err := l.err
	l.err = nil
	return err
}
