package i2c

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PinLines drives the bus from two GPIO pins. Open drain is emulated:
// releasing a line turns the pin into an input with pull-up, driving it turns
// the pin into an output low.
type PinLines struct {
	scl gpio.PinIO
	sda gpio.PinIO
	err error
}

func NewPinLines(scl, sda gpio.PinIO) *PinLines {
	return &PinLines{scl: scl, sda: sda}
}

// OpenHostLines initialises the host drivers and looks the pins up by name
// (e.g. "GPIO17").
func OpenHostLines(scl, sda string) (*PinLines, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	sclPin := gpioreg.ByName(scl)
	if sclPin == nil {
		return nil, fmt.Errorf("could not find SCL pin %q", scl)
	}
	sdaPin := gpioreg.ByName(sda)
	if sdaPin == nil {
		return nil, fmt.Errorf("could not find SDA pin %q", sda)
	}
	l := NewPinLines(sclPin, sdaPin)
	l.SetSCL(true)
	l.SetSDA(true)
	return l, l.Err()
}

func (l *PinLines) SetSCL(high bool) {
	l.set(l.scl, high)
}

func (l *PinLines) SetSDA(high bool) {
	l.set(l.sda, high)
}

func (l *PinLines) SCL() bool {
	return l.scl.Read() == gpio.High
}

func (l *PinLines) SDA() bool {
	return l.sda.Read() == gpio.High
}

func (l *PinLines) set(p gpio.PinIO, high bool) {
	var err error
	if high {
		err = p.In(gpio.PullUp, gpio.NoEdge)
	} else {
		err = p.Out(gpio.Low)
	}
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("pin %s: %w", p, err)
	}
}

// Err returns and clears the first pin failure since the last call.
func (l *PinLines) Err() error {
	err := l.err
	l.err = nil
	return err
}
