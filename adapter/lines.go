package adapter

import (
	"context"
	"fmt"
)

// GPIOLines bit-bangs the bus on two GP pins of an MCP2221. A released line
// is a GPIO input floating on the external pull-up, a driven line is an
// output low. Every level change and sample is a USB round trip, so the
// achieved clock is far below the descriptor's rate.
type GPIOLines struct {
	ctx context.Context
	dev *MCP2221
	scl int
	sda int
	err error
}

// NewGPIOLines switches the scl and sda pins to GPIO operation and releases
// them. The other pins keep their function.
func NewGPIOLines(ctx context.Context, dev *MCP2221, scl, sda int) (*GPIOLines, error) {
	if scl == sda || scl < 0 || sda < 0 || scl >= GPIOPins || sda >= GPIOPins {
		return nil, fmt.Errorf("invalid pin pair GP%d/GP%d", scl, sda)
	}
	params, err := dev.GPIOParameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read pin functions: %w", err)
	}
	params[scl] = GPIOParameter{Mode: GPIOModeIn, Designation: GPIOOperation}
	params[sda] = GPIOParameter{Mode: GPIOModeIn, Designation: GPIOOperation}
	if err := dev.SetGPIOParameters(ctx, params); err != nil {
		return nil, fmt.Errorf("could not switch GP%d/GP%d to GPIO: %w", scl, sda, err)
	}
	return &GPIOLines{ctx: ctx, dev: dev, scl: scl, sda: sda}, nil
}

func (l *GPIOLines) SetSCL(high bool) {
	l.set(l.scl, high)
}

func (l *GPIOLines) SetSDA(high bool) {
	l.set(l.sda, high)
}

func (l *GPIOLines) SCL() bool {
	return l.level(l.scl)
}

func (l *GPIOLines) SDA() bool {
	return l.level(l.sda)
}

func (l *GPIOLines) set(pin int, high bool) {
	if l.err != nil {
		return
	}
	mode := GPIOModeOut
	if high {
		mode = GPIOModeIn
	}
	if err := l.dev.WriteGPIO(l.ctx, pin, mode, 0); err != nil {
		l.err = fmt.Errorf("GP%d: %w", pin, err)
	}
}

// level reads high once the adapter failed, which lets a running transaction
// run to its end without spinning on the clock guard.
func (l *GPIOLines) level(pin int) bool {
	if l.err != nil {
		return true
	}
	values, err := l.dev.ReadGPIO(l.ctx)
	if err != nil {
		l.err = fmt.Errorf("GP%d: %w", pin, err)
		return true
	}
	return values[pin].Value != 0
}

// Err returns and clears the first adapter failure since the last call.
func (l *GPIOLines) Err() error {
	err := l.err
	l.err = nil
	return err
}
