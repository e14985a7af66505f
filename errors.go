package i2cbang

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means a clock-stretch wait used up the device timeout budget:
	// the target is unresponsive or SCL is stuck low.
	ErrTimeout = errors.New("clock stretch timeout")
	// ErrNoResponse means the address phase was not acknowledged.
	ErrNoResponse = errors.New("no response from device")
	// ErrProtocol means the device acknowledged its address but rejected
	// a register index or data byte.
	ErrProtocol = errors.New("byte not acknowledged")
	// ErrInit means the bus could not be brought to the idle-high state.
	ErrInit = errors.New("bus not idle")
	// ErrInvalidDevice is returned for descriptors that fail validation.
	ErrInvalidDevice = errors.New("invalid device descriptor")
	// ErrEmptyRead is returned for reads without room for a single byte. The
	// master must NACK the last byte it reads, so a read phase cannot be empty.
	ErrEmptyRead = errors.New("empty read buffer")
)

// State is the position of a transaction in its state machine.
type State uint8

const (
	StateIdle State = iota
	StateStarted
	StateAddressSent
	StateRegisterSent
	StateDataTransfer
	StateStopped
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateAddressSent:
		return "address sent"
	case StateRegisterSent:
		return "register sent"
	case StateDataTransfer:
		return "data transfer"
	case StateStopped:
		return "stopped"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// BusError reports an aborted transaction. State is the last state reached
// before the failure; the bus has been released with a stop condition.
type BusError struct {
	Op    string
	Addr  uint16
	State State
	Err   error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s %#x (%s): %s", e.Op, e.Addr, e.State, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
