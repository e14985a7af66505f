package sim

import (
	"fmt"
)

type FrameKind uint8

const (
	FrameStart FrameKind = iota
	FrameRestart
	FrameByte
	FrameStop
)

// Frame is one decoded bus event. For bytes Ack tells whether the receiver
// pulled SDA low on the ninth clock.
type Frame struct {
	Kind  FrameKind
	Value byte
	Ack   bool
}

var (
	Start   = Frame{Kind: FrameStart}
	Restart = Frame{Kind: FrameRestart}
	Stop    = Frame{Kind: FrameStop}
)

func Ack(v byte) Frame {
	return Frame{Kind: FrameByte, Value: v, Ack: true}
}

func Nack(v byte) Frame {
	return Frame{Kind: FrameByte, Value: v}
}

func (f Frame) String() string {
	switch f.Kind {
	case FrameStart:
		return "S"
	case FrameRestart:
		return "Sr"
	case FrameStop:
		return "P"
	}
	if f.Ack {
		return fmt.Sprintf("0x%02x+A", f.Value)
	}
	return fmt.Sprintf("0x%02x+N", f.Value)
}

// Monitor decodes start, stop and acknowledged bytes from the wires without
// driving them, like a logic analyser on the bus.
type Monitor struct {
	frames []Frame
	active bool
	bits   int
	shift  byte
}

func (m *Monitor) Frames() []Frame {
	out := make([]Frame, len(m.frames))
	copy(out, m.frames)
	return out
}

func (m *Monitor) Reset() {
	m.frames = nil
}

func (m *Monitor) onStart() {
	if m.active {
		m.frames = append(m.frames, Restart)
	} else {
		m.frames = append(m.frames, Start)
	}
	m.active = true
	m.bits = 0
	m.shift = 0
}

func (m *Monitor) onStop() {
	m.frames = append(m.frames, Stop)
	m.active = false
	m.bits = 0
	m.shift = 0
}

func (m *Monitor) onRise(sda bool) {
	if !m.active {
		return
	}
	if m.bits < 8 {
		m.shift <<= 1
		if sda {
			m.shift |= 1
		}
		m.bits++
		return
	}
	m.frames = append(m.frames, Frame{Kind: FrameByte, Value: m.shift, Ack: !sda})
	m.bits = 0
	m.shift = 0
}

func (m *Monitor) onFall() {}
