// Package sim is an in-process two-wire bus for running the bit-banged
// master without hardware.
//
// Both lines are modelled as open drain with pull-ups: a line reads high only
// when the master, every attached target and the fault injector release it.
// Targets react to the edges the master produces, the same way a real
// device's shift register does, so the master is exercised bit by bit. Time
// is virtual and advances only through Delay.
package sim

import (
	"time"
)

type Line uint8

const (
	SCL Line = iota
	SDA
)

func (l Line) String() string {
	if l == SDA {
		return "SDA"
	}
	return "SCL"
}

// Edge is a level change of a wire at a virtual time.
type Edge struct {
	At   time.Duration
	Line Line
	High bool
}

// listener receives bus conditions in the order they appear on the wires.
type listener interface {
	onStart()
	onStop()
	onRise(sda bool)
	onFall()
}

// Bus implements bitbang.Lines and bitbang.Delayer.
type Bus struct {
	now time.Duration

	masterSCL, masterSDA bool
	jamSCL, jamSDA       bool
	scl, sda             bool

	targets   []*Target
	listeners []listener

	record bool
	edges  []Edge
}

func NewBus() *Bus {
	return &Bus{
		masterSCL: true,
		masterSDA: true,
		scl:       true,
		sda:       true,
	}
}

// Attach connects targets to the bus.
func (b *Bus) Attach(targets ...*Target) {
	for _, t := range targets {
		b.targets = append(b.targets, t)
		b.listeners = append(b.listeners, t)
	}
}

// Monitor attaches a passive decoder and returns it.
func (b *Bus) Monitor() *Monitor {
	m := &Monitor{}
	b.listeners = append(b.listeners, m)
	return m
}

// RecordEdges starts keeping every wire transition. Recording is off by
// default so long running simulations do not grow without bound.
func (b *Bus) RecordEdges() {
	b.record = true
	b.edges = nil
}

func (b *Bus) Edges() []Edge {
	out := make([]Edge, len(b.edges))
	copy(out, b.edges)
	return out
}

// Jam holds a line low from outside the bus (a short or a crashed device).
func (b *Bus) Jam(line Line, low bool) {
	if line == SDA {
		b.jamSDA = low
	} else {
		b.jamSCL = low
	}
	b.update()
}

func (b *Bus) Now() time.Duration {
	return b.now
}

// Idle reports whether both wires are high.
func (b *Bus) Idle() bool {
	return b.scl && b.sda
}

// MasterReleased reports whether the master releases both of its outputs.
func (b *Bus) MasterReleased() bool {
	return b.masterSCL && b.masterSDA
}

func (b *Bus) SetSCL(high bool) {
	if high && !b.masterSCL {
		for _, t := range b.targets {
			t.clockReleased()
		}
	}
	b.masterSCL = high
	b.update()
}

func (b *Bus) SetSDA(high bool) {
	b.masterSDA = high
	b.update()
}

// SCL reads the clock wire. Every read is one polling iteration for targets
// that stretch the clock.
func (b *Bus) SCL() bool {
	for _, t := range b.targets {
		t.tick()
	}
	b.update()
	return b.scl
}

func (b *Bus) SDA() bool {
	return b.sda
}

func (b *Bus) Delay(d time.Duration) {
	b.now += d
}

func (b *Bus) levels() (bool, bool) {
	scl := b.masterSCL && !b.jamSCL
	sda := b.masterSDA && !b.jamSDA
	for _, t := range b.targets {
		scl = scl && !t.holdsSCL()
		sda = sda && !t.holdsSDA()
	}
	return scl, sda
}

// update settles the wires. Listeners may change their outputs while handling
// an edge, so the levels are recomputed until nothing moves.
func (b *Bus) update() {
	for {
		scl, sda := b.levels()
		if scl == b.scl && sda == b.sda {
			return
		}
		prevSCL, prevSDA := b.scl, b.sda
		b.scl, b.sda = scl, sda
		if b.record {
			if scl != prevSCL {
				b.edges = append(b.edges, Edge{At: b.now, Line: SCL, High: scl})
			}
			if sda != prevSDA {
				b.edges = append(b.edges, Edge{At: b.now, Line: SDA, High: sda})
			}
		}
		switch {
		case prevSCL && scl && prevSDA && !sda:
			for _, l := range b.listeners {
				l.onStart()
			}
		case prevSCL && scl && !prevSDA && sda:
			for _, l := range b.listeners {
				l.onStop()
			}
		case !prevSCL && scl:
			for _, l := range b.listeners {
				l.onRise(sda)
			}
		case prevSCL && !scl:
			for _, l := range b.listeners {
				l.onFall()
			}
		}
	}
}
