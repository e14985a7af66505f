package bitbang

import (
	"time"
)

// Lines is the pin level view of the two bus wires. Both lines are open
// drain: setting a line high releases it to the pull-up, setting it low
// drives it to ground. SCL and SDA read the wire, which any device on the bus
// may be holding low.
type Lines interface {
	SetSCL(high bool)
	SetSDA(high bool)
	SCL() bool
	SDA() bool
}

// Delayer is implemented by lines that provide their own notion of time,
// e.g. a simulated bus with a virtual clock.
type Delayer interface {
	Delay(d time.Duration)
}

// LineErrer is implemented by backends whose pin operations can fail (USB
// adapters). The first failure is latched and reported after a transaction.
type LineErrer interface {
	Err() error
}

// spinDelay waits on the monotonic clock. Bit timing is far below scheduler
// resolution so short waits spin; long waits (power-up settle) sleep.
type spinDelay struct{}

func (spinDelay) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
