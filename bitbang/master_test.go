package bitbang

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/sim"
)

func newSimMaster(targets ...*sim.Target) (*sim.Bus, *sim.Monitor, *Master) {
	bus := sim.NewBus()
	bus.Attach(targets...)
	mon := bus.Monitor()
	return bus, mon, New(bus)
}

func assertFrames(t *testing.T, expected []sim.Frame, mon *sim.Monitor) {
	t.Helper()
	if diff := cmp.Diff(expected, mon.Frames()); diff != "" {
		t.Errorf("unexpected bus frames (-want +got):\n%s", diff)
	}
}

func TestMaster_SevenBitFraming(t *testing.T) {
	target := sim.NewTarget(0x68, 19, sim.WithMemory([]byte{0x42}))
	bus, mon, m := newSimMaster(target)
	dev := i2cbang.NewDevice(0x68, i2cbang.WithClockRate(400*physic.KiloHertz))

	require.NoError(t, m.WriteRegister(dev, 0x00, []byte{0x00}))
	assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xD0), sim.Ack(0x00), sim.Ack(0x00), sim.Stop}, mon)

	mon.Reset()
	target.Memory[0] = 0x42
	buf := make([]byte, 1)
	require.NoError(t, m.ReadRegister(dev, 0x00, buf))
	assert.Equal(t, []byte{0x42}, buf)
	assertFrames(t, []sim.Frame{
		sim.Start, sim.Ack(0xD0), sim.Ack(0x00),
		sim.Restart, sim.Ack(0xD1), sim.Nack(0x42),
		sim.Stop,
	}, mon)
	assert.True(t, bus.Idle())
}

func TestMaster_TenBitFraming(t *testing.T) {
	target := sim.NewTarget(0x2A5, 256, sim.WithTenBit())
	bus, mon, m := newSimMaster(target)
	dev := i2cbang.NewDevice(0x2A5, i2cbang.WithTenBitAddress())

	require.NoError(t, m.WriteRegister(dev, 0x10, []byte{0xAB}))
	assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xF4), sim.Ack(0xA5), sim.Ack(0x10), sim.Ack(0xAB), sim.Stop}, mon)

	mon.Reset()
	buf := make([]byte, 1)
	require.NoError(t, m.ReadRegister(dev, 0x10, buf))
	assert.Equal(t, []byte{0xAB}, buf)
	assertFrames(t, []sim.Frame{
		sim.Start, sim.Ack(0xF4), sim.Ack(0xA5), sim.Ack(0x10),
		sim.Restart, sim.Ack(0xF5), sim.Nack(0xAB),
		sim.Stop,
	}, mon)
	assert.True(t, bus.Idle())
}

func TestMaster_TenBitRawRead(t *testing.T) {
	target := sim.NewTarget(0x155, 4, sim.WithTenBit(), sim.WithRegisterWidth(0), sim.WithMemory([]byte{1, 2}))
	_, mon, m := newSimMaster(target)
	dev := i2cbang.NewDevice(0x155, i2cbang.WithTenBitAddress(), i2cbang.WithRegisterWidth(0))

	buf := make([]byte, 2)
	require.NoError(t, m.Read(dev, buf))
	assert.Equal(t, []byte{1, 2}, buf)
	assertFrames(t, []sim.Frame{
		sim.Start, sim.Ack(0xF2), sim.Ack(0x55),
		sim.Restart, sim.Ack(0xF3), sim.Ack(0x01), sim.Nack(0x02),
		sim.Stop,
	}, mon)
}

func TestMaster_RoundTrip(t *testing.T) {
	for _, width := range []int{1, 2, 4} {
		for _, size := range []int{1, 2, 4} {
			t.Run(fmt.Sprintf("register %d bytes payload %d bytes", width, size), func(t *testing.T) {
				target := sim.NewTarget(0x50, 256, sim.WithRegisterWidth(width))
				bus, _, m := newSimMaster(target)
				dev := i2cbang.NewDevice(0x50, i2cbang.WithRegisterWidth(width))

				payload := make([]byte, size)
				for i := range payload {
					payload[i] = byte(0xA0 + i)
				}
				require.NoError(t, m.WriteRegister(dev, 0x10, payload))
				got := make([]byte, size)
				require.NoError(t, m.ReadRegister(dev, 0x10, got))
				assert.Equal(t, payload, got)
				assert.Equal(t, payload, target.Memory[0x10:0x10+size])
				assert.True(t, bus.Idle())
			})
		}
	}
}

func TestMaster_MultiByteReadTermination(t *testing.T) {
	target := sim.NewTarget(0x68, 19, sim.WithMemory([]byte{0x10, 0x20, 0x30}))
	_, mon, m := newSimMaster(target)
	dev := i2cbang.NewDevice(0x68)

	buf := make([]byte, 3)
	require.NoError(t, m.ReadRegister(dev, 0x00, buf))
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, buf)
	assertFrames(t, []sim.Frame{
		sim.Start, sim.Ack(0xD0), sim.Ack(0x00),
		sim.Restart, sim.Ack(0xD1), sim.Ack(0x10), sim.Ack(0x20), sim.Nack(0x30),
		sim.Stop,
	}, mon)
}

func TestMaster_NoResponse(t *testing.T) {
	dev := i2cbang.NewDevice(0x68)
	ops := map[string]func(m *Master) error{
		"write register": func(m *Master) error { return m.WriteRegister(dev, 0x00, []byte{0x01}) },
		"read register":  func(m *Master) error { return m.ReadRegister(dev, 0x00, make([]byte, 2)) },
		"write":          func(m *Master) error { return m.Write(dev, []byte{0x01}) },
		"read":           func(m *Master) error { return m.Read(dev, make([]byte, 1)) },
		"probe":          func(m *Master) error { return m.Probe(dev) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			bus, mon, m := newSimMaster(sim.NewTarget(0x50, 16))
			err := op(m)
			require.Error(t, err)
			assert.ErrorIs(t, err, i2cbang.ErrNoResponse)
			assert.NotErrorIs(t, err, i2cbang.ErrTimeout)
			var berr *i2cbang.BusError
			require.True(t, errors.As(err, &berr))
			assert.Equal(t, uint16(0x68), berr.Addr)
			assert.Equal(t, i2cbang.StateStarted, berr.State)
			frames := mon.Frames()
			require.NotEmpty(t, frames)
			assert.Equal(t, sim.Stop, frames[len(frames)-1])
			assert.True(t, bus.Idle())
		})
	}
}

func TestMaster_ProtocolError(t *testing.T) {
	t.Run("data rejected", func(t *testing.T) {
		bus, mon, m := newSimMaster(sim.NewTarget(0x68, 16, sim.WithNackData()))
		err := m.WriteRegister(i2cbang.NewDevice(0x68), 0x00, []byte{0x01, 0x02})
		require.ErrorIs(t, err, i2cbang.ErrProtocol)
		var berr *i2cbang.BusError
		require.True(t, errors.As(err, &berr))
		assert.Equal(t, i2cbang.StateDataTransfer, berr.State)
		assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xD0), sim.Ack(0x00), sim.Nack(0x01), sim.Stop}, mon)
		assert.True(t, bus.Idle())
	})
	t.Run("register out of range", func(t *testing.T) {
		bus, mon, m := newSimMaster(sim.NewTarget(0x68, 16))
		err := m.ReadRegister(i2cbang.NewDevice(0x68), 0x20, make([]byte, 1))
		require.ErrorIs(t, err, i2cbang.ErrProtocol)
		assert.NotErrorIs(t, err, i2cbang.ErrNoResponse)
		var berr *i2cbang.BusError
		require.True(t, errors.As(err, &berr))
		assert.Equal(t, i2cbang.StateAddressSent, berr.State)
		assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xD0), sim.Nack(0x20), sim.Stop}, mon)
		assert.True(t, bus.Idle())
	})
}

func TestMaster_EmptyRead(t *testing.T) {
	bus, mon, m := newSimMaster(sim.NewTarget(0x68, 16))
	dev := i2cbang.NewDevice(0x68)

	assert.ErrorIs(t, m.ReadRegister(dev, 0, nil), i2cbang.ErrEmptyRead)
	assert.ErrorIs(t, m.Read(dev, []byte{}), i2cbang.ErrEmptyRead)
	assert.Empty(t, mon.Frames(), "an empty read must not touch the bus")
	assert.True(t, bus.Idle())

	// the next transaction starts from an idle bus
	require.NoError(t, m.Probe(dev))
	assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xD0), sim.Stop}, mon)
}

func TestMaster_ClockStretching(t *testing.T) {
	const budget = 100

	t.Run("within budget", func(t *testing.T) {
		target := sim.NewTarget(0x68, 16, sim.WithStretch(budget))
		bus, _, m := newSimMaster(target)
		dev := i2cbang.NewDevice(0x68, i2cbang.WithTimeout(budget))
		require.NoError(t, m.WriteRegister(dev, 0x02, []byte{0x11, 0x22}))
		buf := make([]byte, 2)
		require.NoError(t, m.ReadRegister(dev, 0x02, buf))
		assert.Equal(t, []byte{0x11, 0x22}, buf)
		assert.True(t, bus.Idle())
	})

	t.Run("beyond budget", func(t *testing.T) {
		target := sim.NewTarget(0x68, 16, sim.WithStretch(budget+10))
		bus, mon, m := newSimMaster(target)
		dev := i2cbang.NewDevice(0x68, i2cbang.WithTimeout(budget))
		err := m.WriteRegister(dev, 0x02, []byte{0x11})
		require.ErrorIs(t, err, i2cbang.ErrTimeout)
		assert.NotErrorIs(t, err, i2cbang.ErrNoResponse)
		assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0xD0), sim.Stop}, mon)
		assert.True(t, bus.Idle(), "lines must be released after a timeout")
		assert.True(t, bus.MasterReleased())
		assert.Equal(t, byte(0), target.Memory[0x02])
	})

	t.Run("within budget while reading", func(t *testing.T) {
		target := sim.NewTarget(0x68, 16, sim.WithReadStretch(budget), sim.WithMemory([]byte{0, 0, 0x11, 0x22}))
		bus, _, m := newSimMaster(target)
		dev := i2cbang.NewDevice(0x68, i2cbang.WithTimeout(budget))
		buf := make([]byte, 2)
		require.NoError(t, m.ReadRegister(dev, 0x02, buf))
		assert.Equal(t, []byte{0x11, 0x22}, buf)
		assert.True(t, bus.Idle())
	})

	t.Run("beyond budget while reading", func(t *testing.T) {
		target := sim.NewTarget(0x68, 16, sim.WithReadStretch(budget+10), sim.WithMemory([]byte{0, 0, 0x11}))
		bus, mon, m := newSimMaster(target)
		dev := i2cbang.NewDevice(0x68, i2cbang.WithTimeout(budget))
		buf := make([]byte, 1)
		err := m.ReadRegister(dev, 0x02, buf)
		require.ErrorIs(t, err, i2cbang.ErrTimeout)
		var busErr *i2cbang.BusError
		require.ErrorAs(t, err, &busErr)
		assert.Equal(t, i2cbang.StateDataTransfer, busErr.State)
		// the target is clocked out of the byte it was sending before the stop
		assertFrames(t, []sim.Frame{
			sim.Start, sim.Ack(0xD0), sim.Ack(0x02),
			sim.Restart, sim.Ack(0xD1),
			sim.Restart, sim.Stop,
		}, mon)
		assert.True(t, bus.Idle(), "lines must be released after a timeout")
		assert.True(t, bus.MasterReleased())

		target.ReadStretch = 0
		require.NoError(t, m.ReadRegister(dev, 0x02, buf))
		assert.Equal(t, []byte{0x11}, buf)
	})
}

func TestMaster_InvalidDevice(t *testing.T) {
	_, mon, m := newSimMaster(sim.NewTarget(0x68, 16))
	tests := []i2cbang.Device{
		i2cbang.NewDevice(0x80),
		i2cbang.NewDevice(0x400, i2cbang.WithTenBitAddress()),
		i2cbang.NewDevice(0x68, i2cbang.WithRegisterWidth(5)),
		i2cbang.NewDevice(0x68, i2cbang.WithClockRate(2*physic.MegaHertz)),
		i2cbang.NewDevice(0x68, i2cbang.WithTimeout(0)),
	}
	for _, dev := range tests {
		t.Run(dev.String(), func(t *testing.T) {
			err := m.WriteRegister(dev, 0, []byte{0})
			assert.ErrorIs(t, err, i2cbang.ErrInvalidDevice)
		})
	}
	assert.Empty(t, mon.Frames(), "invalid descriptors must not touch the bus")
}

func TestMaster_Tx(t *testing.T) {
	target := sim.NewTarget(0x3C, 8, sim.WithMemory([]byte{9, 8, 7, 6}))
	_, mon, m := newSimMaster(target)
	dev := i2cbang.NewDevice(0x3C, i2cbang.WithRegisterWidth(0))

	r := make([]byte, 2)
	require.NoError(t, m.Tx(dev, []byte{0x01}, r))
	assert.Equal(t, []byte{8, 7}, r)
	assertFrames(t, []sim.Frame{
		sim.Start, sim.Ack(0x78), sim.Ack(0x01),
		sim.Restart, sim.Ack(0x79), sim.Ack(0x08), sim.Nack(0x07),
		sim.Stop,
	}, mon)

	mon.Reset()
	require.NoError(t, m.Tx(dev, nil, r))
	assert.Equal(t, []byte{6, 0}, r)
	assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0x79), sim.Ack(0x06), sim.Nack(0x00), sim.Stop}, mon)

	mon.Reset()
	require.NoError(t, m.Tx(dev, nil, nil))
	assertFrames(t, []sim.Frame{sim.Start, sim.Ack(0x78), sim.Stop}, mon)
}

func TestMaster_BitTiming(t *testing.T) {
	rates := []physic.Frequency{
		10 * physic.KiloHertz,
		100 * physic.KiloHertz,
		400 * physic.KiloHertz,
		physic.MegaHertz,
	}
	for _, rate := range rates {
		t.Run(rate.String(), func(t *testing.T) {
			bus, _, m := newSimMaster(sim.NewTarget(0x68, 16))
			dev := i2cbang.NewDevice(0x68, i2cbang.WithClockRate(rate))
			half := rate.Period() / 2

			bus.RecordEdges()
			require.NoError(t, m.WriteRegister(dev, 0x01, []byte{0x5A}))

			var high []time.Duration
			var rise time.Duration
			rising := false
			for _, e := range bus.Edges() {
				if e.Line != sim.SCL {
					continue
				}
				if e.High {
					rise, rising = e.At, true
					continue
				}
				if rising {
					high = append(high, e.At-rise)
					rising = false
				}
			}
			// address, register and data byte, 9 clocks each
			require.Len(t, high, 27)
			for i, d := range high {
				assert.Equal(t, half, d, "clock %d", i)
			}
		})
	}
}

func TestMaster_Init(t *testing.T) {
	dev := i2cbang.NewDevice(0x68)

	t.Run("idle bus", func(t *testing.T) {
		bus, mon, m := newSimMaster()
		require.NoError(t, m.Init(dev))
		assert.True(t, bus.Idle())
		assert.Empty(t, mon.Frames())
		assert.Equal(t, DefaultSettle, bus.Now())
	})

	t.Run("jammed lines", func(t *testing.T) {
		for _, line := range []sim.Line{sim.SCL, sim.SDA} {
			bus, _, m := newSimMaster()
			bus.Jam(line, true)
			err := m.Init(dev)
			assert.ErrorIs(t, err, i2cbang.ErrInit, line.String())
			bus.Jam(line, false)
			assert.NoError(t, m.Init(dev), line.String())
		}
	})

	t.Run("target left mid byte", func(t *testing.T) {
		bus, _, m := newSimMaster(sim.NewTarget(0x68, 16))
		p := m.phy(dev)
		require.NoError(t, p.start())
		ack, err := p.writeByte(0xD1)
		require.NoError(t, err)
		require.True(t, ack)
		// the target now drives the MSB of a zero byte
		require.False(t, bus.SDA())

		require.NoError(t, m.Init(dev))
		assert.True(t, bus.Idle())
		require.NoError(t, m.Probe(dev))
	})
}

type failingLines struct {
	*sim.Bus
	err error
}

func (l *failingLines) Err() error {
	return l.err
}

func TestMaster_LineBackendError(t *testing.T) {
	bus := sim.NewBus()
	bus.Attach(sim.NewTarget(0x68, 16))
	lines := &failingLines{Bus: bus, err: errors.New("usb write failed")}
	m := New(lines)
	err := m.WriteRegister(i2cbang.NewDevice(0x68), 0, []byte{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usb write failed")
}

func TestSpinDelay(t *testing.T) {
	start := time.Now()
	spinDelay{}.Delay(50 * time.Microsecond)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Microsecond)
}
