package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/bitbang"
	"github.com/mklimuk/i2cbang/sim"
)

type MockMaster struct {
	mock.Mock
}

func (m *MockMaster) WriteRegister(dev i2cbang.Device, reg uint32, data []byte) error {
	return m.Called(dev, reg, data).Error(0)
}

func (m *MockMaster) ReadRegister(dev i2cbang.Device, reg uint32, buf []byte) error {
	return m.Called(dev, reg, buf).Error(0)
}

func (m *MockMaster) Write(dev i2cbang.Device, data []byte) error {
	return m.Called(dev, data).Error(0)
}

func (m *MockMaster) Read(dev i2cbang.Device, buf []byte) error {
	return m.Called(dev, buf).Error(0)
}

func (m *MockMaster) Tx(dev i2cbang.Device, w, r []byte) error {
	return m.Called(dev, w, r).Error(0)
}

func (m *MockMaster) Reset(dev i2cbang.Device) error {
	return m.Called(dev).Error(0)
}

func newSimBus(targets ...*sim.Target) (*Bus, *sim.Bus) {
	lines := sim.NewBus()
	lines.Attach(targets...)
	return NewBus("sim", bitbang.New(lines)), lines
}

func TestBus_AddressableReadWrite(t *testing.T) {
	target := sim.NewTarget(0x38, 8, sim.WithRegisterWidth(0), sim.WithMemory([]byte{0x1C, 0x80}))
	bus, lines := newSimBus(target)
	ctx := context.Background()

	buf := make([]byte, 2)
	require.NoError(t, bus.ReadFromAddr(ctx, 0x38, buf))
	assert.Equal(t, []byte{0x1C, 0x80}, buf)

	require.NoError(t, bus.WriteToAddr(ctx, 0x38, []byte{0xAC, 0x33}))
	assert.Equal(t, []byte{0xAC, 0x33}, target.Memory[2:4])

	err := bus.ReadFromAddr(ctx, 0x39, buf)
	assert.ErrorIs(t, err, i2cbang.ErrNoResponse)
	assert.True(t, lines.Idle())

	assert.ErrorIs(t, bus.ReadFromAddr(ctx, 0x38, nil), i2cbang.ErrEmptyRead)
	assert.True(t, lines.Idle())
	require.NoError(t, bus.WriteToAddr(ctx, 0x38, []byte{0x01}))
}

func TestBus_Registers(t *testing.T) {
	target := sim.NewTarget(0x50, 512, sim.WithRegisterWidth(2))
	bus, _ := newSimBus(target)
	ctx := context.Background()
	dev := i2cbang.NewDevice(0x50, i2cbang.WithRegisterWidth(2), i2cbang.WithClockRate(400*physic.KiloHertz))

	require.NoError(t, bus.WriteRegister(ctx, dev, 0x0100, []byte{1, 2, 3}))
	buf := make([]byte, 3)
	require.NoError(t, bus.ReadRegister(ctx, dev, 0x0100, buf))
	assert.Equal(t, []byte{1, 2, 3}, buf)

	err := bus.ReadRegister(ctx, dev, 0x0400, buf)
	assert.ErrorIs(t, err, i2cbang.ErrProtocol)
}

func TestBus_Tx(t *testing.T) {
	seven := sim.NewTarget(0x68, 16, sim.WithMemory([]byte{0, 0x59}))
	ten := sim.NewTarget(0x2A5, 16, sim.WithTenBit(), sim.WithMemory([]byte{0, 0, 0x77}))
	bus, _ := newSimBus(seven, ten)

	r := make([]byte, 1)
	require.NoError(t, bus.Tx(0x68, []byte{0x01}, r))
	assert.Equal(t, []byte{0x59}, r)

	require.NoError(t, bus.Tx(0x2A5, []byte{0x02}, r))
	assert.Equal(t, []byte{0x77}, r)
}

func TestBus_SetSpeed(t *testing.T) {
	m := &MockMaster{}
	bus := NewBus("mock", m)
	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
	assert.ErrorIs(t, bus.SetSpeed(5*physic.MegaHertz), i2cbang.ErrInvalidDevice)

	m.On("Tx", mock.MatchedBy(func(dev i2cbang.Device) bool {
		return dev.ClockRate == 400*physic.KiloHertz && dev.Address == 0x20 && dev.RegisterWidth == 0
	}), []byte{0x01}, []byte(nil)).Return(nil).Once()
	require.NoError(t, bus.Tx(0x20, []byte{0x01}, nil))
	m.AssertExpectations(t)
}

func TestBus_CancelledContext(t *testing.T) {
	m := &MockMaster{}
	bus := NewBus("mock", m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, bus.ReadFromAddr(ctx, 0x20, make([]byte, 1)), context.Canceled)
	assert.ErrorIs(t, bus.WriteToAddr(ctx, 0x20, []byte{1}), context.Canceled)
	assert.ErrorIs(t, bus.Release(ctx), context.Canceled)
	assert.ErrorIs(t, bus.ReadRegister(ctx, i2cbang.NewDevice(0x20), 0, make([]byte, 1)), context.Canceled)
	assert.ErrorIs(t, bus.WriteRegister(ctx, i2cbang.NewDevice(0x20), 0, []byte{1}), context.Canceled)
	m.AssertNotCalled(t, "Read", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "Reset", mock.Anything)
}

func TestBus_ReleaseClearsBus(t *testing.T) {
	m := &MockMaster{}
	failure := errors.New("stuck")
	m.On("Reset", mock.Anything).Return(failure).Once()
	bus := NewBus("mock", m)
	assert.ErrorIs(t, bus.Release(context.Background()), failure)
	m.AssertExpectations(t)
}

type closeCounter int

func (c *closeCounter) Close() error {
	*c++
	return nil
}

func TestRegister(t *testing.T) {
	var closed closeCounter
	target := sim.NewTarget(0x68, 16, sim.WithMemory([]byte{0x12}))
	require.NoError(t, Register("i2cbang-test", func() (*Bus, error) {
		lines := sim.NewBus()
		lines.Attach(target)
		return NewBus("i2cbang-test", bitbang.New(lines), WithCloser(&closed)), nil
	}))

	bus, err := i2creg.Open("i2cbang-test")
	require.NoError(t, err)
	assert.Equal(t, "i2cbang-test", bus.String())

	r := make([]byte, 1)
	require.NoError(t, bus.Tx(0x68, []byte{0x00}, r))
	assert.Equal(t, []byte{0x12}, r)
	require.NoError(t, bus.Close())
	assert.Equal(t, closeCounter(1), closed)
}
