package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/bitbang"
	"github.com/mklimuk/i2cbang/i2c"
	"github.com/mklimuk/i2cbang/sim"
)

func newSimClock(memory ...byte) (*DS3231, *sim.Target) {
	target := sim.NewTarget(0x68, 19, sim.WithMemory(memory), sim.WithStretch(20))
	lines := sim.NewBus()
	lines.Attach(target)
	return NewDS3231(i2c.NewBus("sim", bitbang.New(lines))), target
}

func TestDS3231_Time(t *testing.T) {
	clock, _ := newSimClock(0x45, 0x59, 0x23)
	ctx := context.Background()

	sec, err := clock.Seconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(0x45), sec)

	tod, err := clock.Time(ctx)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute+45*time.Second, tod)
}

func TestDS3231_DemoSequence(t *testing.T) {
	clock, target := newSimClock(0x30, 0x10, 0x08)
	ctx := context.Background()

	require.NoError(t, clock.ZeroSeconds(ctx))
	assert.Equal(t, byte(0x00), target.Memory[0])
	require.NoError(t, clock.WriteRegisters(ctx, 0x00, []byte{0x00, 0x01, 0x02}))
	raw, err := clock.RawTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, [3]byte{0x00, 0x01, 0x02}, raw)
}

func TestDS3231_SetTime(t *testing.T) {
	clock, target := newSimClock()
	ctx := context.Background()

	require.NoError(t, clock.SetTime(ctx, 13*time.Hour+7*time.Minute+9*time.Second+300*time.Millisecond))
	assert.Equal(t, []byte{0x09, 0x07, 0x13}, target.Memory[0:3])
	assert.Error(t, clock.SetTime(ctx, 25*time.Hour))
}

func TestDS3231_Absent(t *testing.T) {
	clock, _ := newSimClock()
	clock.dev.Address = 0x57
	_, err := clock.Seconds(context.Background())
	assert.ErrorIs(t, err, i2cbang.ErrNoResponse)
}

func TestDecodeTime(t *testing.T) {
	tests := []struct {
		name     string
		raw      [3]byte
		expected time.Duration
		err      bool
	}{
		{"midnight", [3]byte{0x00, 0x00, 0x00}, 0, false},
		{"24h", [3]byte{0x15, 0x42, 0x17}, 17*time.Hour + 42*time.Minute + 15*time.Second, false},
		{"12h am", [3]byte{0x00, 0x30, 0x40 | 0x12}, 30 * time.Minute, false},
		{"12h pm", [3]byte{0x00, 0x00, 0x40 | 0x20 | 0x01}, 13 * time.Hour, false},
		{"12h noon", [3]byte{0x00, 0x00, 0x40 | 0x20 | 0x12}, 12 * time.Hour, false},
		{"bad bcd", [3]byte{0x0A, 0x00, 0x00}, 0, true},
		{"seconds overflow", [3]byte{0x60, 0x00, 0x00}, 0, true},
		{"hours overflow", [3]byte{0x00, 0x00, 0x24}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tod, err := DecodeTime(tc.raw)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, tod)
		})
	}
}
