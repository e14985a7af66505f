package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/bitbang"
	"github.com/mklimuk/i2cbang/i2c"
	"github.com/mklimuk/i2cbang/sim"
)

func simBus(targets ...*sim.Target) *i2c.Bus {
	lines := sim.NewBus()
	for _, target := range targets {
		lines.Attach(target)
	}
	return i2c.NewBus("sim", bitbang.New(lines))
}

func TestTC74_Temperature(t *testing.T) {
	tests := map[string]struct {
		raw      byte
		expected float32
	}{
		"room":     {0x19, 25},
		"zero":     {0x00, 0},
		"negative": {0xE7, -25},
		"maximum":  {0x7F, 127},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			target := sim.NewTarget(0x4D, 2, sim.WithRegisterWidth(1), sim.WithMemory([]byte{tc.raw, tc74DataReady}))
			sensor := NewTC74(simBus(target))
			temp, err := sensor.GetTemperature(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, temp)
		})
	}
}

func TestTC74_Standby(t *testing.T) {
	target := sim.NewTarget(0x48, 2, sim.WithRegisterWidth(1), sim.WithMemory([]byte{0x19, tc74DataReady}))
	sensor := NewTC74(simBus(target), WithAddress(0x48))
	ctx := context.Background()

	require.NoError(t, sensor.SetStandby(ctx, true))
	assert.Equal(t, byte(tc74Standby), target.Memory[1])
	_, err := sensor.GetTemperature(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	config, err := sensor.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(tc74Standby), config)
}

func TestTC74_Absent(t *testing.T) {
	sensor := NewTC74(simBus())
	_, err := sensor.GetTemperature(context.Background())
	assert.ErrorIs(t, err, i2cbang.ErrNoResponse)
}
