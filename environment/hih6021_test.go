package environment

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/sim"
)

func TestHIH6021_ConvertHum(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float32
	}{
		{[]byte{0x00, 0x00}, 0.0},
		{[]byte{0x3F, 0xFF}, 100.0},
		{[]byte{0x17, 0x8B}, 36.79038},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, convertHumidity(test.given))
		})
	}
}

func TestHIH6021_ConvertTemp(t *testing.T) {
	tests := []struct {
		given    []byte
		expected float32
	}{
		{[]byte{0x00, 0x00}, -40.0},
		{[]byte{0xFF, 0xFC}, 125.01007},
		{[]byte{0x65, 0xB8}, 25.568916},
	}
	for _, test := range tests {
		t.Run(hex.EncodeToString(test.given), func(t *testing.T) {
			assert.Equal(t, test.expected, convertTemperature(test.given))
		})
	}
}

func newSimHIH6021(memory ...byte) (*HIH6021, *[]time.Duration) {
	target := sim.NewTarget(hih6021DefaultAddress, 4, sim.WithRegisterWidth(1), sim.WithMemory(memory))
	var waits []time.Duration
	sensor := NewHIH6021(simBus(target))
	sensor.sleep = func(d time.Duration) {
		waits = append(waits, d)
	}
	return sensor, &waits
}

func TestHIH6021_Measure(t *testing.T) {
	sensor, waits := newSimHIH6021(0x17, 0x8B, 0x65, 0xB8)
	temp, hum, err := sensor.GetTempAndHum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float32(25.568916), temp)
	assert.Equal(t, float32(36.79038), hum)
	assert.Equal(t, []time.Duration{hih6021MeasurementTime}, *waits)
}

func TestHIH6021_Status(t *testing.T) {
	sensor, _ := newSimHIH6021(0x57, 0x8B, 0x65, 0xB8)
	_, _, err := sensor.GetTempAndHum(context.Background())
	assert.ErrorIs(t, err, ErrStaleData)

	sensor, _ = newSimHIH6021(0x97, 0x8B, 0x65, 0xB8)
	_, _, err = sensor.GetTempAndHum(context.Background())
	assert.ErrorIs(t, err, ErrCommandMode)
}

func TestHIH6021_Absent(t *testing.T) {
	sensor := NewHIH6021(simBus(), WithHIH6021Address(0x28))
	sensor.sleep = func(time.Duration) {}
	_, _, err := sensor.GetTempAndHum(context.Background())
	assert.ErrorIs(t, err, i2cbang.ErrNoResponse)
}
