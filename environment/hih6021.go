package environment

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/i2cbang"
)

const hih6021DefaultAddress = 0x27

// measurement cycle takes typically 36.65ms
const hih6021MeasurementTime = 50 * time.Millisecond

var divider = float32(1<<14 - 2)

var ErrStaleData = errors.New("stale data")
var ErrCommandMode = errors.New("device in command mode")

// HIH6021 represents Honeywell HumidIcon Digital Humidity/Temperature sensor
type HIH6021 struct {
	transport i2cbang.I2CBus
	address   byte
	sleep     func(time.Duration)
}

type HIH6021Option func(*HIH6021)

func WithHIH6021Address(address byte) HIH6021Option {
	return func(s *HIH6021) {
		s.address = address
	}
}

func NewHIH6021(trans i2cbang.I2CBus, opts ...HIH6021Option) *HIH6021 {
	s := &HIH6021{transport: trans, address: hih6021DefaultAddress, sleep: time.Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTempAndHum triggers a measurement and returns the temperature in degrees
// Celsius and the relative humidity in percent.
func (sensor *HIH6021) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	// an address-only write starts the measurement cycle
	if err := sensor.transport.WriteToAddr(ctx, sensor.address, nil); err != nil {
		return 0, 0, fmt.Errorf("hih6021: could not request measurement: %w", err)
	}
	sensor.sleep(hih6021MeasurementTime)
	resp := make([]byte, 4)
	if err := sensor.transport.ReadFromAddr(ctx, sensor.address, resp); err != nil {
		return 0, 0, fmt.Errorf("hih6021: could not fetch measurement: %w", err)
	}
	if resp[0]&0x80 > 0 {
		return 0, 0, fmt.Errorf("hih6021: %w", ErrCommandMode)
	}
	// data already fetched or fetched before the cycle completed
	if resp[0]&0x40 > 0 {
		return 0, 0, fmt.Errorf("hih6021: %w", ErrStaleData)
	}
	return convertTemperature(resp[2:4]), convertHumidity(resp[0:2]), nil
}

func convertHumidity(resp []byte) float32 {
	hum := float32(binary.BigEndian.Uint16(resp)) / divider * 100
	if hum > 100.00 {
		return 100.00
	}
	return hum
}

func convertTemperature(resp []byte) float32 {
	raw := binary.BigEndian.Uint16(resp) >> 2
	return float32(raw)/divider*165 - 40
}
