package bitbang

import (
	"errors"

	"github.com/mklimuk/i2cbang"
)

// ScanPolicy selects the address range walked by Scan.
type ScanPolicy uint8

const (
	// ScanAll probes every 7-bit address, 0x00 to 0x7F.
	ScanAll ScanPolicy = iota
	// ScanSkipReserved leaves out 0x00-0x07 and 0x78-0x7F, which are
	// reserved for general call, CBUS, high speed and 10-bit headers.
	ScanSkipReserved
)

func (p ScanPolicy) bounds() (uint8, uint8) {
	if p == ScanSkipReserved {
		return 0x08, 0x77
	}
	return 0x00, 0x7F
}

type scanConfig struct {
	dev    i2cbang.Device
	policy ScanPolicy
}

func defaultScanConfig() scanConfig {
	return scanConfig{
		dev:    i2cbang.NewDevice(0, i2cbang.WithRegisterWidth(0)),
		policy: ScanAll,
	}
}

// WithScanDevice sets the clock rate and timeout budget used for probes.
// Address fields of dev are ignored.
func WithScanDevice(dev i2cbang.Device) Option {
	return func(m *Master) {
		dev.AddressMode = i2cbang.Addr7Bit
		dev.RegisterWidth = 0
		m.scan.dev = dev
	}
}

func WithScanPolicy(p ScanPolicy) Option {
	return func(m *Master) {
		m.scan.policy = p
	}
}

// Scan probes the 7-bit address range in ascending order and calls found for
// every address that acknowledges. Failures, timeouts included, only mean
// "not present" and never stop the scan.
func (m *Master) Scan(found func(addr uint8)) {
	lo, hi := m.scan.policy.bounds()
	dev := m.scan.dev
	for addr := int(lo); addr <= int(hi); addr++ {
		dev.Address = uint16(addr)
		err := m.Probe(dev)
		if errors.Is(err, i2cbang.ErrNoResponse) {
			continue
		}
		if err != nil {
			m.log.Debug("probe failed", "addr", addr, "error", err)
			continue
		}
		found(uint8(addr))
	}
}
