package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/i2cbang"
	"github.com/mklimuk/i2cbang/adapter"
	"github.com/mklimuk/i2cbang/bitbang"
	"github.com/mklimuk/i2cbang/i2c"
	"github.com/mklimuk/i2cbang/sim"
)

// session is an initialised bus on the configured backend.
type session struct {
	master *bitbang.Master
	bus    *i2c.Bus
	dev    i2cbang.Device
}

func openSession(ctx context.Context, cfg *Config) (*session, error) {
	dev, err := cfg.Device()
	if err != nil {
		return nil, err
	}
	lines, closer, err := openLines(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not open %s backend: %w", cfg.Backend, err)
	}
	master := bitbang.New(lines,
		bitbang.WithLogger(slog.Default().With("backend", cfg.Backend)),
		bitbang.WithSettle(cfg.Settle),
		bitbang.WithScanDevice(dev),
		bitbang.WithScanPolicy(cfg.ScanPolicy()),
	)
	opts := []i2c.BusOption{i2c.WithDevice(dev)}
	if closer != nil {
		opts = append(opts, i2c.WithCloser(closer))
	}
	s := &session{
		master: master,
		bus:    i2c.NewBus(cfg.Backend, master, opts...),
		dev:    dev,
	}
	slog.Debug("initialising bus", "backend", cfg.Backend, "clock", dev.ClockRate, "timeout", dev.Timeout)
	if err := master.Init(dev); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	return s.bus.Close()
}

func openLines(ctx context.Context, cfg *Config) (bitbang.Lines, io.Closer, error) {
	switch cfg.Backend {
	case backendGPIO:
		lines, err := i2c.OpenHostLines(cfg.GPIO.SCL, cfg.GPIO.SDA)
		if err != nil {
			return nil, nil, err
		}
		return lines, nil, nil
	case backendNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.DigitalPinsAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		lines, err := i2c.OpenDigitalLines(npi, cfg.NanoPi.SCL, cfg.NanoPi.SDA)
		if err != nil {
			_ = npi.DigitalPinsAdaptor.Finalize()
			return nil, nil, err
		}
		return lines, closerFunc(npi.DigitalPinsAdaptor.Finalize), nil
	case backendMCP2221:
		mcp := adapter.NewMCP2221(
			adapter.WithOpener(adapter.OpenIndex(cfg.MCP2221.Index)),
			adapter.WithResponseWait(0),
		)
		if err := mcp.Open(); err != nil {
			return nil, nil, err
		}
		lines, err := adapter.NewGPIOLines(ctx, mcp, cfg.MCP2221.SCL, cfg.MCP2221.SDA)
		if err != nil {
			_ = mcp.Close()
			return nil, nil, err
		}
		return lines, mcp, nil
	default:
		lines, err := newSimLines(cfg.Sim)
		if err != nil {
			return nil, nil, err
		}
		return lines, nil, nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func newSimLines(cfg SimConfig) (*sim.Bus, error) {
	bus := sim.NewBus()
	for _, d := range cfg.Devices {
		mem, err := d.memory()
		if err != nil {
			return nil, fmt.Errorf("sim device %#x: %w", d.Address, err)
		}
		opts := []sim.TargetOption{sim.WithRegisterWidth(d.RegisterWidth), sim.WithMemory(mem)}
		if d.TenBit {
			opts = append(opts, sim.WithTenBit())
		}
		if d.Stretch > 0 {
			opts = append(opts, sim.WithStretch(d.Stretch))
		}
		bus.Attach(sim.NewTarget(d.Address, d.Size, opts...))
		slog.Debug("simulated device attached", "addr", d.Address, "size", d.Size)
	}
	return bus, nil
}
