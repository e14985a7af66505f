package i2cbang

import (
	"context"
)

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is a raw 7-bit addressed bus: every call is a complete transaction.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// RegisterReader reads len(buffer) bytes starting at register reg. The device
// descriptor decides address framing and the register index width.
type RegisterReader interface {
	ReadRegister(ctx context.Context, dev Device, reg uint32, buffer []byte) error
}

type RegisterWriter interface {
	WriteRegister(ctx context.Context, dev Device, reg uint32, data []byte) error
}

// RegisterBus is the register-indexed view used by peripheral drivers.
type RegisterBus interface {
	RegisterReader
	RegisterWriter
}
