package bitbang

import (
	"time"

	"github.com/mklimuk/i2cbang"
)

// phy generates bus conditions for one transaction. It is built on the
// caller's stack from the device descriptor and never outlives the call.
type phy struct {
	lines  Lines
	delay  Delayer
	half   time.Duration
	budget int
}

// releaseSCL lets the clock float high and waits for targets that stretch it.
// Every low read consumes one iteration of the budget.
func (p *phy) releaseSCL() error {
	p.lines.SetSCL(true)
	budget := p.budget
	for !p.lines.SCL() {
		if budget == 0 {
			return i2cbang.ErrTimeout
		}
		budget--
	}
	return nil
}

// start issues a start condition. With the bus mid-transaction (SCL low) it
// becomes a repeated start.
func (p *phy) start() error {
	p.lines.SetSDA(true)
	p.delay.Delay(p.half)
	if err := p.releaseSCL(); err != nil {
		return err
	}
	p.delay.Delay(p.half)
	p.lines.SetSDA(false)
	p.delay.Delay(p.half)
	p.lines.SetSCL(false)
	return nil
}

// stop releases the bus. SDA is released even when the clock guard fails so
// an aborted transaction leaves the lines in the best state reachable.
func (p *phy) stop() error {
	p.lines.SetSCL(false)
	p.lines.SetSDA(false)
	p.delay.Delay(p.half)
	err := p.releaseSCL()
	p.delay.Delay(p.half)
	p.lines.SetSDA(true)
	p.delay.Delay(p.half)
	return err
}

func (p *phy) writeBit(bit bool) error {
	p.lines.SetSDA(bit)
	p.delay.Delay(p.half)
	if err := p.releaseSCL(); err != nil {
		return err
	}
	p.delay.Delay(p.half)
	p.lines.SetSCL(false)
	return nil
}

func (p *phy) readBit() (bool, error) {
	p.lines.SetSDA(true)
	p.delay.Delay(p.half)
	if err := p.releaseSCL(); err != nil {
		return false, err
	}
	bit := p.lines.SDA()
	p.delay.Delay(p.half)
	p.lines.SetSCL(false)
	return bit, nil
}

// writeAck sends the 9th clock of a received byte: ACK holds SDA low.
func (p *phy) writeAck(ack bool) error {
	return p.writeBit(!ack)
}

func (p *phy) readAck() (bool, error) {
	bit, err := p.readBit()
	return !bit, err
}

// writeByte shifts b out MSB first and returns whether the receiver acked.
func (p *phy) writeByte(b byte) (bool, error) {
	for i := 7; i >= 0; i-- {
		if err := p.writeBit(b&(1<<i) != 0); err != nil {
			return false, err
		}
	}
	return p.readAck()
}

// readByte shifts a byte in MSB first and answers with ack.
func (p *phy) readByte(ack bool) (byte, error) {
	var b byte
	for i := 0; i < 8; i++ {
		bit, err := p.readBit()
		if err != nil {
			return 0, err
		}
		b <<= 1
		if bit {
			b |= 1
		}
	}
	return b, p.writeAck(ack)
}
