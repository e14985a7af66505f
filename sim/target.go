package sim

type targetState uint8

const (
	targetIdle targetState = iota
	targetAddress
	targetAddress2
	targetReceive
	targetTransmit
	targetAckOut
	targetAckIn
)

const tenBitHeader = 0b11110000

// Target is a register-indexed memory device: the first RegisterWidth bytes
// of a write set the register pointer, following bytes are stored, reads
// return memory from the pointer. The pointer wraps at the end of Memory.
type Target struct {
	Address       uint16
	TenBit        bool
	RegisterWidth int
	Memory        []byte
	// Stretch is the number of SCL polls the target holds the clock low after
	// each acknowledge. Zero disables stretching.
	Stretch int
	// ReadStretch is the number of SCL polls the target holds the clock low
	// before each byte it transmits.
	ReadStretch int
	// NackData rejects every data byte written after the register index.
	NackData bool

	state     targetState
	next      targetState
	bits      int
	shift     byte
	ptr       int
	index     int
	sdaLow    bool
	hold      int
	arm       int
	selected  bool
	masterAck bool
}

type TargetOption func(*Target)

func WithTenBit() TargetOption {
	return func(t *Target) {
		t.TenBit = true
	}
}

func WithRegisterWidth(n int) TargetOption {
	return func(t *Target) {
		t.RegisterWidth = n
	}
}

func WithStretch(polls int) TargetOption {
	return func(t *Target) {
		t.Stretch = polls
	}
}

func WithReadStretch(polls int) TargetOption {
	return func(t *Target) {
		t.ReadStretch = polls
	}
}

func WithNackData() TargetOption {
	return func(t *Target) {
		t.NackData = true
	}
}

// WithMemory presets the start of the target memory.
func WithMemory(data []byte) TargetOption {
	return func(t *Target) {
		copy(t.Memory, data)
	}
}

// NewTarget returns a 7-bit target with a one byte register index and size
// bytes of zeroed memory.
func NewTarget(address uint16, size int, opts ...TargetOption) *Target {
	t := &Target{
		Address:       address,
		RegisterWidth: 1,
		Memory:        make([]byte, size),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Target) holdsSDA() bool {
	return t.sdaLow
}

func (t *Target) holdsSCL() bool {
	return t.hold > 0
}

func (t *Target) clockReleased() {
	if t.arm > 0 && t.hold == 0 {
		t.hold = t.arm
	}
	t.arm = 0
}

func (t *Target) tick() {
	if t.hold > 0 {
		t.hold--
	}
}

func (t *Target) onStart() {
	t.state = targetAddress
	t.bits = 0
	t.shift = 0
	t.sdaLow = false
	t.arm = 0
}

func (t *Target) onStop() {
	t.state = targetIdle
	t.sdaLow = false
	t.arm = 0
	t.selected = false
}

func (t *Target) onRise(sda bool) {
	switch t.state {
	case targetAddress, targetAddress2, targetReceive:
		if t.bits < 8 {
			t.shift <<= 1
			if sda {
				t.shift |= 1
			}
			t.bits++
		}
	case targetAckIn:
		t.masterAck = !sda
	}
}

func (t *Target) onFall() {
	switch t.state {
	case targetAddress:
		if t.bits == 8 {
			t.matchAddress(t.shift)
		}
	case targetAddress2:
		if t.bits == 8 {
			if t.shift != byte(t.Address) {
				t.selected = false
				t.state = targetIdle
				return
			}
			t.selected = true
			t.index = 0
			t.ack(targetReceive)
		}
	case targetReceive:
		if t.bits == 8 {
			t.receive(t.shift)
		}
	case targetAckOut:
		t.sdaLow = false
		t.bits = 0
		t.shift = 0
		t.arm = t.Stretch
		t.state = t.next
		if t.state == targetTransmit {
			t.load()
			if t.ReadStretch > 0 {
				t.arm = t.ReadStretch
			}
		}
	case targetTransmit:
		if t.bits < 8 {
			t.sdaLow = t.shift&(0x80>>t.bits) == 0
			t.bits++
			return
		}
		t.sdaLow = false
		t.state = targetAckIn
	case targetAckIn:
		if !t.masterAck {
			t.state = targetIdle
			return
		}
		t.load()
		t.state = targetTransmit
		t.arm = t.ReadStretch
	}
}

func (t *Target) matchAddress(b byte) {
	read := b&0x01 == 1
	if !t.TenBit {
		if uint16(b>>1) != t.Address {
			t.state = targetIdle
			return
		}
		t.selected = true
		if read {
			t.ack(targetTransmit)
			return
		}
		t.index = 0
		t.ack(targetReceive)
		return
	}
	if b&0xF8 != tenBitHeader || uint16(b>>1&0x03) != t.Address>>8 {
		t.selected = false
		t.state = targetIdle
		return
	}
	if read {
		// only valid as the turnaround of a transaction that selected us
		if !t.selected {
			t.state = targetIdle
			return
		}
		t.ack(targetTransmit)
		return
	}
	t.ack(targetAddress2)
}

func (t *Target) receive(b byte) {
	if t.index < t.RegisterWidth {
		if t.index == 0 {
			t.ptr = 0
		}
		t.ptr = t.ptr<<8 | int(b)
		t.index++
		if t.index == t.RegisterWidth && t.ptr >= len(t.Memory) {
			t.state = targetIdle
			return
		}
		t.ack(targetReceive)
		return
	}
	if t.NackData || len(t.Memory) == 0 {
		t.state = targetIdle
		return
	}
	t.Memory[t.ptr] = b
	t.ptr = (t.ptr + 1) % len(t.Memory)
	t.ack(targetReceive)
}

// load puts the next memory byte in the shift register and drives its MSB.
func (t *Target) load() {
	t.shift = 0xFF
	if len(t.Memory) > 0 {
		t.shift = t.Memory[t.ptr]
		t.ptr = (t.ptr + 1) % len(t.Memory)
	}
	t.sdaLow = t.shift&0x80 == 0
	t.bits = 1
}

func (t *Target) ack(next targetState) {
	t.sdaLow = true
	t.next = next
	t.state = targetAckOut
}
