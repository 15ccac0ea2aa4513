// services/hal/platform/sim.go
package platform

import (
	"errors"
	"sync"
)

var ErrSimNACK = errors.New("platform: sim nack")

// SimVEML6075 implements drivers.I2C with a register model of a VEML6075 at
// 0x10. Any other address NACKs. Trigger writes are counted and not stored,
// as on the part.
type SimVEML6075 struct {
	mu       sync.Mutex
	config   byte
	regs     map[byte]uint16
	triggers int
	LastTx   struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

// NewSimVEML6075 returns a powered-down sensor holding a mid-day sample.
func NewSimVEML6075() *SimVEML6075 {
	return &SimVEML6075{
		config: 0x01,
		regs: map[byte]uint16{
			0x07: 3967, // UVA
			0x09: 5818, // UVB
			0x0A: 1007, // UVCOMP1
			0x0B: 727,  // UVCOMP2
			0x0C: 0x0026,
		},
	}
}

func (s *SimVEML6075) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTx.Addr = addr
	s.LastTx.W = append([]byte(nil), w...)
	s.LastTx.Rn = len(r)

	if addr != 0x10 || len(w) == 0 {
		return ErrSimNACK
	}
	switch {
	case w[0] == 0x00 && len(w) == 3 && len(r) == 0:
		if w[1]&0x02 != 0 {
			s.triggers++
		}
		s.config = w[1] &^ 0x02
		return nil
	case len(w) == 1 && len(r) == 2:
		v, ok := s.regs[w[0]]
		if !ok && w[0] != 0x00 {
			return ErrSimNACK
		}
		if w[0] == 0x00 {
			v = uint16(s.config)
		}
		r[0], r[1] = byte(v), byte(v>>8)
		return nil
	default:
		return ErrSimNACK
	}
}

// SetChannels replaces the four channel registers.
func (s *SimVEML6075) SetChannels(uva, uvb, comp1, comp2 uint16) {
	s.mu.Lock()
	s.regs[0x07], s.regs[0x09], s.regs[0x0A], s.regs[0x0B] = uva, uvb, comp1, comp2
	s.mu.Unlock()
}

// Config returns the last stored configuration byte.
func (s *SimVEML6075) Config() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *SimVEML6075) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggers
}
