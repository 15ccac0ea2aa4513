// services/hal/platform/devfs.go
package platform

import (
	"errors"
	"sync"

	"golang.org/x/exp/io/i2c"
	"golang.org/x/exp/io/i2c/driver"
)

var ErrUnsupportedTx = errors.New("platform: devfs cannot combine a multi-byte write with a read")

// devfsBus adapts x/exp/io/i2c, which binds one handle to one slave address,
// to the address-per-transaction drivers.I2C interface. Handles are opened
// lazily per address and kept until Close.
type devfsBus struct {
	opener driver.Opener

	mu   sync.Mutex
	devs map[uint16]*i2c.Device
}

func newDevfsBus(o driver.Opener) *devfsBus {
	return &devfsBus{opener: o, devs: map[uint16]*i2c.Device{}}
}

func (b *devfsBus) device(addr uint16) (*i2c.Device, error) {
	if d, ok := b.devs[addr]; ok {
		return d, nil
	}
	d, err := i2c.Open(b.opener, int(addr))
	if err != nil {
		return nil, err
	}
	b.devs[addr] = d
	return d, nil
}

// Tx supports write, read, and register read (one command byte then read).
func (b *devfsBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.device(addr)
	if err != nil {
		return err
	}
	switch {
	case len(r) == 0:
		return d.Write(w)
	case len(w) == 0:
		return d.Read(r)
	case len(w) == 1:
		return d.ReadReg(w[0], r)
	default:
		return ErrUnsupportedTx
	}
}

func (b *devfsBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for addr, d := range b.devs {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(b.devs, addr)
	}
	return errors.Join(errs...)
}
