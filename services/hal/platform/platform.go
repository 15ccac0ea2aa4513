// services/hal/platform/platform.go

// Package platform opens the host I²C buses named in configuration and hands
// them to the HAL as tinygo drivers.I2C values.
package platform

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"tinygo.org/x/drivers"
)

// Bus backends.
const (
	BackendPeriph = "periph" // periph.io i2creg, default
	BackendDevfs  = "devfs"  // golang.org/x/exp/io/i2c on /dev/i2c-N
	BackendSim    = "sim"    // in-process VEML6075 model
)

// BusConfig names one bus. Device is backend specific: a periph bus name
// ("1", "/dev/i2c-1") or a devfs path.
type BusConfig struct {
	ID      string `yaml:"id" json:"id"`
	Backend string `yaml:"backend" json:"backend"`
	Device  string `yaml:"device" json:"device"`
}

var ErrUnknownBackend = errors.New("platform: unknown bus backend")

// Factory owns opened buses and implements hal.I2CBusFactory.
type Factory struct {
	mu      sync.Mutex
	buses   map[string]drivers.I2C
	closers []io.Closer
}

// NewI2CFactory opens every configured bus. On failure the buses already
// opened are closed again.
func NewI2CFactory(cfgs []BusConfig) (*Factory, error) {
	f := &Factory{buses: make(map[string]drivers.I2C, len(cfgs))}
	for _, c := range cfgs {
		if c.ID == "" {
			f.Close()
			return nil, errors.New("platform: bus without id")
		}
		if _, dup := f.buses[c.ID]; dup {
			f.Close()
			return nil, fmt.Errorf("platform: duplicate bus id %q", c.ID)
		}
		b, closer, err := open(c)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("platform: open %s (%s %q): %w", c.ID, c.Backend, c.Device, err)
		}
		f.buses[c.ID] = b
		if closer != nil {
			f.closers = append(f.closers, closer)
		}
	}
	return f, nil
}

func open(c BusConfig) (drivers.I2C, io.Closer, error) {
	switch c.Backend {
	case "", BackendPeriph:
		bc, err := openPeriph(c.Device)
		if err != nil {
			return nil, nil, err
		}
		return bc, bc, nil
	case BackendDevfs:
		b := newDevfsBus(devfsOpener(c.Device))
		return b, b, nil
	case BackendSim:
		return NewSimVEML6075(), nil, nil
	default:
		return nil, nil, ErrUnknownBackend
	}
}

func (f *Factory) ByID(id string) (drivers.I2C, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	return b, ok
}

// IDs returns the configured bus ids.
func (f *Factory) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.buses))
	for id := range f.buses {
		ids = append(ids, id)
	}
	return ids
}

// Close releases all opened handles. Safe to call more than once.
func (f *Factory) Close() error {
	f.mu.Lock()
	cl := f.closers
	f.closers = nil
	f.buses = map[string]drivers.I2C{}
	f.mu.Unlock()

	var errs []error
	for _, c := range cl {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
