// services/hal/platform/periph.go
package platform

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// openPeriph initialises the periph host drivers once and opens the named
// bus. An empty name selects the first registered bus. i2c.BusCloser has the
// same Tx signature as drivers.I2C.
func openPeriph(name string) (i2c.BusCloser, error) {
	hostOnce.Do(func() {
		_, hostErr = host.Init()
	})
	if hostErr != nil {
		return nil, hostErr
	}
	return i2creg.Open(name)
}
