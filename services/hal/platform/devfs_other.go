// services/hal/platform/devfs_other.go
//go:build !linux

package platform

import (
	"errors"

	"golang.org/x/exp/io/i2c/driver"
)

type noDevfs struct{}

func (noDevfs) Open(addr int, tenbit bool) (driver.Conn, error) {
	return nil, errors.New("platform: devfs backend requires linux")
}

func devfsOpener(string) driver.Opener { return noDevfs{} }
