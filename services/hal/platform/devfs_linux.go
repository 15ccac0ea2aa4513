// services/hal/platform/devfs_linux.go
//go:build linux

package platform

import (
	"golang.org/x/exp/io/i2c"
	"golang.org/x/exp/io/i2c/driver"
)

func devfsOpener(dev string) driver.Opener {
	if dev == "" {
		dev = "/dev/i2c-1"
	}
	return &i2c.Devfs{Dev: dev}
}
