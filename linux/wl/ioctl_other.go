//go:build !linux
// +build !linux

package wl

import "fmt"

type ioctlDriver struct{}

func newIoctlDriver() Driver {
	return ioctlDriver{}
}

// SetVar is a dummy function for non-Linux platform.
func (ioctlDriver) SetVar(ifname, name string, value []byte) error {
	return fmt.Errorf("wl ioctl is only available on linux")
}
