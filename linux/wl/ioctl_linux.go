//go:build linux
// +build linux

package wl

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const siocDevPrivate = 0x89F0

// wl_ioctl_t
type wlIoctl struct {
	cmd    uint32
	buf    unsafe.Pointer
	len    uint32
	set    uint8
	used   uint32
	needed uint32
}

// struct ifreq with ifr_data
type ifreq struct {
	name [unix.IFNAMSIZ]byte
	data unsafe.Pointer
	_    [16]byte
}

type ioctlDriver struct{}

func newIoctlDriver() Driver {
	return ioctlDriver{}
}

func (ioctlDriver) SetVar(ifname, name string, value []byte) error {
	buf, err := encodeIovar(name, value)
	if err != nil {
		return err
	}
	if len(ifname) >= unix.IFNAMSIZ {
		return errors.Errorf("interface name %q too long", ifname)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return errors.Wrap(err, "can't create socket")
	}
	defer unix.Close(fd)

	ioc := wlIoctl{
		cmd: wlcSetVar,
		buf: unsafe.Pointer(&buf[0]),
		len: uint32(len(buf)),
		set: 1,
	}
	var ifr ifreq
	copy(ifr.name[:], ifname)
	ifr.data = unsafe.Pointer(&ioc)

	_, _, ep := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), siocDevPrivate, uintptr(unsafe.Pointer(&ifr)))
	runtime.KeepAlive(buf)
	runtime.KeepAlive(&ioc)
	if ep != 0 {
		return errors.Wrapf(ep, "WLC_SET_VAR %v", name)
	}
	return nil
}
