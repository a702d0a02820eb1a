//go:build linux
// +build linux

// Package socket opens HCI user channel sockets.
package socket

import (
	"io"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"golang.org/x/sys/unix"
)

const (
	// _IOW('H', 202, int) and _IOR('H', 210, int)
	ioctlDevDown    = 1<<30 | 4<<16 | 'H'<<8 | 202
	ioctlGetDevList = 2<<30 | 4<<16 | 'H'<<8 | 210

	maxDevices = 16

	pollTimeoutMs = 1000
	drainPollMs   = 20

	// bluetoothd can hold the device for a while after boot
	bindRetryFor   = 60 * time.Second
	bindRetryDelay = time.Second
)

const (
	pollIn  = int16(unix.POLLIN)
	pollErr = int16(unix.POLLHUP | unix.POLLNVAL | unix.POLLERR)
)

// struct hci_dev_list_req
type devList struct {
	num  uint16
	devs [maxDevices]struct {
		id  uint16
		opt uint32
	}
}

// Socket is an HCI user channel. Read returns whole packets, or 0 bytes
// when nothing arrived within a second.
type Socket struct {
	fd  int
	dev int

	rmu sync.Mutex
	wmu sync.Mutex

	cmu  sync.Mutex
	done chan struct{}

	logger smartcoex.Logger
}

// NewSocket binds the user channel of hci<id>. With id -1 every device the
// kernel knows of is tried in turn.
func NewSocket(id int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, errors.Wrap(err, "can't create socket")
	}

	var s *Socket
	if id == -1 {
		s, err = bindAny(fd)
	} else {
		s, err = bindRetry(fd, id)
	}
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func bindRetry(fd, id int) (*Socket, error) {
	deadline := time.Now().Add(bindRetryFor)
	for {
		s, err := bind(fd, id)
		if err == nil || time.Now().After(deadline) {
			return s, err
		}
		time.Sleep(bindRetryDelay)
	}
}

func bindAny(fd int) (*Socket, error) {
	ids, err := devices(fd)
	if err != nil {
		return nil, err
	}

	var failed []string
	for _, id := range ids {
		s, err := bind(fd, id)
		if err == nil {
			return s, nil
		}
		failed = append(failed, errors.Wrapf(err, "hci%d", id).Error())
	}
	return nil, errors.Errorf("no devices available: [%s]", strings.Join(failed, "; "))
}

func devices(fd int) ([]int, error) {
	dl := devList{num: maxDevices}
	if err := ioctl(fd, ioctlGetDevList, uintptr(unsafe.Pointer(&dl))); err != nil {
		return nil, errors.Wrap(err, "can't get device list")
	}
	ids := make([]int, 0, dl.num)
	for _, d := range dl.devs[:dl.num] {
		ids = append(ids, int(d.id))
	}
	return ids, nil
}

func bind(fd, id int) (*Socket, error) {
	// the user channel only binds to a device that is down
	if err := ioctl(fd, ioctlDevDown, uintptr(id)); err != nil {
		return nil, errors.Wrap(err, "can't down device")
	}

	sa := unix.SockaddrHCI{Dev: uint16(id), Channel: unix.HCI_CHANNEL_USER}
	if err := unix.Bind(fd, &sa); err != nil {
		return nil, errors.Wrap(err, "can't bind socket to hci user channel")
	}

	s := &Socket{
		fd:     fd,
		dev:    id,
		done:   make(chan struct{}),
		logger: smartcoex.GetLogger().ChildLogger(map[string]interface{}{"component": "hci-socket", "dev": id}),
	}

	// stale events queued before the bind
	ready, err := s.poll(drainPollMs)
	if err != nil {
		return nil, err
	}
	if ready {
		unix.Read(fd, make([]byte, 2048))
	}
	return s, nil
}

func ioctl(fd int, req, arg uintptr) error {
	if _, _, ep := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg); ep != 0 {
		return ep
	}
	return nil
}

// poll waits up to ms for data. A hangup or error reads as io.EOF.
func (s *Socket) poll(ms int) (bool, error) {
	pfds := []unix.PollFd{{Fd: int32(s.fd), Events: pollIn}}
	if _, err := unix.Poll(pfds, ms); err != nil && err != unix.EINTR {
		return false, errors.Wrap(err, "can't poll hci socket")
	}

	ev := pfds[0].Revents
	switch {
	case ev&pollErr != 0:
		s.logger.Errorf("hci%d: poll events 0x%04x", s.dev, ev)
		return false, io.EOF
	case ev&pollIn != 0:
		return true, nil
	}
	return false, nil
}

func (s *Socket) Read(p []byte) (int, error) {
	if !s.isOpen() {
		return 0, io.EOF
	}

	s.rmu.Lock()
	defer s.rmu.Unlock()

	ready, err := s.poll(pollTimeoutMs)
	if err != nil || !ready {
		return 0, err
	}

	n, err := unix.Read(s.fd, p)
	if !s.isOpen() {
		// closed while we were reading
		return 0, io.EOF
	}
	return n, errors.Wrap(err, "can't read hci socket")
}

func (s *Socket) Write(p []byte) (int, error) {
	if !s.isOpen() {
		return 0, io.EOF
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := unix.Write(s.fd, p)
	return n, errors.Wrap(err, "can't write hci socket")
}

func (s *Socket) Close() error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	if !s.isOpen() {
		return nil
	}
	close(s.done)

	s.logger.Debugf("closing hci%d", s.dev)
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return errors.Wrap(unix.Close(s.fd), "can't close hci socket")
}

func (s *Socket) isOpen() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
