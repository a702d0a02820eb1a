package h4

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
)

const (
	commandPacket = 0x01
	aclPacket     = 0x02
	eventPacket   = 0x04

	rxQueueSize = 64
	readTimeout = time.Second
)

type h4 struct {
	rwc io.ReadWriteCloser
	rmu sync.Mutex
	wmu sync.Mutex

	// serial ports report an inter-character timeout as io.EOF
	eofIsTimeout bool

	frame   *frame
	rxQueue chan []byte

	done chan int
	cmu  sync.Mutex

	logger smartcoex.Logger
}

// DefaultSerialOptions returns the usual settings of an HCI UART.
func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		PortName:              "/dev/ttyUSB0",
		BaudRate:              1000000,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
		RTSCTSFlowControl:     true,
	}
}

// NewSerial opens an H4 UART.
func NewSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %v", opts.PortName)
	}

	h := newH4(sp, true)
	h.logger.Infof("opened %v at %v baud", opts.PortName, opts.BaudRate)
	return h, nil
}

// NewSocket connects to an H4 stream served over TCP.
func NewSocket(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "can't dial %v", addr)
	}

	return newH4(&connWithTimeout{c, timeout}, false), nil
}

func newH4(rwc io.ReadWriteCloser, eofIsTimeout bool) *h4 {
	h := &h4{
		rwc:          rwc,
		eofIsTimeout: eofIsTimeout,
		done:         make(chan int),
		rxQueue:      make(chan []byte, rxQueueSize),
		logger:       smartcoex.GetLogger().ChildLogger(map[string]interface{}{"component": "h4"}),
	}
	h.frame = newFrame(h.rxQueue)

	go h.rxLoop()
	return h
}

// Read returns one complete HCI packet, or 0 bytes on timeout.
func (h *h4) Read(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.rmu.Lock()
	defer h.rmu.Unlock()

	var n int
	select {
	case t := <-h.rxQueue:
		if len(p) < len(t) {
			return 0, io.ErrShortBuffer
		}
		n = copy(p, t)

	case <-h.done:
		return 0, io.EOF

	case <-time.After(readTimeout):
		return 0, nil
	}

	h.logger.Debugf("read [% X]", p[:n])
	return n, nil
}

func (h *h4) Write(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	n, err := h.rwc.Write(p)
	h.logger.Debugf("write [% X], %v, %v", p, n, err)

	return n, errors.Wrap(err, "can't write h4")
}

func (h *h4) Close() error {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	select {
	case <-h.done:
		return nil

	default:
		close(h.done)
		err := h.rwc.Close()
		return errors.Wrap(err, "can't close h4")
	}
}

func (h *h4) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *h4) rxLoop() {
	tmp := make([]byte, 512)
	for {
		select {
		case <-h.done:
			return
		default:
		}

		n, err := h.rwc.Read(tmp)
		switch {
		case err == io.EOF && !h.eofIsTimeout:
			h.logger.Warn("h4 stream closed by peer")
			h.Close()
			return
		case isTimeout(err):
			continue
		case err != nil && err != io.EOF:
			if !h.isOpen() {
				return
			}
			h.logger.Debugf("rx error: %v", err)
			continue
		case n == 0:
			continue
		}

		h.frame.Assemble(tmp[:n])
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
