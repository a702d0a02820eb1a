package hci

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
)

// An Option is a configuration function, which configures the device.
type Option func(*HCI) error

// OptTransportHCISocket uses the HCI user channel of hci<id>; -1 picks the first available device.
func OptTransportHCISocket(id int) Option {
	return func(h *HCI) error {
		return h.SetTransportHCISocket(id)
	}
}

// OptTransportH4Socket uses an H4 stream served over TCP.
func OptTransportH4Socket(addr string, timeout time.Duration) Option {
	return func(h *HCI) error {
		return h.SetTransportH4Socket(addr, timeout)
	}
}

// OptTransportH4Uart uses an H4 UART.
func OptTransportH4Uart(path string, baud uint) Option {
	return func(h *HCI) error {
		return h.SetTransportH4Uart(path, baud)
	}
}

// OptTransport uses an already open, packet oriented transport.
func OptTransport(rwc io.ReadWriteCloser) Option {
	return func(h *HCI) error {
		return h.SetTransport(rwc)
	}
}

// OptErrorHandler sets error handler
func OptErrorHandler(handler func(error)) Option {
	return func(h *HCI) error {
		return h.SetErrorHandler(handler)
	}
}

// OptCommandTimeout sets how long a command may stay unanswered before it is
// given up and its opcode can be sent again.
func OptCommandTimeout(d time.Duration) Option {
	return func(h *HCI) error {
		if d <= 0 {
			return errors.Errorf("invalid command timeout %v", d)
		}
		h.cmdTimeout = d
		return nil
	}
}

// OptLogger overrides the device logger.
func OptLogger(l smartcoex.Logger) Option {
	return func(h *HCI) error {
		if l == nil {
			return errors.New("nil logger")
		}
		h.logger = l
		return nil
	}
}

// SetErrorHandler ...
func (h *HCI) SetErrorHandler(handler func(error)) error {
	h.errorHandler = handler
	return nil
}

// SetTransportHCISocket sets HCI device for hci socket
func (h *HCI) SetTransportHCISocket(id int) error {
	h.transport = transport{
		hci: &transportHci{id},
	}
	return nil
}

// SetTransportH4Socket sets h4 socket server
func (h *HCI) SetTransportH4Socket(addr string, timeout time.Duration) error {
	h.transport = transport{
		h4socket: &transportH4Socket{addr, timeout},
	}
	return nil
}

// SetTransportH4Uart sets h4 uart path
func (h *HCI) SetTransportH4Uart(path string, baud uint) error {
	h.transport = transport{
		h4uart: &transportH4Uart{path, baud},
	}
	return nil
}

// SetTransport sets an open transport
func (h *HCI) SetTransport(rwc io.ReadWriteCloser) error {
	if rwc == nil {
		return errors.New("nil transport")
	}
	h.transport = transport{
		rwc: rwc,
	}
	return nil
}
