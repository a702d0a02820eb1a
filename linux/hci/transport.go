package hci

import (
	"fmt"
	"io"
	"time"

	"github.com/rigado/smartcoex/linux/hci/h4"
	"github.com/rigado/smartcoex/linux/hci/socket"
)

type transportHci struct {
	id int
}

type transportH4Socket struct {
	addr    string
	timeout time.Duration
}

type transportH4Uart struct {
	path string
	baud uint
}

type transport struct {
	hci      *transportHci
	h4uart   *transportH4Uart
	h4socket *transportH4Socket
	rwc      io.ReadWriteCloser
}

func getTransport(t transport) (io.ReadWriteCloser, error) {
	switch {
	case t.rwc != nil:
		return t.rwc, nil

	case t.hci != nil:
		s, err := socket.NewSocket(t.hci.id)
		if err != nil {
			return nil, err
		}
		return s, nil

	case t.h4socket != nil:
		return h4.NewSocket(t.h4socket.addr, t.h4socket.timeout)

	case t.h4uart != nil:
		so := h4.DefaultSerialOptions()
		so.PortName = t.h4uart.path
		if t.h4uart.baud != 0 {
			so.BaudRate = t.h4uart.baud
		}
		return h4.NewSerial(so)

	default:
		return nil, fmt.Errorf("no valid transport found")
	}
}
