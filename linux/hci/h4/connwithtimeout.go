package h4

import (
	"net"
	"time"
)

type connWithTimeout struct {
	c       net.Conn
	timeout time.Duration
}

func (cwt *connWithTimeout) deadline() time.Time {
	if cwt.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(cwt.timeout)
}

func (cwt *connWithTimeout) Read(b []byte) (int, error) {
	cwt.c.SetReadDeadline(cwt.deadline())
	return cwt.c.Read(b)
}

func (cwt *connWithTimeout) Write(b []byte) (int, error) {
	cwt.c.SetWriteDeadline(cwt.deadline())
	return cwt.c.Write(b)
}

func (cwt *connWithTimeout) Close() error {
	return cwt.c.Close()
}
