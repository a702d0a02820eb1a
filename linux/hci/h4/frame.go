package h4

import "time"

const (
	eventHeaderLength = 3 // type, code, length
	aclHeaderLength   = 5 // type, handle(2), length(2)

	// a partial packet older than this is dropped
	frameTimeout = 500 * time.Millisecond
)

// frame reassembles H4 packets out of an arbitrarily chunked byte stream.
// Only event and ACL packets travel controller to host.
type frame struct {
	b       []byte
	started time.Time
	out     chan []byte

	now func() time.Time
}

func newFrame(c chan []byte) *frame {
	return &frame{
		b:   make([]byte, 0, 512),
		out: c,
		now: time.Now,
	}
}

// Assemble appends b and emits every complete packet.
func (f *frame) Assemble(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(f.b) != 0 && f.now().Sub(f.started) > frameTimeout {
		f.b = f.b[:0]
	}
	if len(f.b) == 0 {
		f.started = f.now()
	}
	f.b = append(f.b, b...)

	for {
		f.sync()
		n, ok := f.packetLength()
		if !ok || len(f.b) < n {
			return
		}

		p := make([]byte, n)
		copy(p, f.b)
		f.out <- p

		f.b = append(f.b[:0], f.b[n:]...)
		f.started = f.now()
	}
}

// sync drops bytes ahead of the first packet type indicator.
func (f *frame) sync() {
	for i, v := range f.b {
		if v == eventPacket || v == aclPacket {
			f.b = append(f.b[:0], f.b[i:]...)
			return
		}
	}
	f.b = f.b[:0]
}

func (f *frame) packetLength() (int, bool) {
	if len(f.b) == 0 {
		return 0, false
	}

	switch f.b[0] {
	case eventPacket:
		if len(f.b) < eventHeaderLength {
			return 0, false
		}
		return eventHeaderLength + int(f.b[2]), true

	case aclPacket:
		if len(f.b) < aclHeaderLength {
			return 0, false
		}
		return aclHeaderLength + (int(f.b[3]) | int(f.b[4])<<8), true
	}
	return 0, false
}
