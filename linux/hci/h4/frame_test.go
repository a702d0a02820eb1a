package h4

import (
	"bytes"
	"testing"
	"time"
)

func drain(c chan []byte) [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-c:
			out = append(out, b)
		default:
			return out
		}
	}
}

func TestFrameAssembleChunked(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)

	// command complete for 0xFD94, split across three reads
	pkt := []byte{0x04, 0x0E, 0x04, 0x01, 0x94, 0xFD, 0x00}
	f.Assemble(pkt[:2])
	f.Assemble(pkt[2:5])
	if got := drain(c); len(got) != 0 {
		t.Fatalf("early frame %v", got)
	}
	f.Assemble(pkt[5:])

	got := drain(c)
	if len(got) != 1 || !bytes.Equal(got[0], pkt) {
		t.Fatalf("got %v, expected [% X]", got, pkt)
	}
}

func TestFrameAssembleBackToBack(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)

	a := []byte{0x04, 0x0F, 0x04, 0x00, 0x01, 0x94, 0xFD}
	b := []byte{0x04, 0x0E, 0x04, 0x01, 0x94, 0xFD, 0x00}
	acl := []byte{0x02, 0x40, 0x00, 0x02, 0x00, 0xAA, 0xBB}

	// leading garbage is skipped until a start byte
	in := append([]byte{0x00, 0x00}, a...)
	in = append(in, b...)
	in = append(in, acl...)
	f.Assemble(in)

	got := drain(c)
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %v", len(got))
	}
	for i, exp := range [][]byte{a, b, acl} {
		if !bytes.Equal(got[i], exp) {
			t.Fatalf("frame %v: got [% X], expected [% X]", i, got[i], exp)
		}
	}
}

func TestFrameStalePartialDropped(t *testing.T) {
	c := make(chan []byte, 8)
	f := newFrame(c)
	now := time.Now()
	f.now = func() time.Time { return now }

	// a header whose body never shows up
	f.Assemble([]byte{0x04, 0x0E, 0x04, 0x01})

	now = now.Add(frameTimeout + time.Millisecond)
	pkt := []byte{0x04, 0x0F, 0x04, 0x00, 0x01, 0x94, 0xFD}
	f.Assemble(pkt)

	got := drain(c)
	if len(got) != 1 || !bytes.Equal(got[0], pkt) {
		t.Fatalf("got %v, expected [% X]", got, pkt)
	}
}
