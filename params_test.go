package smartcoex

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		p     Priority
		duty  uint8
		win   uint16
		grant uint8
	}{
		{PriorityLow, 25, 48, 4},
		{PriorityMedium, 50, 48, 2},
		{PriorityHigh, 90, 48, 1},
	}

	for _, tt := range tests {
		tu, err := Lookup(tt.p)
		if err != nil {
			t.Fatalf("%v: unexpected error %v", tt.p, err)
		}
		if tu.DutyCycle != tt.duty || tu.MaxScanWindow != tt.win || tu.SmallIntervalGrant != tt.grant {
			t.Fatalf("%v: got %+v", tt.p, tu)
		}
	}

	if _, err := Lookup(Priority(3)); errors.Cause(err) != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	done := make(chan CommandComplete, 1)
	ok := BtConfig{Priority: PriorityLow, ScanInterval: 100, ScanWindow: 50, Done: done}

	tests := []struct {
		name string
		w    WifiConfig
		b    func(BtConfig) BtConfig
		ok   bool
	}{
		{"valid", WifiConfig{InterfaceSTA}, func(b BtConfig) BtConfig { return b }, true},
		{"bad interface", WifiConfig{WifiInterface(1)}, func(b BtConfig) BtConfig { return b }, false},
		{"nil done", WifiConfig{}, func(b BtConfig) BtConfig { b.Done = nil; return b }, false},
		{"interval low", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanInterval = 3; return b }, false},
		{"interval high", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanInterval = 16385; b.ScanWindow = 4; return b }, false},
		{"window low", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanWindow = 3; return b }, false},
		{"window high", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanWindow = 16385; b.ScanInterval = 16384; return b }, false},
		{"window > interval", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanWindow = 101; return b }, false},
		{"edges", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanInterval = 16384; b.ScanWindow = 4; return b }, true},
		{"window == interval", WifiConfig{}, func(b BtConfig) BtConfig { b.ScanWindow = 100; return b }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.w, tt.b(ok))
			switch {
			case tt.ok && err != nil:
				t.Fatalf("unexpected error %v", err)
			case !tt.ok && errors.Cause(err) != ErrInvalidArgument:
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestMapHigh(t *testing.T) {
	b := BtConfig{Priority: PriorityHigh, ScanInterval: 100, ScanWindow: 50, Done: make(chan CommandComplete)}
	sp, cc, err := Map(b)
	if err != nil {
		t.Fatal(err)
	}

	expSp := ScanParams{MaxScanWindow: 48, DutyCycle: 90, SmallIntervalGrant: 1, ScanInterval: 100, ScanWindow: 50, Priority: 2}
	if sp != expSp {
		t.Fatalf("scan params: got %+v, expected %+v", sp, expSp)
	}
	expCc := CoexConfig{Priority: 2, ScanInterval: 100, ScanWindow: 50, DutyCycle: 90, MaxWindow: 48, IntervalGrant: 1}
	if cc != expCc {
		t.Fatalf("coex config: got %+v, expected %+v", cc, expCc)
	}
}

func TestMapUnknownPriority(t *testing.T) {
	sp, cc, err := Map(BtConfig{Priority: 7, ScanInterval: 100, ScanWindow: 50})
	if errors.Cause(err) != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if sp != (ScanParams{}) || cc != (CoexConfig{}) {
		t.Fatalf("blocks populated on failure: %+v %+v", sp, cc)
	}
}

func TestMarshal(t *testing.T) {
	sp := ScanParams{MaxScanWindow: 48, DutyCycle: 90, SmallIntervalGrant: 1, ScanInterval: 100, ScanWindow: 50, Priority: 2}
	b, err := sp.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if exp := []byte{48, 0, 90, 1}; string(b) != string(exp) {
		t.Fatalf("scan params payload [% X], expected [% X]", b, exp)
	}

	cc := CoexConfig{Priority: 2, ScanInterval: 0x0100, ScanWindow: 50, DutyCycle: 90, MaxWindow: 48, IntervalGrant: 1}
	b, err = cc.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	exp := []byte{2, 0, 90, 0, 48, 0, 1, 0, 0, 1, 50, 0}
	if string(b) != string(exp) {
		t.Fatalf("coex config [% X], expected [% X]", b, exp)
	}
	if len(b) != CoexConfigLen {
		t.Fatalf("len %v", len(b))
	}
}

func TestParsePriority(t *testing.T) {
	for in, exp := range map[string]Priority{"low": PriorityLow, "MEDIUM": PriorityMedium, " 2 ": PriorityHigh} {
		p, err := ParsePriority(in)
		if err != nil || p != exp {
			t.Fatalf("%q: got %v, %v", in, p, err)
		}
	}
	if _, err := ParsePriority("urgent"); errors.Cause(err) != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSlots(t *testing.T) {
	if d := SlotsToDuration(16); d != 10*time.Millisecond {
		t.Fatalf("got %v", d)
	}
	if s := DurationToSlots(10 * time.Millisecond); s != 16 {
		t.Fatalf("got %v", s)
	}
	if s := DurationToSlots(time.Hour); s != 0xffff {
		t.Fatalf("got %v", s)
	}
}
