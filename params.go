package smartcoex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// WifiInterface selects the Wi-Fi interface the coex configuration applies to.
type WifiInterface uint8

const (
	InterfaceSTA WifiInterface = 0 // STA or client interface.

	InterfaceDefault = InterfaceSTA
)

func (i WifiInterface) String() string {
	switch i {
	case InterfaceSTA:
		return "sta"
	default:
		return fmt.Sprintf("interface(%d)", uint8(i))
	}
}

// Priority is the LE scan priority requested by the caller.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// ParsePriority accepts the names returned by Priority.String or the numeric values 0-2.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return PriorityLow, nil
	case "medium", "med", "1":
		return PriorityMedium, nil
	case "high", "2":
		return PriorityHigh, nil
	}
	return 0, errors.Wrapf(ErrInvalidArgument, "unknown priority %q", s)
}

// Scan timing limits, in slots.
const (
	ScanIntervalMin = 0x0004
	ScanIntervalMax = 0x4000
	ScanWindowMin   = 0x0004
	ScanWindowMax   = 0x4000
)

// SlotDuration is the unit of ScanInterval and ScanWindow.
const SlotDuration = 625 * time.Microsecond

// SlotsToDuration converts a slot count to wall time.
func SlotsToDuration(slots uint16) time.Duration {
	return time.Duration(slots) * SlotDuration
}

// DurationToSlots converts d to slots, rounding down. Values that do not fit
// in 16 bits saturate.
func DurationToSlots(d time.Duration) uint16 {
	n := d / SlotDuration
	if n < 0 {
		return 0
	}
	if n > 0xffff {
		return 0xffff
	}
	return uint16(n)
}

// Tuple holds the fixed coex constants for one priority.
type Tuple struct {
	DutyCycle          uint8  // percent of scan time given high priority
	MaxScanWindow      uint16 // slots
	SmallIntervalGrant uint8  // every Nth window is high priority when interval < MaxScanWindow
}

var priorityTable = map[Priority]Tuple{
	PriorityLow:    {DutyCycle: 25, MaxScanWindow: 48, SmallIntervalGrant: 4},
	PriorityMedium: {DutyCycle: 50, MaxScanWindow: 48, SmallIntervalGrant: 2},
	PriorityHigh:   {DutyCycle: 90, MaxScanWindow: 48, SmallIntervalGrant: 1},
}

// Lookup returns the coex tuple for p.
func Lookup(p Priority) (Tuple, error) {
	t, ok := priorityTable[p]
	if !ok {
		return Tuple{}, errors.Wrapf(ErrInvalidArgument, "invalid LE scan priority %d; must be 0, 1 or 2", uint8(p))
	}
	return t, nil
}

// ScanParams is the LE scan coex block handed to the Bluetooth controller.
type ScanParams struct {
	MaxScanWindow      uint16
	DutyCycle          uint8
	SmallIntervalGrant uint8

	ScanInterval uint16
	ScanWindow   uint16
	Priority     Priority
}

// ScanParamsLen is the size of the vendor command payload.
const ScanParamsLen = 4

type scanParamsWire struct {
	MaxScanWindow      uint16
	DutyCycle          uint8
	SmallIntervalGrant uint8
}

// MarshalBinary encodes the vendor command payload. The controller only
// consumes the coex tuple; interval and window stay with the host.
func (p ScanParams) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, ScanParamsLen))
	w := scanParamsWire{
		MaxScanWindow:      p.MaxScanWindow,
		DutyCycle:          p.DutyCycle,
		SmallIntervalGrant: p.SmallIntervalGrant,
	}
	if err := binary.Write(buf, binary.LittleEndian, w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CoexConfig is the LE scan coex block handed to the Wi-Fi driver, laid out
// like the driver's whd_btc_lescan_params_t.
type CoexConfig struct {
	Priority      uint16
	DutyCycle     uint16
	MaxWindow     uint16
	IntervalGrant uint16
	ScanInterval  uint16
	ScanWindow    uint16
}

// CoexConfigLen is the size of the encoded driver block.
const CoexConfigLen = 12

// MarshalBinary encodes the block the way the driver's btc_lescan_params iovar expects it.
func (c CoexConfig) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, CoexConfigLen))
	if err := binary.Write(buf, binary.LittleEndian, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c CoexConfig) String() string {
	return fmt.Sprintf("priority %d, duty cycle %d%%, max window %d, interval grant %d, interval %d, window %d",
		c.Priority, c.DutyCycle, c.MaxWindow, c.IntervalGrant, c.ScanInterval, c.ScanWindow)
}

// Validate checks the caller's configuration. The first failing check wins.
func Validate(w WifiConfig, b BtConfig) error {
	switch {
	case w.Interface != InterfaceSTA:
		return errors.Wrapf(ErrInvalidArgument, "invalid Wi-Fi interface type %v; must be %v", w.Interface, InterfaceSTA)

	case b.Done == nil:
		return errors.Wrap(ErrInvalidArgument, "BT coex completion channel cannot be nil")

	case b.ScanInterval < ScanIntervalMin || b.ScanInterval > ScanIntervalMax:
		return errors.Wrapf(ErrInvalidArgument, "invalid scan interval %v; must be in the range of %d to %d slots",
			b.ScanInterval, ScanIntervalMin, ScanIntervalMax)

	case b.ScanWindow < ScanWindowMin || b.ScanWindow > ScanWindowMax:
		return errors.Wrapf(ErrInvalidArgument, "invalid scan window %v; must be in the range of %d to %d slots",
			b.ScanWindow, ScanWindowMin, ScanWindowMax)

	case b.ScanWindow > b.ScanInterval:
		return errors.Wrapf(ErrInvalidArgument, "invalid scan window %v; must not exceed scan interval %v",
			b.ScanWindow, b.ScanInterval)
	}

	return nil
}

// Map builds both blocks from b. Nothing is produced unless the priority lookup succeeds.
func Map(b BtConfig) (ScanParams, CoexConfig, error) {
	t, err := Lookup(b.Priority)
	if err != nil {
		return ScanParams{}, CoexConfig{}, err
	}

	sp := ScanParams{
		MaxScanWindow:      t.MaxScanWindow,
		DutyCycle:          t.DutyCycle,
		SmallIntervalGrant: t.SmallIntervalGrant,
		ScanInterval:       b.ScanInterval,
		ScanWindow:         b.ScanWindow,
		Priority:           b.Priority,
	}
	cc := CoexConfig{
		Priority:      uint16(b.Priority),
		ScanInterval:  b.ScanInterval,
		ScanWindow:    b.ScanWindow,
		DutyCycle:     uint16(t.DutyCycle),
		MaxWindow:     t.MaxScanWindow,
		IntervalGrant: uint16(t.SmallIntervalGrant),
	}
	return sp, cc, nil
}
