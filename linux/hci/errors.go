package hci

import "fmt"

// ErrCommand is an HCI status code [Vol 2, Part D, 1.3].
type ErrCommand byte

const (
	ErrUnknownCommand        ErrCommand = 0x01
	ErrHardware              ErrCommand = 0x03
	ErrMemoryCapacity        ErrCommand = 0x07
	ErrCommandDisallowed     ErrCommand = 0x0C
	ErrUnsupportedParameters ErrCommand = 0x11
	ErrInvalidParameters     ErrCommand = 0x12
	ErrUnspecified           ErrCommand = 0x1F
	ErrControllerBusy        ErrCommand = 0x3A
)

// Host side failures, outside the range the controller reports.
const (
	ErrClosed         ErrCommand = 0xFD
	ErrTransport      ErrCommand = 0xFE
	ErrCommandTimeout ErrCommand = 0xFF
)

var errCommandNames = map[ErrCommand]string{
	ErrUnknownCommand:        "unknown HCI command",
	ErrHardware:              "hardware failure",
	ErrMemoryCapacity:        "memory capacity exceeded",
	ErrCommandDisallowed:     "command disallowed",
	ErrUnsupportedParameters: "unsupported feature or parameter value",
	ErrInvalidParameters:     "invalid HCI command parameters",
	ErrUnspecified:           "unspecified error",
	ErrControllerBusy:        "controller busy",
	ErrClosed:                "hci closed",
	ErrTransport:             "transport failure",
	ErrCommandTimeout:        "command timeout",
}

func (e ErrCommand) Error() string {
	if s, ok := errCommandNames[e]; ok {
		return fmt.Sprintf("hci: %s (0x%02X)", s, byte(e))
	}
	return fmt.Sprintf("hci: error code 0x%02X", byte(e))
}

// Code returns the raw status.
func (e ErrCommand) Code() int {
	return int(e)
}
