package hci

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
)

type vendorCommand struct {
	payload []byte
	opCode  int
}

func (c *vendorCommand) OpCode() int {
	return c.opCode
}

func (c *vendorCommand) Len() int {
	return len(c.payload)
}

func (c *vendorCommand) Marshal(b []byte) error {
	if len(b) < c.Len() {
		return io.ErrShortBuffer
	}
	copy(b, c.payload)
	return nil
}

func (c *vendorCommand) String() string {
	ogf := (c.opCode & 0xFC00) >> ogfBitShift
	ocf := c.opCode & ocfMask

	return fmt.Sprintf("Vendor Command (0x%02x|0x%04x); Payload (% X)", ogf, ocf, c.payload)
}

// VendorOpcode composes the full opcode of a vendor specific command.
func VendorOpcode(ocf uint16) uint16 {
	return (ogfVendorSpecificDebug << ogfBitShift) | (ocf & ocfMask)
}

// SendVendorSpecificCommand queues a vendor specific command. It does not
// wait for the controller: the Command Complete (or a failed Command Status)
// is sent on done once it arrives.
//
// StatusBusy is returned when the controller has no command credit left or a
// command with the same opcode is still outstanding.
func (h *HCI) SendVendorSpecificCommand(ocf uint16, payload []byte, done chan<- smartcoex.CommandComplete) (smartcoex.Status, error) {
	if len(payload) > maxHciPayload {
		return 0, errors.Wrapf(ErrInvalidParameters, "invalid length %v; max hci payload length is %v", len(payload), maxHciPayload)
	}
	if ocf&^ocfMask != 0 {
		return 0, errors.Wrapf(ErrInvalidParameters, "invalid ocf 0x%04x", ocf)
	}
	if done == nil {
		return 0, errors.Wrap(ErrInvalidParameters, "nil completion channel")
	}

	c := &vendorCommand{
		opCode:  int(VendorOpcode(ocf)),
		payload: append([]byte(nil), payload...),
	}

	busy, err := h.queue(c, done)
	switch {
	case err != nil:
		return 0, err
	case busy:
		h.logger.Debugf("busy, not sending %v", c)
		return smartcoex.StatusBusy, nil
	}

	return smartcoex.StatusPending, nil
}
