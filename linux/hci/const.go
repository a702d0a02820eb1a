package hci

import "time"

// HCI Packet types
const (
	pktTypeCommand uint8 = 0x01
	pktTypeACLData uint8 = 0x02
	pktTypeSCOData uint8 = 0x03
	pktTypeEvent   uint8 = 0x04
	pktTypeVendor  uint8 = 0xFF
)

const (
	ogfVendorSpecificDebug = 0x3F
	ogfBitShift            = 10
	ocfMask                = 0x03FF

	cmdHeaderLength = 4
	maxHciPayload   = 255
)

const (
	chCmdBufChanSize    = 16
	chCmdBufElementSize = cmdHeaderLength + maxHciPayload

	// max wait for a caller to take a completion
	completeDeliveryTimeout = time.Second

	defaultCmdTimeout = 3 * time.Second
)
