package evt

// Event codes [Vol 2, Part E, 7.7].
const (
	CommandCompleteCode = 0x0E
	CommandStatusCode   = 0x0F
	LEMetaCode          = 0x3E
	VendorCode          = 0xFF
)

// CommandComplete implements Command Complete (0x0E) [Vol 2, Part E, 7.7.14].
type CommandComplete []byte

// CommandStatus implements Command Status (0x0F) [Vol 2, Part E, 7.7.15].
type CommandStatus []byte

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := e.ReturnParametersWErr()
	return v
}

// Status is the first return parameter, which is the status for every
// command this package sends. A missing status reads as success.
func (e CommandComplete) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e CommandStatus) Status() uint8 {
	v, _ := e.StatusWErr()
	return v
}

func (e CommandStatus) NumHCICommandPackets() uint8 {
	v, _ := e.NumHCICommandPacketsWErr()
	return v
}

func (e CommandStatus) CommandOpcode() uint16 {
	v, _ := e.CommandOpcodeWErr()
	return v
}

// Valid reports whether the event is long enough to carry all its fields.
func (e CommandStatus) Valid() bool {
	return len(e) == 4
}
