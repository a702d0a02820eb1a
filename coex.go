package smartcoex

import (
	"fmt"

	"github.com/pkg/errors"
)

// OCFLEScanCoex is the vendor OCF carrying the LE scan coex parameters.
const OCFLEScanCoex uint16 = 0x0194

const ocfMask = 0x03FF

// WifiConfig selects the Wi-Fi side of the configuration.
type WifiConfig struct {
	Interface WifiInterface
}

// BtConfig is the Bluetooth side of the configuration.
//
// ScanInterval and ScanWindow are in slots (1 slot = 0.625 ms), range
// 4-16384, and ScanWindow must not exceed ScanInterval. Done receives the
// controller's final answer to the vendor command; it is owned by the caller
// and should be buffered.
type BtConfig struct {
	Priority     Priority
	ScanInterval uint16
	ScanWindow   uint16
	Done         chan<- CommandComplete
}

// CommandComplete is the final outcome of a vendor command.
type CommandComplete struct {
	Opcode uint16
	Status uint8
	Params []byte
}

// OK reports whether the controller accepted the parameters.
func (c CommandComplete) OK() bool {
	return c.Status == 0x00
}

func (c CommandComplete) String() string {
	return fmt.Sprintf("vendor command 0x%04x complete, status 0x%02x, params [% X]", c.Opcode, c.Status, c.Params)
}

// Status is the synchronous result of handing a vendor command to the Bluetooth stack.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusPending
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusPending:
		return "pending"
	case StatusBusy:
		return "busy"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// VendorCommander sends vendor specific HCI commands. The final result is
// sent on done; for StatusBusy or a non-nil error nothing is sent.
type VendorCommander interface {
	SendVendorSpecificCommand(ocf uint16, payload []byte, done chan<- CommandComplete) (Status, error)
}

// InterfaceResolver maps a logical Wi-Fi interface to a driver handle.
type InterfaceResolver interface {
	Resolve(WifiInterface) (WifiHandle, error)
}

// WifiHandle is a resolved driver interface.
type WifiHandle interface {
	SetCoexConfig(CoexConfig) error
}

// Applied is the pair of blocks produced by one Configure call.
type Applied struct {
	Scan ScanParams
	Coex CoexConfig
}

// Coex configures Wi-Fi/BT smart coex.
type Coex struct {
	bt   VendorCommander
	wifi InterfaceResolver

	ocf    uint16
	logger Logger
}

// New returns a Coex dispatching to bt and wifi.
func New(bt VendorCommander, wifi InterfaceResolver, opts ...Option) (*Coex, error) {
	if bt == nil || wifi == nil {
		return nil, errors.New("bluetooth and wifi collaborators are required")
	}
	c := &Coex{
		bt:     bt,
		wifi:   wifi,
		ocf:    OCFLEScanCoex,
		logger: GetLogger().ChildLogger(map[string]interface{}{"component": "smartcoex"}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrap(err, "can't set options")
		}
	}
	return c, nil
}

func (c *Coex) SetLogger(l Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	c.logger = l
	return nil
}

func (c *Coex) SetVendorOCF(ocf uint16) error {
	if ocf&^ocfMask != 0 {
		return errors.Errorf("invalid OCF 0x%04x; must fit in 10 bits", ocf)
	}
	c.ocf = ocf
	return nil
}

// Configure validates the request, sends the scan parameters to the Bluetooth
// controller and, unless that fails, the coex block to the Wi-Fi driver. Call
// it again every time the LE scan interval or window changes.
//
// Failures are terminal and nothing is rolled back: once the vendor command
// is accepted, its completion arrives on b.Done even if the Wi-Fi step fails.
func (c *Coex) Configure(w WifiConfig, b BtConfig) (Applied, error) {
	if err := Validate(w, b); err != nil {
		c.logger.Error(err)
		return Applied{}, err
	}

	sp, cc, err := Map(b)
	if err != nil {
		c.logger.Error(err)
		return Applied{}, err
	}
	a := Applied{Scan: sp, Coex: cc}

	payload, err := sp.MarshalBinary()
	if err != nil {
		return a, newFatalError(errors.Wrap(err, "can't encode scan params"))
	}

	st, err := c.bt.SendVendorSpecificCommand(c.ocf, payload, b.Done)
	switch {
	case err != nil:
		fe := newFatalError(err)
		c.logger.Errorf("vendor specific command failed with error [0x%X]: %v", fe.Code, err)
		return a, fe
	case st == StatusBusy:
		c.logger.Error("BT stack is busy; command not sent")
		return a, ErrBusy
	case st != StatusSuccess && st != StatusPending:
		fe := &FatalError{Code: int(st), Err: errors.Errorf("unexpected dispatch status %v", st)}
		c.logger.Error(fe)
		return a, fe
	}
	c.logger.Debugf("vendor command 0x%03x %v: % X", c.ocf, st, payload)

	h, err := c.wifi.Resolve(w.Interface)
	if err != nil {
		c.logger.Errorf("resolving Wi-Fi interface %v failed: %v", w.Interface, err)
		return a, err
	}

	if err := h.SetCoexConfig(cc); err != nil {
		c.logger.Errorf("setting Wi-Fi coex config failed: %v", err)
		return a, err
	}

	c.logger.Infof("smart coex configured: priority %v, interval %d, window %d", b.Priority, b.ScanInterval, b.ScanWindow)
	return a, nil
}
