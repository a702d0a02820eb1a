package hci

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"github.com/rigado/smartcoex/linux/hci/evt"
)

// Command ...
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

type handlerFn func(b []byte) error

type pkt struct {
	cmd  Command
	done chan<- smartcoex.CommandComplete
	sent time.Time
}

// NewHCI returns a hci device. Init must be called before sending commands.
func NewHCI(opts ...Option) (*HCI, error) {
	h := &HCI{
		chCmdBufs:  make(chan []byte, chCmdBufChanSize),
		sent:       make(map[int]*pkt),
		evth:       map[int]handlerFn{},
		done:       make(chan bool),
		sktRxChan:  make(chan []byte, 16),
		cmdTimeout: defaultCmdTimeout,
		logger:     smartcoex.GetLogger().ChildLogger(map[string]interface{}{"component": "hci"}),
	}
	if err := h.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}

	return h, nil
}

// HCI sends vendor specific commands to a controller and routes their
// completions back to the callers.
type HCI struct {
	transport transport
	skt       io.ReadWriteCloser

	// Host to Controller command flow control [Vol 2, Part E, 4.4]
	chCmdBufs chan []byte
	muSent    sync.Mutex
	sent      map[int]*pkt

	// an outstanding command is given up after this long
	cmdTimeout time.Duration

	evth map[int]handlerFn

	errorHandler func(error)
	muErr        sync.Mutex
	err          error

	muClose sync.Mutex
	done    chan bool

	sktRxChan chan []byte

	logger smartcoex.Logger
}

// Init opens the transport and starts the event loops.
func (h *HCI) Init() error {
	h.evth[evt.CommandCompleteCode] = h.handleCommandComplete
	h.evth[evt.CommandStatusCode] = h.handleCommandStatus

	var err error
	h.skt, err = getTransport(h.transport)
	if err != nil {
		return err
	}

	h.setAllowedCommands(1)

	go h.sktReadLoop()
	go h.sktProcessLoop()
	return nil
}

// Close ...
func (h *HCI) Close() error {
	h.muClose.Lock()
	defer h.muClose.Unlock()

	select {
	case <-h.done:
		//already closed, nothing to do
		return nil
	default:
		close(h.done)
	}

	if h.skt == nil {
		return nil
	}
	return h.skt.Close()
}

// Error returns the error that stopped the device, if any.
func (h *HCI) Error() error {
	h.muErr.Lock()
	defer h.muErr.Unlock()
	return h.err
}

func (h *HCI) setErr(err error) {
	h.muErr.Lock()
	defer h.muErr.Unlock()
	if h.err == nil {
		h.err = err
	}
}

// Option sets the options specified.
func (h *HCI) Option(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return err
		}
	}
	return nil
}

func (h *HCI) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// queue writes c to the transport and records it as outstanding. busy is set
// when no command credit is available or the opcode is already outstanding.
func (h *HCI) queue(c Command, done chan<- smartcoex.CommandComplete) (busy bool, err error) {
	if !h.isOpen() || h.skt == nil {
		return false, errors.Wrap(ErrClosed, "can't queue command")
	}
	if err := h.Error(); err != nil {
		return false, errors.Wrapf(ErrTransport, "hci stopped: %v", err)
	}

	h.expireSent(time.Now())

	h.muSent.Lock()
	if _, ok := h.sent[c.OpCode()]; ok {
		h.muSent.Unlock()
		return true, nil
	}

	var b []byte
	select {
	case b = <-h.chCmdBufs:
		//ok
	default:
		h.muSent.Unlock()
		return true, nil
	}

	// registered before writing, the complete event can beat the write's return
	h.sent[c.OpCode()] = &pkt{cmd: c, done: done, sent: time.Now()}
	h.muSent.Unlock()

	//HCI header
	b[0] = pktTypeCommand
	b[1] = byte(c.OpCode())
	b[2] = byte(c.OpCode() >> 8)
	b[3] = byte(c.Len())
	if err := c.Marshal(b[cmdHeaderLength:]); err != nil {
		h.takeSent(c.OpCode())
		h.putCmdBuf()
		return false, errors.Wrap(err, "hci: failed to marshal cmd")
	}

	h.logger.Debugf("tx cmd [% X]", b[:cmdHeaderLength+c.Len()])
	n, err := h.skt.Write(b[:cmdHeaderLength+c.Len()])
	switch {
	case err != nil:
		h.takeSent(c.OpCode())
		h.close(err)
		return false, errors.Wrapf(ErrTransport, "failed to send cmd: %v", err)
	case n != cmdHeaderLength+c.Len():
		h.takeSent(c.OpCode())
		err = errors.Wrapf(ErrTransport, "short write, %d of %d bytes", n, cmdHeaderLength+c.Len())
		h.close(err)
		return false, err
	}

	return false, nil
}

func (h *HCI) takeSent(opCode int) *pkt {
	h.muSent.Lock()
	defer h.muSent.Unlock()
	p, ok := h.sent[opCode]
	if !ok {
		return nil
	}
	delete(h.sent, opCode)
	return p
}

// expireSent gives up on commands the controller never answered. Their
// command credit is returned and the caller gets ErrCommandTimeout.
func (h *HCI) expireSent(now time.Time) {
	var expired []*pkt

	h.muSent.Lock()
	for op, p := range h.sent {
		if now.Sub(p.sent) >= h.cmdTimeout {
			delete(h.sent, op)
			expired = append(expired, p)
		}
	}
	h.muSent.Unlock()

	for _, p := range expired {
		h.putCmdBuf()
		op := uint16(p.cmd.OpCode())
		h.dispatchError(errors.Wrapf(ErrCommandTimeout, "no answer to command 0x%04X after %v", op, h.cmdTimeout))
		// the caller's channel may be full, don't hold up the queue
		go h.deliver(p, smartcoex.CommandComplete{Opcode: op, Status: byte(ErrCommandTimeout)})
	}
}

func (h *HCI) sktProcessLoop() {
	defer h.cleanup()

	sweep := time.NewTicker(h.cmdTimeout / 2)
	defer sweep.Stop()

	for {
		var p []byte
		var ok bool

		select {
		case now := <-sweep.C:
			h.expireSent(now)
			continue

		case <-h.done:
			h.logger.Debug("close requested")
			return

		case p, ok = <-h.sktRxChan:
			if !ok {
				h.logger.Debug("socket rx closed")
				h.setErr(io.EOF)
				return
			}
			// will process the bytes below
		}

		if err := h.handlePkt(p); err != nil {
			h.dispatchError(errors.Wrap(err, "skt"))
		}
	}
}

func (h *HCI) sktReadLoop() {
	defer close(h.sktRxChan)

	b := make([]byte, 4096)

	for {
		n, err := h.skt.Read(b)

		switch {
		case n == 0 && err == nil:
			// read timeout
			select {
			case <-h.done:
				//exit!
				return
			default:
				continue
			}

		//callers depend on detecting io.EOF, don't wrap it.
		case err == io.EOF:
			h.setErr(err)
			return

		case err != nil:
			if h.isOpen() {
				h.setErr(fmt.Errorf("skt read error: %v", err))
			}
			return

		default:
			p := make([]byte, n)
			copy(p, b)
			select {
			case h.sktRxChan <- p:
			case <-h.done:
				return
			}
		}
	}
}

func (h *HCI) close(err error) error {
	h.setErr(err)
	return h.Close()
}

func (h *HCI) cleanup() {
	h.muSent.Lock()
	defer h.muSent.Unlock()
	for op := range h.sent {
		h.logger.Warnf("dropping outstanding command 0x%04X", op)
		delete(h.sent, op)
	}
}

func (h *HCI) handlePkt(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("empty packet")
	}

	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case pktTypeEvent:
		return h.handleEvt(b)

	// not ours, a shared controller will also carry the host's traffic
	case pktTypeACLData, pktTypeSCOData, pktTypeVendor:
		h.logger.Debugf("ignoring packet type 0x%02X", t)
		return nil
	case pktTypeCommand:
		return fmt.Errorf("unmanaged cmd: % X", b)
	default:
		return fmt.Errorf("invalid packet: 0x%02X % X", t, b)
	}
}

func (h *HCI) handleEvt(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("invalid event packet: % X", b)
	}
	code, plen := int(b[0]), int(b[1])
	if plen != len(b[2:]) {
		return fmt.Errorf("invalid event packet: % X", b)
	}

	if f := h.evth[code]; f != nil {
		return f(b[2:])
	}

	h.logger.Debugf("ignoring event 0x%02X", code)
	return nil
}

func (h *HCI) handleCommandComplete(b []byte) error {
	e := evt.CommandComplete(b)
	op, err := e.CommandOpcodeWErr()
	if err != nil {
		return fmt.Errorf("invalid command complete: % X", b)
	}
	h.setAllowedCommands(int(e.NumHCICommandPackets()))

	// NOP command, used for flow control purpose [Vol 2, Part E, 4.4]
	// no handling other than setAllowedCommands needed
	if op == 0x0000 {
		return nil
	}

	p := h.takeSent(int(op))
	if p == nil {
		h.logger.Debugf("command complete for untracked opcode 0x%04X", op)
		return nil
	}

	rp := e.ReturnParameters()
	h.deliver(p, smartcoex.CommandComplete{
		Opcode: op,
		Status: e.Status(),
		Params: append([]byte(nil), rp...),
	})
	return nil
}

func (h *HCI) handleCommandStatus(b []byte) error {
	e := evt.CommandStatus(b)

	if !e.Valid() {
		return fmt.Errorf("invalid command status: % X", b)
	}

	h.setAllowedCommands(int(e.NumHCICommandPackets()))

	op := e.CommandOpcode()
	if e.Status() == 0x00 {
		// accepted, the complete event follows
		return nil
	}

	p := h.takeSent(int(op))
	if p == nil {
		h.logger.Debugf("command status for untracked opcode 0x%04X", op)
		return nil
	}

	h.logger.Warnf("command 0x%04X rejected: %v", op, ErrCommand(e.Status()))
	h.deliver(p, smartcoex.CommandComplete{Opcode: op, Status: e.Status()})
	return nil
}

func (h *HCI) deliver(p *pkt, c smartcoex.CommandComplete) {
	select {
	case p.done <- c:
	case <-h.done:
	case <-time.After(completeDeliveryTimeout):
		h.dispatchError(fmt.Errorf("completion for opcode 0x%04X dropped, receiver not ready", c.Opcode))
	}
}

func (h *HCI) setAllowedCommands(n int) {
	if n > chCmdBufChanSize {
		h.logger.Warnf("setAllowedCommands: defaulting %d -> %d", n, chCmdBufChanSize)
		n = chCmdBufChanSize
	}

	for len(h.chCmdBufs) < n {
		select {
		case h.chCmdBufs <- make([]byte, chCmdBufElementSize):
		default:
			return
		}
	}
}

func (h *HCI) putCmdBuf() {
	select {
	case h.chCmdBufs <- make([]byte, chCmdBufElementSize):
	default:
	}
}

func (h *HCI) dispatchError(e error) {
	switch {
	case h.errorHandler == nil:
		h.logger.Error(e)
	case !h.isOpen():
		//don't dispatch
		h.logger.Debug("hci closing: ", e)
	default:
		h.errorHandler(e)
	}
}
