package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
	"github.com/rigado/smartcoex/config"
	"github.com/rigado/smartcoex/linux/hci"
	"github.com/rigado/smartcoex/linux/wl"
	"github.com/urfave/cli"
)

func cmdConfigure(c *cli.Context) error {
	cfg := profile(c)
	if err := applyFlags(c, cfg); err != nil {
		return err
	}
	wait, err := cfg.CompleteTimeout()
	if err != nil {
		return err
	}
	if c.IsSet("wait") {
		wait = c.Duration("wait")
	}

	logger := smartcoex.GetLogger()

	topt, err := transportOption(cfg.Transport)
	if err != nil {
		return err
	}
	h, err := hci.NewHCI(topt, hci.OptErrorHandler(func(err error) {
		logger.Warnf("hci: %v", err)
	}))
	if err != nil {
		return err
	}
	if err := h.Init(); err != nil {
		return errors.Wrap(err, "can't open bluetooth transport")
	}
	defer h.Close()

	r, err := wl.NewResolver(wl.OptInterfaceName(smartcoex.InterfaceSTA, cfg.Netdev))
	if err != nil {
		return err
	}

	cx, err := smartcoex.New(h, r, smartcoex.OptVendorOCF(cfg.VendorOCF))
	if err != nil {
		return err
	}

	done := make(chan smartcoex.CommandComplete, 1)
	w, b, err := cfg.Requests(done)
	if err != nil {
		return err
	}

	a, err := cx.Configure(w, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wifi %v (%v): %v\n", w.Interface, cfg.Netdev, a.Coex)

	if wait <= 0 {
		fmt.Fprintln(c.App.Writer, "bluetooth: not waiting for completion")
		return nil
	}
	return awaitComplete(c, done, h, wait)
}

func awaitComplete(c *cli.Context, done <-chan smartcoex.CommandComplete, h *hci.HCI, wait time.Duration) error {
	select {
	case cc := <-done:
		fmt.Fprintf(c.App.Writer, "bluetooth: %v\n", cc)
		if !cc.OK() {
			return &smartcoex.FatalError{Code: int(cc.Status), Err: hci.ErrCommand(cc.Status)}
		}
		return nil
	case <-time.After(wait):
		if err := h.Error(); err != nil {
			return errors.Wrap(err, "bluetooth transport failed")
		}
		return errors.Errorf("no completion from the controller after %v", wait)
	}
}

func cmdPayload(c *cli.Context) error {
	cfg := profile(c)
	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	w, b, err := cfg.Requests(make(chan smartcoex.CommandComplete))
	if err != nil {
		return err
	}
	if err := smartcoex.Validate(w, b); err != nil {
		return err
	}
	sp, cc, err := smartcoex.Map(b)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(smartcoex.Applied{Scan: sp, Coex: cc}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}

	spb, err := sp.MarshalBinary()
	if err != nil {
		return err
	}
	ccb, err := cc.MarshalBinary()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "hci  0x%04X [% X]\n", hci.VendorOpcode(cfg.VendorOCF), spb)
	fmt.Fprintf(c.App.Writer, "wl   %v [% X]\n", wl.IovarLEScanParams, ccb)
	return nil
}

func cmdTable(c *cli.Context) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tDUTY CYCLE\tMAX SCAN WINDOW\tINTERVAL GRANT")
	for _, p := range []smartcoex.Priority{smartcoex.PriorityLow, smartcoex.PriorityMedium, smartcoex.PriorityHigh} {
		t, err := smartcoex.Lookup(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%v\t%d%%\t%d\t%d\n", p, t.DutyCycle, t.MaxScanWindow, t.SmallIntervalGrant)
	}
	return tw.Flush()
}

// applyFlags layers the command line over the profile.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("priority") {
		cfg.Priority = c.String("priority")
	}
	if c.IsSet("interval") {
		v, err := uint16Flag(c, "interval", smartcoex.ScanIntervalMax)
		if err != nil {
			return err
		}
		cfg.ScanInterval = v
	}
	if c.IsSet("window") {
		v, err := uint16Flag(c, "window", smartcoex.ScanWindowMax)
		if err != nil {
			return err
		}
		cfg.ScanWindow = v
	}
	if c.IsSet("interface") {
		cfg.Interface = c.String("interface")
	}
	if c.IsSet("netdev") {
		cfg.Netdev = c.String("netdev")
	}
	if c.IsSet("ocf") {
		v, err := uint16Flag(c, "ocf", 0x03FF)
		if err != nil {
			return err
		}
		cfg.VendorOCF = v
	}
	if c.IsSet("baud") {
		cfg.Transport.Baud = c.Uint("baud")
	}

	switch {
	case c.IsSet("h4-uart"):
		cfg.Transport.Kind = config.TransportH4Uart
		cfg.Transport.Path = c.String("h4-uart")
	case c.IsSet("h4-socket"):
		cfg.Transport.Kind = config.TransportH4Socket
		cfg.Transport.Addr = c.String("h4-socket")
	case c.IsSet("hci"):
		cfg.Transport.Kind = config.TransportHCISocket
		cfg.Transport.Device = c.Int("hci")
	}

	return cfg.Validate()
}

// uint16Flag reads a uint flag that must not exceed max.
func uint16Flag(c *cli.Context, name string, max uint) (uint16, error) {
	v := c.Uint(name)
	if v > max {
		return 0, errors.Wrapf(smartcoex.ErrInvalidArgument, "--%s %d out of range; max %d", name, v, max)
	}
	return uint16(v), nil
}

func transportOption(t config.TransportConfig) (hci.Option, error) {
	switch t.Kind {
	case config.TransportHCISocket:
		return hci.OptTransportHCISocket(t.Device), nil
	case config.TransportH4Uart:
		return hci.OptTransportH4Uart(t.Path, t.Baud), nil
	case config.TransportH4Socket:
		d, err := t.DialTimeout()
		if err != nil {
			return nil, err
		}
		return hci.OptTransportH4Socket(t.Addr, d), nil
	}
	return nil, errors.Errorf("unsupported transport %q", t.Kind)
}
