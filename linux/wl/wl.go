// Package wl sets coex parameters on Broadcom/Cypress FullMAC Wi-Fi
// interfaces through the wl ioctl.
package wl

import (
	"github.com/pkg/errors"
	"github.com/rigado/smartcoex"
)

const (
	wlcSetVar = 263 // WLC_SET_VAR

	// IovarLEScanParams carries the LE scan coex block.
	IovarLEScanParams = "btc_lescan_params"

	// DefaultSTAName is the netdev normally backing the STA interface.
	DefaultSTAName = "wlan0"

	maxIovarLen = 1024
)

// Driver issues wl ioctls against a named netdev.
type Driver interface {
	SetVar(ifname, name string, value []byte) error
}

// Resolver maps logical Wi-Fi interfaces to netdevs.
type Resolver struct {
	names  map[smartcoex.WifiInterface]string
	driver Driver
	lookup func(string) (link, error)
	logger smartcoex.Logger
}

// An Option configures a Resolver.
type Option func(*Resolver) error

// OptInterfaceName binds a logical interface to a netdev name.
func OptInterfaceName(i smartcoex.WifiInterface, name string) Option {
	return func(r *Resolver) error {
		if name == "" {
			return errors.New("empty interface name")
		}
		r.names[i] = name
		return nil
	}
}

// OptDriver replaces the ioctl driver.
func OptDriver(d Driver) Option {
	return func(r *Resolver) error {
		if d == nil {
			return errors.New("nil driver")
		}
		r.driver = d
		return nil
	}
}

// OptLogger overrides the resolver logger.
func OptLogger(l smartcoex.Logger) Option {
	return func(r *Resolver) error {
		if l == nil {
			return errors.New("nil logger")
		}
		r.logger = l
		return nil
	}
}

// NewResolver returns a resolver mapping the STA interface to DefaultSTAName.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{
		names:  map[smartcoex.WifiInterface]string{smartcoex.InterfaceSTA: DefaultSTAName},
		driver: newIoctlDriver(),
		lookup: lookupLink,
		logger: smartcoex.GetLogger().ChildLogger(map[string]interface{}{"component": "wl"}),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, errors.Wrap(err, "can't set options")
		}
	}
	return r, nil
}

// Resolve returns the handle of the netdev bound to i. Only the STA interface is supported.
func (r *Resolver) Resolve(i smartcoex.WifiInterface) (smartcoex.WifiHandle, error) {
	if i != smartcoex.InterfaceSTA {
		r.logger.Errorf("interface type [0x%X] not supported", uint8(i))
		return nil, errors.Wrapf(smartcoex.ErrInvalidArgument, "interface type %v not supported", i)
	}

	name, ok := r.names[i]
	if !ok {
		return nil, errors.Errorf("no netdev bound to %v", i)
	}

	l, err := r.lookup(name)
	if err != nil {
		return nil, errors.Wrapf(err, "can't find netdev %v", name)
	}
	if !l.Up {
		// the driver still takes iovars while the link is down
		r.logger.Warnf("netdev %v is down", l.Name)
	}

	return &Iface{Name: l.Name, Index: l.Index, driver: r.driver, logger: r.logger}, nil
}

// Iface is a resolved netdev.
type Iface struct {
	Name  string
	Index int

	driver Driver
	logger smartcoex.Logger
}

// SetCoexConfig writes c with the btc_lescan_params iovar.
func (i *Iface) SetCoexConfig(c smartcoex.CoexConfig) error {
	b, err := c.MarshalBinary()
	if err != nil {
		return err
	}

	i.logger.Debugf("%v: set %v [% X]", i.Name, IovarLEScanParams, b)
	if err := i.driver.SetVar(i.Name, IovarLEScanParams, b); err != nil {
		return errors.Wrapf(err, "%v: can't set %v", i.Name, IovarLEScanParams)
	}
	return nil
}

// encodeIovar lays out a WLC_SET_VAR buffer: the NUL terminated name followed by the value.
func encodeIovar(name string, value []byte) ([]byte, error) {
	l := len(name) + 1 + len(value)
	if l > maxIovarLen {
		return nil, errors.Errorf("iovar %v too long (%v bytes)", name, l)
	}
	b := make([]byte, 0, l)
	b = append(b, name...)
	b = append(b, 0)
	b = append(b, value...)
	return b, nil
}
