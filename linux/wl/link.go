package wl

import (
	"net"

	"github.com/vishvananda/netlink"
)

type link struct {
	Name  string
	Index int
	Up    bool
}

func lookupLink(name string) (link, error) {
	l, err := netlink.LinkByName(name)
	if err != nil {
		return link{}, err
	}
	a := l.Attrs()
	return link{Name: a.Name, Index: a.Index, Up: a.Flags&net.FlagUp != 0}, nil
}
