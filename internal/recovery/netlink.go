package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NetlinkNetwork configures the fallback address through rtnetlink.
type NetlinkNetwork struct{}

// BringUp sets iface up and adds cidr to it. An address that is already
// assigned is not an error.
func (NetlinkNetwork) BringUp(ctx context.Context, iface, cidr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := netlink.ParseAddr(cidr)
	if err != nil {
		return fmt.Errorf("invalid fallback address %q: %w", cidr, err)
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("interface %s not found: %w", iface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to set %s up: %w", iface, err)
	}
	if err := netlink.AddrAdd(link, addr); err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("failed to add %s to %s: %w", cidr, iface, err)
	}
	return nil
}
