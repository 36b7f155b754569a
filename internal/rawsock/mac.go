package rawsock

import (
	"bytes"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/kangtastic/peapod/internal/ifacetable"
)

// Discover populates iface.Index and iface.MTU from the kernel, using
// netlink rather than the raw SIOCGIFINDEX/SIOCGIFMTU ioctls the
// original tool uses (spec.md §4.2's "validate" step), matching
// veesix-networks-osvbng's netlink-based interface introspection.
//
// iface.Index arrives from internal/config holding a synthetic,
// parse-time-only ordinal; it is replaced here with the kernel's real
// ifindex via table.Reindex, which also re-keys table's lookup map and
// fixes up any other interface's LearnMACFrom that referenced the old
// value, so index-based lookups and comparisons stay consistent once
// the real ifindex is known.
func Discover(table *ifacetable.Table, iface *ifacetable.Interface) error {
	link, err := netlink.LinkByName(iface.Name)
	if err != nil {
		return fmt.Errorf("rawsock: lookup %q: %w", iface.Name, err)
	}
	attrs := link.Attrs()
	if attrs.OperState != netlink.OperUp && attrs.Flags&net.FlagUp == 0 {
		return fmt.Errorf("rawsock: interface %q is not up", iface.Name)
	}
	if err := table.Reindex(iface, attrs.Index); err != nil {
		return fmt.Errorf("rawsock: reindex %q: %w", iface.Name, err)
	}
	iface.MTU = attrs.MTU
	return nil
}

// currentMAC returns iface's current hardware address.
func currentMAC(iface *ifacetable.Interface) (net.HardwareAddr, error) {
	link, err := netlink.LinkByName(iface.Name)
	if err != nil {
		return nil, fmt.Errorf("rawsock: lookup %q: %w", iface.Name, err)
	}
	return link.Attrs().HardwareAddr, nil
}

// SetMAC sets iface's MAC address to newMAC, cycling the link down and
// back up as required by the kernel to accept a new hardware address
// (spec.md §4.2's "MAC mutation"). It is a no-op if the interface
// already has that address, and reads back the address afterward to
// confirm the mutation took effect.
func SetMAC(iface *ifacetable.Interface, newMAC net.HardwareAddr) error {
	link, err := netlink.LinkByName(iface.Name)
	if err != nil {
		return fmt.Errorf("rawsock: lookup %q: %w", iface.Name, err)
	}

	cur := link.Attrs().HardwareAddr
	if bytes.Equal(cur, newMAC) {
		return nil
	}

	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("rawsock: bring down %q: %w", iface.Name, err)
	}

	if err := netlink.LinkSetHardwareAddr(link, newMAC); err != nil {
		return fmt.Errorf("rawsock: set MAC %q: %w", iface.Name, err)
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("rawsock: bring up %q: %w", iface.Name, err)
	}

	got, err := currentMAC(iface)
	if err != nil {
		return fmt.Errorf("rawsock: verify MAC %q: %w", iface.Name, err)
	}
	if !bytes.Equal(got, newMAC) {
		return fmt.Errorf("rawsock: MAC verification failed on %q", iface.Name)
	}
	return nil
}
