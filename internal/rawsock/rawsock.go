// Package rawsock implements the raw AF_PACKET socket layer (spec.md
// §4.2): socket creation/bind, classic BPF filter attach, multicast/
// promiscuous membership, PACKET_AUXDATA VLAN recovery, scatter
// receive/send, and MAC mutation via netlink.
package rawsock

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
)

// paeGroupAddrs are the three IEEE 802.1X PAE group addresses joined
// as multicast memberships on a non-promiscuous interface (spec.md §4.2).
var paeGroupAddrs = [3][frame.MACAddrLen]byte{
	{0x01, 0x80, 0xc2, 0x00, 0x00, 0x00},
	{0x01, 0x80, 0xc2, 0x00, 0x00, 0x03},
	{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e},
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// Open creates, binds, and configures a raw AF_PACKET socket for iface
// as described in spec.md §4.2, and stores its file descriptor in
// iface.FD. iface.Index and iface.MTU must already be populated (see
// Discover).
func Open(iface *ifacetable.Interface) error {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return fmt.Errorf("rawsock: socket %q: %w", iface.Name, err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
		Pkttype:  unix.PACKET_HOST | unix.PACKET_MULTICAST,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return fmt.Errorf("rawsock: bind %q: %w", iface.Name, err)
	}

	if err := attachFilter(fd); err != nil {
		unix.Close(fd)
		return fmt.Errorf("rawsock: attach filter %q: %w", iface.Name, err)
	}

	if err := joinGroups(fd, iface); err != nil {
		unix.Close(fd)
		return fmt.Errorf("rawsock: join group %q: %w", iface.Name, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_PACKET, unix.PACKET_AUXDATA, 1); err != nil {
		// Non-fatal: the original tool logs and continues without VLAN
		// recovery when this fails (shouldn't happen on modern kernels).
		_ = err
	}

	iface.FD = fd
	return nil
}

// Close closes iface's socket, if any, and resets iface.FD to -1.
func Close(iface *ifacetable.Interface) error {
	if iface.FD < 0 {
		return nil
	}
	err := unix.Close(iface.FD)
	iface.FD = -1
	if err != nil {
		return fmt.Errorf("rawsock: close %q: %w", iface.Name, err)
	}
	return nil
}

func joinGroups(fd int, iface *ifacetable.Interface) error {
	if iface.Promiscuous {
		mreq := unix.PacketMreq{
			Ifindex: int32(iface.Index),
			Type:    unix.PACKET_MR_PROMISC,
		}
		return unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq)
	}

	for _, addr := range paeGroupAddrs {
		mreq := unix.PacketMreq{
			Ifindex: int32(iface.Index),
			Type:    unix.PACKET_MR_MULTICAST,
			Alen:    frame.MACAddrLen,
		}
		copy(mreq.Address[:], addr[:])
		if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return err
		}
	}
	return nil
}
