package rawsock

import (
	"encoding/binary"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
)

// nativeEndian is the byte order the kernel uses for the fields inside
// a struct tpacket_auxdata control message, which is always the host's
// native order (there is no on-wire conversion, unlike network data).
var nativeEndian = func() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// tpStatusVLANValid and tpStatusVLANTPIDValid are TP_STATUS_* bits from
// <linux/if_packet.h> describing which of a tpacket_auxdata's VLAN
// fields are meaningful.
const (
	tpStatusVLANValid     = 0x10
	tpStatusVLANTPIDValid = 0x40
)

// auxdata mirrors the fixed-size prefix of Linux's struct
// tpacket_auxdata, which x/sys/unix does not expose directly.
type auxdata struct {
	Status    uint32
	Len       uint32
	SnapLen   uint32
	Mac       uint16
	Net       uint16
	VLANTCI   uint16
	VLANTPID  uint16
}

const auxdataLen = 20

func parseAuxdata(cmsgs []unix.SocketControlMessage) (*auxdata, bool) {
	for _, c := range cmsgs {
		if c.Header.Level != unix.SOL_PACKET || c.Header.Type != unix.PACKET_AUXDATA {
			continue
		}
		if len(c.Data) < auxdataLen {
			continue
		}
		return &auxdata{
			Status:   nativeEndian.Uint32(c.Data[0:4]),
			Len:      nativeEndian.Uint32(c.Data[4:8]),
			SnapLen:  nativeEndian.Uint32(c.Data[8:12]),
			Mac:      nativeEndian.Uint16(c.Data[12:14]),
			Net:      nativeEndian.Uint16(c.Data[14:16]),
			VLANTCI:  nativeEndian.Uint16(c.Data[16:18]),
			VLANTPID: nativeEndian.Uint16(c.Data[18:20]),
		}, true
	}
	return nil, false
}

// Recv performs one scatter receive on iface's socket into buf, per
// spec.md §4.2, and fills in view accordingly. It returns
// frame.RecvRunt/frame.RecvGiant for undersized/oversized frames
// (dropped by the caller), or frame.RecvOK with view populated.
func Recv(iface *ifacetable.Interface, buf *frame.Buffer, view *frame.PacketView) (frame.RecvOutcome, error) {
	dest, src, pdu := buf.RecvSegments()
	oob := make([]byte, unix.CmsgSpace(auxdataLen))

	n, oobn, _, _, err := unix.RecvmsgBuffers(iface.FD, [][]byte{dest, src, pdu}, oob, 0)
	if err != nil {
		return frame.RecvOK, fmt.Errorf("rawsock: recv %q: %w", iface.Name, err)
	}

	rawLength := n
	trueLength := n
	vlanValid := false
	var tpid, tci uint16

	if oobn > 0 {
		cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err == nil {
			if aux, ok := parseAuxdata(cmsgs); ok {
				trueLength = int(aux.Len)
				if aux.Status&tpStatusVLANValid != 0 {
					vlanValid = true
					tci = aux.VLANTCI
					if aux.Status&tpStatusVLANTPIDValid != 0 && aux.VLANTPID != 0 {
						tpid = aux.VLANTPID
					} else {
						tpid = 0x8100
					}
				}
			}
		}
	}

	pduCap := buf.MTU() + frame.EtherTypeLen
	outcome := frame.DecodeReceive(view, [frame.MACAddrLen]byte(dest[:6]), [frame.MACAddrLen]byte(src[:6]),
		rawLength, trueLength, pduCap, vlanValid, tpid, tci)
	if outcome != frame.RecvOK {
		return outcome, nil
	}

	view.IngressInterface = iface
	view.CurrentInterface = iface

	var ts unix.Timeval
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(iface.FD), uintptr(unix.SIOCGSTAMP), uintptr(unsafe.Pointer(&ts))); errno == 0 {
		view.Timestamp = time.Unix(int64(ts.Sec), int64(ts.Usec)*1000)
	} else {
		view.Timestamp = time.Now()
	}

	return frame.RecvOK, nil
}

// Send transmits data (as built by frame.Buffer.FrameStart) on iface's
// socket in a single write, per spec.md §4.2.
func Send(iface *ifacetable.Interface, data []byte) error {
	sa := &unix.SockaddrLinklayer{Ifindex: iface.Index}
	if err := unix.Sendto(iface.FD, data, 0, sa); err != nil {
		return fmt.Errorf("rawsock: send %q: %w", iface.Name, err)
	}
	return nil
}
