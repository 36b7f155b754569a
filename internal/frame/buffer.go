// Package frame implements the zero-copy frame buffer (spec.md §4.1)
// and the per-packet view (§3) that every packet-plane package reads
// and mutates in place.
package frame

import "encoding/binary"

const (
	// MACAddrLen is the length of an Ethernet hardware address.
	MACAddrLen = 6

	// MACPrefixLen is the scratch region for the reconstructed
	// destination+source MAC pair, written just before send.
	MACPrefixLen = 2 * MACAddrLen

	// TagLen is the length of a reconstructed IEEE 802.1Q tag (2-byte
	// TPID + 2-byte TCI).
	TagLen = 4

	// EtherTypeLen is the length of the EtherType field.
	EtherTypeLen = 2

	// HeaderLen is the offset of the EtherType field: the MAC prefix
	// plus the 802.1Q tag scratch, whether or not a tag is present.
	HeaderLen = MACPrefixLen + TagLen

	// EtherTypeOffset is where the EtherType field begins.
	EtherTypeOffset = HeaderLen

	// PDUOffset is where the EAPOL PDU begins, immediately after the
	// EtherType field.
	PDUOffset = EtherTypeOffset + EtherTypeLen

	// EAPOLEtherType is the EtherType value for IEEE 802.1X EAPOL frames.
	EAPOLEtherType = 0x888E

	// dot1QTPID is the fixed TPID of an IEEE 802.1Q tag.
	dot1QTPID = 0x8100

	// MinFrameLen is the minimum Ethernet frame length, excluding FCS,
	// below which a received frame is a "runt" and must be dropped.
	MinFrameLen = 60
)

// Buffer is the single scratch region reused for every frame handled
// during a proxy session, sized for the largest configured interface
// MTU. See spec.md §4.1 for the exact byte layout:
//
//	[0 ..12)  scratch: reconstructed destination+source MAC
//	[12..16)  scratch: reconstructed 802.1Q tag (TPID + TCI)
//	[16..18)  EAPOL EtherType 0x888E
//	[18.. )   EAPOL PDU (version, type, body length, body)
//
// Bytes [0..16) never hold frame data that a send relies on: the
// scatter-receive lands the MAC pair in bytes [0..12), from where it is
// copied into the PacketView, and any VLAN tag is recovered from kernel
// auxiliary data rather than from the buffer. They are scratch
// that FrameStart reconstructs immediately before every send, which is
// what lets the same PDU bytes be shipped to multiple egress interfaces
// with different framing decisions.
type Buffer struct {
	data []byte
	mtu  int
}

// NewBuffer allocates a Buffer sized for maxMTU, the largest MTU among
// all configured interfaces.
func NewBuffer(maxMTU int) *Buffer {
	return &Buffer{
		data: make([]byte, HeaderLen+EtherTypeLen+maxMTU),
		mtu:  maxMTU,
	}
}

// MTU returns the MTU the buffer was sized for.
func (b *Buffer) MTU() int { return b.mtu }

// RecvSegments returns the three scatter-receive segments described in
// spec.md §4.2: destination MAC, source MAC, and the EtherType+PDU
// area. The caller issues a single scatter read into these three
// slices.
func (b *Buffer) RecvSegments() (dest, src, etherTypeAndPDU []byte) {
	return b.data[0:6], b.data[6:12], b.data[EtherTypeOffset:]
}

// PDU returns the EAPOL PDU region of the buffer: protocol version,
// packet type, body length, and body. The slice always runs to the end
// of the buffer; bytes past the last received frame are stale.
func (b *Buffer) PDU() []byte { return b.data[PDUOffset:] }

// FrameStart reconstructs the first 12 or 16 bytes of the frame from
// view (the destination/source MAC always; the 802.1Q tag only if the
// relevant vlan-present flag is set) and returns the slice of the
// buffer that should be written to the socket in a single send: it
// starts at byte 0 for a tagged frame and at byte 4 for an untagged
// one. useOriginal selects between the view's original and current
// fields, per spec.md §4.1's frame_start(view, use_original) contract.
func (b *Buffer) FrameStart(v *PacketView, useOriginal bool) []byte {
	vlanPresent, tci, length := v.Current(useOriginal)

	if vlanPresent {
		copy(b.data[0:6], v.DestinationMAC[:])
		copy(b.data[6:12], v.SourceMAC[:])
		binary.BigEndian.PutUint16(b.data[12:14], dot1QTPID)
		binary.BigEndian.PutUint16(b.data[14:16], tci.Pack())
		return b.data[0:length]
	}

	// No tag: the wire frame is MAC pair (12 bytes) immediately
	// followed by EtherType+PDU, with no 4-byte gap. The MAC pair is
	// written into bytes [4..16) so the frame starts at offset TagLen;
	// the canonical EtherType+PDU bytes at offset 16 are left intact
	// for any later egress interface, tagged or not.
	copy(b.data[TagLen:TagLen+MACAddrLen], v.DestinationMAC[:])
	copy(b.data[TagLen+MACAddrLen:HeaderLen], v.SourceMAC[:])
	return b.data[TagLen : TagLen+length]
}
