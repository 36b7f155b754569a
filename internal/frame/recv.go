package frame

import "github.com/kangtastic/peapod/internal/ifacetable"

// RecvOutcome classifies the result of decoding one received frame's
// length and auxiliary data, per spec.md §4.2.
type RecvOutcome int

const (
	// RecvOK indicates a frame that was accepted and decoded.
	RecvOK RecvOutcome = iota
	// RecvRunt indicates a frame shorter than MinFrameLen.
	RecvRunt
	// RecvGiant indicates auxiliary data reporting a true length
	// exceeding the PDU buffer capacity.
	RecvGiant
)

// DecodeReceive fills in view's original/current fields from the raw
// results of one scatter-receive plus PACKET_AUXDATA, applying the
// rules of spec.md §4.2. It is pure (no syscalls), so it is unit
// tested directly with synthetic inputs.
//
// rawLength is the length reported by the receive call itself (after
// any kernel VLAN-tag strip); auxTrueLength is the "true length" field
// from auxdata, which accounts for any stripped tag and any truncation
// by a BPF snaplen. pduCap is the capacity of the buffer's PDU area
// (buffer MTU + EtherTypeLen). vlanValid/tpid/tci16 are the auxdata
// VLAN fields (TP_STATUS_VLAN_VALID and friends).
func DecodeReceive(
	view *PacketView,
	dest, src [MACAddrLen]byte,
	rawLength, auxTrueLength, pduCap int,
	vlanValid bool, tpid uint16, tci16 uint16,
) RecvOutcome {
	if rawLength < MinFrameLen {
		return RecvRunt
	}
	if auxTrueLength > pduCap {
		return RecvGiant
	}

	view.DestinationMAC = dest
	view.SourceMAC = src

	length := rawLength
	vlanPresent := false
	tci := ifacetable.TCI{}

	if vlanValid && tpid == dot1QTPID {
		vlanPresent = true
		length += TagLen
		tci = ifacetable.UnpackTCI(tci16)
	}

	view.Length = length
	view.OriginalLength = length
	view.VLANPresent = vlanPresent
	view.VLANPresentOriginal = vlanPresent
	view.TCI = tci
	view.TCIOriginal = tci

	return RecvOK
}
