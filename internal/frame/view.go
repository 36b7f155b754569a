package frame

import (
	"time"

	"github.com/kangtastic/peapod/internal/ifacetable"
)

// PacketView is the in-memory representation of one EAPOL frame,
// constructed once on receive and then copied by value and mutated per
// egress interface (spec.md §3). It never owns the frame's bytes; it
// only references the shared Buffer and the interface table for the
// duration of one packet round-trip.
type PacketView struct {
	Timestamp time.Time

	IngressInterface *ifacetable.Interface
	CurrentInterface *ifacetable.Interface

	Length         int
	OriginalLength int

	DestinationMAC [MACAddrLen]byte
	SourceMAC      [MACAddrLen]byte

	VLANPresent         bool
	VLANPresentOriginal bool
	TCI                 ifacetable.TCI
	TCIOriginal         ifacetable.TCI

	// EAPOLType is set for every frame. EAPCode is only meaningful when
	// HasEAP is true, which requires EAPOLType == classifier.TypeEAPPacket.
	EAPOLType uint8
	HasEAP    bool
	EAPCode   uint8
}

// Current returns the vlan-present flag, TCI, and length appropriate
// for a send: the original triple if useOriginal, else the current
// (possibly rewritten) triple. This mirrors frame_start's
// use_original parameter from spec.md §4.1.
func (v *PacketView) Current(useOriginal bool) (vlanPresent bool, tci ifacetable.TCI, length int) {
	if useOriginal {
		return v.VLANPresentOriginal, v.TCIOriginal, v.OriginalLength
	}
	return v.VLANPresent, v.TCI, v.Length
}

// ResetForEgress restores the current fields to their original values,
// as required before applying a new egress interface's 802.1Q rewrite
// (spec.md §3's "must be restored ... per egress interface from the
// originals").
func (v *PacketView) ResetForEgress() {
	v.Length = v.OriginalLength
	v.VLANPresent = v.VLANPresentOriginal
	v.TCI = v.TCIOriginal
}

// Copy returns a value copy of v, suitable for per-egress-interface
// mutation without disturbing the ingress-derived original.
func (v *PacketView) Copy() PacketView { return *v }
