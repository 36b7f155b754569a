// Package policy implements the policy engine (spec.md §4.4): filter
// evaluation, action selection, and per-egress-interface 802.1Q
// rewrite.
package policy

import (
	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
)

// Drops reports whether a filter mask drops a frame with the given
// classification. A nil mask never drops.
func Drops(mask *ifacetable.FilterMask, eapolType uint8, hasEAP bool, eapCode uint8) bool {
	return mask.Drops(eapolType, hasEAP, eapCode)
}

// SelectAction returns the script path an action table selects for the
// given classification, and whether one was selected.
func SelectAction(table *ifacetable.ActionTable, eapolType uint8, hasEAP bool, eapCode uint8) (string, bool) {
	return table.Select(eapolType, hasEAP, eapCode)
}

// RewriteTCI applies an egress interface's TCI directive to v, per
// spec.md §4.4. It first resets v to its ingress-original tag state,
// then applies directive (nil means "preserve originals"). v.Length is
// adjusted by ±4 if tag presence changed relative to the original.
func RewriteTCI(v *frame.PacketView, directive *ifacetable.TCIDirective) {
	v.ResetForEgress()

	if directive == nil {
		return
	}

	wasPresent := v.VLANPresent

	if directive.Strip {
		v.VLANPresent = false
		v.TCI = ifacetable.TCI{}
	} else {
		base := ifacetable.TCI{}
		if v.VLANPresentOriginal {
			base = v.TCIOriginal
		}
		if directive.TouchedPCP {
			base.PCP = directive.PCP
		}
		if directive.TouchedDEI {
			base.DEI = directive.DEI
		}
		if directive.TouchedVID {
			base.VID = directive.VID
		}
		v.VLANPresent = true
		v.TCI = base
	}

	switch {
	case v.VLANPresent && !wasPresent:
		v.Length += frame.TagLen
	case !v.VLANPresent && wasPresent:
		v.Length -= frame.TagLen
	}
}
