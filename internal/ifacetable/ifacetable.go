// Package ifacetable holds the in-memory interface table: the ordered
// collection of configured network interfaces and their per-interface
// ingress/egress policy, produced by internal/config and consumed by
// every other packet-plane package.
package ifacetable

import (
	"fmt"
	"net"
)

// TCI holds the three variable fields of an IEEE 802.1Q tag.
type TCI struct {
	PCP uint8  // Priority Code Point, 0-7
	DEI uint8  // Drop Eligible Indicator, 0-1
	VID uint16 // VLAN Identifier, 0-4094
}

// Pack encodes t as the 16-bit TCI field: PCP in bits 15..13, DEI in
// bit 12, VID in bits 11..0.
func (t TCI) Pack() uint16 {
	return uint16(t.PCP&0x7)<<13 | uint16(t.DEI&0x1)<<12 | (t.VID & 0x0FFF)
}

// UnpackTCI decodes a 16-bit TCI field into its three component fields.
func UnpackTCI(v uint16) TCI {
	return TCI{
		PCP: uint8(v >> 13 & 0x7),
		DEI: uint8(v >> 12 & 0x1),
		VID: v & 0x0FFF,
	}
}

// FilterMask selects EAPOL frames to drop by Packet Type or EAP Code.
// Type is indexed 0..8, Code 1..4; bit i set means "drop".
type FilterMask struct {
	Type uint16
	Code uint8
}

// Drops reports whether a frame with the given EAPOL Type, and (if
// eapolType is TypeEAPPacket) EAP Code, should be dropped.
func (f *FilterMask) Drops(eapolType uint8, isEAP bool, eapCode uint8) bool {
	if f == nil {
		return false
	}
	if f.Type&(1<<eapolType) != 0 {
		return true
	}
	if isEAP && f.Code&(1<<eapCode) != 0 {
		return true
	}
	return false
}

// ActionTable maps an EAPOL Type or EAP Code to the script that should
// be run for frames of that classification. ByCode[0] is always unused,
// since EAP Codes only range 1..4.
type ActionTable struct {
	ByType [9]string
	ByCode [5]string
}

// Select returns the script path that should run for a frame with the
// given classification, preferring a Type match over a Code match, and
// ok=false if neither table entry is set.
func (a *ActionTable) Select(eapolType uint8, isEAP bool, eapCode uint8) (path string, ok bool) {
	if a == nil {
		return "", false
	}
	if int(eapolType) < len(a.ByType) && a.ByType[eapolType] != "" {
		return a.ByType[eapolType], true
	}
	if isEAP && int(eapCode) < len(a.ByCode) && a.ByCode[eapCode] != "" {
		return a.ByCode[eapCode], true
	}
	return "", false
}

// TCIDirective describes how an egress interface should rewrite a
// frame's 802.1Q tag. A nil *TCIDirective means "preserve the original
// tag state unchanged". Strip means "always send untagged". Otherwise,
// each of PCP/DEI/VID is either a concrete value to assign, or
// "untouched" (Touched<Field> is false), meaning preserve the frame's
// original value for that field, or zero if the frame had no tag.
type TCIDirective struct {
	Strip bool

	TouchedPCP bool
	PCP        uint8
	TouchedDEI bool
	DEI        uint8
	TouchedVID bool
	VID        uint16
}

// IngressPolicy is the behavior applied to a frame on the interface it
// was received on, before it is considered for any egress interface.
type IngressPolicy struct {
	Filter *FilterMask
	Action *ActionTable
}

// EgressPolicy is the behavior applied per egress interface.
type EgressPolicy struct {
	TCI    *TCIDirective
	Filter *FilterMask
	Action *ActionTable
}

// Interface is one configured network interface and its policy.
type Interface struct {
	Name  string
	Index int
	MTU   int

	// FD is the raw AF_PACKET socket bound to this interface, or -1 if
	// none is currently open. Owned and mutated only by internal/rawsock
	// and internal/proxy.
	FD int

	RecvCounter uint64
	SendCounter uint64

	Ingress *IngressPolicy
	Egress  *EgressPolicy

	Promiscuous bool

	// StaticMAC is the MAC address this interface should be set to at
	// startup, or nil if none was configured. StaticMACPending is
	// cleared (set false) once the mutation has been attempted, so it
	// is applied exactly once.
	StaticMAC        net.HardwareAddr
	StaticMACPending bool

	// LearnMACFrom is the index of another interface in the same Table
	// whose first received frame's source MAC should be applied to this
	// interface, or -1 if MAC learning is not configured. Cleared to -1
	// (oneshot) once consumed.
	LearnMACFrom int
}

// NewInterface returns an Interface with its optional fields at their
// zero/disabled values (FD -1, LearnMACFrom -1).
func NewInterface(name string, index int) *Interface {
	return &Interface{
		Name:         name,
		Index:        index,
		FD:           -1,
		LearnMACFrom: -1,
	}
}

// Table is the ordered collection of configured interfaces, with
// constant-time lookup by name or by kernel interface index (see
// spec.md §9's "ordered sequence... plus an index map" design note).
type Table struct {
	ifaces  []*Interface
	byName  map[string]*Interface
	byIndex map[int]*Interface
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		byName:  make(map[string]*Interface),
		byIndex: make(map[int]*Interface),
	}
}

// Add appends iface to the table. It returns an error if an interface
// with the same Name or Index is already present.
func (t *Table) Add(iface *Interface) error {
	if _, ok := t.byName[iface.Name]; ok {
		return fmt.Errorf("duplicate interface name %q", iface.Name)
	}
	if _, ok := t.byIndex[iface.Index]; ok {
		return fmt.Errorf("duplicate interface index %d for %q", iface.Index, iface.Name)
	}
	t.ifaces = append(t.ifaces, iface)
	t.byName[iface.Name] = iface
	t.byIndex[iface.Index] = iface
	return nil
}

// Len returns the number of interfaces in the table.
func (t *Table) Len() int { return len(t.ifaces) }

// All returns the interfaces in configuration order. The caller must
// not mutate the returned slice.
func (t *Table) All() []*Interface { return t.ifaces }

// ByName returns the interface with the given name, or nil.
func (t *Table) ByName(name string) *Interface { return t.byName[name] }

// ByIndex returns the interface with the given kernel interface index, or nil.
func (t *Table) ByIndex(index int) *Interface { return t.byIndex[index] }

// Others returns every interface in the table except iface, in
// configuration order.
func (t *Table) Others(iface *Interface) []*Interface {
	out := make([]*Interface, 0, len(t.ifaces)-1)
	for _, i := range t.ifaces {
		if i != iface {
			out = append(out, i)
		}
	}
	return out
}

// Reindex changes iface's Index to newIndex and re-keys the table's
// index map to match, rewriting any other interface's LearnMACFrom
// that pointed at iface's old index so it still resolves correctly.
// Callers must use this instead of assigning Interface.Index directly
// once the interface has been added to a Table (see
// internal/rawsock.Discover, which replaces the parser's synthetic
// per-file index with the kernel's real ifindex after config load).
func (t *Table) Reindex(iface *Interface, newIndex int) error {
	if newIndex == iface.Index {
		return nil
	}
	if existing, ok := t.byIndex[newIndex]; ok && existing != iface {
		return fmt.Errorf("duplicate interface index %d for %q", newIndex, iface.Name)
	}

	oldIndex := iface.Index
	for _, other := range t.ifaces {
		if other != iface && other.LearnMACFrom == oldIndex {
			other.LearnMACFrom = newIndex
		}
	}

	delete(t.byIndex, oldIndex)
	iface.Index = newIndex
	t.byIndex[newIndex] = iface
	return nil
}

// Validate checks the cross-interface invariants from spec.md §3: at
// least two interfaces, and every LearnMACFrom index resolves to a
// distinct interface present in the table.
func (t *Table) Validate() error {
	if len(t.ifaces) < 2 {
		return fmt.Errorf("at least two interfaces are required, got %d", len(t.ifaces))
	}
	for _, iface := range t.ifaces {
		if iface.LearnMACFrom < 0 {
			continue
		}
		if iface.StaticMAC != nil {
			return fmt.Errorf("interface %q: set-mac and set-mac-from are mutually exclusive", iface.Name)
		}
		if iface.LearnMACFrom == iface.Index {
			return fmt.Errorf("interface %q: set-mac-from cannot reference itself", iface.Name)
		}
		if t.ByIndex(iface.LearnMACFrom) == nil {
			return fmt.Errorf("interface %q: set-mac-from references an undefined interface", iface.Name)
		}
	}
	return nil
}
