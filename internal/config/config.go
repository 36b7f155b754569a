package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kangtastic/peapod/internal/classifier"
	"github.com/kangtastic/peapod/internal/ifacetable"
)

// DefaultPath is the config file location used when -c/-config is not
// given, matching spec.md §6's "/etc/<program>.conf" convention.
const DefaultPath = "/etc/peapod.conf"

// Load reads and parses the config file at path into an
// ifacetable.Table, ready for internal/proxy.Loop.
func Load(path string) (*ifacetable.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	table, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return table, nil
}

// dumpInterface and dumpConfig mirror ifacetable.Table's shape for
// -t/-test-config's human-readable dump (gopkg.in/yaml.v3, matching
// maxtara-gonat's use of the same library for its own config struct).
type dumpFilter struct {
	Types []string `yaml:"types,omitempty"`
	Codes []string `yaml:"codes,omitempty"`
}

type dumpAction struct {
	Classification string `yaml:"on"`
	Script         string `yaml:"script"`
}

type dumpTCI struct {
	Strip    bool    `yaml:"strip,omitempty"`
	Priority *uint8  `yaml:"priority,omitempty"`
	DropElig *uint8  `yaml:"dropEligible,omitempty"`
	VID      *uint16 `yaml:"id,omitempty"`
}

type dumpIngress struct {
	Filter  *dumpFilter  `yaml:"filter,omitempty"`
	Actions []dumpAction `yaml:"exec,omitempty"`
}

type dumpEgress struct {
	Filter  *dumpFilter  `yaml:"filter,omitempty"`
	Actions []dumpAction `yaml:"exec,omitempty"`
	Dot1Q   *dumpTCI     `yaml:"dot1q,omitempty"`
}

type dumpInterface struct {
	Name          string       `yaml:"name"`
	Promiscuous   bool         `yaml:"promiscuous,omitempty"`
	SetMAC        string       `yaml:"setMac,omitempty"`
	SetMACFromIdx int          `yaml:"setMacFromIndex,omitempty"`
	Ingress       *dumpIngress `yaml:"ingress,omitempty"`
	Egress        *dumpEgress  `yaml:"egress,omitempty"`
}

type dumpConfig struct {
	Interfaces []dumpInterface `yaml:"interfaces"`
}

// Dump renders table as YAML for -t/-test-config to display to the
// operator; it does not round-trip back into a Table.
func Dump(table *ifacetable.Table) (string, error) {
	cfg := dumpConfig{}
	for _, iface := range table.All() {
		d := dumpInterface{Name: iface.Name, Promiscuous: iface.Promiscuous}
		if iface.StaticMAC != nil {
			d.SetMAC = iface.StaticMAC.String()
		}
		if iface.LearnMACFrom >= 0 {
			d.SetMACFromIdx = iface.LearnMACFrom
		}
		if iface.Ingress != nil {
			d.Ingress = &dumpIngress{
				Filter:  dumpFilterMask(iface.Ingress.Filter),
				Actions: dumpActionTable(iface.Ingress.Action),
			}
		}
		if iface.Egress != nil {
			d.Egress = &dumpEgress{
				Filter:  dumpFilterMask(iface.Egress.Filter),
				Actions: dumpActionTable(iface.Egress.Action),
				Dot1Q:   dumpTCIDirective(iface.Egress.TCI),
			}
		}
		cfg.Interfaces = append(cfg.Interfaces, d)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config dump: %w", err)
	}
	return string(out), nil
}

func dumpFilterMask(f *ifacetable.FilterMask) *dumpFilter {
	if f == nil || (f.Type == 0 && f.Code == 0) {
		return nil
	}
	d := &dumpFilter{}
	for t, name := range eapolTypeNamesByValue() {
		if f.Type&(1<<t) != 0 {
			d.Types = append(d.Types, name)
		}
	}
	for c, name := range eapCodeNamesByValue() {
		if f.Code&(1<<c) != 0 {
			d.Codes = append(d.Codes, name)
		}
	}
	return d
}

func dumpActionTable(a *ifacetable.ActionTable) []dumpAction {
	if a == nil {
		return nil
	}
	var out []dumpAction
	names := eapolTypeNamesByValue()
	for t, path := range a.ByType {
		if path != "" {
			out = append(out, dumpAction{Classification: names[uint8(t)], Script: path})
		}
	}
	codes := eapCodeNamesByValue()
	for c, path := range a.ByCode {
		if path != "" {
			out = append(out, dumpAction{Classification: codes[uint8(c)], Script: path})
		}
	}
	return out
}

func dumpTCIDirective(d *ifacetable.TCIDirective) *dumpTCI {
	if d == nil {
		return nil
	}
	if d.Strip {
		return &dumpTCI{Strip: true}
	}
	out := &dumpTCI{}
	if d.TouchedPCP {
		out.Priority = &d.PCP
	}
	if d.TouchedDEI {
		out.DropElig = &d.DEI
	}
	if d.TouchedVID {
		out.VID = &d.VID
	}
	return out
}

func eapolTypeNamesByValue() map[uint8]string {
	return map[uint8]string{
		classifier.TypeEAPPacket:           "eap-packet",
		classifier.TypeStart:               "start",
		classifier.TypeLogoff:              "logoff",
		classifier.TypeKey:                 "key",
		classifier.TypeEncapASFAlert:       "encapsulated-asf-alert",
		classifier.TypeMKA:                 "mka",
		classifier.TypeAnnouncementGeneric: "announcement-generic",
		classifier.TypeAnnouncementSpecif:  "announcement-specific",
		classifier.TypeAnnouncementReq:     "announcement-req",
	}
}

func eapCodeNamesByValue() map[uint8]string {
	return map[uint8]string{
		classifier.CodeRequest:  "request",
		classifier.CodeResponse: "response",
		classifier.CodeSuccess:  "success",
		classifier.CodeFailure:  "failure",
	}
}
