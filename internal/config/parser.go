// Package config hand-rolls a tokenizer and recursive-descent parser
// for the bespoke `iface NAME { ... };` block grammar of spec.md §6.1.
// No example or ecosystem library parses this grammar (it predates
// YAML/JSON/TOML tooling and is specific to this daemon), so unlike
// every other ambient concern in this module, it is intentionally
// hand-written rather than delegated to a third-party parser (see
// DESIGN.md).
package config

import (
	"fmt"
	"net"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/kangtastic/peapod/internal/ifacetable"
)

// parser consumes tokens from a lexer with one token of lookahead.
type parser struct {
	lex  *lexer
	tok  token
	next *ifacetable.Table

	// ifaceIndex assigns each declared interface a synthetic index
	// until internal/rawsock.Discover overwrites it with the kernel's
	// real one; this only needs to be unique at parse time.
	ifaceIndex int

	// pendingLearnMACFrom collects set-mac-from references, resolved by
	// name against p.next once every iface block has been parsed, so
	// that a set-mac-from may name an interface declared later.
	pendingLearnMACFrom []pendingRef
}

type pendingRef struct {
	iface      *ifacetable.Interface
	targetName string
}

// Parse parses src (the full text of a config file) into an
// ifacetable.Table. It performs both syntactic parsing and the
// semantic checks of spec.md §8 (interface count, set-mac exclusivity,
// self-referential or undefined set-mac-from, and dot1q field ranges);
// ifacetable.Table.Validate is called at the end as a final check.
func Parse(src string) (*ifacetable.Table, error) {
	p := &parser{lex: newLexer(src), next: ifacetable.NewTable(), ifaceIndex: 1}
	if err := p.advance(); err != nil {
		return nil, err
	}

	for p.tok.kind != tokEOF {
		if err := p.parseIfaceStmt(); err != nil {
			return nil, err
		}
	}

	for _, ref := range p.pendingLearnMACFrom {
		target := p.next.ByName(ref.targetName)
		if target == nil {
			return nil, fmt.Errorf("interface %q: set-mac-from references undefined interface %q", ref.iface.Name, ref.targetName)
		}
		ref.iface.LearnMACFrom = target.Index
	}

	if err := p.next.Validate(); err != nil {
		return nil, err
	}
	return p.next, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("config line %d: %s", p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) expectIdent(word string) error {
	if p.tok.kind != tokIdent || p.tok.text != word {
		return p.errf("expected %q, got %s", word, p.tok)
	}
	return p.advance()
}

func (p *parser) expectKind(kind tokenKind) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errf("unexpected %s", p.tok)
	}
	t := p.tok
	return t, p.advance()
}

// atIdent reports whether the current token is the identifier word,
// without consuming it.
func (p *parser) atIdent(word string) bool {
	return p.tok.kind == tokIdent && p.tok.text == word
}

func (p *parser) parseIfaceStmt() error {
	if err := p.expectIdent("iface"); err != nil {
		return err
	}
	nameTok, err := p.expectKind(tokIdent)
	if err != nil {
		return err
	}
	if _, err := p.expectKind(tokLBrace); err != nil {
		return err
	}

	iface := ifacetable.NewInterface(nameTok.text, p.ifaceIndex)
	p.ifaceIndex++

	for p.tok.kind != tokRBrace {
		if err := p.parseIfaceBodyStmt(iface); err != nil {
			return err
		}
	}
	if _, err := p.expectKind(tokRBrace); err != nil {
		return err
	}
	if _, err := p.expectKind(tokSemi); err != nil {
		return err
	}

	return p.next.Add(iface)
}

func (p *parser) parseIfaceBodyStmt(iface *ifacetable.Interface) error {
	switch {
	case p.atIdent("ingress"):
		return p.parseIngress(iface)
	case p.atIdent("egress"):
		return p.parseEgress(iface)
	case p.atIdent("promiscuous"):
		if err := p.advance(); err != nil {
			return err
		}
		iface.Promiscuous = true
		_, err := p.expectKind(tokSemi)
		return err
	case p.atIdent("set-mac"):
		return p.parseSetMAC(iface)
	case p.atIdent("set-mac-from"):
		return p.parseSetMACFrom(iface)
	default:
		return p.errf("unexpected %s inside iface block", p.tok)
	}
}

func (p *parser) parseSetMAC(iface *ifacetable.Interface) error {
	if err := p.advance(); err != nil {
		return err
	}
	strTok, err := p.expectKind(tokString)
	if err != nil {
		return err
	}
	if iface.StaticMACPending {
		return fmt.Errorf("config line %d: interface %q: only one set-mac is allowed", strTok.line, iface.Name)
	}
	mac, err := net.ParseMAC(strTok.text)
	if err != nil {
		return fmt.Errorf("config line %d: interface %q: invalid MAC %q: %w", strTok.line, iface.Name, strTok.text, err)
	}
	iface.StaticMAC = mac
	iface.StaticMACPending = true
	_, err = p.expectKind(tokSemi)
	return err
}

func (p *parser) parseSetMACFrom(iface *ifacetable.Interface) error {
	if err := p.advance(); err != nil {
		return err
	}
	nameTok, err := p.expectKind(tokIdent)
	if err != nil {
		return err
	}
	// LearnMACFrom resolves to a real index once every iface statement
	// has been parsed; stash the synthetic index of the referenced
	// iface's eventual table slot via a deferred lookup, performed here
	// by name against iface indices already assigned or to be assigned.
	iface.LearnMACFrom = -2 // placeholder, resolved once all ifaces are known
	p.pendingLearnMACFrom = append(p.pendingLearnMACFrom, pendingRef{iface: iface, targetName: nameTok.text})
	_, err = p.expectKind(tokSemi)
	return err
}

func (p *parser) parseIngress(iface *ifacetable.Interface) error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expectKind(tokLBrace); err != nil {
		return err
	}

	pol := &ifacetable.IngressPolicy{}
	for p.tok.kind != tokRBrace {
		switch {
		case p.atIdent("filter"):
			mask, err := p.parseFilter()
			if err != nil {
				return err
			}
			pol.Filter = mask
		case p.atIdent("exec"):
			typeVal, codeVal, path, err := p.parseExec()
			if err != nil {
				return err
			}
			if pol.Action == nil {
				pol.Action = &ifacetable.ActionTable{}
			}
			assignAction(pol.Action, typeVal, codeVal, path)
		default:
			return p.errf("unexpected %s inside ingress block", p.tok)
		}
	}
	if _, err := p.expectKind(tokRBrace); err != nil {
		return err
	}
	if _, err := p.expectKind(tokSemi); err != nil {
		return err
	}
	iface.Ingress = pol
	return nil
}

func (p *parser) parseEgress(iface *ifacetable.Interface) error {
	if err := p.advance(); err != nil {
		return err
	}
	if _, err := p.expectKind(tokLBrace); err != nil {
		return err
	}

	pol := &ifacetable.EgressPolicy{}
	for p.tok.kind != tokRBrace {
		switch {
		case p.atIdent("filter"):
			mask, err := p.parseFilter()
			if err != nil {
				return err
			}
			pol.Filter = mask
		case p.atIdent("exec"):
			typeVal, codeVal, path, err := p.parseExec()
			if err != nil {
				return err
			}
			if pol.Action == nil {
				pol.Action = &ifacetable.ActionTable{}
			}
			assignAction(pol.Action, typeVal, codeVal, path)
		case p.atIdent("dot1q"):
			dir, err := p.parseDot1q()
			if err != nil {
				return err
			}
			pol.TCI = dir
		case p.atIdent("no"):
			if err := p.parseNoDot1q(); err != nil {
				return err
			}
			pol.TCI = &ifacetable.TCIDirective{Strip: true}
		default:
			return p.errf("unexpected %s inside egress block", p.tok)
		}
	}
	if _, err := p.expectKind(tokRBrace); err != nil {
		return err
	}
	if _, err := p.expectKind(tokSemi); err != nil {
		return err
	}
	iface.Egress = pol
	return nil
}

// assignAction records path against whichever table a classification
// resolved to: Type-keyed for EAPOL Types, Code-keyed for EAP Codes.
func assignAction(a *ifacetable.ActionTable, typeVal int, codeVal int, path string) {
	if typeVal >= 0 {
		a.ByType[typeVal] = path
	} else {
		a.ByCode[codeVal] = path
	}
}

func (p *parser) parseFilter() (*ifacetable.FilterMask, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	mask := &ifacetable.FilterMask{}
	for p.tok.kind == tokIdent {
		idTok := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		cls, err := resolveToken(idTok.text)
		if err != nil {
			return nil, fmt.Errorf("config line %d: %w", idTok.line, err)
		}
		switch {
		case cls.isAll:
			mask.Type = 0x1FF // all nine EAPOL Type bits
		case cls.isType:
			mask.Type |= 1 << cls.typeVal
		case cls.isCode:
			mask.Code |= 1 << cls.codeVal
		}
	}
	_, err := p.expectKind(tokSemi)
	return mask, err
}

// parseExec returns either a valid typeVal (>=0, codeVal -1) or a valid
// codeVal (>=0, typeVal -1), never both, plus the script path.
func (p *parser) parseExec() (typeVal, codeVal int, path string, err error) {
	if err = p.advance(); err != nil {
		return
	}
	idTok, err := p.expectKind(tokIdent)
	if err != nil {
		return
	}
	cls, err := resolveToken(idTok.text)
	if err != nil {
		err = fmt.Errorf("config line %d: %w", idTok.line, err)
		return
	}
	if cls.isAll {
		err = fmt.Errorf("config line %d: exec cannot use %q; name a specific type or code", idTok.line, allToken)
		return
	}

	strTok, kerr := p.expectKind(tokString)
	if kerr != nil {
		err = kerr
		return
	}
	if err = validateScriptPath(strTok.text); err != nil {
		err = fmt.Errorf("config line %d: %w", strTok.line, err)
		return
	}
	path = strTok.text

	if cls.isType {
		typeVal, codeVal = int(cls.typeVal), -1
	} else {
		typeVal, codeVal = -1, int(cls.codeVal)
	}

	_, err = p.expectKind(tokSemi)
	return
}

func (p *parser) parseDot1q() (*ifacetable.TCIDirective, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokLBrace); err != nil {
		return nil, err
	}

	dir := &ifacetable.TCIDirective{}
	for p.tok.kind != tokRBrace {
		switch {
		case p.atIdent("priority"):
			v, err := p.parseNumberStmt("priority", 7)
			if err != nil {
				return nil, err
			}
			dir.TouchedPCP, dir.PCP = true, uint8(v)
		case p.atIdent("drop-eligible"):
			v, err := p.parseNumberStmt("drop-eligible", 1)
			if err != nil {
				return nil, err
			}
			dir.TouchedDEI, dir.DEI = true, uint8(v)
		case p.atIdent("id"):
			v, err := p.parseNumberStmt("id", 4094)
			if err != nil {
				return nil, err
			}
			dir.TouchedVID, dir.VID = true, uint16(v)
		default:
			return nil, p.errf("unexpected %s inside dot1q block", p.tok)
		}
	}
	if _, err := p.expectKind(tokRBrace); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokSemi); err != nil {
		return nil, err
	}
	return dir, nil
}

func (p *parser) parseNoDot1q() error {
	if err := p.advance(); err != nil { // "no"
		return err
	}
	if err := p.expectIdent("dot1q"); err != nil {
		return err
	}
	_, err := p.expectKind(tokSemi)
	return err
}

func (p *parser) parseNumberStmt(name string, max int) (int, error) {
	if err := p.advance(); err != nil {
		return 0, err
	}
	numTok, err := p.expectKind(tokNumber)
	if err != nil {
		return 0, err
	}
	v := 0
	for i := 0; i < len(numTok.text); i++ {
		v = v*10 + int(numTok.text[i]-'0')
	}
	if v > max {
		return 0, fmt.Errorf("config line %d: %s %d exceeds maximum of %d", numTok.line, name, v, max)
	}
	_, err = p.expectKind(tokSemi)
	return v, err
}

// validateScriptPath enforces spec.md §6.1's "absolute, canonical, and
// executable for the effective user at config-load time" requirement.
func validateScriptPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("script path %q must be absolute", path)
	}
	canon, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("script path %q: %w", path, err)
	}
	if canon != path {
		return fmt.Errorf("script path %q is not canonical (resolves to %q)", path, canon)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return fmt.Errorf("script path %q is not executable: %w", path, err)
	}
	return nil
}
