// Package script runs the external programs configured as ingress/
// egress actions (spec.md §4.5), building the fixed PKT_* environment
// from a captured frame.
package script

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/kangtastic/peapod/internal/classifier"
	"github.com/kangtastic/peapod/internal/frame"
)

// defaultPath is the sanitized PATH given to every script, matching
// the original tool's clean-environment contract.
const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Params carries everything BuildEnv needs to construct a script's
// environment from one packet round-trip.
type Params struct {
	Timestamp time.Time

	View *frame.PacketView

	OriginalFrame []byte // the raw ingress frame, dest MAC .. end of PDU
	CurrentFrame  []byte // the frame as it will be (or was) sent

	IngressInterfaceName string
	IngressInterfaceMTU  int
	CurrentInterfaceName string
	CurrentInterfaceMTU  int
}

// BuildEnv renders the PKT_* environment variables described in
// spec.md §4.5 from p. The returned slice is a "key=value" list
// suitable for exec.Cmd.Env.
func BuildEnv(p Params) []string {
	env := []string{"PATH=" + defaultPath}
	set := func(k, v string) { env = append(env, k+"="+v) }

	set("PKT_TIME", fmt.Sprintf("%d.%d", p.Timestamp.Unix(), p.Timestamp.Nanosecond()/1000))

	set("PKT_DEST", hexMAC(p.View.DestinationMAC))
	set("PKT_SOURCE", hexMAC(p.View.SourceMAC))

	set("PKT_TYPE", fmt.Sprintf("%d", p.View.EAPOLType))
	set("PKT_TYPE_DESC", classifier.DescribeEAPOLType(p.View.EAPOLType))

	if p.View.HasEAP {
		set("PKT_CODE", fmt.Sprintf("%d", p.View.EAPCode))
		set("PKT_CODE_DESC", classifier.DescribeEAPCode(p.View.EAPCode))

		result := classifier.Classify(p.OriginalPDU())
		set("PKT_ID", fmt.Sprintf("%d", result.ID))

		if classifier.IsRequestOrResponse(p.View.EAPCode) {
			set("PKT_REQRESP_TYPE", fmt.Sprintf("%d", result.EAPType))
			set("PKT_REQRESP_DESC", classifier.DescribeEAPType(result.EAPType))
		}
	}

	set("PKT_LENGTH_ORIG", fmt.Sprintf("%d", p.View.OriginalLength))
	set("PKT_ORIG", base64.StdEncoding.EncodeToString(p.OriginalFrame))
	set("PKT_IFACE_ORIG", p.IngressInterfaceName)
	set("PKT_IFACE_MTU_ORIG", fmt.Sprintf("%d", p.IngressInterfaceMTU))
	if p.View.VLANPresentOriginal {
		set("PKT_DOT1Q_TCI_ORIG", fmt.Sprintf("%04x", p.View.TCIOriginal.Pack()))
	}

	set("PKT_LENGTH", fmt.Sprintf("%d", p.View.Length))
	set("PKT", base64.StdEncoding.EncodeToString(p.CurrentFrame))
	set("PKT_IFACE", p.CurrentInterfaceName)
	set("PKT_IFACE_MTU", fmt.Sprintf("%d", p.CurrentInterfaceMTU))
	if p.View.VLANPresent {
		set("PKT_DOT1Q_TCI", fmt.Sprintf("%04x", p.View.TCI.Pack()))
	}

	return env
}

// OriginalPDU returns the EAPOL PDU portion of the original frame,
// i.e. everything after the 12-byte MAC pair, any 802.1Q tag, and the
// EtherType.
func (p Params) OriginalPDU() []byte {
	off := frame.MACPrefixLen + frame.EtherTypeLen
	if p.View.VLANPresentOriginal {
		off += frame.TagLen
	}
	if off >= len(p.OriginalFrame) {
		return nil
	}
	return p.OriginalFrame[off:]
}

func hexMAC(mac [frame.MACAddrLen]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}

// Run executes path with the environment built from p, redirecting its
// standard streams to /dev/null and waiting for it to exit. A non-zero
// exit status or termination by signal is reported in the returned
// error, but this is never fatal to the caller: spec.md §4.5 requires
// only that the outcome be logged as a warning.
func Run(ctx context.Context, path string, p Params) error {
	cmd := exec.CommandContext(ctx, path)
	cmd.Env = BuildEnv(p)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("script: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}
