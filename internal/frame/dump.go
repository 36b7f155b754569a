package frame

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Dump renders a human-readable, layer-by-layer decode of the frame
// that would be sent for view (as FrameStart would build it), for use
// behind the debuglow log level. It is a convenience for operators
// only and is never on the packet-plane hot path.
func Dump(b *Buffer, v *PacketView, useOriginal bool) string {
	raw := b.FrameStart(v, useOriginal)

	// Feed gopacket a copy: FrameStart's buffer is reused by the next
	// send and this dump may be formatted lazily by the logger.
	frameCopy := make([]byte, len(raw))
	copy(frameCopy, raw)

	pkt := gopacket.NewPacket(frameCopy, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	var b2 strings.Builder
	for _, l := range pkt.Layers() {
		fmt.Fprintf(&b2, "%s\n", l.LayerType())
	}
	if err := pkt.ErrorLayer(); err != nil {
		fmt.Fprintf(&b2, "decode error: %v\n", err.Error())
	}
	return b2.String()
}
