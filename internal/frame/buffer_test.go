package frame

import (
	"testing"

	"github.com/kangtastic/peapod/internal/ifacetable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSizing(t *testing.T) {
	b := NewBuffer(1500)
	assert.Equal(t, HeaderLen+EtherTypeLen+1500, len(b.data))
	assert.Equal(t, 1500, b.MTU())
}

func TestFrameStartTagged(t *testing.T) {
	b := NewBuffer(1500)
	dest, src, pdu := b.RecvSegments()
	copy(dest, []byte{1, 2, 3, 4, 5, 6})
	copy(src, []byte{6, 5, 4, 3, 2, 1})
	// EtherType then a 4-byte EAPOL header (version=1, type=1, length=0).
	copy(pdu, []byte{0x88, 0x8E, 0x01, 0x01, 0x00, 0x00})

	v := &PacketView{
		DestinationMAC: [6]byte{1, 2, 3, 4, 5, 6},
		SourceMAC:      [6]byte{6, 5, 4, 3, 2, 1},
		VLANPresent:    true,
		TCI:            ifacetable.TCI{PCP: 3, DEI: 0, VID: 42},
		Length:         MACPrefixLen + TagLen + 6,
	}

	out := b.FrameStart(v, false)
	require.Len(t, out, v.Length)
	assert.Equal(t, byte(0x81), out[12])
	assert.Equal(t, byte(0x00), out[13])
	gotTCI := ifacetable.UnpackTCI(uint16(out[14])<<8 | uint16(out[15]))
	assert.Equal(t, ifacetable.TCI{PCP: 3, DEI: 0, VID: 42}, gotTCI)
	assert.Equal(t, byte(0x88), out[16])
	assert.Equal(t, byte(0x8E), out[17])
}

func TestFrameStartUntagged(t *testing.T) {
	b := NewBuffer(1500)
	_, _, pdu := b.RecvSegments()
	copy(pdu, []byte{0x88, 0x8E, 0x01, 0x01, 0x00, 0x00})

	v := &PacketView{
		DestinationMAC: [6]byte{1, 2, 3, 4, 5, 6},
		SourceMAC:      [6]byte{6, 5, 4, 3, 2, 1},
		VLANPresent:    false,
		Length:         MACPrefixLen + 6,
	}

	out := b.FrameStart(v, false)
	require.Len(t, out, v.Length)
	assert.Equal(t, byte(0x88), out[12])
	assert.Equal(t, byte(0x8E), out[13])
	assert.Equal(t, byte(0x01), out[14])
}

func TestDecodeReceiveRunt(t *testing.T) {
	var v PacketView
	outcome := DecodeReceive(&v, [6]byte{}, [6]byte{}, 40, 40, 1502, false, 0, 0)
	assert.Equal(t, RecvRunt, outcome)
}

func TestDecodeReceiveGiant(t *testing.T) {
	var v PacketView
	outcome := DecodeReceive(&v, [6]byte{}, [6]byte{}, 100, 2000, 1502, false, 0, 0)
	assert.Equal(t, RecvGiant, outcome)
}

func TestDecodeReceiveVLAN(t *testing.T) {
	var v PacketView
	outcome := DecodeReceive(&v, [6]byte{1}, [6]byte{2}, 100, 96, 1502, true, dot1QTPID, ifacetable.TCI{PCP: 1, VID: 10}.Pack())
	require.Equal(t, RecvOK, outcome)
	assert.True(t, v.VLANPresent)
	assert.Equal(t, 104, v.Length)
	assert.Equal(t, uint16(10), v.TCI.VID)
}

func TestDecodeReceiveNoVLAN(t *testing.T) {
	var v PacketView
	outcome := DecodeReceive(&v, [6]byte{1}, [6]byte{2}, 100, 96, 1502, false, 0, 0)
	require.Equal(t, RecvOK, outcome)
	assert.False(t, v.VLANPresent)
	assert.Equal(t, 100, v.Length)
}

func TestPacketViewResetForEgress(t *testing.T) {
	v := &PacketView{
		OriginalLength:      100,
		VLANPresentOriginal: true,
		TCIOriginal:         ifacetable.TCI{VID: 5},
		Length:              104,
		VLANPresent:         false,
	}
	v.ResetForEgress()
	assert.Equal(t, 100, v.Length)
	assert.True(t, v.VLANPresent)
	assert.Equal(t, uint16(5), v.TCI.VID)
}
