package rawsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestHtons(t *testing.T) {
	assert.Equal(t, uint16(0x888e), htons(0x8e88))
}

func TestEapolFilterProgramAssembles(t *testing.T) {
	instrs, err := eapolFilterProgram()
	require.NoError(t, err)
	require.Len(t, instrs, 4)
}

func TestParseAuxdataVLANFlags(t *testing.T) {
	data := make([]byte, auxdataLen)
	nativeEndian.PutUint32(data[0:4], tpStatusVLANValid|tpStatusVLANTPIDValid)
	nativeEndian.PutUint16(data[16:18], 0xA064)
	nativeEndian.PutUint16(data[18:20], 0x8100)

	aux, ok := parseAuxdata([]unix.SocketControlMessage{{
		Header: unix.Cmsghdr{Level: unix.SOL_PACKET, Type: unix.PACKET_AUXDATA},
		Data:   data,
	}})
	require.True(t, ok)
	assert.NotZero(t, aux.Status&tpStatusVLANValid)
	assert.Equal(t, uint16(0xA064), aux.VLANTCI)
	assert.Equal(t, uint16(0x8100), aux.VLANTPID)
}
