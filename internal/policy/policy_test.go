package policy

import (
	"testing"

	"github.com/kangtastic/peapod/internal/frame"
	"github.com/kangtastic/peapod/internal/ifacetable"
	"github.com/stretchr/testify/assert"
)

func TestDrops(t *testing.T) {
	mask := &ifacetable.FilterMask{Type: 1 << 2}
	assert.True(t, Drops(mask, 2, false, 0))
	assert.False(t, Drops(nil, 2, false, 0))
}

func TestSelectAction(t *testing.T) {
	table := &ifacetable.ActionTable{}
	table.ByType[1] = "/bin/on-start"
	path, ok := SelectAction(table, 1, false, 0)
	assert.True(t, ok)
	assert.Equal(t, "/bin/on-start", path)
}

func baseView() *frame.PacketView {
	return &frame.PacketView{
		OriginalLength:      100,
		Length:              100,
		VLANPresentOriginal: false,
		VLANPresent:         false,
	}
}

func TestRewriteTCINilPreservesOriginal(t *testing.T) {
	v := baseView()
	v.VLANPresentOriginal = true
	v.TCIOriginal = ifacetable.TCI{VID: 7}
	v.OriginalLength = 104
	v.Length = 100
	v.VLANPresent = false // simulate a prior rewrite on a previous egress interface
	RewriteTCI(v, nil)
	assert.True(t, v.VLANPresent)
	assert.Equal(t, uint16(7), v.TCI.VID)
	assert.Equal(t, 104, v.Length)
}

func TestRewriteTCIStrip(t *testing.T) {
	v := baseView()
	v.VLANPresentOriginal = true
	v.TCIOriginal = ifacetable.TCI{VID: 7}
	v.OriginalLength = 104
	v.Length = 104

	RewriteTCI(v, &ifacetable.TCIDirective{Strip: true})
	assert.False(t, v.VLANPresent)
	assert.Equal(t, ifacetable.TCI{}, v.TCI)
	assert.Equal(t, 100, v.Length)
}

func TestRewriteTCIAddTagToUntagged(t *testing.T) {
	v := baseView()
	RewriteTCI(v, &ifacetable.TCIDirective{TouchedVID: true, VID: 99})
	assert.True(t, v.VLANPresent)
	assert.Equal(t, uint16(99), v.TCI.VID)
	assert.Equal(t, uint8(0), v.TCI.PCP)
	assert.Equal(t, 104, v.Length)
}

func TestRewriteTCIPartialTouchPreservesOtherFields(t *testing.T) {
	v := baseView()
	v.VLANPresentOriginal = true
	v.TCIOriginal = ifacetable.TCI{PCP: 5, DEI: 1, VID: 20}
	v.OriginalLength = 104
	v.Length = 104

	RewriteTCI(v, &ifacetable.TCIDirective{TouchedVID: true, VID: 30})
	assert.True(t, v.VLANPresent)
	assert.Equal(t, ifacetable.TCI{PCP: 5, DEI: 1, VID: 30}, v.TCI)
	assert.Equal(t, 104, v.Length)
}
