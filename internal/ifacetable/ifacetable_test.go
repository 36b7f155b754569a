package ifacetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddDuplicateName(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(NewInterface("eth0", 1)))
	err := tbl.Add(NewInterface("eth0", 2))
	assert.ErrorContains(t, err, "duplicate interface name")
}

func TestTableAddDuplicateIndex(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(NewInterface("eth0", 1)))
	err := tbl.Add(NewInterface("eth1", 1))
	assert.ErrorContains(t, err, "duplicate interface index")
}

func TestTableLookups(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	b := NewInterface("eth1", 2)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	assert.Same(t, a, tbl.ByName("eth0"))
	assert.Same(t, b, tbl.ByIndex(2))
	assert.Nil(t, tbl.ByName("eth2"))
	assert.Equal(t, []*Interface{a, b}, tbl.All())
	assert.Equal(t, []*Interface{b}, tbl.Others(a))
}

func TestValidateRequiresTwoInterfaces(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(NewInterface("eth0", 1)))
	assert.ErrorContains(t, tbl.Validate(), "at least two")
}

func TestValidateLearnMACFromSelfReference(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	a.LearnMACFrom = 1
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(NewInterface("eth1", 2)))
	assert.ErrorContains(t, tbl.Validate(), "cannot reference itself")
}

func TestValidateLearnMACFromUndefined(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	a.LearnMACFrom = 99
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(NewInterface("eth1", 2)))
	assert.ErrorContains(t, tbl.Validate(), "undefined interface")
}

func TestValidateMutualExclusion(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	a.LearnMACFrom = 2
	a.StaticMAC = []byte{0, 1, 2, 3, 4, 5}
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(NewInterface("eth1", 2)))
	assert.ErrorContains(t, tbl.Validate(), "mutually exclusive")
}

func TestReindexRekeysByIndexLookup(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(NewInterface("eth1", 2)))

	require.NoError(t, tbl.Reindex(a, 42))

	assert.Equal(t, 42, a.Index)
	assert.Same(t, a, tbl.ByIndex(42))
	assert.Nil(t, tbl.ByIndex(1))
}

func TestReindexRewritesDependentLearnMACFrom(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	b := NewInterface("eth1", 2)
	b.LearnMACFrom = a.Index // resolved at parse time, against a's synthetic index
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	require.NoError(t, tbl.Reindex(a, 42))

	assert.Equal(t, 42, b.LearnMACFrom)
	assert.NoError(t, tbl.Validate())
}

func TestReindexRejectsCollision(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	b := NewInterface("eth1", 2)
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))

	err := tbl.Reindex(a, 2)
	assert.ErrorContains(t, err, "duplicate interface index")
}

func TestValidateOK(t *testing.T) {
	tbl := NewTable()
	a := NewInterface("eth0", 1)
	b := NewInterface("eth1", 2)
	b.LearnMACFrom = 1
	require.NoError(t, tbl.Add(a))
	require.NoError(t, tbl.Add(b))
	assert.NoError(t, tbl.Validate())
}

func TestFilterMaskDrops(t *testing.T) {
	f := &FilterMask{Type: 1 << 1, Code: 1 << 3}
	assert.True(t, f.Drops(1, false, 0))
	assert.False(t, f.Drops(2, false, 0))
	assert.True(t, f.Drops(0, true, 3))
	assert.False(t, f.Drops(0, true, 1))
	assert.False(t, (*FilterMask)(nil).Drops(1, false, 0))
}

func TestActionTableSelect(t *testing.T) {
	a := &ActionTable{}
	a.ByType[1] = "/bin/start-script"
	a.ByCode[2] = "/bin/response-script"

	path, ok := a.Select(1, false, 0)
	assert.True(t, ok)
	assert.Equal(t, "/bin/start-script", path)

	path, ok = a.Select(0, true, 2)
	assert.True(t, ok)
	assert.Equal(t, "/bin/response-script", path)

	_, ok = a.Select(3, false, 0)
	assert.False(t, ok)
}

func TestTCIPackUnpack(t *testing.T) {
	tci := TCI{PCP: 5, DEI: 1, VID: 100}
	packed := tci.Pack()
	assert.Equal(t, tci, UnpackTCI(packed))
}
