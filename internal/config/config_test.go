package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsAndParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peapod.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
iface eth0 { };
iface eth1 { };
`), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}

func TestDumpProducesYAML(t *testing.T) {
	table, err := Parse(`
iface eth0 {
	promiscuous;
	ingress {
		filter start logoff;
	};
};
iface eth1 {
	egress {
		no dot1q;
	};
};
`)
	require.NoError(t, err)

	out, err := Dump(table)
	require.NoError(t, err)
	assert.Contains(t, out, "eth0")
	assert.Contains(t, out, "eth1")
	assert.Contains(t, out, "promiscuous: true")
	assert.Contains(t, out, "strip: true")
}
