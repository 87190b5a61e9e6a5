package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
node:
  url: http://node.example:8300
  shard: Shard0
contract: "020000000000000000000000000000000000000042"
data_dir: /tmp/veildraw
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node.example:8300", cfg.Node.URL)
	assert.Equal(t, "Shard0", cfg.Node.Shard)
	assert.Equal(t, "/tmp/veildraw", cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)

	addr, err := cfg.ContractAddress()
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), addr[0])
	assert.Equal(t, byte(0x42), addr[20])
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `contract: ""`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Node.URL, cfg.Node.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsBadContractAddress(t *testing.T) {
	for _, contract := range []string{"zz", "0102"} {
		path := writeConfig(t, "contract: \""+contract+"\"\n")
		_, err := Load(path)
		assert.Error(t, err, "contract %q must be rejected", contract)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
