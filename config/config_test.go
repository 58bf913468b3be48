package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs-force-community/venus-fvm/pkg/constants"
	tf "github.com/ipfs-force-community/venus-fvm/pkg/testhelpers/testflags"
)

func TestDefaults(t *testing.T) {
	tf.UnitTest(t)
	assert := assert.New(t)

	cfg := NewDefaultConfig()

	assert.Equal(constants.MaxCallDepth, cfg.VM.MaxCallDepth)
	assert.Equal(constants.TestNetworkVersion, cfg.VM.Version())
	assert.Equal(int64(1300), cfg.Pricing.StorageGasMulti)
	assert.Equal("badger", cfg.Datastore.Type)
	assert.NoError(cfg.Validate())
}

func TestConfigRoundtrip(t *testing.T) {
	tf.UnitTest(t)
	assert := assert.New(t)

	cfg := NewDefaultConfig()
	cfg.VM.MaxCallDepth = 16
	cfg.Log.Subsystems["vm.callmanager"] = "debug"

	cfgpath := filepath.Join(t.TempDir(), "config.toml")
	assert.NoError(cfg.WriteFile(cfgpath))

	cfgout, err := ReadFile(cfgpath)
	require.NoError(t, err)

	assert.Equal(cfg, cfgout)
}

func TestReadPartialFile(t *testing.T) {
	tf.UnitTest(t)

	cfgpath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ioutil.WriteFile(cfgpath, []byte(`
[vm]
  maxCallDepth = 3

[pricing]
  sendBase = 1

[exitCodes]
  fatal = [7, 20]
`), 0644))

	cfg, err := ReadFile(cfgpath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.VM.MaxCallDepth)
	assert.Equal(t, int64(1), cfg.Pricing.SendBase)
	// untouched keys keep their defaults
	assert.Equal(t, int64(1300), cfg.Pricing.StorageGasMulti)
	assert.Equal(t, []int64{7, 20}, cfg.ExitCodes.Fatal)
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()
	cfg.VM.MaxCallDepth = 0
	cfg.Pricing.ComputeGasMulti = 0
	cfg.Datastore.Type = "leveldb"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maxCallDepth")
	assert.Contains(t, err.Error(), "computeGasMulti")
	assert.Contains(t, err.Error(), "leveldb")
}

func TestGetSet(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()

	v, err := cfg.Get("vm.maxCallDepth")
	require.NoError(t, err)
	assert.Equal(t, constants.MaxCallDepth, v)

	_, err = cfg.Set("vm.maxCallDepth", "12")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.VM.MaxCallDepth)

	_, err = cfg.Set("datastore", `type = "memory"
path = ""`)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Datastore.Type)

	_, err = cfg.Get("nope.nothing")
	assert.Error(t, err)
}

func TestTracingSection(t *testing.T) {
	tf.UnitTest(t)

	cfgpath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ioutil.WriteFile(cfgpath, []byte(`
[tracing]
  jaegerTracingEnabled = true
  probabilitySampler = 0.25
  jaegerEndpoint = "127.0.0.1:6831"
`), 0644))

	cfg, err := ReadFile(cfgpath)
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.JaegerTracingEnabled)
	assert.Equal(t, 0.25, cfg.Tracing.ProbabilitySampler)
	assert.Equal(t, "venus-fvm", cfg.Tracing.ServerName)
	assert.NoError(t, cfg.Validate())

	cfg.Tracing.ProbabilitySampler = 2
	cfg.Tracing.JaegerEndpoint = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probabilitySampler")
	assert.Contains(t, err.Error(), "jaegerEndpoint")
}

func TestSetListsAndRollback(t *testing.T) {
	tf.UnitTest(t)

	cfg := NewDefaultConfig()
	cfg.ExitCodes.Fatal = []int64{7, 20}

	v, err := cfg.Get("exitCodes.fatal.1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), v)

	_, err = cfg.Set("exitCodes.fatal.0", "9")
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 20}, cfg.ExitCodes.Fatal)

	_, err = cfg.Get("exitCodes.fatal.5")
	assert.Error(t, err)
	_, err = cfg.Get("vm.maxCallDepth.x")
	assert.Error(t, err)

	_, err = cfg.Set("tracing", `{ jaegerTracingEnabled = true, probabilitySampler = 0.5, jaegerEndpoint = "127.0.0.1:6831" }`)
	require.NoError(t, err)
	assert.True(t, cfg.Tracing.JaegerTracingEnabled)
	assert.Equal(t, 0.5, cfg.Tracing.ProbabilitySampler)

	// an invalid value is not kept
	_, err = cfg.Set("vm.maxCallDepth", "0")
	require.Error(t, err)
	assert.Equal(t, constants.MaxCallDepth, cfg.VM.MaxCallDepth)

	_, err = cfg.Set("vm.maxCallDepth", `"deep"`)
	assert.Error(t, err)
}
